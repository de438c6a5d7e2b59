// Package mixjob tracks the asynchronous mixing jobs requested for the
// elections. Jobs move through the status lattice
//
//	pending -> running -> completed | failed
//
// where pending may also jump straight to a terminal status and both pending
// and running accept updates that keep the status. Completed and failed jobs
// are immutable.
package mixjob

import (
	"errors"
	"fmt"
	"math"

	"github.com/vocdoni/mixvote/events"
	"github.com/vocdoni/mixvote/log"
	"github.com/vocdoni/mixvote/storage"
	"github.com/vocdoni/mixvote/types"
)

const (
	// DefaultMaxJobs is the default number of jobs the tracker holds.
	DefaultMaxJobs = 1000
	// DefaultMaxErrorMessageSize is the default bound of a job error message.
	DefaultMaxErrorMessageSize = 256
)

// Options configure the tracker limits. Zero values take the defaults.
type Options struct {
	MaxJobs             int
	MaxErrorMessageSize int
}

// Tracker stores the mix jobs and validates their status transitions. It
// does not check that the referenced elections exist.
type Tracker struct {
	stg          *storage.Storage
	sink         events.Sink
	maxJobs      int
	maxErrorSize int
}

// NewTracker creates a Tracker over stg. Events are delivered to sink, which
// may be nil.
func NewTracker(stg *storage.Storage, sink events.Sink, opts Options) *Tracker {
	if opts.MaxJobs <= 0 {
		opts.MaxJobs = DefaultMaxJobs
	}
	if opts.MaxErrorMessageSize <= 0 {
		opts.MaxErrorMessageSize = DefaultMaxErrorMessageSize
	}
	return &Tracker{
		stg:          stg,
		sink:         sink,
		maxJobs:      opts.MaxJobs,
		maxErrorSize: opts.MaxErrorMessageSize,
	}
}

// MaxJobs returns the configured job quota.
func (t *Tracker) MaxJobs() int {
	return t.maxJobs
}

// SubmitJob requests a mix for the election on behalf of the caller.
func (t *Tracker) SubmitJob(origin types.Origin, electionID types.ElectionID) (types.JobID, error) {
	return t.commitSubmit(origin, electionID, nil)
}

// SubmitJobFrom is SubmitJob for requests relayed from another chain,
// identified by sourceChain.
func (t *Tracker) SubmitJobFrom(origin types.Origin, electionID types.ElectionID, sourceChain uint32) (types.JobID, error) {
	return t.commitSubmit(origin, electionID, &sourceChain)
}

// UpdateJobStatus moves the job to status and replaces its error message
// (a nil message clears it). Any authenticated caller may update any job.
func (t *Tracker) UpdateJobStatus(origin types.Origin, id types.JobID, status types.JobStatus, errorMessage *string) error {
	b := t.stg.NewBatch()
	defer b.Discard()
	if err := t.WithBatch(b).UpdateJobStatus(origin, id, status, errorMessage); err != nil {
		return err
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("commit job %d: %w", id, err)
	}
	return nil
}

func (t *Tracker) commitSubmit(origin types.Origin, electionID types.ElectionID, sourceChain *uint32) (types.JobID, error) {
	b := t.stg.NewBatch()
	defer b.Discard()
	id, err := t.WithBatch(b).submit(origin, electionID, sourceChain)
	if err != nil {
		return 0, err
	}
	if err := b.Commit(); err != nil {
		return 0, fmt.Errorf("commit job %d: %w", id, err)
	}
	return id, nil
}

// WithBatch binds the tracker operations to b. Their writes are staged into
// b and their event is emitted once the caller commits it.
func (t *Tracker) WithBatch(b *storage.Batch) *Tx {
	return &Tx{t: t, b: b}
}

// Tx is a Tracker bound to a caller owned batch.
type Tx struct {
	t *Tracker
	b *storage.Batch
}

// SubmitJob stages a new job, see Tracker.SubmitJob.
func (tx *Tx) SubmitJob(origin types.Origin, electionID types.ElectionID) (types.JobID, error) {
	return tx.submit(origin, electionID, nil)
}

// SubmitJobFrom stages a relayed job, see Tracker.SubmitJobFrom.
func (tx *Tx) SubmitJobFrom(origin types.Origin, electionID types.ElectionID, sourceChain uint32) (types.JobID, error) {
	return tx.submit(origin, electionID, &sourceChain)
}

func (tx *Tx) submit(origin types.Origin, electionID types.ElectionID, sourceChain *uint32) (types.JobID, error) {
	live, err := tx.t.stg.CountJobs()
	if err != nil {
		return 0, err
	}
	if live >= tx.t.maxJobs {
		return 0, fmt.Errorf("%w: %d jobs stored", types.ErrLimitReached, live)
	}
	id, err := tx.t.stg.NextJobID()
	if err != nil {
		return 0, fmt.Errorf("read next job id: %w", err)
	}
	if id == math.MaxUint64 {
		return 0, fmt.Errorf("%w: job id counter", types.ErrOverflow)
	}

	job := &types.MixJob{
		ID:          id,
		Requester:   origin.Caller,
		SourceChain: sourceChain,
		ElectionID:  electionID,
		CreatedAt:   origin.Block,
		Status:      types.JobPending,
		LastUpdate:  origin.Block,
	}
	if err := tx.b.SetNextJobID(id + 1); err != nil {
		return 0, err
	}
	if err := tx.b.SetJob(job); err != nil {
		return 0, err
	}
	if err := tx.b.SetLastJobForElection(electionID, id); err != nil {
		return 0, err
	}
	tx.b.OnCommit(func() {
		log.Infow("mix job submitted",
			"jobId", id,
			"electionId", electionID,
			"requester", origin.Caller.Hex(),
			"sourceChain", sourceChain)
		tx.t.emit(types.JobSubmitted{JobID: id, ElectionID: electionID, Requester: origin.Caller})
	})
	return id, nil
}

// UpdateJobStatus stages a status change, see Tracker.UpdateJobStatus.
func (tx *Tx) UpdateJobStatus(origin types.Origin, id types.JobID, status types.JobStatus, errorMessage *string) error {
	job, err := tx.t.Job(id)
	if err != nil {
		return err
	}
	if !job.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: job %d from %s to %s", types.ErrInvalidTransition, id, job.Status, status)
	}
	if errorMessage != nil && len(*errorMessage) > tx.t.maxErrorSize {
		return fmt.Errorf("%w: error message of %d bytes, max %d", types.ErrTooLarge, len(*errorMessage), tx.t.maxErrorSize)
	}

	old := job.Status
	job.Status = status
	job.LastUpdate = origin.Block
	job.ErrorMessage = errorMessage
	if err := tx.b.SetJob(job); err != nil {
		return err
	}
	tx.b.OnCommit(func() {
		log.Debugw("mix job updated", "jobId", id, "from", old.String(), "to", status.String(), "caller", origin.Caller.Hex())
		tx.t.emit(types.JobStatusUpdated{JobID: id, OldStatus: old, NewStatus: status})
	})
	return nil
}

// Job returns the job, types.ErrNotFound if unknown.
func (t *Tracker) Job(id types.JobID) (*types.MixJob, error) {
	job, err := t.stg.Job(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: job %d", types.ErrNotFound, id)
		}
		return nil, fmt.Errorf("read job %d: %w", id, err)
	}
	return job, nil
}

// LastJobForElection returns the id of the most recent job submitted for the
// election, types.ErrNotFound if there is none.
func (t *Tracker) LastJobForElection(electionID types.ElectionID) (types.JobID, error) {
	id, err := t.stg.LastJobForElection(electionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, fmt.Errorf("%w: no job for election %d", types.ErrNotFound, electionID)
		}
		return 0, err
	}
	return id, nil
}

// Jobs returns every job ordered by id.
func (t *Tracker) Jobs() ([]*types.MixJob, error) {
	return t.stg.Jobs(nil)
}

// JobsByStatus returns the jobs currently in status, ordered by id.
func (t *Tracker) JobsByStatus(status types.JobStatus) ([]*types.MixJob, error) {
	return t.stg.Jobs(func(j *types.MixJob) bool { return j.Status == status })
}

// Count returns the number of live jobs.
func (t *Tracker) Count() (int, error) {
	return t.stg.CountJobs()
}

// NextJobID returns the id the next submitted job will take.
func (t *Tracker) NextJobID() (types.JobID, error) {
	return t.stg.NextJobID()
}

func (t *Tracker) emit(ev types.Event) {
	if t.sink != nil {
		t.sink.Emit(ev)
	}
}
