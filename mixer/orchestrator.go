package mixer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vocdoni/mixvote/chain"
	"github.com/vocdoni/mixvote/commitment"
	"github.com/vocdoni/mixvote/crypto/ethereum"
	"github.com/vocdoni/mixvote/log"
	"github.com/vocdoni/mixvote/metrics"
	"github.com/vocdoni/mixvote/mixjob"
	"github.com/vocdoni/mixvote/types"
	"golang.org/x/sync/errgroup"
)

// DefaultParallel is the number of jobs processed at the same time when
// not configured.
const DefaultParallel = 4

// Config holds the orchestrator dependencies. Chain, Signer and Mixer are
// required.
type Config struct {
	Chain    *chain.Chain
	Signer   *ethereum.SignKeys
	Mixer    Mixer
	Parallel int
	Metrics  *metrics.Collector
	// MaxErrorMessageSize bounds the failure messages reported to the chain.
	MaxErrorMessageSize int
}

// Orchestrator processes the pending mix jobs. Its account must be the
// tally authority of the elections it mixes.
type Orchestrator struct {
	chain        *chain.Chain
	signer       *ethereum.SignKeys
	mixer        Mixer
	parallel     int
	metrics      *metrics.Collector
	maxErrorSize int

	// nonceMu serializes the calls signed by the orchestrator account.
	nonceMu sync.Mutex
}

// NewOrchestrator creates an Orchestrator from conf.
func NewOrchestrator(conf *Config) (*Orchestrator, error) {
	if conf == nil || conf.Chain == nil || conf.Signer == nil || conf.Mixer == nil {
		return nil, fmt.Errorf("chain, signer and mixer are required")
	}
	o := &Orchestrator{
		chain:        conf.Chain,
		signer:       conf.Signer,
		mixer:        conf.Mixer,
		parallel:     conf.Parallel,
		metrics:      conf.Metrics,
		maxErrorSize: conf.MaxErrorMessageSize,
	}
	if o.parallel <= 0 {
		o.parallel = DefaultParallel
	}
	if o.maxErrorSize <= 0 {
		o.maxErrorSize = mixjob.DefaultMaxErrorMessageSize
	}
	return o, nil
}

// Address returns the account used to sign the orchestrator calls.
func (o *Orchestrator) Address() string {
	return o.signer.AddressString()
}

// RunOnce processes every pending job that is ready, waiting for all of
// them to finish. It returns the number of jobs processed, successfully or
// not. A job is ready once the voting deadline of its election has passed.
// Jobs of elections tallied by another account are left pending.
func (o *Orchestrator) RunOnce(ctx context.Context) (int, error) {
	pending, err := o.chain.Jobs().JobsByStatus(types.JobPending)
	if err != nil {
		return 0, fmt.Errorf("list pending jobs: %w", err)
	}
	height := o.chain.Height()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallel)
	processed := 0
	for _, job := range pending {
		election, err := o.chain.Voting().Election(job.ElectionID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				o.fail(job.ID, err)
				processed++
				continue
			}
			return processed, err
		}
		if election.TallyAuthority != o.signer.Address() {
			log.Debugw("mix job skipped, election has another tally authority",
				"jobId", job.ID,
				"electionId", job.ElectionID,
				"tallyAuthority", election.TallyAuthority.Hex())
			continue
		}
		if height <= election.VotingDeadline {
			log.Debugw("mix job waiting for the voting deadline",
				"jobId", job.ID,
				"electionId", job.ElectionID,
				"votingDeadline", election.VotingDeadline,
				"height", height)
			continue
		}
		if gctx.Err() != nil {
			break
		}
		processed++
		g.Go(func() error {
			o.process(gctx, job)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return processed, err
	}
	return processed, ctx.Err()
}

// process runs a single job and reports its outcome.
func (o *Orchestrator) process(ctx context.Context, job *types.MixJob) {
	runID := uuid.New()
	start := time.Now()
	log.Infow("mix job started", "jobId", job.ID, "electionId", job.ElectionID, "runId", runID.String())

	if err := o.updateStatus(job.ID, types.JobRunning, nil); err != nil {
		log.Warnw("cannot mark mix job as running", "jobId", job.ID, "error", err.Error())
		return
	}
	ballots, err := o.run(ctx, job, runID)
	o.metrics.MixRun(ballots, time.Since(start), err)
	if err != nil {
		log.Warnw("mix job failed", "jobId", job.ID, "runId", runID.String(), "error", err.Error())
		o.fail(job.ID, err)
		return
	}
	if err := o.updateStatus(job.ID, types.JobCompleted, nil); err != nil {
		log.Warnw("cannot mark mix job as completed", "jobId", job.ID, "error", err.Error())
		return
	}
	log.Infow("mix job completed",
		"jobId", job.ID,
		"runId", runID.String(),
		"ballots", ballots,
		"took", time.Since(start).String())
}

// run mixes the ballots and publishes commitments and tally. It returns the
// number of mixed ballots.
func (o *Orchestrator) run(ctx context.Context, job *types.MixJob, runID uuid.UUID) (int, error) {
	ballots, err := o.chain.Voting().Ballots().Ballots(job.ElectionID)
	if err != nil {
		return 0, fmt.Errorf("load ballots: %w", err)
	}
	mixed, err := o.mixer.Mix(ctx, job.ElectionID, ballots)
	if err != nil {
		return len(ballots), fmt.Errorf("mix: %w", err)
	}
	if len(mixed) != len(ballots) {
		return len(ballots), fmt.Errorf("mixer returned %d ballots, expected %d", len(mixed), len(ballots))
	}
	inputRoot, err := commitment.BallotsRoot(ballots)
	if err != nil {
		return len(ballots), fmt.Errorf("input root: %w", err)
	}
	outputRoot, err := commitment.BallotsRoot(mixed)
	if err != nil {
		return len(ballots), fmt.Errorf("output root: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return len(ballots), err
	}
	if _, err := o.send(chain.MethodSetMixCommitments, &chain.SetMixCommitmentsPayload{
		ElectionID: job.ElectionID,
		InputRoot:  inputRoot,
		OutputRoot: outputRoot,
	}); err != nil {
		return len(ballots), fmt.Errorf("set mix commitments: %w", err)
	}
	if _, err := o.send(chain.MethodSubmitTally, &chain.SubmitTallyPayload{
		ElectionID: job.ElectionID,
		ResultURI:  ResultURI(job.ElectionID, runID),
		ResultHash: outputRoot,
	}); err != nil {
		return len(ballots), fmt.Errorf("submit tally: %w", err)
	}
	return len(ballots), nil
}

// ResultURI returns the locator of the mixed ballots of a run.
func ResultURI(electionID types.ElectionID, runID uuid.UUID) string {
	return fmt.Sprintf("mixvote://elections/%d/runs/%s", electionID, runID)
}

func (o *Orchestrator) fail(id types.JobID, cause error) {
	msg := truncate(cause.Error(), o.maxErrorSize)
	if err := o.updateStatus(id, types.JobFailed, &msg); err != nil {
		log.Warnw("cannot mark mix job as failed", "jobId", id, "error", err.Error())
	}
}

func (o *Orchestrator) updateStatus(id types.JobID, status types.JobStatus, msg *string) error {
	_, err := o.send(chain.MethodUpdateJobStatus, &chain.UpdateJobStatusPayload{
		JobID:        id,
		Status:       status,
		ErrorMessage: msg,
	})
	return err
}

// send signs payload with the next nonce of the orchestrator account and
// dispatches it.
func (o *Orchestrator) send(method string, payload any) (*chain.Receipt, error) {
	o.nonceMu.Lock()
	defer o.nonceMu.Unlock()
	nonce, err := o.chain.Nonce(o.signer.Address())
	if err != nil {
		return nil, err
	}
	sc, err := chain.SignCall(o.signer, method, nonce, payload)
	if err != nil {
		return nil, err
	}
	return o.chain.Dispatch(sc)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
