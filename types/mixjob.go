package types

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// JobID identifies a mix job. Ids are assigned from a monotonic counter and
// never reused.
type JobID uint64

// JobStatus is the lifecycle state of a mix job.
type JobStatus uint8

const (
	JobPending JobStatus = iota
	JobRunning
	JobCompleted
	JobFailed
)

var jobStatusNames = [...]string{
	JobPending:   "pending",
	JobRunning:   "running",
	JobCompleted: "completed",
	JobFailed:    "failed",
}

// jobTransitions[from][to] tells whether a job can move from one status to
// another. Pending and Running accept self-loops to refresh the job metadata,
// Completed and Failed are terminal.
var jobTransitions = [4][4]bool{
	JobPending:   {JobPending: true, JobRunning: true, JobCompleted: true, JobFailed: true},
	JobRunning:   {JobRunning: true, JobCompleted: true, JobFailed: true},
	JobCompleted: {},
	JobFailed:    {},
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	return int(s) < len(jobStatusNames)
}

// CanTransitionTo reports whether a job in status s may be updated to next.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return jobTransitions[s][next]
}

// Terminal reports whether no further transition is possible from s.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

func (s JobStatus) String() string {
	if !s.Valid() {
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
	return jobStatusNames[s]
}

// ParseJobStatus returns the status matching name, case insensitive.
func ParseJobStatus(name string) (JobStatus, error) {
	for i, n := range jobStatusNames {
		if strings.EqualFold(n, name) {
			return JobStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown job status %q", name)
}

func (s JobStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown job status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *JobStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseJobStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MixJob tracks one unit of off-ledger mixing work for an election.
type MixJob struct {
	ID           JobID          `json:"id"                     cbor:"0,keyasint"`
	Requester    common.Address `json:"requester"              cbor:"1,keyasint"`
	SourceChain  *uint32        `json:"sourceChain,omitempty"  cbor:"2,keyasint,omitempty"`
	ElectionID   ElectionID     `json:"electionId"             cbor:"3,keyasint"`
	CreatedAt    BlockNumber    `json:"createdAt"              cbor:"4,keyasint"`
	Status       JobStatus      `json:"status"                 cbor:"5,keyasint"`
	LastUpdate   BlockNumber    `json:"lastUpdate"             cbor:"6,keyasint"`
	ErrorMessage *string        `json:"errorMessage,omitempty" cbor:"7,keyasint,omitempty"`
}
