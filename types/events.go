package types

import "github.com/ethereum/go-ethereum/common"

// Event names.
const (
	EventElectionCreated   = "ElectionCreated"
	EventVoterRegistered   = "VoterRegistered"
	EventBallotCast        = "BallotCast"
	EventMixCommitmentsSet = "MixCommitmentsSet"
	EventTallySubmitted    = "TallySubmitted"
	EventJobSubmitted      = "JobSubmitted"
	EventJobStatusUpdated  = "JobStatusUpdated"
)

// Event is emitted once by every successful operation.
type Event interface {
	EventName() string
}

type ElectionCreated struct {
	ElectionID ElectionID `json:"electionId"`
}

type VoterRegistered struct {
	ElectionID ElectionID     `json:"electionId"`
	Voter      common.Address `json:"voter"`
}

type BallotCast struct {
	ElectionID ElectionID     `json:"electionId"`
	Voter      common.Address `json:"voter"`
	Index      BallotIndex    `json:"index"`
}

type MixCommitmentsSet struct {
	ElectionID ElectionID `json:"electionId"`
}

type TallySubmitted struct {
	ElectionID ElectionID `json:"electionId"`
}

type JobSubmitted struct {
	JobID      JobID          `json:"jobId"`
	ElectionID ElectionID     `json:"electionId"`
	Requester  common.Address `json:"requester"`
}

type JobStatusUpdated struct {
	JobID     JobID     `json:"jobId"`
	OldStatus JobStatus `json:"oldStatus"`
	NewStatus JobStatus `json:"newStatus"`
}

func (ElectionCreated) EventName() string   { return EventElectionCreated }
func (VoterRegistered) EventName() string   { return EventVoterRegistered }
func (BallotCast) EventName() string        { return EventBallotCast }
func (MixCommitmentsSet) EventName() string { return EventMixCommitmentsSet }
func (TallySubmitted) EventName() string    { return EventTallySubmitted }
func (JobSubmitted) EventName() string      { return EventJobSubmitted }
func (JobStatusUpdated) EventName() string  { return EventJobStatusUpdated }
