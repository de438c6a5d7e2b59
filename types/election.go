package types

import "github.com/ethereum/go-ethereum/common"

type (
	// ElectionID is chosen by the election creator and must be unique.
	ElectionID uint32
	// BallotIndex is the position of a ballot inside an election, assigned
	// sequentially from zero.
	BallotIndex uint32
	// BlockNumber is the ledger height used as the clock for every deadline.
	BlockNumber uint64
)

// Origin identifies who executes an operation and at which height. It is
// built by the execution environment after authenticating the call.
type Origin struct {
	Caller common.Address
	Block  BlockNumber
}

// Election is the on-ledger record of a voting instance.
type Election struct {
	ID                   ElectionID     `json:"id"                             cbor:"0,keyasint"`
	Admin                common.Address `json:"admin"                          cbor:"1,keyasint"`
	TallyAuthority       common.Address `json:"tallyAuthority"                 cbor:"2,keyasint"`
	RegistrationDeadline BlockNumber    `json:"registrationDeadline"           cbor:"3,keyasint"`
	VotingDeadline       BlockNumber    `json:"votingDeadline"                 cbor:"4,keyasint"`
	CommitmentInputRoot  *common.Hash   `json:"commitmentInputRoot,omitempty"  cbor:"5,keyasint,omitempty"`
	CommitmentOutputRoot *common.Hash   `json:"commitmentOutputRoot,omitempty" cbor:"6,keyasint,omitempty"`
	Finalized            bool           `json:"finalized"                      cbor:"7,keyasint,omitempty"`
}

// HasCommitments reports whether both mix commitment roots are present.
func (e *Election) HasCommitments() bool {
	return e.CommitmentInputRoot != nil && e.CommitmentOutputRoot != nil
}

// RegistrationOpen reports whether voters can still be registered at the
// given height.
func (e *Election) RegistrationOpen(now BlockNumber) bool {
	return !e.Finalized && now <= e.RegistrationDeadline
}

// VotingOpen reports whether ballots can still be cast at the given height.
func (e *Election) VotingOpen(now BlockNumber) bool {
	return !e.Finalized && now <= e.VotingDeadline
}

// TallyResult is the finalized outcome of an election.
type TallyResult struct {
	ResultURI  string      `json:"resultUri"  cbor:"0,keyasint"`
	ResultHash common.Hash `json:"resultHash" cbor:"1,keyasint"`
}
