package chain

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/mixvote/crypto/ethereum"
	"github.com/vocdoni/mixvote/types"
)

// Methods accepted by Dispatch.
const (
	MethodCreateElection    = "create_election"
	MethodRegisterVoter     = "register_voter"
	MethodCastVote          = "cast_vote"
	MethodSetMixCommitments = "set_mix_commitments"
	MethodSubmitTally       = "submit_tally"
	MethodSubmitJob         = "submit_job"
	MethodUpdateJobStatus   = "update_job_status"
)

// Call is a request to execute one ledger operation. The nonce must match
// the next nonce of the signer account.
type Call struct {
	Method  string          `json:"method"`
	Nonce   uint64          `json:"nonce"`
	Payload json.RawMessage `json:"payload"`
}

// SignatureMessage returns the bytes signed by the caller: the keccak256 of
// the method, a zero separator, the big-endian nonce and the raw payload.
func (c *Call) SignatureMessage() []byte {
	buf := make([]byte, 0, len(c.Method)+1+8+len(c.Payload))
	buf = append(buf, c.Method...)
	buf = append(buf, 0)
	buf = binary.BigEndian.AppendUint64(buf, c.Nonce)
	buf = append(buf, c.Payload...)
	return ethereum.HashRaw(buf)
}

// SignedCall is a Call with the Ethereum signature of its signature message.
type SignedCall struct {
	Call
	Signature types.HexBytes `json:"signature"`
}

// Signer recovers the address that signed the call.
func (sc *SignedCall) Signer() (common.Address, error) {
	addr, err := ethereum.AddrFromSignature(sc.SignatureMessage(), sc.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return addr, nil
}

// NewCall builds a call encoding payload as json.
func NewCall(method string, nonce uint64, payload any) (*Call, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", method, err)
	}
	return &Call{Method: method, Nonce: nonce, Payload: data}, nil
}

// SignCall builds and signs a call with the given keys.
func SignCall(signer *ethereum.SignKeys, method string, nonce uint64, payload any) (*SignedCall, error) {
	call, err := NewCall(method, nonce, payload)
	if err != nil {
		return nil, err
	}
	sig, err := signer.SignEthereum(call.SignatureMessage())
	if err != nil {
		return nil, fmt.Errorf("sign call: %w", err)
	}
	return &SignedCall{Call: *call, Signature: sig}, nil
}

// Receipt describes an executed call.
type Receipt struct {
	Method      string             `json:"method"`
	Caller      common.Address     `json:"caller"`
	Nonce       uint64             `json:"nonce"`
	Block       types.BlockNumber  `json:"block"`
	BallotIndex *types.BallotIndex `json:"ballotIndex,omitempty"`
	JobID       *types.JobID       `json:"jobId,omitempty"`
}

// CreateElectionPayload is the payload of create_election.
type CreateElectionPayload struct {
	ElectionID           types.ElectionID  `json:"electionId"`
	TallyAuthority       common.Address    `json:"tallyAuthority"`
	RegistrationDeadline types.BlockNumber `json:"registrationDeadline"`
	VotingDeadline       types.BlockNumber `json:"votingDeadline"`
}

// RegisterVoterPayload is the payload of register_voter.
type RegisterVoterPayload struct {
	ElectionID types.ElectionID `json:"electionId"`
	Voter      common.Address   `json:"voter"`
}

// CastVotePayload is the payload of cast_vote.
type CastVotePayload struct {
	ElectionID types.ElectionID `json:"electionId"`
	Ciphertext types.HexBytes   `json:"ciphertext"`
}

// SetMixCommitmentsPayload is the payload of set_mix_commitments.
type SetMixCommitmentsPayload struct {
	ElectionID types.ElectionID `json:"electionId"`
	InputRoot  common.Hash      `json:"inputRoot"`
	OutputRoot common.Hash      `json:"outputRoot"`
}

// SubmitTallyPayload is the payload of submit_tally.
type SubmitTallyPayload struct {
	ElectionID types.ElectionID `json:"electionId"`
	ResultURI  string           `json:"resultUri"`
	ResultHash common.Hash      `json:"resultHash"`
}

// SubmitJobPayload is the payload of submit_job. SourceChain is set when
// the request is relayed from another chain.
type SubmitJobPayload struct {
	ElectionID  types.ElectionID `json:"electionId"`
	SourceChain *uint32          `json:"sourceChain,omitempty"`
}

// UpdateJobStatusPayload is the payload of update_job_status.
type UpdateJobStatusPayload struct {
	JobID        types.JobID     `json:"jobId"`
	Status       types.JobStatus `json:"status"`
	ErrorMessage *string         `json:"errorMessage,omitempty"`
}
