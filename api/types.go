package api

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/mixvote/types"
)

// ChainInfo is the response to a chain status request.
type ChainInfo struct {
	Height types.BlockNumber `json:"height"`
}

// Nonce is the response to an account nonce request.
type Nonce struct {
	Address common.Address `json:"address"`
	Nonce   uint64         `json:"nonce"`
}

// Elections is the response to an elections listing.
type Elections struct {
	Elections []types.ElectionID `json:"elections"`
}

// ElectionInfo is the election record together with its ballot count.
type ElectionInfo struct {
	*types.Election
	BallotCount uint32 `json:"ballotCount"`
}

// VoterStatus tells whether an account can vote in an election.
type VoterStatus struct {
	ElectionID types.ElectionID `json:"electionId"`
	Voter      common.Address   `json:"voter"`
	Registered bool             `json:"registered"`
}

// Ballot is a single stored ciphertext.
type Ballot struct {
	Index      types.BallotIndex `json:"index"`
	Ciphertext types.HexBytes    `json:"ciphertext"`
}

// Ballots is the response to a ballots request. Ballots is only filled
// when requested.
type Ballots struct {
	ElectionID types.ElectionID `json:"electionId"`
	Count      uint32           `json:"count"`
	Ballots    []Ballot         `json:"ballots,omitempty"`
}

// Jobs is the response to a jobs listing.
type Jobs struct {
	Jobs []*types.MixJob `json:"jobs"`
}

// Event is a recorded event with its payload kept as raw json.
type Event struct {
	Seq   uint64            `json:"seq"`
	Block types.BlockNumber `json:"block"`
	Name  string            `json:"name"`
	Data  json.RawMessage   `json:"data"`
}

// Events is the response to an events request. Next is the sequence number
// to ask for in the following request.
type Events struct {
	Events []Event `json:"events"`
	Next   uint64  `json:"next"`
}
