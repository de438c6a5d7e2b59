package storage

import (
	"errors"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/mixvote/types"
)

// Election returns the election record. Returns ErrNotFound if it does not
// exist.
func (s *Storage) Election(id types.ElectionID) (*types.Election, error) {
	e := &types.Election{}
	if err := s.getArtifact(electionPrefix, electionKey(id), e); err != nil {
		return nil, err
	}
	return e, nil
}

// ElectionExists reports whether an election with the given id is stored.
func (s *Storage) ElectionExists(id types.ElectionID) (bool, error) {
	return s.hasArtifact(electionPrefix, electionKey(id))
}

// ListElections returns the ids of all the stored elections in ascending
// order.
func (s *Storage) ListElections() ([]types.ElectionID, error) {
	var ids []types.ElectionID
	var decodeErr error
	if err := s.iterateArtifacts(electionPrefix, func(_, v []byte) bool {
		e := types.Election{}
		if err := decodeArtifact(v, &e); err != nil {
			decodeErr = err
			return false
		}
		ids = append(ids, e.ID)
		return true
	}); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	slices.Sort(ids)
	return ids, nil
}

// VoterRegistered reports whether voter is registered for the election.
func (s *Storage) VoterRegistered(id types.ElectionID, voter common.Address) (bool, error) {
	return s.hasArtifact(voterPrefix, voterKey(id, voter))
}

// TallyResult returns the tally of a finalized election. Returns ErrNotFound
// if no tally was submitted.
func (s *Storage) TallyResult(id types.ElectionID) (*types.TallyResult, error) {
	r := &types.TallyResult{}
	if err := s.getArtifact(tallyPrefix, electionKey(id), r); err != nil {
		return nil, err
	}
	return r, nil
}

// Ballot returns the ciphertext stored at index. Returns ErrNotFound if there
// is no such ballot.
func (s *Storage) Ballot(id types.ElectionID, index types.BallotIndex) ([]byte, error) {
	var ciphertext []byte
	if err := s.getArtifact(ballotPrefix, ballotKey(id, index), &ciphertext); err != nil {
		return nil, err
	}
	return ciphertext, nil
}

// BallotCount returns the number of ballots cast in the election, zero if
// the counter was never written.
func (s *Storage) BallotCount(id types.ElectionID) (uint32, error) {
	var count uint32
	if err := s.getArtifact(ballotCountPrefix, electionKey(id), &count); err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}
