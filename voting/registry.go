package voting

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/mixvote/storage"
	"github.com/vocdoni/mixvote/types"
)

// VoterRegistry records which accounts may vote in each election. A voter is
// registered at most once and never removed.
type VoterRegistry struct {
	stg *storage.Storage
}

// NewVoterRegistry returns a registry over stg.
func NewVoterRegistry(stg *storage.Storage) *VoterRegistry {
	return &VoterRegistry{stg: stg}
}

// Register adds voter to the election inside batch. It fails with
// types.ErrAlreadyRegistered if the voter was already registered.
func (r *VoterRegistry) Register(b *storage.Batch, id types.ElectionID, voter common.Address) error {
	registered, err := r.IsRegistered(id, voter)
	if err != nil {
		return err
	}
	if registered {
		return fmt.Errorf("%w: %s in election %d", types.ErrAlreadyRegistered, voter, id)
	}
	return b.SetVoterRegistered(id, voter)
}

// IsRegistered reports whether voter is registered for the election.
func (r *VoterRegistry) IsRegistered(id types.ElectionID, voter common.Address) (bool, error) {
	registered, err := r.stg.VoterRegistered(id, voter)
	if err != nil {
		return false, fmt.Errorf("read voter registration: %w", err)
	}
	return registered, nil
}

// BallotStore is the append-only log of ciphertexts of each election.
// Indices start at zero and have no gaps.
type BallotStore struct {
	stg     *storage.Storage
	maxSize int
}

// NewBallotStore returns a ballot store rejecting ciphertexts larger than
// maxSize bytes.
func NewBallotStore(stg *storage.Storage, maxSize int) *BallotStore {
	return &BallotStore{stg: stg, maxSize: maxSize}
}

// Append stores ciphertext at the next free index of the election and
// advances the counter, both inside batch. It performs no phase checks.
func (s *BallotStore) Append(b *storage.Batch, id types.ElectionID, ciphertext []byte) (types.BallotIndex, error) {
	if len(ciphertext) > s.maxSize {
		return 0, fmt.Errorf("%w: ciphertext of %d bytes, max %d", types.ErrTooLarge, len(ciphertext), s.maxSize)
	}
	count, err := s.Count(id)
	if err != nil {
		return 0, err
	}
	if count == math.MaxUint32 {
		return 0, fmt.Errorf("%w: ballot counter of election %d", types.ErrOverflow, id)
	}
	index := types.BallotIndex(count)
	if err := b.SetBallot(id, index, ciphertext); err != nil {
		return 0, err
	}
	if err := b.SetBallotCount(id, count+1); err != nil {
		return 0, err
	}
	return index, nil
}

// Ballot returns the ciphertext at index.
func (s *BallotStore) Ballot(id types.ElectionID, index types.BallotIndex) ([]byte, error) {
	return wrapNotFound(s.stg.Ballot(id, index))
}

// Count returns the number of ballots stored for the election.
func (s *BallotStore) Count(id types.ElectionID) (uint32, error) {
	count, err := s.stg.BallotCount(id)
	if err != nil {
		return 0, fmt.Errorf("read ballot count: %w", err)
	}
	return count, nil
}

// Ballots returns every ciphertext of the election in index order.
func (s *BallotStore) Ballots(id types.ElectionID) ([][]byte, error) {
	count, err := s.Count(id)
	if err != nil {
		return nil, err
	}
	ballots := make([][]byte, 0, count)
	for i := range count {
		b, err := s.Ballot(id, types.BallotIndex(i))
		if err != nil {
			return nil, fmt.Errorf("ballot %d: %w", i, err)
		}
		ballots = append(ballots, b)
	}
	return ballots, nil
}
