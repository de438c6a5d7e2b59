package storage

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/mixvote/types"
)

// Height returns the persisted chain height, zero for a fresh database.
func (s *Storage) Height() (types.BlockNumber, error) {
	var h types.BlockNumber
	if err := s.getArtifact(chainPrefix, singletonKey, &h); err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return h, nil
}

// Nonce returns the next call nonce expected from addr.
func (s *Storage) Nonce(addr common.Address) (uint64, error) {
	var n uint64
	if err := s.getArtifact(noncePrefix, addr.Bytes(), &n); err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}
