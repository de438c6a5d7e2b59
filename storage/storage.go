// storage package keeps the ledger state in a prefixed key-value store. Every
// record is cbor encoded. The following prefixes are used:
//   - 'c/' for the chain height
//   - 'e/' for elections
//   - 'v/' for voter registrations
//   - 'b/' for ballots
//   - 'bc/' for ballot counters
//   - 't/' for tally results
//   - 'j/' for mix jobs
//   - 'nj/' for the next job id
//   - 'lj/' for the last job submitted per election
//   - 'n/' for account nonces
//
// Reads always go to the committed state. Writes are grouped in a Batch that
// is committed at once, so an operation either persists all of its mutations
// or none of them.
package storage

import (
	"errors"
	"fmt"

	"github.com/vocdoni/mixvote/log"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	// Prefixes for the keys in the database.
	chainPrefix       = []byte("c/")
	electionPrefix    = []byte("e/")
	voterPrefix       = []byte("v/")
	ballotPrefix      = []byte("b/")
	ballotCountPrefix = []byte("bc/")
	tallyPrefix       = []byte("t/")
	jobPrefix         = []byte("j/")
	nextJobPrefix     = []byte("nj/")
	lastJobPrefix     = []byte("lj/")
	noncePrefix       = []byte("n/")

	// ErrNotFound is returned when the requested key does not exist.
	ErrNotFound = errors.New("not found")
)

// Storage wraps the database holding the ledger state.
type Storage struct {
	db db.Database
}

// New creates a new Storage instance.
func New(db db.Database) *Storage {
	return &Storage{db: db}
}

// Close closes the storage.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Warnw("failed to close storage", "error", err.Error())
	}
}

// NewBatch opens a write batch. The caller must either Commit or Discard it.
func (s *Storage) NewBatch() *Batch {
	return &Batch{tx: s.db.WriteTx()}
}

// getArtifact decodes the value stored under prefix+key into out. Returns
// ErrNotFound if the key does not exist.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	data, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get %s%x: %w", prefix, key, err)
	}
	if err := decodeArtifact(data, out); err != nil {
		return fmt.Errorf("decode %s%x: %w", prefix, key, err)
	}
	return nil
}

// hasArtifact reports whether prefix+key exists.
func (s *Storage) hasArtifact(prefix, key []byte) (bool, error) {
	_, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// iterateArtifacts calls fn for every key/value stored under prefix. The
// slices are only valid during the callback. Iteration stops when fn
// returns false.
func (s *Storage) iterateArtifacts(prefix []byte, fn func(k, v []byte) bool) error {
	return prefixeddb.NewPrefixedReader(s.db, prefix).Iterate(nil, fn)
}
