package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/mixvote/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// Batch groups the writes of a single operation on top of one database
// transaction. Nothing is visible to readers until Commit.
type Batch struct {
	tx       db.WriteTx
	onCommit []func()
}

func (b *Batch) setArtifact(prefix, key []byte, v any) error {
	data, err := encodeArtifact(v)
	if err != nil {
		return err
	}
	if err := prefixeddb.NewPrefixedWriteTx(b.tx, prefix).Set(key, data); err != nil {
		return fmt.Errorf("set %s%x: %w", prefix, key, err)
	}
	return nil
}

// OnCommit registers fn to run after the batch is committed. Hooks run in
// registration order and are dropped if the batch is discarded or the
// commit fails.
func (b *Batch) OnCommit(fn func()) {
	b.onCommit = append(b.onCommit, fn)
}

// Commit persists every write of the batch atomically and then runs the
// OnCommit hooks.
func (b *Batch) Commit() error {
	if err := b.tx.Commit(); err != nil {
		b.onCommit = nil
		return err
	}
	hooks := b.onCommit
	b.onCommit = nil
	for _, fn := range hooks {
		fn()
	}
	return nil
}

// Discard drops the batch and its pending hooks. It is safe to call after
// Commit.
func (b *Batch) Discard() {
	b.onCommit = nil
	b.tx.Discard()
}

// SetElection stores the election record.
func (b *Batch) SetElection(e *types.Election) error {
	if e == nil {
		return fmt.Errorf("nil election")
	}
	return b.setArtifact(electionPrefix, electionKey(e.ID), e)
}

// SetVoterRegistered marks voter as registered for the election.
func (b *Batch) SetVoterRegistered(id types.ElectionID, voter common.Address) error {
	return b.setArtifact(voterPrefix, voterKey(id, voter), true)
}

// SetBallot stores the ciphertext at the given index.
func (b *Batch) SetBallot(id types.ElectionID, index types.BallotIndex, ciphertext []byte) error {
	return b.setArtifact(ballotPrefix, ballotKey(id, index), ciphertext)
}

// SetBallotCount stores the number of ballots of the election.
func (b *Batch) SetBallotCount(id types.ElectionID, count uint32) error {
	return b.setArtifact(ballotCountPrefix, electionKey(id), count)
}

// SetTallyResult stores the final tally of the election.
func (b *Batch) SetTallyResult(id types.ElectionID, r *types.TallyResult) error {
	if r == nil {
		return fmt.Errorf("nil tally result")
	}
	return b.setArtifact(tallyPrefix, electionKey(id), r)
}

// SetJob stores the mix job record.
func (b *Batch) SetJob(j *types.MixJob) error {
	if j == nil {
		return fmt.Errorf("nil job")
	}
	return b.setArtifact(jobPrefix, jobKey(j.ID), j)
}

// SetNextJobID stores the id that will be assigned to the next job.
func (b *Batch) SetNextJobID(id types.JobID) error {
	return b.setArtifact(nextJobPrefix, singletonKey, id)
}

// SetLastJobForElection points the election to its most recent job.
func (b *Batch) SetLastJobForElection(eid types.ElectionID, jid types.JobID) error {
	return b.setArtifact(lastJobPrefix, electionKey(eid), jid)
}

// SetNonce stores the next expected call nonce of an account.
func (b *Batch) SetNonce(addr common.Address, nonce uint64) error {
	return b.setArtifact(noncePrefix, addr.Bytes(), nonce)
}

// SetHeight stores the chain height.
func (b *Batch) SetHeight(height types.BlockNumber) error {
	return b.setArtifact(chainPrefix, singletonKey, height)
}
