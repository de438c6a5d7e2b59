package storage

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/mixvote/types"
	"github.com/vocdoni/mixvote/util"
	"go.vocdoni.io/dvote/db/metadb"
)

func TestElection(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	_, err := stg.Election(1)
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	root := common.HexToHash("0x01")
	e := &types.Election{
		ID:                   1,
		Admin:                util.RandomAddress(),
		TallyAuthority:       util.RandomAddress(),
		RegistrationDeadline: 10,
		VotingDeadline:       20,
		CommitmentInputRoot:  &root,
	}
	b := stg.NewBatch()
	c.Assert(b.SetElection(e), qt.IsNil)
	c.Assert(b.SetBallotCount(1, 0), qt.IsNil)

	// nothing is visible before commit
	exists, err := stg.ElectionExists(1)
	c.Assert(err, qt.IsNil)
	c.Assert(exists, qt.IsFalse)

	c.Assert(b.Commit(), qt.IsNil)
	b.Discard()

	got, err := stg.Election(1)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, e)

	ids, err := stg.ListElections()
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.DeepEquals, []types.ElectionID{1})
}

func TestDiscardedBatch(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	voter := util.RandomAddress()
	b := stg.NewBatch()
	c.Assert(b.SetVoterRegistered(3, voter), qt.IsNil)
	c.Assert(b.SetBallot(3, 0, []byte("ciphertext")), qt.IsNil)
	b.Discard()

	registered, err := stg.VoterRegistered(3, voter)
	c.Assert(err, qt.IsNil)
	c.Assert(registered, qt.IsFalse)
	_, err = stg.Ballot(3, 0)
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestBatchOnCommit(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	var calls []string
	b := stg.NewBatch()
	c.Assert(b.SetNonce(common.Address{1}, 1), qt.IsNil)
	b.OnCommit(func() {
		// the writes are visible once the hooks run
		nonce, err := stg.Nonce(common.Address{1})
		c.Check(err, qt.IsNil)
		c.Check(nonce, qt.Equals, uint64(1))
		calls = append(calls, "first")
	})
	b.OnCommit(func() { calls = append(calls, "second") })
	c.Assert(calls, qt.HasLen, 0)
	c.Assert(b.Commit(), qt.IsNil)
	b.Discard()
	c.Assert(calls, qt.DeepEquals, []string{"first", "second"})

	// hooks of a discarded batch never run
	calls = nil
	b = stg.NewBatch()
	c.Assert(b.SetNonce(common.Address{2}, 1), qt.IsNil)
	b.OnCommit(func() { calls = append(calls, "discarded") })
	b.Discard()
	c.Assert(calls, qt.HasLen, 0)
	nonce, err := stg.Nonce(common.Address{2})
	c.Assert(err, qt.IsNil)
	c.Assert(nonce, qt.Equals, uint64(0))
}

func TestBallots(t *testing.T) {
	c := qt.New(t)
	stg := New(memdb.New())

	count, err := stg.BallotCount(5)
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint32(0))

	b := stg.NewBatch()
	c.Assert(b.SetBallot(5, 0, []byte{0x0a}), qt.IsNil)
	c.Assert(b.SetBallot(5, 1, []byte{0x0b}), qt.IsNil)
	c.Assert(b.SetBallot(6, 0, []byte{0x0c}), qt.IsNil)
	c.Assert(b.SetBallotCount(5, 2), qt.IsNil)
	c.Assert(b.Commit(), qt.IsNil)

	count, err = stg.BallotCount(5)
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint32(2))

	ballot, err := stg.Ballot(5, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(ballot, qt.DeepEquals, []byte{0x0b})
	ballot, err = stg.Ballot(6, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(ballot, qt.DeepEquals, []byte{0x0c})
}

func TestJobs(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	next, err := stg.NextJobID()
	c.Assert(err, qt.IsNil)
	c.Assert(next, qt.Equals, types.JobID(0))
	_, err = stg.LastJobForElection(47)
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	chain := uint32(2)
	msg := "boom"
	jobs := []*types.MixJob{
		{ID: 2, ElectionID: 47, Status: types.JobFailed, ErrorMessage: &msg},
		{ID: 0, ElectionID: 47, Status: types.JobPending},
		{ID: 1, ElectionID: 48, Status: types.JobRunning, SourceChain: &chain},
	}
	b := stg.NewBatch()
	for _, j := range jobs {
		c.Assert(b.SetJob(j), qt.IsNil)
	}
	c.Assert(b.SetNextJobID(3), qt.IsNil)
	c.Assert(b.SetLastJobForElection(47, 2), qt.IsNil)
	c.Assert(b.Commit(), qt.IsNil)

	count, err := stg.CountJobs()
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, 3)

	all, err := stg.Jobs(nil)
	c.Assert(err, qt.IsNil)
	c.Assert(all, qt.HasLen, 3)
	for i, j := range all {
		c.Assert(j.ID, qt.Equals, types.JobID(i))
	}
	c.Assert(all[1].SourceChain, qt.IsNotNil)
	c.Assert(*all[1].SourceChain, qt.Equals, chain)
	c.Assert(*all[2].ErrorMessage, qt.Equals, msg)

	pending, err := stg.Jobs(func(j *types.MixJob) bool { return j.Status == types.JobPending })
	c.Assert(err, qt.IsNil)
	c.Assert(pending, qt.HasLen, 1)

	next, err = stg.NextJobID()
	c.Assert(err, qt.IsNil)
	c.Assert(next, qt.Equals, types.JobID(3))
	last, err := stg.LastJobForElection(47)
	c.Assert(err, qt.IsNil)
	c.Assert(last, qt.Equals, types.JobID(2))
}

func TestChainState(t *testing.T) {
	c := qt.New(t)
	stg := New(memdb.New())

	addr := util.RandomAddress()
	h, err := stg.Height()
	c.Assert(err, qt.IsNil)
	c.Assert(h, qt.Equals, types.BlockNumber(0))
	n, err := stg.Nonce(addr)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, uint64(0))

	b := stg.NewBatch()
	c.Assert(b.SetHeight(12), qt.IsNil)
	c.Assert(b.SetNonce(addr, 4), qt.IsNil)
	c.Assert(b.Commit(), qt.IsNil)

	h, err = stg.Height()
	c.Assert(err, qt.IsNil)
	c.Assert(h, qt.Equals, types.BlockNumber(12))
	n, err = stg.Nonce(addr)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, uint64(4))
}
