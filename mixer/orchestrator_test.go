package mixer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/mixvote/chain"
	"github.com/vocdoni/mixvote/commitment"
	"github.com/vocdoni/mixvote/crypto/ethereum"
	"github.com/vocdoni/mixvote/events"
	"github.com/vocdoni/mixvote/mixjob"
	"github.com/vocdoni/mixvote/storage"
	"github.com/vocdoni/mixvote/types"
	"github.com/vocdoni/mixvote/voting"
	"go.vocdoni.io/dvote/db/metadb"
)

type testEnv struct {
	c      *qt.C
	chain  *chain.Chain
	admin  *ethereum.SignKeys
	worker *ethereum.SignKeys
}

func newSigner(c *qt.C) *ethereum.SignKeys {
	s := ethereum.NewSignKeys()
	c.Assert(s.Generate(), qt.IsNil)
	return s
}

func newTestEnv(t *testing.T) *testEnv {
	c := qt.New(t)
	stg := storage.New(metadb.NewTest(t))
	rec := events.NewRecorder(0, nil)
	ch, err := chain.New(stg,
		voting.NewManager(stg, rec, voting.Options{}),
		mixjob.NewTracker(stg, rec, mixjob.Options{}),
		nil)
	c.Assert(err, qt.IsNil)
	return &testEnv{c: c, chain: ch, admin: newSigner(c), worker: newSigner(c)}
}

func (e *testEnv) send(signer *ethereum.SignKeys, method string, payload any) *chain.Receipt {
	nonce, err := e.chain.Nonce(signer.Address())
	e.c.Assert(err, qt.IsNil)
	sc, err := chain.SignCall(signer, method, nonce, payload)
	e.c.Assert(err, qt.IsNil)
	r, err := e.chain.Dispatch(sc)
	e.c.Assert(err, qt.IsNil)
	return r
}

// setupElection creates an election whose voting ends at block 20, casts the
// ballots and submits a mix job for it.
func (e *testEnv) setupElection(id types.ElectionID, authority *ethereum.SignKeys, ballots [][]byte) types.JobID {
	e.send(e.admin, chain.MethodCreateElection, chain.CreateElectionPayload{
		ElectionID:           id,
		TallyAuthority:       authority.Address(),
		RegistrationDeadline: 10,
		VotingDeadline:       20,
	})
	for _, b := range ballots {
		voter := newSigner(e.c)
		e.send(e.admin, chain.MethodRegisterVoter, chain.RegisterVoterPayload{ElectionID: id, Voter: voter.Address()})
		e.send(voter, chain.MethodCastVote, chain.CastVotePayload{ElectionID: id, Ciphertext: b})
	}
	r := e.send(e.admin, chain.MethodSubmitJob, chain.SubmitJobPayload{ElectionID: id})
	return *r.JobID
}

func (e *testEnv) orchestrator(m Mixer) *Orchestrator {
	o, err := NewOrchestrator(&Config{Chain: e.chain, Signer: e.worker, Mixer: m, Parallel: 2})
	e.c.Assert(err, qt.IsNil)
	return o
}

func TestOrchestrator(t *testing.T) {
	env := newTestEnv(t)
	c := env.c
	ballots := [][]byte{[]byte("b0"), []byte("b1"), []byte("b2")}
	jobID := env.setupElection(1, env.worker, ballots)
	o := env.orchestrator(ReverseMixer{})

	// voting is still open
	c.Assert(env.chain.SetHeight(20), qt.IsNil)
	n, err := o.RunOnce(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 0)
	job, err := env.chain.Jobs().Job(jobID)
	c.Assert(err, qt.IsNil)
	c.Assert(job.Status, qt.Equals, types.JobPending)

	c.Assert(env.chain.SetHeight(21), qt.IsNil)
	n, err = o.RunOnce(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 1)

	job, err = env.chain.Jobs().Job(jobID)
	c.Assert(err, qt.IsNil)
	c.Assert(job.Status, qt.Equals, types.JobCompleted)
	c.Assert(job.ErrorMessage, qt.IsNil)

	election, err := env.chain.Voting().Election(1)
	c.Assert(err, qt.IsNil)
	c.Assert(election.Finalized, qt.IsTrue)
	inRoot, err := commitment.BallotsRoot(ballots)
	c.Assert(err, qt.IsNil)
	reversed := slices.Clone(ballots)
	slices.Reverse(reversed)
	outRoot, err := commitment.BallotsRoot(reversed)
	c.Assert(err, qt.IsNil)
	c.Assert(*election.CommitmentInputRoot, qt.Equals, inRoot)
	c.Assert(*election.CommitmentOutputRoot, qt.Equals, outRoot)

	tally, err := env.chain.Voting().TallyResult(1)
	c.Assert(err, qt.IsNil)
	c.Assert(tally.ResultHash, qt.Equals, outRoot)
	c.Assert(strings.HasPrefix(tally.ResultURI, "mixvote://elections/1/runs/"), qt.IsTrue)

	// nothing left to do
	n, err = o.RunOnce(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 0)
}

func TestOrchestratorFailures(t *testing.T) {
	env := newTestEnv(t)
	c := env.c

	// the orchestrator is not the tally authority of election 1
	notAuthority := env.setupElection(1, env.admin, [][]byte{[]byte("x")})
	// the mixer breaks on election 2
	broken := env.setupElection(2, env.worker, [][]byte{[]byte("y")})
	// election 3 does not exist
	orphan := *env.send(env.admin, chain.MethodSubmitJob, chain.SubmitJobPayload{ElectionID: 3}).JobID

	c.Assert(env.chain.SetHeight(30), qt.IsNil)
	o := env.orchestrator(MixerFunc(func(ctx context.Context, id types.ElectionID, b [][]byte) ([][]byte, error) {
		if id == 2 {
			return nil, errors.New("mixnet unreachable")
		}
		return ReverseMixer{}.Mix(ctx, id, b)
	}))
	n, err := o.RunOnce(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 2)

	for id, want := range map[types.JobID]string{
		broken:       "mixnet unreachable",
		orphan:       "not found",
	} {
		job, err := env.chain.Jobs().Job(id)
		c.Assert(err, qt.IsNil)
		c.Assert(job.Status, qt.Equals, types.JobFailed, qt.Commentf("job %d", id))
		c.Assert(job.ErrorMessage, qt.IsNotNil)
		c.Assert(strings.Contains(*job.ErrorMessage, want), qt.IsTrue, qt.Commentf("%q", *job.ErrorMessage))
	}

	election, err := env.chain.Voting().Election(2)
	c.Assert(err, qt.IsNil)
	c.Assert(election.Finalized, qt.IsFalse)

	// the job of another tally authority is left to that authority
	n, err = o.RunOnce(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 0)
	job, err := env.chain.Jobs().Job(notAuthority)
	c.Assert(err, qt.IsNil)
	c.Assert(job.Status, qt.Equals, types.JobPending)
	c.Assert(job.ErrorMessage, qt.IsNil)
	election, err = env.chain.Voting().Election(1)
	c.Assert(err, qt.IsNil)
	c.Assert(election.HasCommitments(), qt.IsFalse)
}

func TestOrchestratorParallel(t *testing.T) {
	env := newTestEnv(t)
	c := env.c

	for i := 1; i <= 5; i++ {
		env.setupElection(types.ElectionID(i), env.worker, [][]byte{[]byte(fmt.Sprintf("ballot-%d", i))})
	}
	c.Assert(env.chain.SetHeight(21), qt.IsNil)
	n, err := env.orchestrator(ReverseMixer{}).RunOnce(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 5)

	completed, err := env.chain.Jobs().JobsByStatus(types.JobCompleted)
	c.Assert(err, qt.IsNil)
	c.Assert(completed, qt.HasLen, 5)
	// each job issued four calls from the orchestrator account
	nonce, err := env.chain.Nonce(env.worker.Address())
	c.Assert(err, qt.IsNil)
	c.Assert(nonce, qt.Equals, uint64(20))
}

func TestReverseMixer(t *testing.T) {
	c := qt.New(t)
	in := [][]byte{{1}, {2}, {3}}
	out, err := ReverseMixer{}.Mix(context.Background(), 1, in)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.DeepEquals, [][]byte{{3}, {2}, {1}})
	c.Assert(in, qt.DeepEquals, [][]byte{{1}, {2}, {3}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ReverseMixer{}.Mix(ctx, 1, in)
	c.Assert(err, qt.ErrorIs, context.Canceled)
}

func TestTruncate(t *testing.T) {
	c := qt.New(t)
	c.Assert(truncate("short", 10), qt.Equals, "short")
	c.Assert(truncate("abcdef", 3), qt.Equals, "abc")
	// the two byte rune is dropped rather than split
	c.Assert(truncate("abñ", 3), qt.Equals, "ab")
}
