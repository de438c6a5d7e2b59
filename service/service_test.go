package service

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/mixvote/chain"
	"github.com/vocdoni/mixvote/crypto/ethereum"
	"github.com/vocdoni/mixvote/events"
	"github.com/vocdoni/mixvote/mixer"
	"github.com/vocdoni/mixvote/mixjob"
	"github.com/vocdoni/mixvote/storage"
	"github.com/vocdoni/mixvote/types"
	"github.com/vocdoni/mixvote/voting"
)

type testEnv struct {
	c     *qt.C
	chain *chain.Chain
}

func newTestEnv(t *testing.T) *testEnv {
	c := qt.New(t)
	stg := storage.New(memdb.New())
	t.Cleanup(stg.Close)
	rec := events.NewRecorder(0, nil)
	ch, err := chain.New(stg,
		voting.NewManager(stg, rec, voting.Options{}),
		mixjob.NewTracker(stg, rec, mixjob.Options{}),
		nil)
	c.Assert(err, qt.IsNil)
	return &testEnv{c: c, chain: ch}
}

func (e *testEnv) signer() *ethereum.SignKeys {
	s := ethereum.NewSignKeys()
	e.c.Assert(s.Generate(), qt.IsNil)
	return s
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

// waitFor polls cond until it holds or the timeout expires.
func waitFor(c *qt.C, timeout time.Duration, cond func() bool) {
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			c.Fatalf("condition not met after %s", timeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBlockService(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)

	bs := NewBlockService(env.chain, 10*time.Millisecond)
	ctx := context.Background()
	c.Assert(bs.Start(ctx), qt.IsNil)
	c.Assert(bs.Start(ctx), qt.ErrorMatches, "service already running")

	waitFor(c, 5*time.Second, func() bool { return env.chain.Height() >= 3 })
	bs.Stop()
	h := env.chain.Height()
	time.Sleep(50 * time.Millisecond)
	c.Assert(env.chain.Height(), qt.Equals, h)

	// stopping twice is a no-op and the service can be restarted
	bs.Stop()
	c.Assert(bs.Start(ctx), qt.IsNil)
	waitFor(c, 5*time.Second, func() bool { return env.chain.Height() > h })
	bs.Stop()

	c.Assert(NewBlockService(env.chain, 0).Start(ctx), qt.ErrorMatches, "invalid interval 0s")
}

func TestMixerService(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	admin, worker := env.signer(), env.signer()

	electionID := types.ElectionID(9)
	env.send(admin, chain.MethodCreateElection, chain.CreateElectionPayload{
		ElectionID:           electionID,
		TallyAuthority:       worker.Address(),
		RegistrationDeadline: 2,
		VotingDeadline:       4,
	})
	for _, b := range []string{"a", "b", "c"} {
		voter := env.signer()
		env.send(admin, chain.MethodRegisterVoter, chain.RegisterVoterPayload{ElectionID: electionID, Voter: voter.Address()})
		env.send(voter, chain.MethodCastVote, chain.CastVotePayload{ElectionID: electionID, Ciphertext: []byte(b)})
	}
	jobID := *env.send(admin, chain.MethodSubmitJob, chain.SubmitJobPayload{ElectionID: electionID}).JobID

	o, err := mixer.NewOrchestrator(&mixer.Config{Chain: env.chain, Signer: worker, Mixer: mixer.ReverseMixer{}})
	c.Assert(err, qt.IsNil)
	ms := NewMixer(o, 10*time.Millisecond)
	bs := NewBlockService(env.chain, 10*time.Millisecond)

	ctx := context.Background()
	c.Assert(ms.Start(ctx), qt.IsNil)
	defer ms.Stop()
	c.Assert(bs.Start(ctx), qt.IsNil)
	defer bs.Stop()

	waitFor(c, 10*time.Second, func() bool {
		job, err := env.chain.Jobs().Job(jobID)
		c.Assert(err, qt.IsNil)
		return job.Status == types.JobCompleted
	})
	c.Assert(env.chain.Height() > 4, qt.IsTrue)

	tally, err := env.chain.Voting().TallyResult(electionID)
	c.Assert(err, qt.IsNil)
	c.Assert(tally.ResultURI, qt.Matches, `mixvote://elections/9/.*`)
}
