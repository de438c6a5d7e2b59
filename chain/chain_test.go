package chain

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/mixvote/crypto/ethereum"
	"github.com/vocdoni/mixvote/events"
	"github.com/vocdoni/mixvote/mixjob"
	"github.com/vocdoni/mixvote/storage"
	"github.com/vocdoni/mixvote/types"
	"github.com/vocdoni/mixvote/util"
	"github.com/vocdoni/mixvote/voting"
	"go.vocdoni.io/dvote/db/metadb"
)

type testChain struct {
	*Chain
	c   *qt.C
	rec *events.Recorder
}

func newTestChain(c *qt.C, stg *storage.Storage) *testChain {
	rec := events.NewRecorder(0, nil)
	manager := voting.NewManager(stg, rec, voting.Options{})
	tracker := mixjob.NewTracker(stg, rec, mixjob.Options{})
	ch, err := New(stg, manager, tracker, nil)
	c.Assert(err, qt.IsNil)
	return &testChain{Chain: ch, c: c, rec: rec}
}

func newSigner(c *qt.C) *ethereum.SignKeys {
	s := ethereum.NewSignKeys()
	c.Assert(s.Generate(), qt.IsNil)
	return s
}

// send signs and dispatches a call using the current account nonce.
func (tc *testChain) send(signer *ethereum.SignKeys, method string, payload any) (*Receipt, error) {
	nonce, err := tc.Nonce(signer.Address())
	tc.c.Assert(err, qt.IsNil)
	sc, err := SignCall(signer, method, nonce, payload)
	tc.c.Assert(err, qt.IsNil)
	return tc.Dispatch(sc)
}

func TestDispatchElection(t *testing.T) {
	c := qt.New(t)
	tc := newTestChain(c, storage.New(metadb.NewTest(t)))
	admin, authority, voter := newSigner(c), newSigner(c), newSigner(c)

	c.Assert(tc.SetHeight(1), qt.IsNil)
	r, err := tc.send(admin, MethodCreateElection, CreateElectionPayload{
		ElectionID:           1,
		TallyAuthority:       authority.Address(),
		RegistrationDeadline: 10,
		VotingDeadline:       20,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(r.Caller, qt.Equals, admin.Address())
	c.Assert(r.Block, qt.Equals, types.BlockNumber(1))
	c.Assert(r.Nonce, qt.Equals, uint64(0))

	c.Assert(tc.SetHeight(5), qt.IsNil)
	_, err = tc.send(admin, MethodRegisterVoter, RegisterVoterPayload{ElectionID: 1, Voter: voter.Address()})
	c.Assert(err, qt.IsNil)
	_, err = tc.send(admin, MethodRegisterVoter, RegisterVoterPayload{ElectionID: 1, Voter: voter.Address()})
	c.Assert(err, qt.ErrorIs, types.ErrAlreadyRegistered)

	c.Assert(tc.SetHeight(15), qt.IsNil)
	r, err = tc.send(voter, MethodCastVote, CastVotePayload{ElectionID: 1, Ciphertext: []byte("onion")})
	c.Assert(err, qt.IsNil)
	c.Assert(r.BallotIndex, qt.IsNotNil)
	c.Assert(*r.BallotIndex, qt.Equals, types.BallotIndex(0))

	c.Assert(tc.SetHeight(21), qt.IsNil)
	_, err = tc.send(voter, MethodCastVote, CastVotePayload{ElectionID: 1, Ciphertext: []byte("late")})
	c.Assert(err, qt.ErrorIs, types.ErrClosed)

	in, out := common.HexToHash("0x01"), common.HexToHash("0x02")
	_, err = tc.send(authority, MethodSubmitTally, SubmitTallyPayload{ElectionID: 1, ResultURI: "ipfs://x"})
	c.Assert(err, qt.ErrorIs, types.ErrCommitmentsMissing)
	_, err = tc.send(authority, MethodSetMixCommitments, SetMixCommitmentsPayload{ElectionID: 1, InputRoot: in, OutputRoot: out})
	c.Assert(err, qt.IsNil)
	_, err = tc.send(authority, MethodSubmitTally, SubmitTallyPayload{ElectionID: 1, ResultURI: "ipfs://x"})
	c.Assert(err, qt.IsNil)

	e, err := tc.Voting().Election(1)
	c.Assert(err, qt.IsNil)
	c.Assert(e.Finalized, qt.IsTrue)
	c.Assert(tc.rec.Last(), qt.Equals, types.Event(types.TallySubmitted{ElectionID: 1}))

	// failed operations consume the nonce as well
	nonce, err := tc.Nonce(authority.Address())
	c.Assert(err, qt.IsNil)
	c.Assert(nonce, qt.Equals, uint64(3))
}

func TestDispatchJobs(t *testing.T) {
	c := qt.New(t)
	tc := newTestChain(c, storage.New(metadb.NewTest(t)))
	requester, worker := newSigner(c), newSigner(c)

	r, err := tc.send(requester, MethodSubmitJob, SubmitJobPayload{ElectionID: 47})
	c.Assert(err, qt.IsNil)
	c.Assert(*r.JobID, qt.Equals, types.JobID(0))

	source := uint32(1000)
	r, err = tc.send(requester, MethodSubmitJob, SubmitJobPayload{ElectionID: 48, SourceChain: &source})
	c.Assert(err, qt.IsNil)
	c.Assert(*r.JobID, qt.Equals, types.JobID(1))
	job, err := tc.Jobs().Job(1)
	c.Assert(err, qt.IsNil)
	c.Assert(*job.SourceChain, qt.Equals, source)

	// any signer can update a job
	_, err = tc.send(worker, MethodUpdateJobStatus, UpdateJobStatusPayload{JobID: 0, Status: types.JobRunning})
	c.Assert(err, qt.IsNil)
	_, err = tc.send(worker, MethodUpdateJobStatus, UpdateJobStatusPayload{JobID: 0, Status: types.JobCompleted})
	c.Assert(err, qt.IsNil)
	_, err = tc.send(worker, MethodUpdateJobStatus, UpdateJobStatusPayload{JobID: 0, Status: types.JobRunning})
	c.Assert(err, qt.ErrorIs, types.ErrInvalidTransition)

	// status travels as text
	sc, err := SignCall(worker, MethodUpdateJobStatus, 3, json.RawMessage(`{"jobId":1,"status":"failed","errorMessage":"boom"}`))
	c.Assert(err, qt.IsNil)
	_, err = tc.Dispatch(sc)
	c.Assert(err, qt.IsNil)
	job, err = tc.Jobs().Job(1)
	c.Assert(err, qt.IsNil)
	c.Assert(job.Status, qt.Equals, types.JobFailed)
	c.Assert(*job.ErrorMessage, qt.Equals, "boom")
}

func TestDispatchErrors(t *testing.T) {
	c := qt.New(t)
	tc := newTestChain(c, storage.New(metadb.NewTest(t)))
	signer := newSigner(c)

	sc, err := SignCall(signer, MethodSubmitJob, 1, SubmitJobPayload{ElectionID: 1})
	c.Assert(err, qt.IsNil)
	_, err = tc.Dispatch(sc)
	c.Assert(err, qt.ErrorIs, ErrBadNonce)

	sc, err = SignCall(signer, "drop_election", 0, struct{}{})
	c.Assert(err, qt.IsNil)
	_, err = tc.Dispatch(sc)
	c.Assert(err, qt.ErrorIs, ErrUnknownMethod)

	sc, err = SignCall(signer, MethodSubmitJob, 0, map[string]any{"electionId": "one"})
	c.Assert(err, qt.IsNil)
	_, err = tc.Dispatch(sc)
	c.Assert(err, qt.ErrorIs, ErrMalformedPayload)

	sc, err = SignCall(signer, MethodSubmitJob, 0, map[string]any{"electionId": 1, "extra": true})
	c.Assert(err, qt.IsNil)
	_, err = tc.Dispatch(sc)
	c.Assert(err, qt.ErrorIs, ErrMalformedPayload)

	sc, err = SignCall(signer, MethodSubmitJob, 0, SubmitJobPayload{ElectionID: 1})
	c.Assert(err, qt.IsNil)
	sc.Signature = sc.Signature[:20]
	_, err = tc.Dispatch(sc)
	c.Assert(err, qt.ErrorIs, ErrInvalidSignature)

	// none of the rejected calls consumed the nonce
	nonce, err := tc.Nonce(signer.Address())
	c.Assert(err, qt.IsNil)
	c.Assert(nonce, qt.Equals, uint64(0))

	// a tampered call recovers another signer, whose nonce does not match
	sc, err = SignCall(signer, MethodSubmitJob, 5, SubmitJobPayload{ElectionID: 1})
	c.Assert(err, qt.IsNil)
	sc.Nonce = 7
	_, err = tc.Dispatch(sc)
	c.Assert(err, qt.ErrorIs, ErrBadNonce)

	// replays are rejected
	sc, err = SignCall(signer, MethodSubmitJob, 0, SubmitJobPayload{ElectionID: 1})
	c.Assert(err, qt.IsNil)
	_, err = tc.Dispatch(sc)
	c.Assert(err, qt.IsNil)
	_, err = tc.Dispatch(sc)
	c.Assert(err, qt.ErrorIs, ErrBadNonce)
}

// nonceSink records the committed nonce of addr when each event arrives.
type nonceSink struct {
	stg    *storage.Storage
	addr   common.Address
	nonces []uint64
}

func (s *nonceSink) Emit(types.Event) {
	n, err := s.stg.Nonce(s.addr)
	if err != nil {
		panic(err)
	}
	s.nonces = append(s.nonces, n)
}

func TestExecuteNonceAndOperationCommit(t *testing.T) {
	c := qt.New(t)
	stg := storage.New(metadb.NewTest(t))
	admin := newSigner(c)
	sink := &nonceSink{stg: stg, addr: admin.Address()}
	manager := voting.NewManager(stg, sink, voting.Options{})
	ch, err := New(stg, manager, mixjob.NewTracker(stg, sink, mixjob.Options{}), nil)
	c.Assert(err, qt.IsNil)
	tc := &testChain{Chain: ch, c: c}

	payload := CreateElectionPayload{
		ElectionID:           1,
		TallyAuthority:       util.RandomAddress(),
		RegistrationDeadline: 10,
		VotingDeadline:       20,
	}
	_, err = tc.send(admin, MethodCreateElection, payload)
	c.Assert(err, qt.IsNil)
	// the event fires after the election and the nonce were committed together
	c.Assert(sink.nonces, qt.DeepEquals, []uint64{1})
	exists, err := stg.ElectionExists(1)
	c.Assert(err, qt.IsNil)
	c.Assert(exists, qt.IsTrue)

	// a failed operation consumes the nonce and stages nothing
	payload.ElectionID = 2
	payload.RegistrationDeadline = 30
	_, err = tc.send(admin, MethodCreateElection, payload)
	c.Assert(err, qt.ErrorIs, types.ErrInvalidWindow)
	nonce, err := tc.Nonce(admin.Address())
	c.Assert(err, qt.IsNil)
	c.Assert(nonce, qt.Equals, uint64(2))
	exists, err = stg.ElectionExists(2)
	c.Assert(err, qt.IsNil)
	c.Assert(exists, qt.IsFalse)
	c.Assert(sink.nonces, qt.HasLen, 1)
}

func TestHeight(t *testing.T) {
	c := qt.New(t)
	stg := storage.New(metadb.NewTest(t))
	tc := newTestChain(c, stg)

	c.Assert(tc.Height(), qt.Equals, types.BlockNumber(0))
	h, err := tc.AdvanceBlock()
	c.Assert(err, qt.IsNil)
	c.Assert(h, qt.Equals, types.BlockNumber(1))
	c.Assert(tc.SetHeight(9), qt.IsNil)
	c.Assert(tc.SetHeight(9), qt.IsNil)
	c.Assert(tc.SetHeight(8), qt.ErrorIs, ErrHeightRegression)

	// the height survives a restart
	restarted := newTestChain(c, stg)
	c.Assert(restarted.Height(), qt.Equals, types.BlockNumber(9))
}

func TestExecuteTrustedCaller(t *testing.T) {
	c := qt.New(t)
	tc := newTestChain(c, storage.New(metadb.NewTest(t)))
	caller := util.RandomAddress()

	call, err := NewCall(MethodSubmitJob, 0, SubmitJobPayload{ElectionID: 3})
	c.Assert(err, qt.IsNil)
	r, err := tc.Execute(caller, call)
	c.Assert(err, qt.IsNil)
	c.Assert(r.Caller, qt.Equals, caller)
	c.Assert(tc.rec.Last(), qt.Equals, types.Event(types.JobSubmitted{JobID: 0, ElectionID: 3, Requester: caller}))
}
