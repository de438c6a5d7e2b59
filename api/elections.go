package api

import (
	"net/http"
	"strconv"

	"github.com/vocdoni/mixvote/types"
)

// elections lists the ids of all the elections
// GET /elections
func (a *API) elections(w http.ResponseWriter, r *http.Request) {
	ids, err := a.chain.Voting().Elections()
	if err != nil {
		writeErr(w, err)
		return
	}
	if ids == nil {
		ids = []types.ElectionID{}
	}
	httpWriteJSON(w, &Elections{Elections: ids})
}

// election returns the election record and its ballot count
// GET /elections/{electionId}
func (a *API) election(w http.ResponseWriter, r *http.Request) {
	id, err := electionIDParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	e, err := a.chain.Voting().Election(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	count, err := a.chain.Voting().Ballots().Count(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	httpWriteJSON(w, &ElectionInfo{Election: e, BallotCount: count})
}

// voter tells whether an account is registered in the election
// GET /elections/{electionId}/voters/{address}
func (a *API) voter(w http.ResponseWriter, r *http.Request) {
	id, err := electionIDParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	addr, err := addressParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if _, err := a.chain.Voting().Election(id); err != nil {
		writeErr(w, err)
		return
	}
	registered, err := a.chain.Voting().Voters().IsRegistered(id, addr)
	if err != nil {
		writeErr(w, err)
		return
	}
	httpWriteJSON(w, &VoterStatus{ElectionID: id, Voter: addr, Registered: registered})
}

// ballots returns the ballot count, and all the ballots when withData=true
// GET /elections/{electionId}/ballots
func (a *API) ballots(w http.ResponseWriter, r *http.Request) {
	id, err := electionIDParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if _, err := a.chain.Voting().Election(id); err != nil {
		writeErr(w, err)
		return
	}
	withData := false
	if s := r.URL.Query().Get(WithDataQueryKey); s != "" {
		if withData, err = strconv.ParseBool(s); err != nil {
			ErrMalformedParam.Withf("%s: %v", WithDataQueryKey, err).Write(w)
			return
		}
	}
	store := a.chain.Voting().Ballots()
	resp := &Ballots{ElectionID: id}
	if !withData {
		if resp.Count, err = store.Count(id); err != nil {
			writeErr(w, err)
			return
		}
		httpWriteJSON(w, resp)
		return
	}
	ciphertexts, err := store.Ballots(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	resp.Count = uint32(len(ciphertexts))
	for i, ct := range ciphertexts {
		resp.Ballots = append(resp.Ballots, Ballot{Index: types.BallotIndex(i), Ciphertext: ct})
	}
	httpWriteJSON(w, resp)
}

// ballot returns a single ballot
// GET /elections/{electionId}/ballots/{index}
func (a *API) ballot(w http.ResponseWriter, r *http.Request) {
	id, err := electionIDParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	index, err := uintParam(r, BallotURLParam, 32)
	if err != nil {
		writeErr(w, err)
		return
	}
	ct, err := a.chain.Voting().Ballots().Ballot(id, types.BallotIndex(index))
	if err != nil {
		writeErr(w, err)
		return
	}
	httpWriteJSON(w, &Ballot{Index: types.BallotIndex(index), Ciphertext: ct})
}

// tally returns the result of a finalized election
// GET /elections/{electionId}/tally
func (a *API) tally(w http.ResponseWriter, r *http.Request) {
	id, err := electionIDParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	result, err := a.chain.Voting().TallyResult(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	httpWriteJSON(w, result)
}

// electionJob returns the last mix job submitted for the election
// GET /elections/{electionId}/job
func (a *API) electionJob(w http.ResponseWriter, r *http.Request) {
	id, err := electionIDParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	jobID, err := a.chain.Jobs().LastJobForElection(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	job, err := a.chain.Jobs().Job(jobID)
	if err != nil {
		writeErr(w, err)
		return
	}
	httpWriteJSON(w, job)
}
