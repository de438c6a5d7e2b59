package api

import (
	"net/http"

	"github.com/vocdoni/mixvote/types"
)

// jobs lists the mix jobs, optionally only those in a given status
// GET /jobs?status=pending
func (a *API) jobs(w http.ResponseWriter, r *http.Request) {
	var (
		list []*types.MixJob
		err  error
	)
	if s := r.URL.Query().Get(StatusQueryKey); s != "" {
		status, perr := types.ParseJobStatus(s)
		if perr != nil {
			ErrMalformedParam.WithErr(perr).Write(w)
			return
		}
		list, err = a.chain.Jobs().JobsByStatus(status)
	} else {
		list, err = a.chain.Jobs().Jobs()
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	if list == nil {
		list = []*types.MixJob{}
	}
	httpWriteJSON(w, &Jobs{Jobs: list})
}

// job returns a mix job
// GET /jobs/{jobId}
func (a *API) job(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, JobURLParam, 64)
	if err != nil {
		writeErr(w, err)
		return
	}
	job, err := a.chain.Jobs().Job(types.JobID(id))
	if err != nil {
		writeErr(w, err)
		return
	}
	httpWriteJSON(w, job)
}
