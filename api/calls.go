package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vocdoni/mixvote/chain"
	"github.com/vocdoni/mixvote/log"
)

// submitCall executes a signed call on the chain
// POST /calls
func (a *API) submitCall(w http.ResponseWriter, r *http.Request) {
	sc := &chain.SignedCall{}
	if err := json.NewDecoder(r.Body).Decode(sc); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	receipt, err := a.chain.Dispatch(sc)
	if err != nil {
		writeErr(w, err)
		return
	}
	log.Debugw("call executed",
		"method", receipt.Method,
		"caller", receipt.Caller.Hex(),
		"nonce", receipt.Nonce,
		"block", receipt.Block)
	httpWriteJSON(w, receipt)
}

// chainInfo returns the current height
// GET /chain
func (a *API) chainInfo(w http.ResponseWriter, r *http.Request) {
	httpWriteJSON(w, &ChainInfo{Height: a.chain.Height()})
}

// nonce returns the next nonce expected from an account
// GET /accounts/{address}/nonce
func (a *API) nonce(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	n, err := a.chain.Nonce(addr)
	if err != nil {
		writeErr(w, err)
		return
	}
	httpWriteJSON(w, &Nonce{Address: addr, Nonce: n})
}

// eventsSince returns the recorded events starting at a sequence number
// GET /events?from=N
func (a *API) eventsSince(w http.ResponseWriter, r *http.Request) {
	if a.events == nil {
		ErrResourceNotFound.With("events are not recorded").Write(w)
		return
	}
	var from uint64
	if s := r.URL.Query().Get(FromQueryKey); s != "" {
		var err error
		if from, err = strconv.ParseUint(s, 10, 64); err != nil {
			ErrMalformedParam.Withf("from: %v", err).Write(w)
			return
		}
	}
	resp := &Events{Events: []Event{}, Next: from}
	for _, rec := range a.events.Since(from) {
		data, err := json.Marshal(rec.Data)
		if err != nil {
			ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
			return
		}
		resp.Events = append(resp.Events, Event{
			Seq:   rec.Seq,
			Block: rec.Block,
			Name:  rec.Name,
			Data:  data,
		})
		resp.Next = rec.Seq + 1
	}
	httpWriteJSON(w, resp)
}
