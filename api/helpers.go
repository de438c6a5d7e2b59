package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/mixvote/log"
	"github.com/vocdoni/mixvote/types"
)

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
	log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// electionIDParam parses the election id of the request URL.
func electionIDParam(r *http.Request) (types.ElectionID, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, ElectionURLParam), 10, 32)
	if err != nil {
		return 0, ErrMalformedParam.Withf("election id: %v", err)
	}
	return types.ElectionID(id), nil
}

// addressParam parses the hex address of the request URL.
func addressParam(r *http.Request) (common.Address, error) {
	s := chi.URLParam(r, AddressURLParam)
	if !common.IsHexAddress(s) {
		return common.Address{}, ErrMalformedParam.Withf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// uintParam parses a decimal URL parameter with the given bit size.
func uintParam(r *http.Request, name string, bitSize int) (uint64, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, bitSize)
	if err != nil {
		return 0, ErrMalformedParam.Withf("%s: %v", name, err)
	}
	return v, nil
}

// writeErr writes err, which is either an API Error or a ledger error.
func writeErr(w http.ResponseWriter, err error) {
	if apiErr, ok := err.(Error); ok {
		apiErr.Write(w)
		return
	}
	apiError(err).Write(w)
}
