package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vocdoni/mixvote/chain"
	"github.com/vocdoni/mixvote/log"
	"github.com/vocdoni/mixvote/types"
)

// Error is used by handler functions to wrap errors, assigning a unique error code
// and also specifying which HTTP Status should be used.
type Error struct {
	Err        error
	Code       int
	HTTPstatus int
}

// MarshalJSON returns a JSON containing Err.Error() and Code. Field HTTPstatus is ignored.
//
// Example output: {"error":"closed: voting of election 1","code":40014}
func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(
		struct {
			Err  string `json:"error"`
			Code int    `json:"code"`
		}{
			Err:  e.Err.Error(),
			Code: e.Code,
		})
}

// Error returns the Message contained inside the APIerror
func (e Error) Error() string {
	return e.Err.Error()
}

// Write serializes a JSON msg using APIerror.Message and APIerror.Code
// and writes it with the APIerror.HTTPstatus.
func (e Error) Write(w http.ResponseWriter) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Warn(err)
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	if log.Level() == log.LogLevelDebug {
		log.Debugw("API error response", "error", e.Error(), "code", e.Code, "httpStatus", e.HTTPstatus)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(e.HTTPstatus)
	if _, err := w.Write(append(msg, '\n')); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// Withf returns a copy of APIerror with the Sprintf formatted string appended at the end of e.Err
func (e Error) Withf(format string, args ...any) Error {
	return e.With(fmt.Sprintf(format, args...))
}

// With returns a copy of APIerror with the string appended at the end of e.Err
func (e Error) With(s string) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, s),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// WithErr returns a copy of APIerror with err.Error() appended at the end of e.Err
func (e Error) WithErr(err error) Error {
	return e.With(err.Error())
}

// errorMapping pairs the ledger errors with their API counterpart. The first
// match wins.
var errorMapping = []struct {
	err error
	api Error
}{
	{chain.ErrInvalidSignature, ErrInvalidSignature},
	{chain.ErrBadNonce, ErrBadNonce},
	{chain.ErrUnknownMethod, ErrUnknownMethod},
	{chain.ErrMalformedPayload, ErrMalformedCallParams},
	{types.ErrNotFound, ErrResourceNotFound},
	{types.ErrAlreadyExists, ErrAlreadyExists},
	{types.ErrInvalidWindow, ErrInvalidWindow},
	{types.ErrUnauthorized, ErrUnauthorized},
	{types.ErrClosed, ErrClosed},
	{types.ErrAlreadyRegistered, ErrAlreadyRegistered},
	{types.ErrNotRegistered, ErrNotRegistered},
	{types.ErrTooLarge, ErrTooLarge},
	{types.ErrCommitmentsMissing, ErrCommitmentsMissing},
	{types.ErrLimitReached, ErrLimitReached},
	{types.ErrInvalidTransition, ErrInvalidTransition},
	{types.ErrOverflow, ErrOverflow},
}

// apiError translates err into the API error carrying its code. Unknown
// errors become internal server errors.
func apiError(err error) Error {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return m.api.WithErr(err)
		}
	}
	return ErrGenericInternalServerError.WithErr(err)
}
