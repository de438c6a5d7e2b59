//nolint:lll
package api

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400, 404 or 409, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX.
// Gaps in the list belong to codes used in the past and shouldn't be reused.
// There's no correlation between Code and HTTP Status.
var (
	ErrResourceNotFound    = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody       = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrInvalidSignature    = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid signature")}
	ErrBadNonce            = Error{Code: 40008, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("bad nonce")}
	ErrUnknownMethod       = Error{Code: 40009, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("unknown method")}
	ErrMalformedParam      = Error{Code: 40010, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}
	ErrAlreadyExists       = Error{Code: 40011, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("already exists")}
	ErrInvalidWindow       = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid election window")}
	ErrUnauthorized        = Error{Code: 40013, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("unauthorized")}
	ErrClosed              = Error{Code: 40014, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("closed")}
	ErrAlreadyRegistered   = Error{Code: 40015, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("voter already registered")}
	ErrNotRegistered       = Error{Code: 40016, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("voter not registered")}
	ErrTooLarge            = Error{Code: 40017, HTTPstatus: http.StatusRequestEntityTooLarge, Err: fmt.Errorf("too large")}
	ErrCommitmentsMissing  = Error{Code: 40018, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("mix commitments missing")}
	ErrLimitReached        = Error{Code: 40019, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("job limit reached")}
	ErrInvalidTransition   = Error{Code: 40020, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("invalid job status transition")}
	ErrMalformedCallParams = Error{Code: 40021, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed call payload")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrOverflow                   = Error{Code: 50003, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("counter overflow")}
)
