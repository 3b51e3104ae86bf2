package utils

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/cloudx-io/sealedbid/core"
)

// JSONContentType is the content type of every gateway response body.
const JSONContentType = "application/json; charset=utf-8"

type httpError struct {
	cause  error
	status int
}

func (e *httpError) Error() string {
	return e.cause.Error()
}

func (e *httpError) Cause() error {
	return e.cause
}

// HTTPError creates an error that is written with the given status code.
func HTTPError(cause error, status int) error {
	return &httpError{cause: cause, status: status}
}

// BadRequest creates an error with status 400.
func BadRequest(cause error) error {
	return HTTPError(cause, http.StatusBadRequest)
}

// NotFound creates an error with status 404.
func NotFound(cause error) error {
	return HTTPError(cause, http.StatusNotFound)
}

// errorBody is written for rejected instructions so clients can switch on
// the numeric code.
type errorBody struct {
	Code    uint32 `json:"code"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// LedgerError maps an error returned by the ledger to an HTTP error. Errors
// that carry no auction error code pass through and end up as 500.
func LedgerError(err error) error {
	code, ok := core.CodeOf(err)
	if !ok {
		return err
	}
	switch code {
	case core.AccountNotFound:
		return NotFound(err)
	case core.Unauthorized:
		return HTTPError(err, http.StatusForbidden)
	default:
		return HTTPError(err, http.StatusConflict)
	}
}

// HandlerFunc like http.HandlerFunc, but it returns an error.
// If the returned error is not nil, it will be written to the response.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// WrapHandlerFunc convert HandlerFunc to http.HandlerFunc.
func WrapHandlerFunc(f HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := f(w, req)
		if err == nil {
			return
		}
		he, ok := err.(*httpError)
		if !ok {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var ae *core.AuctionError
		if errors.As(he.cause, &ae) {
			w.Header().Set("Content-Type", JSONContentType)
			w.WriteHeader(he.status)
			_ = json.NewEncoder(w).Encode(errorBody{
				Code:    uint32(ae.Code),
				Name:    ae.Code.String(),
				Message: ae.Msg,
			})
			return
		}
		http.Error(w, he.cause.Error(), he.status)
	}
}

// WriteJSON response object with json format.
func WriteJSON(w http.ResponseWriter, obj any) error {
	w.Header().Set("Content-Type", JSONContentType)
	return json.NewEncoder(w).Encode(obj)
}

// PubkeyVar parses the named route variable as a hex pubkey.
func PubkeyVar(req *http.Request, name string) (core.Pubkey, error) {
	pk, err := core.ParsePubkey(mux.Vars(req)[name])
	if err != nil {
		return core.Pubkey{}, BadRequest(errors.WithMessage(err, name))
	}
	return pk, nil
}

// LimitQuery parses the optional limit query parameter. Zero means no
// limit.
func LimitQuery(req *http.Request) (int, error) {
	raw := req.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, BadRequest(errors.Errorf("limit: invalid value %q", raw))
	}
	return limit, nil
}
