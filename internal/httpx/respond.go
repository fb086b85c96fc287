// Package httpx holds the JSON request/response helpers shared by the
// domain handlers.
package httpx

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/apperr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CountResponse carries a single count.
type CountResponse struct {
	Count int64 `json:"count"`
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status code. Internal failures are logged and
// their message is not leaked to the client.
func WriteError(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Errorw("request failed", "err", err)
		WriteJSON(w, status, ErrorResponse{Error: "internal error"})
		return
	}
	logger.Debugw("request rejected", "status", status, "err", err)
	WriteJSON(w, status, ErrorResponse{Error: err.Error()})
}

// DecodeJSON decodes the request body into v.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Invalid("body", "is not valid JSON")
	}
	return nil
}

// DecodeOptionalJSON is DecodeJSON for endpoints whose body may be
// omitted. An empty body leaves v untouched.
func DecodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return apperr.Invalid("body", "is not valid JSON")
	}
	return nil
}

// PathID parses the named mux path variable as an int64 id.
func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid(name, "must be a positive integer")
	}
	return id, nil
}

// QueryString returns a pointer to the query value, or nil when absent so
// it acts as a wildcard in searches.
func QueryString(r *http.Request, key string) *string {
	if !r.URL.Query().Has(key) {
		return nil
	}
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	return &v
}
