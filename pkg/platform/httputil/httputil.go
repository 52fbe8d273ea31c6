// Package httputil provides JSON response helpers shared by HTTP handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "resolute/pkg/errors"
)

// errorResponse is the wire shape of every error reply.
type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error to its HTTP status and JSON body.
// Internal errors keep their detail out of the response body; everything a
// client can act on is echoed back.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(err)

	resp := errorResponse{Error: string(code)}
	if status < http.StatusInternalServerError {
		var de *dErrors.Error
		if errors.As(err, &de) {
			resp.Description = de.Message
		}
	}
	WriteJSON(w, status, resp)
}

// Decode parses a JSON request body into T, rejecting unknown fields.
func Decode[T any](r *http.Request) (T, error) {
	var req T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if err == io.EOF {
			return req, dErrors.New(dErrors.CodeBadRequest, "request body is required")
		}
		return req, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed request body")
	}
	return req, nil
}

// DecodeAndPrepare parses the request body and writes the error response on
// failure, logging the rejection. The boolean reports whether the handler
// should continue.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (T, bool) {
	req, err := Decode[T](r)
	if err != nil {
		logger.WarnContext(r.Context(), "request rejected",
			"path", r.URL.Path,
			"error", err,
		)
		WriteError(w, err)
		var zero T
		return zero, false
	}
	return req, true
}
