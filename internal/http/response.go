package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"gmscanner/internal/backend"
	"gmscanner/internal/core"
	"gmscanner/internal/ledger"
	applog "gmscanner/internal/log"
	"gmscanner/internal/services"
)

const maxBodyBytes = 64 << 10

var errBadRequest = errors.New("malformed request body")

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.Default(applog.ComponentHTTP).Warn("Failed to encode response", applog.FieldError, err)
	}
}

// writeError maps a domain error to its HTTP status and a stable code.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, core.ErrEmptyTeam),
		errors.Is(err, core.ErrEmptyToken),
		errors.Is(err, core.ErrInvalidMode),
		errors.Is(err, core.ErrInvalidDelta),
		errors.Is(err, ledger.ErrMissingTeam):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, ledger.ErrDuplicate):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, services.ErrSessionNotActive):
		return http.StatusConflict, "session_not_active"
	case errors.Is(err, backend.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, ledger.ErrTeamNotFound),
		errors.Is(err, backend.ErrNoSession):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// decodeJSON reads a bounded JSON body into v. Unknown fields are rejected so
// typos in a scanner client surface immediately.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errBadRequest
		}
		return errors.Join(errBadRequest, err)
	}
	return nil
}
