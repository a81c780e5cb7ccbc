package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON, HTML errors and status
// codes. Domain errors from the service layer are mapped to HTTP in exactly
// one place (statusFor), whichever format the response takes:
//
//   writeJSON(w, http.StatusOK, data)
//   writeError(w, err)                  // JSON endpoints
//   h.pages.renderError(w, r, err)      // HTML pages
//
// CONSISTENT ERROR FORMAT:
// Every JSON error has the same shape:
//   {"error": "not_found", "message": "user not found: alice"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cryptonite/profiles/internal/apperror"
)

// ErrorResponse is the standard error format returned by the JSON endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

const internalErrorMessage = "An internal error occurred"

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE the body is written; once Encode
// writes, later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps a domain error to its status code, error type and the
// message safe to show the client.
//
// errors.Is walks the whole chain, so this works however deeply the
// service wrapped the *apperror.AppError:
//
//	fmt.Errorf("service/profile: loading %q: %w", name, apperror.NotFound(...))
//	errors.Is walks: outer error → AppError → ErrNotFound ✓
//
// Anything that is not an *AppError (a failed query, a closed DB) becomes
// a generic 500. Raw errors can contain SQL or file paths, so they are
// never shown.
func statusFor(err error) (status int, errorType, message string) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, "internal_error", internalErrorMessage
	}

	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error", appErr.Message
	case errors.Is(err, apperror.ErrInvalidCredential):
		return http.StatusBadRequest, "invalid_credential", appErr.Message
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found", appErr.Message
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden", appErr.Message
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict", appErr.Message
	case errors.Is(err, apperror.ErrUpstream):
		return http.StatusInternalServerError, "upstream_error", appErr.Message
	}
	return http.StatusInternalServerError, "internal_error", internalErrorMessage
}

// writeError maps a domain error to a JSON error response.
func writeError(w http.ResponseWriter, err error) {
	status, errorType, message := statusFor(err)
	writeJSON(w, status, ErrorResponse{Error: errorType, Message: message})
}

// renderError maps a domain error to the HTML error page.
func (rd *Renderer) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status, _, message := statusFor(err)
	if status == http.StatusInternalServerError {
		rd.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}

	data := newPage(r, http.StatusText(status))
	data.Status = status
	data.Message = message
	rd.Render(w, status, "error", data)
}
