// Package httpx holds the JSON response helpers shared by every HTTP handler.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"servicemarket/marketplace-service/internal/apperr"
)

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// OK writes v with 200.
func OK(w http.ResponseWriter, v any) { JSON(w, http.StatusOK, v) }

// Error writes {"message": msg} with the given status code.
func Error(w http.ResponseWriter, msg string, code int) {
	JSON(w, code, map[string]string{"message": msg})
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrInvalidState),
		errors.Is(err, apperr.ErrValidation),
		errors.Is(err, apperr.ErrCapacity),
		errors.Is(err, apperr.ErrAlreadyApplied):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// WriteError maps err onto a status code and JSON body. Unknown errors are
// logged and hidden behind a generic 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusOf(err)
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		JSON(w, code, ErrorBody{Message: "internal server error"})
		return
	}

	body := ErrorBody{Message: err.Error()}
	var e *apperr.Error
	if errors.As(err, &e) {
		body.Code = e.Code
		body.Fields = e.Fields
	}
	JSON(w, code, body)
}

// Decode reads a JSON request body into v, returning a validation error on
// malformed input.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation(map[string]string{"body": "invalid JSON body"})
	}
	return nil
}
