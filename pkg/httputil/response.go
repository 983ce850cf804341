// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
)

// StatusError is an error that knows its HTTP status and client-safe body.
type StatusError interface {
	error
	StatusCode() int
	Payload() map[string]interface{}
}

// Error codes shared by helpers that have no domain error to carry.
const (
	CodeInternal      = "INTERNAL_ERROR"
	CodeBadRequest    = "VALIDATION_ERROR"
	CodeNotFound      = "NOT_FOUND"
	MessageInternal   = "Internal server error"
	MessageBadRequest = "Invalid request body"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{
		"error": message,
	})
}

// WriteErrorCode writes a JSON error response carrying a stable error code
func WriteErrorCode(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// WriteAPIError maps err onto a response. StatusErrors are written as-is
// (and logged when they are server-side); anything else becomes an opaque 500.
func WriteAPIError(w http.ResponseWriter, logger logrus.FieldLogger, err error) {
	var se StatusError
	if errors.As(err, &se) {
		status := se.StatusCode()
		if status >= http.StatusInternalServerError {
			logger.WithError(err).Error("request failed")
		}
		WriteJSON(w, status, se.Payload())
		return
	}

	logger.WithError(err).Error("unexpected error")
	WriteInternalError(w)
}

// WriteValidationError writes a validation error response (400 Bad Request)
func WriteValidationError(w http.ResponseWriter, message string, details ...string) {
	body := map[string]interface{}{
		"error": message,
		"code":  CodeBadRequest,
	}
	if len(details) > 0 {
		body["details"] = details
	}
	WriteJSON(w, http.StatusBadRequest, body)
}

// WriteNotFoundError writes a not found error response (404 Not Found)
func WriteNotFoundError(w http.ResponseWriter, message string) {
	WriteErrorCode(w, http.StatusNotFound, CodeNotFound, message)
}

// WriteInternalError writes an opaque internal server error response (500)
func WriteInternalError(w http.ResponseWriter) {
	WriteErrorCode(w, http.StatusInternalServerError, CodeInternal, MessageInternal)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteMessage writes a 200 response of the form {"message": ...}
func WriteMessage(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{"message": message})
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
