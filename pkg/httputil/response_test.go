package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatusError struct {
	status int
	body   map[string]interface{}
}

func (e *fakeStatusError) Error() string                   { return "fake" }
func (e *fakeStatusError) StatusCode() int                 { return e.status }
func (e *fakeStatusError) Payload() map[string]interface{} { return e.body }

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"message": "success"}

	err := WriteJSON(w, http.StatusOK, data)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "success")
}

func TestWriteErrorCode(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorCode(w, http.StatusForbidden, "FORBIDDEN", "nope")

	assert.Equal(t, http.StatusForbidden, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "FORBIDDEN", body["code"])
	assert.Equal(t, "nope", body["error"])
}

func TestWriteAPIError_StatusError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	w := httptest.NewRecorder()

	WriteAPIError(w, logger, &fakeStatusError{
		status: http.StatusConflict,
		body:   map[string]interface{}{"error": "Username already exists", "code": "CONFLICT"},
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Username already exists", decodeBody(t, w)["error"])
	assert.Empty(t, hook.AllEntries(), "client errors are not logged")
}

func TestWriteAPIError_UnknownErrorIsOpaque(t *testing.T) {
	logger, hook := test.NewNullLogger()
	w := httptest.NewRecorder()

	WriteAPIError(w, logger, errors.New("pq: connection refused on 10.0.0.3"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.3")
	body := decodeBody(t, w)
	assert.Equal(t, MessageInternal, body["error"])
	assert.Equal(t, CodeInternal, body["code"])

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestWriteAPIError_ServerStatusErrorIsLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()
	w := httptest.NewRecorder()

	WriteAPIError(w, logger, &fakeStatusError{
		status: http.StatusInternalServerError,
		body:   map[string]interface{}{"error": MessageInternal, "code": CodeInternal},
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Len(t, hook.AllEntries(), 1)
}

func TestWriteValidationError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteValidationError(w, "Validation failed", "name is required", "email must be a valid email address")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, CodeBadRequest, body["code"])
	assert.Len(t, body["details"], 2)
}

func TestWriteValidationError_NoDetails(t *testing.T) {
	w := httptest.NewRecorder()

	WriteValidationError(w, "invalid input")

	body := decodeBody(t, w)
	_, ok := body["details"]
	assert.False(t, ok)
}

func TestWriteNotFoundError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteNotFoundError(w, "Whiskey not found")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Whiskey not found")
}

func TestWriteInternalError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalError(w)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, MessageInternal, decodeBody(t, w)["error"])
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteCreated(w, map[string]int{"id": 1})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestWriteMessage(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteMessage(w, "Logged out successfully")

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Logged out successfully", decodeBody(t, w)["message"])
}

func TestWriteNoContent(t *testing.T) {
	w := httptest.NewRecorder()

	WriteNoContent(w)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}
