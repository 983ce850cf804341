package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/contextkeys"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/session"
)

func contextWithPrincipal(ctx context.Context, principal interface{}) context.Context {
	return contextkeys.WithPrincipal(ctx, principal)
}

func newGuard(t *testing.T) (*CSRFGuard, *session.Manager, *countingMetrics) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	sessions := newSessionManager(t)
	metrics := &countingMetrics{}
	guard, err := NewCSRFGuard([]byte("fedcba9876543210fedcba9876543210"), sessions, metrics, logger)
	require.NoError(t, err)
	return guard, sessions, metrics
}

func guardedHandler(guard *CSRFGuard) http.Handler {
	return guard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func requestWithSession(method string, sess *session.Session) *http.Request {
	req := httptest.NewRequest(method, "/api/whiskeys", nil)
	if sess != nil {
		req = req.WithContext(contextkeys.WithSession(req.Context(), sess))
	}
	return req
}

func TestNewCSRFGuard_ShortSecret(t *testing.T) {
	_, err := NewCSRFGuard([]byte("short"), newSessionManager(t), nil, nil)
	assert.Error(t, err)
}

func TestCSRFGuard_IssueToken(t *testing.T) {
	guard, sessions, _ := newGuard(t)
	sess, err := sessions.New()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	token, err := guard.IssueToken(context.Background(), rec, sess)
	require.NoError(t, err)

	assert.NotEmpty(t, token)
	assert.Equal(t, guard.Token(sess.ID), token)
	assert.True(t, sess.CSRFInitialized)

	var csrfCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == CSRFCookieName {
			csrfCookie = c
		}
	}
	require.NotNil(t, csrfCookie)
	assert.False(t, csrfCookie.HttpOnly)
	assert.Equal(t, token, csrfCookie.Value)
	assert.Equal(t, http.SameSiteLaxMode, csrfCookie.SameSite)
}

func TestCSRFGuard_TokenBoundToSession(t *testing.T) {
	guard, _, _ := newGuard(t)
	assert.Equal(t, guard.Token("a"), guard.Token("a"))
	assert.NotEqual(t, guard.Token("a"), guard.Token("b"))
}

func TestCSRFGuard_SafeMethodsPass(t *testing.T) {
	guard, _, _ := newGuard(t)
	h := guardedHandler(guard)

	for _, method := range []string{"GET", "HEAD", "OPTIONS"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestWithSession(method, nil))
		assert.Equal(t, http.StatusOK, rec.Code, method)
	}
}

func TestCSRFGuard_Rejections(t *testing.T) {
	guard, sessions, metrics := newGuard(t)
	h := guardedHandler(guard)

	sess, err := sessions.New()
	require.NoError(t, err)
	token := guard.Token(sess.ID)
	other, err := sessions.New()
	require.NoError(t, err)
	otherToken := guard.Token(other.ID)

	tests := []struct {
		name   string
		sess   *session.Session
		cookie string
		header string
	}{
		{name: "no session", sess: nil, cookie: token, header: token},
		{name: "no cookie", sess: sess, header: token},
		{name: "no header", sess: sess, cookie: token},
		{name: "header mismatch", sess: sess, cookie: token, header: token + "x"},
		{name: "token from another session", sess: sess, cookie: otherToken, header: otherToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, method := range []string{"POST", "PUT", "DELETE"} {
				req := requestWithSession(method, tt.sess)
				if tt.cookie != "" {
					req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: tt.cookie})
				}
				if tt.header != "" {
					req.Header.Set(CSRFHeaderName, tt.header)
				}
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)

				assert.Equal(t, http.StatusForbidden, rec.Code, method)
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, "INVALID_CSRF_TOKEN", body["code"])
				assert.Equal(t, "Invalid CSRF token", body["error"])
			}
		})
	}
	assert.Equal(t, len(tests)*3, metrics.csrf)
}

func TestCSRFGuard_IssuedTokenPasses(t *testing.T) {
	guard, sessions, _ := newGuard(t)
	h := guardedHandler(guard)

	sess, err := sessions.New()
	require.NoError(t, err)
	token, err := guard.IssueToken(context.Background(), httptest.NewRecorder(), sess)
	require.NoError(t, err)

	req := requestWithSession("POST", sess)
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: token})
	req.Header.Set(CSRFHeaderName, token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCSRFGuard_RefreshRollsCookie(t *testing.T) {
	guard, sessions, _ := newGuard(t)
	h := guard.Refresh(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	sess, err := sessions.New()
	require.NoError(t, err)

	t.Run("uninitialized session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestWithSession("GET", sess))
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("no session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestWithSession("GET", nil))
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("initialized session", func(t *testing.T) {
		sess.CSRFInitialized = true
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestWithSession("GET", sess))

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, CSRFCookieName, cookies[0].Name)
		assert.Equal(t, guard.Token(sess.ID), cookies[0].Value)
		assert.Equal(t, int(sessions.Options().Lifetime.Seconds()), cookies[0].MaxAge)
		assert.False(t, cookies[0].HttpOnly)
	})
}
