package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/auth"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/session"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/storage/memory"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newSessionManager(t *testing.T) *session.Manager {
	t.Helper()
	m, err := session.NewManager(session.NewMemoryStore(100, 0), session.Options{Secret: testSecret}, nil)
	require.NoError(t, err)
	return m
}

// savedSession persists a session and returns the cookies a browser would send back.
func savedSession(t *testing.T, m *session.Manager, accountID int64) (*session.Session, []*http.Cookie) {
	t.Helper()
	sess, err := m.New()
	require.NoError(t, err)
	sess.AccountID = accountID
	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(context.Background(), rec, sess))
	return sess, rec.Result().Cookies()
}

func createAccount(t *testing.T, store *memory.AccountStore, username string) *auth.Account {
	t.Helper()
	acct, err := store.Create(context.Background(), auth.NewAccount{
		Username:                  username,
		Email:                     username + "@example.com",
		PasswordHash:              "x",
		Role:                      auth.RoleViewer,
		VerificationCodeExpiresAt: time.Now().Add(time.Minute),
	})
	require.NoError(t, err)
	return acct
}

func TestIdentity_AttachesPrincipal(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sessions := newSessionManager(t)
	store := memory.NewAccountStore()
	acct := createAccount(t, store, "alice")
	_, cookies := savedSession(t, sessions, acct.ID)

	var got *auth.Account
	var gotSession *session.Session
	h := NewIdentity(sessions, store, logger).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFrom(r.Context())
		gotSession = SessionFrom(r.Context())
	}))

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Username)
	require.NotNil(t, gotSession)
	assert.NotEmpty(t, rec.Result().Cookies(), "rolling refresh re-sets the cookie")
}

func TestIdentity_DeletedAccountIsAnonymous(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sessions := newSessionManager(t)
	store := memory.NewAccountStore()
	acct := createAccount(t, store, "bob")
	_, cookies := savedSession(t, sessions, acct.ID)
	store.Delete(acct.ID)

	var hasPrincipal bool
	var gotSession *session.Session
	h := NewIdentity(sessions, store, logger).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasPrincipal = PrincipalFrom(r.Context())
		gotSession = SessionFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, hasPrincipal)
	assert.NotNil(t, gotSession)
}

func TestIdentity_NoCookie(t *testing.T) {
	logger, _ := test.NewNullLogger()
	called := false
	h := NewIdentity(newSessionManager(t), memory.NewAccountStore(), logger).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Nil(t, SessionFrom(r.Context()))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	assert.True(t, called)
}

func TestRequireAuthenticated(t *testing.T) {
	h := RequireAuthenticated(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AUTHENTICATION_REQUIRED", body["code"])

	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(contextWithPrincipal(req.Context(), &auth.Account{ID: 1, Role: auth.RoleViewer}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticated_PassesPrincipal(t *testing.T) {
	var got *auth.Account
	h := Authenticated(func(w http.ResponseWriter, r *http.Request, principal *auth.Account) {
		got = principal
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, got)

	want := &auth.Account{ID: 9, Username: "carol"}
	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(contextWithPrincipal(req.Context(), want))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Same(t, want, got)
}
