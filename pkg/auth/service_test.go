package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/audit"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/auth"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/storage/memory"
)

const goodPassword = "Correct-Horse-42"

type recordingMailer struct {
	mu     sync.Mutex
	fail   bool
	codes  map[string]string
	tokens map[string]string
}

func (m *recordingMailer) SendVerificationEmail(ctx context.Context, to, code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return false
	}
	m.codes[to] = code
	return true
}

func (m *recordingMailer) SendPasswordResetEmail(ctx context.Context, to, token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return false
	}
	m.tokens[to] = token
	return true
}

type recordingAudit struct {
	mu     sync.Mutex
	events []*audit.AuditEvent
}

func (a *recordingAudit) Log(ctx context.Context, event *audit.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *recordingAudit) Close() error { return nil }

func (a *recordingAudit) last(eventType audit.EventType) *audit.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.events) - 1; i >= 0; i-- {
		if a.events[i].EventType == eventType {
			return a.events[i]
		}
	}
	return nil
}

type fixture struct {
	svc    *auth.Service
	store  *memory.AccountStore
	mailer *recordingMailer
	audit  *recordingAudit
	now    time.Time
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

type fixtureOption func(f *fixture, d *auth.Deps)

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.NewAccountStore(),
		mailer: &recordingMailer{codes: map[string]string{}, tokens: map[string]string{}},
		audit:  &recordingAudit{},
		now:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	logger, _ := test.NewNullLogger()
	deps := auth.Deps{
		Store:  f.store,
		Mailer: f.mailer,
		Policy: auth.NewPasswordPolicy(nil),
		Tokens: auth.NewTokenService(func() time.Time { return f.now }),
		Hasher: auth.NewBcryptHasher(bcrypt.MinCost),
		Audit:  f.audit,
		Logger: logger,
	}
	for _, opt := range opts {
		opt(f, &deps)
	}
	f.svc = auth.NewService(deps)
	return f
}

func (f *fixture) register(t *testing.T, username string) *auth.Account {
	t.Helper()
	res, err := f.svc.Register(context.Background(), auth.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: goodPassword,
	})
	require.NoError(t, err)
	return res.Account
}

func (f *fixture) registerVerified(t *testing.T, username string) *auth.Account {
	t.Helper()
	acct := f.register(t, username)
	verified, err := f.svc.VerifyEmail(context.Background(), acct.Email, f.mailer.codes[acct.Email])
	require.NoError(t, err)
	return verified
}

func requireAuthError(t *testing.T, err error, kind auth.Kind, code string) *auth.Error {
	t.Helper()
	var authErr *auth.Error
	require.True(t, errors.As(err, &authErr), "expected *auth.Error, got %v", err)
	assert.Equal(t, kind, authErr.Kind)
	assert.Equal(t, code, authErr.Code)
	return authErr
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, auth.RegisterInput{
		Username:  "  alice ",
		Email:     "alice@example.com",
		Password:  goodPassword,
		FirstName: "Alice",
	})
	require.NoError(t, err)
	assert.True(t, res.EmailSent)
	assert.Equal(t, "alice", res.Account.Username)
	assert.Equal(t, auth.RoleViewer, res.Account.Role)
	assert.False(t, res.Account.EmailVerified)
	assert.NotEqual(t, goodPassword, res.Account.PasswordHash)

	stored, err := f.store.FindByID(ctx, res.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, f.mailer.codes["alice@example.com"], stored.VerificationCode)
	require.NotNil(t, stored.VerificationCodeExpiresAt)
	assert.Equal(t, f.now.Add(auth.VerificationCodeTTL), *stored.VerificationCodeExpiresAt)

	ev := f.audit.last(audit.EventTypeAuthRegister)
	require.NotNil(t, ev)
	assert.Equal(t, res.Account.ID, *ev.AccountID)
}

func TestRegister_BreachServiceDownDoesNotBlock(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	f := newFixture(t, func(f *fixture, d *auth.Deps) {
		logger, _ := test.NewNullLogger()
		d.Policy = auth.NewPasswordPolicy(auth.NewRangeClient(srv.URL, logger))
	})

	res, err := f.svc.Register(context.Background(), auth.RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: goodPassword,
	})
	require.NoError(t, err)
	assert.False(t, res.Account.EmailVerified)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRegister_Conflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice")

	_, err := f.svc.Register(ctx, auth.RegisterInput{Username: "ALICE", Email: "other@example.com", Password: goodPassword})
	e := requireAuthError(t, err, auth.KindConflict, auth.CodeConflict)
	assert.Equal(t, "Username already exists", e.Message)

	_, err = f.svc.Register(ctx, auth.RegisterInput{Username: "bob", Email: "Alice@Example.com", Password: goodPassword})
	e = requireAuthError(t, err, auth.KindConflict, auth.CodeConflict)
	assert.Equal(t, "Email already registered", e.Message)
}

func TestRegister_WeakPassword(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), auth.RegisterInput{
		Username: "alice", Email: "alice@example.com", Password: "short",
	})
	requireAuthError(t, err, auth.KindValidation, auth.CodeValidation)

	_, err = f.store.FindByUsername(context.Background(), "alice")
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)
}

func TestRegister_MailFailureStillCreates(t *testing.T) {
	f := newFixture(t)
	f.mailer.fail = true

	res, err := f.svc.Register(context.Background(), auth.RegisterInput{
		Username: "alice", Email: "alice@example.com", Password: goodPassword,
	})
	require.NoError(t, err)
	assert.False(t, res.EmailSent)
	assert.NotZero(t, res.Account.ID)
}

func TestVerifyEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.register(t, "alice")
	code := f.mailer.codes[acct.Email]

	verified, err := f.svc.VerifyEmail(ctx, acct.Email, code)
	require.NoError(t, err)
	assert.True(t, verified.EmailVerified)

	stored, err := f.store.FindByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.VerificationCode)
	assert.Nil(t, stored.VerificationCodeExpiresAt)
	assert.Zero(t, stored.VerificationCodeAttempts)

	_, err = f.svc.VerifyEmail(ctx, acct.Email, code)
	requireAuthError(t, err, auth.KindValidation, auth.CodeAlreadyVerified)
}

func TestVerifyEmail_CaseInsensitiveCode(t *testing.T) {
	f := newFixture(t)
	acct := f.register(t, "alice")
	code := f.mailer.codes[acct.Email]

	lower := make([]byte, len(code))
	for i := range code {
		c := code[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		lower[i] = c
	}
	_, err := f.svc.VerifyEmail(context.Background(), acct.Email, " "+string(lower)+" ")
	require.NoError(t, err)
}

func TestVerifyEmail_AttemptLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.register(t, "alice")
	code := f.mailer.codes[acct.Email]

	for i := 1; i <= auth.MaxVerificationAttempts; i++ {
		_, err := f.svc.VerifyEmail(ctx, acct.Email, "WRONG000")
		e := requireAuthError(t, err, auth.KindValidation, auth.CodeInvalidCode)
		assert.Equal(t, auth.MaxVerificationAttempts-i, e.Details["remainingAttempts"])
	}

	// the correct code is refused once the limit is reached
	_, err := f.svc.VerifyEmail(ctx, acct.Email, code)
	e := requireAuthError(t, err, auth.KindThrottled, auth.CodeTooManyAttempts)
	assert.Equal(t, 429, e.StatusCode())

	stored, err := f.store.FindByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.MaxVerificationAttempts, stored.VerificationCodeAttempts)
	assert.False(t, stored.EmailVerified)

	require.NotNil(t, f.audit.last(audit.EventTypeAuthEmailVerifyFailed))
}

func TestVerifyEmail_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.register(t, "alice")
	code := f.mailer.codes[acct.Email]

	f.advance(auth.VerificationCodeTTL + time.Second)

	_, err := f.svc.VerifyEmail(ctx, acct.Email, code)
	requireAuthError(t, err, auth.KindExpired, auth.CodeTokenExpired)

	// expiry still consumes an attempt
	stored, err := f.store.FindByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.VerificationCodeAttempts)
}

func TestVerifyEmail_UnknownEmail(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.VerifyEmail(context.Background(), "ghost@example.com", "ABCDEFGH")
	requireAuthError(t, err, auth.KindNotFound, auth.CodeNotFound)
}

func TestResendVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.register(t, "alice")
	first := f.mailer.codes[acct.Email]

	_, err := f.svc.VerifyEmail(ctx, acct.Email, "WRONG000")
	require.Error(t, err)

	require.NoError(t, f.svc.ResendVerification(ctx, acct.Email))
	second := f.mailer.codes[acct.Email]
	assert.NotEqual(t, first, second)

	stored, err := f.store.FindByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.VerificationCodeAttempts)
	assert.Equal(t, second, stored.VerificationCode)

	err = f.svc.ResendVerification(ctx, acct.Email)
	e := requireAuthError(t, err, auth.KindThrottled, auth.CodeCooldown)
	assert.Equal(t, 60, e.Details["retryAfter"])

	f.advance(auth.DefaultResendCooldown)
	require.NoError(t, f.svc.ResendVerification(ctx, acct.Email))

	_, err = f.svc.VerifyEmail(ctx, acct.Email, second)
	requireAuthError(t, err, auth.KindValidation, auth.CodeInvalidCode)
}

// codeWriteFailer fails SetVerificationCode while failing is set.
type codeWriteFailer struct {
	*memory.AccountStore
	failing bool
}

func (s *codeWriteFailer) SetVerificationCode(ctx context.Context, id int64, code string, expiresAt time.Time) error {
	if s.failing {
		return errors.New("disk full")
	}
	return s.AccountStore.SetVerificationCode(ctx, id, code, expiresAt)
}

func TestResendVerification_StoreFailureReleasesCooldown(t *testing.T) {
	store := &codeWriteFailer{}
	f := newFixture(t, func(f *fixture, d *auth.Deps) {
		store.AccountStore = f.store
		d.Store = store
	})
	ctx := context.Background()
	acct := f.register(t, "alice")

	store.failing = true
	err := f.svc.ResendVerification(ctx, acct.Email)
	requireAuthError(t, err, auth.KindInternal, auth.CodeInternal)

	store.failing = false
	require.NoError(t, f.svc.ResendVerification(ctx, acct.Email))
}

func TestResendVerification_UnknownAndVerified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ResendVerification(ctx, "ghost@example.com"))
	assert.Empty(t, f.mailer.codes)

	acct := f.registerVerified(t, "alice")
	err := f.svc.ResendVerification(ctx, acct.Email)
	requireAuthError(t, err, auth.KindValidation, auth.CodeAlreadyVerified)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.registerVerified(t, "alice")

	got, err := f.svc.Login(ctx, "alice", goodPassword)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, got.ID)
	require.NotNil(t, f.audit.last(audit.EventTypeAuthLogin))

	_, wrongPass := f.svc.Login(ctx, "alice", "Wrong-Horse-42")
	_, unknown := f.svc.Login(ctx, "nobody", goodPassword)
	e1 := requireAuthError(t, wrongPass, auth.KindAuthentication, auth.CodeInvalidCredentials)
	e2 := requireAuthError(t, unknown, auth.KindAuthentication, auth.CodeInvalidCredentials)
	assert.Equal(t, e1.Payload(), e2.Payload())
	assert.Equal(t, 401, e1.StatusCode())
}

func TestLogin_Unverified(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")

	_, err := f.svc.Login(context.Background(), "alice", goodPassword)
	e := requireAuthError(t, err, auth.KindAuthorization, auth.CodeEmailNotVerified)
	assert.Equal(t, 403, e.StatusCode())
	assert.Equal(t, true, e.Details["requiresVerification"])
	assert.Equal(t, "alice@example.com", e.Details["email"])
}

func TestUpdateProfile_Password(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.registerVerified(t, "alice")

	_, err := f.svc.UpdateProfile(ctx, acct.ID, auth.ProfileUpdate{NewPassword: "New-Password-99"})
	requireAuthError(t, err, auth.KindValidation, auth.CodeValidation)

	_, err = f.svc.UpdateProfile(ctx, acct.ID, auth.ProfileUpdate{
		CurrentPassword: "Wrong-Horse-42", NewPassword: "New-Password-99",
	})
	requireAuthError(t, err, auth.KindAuthentication, auth.CodeInvalidCredentials)

	_, err = f.svc.UpdateProfile(ctx, acct.ID, auth.ProfileUpdate{
		CurrentPassword: goodPassword, NewPassword: "weak",
	})
	requireAuthError(t, err, auth.KindValidation, auth.CodeValidation)

	_, err = f.svc.UpdateProfile(ctx, acct.ID, auth.ProfileUpdate{
		CurrentPassword: goodPassword, NewPassword: "New-Password-99",
	})
	require.NoError(t, err)
	require.NotNil(t, f.audit.last(audit.EventTypeAuthPasswordChange))

	_, err = f.svc.Login(ctx, "alice", goodPassword)
	require.Error(t, err)
	_, err = f.svc.Login(ctx, "alice", "New-Password-99")
	require.NoError(t, err)
}

func TestUpdateProfile_Fields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.registerVerified(t, "alice")
	f.registerVerified(t, "bob")

	taken := "BOB@example.com"
	_, err := f.svc.UpdateProfile(ctx, alice.ID, auth.ProfileUpdate{
		Fields: auth.ProfileFields{Email: &taken},
	})
	requireAuthError(t, err, auth.KindConflict, auth.CodeConflict)

	first := "Alice"
	email := " alice@new.example.com "
	public := true
	updated, err := f.svc.UpdateProfile(ctx, alice.ID, auth.ProfileUpdate{
		Fields:          auth.ProfileFields{FirstName: &first, Email: &email},
		IsProfilePublic: &public,
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", updated.FirstName)
	assert.Equal(t, "alice@new.example.com", updated.Email)
	assert.True(t, updated.IsProfilePublic)
	assert.True(t, updated.EmailVerified)

	profile, err := f.svc.PublicProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.FirstName)

	_, err = f.svc.PublicProfile(ctx, "bob")
	requireAuthError(t, err, auth.KindNotFound, auth.CodeNotFound)
}

func TestUpdateProfile_UnknownAccount(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.UpdateProfile(context.Background(), 99, auth.ProfileUpdate{})
	requireAuthError(t, err, auth.KindNotFound, auth.CodeNotFound)
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.registerVerified(t, "alice")

	require.NoError(t, f.svc.ForgotPassword(ctx, "ghost@example.com"))
	assert.Empty(t, f.mailer.tokens)

	require.NoError(t, f.svc.ForgotPassword(ctx, acct.Email))
	token := f.mailer.tokens[acct.Email]
	require.Len(t, token, 64)

	err := f.svc.ResetPassword(ctx, token, "weak")
	requireAuthError(t, err, auth.KindValidation, auth.CodeValidation)

	require.NoError(t, f.svc.ResetPassword(ctx, token, "Brand-New-Pass-7"))
	require.NotNil(t, f.audit.last(audit.EventTypeAuthPasswordReset))

	err = f.svc.ResetPassword(ctx, token, "Brand-New-Pass-8")
	requireAuthError(t, err, auth.KindValidation, auth.CodeInvalidResetToken)

	_, err = f.svc.Login(ctx, "alice", "Brand-New-Pass-7")
	require.NoError(t, err)
}

func TestResetPassword_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.registerVerified(t, "alice")

	require.NoError(t, f.svc.ForgotPassword(ctx, acct.Email))
	token := f.mailer.tokens[acct.Email]

	f.advance(auth.ResetTokenTTL + time.Second)

	err := f.svc.ResetPassword(ctx, token, "Brand-New-Pass-7")
	requireAuthError(t, err, auth.KindExpired, auth.CodeTokenExpired)

	// the expired token is cleared on sight
	err = f.svc.ResetPassword(ctx, token, "Brand-New-Pass-7")
	requireAuthError(t, err, auth.KindValidation, auth.CodeInvalidResetToken)

	_, err = f.svc.Login(ctx, "alice", goodPassword)
	require.NoError(t, err)
}

func TestResetPassword_NewTokenReplacesOld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.registerVerified(t, "alice")

	require.NoError(t, f.svc.ForgotPassword(ctx, acct.Email))
	old := f.mailer.tokens[acct.Email]
	require.NoError(t, f.svc.ForgotPassword(ctx, acct.Email))

	err := f.svc.ResetPassword(ctx, old, "Brand-New-Pass-7")
	requireAuthError(t, err, auth.KindValidation, auth.CodeInvalidResetToken)

	err = f.svc.ResetPassword(ctx, "   ", "Brand-New-Pass-7")
	requireAuthError(t, err, auth.KindValidation, auth.CodeInvalidResetToken)
}

func TestChangeRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.registerVerified(t, "admin")
	bob := f.registerVerified(t, "bob")

	_, err := f.svc.ChangeRole(ctx, admin, admin.ID, auth.RoleViewer)
	requireAuthError(t, err, auth.KindValidation, auth.CodeValidation)

	_, err = f.svc.ChangeRole(ctx, admin, bob.ID, auth.Role(0))
	requireAuthError(t, err, auth.KindValidation, auth.CodeValidation)

	_, err = f.svc.ChangeRole(ctx, admin, 404, auth.RoleEditor)
	requireAuthError(t, err, auth.KindNotFound, auth.CodeNotFound)

	updated, err := f.svc.ChangeRole(ctx, admin, bob.ID, auth.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleEditor, updated.Role)

	ev := f.audit.last(audit.EventTypeAuthzRoleChange)
	require.NotNil(t, ev)
	assert.Equal(t, "viewer", ev.Metadata["from"])
	assert.Equal(t, "editor", ev.Metadata["to"])

	all, err := f.svc.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRecordLogout(t *testing.T) {
	f := newFixture(t)
	acct := f.registerVerified(t, "alice")

	f.svc.RecordLogout(context.Background(), nil)
	assert.Nil(t, f.audit.last(audit.EventTypeAuthLogout))

	f.svc.RecordLogout(context.Background(), acct)
	require.NotNil(t, f.audit.last(audit.EventTypeAuthLogout))
}
