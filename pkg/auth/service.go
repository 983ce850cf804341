package auth

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/audit"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgInvalidResetToken  = "Invalid or expired reset token"
)

// Deps wires a Service. Store, Mailer and Policy are required.
type Deps struct {
	Store    AccountStore
	Mailer   Mailer
	Policy   *PasswordPolicy
	Tokens   *TokenService
	Hasher   PasswordHasher
	Cooldown *ResendCooldown
	Audit    audit.Logger
	Metrics  Metrics
	Logger   *logrus.Logger
}

// Service orchestrates registration, verification, login and password
// recovery on top of the credential store.
type Service struct {
	store    AccountStore
	mailer   Mailer
	policy   *PasswordPolicy
	tokens   *TokenService
	hasher   PasswordHasher
	cooldown *ResendCooldown
	audit    audit.Logger
	metrics  Metrics
	logger   *logrus.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates the auth orchestrator, filling optional deps with defaults.
func NewService(d Deps) *Service {
	s := &Service{
		store:    d.Store,
		mailer:   d.Mailer,
		policy:   d.Policy,
		tokens:   d.Tokens,
		hasher:   d.Hasher,
		cooldown: d.Cooldown,
		audit:    d.Audit,
		metrics:  d.Metrics,
		logger:   d.Logger,
	}
	if s.tokens == nil {
		s.tokens = NewTokenService(nil)
	}
	if s.hasher == nil {
		s.hasher = NewBcryptHasher(0)
	}
	if s.cooldown == nil {
		s.cooldown = NewResendCooldown(DefaultResendCooldown, s.tokens.Now)
	}
	if s.audit == nil {
		s.audit = audit.NoOpLogger{}
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	return s
}

// RegisterInput is the data submitted at sign-up.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// RegisterResult reports the created account and whether the code email went out.
type RegisterResult struct {
	Account   *Account
	EmailSent bool
}

// Register creates an unverified account and emails it a verification code.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	if err := s.ensureAvailable(ctx, username, email); err != nil {
		s.metrics.RecordAuthEvent("register", outcome(err))
		return nil, err
	}

	if err := s.policy.Validate(ctx, in.Password); err != nil {
		s.metrics.RecordAuthEvent("register", outcome(err))
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.internal("hash password", err)
	}

	code, err := s.tokens.GenerateVerificationCode()
	if err != nil {
		return nil, s.internal("generate verification code", err)
	}

	acct, err := s.store.Create(ctx, NewAccount{
		Username:                  username,
		Email:                     email,
		PasswordHash:              hash,
		Role:                      DefaultRole,
		FirstName:                 strings.TrimSpace(in.FirstName),
		LastName:                  strings.TrimSpace(in.LastName),
		VerificationCode:          code,
		VerificationCodeExpiresAt: s.tokens.VerificationExpiry(),
	})
	switch {
	case errors.Is(err, ErrDuplicateUsername):
		return nil, NewConflictError("Username already exists")
	case errors.Is(err, ErrDuplicateEmail):
		return nil, NewConflictError("Email already registered")
	case err != nil:
		return nil, s.internal("create account", err)
	}

	sent := s.mailer.SendVerificationEmail(ctx, acct.Email, code)
	if !sent {
		s.logger.WithField("account_id", acct.ID).Warn("verification email not sent after registration")
	}

	s.metrics.RecordAuthEvent("register", "success")
	s.record(ctx, audit.AccountEvent(ctx, audit.EventTypeAuthRegister, audit.EventStatusSuccess,
		acct.ID, acct.Username, "account registered"))

	return &RegisterResult{Account: acct, EmailSent: sent}, nil
}

func (s *Service) ensureAvailable(ctx context.Context, username, email string) error {
	if _, err := s.store.FindByUsername(ctx, username); err == nil {
		return NewConflictError("Username already exists")
	} else if !errors.Is(err, ErrAccountNotFound) {
		return s.internal("lookup username", err)
	}

	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return NewConflictError("Email already registered")
	} else if !errors.Is(err, ErrAccountNotFound) {
		return s.internal("lookup email", err)
	}
	return nil
}

// VerifyEmail checks a submitted code. The attempt limit is enforced before
// the counter is incremented, and the counter is incremented before expiry
// and match are evaluated. Two concurrent submissions may both pass the limit
// check; the store's increment is the only serialization.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) (*Account, error) {
	acct, err := s.store.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrAccountNotFound) {
		return nil, NewNotFoundError("Account not found")
	}
	if err != nil {
		return nil, s.internal("lookup account", err)
	}

	if acct.EmailVerified {
		return nil, NewValidationError("Email is already verified").withCode(CodeAlreadyVerified)
	}

	if acct.VerificationCodeAttempts >= MaxVerificationAttempts {
		s.verifyFailed(ctx, acct, "attempt limit reached")
		return nil, NewThrottledError(CodeTooManyAttempts,
			"Too many verification attempts. Please request a new code.")
	}

	attempts, err := s.store.IncrementVerificationAttempts(ctx, acct.ID)
	if err != nil {
		return nil, s.internal("increment verification attempts", err)
	}

	if acct.VerificationCode == "" || s.tokens.IsExpired(acct.VerificationCodeExpiresAt) {
		s.verifyFailed(ctx, acct, "code expired")
		return nil, NewExpiredTokenError("Verification code has expired. Please request a new code.")
	}

	if !strings.EqualFold(strings.TrimSpace(code), acct.VerificationCode) {
		s.verifyFailed(ctx, acct, "code mismatch")
		return nil, NewValidationError("Invalid verification code").
			withCode(CodeInvalidCode).
			WithDetail("remainingAttempts", max(MaxVerificationAttempts-attempts, 0))
	}

	if err := s.store.MarkEmailVerified(ctx, acct.ID); err != nil {
		return nil, s.internal("mark email verified", err)
	}

	acct.EmailVerified = true
	acct.VerificationCode = ""
	acct.VerificationCodeExpiresAt = nil
	acct.VerificationCodeAttempts = 0

	s.metrics.RecordAuthEvent("verify_email", "success")
	s.record(ctx, audit.AccountEvent(ctx, audit.EventTypeAuthEmailVerify, audit.EventStatusSuccess,
		acct.ID, acct.Username, "email verified"))
	return acct, nil
}

func (s *Service) verifyFailed(ctx context.Context, acct *Account, reason string) {
	s.metrics.RecordAuthEvent("verify_email", "failure")
	s.record(ctx, audit.AccountEvent(ctx, audit.EventTypeAuthEmailVerifyFailed, audit.EventStatusFailure,
		acct.ID, acct.Username, reason))
}

// ResendVerification issues a fresh code. Unknown addresses succeed silently.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	acct, err := s.store.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrAccountNotFound) {
		return nil
	}
	if err != nil {
		return s.internal("lookup account", err)
	}

	if acct.EmailVerified {
		return NewValidationError("Email is already verified").withCode(CodeAlreadyVerified)
	}

	if ok, wait := s.cooldown.Reserve(acct.Email); !ok {
		return NewThrottledError(CodeCooldown, "Please wait before requesting another verification code.").
			WithDetail("retryAfter", int(math.Ceil(wait.Seconds())))
	}

	code, err := s.tokens.GenerateVerificationCode()
	if err != nil {
		s.cooldown.Release(acct.Email)
		return s.internal("generate verification code", err)
	}
	if err := s.store.SetVerificationCode(ctx, acct.ID, code, s.tokens.VerificationExpiry()); err != nil {
		s.cooldown.Release(acct.Email)
		return s.internal("store verification code", err)
	}

	if !s.mailer.SendVerificationEmail(ctx, acct.Email, code) {
		s.logger.WithField("account_id", acct.ID).Warn("verification email not sent on resend")
	}

	s.record(ctx, audit.AccountEvent(ctx, audit.EventTypeAuthVerificationResend, audit.EventStatusSuccess,
		acct.ID, acct.Username, "verification code reissued"))
	return nil
}

// Login checks credentials. Unknown usernames and wrong passwords produce the
// same error value.
func (s *Service) Login(ctx context.Context, username, password string) (*Account, error) {
	acct, err := s.store.FindByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrAccountNotFound) {
		s.hasher.Compare(s.dummy(), password)
		s.loginFailed(ctx, 0, username)
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, s.internal("lookup account", err)
	}

	if !s.hasher.Compare(acct.PasswordHash, password) {
		s.loginFailed(ctx, acct.ID, acct.Username)
		return nil, invalidCredentials()
	}

	if !acct.EmailVerified {
		s.metrics.RecordAuthEvent("login", "unverified")
		return nil, NewAuthorizationError(CodeEmailNotVerified, "Please verify your email before logging in").
			WithDetail("requiresVerification", true).
			WithDetail("email", acct.Email)
	}

	s.metrics.RecordAuthEvent("login", "success")
	s.record(ctx, audit.AccountEvent(ctx, audit.EventTypeAuthLogin, audit.EventStatusSuccess,
		acct.ID, acct.Username, "login succeeded"))
	return acct, nil
}

func (s *Service) loginFailed(ctx context.Context, id int64, username string) {
	s.metrics.RecordAuthEvent("login", "failure")
	s.record(ctx, audit.AccountEvent(ctx, audit.EventTypeAuthLoginFailed, audit.EventStatusFailure,
		id, username, "invalid credentials"))
}

func invalidCredentials() *Error {
	return NewAuthenticationError(CodeInvalidCredentials, msgInvalidCredentials)
}

// dummy returns a hash to compare against when the username is unknown, so
// both failure paths spend similar time in bcrypt.
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("whiskey-canon-timing-equalizer")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// RecordLogout writes the logout audit event. The session itself is owned by
// the HTTP layer.
func (s *Service) RecordLogout(ctx context.Context, acct *Account) {
	if acct == nil {
		return
	}
	s.record(ctx, audit.AccountEvent(ctx, audit.EventTypeAuthLogout, audit.EventStatusSuccess,
		acct.ID, acct.Username, "logged out"))
}

// ProfileUpdate is a partial edit of the caller's own account.
type ProfileUpdate struct {
	Fields          ProfileFields
	IsProfilePublic *bool
	CurrentPassword string
	NewPassword     string
}

// UpdateProfile applies profile edits. A password change requires the
// current password; an email change must not collide with another account.
// All checks run before anything is written.
func (s *Service) UpdateProfile(ctx context.Context, accountID int64, upd ProfileUpdate) (*Account, error) {
	acct, err := s.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var newHash string
	if upd.NewPassword != "" {
		if upd.CurrentPassword == "" {
			return nil, NewValidationError("Current password is required to set a new password")
		}
		if !s.hasher.Compare(acct.PasswordHash, upd.CurrentPassword) {
			return nil, NewAuthenticationError(CodeInvalidCredentials, "Current password is incorrect")
		}
		if err := s.policy.Validate(ctx, upd.NewPassword); err != nil {
			return nil, err
		}
		if newHash, err = s.hasher.Hash(upd.NewPassword); err != nil {
			return nil, s.internal("hash password", err)
		}
	}

	if upd.Fields.Email != nil {
		email := strings.TrimSpace(*upd.Fields.Email)
		upd.Fields.Email = &email
		if !strings.EqualFold(email, acct.Email) {
			other, err := s.store.FindByEmail(ctx, email)
			switch {
			case err == nil && other.ID != acct.ID:
				return nil, NewConflictError("Email already in use")
			case err != nil && !errors.Is(err, ErrAccountNotFound):
				return nil, s.internal("lookup email", err)
			}
		}
	}

	if newHash != "" {
		if err := s.store.UpdatePassword(ctx, acct.ID, newHash); err != nil {
			return nil, s.internal("update password", err)
		}
		s.record(ctx, audit.AccountEvent(ctx, audit.EventTypeAuthPasswordChange, audit.EventStatusSuccess,
			acct.ID, acct.Username, "password changed"))
	}

	if !upd.Fields.Empty() {
		updated, err := s.store.UpdateProfile(ctx, acct.ID, upd.Fields)
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, NewConflictError("Email already in use")
		}
		if err != nil {
			return nil, s.internal("update profile", err)
		}
		acct = updated
	}

	if upd.IsProfilePublic != nil {
		if err := s.store.UpdateVisibility(ctx, acct.ID, *upd.IsProfilePublic); err != nil {
			return nil, s.internal("update visibility", err)
		}
		acct.IsProfilePublic = *upd.IsProfilePublic
	}

	s.record(ctx, audit.AccountEvent(ctx, audit.EventTypeAuthProfileUpdate, audit.EventStatusSuccess,
		acct.ID, acct.Username, "profile updated"))
	return acct, nil
}

// ForgotPassword issues and emails a reset token. Unknown addresses succeed silently.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	acct, err := s.store.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrAccountNotFound) {
		return nil
	}
	if err != nil {
		return s.internal("lookup account", err)
	}

	token, err := s.tokens.GeneratePasswordResetToken()
	if err != nil {
		return s.internal("generate reset token", err)
	}
	if err := s.store.SetPasswordResetToken(ctx, acct.ID, token, s.tokens.PasswordResetExpiry()); err != nil {
		return s.internal("store reset token", err)
	}

	if !s.mailer.SendPasswordResetEmail(ctx, acct.Email, token) {
		s.logger.WithField("account_id", acct.ID).Warn("password reset email not sent")
	}

	s.record(ctx, audit.AccountEvent(ctx, audit.EventTypeAuthPasswordResetRequest, audit.EventStatusSuccess,
		acct.ID, acct.Username, "password reset requested"))
	return nil
}

// ResetPassword consumes a reset token. Expired tokens are cleared on sight.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return NewValidationError(msgInvalidResetToken).withCode(CodeInvalidResetToken)
	}

	acct, err := s.store.FindByResetToken(ctx, token)
	if errors.Is(err, ErrAccountNotFound) {
		s.metrics.RecordAuthEvent("reset_password", "failure")
		return NewValidationError(msgInvalidResetToken).withCode(CodeInvalidResetToken)
	}
	if err != nil {
		return s.internal("lookup reset token", err)
	}

	if s.tokens.IsExpired(acct.PasswordResetExpiresAt) {
		if err := s.store.ClearPasswordResetToken(ctx, acct.ID, token); err != nil {
			s.logger.WithError(err).WithField("account_id", acct.ID).Warn("failed to clear expired reset token")
		}
		s.metrics.RecordAuthEvent("reset_password", "expired")
		return NewExpiredTokenError(msgInvalidResetToken)
	}

	if err := s.policy.Validate(ctx, newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return s.internal("hash password", err)
	}
	if err := s.store.UpdatePassword(ctx, acct.ID, hash); err != nil {
		return s.internal("update password", err)
	}
	if err := s.store.ClearPasswordResetToken(ctx, acct.ID, token); err != nil {
		return s.internal("clear reset token", err)
	}

	s.metrics.RecordAuthEvent("reset_password", "success")
	s.record(ctx, audit.AccountEvent(ctx, audit.EventTypeAuthPasswordReset, audit.EventStatusSuccess,
		acct.ID, acct.Username, "password reset"))
	return nil
}

// Account loads an account by id.
func (s *Service) Account(ctx context.Context, id int64) (*Account, error) {
	acct, err := s.store.FindByID(ctx, id)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, NewNotFoundError("Account not found")
	}
	if err != nil {
		return nil, s.internal("lookup account", err)
	}
	return acct, nil
}

// PublicProfile returns a profile only when its owner made it public.
// Private and unknown usernames are indistinguishable.
func (s *Service) PublicProfile(ctx context.Context, username string) (*PublicProfile, error) {
	acct, err := s.store.FindByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrAccountNotFound) || (err == nil && !acct.IsProfilePublic) {
		return nil, NewNotFoundError("Profile not found")
	}
	if err != nil {
		return nil, s.internal("lookup profile", err)
	}
	p := acct.PublicProfile()
	return &p, nil
}

// ListAccounts returns every account for administration.
func (s *Service) ListAccounts(ctx context.Context) ([]*Account, error) {
	accts, err := s.store.List(ctx)
	if err != nil {
		return nil, s.internal("list accounts", err)
	}
	return accts, nil
}

// ChangeRole sets another account's role. Admins cannot change their own role.
func (s *Service) ChangeRole(ctx context.Context, actor *Account, targetID int64, role Role) (*Account, error) {
	if !role.Valid() {
		return nil, NewValidationError("Invalid role")
	}
	if actor.ID == targetID {
		return nil, NewValidationError("You cannot change your own role")
	}

	before, err := s.Account(ctx, targetID)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateRole(ctx, targetID, role)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, NewNotFoundError("Account not found")
	}
	if err != nil {
		return nil, s.internal("update role", err)
	}

	event := audit.AccountEvent(ctx, audit.EventTypeAuthzRoleChange, audit.EventStatusSuccess,
		updated.ID, updated.Username, "role changed")
	event.Metadata["from"] = before.Role.String()
	event.Metadata["to"] = role.String()
	s.record(ctx, event)
	return updated, nil
}

func (s *Service) record(ctx context.Context, event *audit.AuditEvent) {
	if err := s.audit.Log(ctx, event); err != nil {
		s.logger.WithError(err).WithField("event_type", event.EventType).Warn("failed to write audit event")
	}
}

func (s *Service) internal(op string, err error) *Error {
	return NewInternalError(op, err)
}

func outcome(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind.String()
	}
	return "error"
}
