package auth

import (
	"context"
	"time"
)

// AccountReader is the read side of the credential store. Lookups by
// username and email are case-insensitive.
type AccountReader interface {
	FindByID(ctx context.Context, id int64) (*Account, error)
	FindByUsername(ctx context.Context, username string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByResetToken(ctx context.Context, token string) (*Account, error)
	List(ctx context.Context) ([]*Account, error)
}

// AccountStore persists accounts. Every update is a single-row write and
// returns ErrAccountNotFound when the id does not exist.
type AccountStore interface {
	AccountReader

	Create(ctx context.Context, acct NewAccount) (*Account, error)

	// SetVerificationCode stores a fresh code and resets the attempt counter.
	SetVerificationCode(ctx context.Context, id int64, code string, expiresAt time.Time) error
	// IncrementVerificationAttempts bumps the counter and returns its new value.
	IncrementVerificationAttempts(ctx context.Context, id int64) (int, error)
	// MarkEmailVerified sets email_verified and clears all code fields.
	MarkEmailVerified(ctx context.Context, id int64) error

	SetPasswordResetToken(ctx context.Context, id int64, token string, expiresAt time.Time) error
	// ClearPasswordResetToken clears the token only while it still equals token.
	ClearPasswordResetToken(ctx context.Context, id int64, token string) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	UpdateProfile(ctx context.Context, id int64, fields ProfileFields) (*Account, error)
	UpdateRole(ctx context.Context, id int64, role Role) (*Account, error)
	UpdateVisibility(ctx context.Context, id int64, public bool) error
}

// Mailer delivers verification and reset messages. A false return means the
// message was not sent; callers log it and carry on.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, code string) bool
	SendPasswordResetEmail(ctx context.Context, to, token string) bool
}

// Metrics receives auth outcome counters.
type Metrics interface {
	RecordAuthEvent(operation, outcome string)
	RecordBreachCheck(result string)
}

type noopMetrics struct{}

func (noopMetrics) RecordAuthEvent(string, string) {}
func (noopMetrics) RecordBreachCheck(string)       {}
