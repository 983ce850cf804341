// Package session keeps server-side browser sessions. A session is
// addressed by a random id carried in an HMAC-signed cookie; the record
// itself lives in a Store (process memory or Redis).
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"
)

// ErrNotFound is returned by stores for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// DefaultLifetime is the rolling session window.
const DefaultLifetime = 7 * 24 * time.Hour

// Session is the server-side state bound to one browser.
type Session struct {
	ID              string    `json:"id"`
	AccountID       int64     `json:"accountId,omitempty"`
	CSRFInitialized bool      `json:"csrfInitialized,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

// Authenticated reports whether an account is bound to the session.
func (s *Session) Authenticated() bool {
	return s != nil && s.AccountID != 0
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store persists sessions.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

func newID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
