package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultCookieName is the session cookie name.
const DefaultCookieName = "whiskey_sid"

// minSecretLen is the shortest accepted signing secret in bytes.
const minSecretLen = 32

// Options configure the session cookie.
type Options struct {
	CookieName string
	Secret     []byte
	Lifetime   time.Duration
	Secure     bool
	SameSite   http.SameSite
	Path       string
}

// Manager binds Store records to signed cookies.
type Manager struct {
	store Store
	opts  Options
	now   func() time.Time
}

// NewManager validates opts and fills defaults. clock may be nil.
func NewManager(store Store, opts Options, clock func() time.Time) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if len(opts.Secret) < minSecretLen {
		return nil, fmt.Errorf("session secret must be at least %d bytes", minSecretLen)
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.Lifetime <= 0 {
		opts.Lifetime = DefaultLifetime
	}
	if opts.SameSite == 0 {
		opts.SameSite = http.SameSiteLaxMode
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	if clock == nil {
		clock = time.Now
	}
	return &Manager{store: store, opts: opts, now: clock}, nil
}

// Options returns the effective cookie options.
func (m *Manager) Options() Options {
	return m.opts
}

func (m *Manager) sign(id string) string {
	mac := hmac.New(sha256.New, m.opts.Secret)
	mac.Write([]byte(id))
	return id + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (m *Manager) unsign(value string) (string, bool) {
	id, _, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}
	if !hmac.Equal([]byte(m.sign(id)), []byte(value)) {
		return "", false
	}
	return id, true
}

// Load returns the session named by the request cookie. A missing, forged,
// unknown or expired cookie yields (nil, nil); only store failures are errors.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	c, err := r.Cookie(m.opts.CookieName)
	if err != nil {
		return nil, nil
	}
	id, ok := m.unsign(c.Value)
	if !ok {
		return nil, nil
	}

	s, err := m.store.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if s.Expired(m.now()) {
		return nil, nil
	}
	return s, nil
}

// New creates an unsaved anonymous session.
func (m *Manager) New() (*Session, error) {
	id, err := newID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}
	now := m.now()
	return &Session{ID: id, CreatedAt: now, ExpiresAt: now.Add(m.opts.Lifetime)}, nil
}

// Save extends the session to a full lifetime from now, persists it and
// refreshes the cookie.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	s.ExpiresAt = m.now().Add(m.opts.Lifetime)
	if err := m.store.Save(ctx, s); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    m.sign(s.ID),
		Path:     m.opts.Path,
		Expires:  s.ExpiresAt,
		MaxAge:   int(m.opts.Lifetime.Seconds()),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: m.opts.SameSite,
	})
	return nil
}

// Renew moves s to a fresh id, keeping its contents, and drops the old record.
func (m *Manager) Renew(ctx context.Context, w http.ResponseWriter, s *Session) error {
	old := s.ID
	id, err := newID()
	if err != nil {
		return fmt.Errorf("failed to generate session id: %w", err)
	}
	s.ID = id
	s.CreatedAt = m.now()
	if err := m.Save(ctx, w, s); err != nil {
		return err
	}
	if old != "" {
		if err := m.store.Delete(ctx, old); err != nil {
			return err
		}
	}
	return nil
}

// Destroy deletes the session, if any, and clears the cookie. Calling it
// without a session is not an error.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, s *Session) error {
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     m.opts.Path,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: m.opts.SameSite,
	})
	if s == nil {
		return nil
	}
	return m.store.Delete(ctx, s.ID)
}
