package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/auth"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/httputil"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/session"
)

// CSRF cookie and header names.
const (
	CSRFCookieName = "whiskey_csrf"
	CSRFHeaderName = "X-CSRF-Token"
)

// CSRFMetrics receives rejection counts.
type CSRFMetrics interface {
	RecordCSRFRejection()
}

// CSRFGuard implements double-submit tokens bound to the session id.
type CSRFGuard struct {
	secret   []byte
	sessions *session.Manager
	metrics  CSRFMetrics
	logger   logrus.FieldLogger
}

// NewCSRFGuard creates a guard. metrics may be nil.
func NewCSRFGuard(secret []byte, sessions *session.Manager, metrics CSRFMetrics, logger logrus.FieldLogger) (*CSRFGuard, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("csrf secret must be at least 32 bytes")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CSRFGuard{secret: secret, sessions: sessions, metrics: metrics, logger: logger}, nil
}

// Token derives the token for a session id.
func (g *CSRFGuard) Token(sessionID string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(sessionID))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// IssueToken marks the session as CSRF-initialized, saves it, sets the
// readable CSRF cookie and returns the token for the response body.
func (g *CSRFGuard) IssueToken(ctx context.Context, w http.ResponseWriter, sess *session.Session) (string, error) {
	sess.CSRFInitialized = true
	if err := g.sessions.Save(ctx, w, sess); err != nil {
		return "", err
	}

	token := g.Token(sess.ID)
	g.setCookie(w, token)
	return token, nil
}

// Refresh re-sends the CSRF cookie for initialized sessions so it rolls
// forward with the session cookie. Mount it after Identity.
func (g *CSRFGuard) Refresh(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess := SessionFrom(r.Context()); sess != nil && sess.CSRFInitialized {
			g.setCookie(w, g.Token(sess.ID))
		}
		next.ServeHTTP(w, r)
	})
}

func (g *CSRFGuard) setCookie(w http.ResponseWriter, token string) {
	opts := g.sessions.Options()
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     opts.Path,
		MaxAge:   int(opts.Lifetime.Seconds()),
		HttpOnly: false,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// Validate reports whether r may proceed. Safe methods always may; others
// need a session, the cookie, and a matching header, all equal to the token
// derived from the session id.
func (g *CSRFGuard) Validate(r *http.Request) bool {
	if safeMethod(r.Method) {
		return true
	}

	sess := SessionFrom(r.Context())
	if sess == nil {
		return false
	}
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	header := r.Header.Get(CSRFHeaderName)
	if header == "" {
		return false
	}

	expected := []byte(g.Token(sess.ID))
	return hmac.Equal([]byte(header), []byte(cookie.Value)) &&
		hmac.Equal([]byte(header), expected)
}

// Middleware rejects requests that fail Validate with 403 INVALID_CSRF_TOKEN.
func (g *CSRFGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Validate(r) {
			if g.metrics != nil {
				g.metrics.RecordCSRFRejection()
			}
			g.logger.WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
			}).Info("csrf validation failed")
			httputil.WriteErrorCode(w, http.StatusForbidden, auth.CodeInvalidCSRF, "Invalid CSRF token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClearToken expires the CSRF cookie.
func (g *CSRFGuard) ClearToken(w http.ResponseWriter) {
	opts := g.sessions.Options()
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    "",
		Path:     opts.Path,
		MaxAge:   -1,
		HttpOnly: false,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}
