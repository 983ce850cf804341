package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/auth"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/contextkeys"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/httputil"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/session"
)

// Identity resolves the session and principal once per request.
type Identity struct {
	sessions *session.Manager
	accounts auth.AccountReader
	logger   logrus.FieldLogger
}

// NewIdentity creates the identity middleware.
func NewIdentity(sessions *session.Manager, accounts auth.AccountReader, logger logrus.FieldLogger) *Identity {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Identity{sessions: sessions, accounts: accounts, logger: logger}
}

// Middleware attaches the session and, when its account still exists, the
// principal. Any lookup failure leaves the request anonymous. A live
// session's expiry is pushed forward on every request.
func (i *Identity) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sess, err := i.sessions.Load(r)
		if err != nil {
			i.logger.WithError(err).Warn("failed to load session")
		}
		if sess == nil {
			next.ServeHTTP(w, r)
			return
		}

		if err := i.sessions.Save(ctx, w, sess); err != nil {
			i.logger.WithError(err).Warn("failed to refresh session")
		}
		ctx = contextkeys.WithSession(ctx, sess)

		if sess.Authenticated() {
			acct, err := i.accounts.FindByID(ctx, sess.AccountID)
			switch {
			case err == nil:
				ctx = contextkeys.WithPrincipal(ctx, acct)
				ctx = contextkeys.WithAccountID(ctx, acct.ID)
			case errors.Is(err, auth.ErrAccountNotFound):
				i.logger.WithField("account_id", sess.AccountID).Debug("session references a missing account")
			default:
				i.logger.WithError(err).Warn("failed to resolve session principal")
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionFrom returns the request's session, or nil.
func SessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(contextkeys.SessionKey).(*session.Session)
	return sess
}

// PrincipalFrom returns the authenticated account, if any.
func PrincipalFrom(ctx context.Context) (*auth.Account, bool) {
	acct, ok := ctx.Value(contextkeys.PrincipalKey).(*auth.Account)
	return acct, ok && acct != nil
}

// WriteAuthRequired writes the 401 used for anonymous callers.
func WriteAuthRequired(w http.ResponseWriter) {
	httputil.WriteErrorCode(w, http.StatusUnauthorized, auth.CodeAuthRequired, "Authentication required")
}

// RequireAuthenticated rejects anonymous requests with 401.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFrom(r.Context()); !ok {
			WriteAuthRequired(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PrincipalHandler is a handler that receives the authenticated account.
type PrincipalHandler func(w http.ResponseWriter, r *http.Request, principal *auth.Account)

// Authenticated adapts fn into an http.Handler that requires a principal.
func Authenticated(fn PrincipalHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFrom(r.Context())
		if !ok {
			WriteAuthRequired(w)
			return
		}
		fn(w, r, principal)
	})
}
