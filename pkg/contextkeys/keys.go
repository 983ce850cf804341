// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here so that
// producers and consumers agree on names and value types.
//
// USAGE PATTERN:
//
//	import "github.com/DamageLabs/whiskey-canon-sub000/pkg/contextkeys"
//	ctx = contextkeys.WithPrincipal(ctx, account)
//	account, ok := ctx.Value(contextkeys.PrincipalKey).(*auth.Account)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains the authenticated *auth.Account
	// Set by: middleware.Identity (pkg/middleware/identity.go)
	// Required by: middleware.Authenticated, rbac gates
	// Type: *auth.Account
	PrincipalKey Key = "principal"

	// SessionKey contains the resolved *session.Session
	// Set by: middleware.Identity
	// Used by: CSRF guard, login/logout handlers
	// Type: *session.Session
	SessionKey Key = "session"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, audit trail
	// Type: string
	RequestIDKey Key = "request_id"

	// AccountIDKey contains the principal's account id
	// Set by: middleware.Identity
	// Used by: Logger, audit trail
	// Type: int64
	AccountIDKey Key = "account_id"

	// ClientIPKey contains the resolved client address
	// Set by: httputil.ClientInfoMiddleware
	// Used by: Rate limiter keys, audit trail
	// Type: string
	ClientIPKey Key = "client_ip"

	// UserAgentKey contains the request User-Agent
	// Set by: httputil.ClientInfoMiddleware
	// Used by: Audit trail
	// Type: string
	UserAgentKey Key = "user_agent"

	// LoggerKey contains *logrus.Entry
	// Set by: observability.WithLogger
	// Used by: Handlers that need structured logging with request context
	// Type: *logrus.Entry
	LoggerKey Key = "logger"
)

// WithPrincipal adds the authenticated account to the context
func WithPrincipal(ctx context.Context, principal interface{}) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// WithSession adds the current session to the context
func WithSession(ctx context.Context, sess interface{}) context.Context {
	return context.WithValue(ctx, SessionKey, sess)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithAccountID adds the principal's account id to the context
func WithAccountID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, AccountIDKey, id)
}

// WithClientInfo adds the client address and user agent to the context
func WithClientInfo(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ClientIPKey, ip)
	return context.WithValue(ctx, UserAgentKey, userAgent)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetAccountID retrieves the principal's account id from context
func GetAccountID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(AccountIDKey).(int64)
	return id, ok
}

// GetClientIP retrieves the client address from context
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ClientIPKey).(string); ok {
		return ip
	}
	return ""
}

// GetUserAgent retrieves the User-Agent from context
func GetUserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(UserAgentKey).(string); ok {
		return ua
	}
	return ""
}
