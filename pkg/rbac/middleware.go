package rbac

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/audit"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/auth"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/httputil"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/middleware"
)

// Authorizer builds permission and role gates. Gates expect
// middleware.RequireAuthenticated (or an equivalent) in front of them but
// answer 401 themselves when no principal is attached.
type Authorizer struct {
	audit  audit.Logger
	logger logrus.FieldLogger
}

// NewAuthorizer creates an Authorizer. auditLogger may be nil.
func NewAuthorizer(auditLogger audit.Logger, logger logrus.FieldLogger) *Authorizer {
	if auditLogger == nil {
		auditLogger = audit.NoOpLogger{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Authorizer{audit: auditLogger, logger: logger}
}

// RequirePermission allows the request only if the principal's role grants p.
func (a *Authorizer) RequirePermission(p Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := middleware.PrincipalFrom(r.Context())
			if !ok {
				middleware.WriteAuthRequired(w)
				return
			}

			if !HasPermission(principal.Role, p) {
				a.denied(r, principal, "missing permission "+p.String())
				httputil.WriteJSON(w, http.StatusForbidden, map[string]interface{}{
					"error":              "Insufficient permissions",
					"code":               auth.CodeForbidden,
					"requiredPermission": p.String(),
					"currentRole":        principal.Role.String(),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole allows the request only if the principal holds one of roles.
func (a *Authorizer) RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = role.String()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := middleware.PrincipalFrom(r.Context())
			if !ok {
				middleware.WriteAuthRequired(w)
				return
			}

			for _, role := range roles {
				if principal.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			a.denied(r, principal, "role not in "+strings.Join(names, ","))
			httputil.WriteJSON(w, http.StatusForbidden, map[string]interface{}{
				"error":         "Insufficient role",
				"code":          auth.CodeForbidden,
				"requiredRoles": names,
				"currentRole":   principal.Role.String(),
			})
		})
	}
}

func (a *Authorizer) denied(r *http.Request, principal *auth.Account, reason string) {
	event := audit.NewEvent(r.Context(), audit.EventTypeAuthzAccessDenied, audit.EventStatusDenied)
	event.AccountID = &principal.ID
	event.Username = principal.Username
	event.Message = reason
	event.Metadata["method"] = r.Method
	event.Metadata["path"] = r.URL.Path
	if err := a.audit.Log(r.Context(), event); err != nil {
		a.logger.WithError(err).Warn("failed to record access denial")
	}
}
