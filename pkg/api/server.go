package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/audit"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/auth"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/httputil"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/middleware"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/observability"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/rbac"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/session"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/whiskey"
)

// Deps are the components the API is assembled from. Metrics, Audit and
// AuditLog are optional; without AuditLog the audit log routes are not served.
type Deps struct {
	Auth       *auth.Service
	Accounts   auth.AccountReader
	Whiskeys   whiskey.Store
	Sessions   *session.Manager
	CSRF       *middleware.CSRFGuard
	RateLimit  *middleware.RateLimitMiddleware
	Authorizer *rbac.Authorizer
	Audit      audit.Logger
	AuditLog   AuditSearcher
	Metrics    *observability.Metrics
	Logger     *logrus.Logger
}

// Options tune the outer middleware stack.
type Options struct {
	AllowedOrigins []string
	TrustProxy     bool
	MaxBodyBytes   int64
	Tracing        bool
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	logger  *logrus.Logger

	authHandlers    *AuthHandlers
	userHandlers    *UserHandlers
	whiskeyHandlers *WhiskeyHandlers
	auditHandlers   *AuditHandlers
}

// NewServer creates a new API server
func NewServer(d Deps, opts Options) *Server {
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	s := &Server{
		router: mux.NewRouter(),
		logger: d.Logger,
	}
	s.authHandlers = NewAuthHandlers(d.Auth, d.Sessions, d.CSRF)
	s.userHandlers = NewUserHandlers(d.Auth)
	s.whiskeyHandlers = NewWhiskeyHandlers(d.Whiskeys, d.Audit)
	if d.AuditLog != nil {
		s.auditHandlers = NewAuditHandlers(d.AuditLog)
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "Not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	if d.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(d.Metrics))
	}

	g := gates{
		csrf:       d.CSRF.Middleware,
		limit:      d.RateLimit.Limit,
		authorizer: d.Authorizer,
	}
	api := s.router.PathPrefix("/api").Subrouter()
	s.authHandlers.RegisterRoutes(api, g)
	s.userHandlers.RegisterRoutes(api, g)
	s.whiskeyHandlers.RegisterRoutes(api, g)
	if s.auditHandlers != nil {
		s.auditHandlers.RegisterRoutes(api, g)
	}

	identity := middleware.NewIdentity(d.Sessions, d.Accounts, d.Logger)

	var h http.Handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.ClientInfoMiddleware(opts.TrustProxy),
		observability.ContextLogger(d.Logger),
		httputil.RecoveryMiddleware(d.Logger),
		httputil.LoggingMiddleware(d.Logger),
		httputil.SecurityHeaders,
		httputil.CORSMiddleware(opts.AllowedOrigins),
		httputil.MaxBytesMiddleware(opts.MaxBodyBytes),
		identity.Middleware,
		d.CSRF.Refresh,
	)(s.router)

	if opts.Tracing {
		h = otelhttp.NewHandler(h, "whiskey-canon")
	}
	s.handler = h
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the underlying router for tests and extra registrations.
func (s *Server) Router() *mux.Router {
	return s.router
}

// gates bundles the per-route middleware factories handed to each handler group.
type gates struct {
	csrf       func(http.Handler) http.Handler
	limit      func(middleware.LimitClass) func(http.Handler) http.Handler
	authorizer *rbac.Authorizer
}

// route wraps h in mws, outermost first.
func route(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	return httputil.Chain(mws...)(h)
}

// requestLogger returns the request-scoped log entry.
func requestLogger(r *http.Request) *logrus.Entry {
	return observability.FromContext(r.Context())
}

// writeError sends err through the shared error mapping.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteAPIError(w, requestLogger(r), err)
}
