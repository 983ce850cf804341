// Package middleware provides the request gates in front of the API:
// session identity, CSRF protection and fixed-window rate limiting.
//
// # Identity
//
//	identity := middleware.NewIdentity(sessions, accountStore, logger)
//	router.Use(identity.Middleware)
//	router.Handle("/api/auth/me", middleware.Authenticated(h.me))
//
// A session whose account has been deleted is treated as anonymous, never as
// an error.
//
// # CSRF
//
//	guard, _ := middleware.NewCSRFGuard(secret, sessions, metrics, logger)
//	token, _ := guard.IssueToken(ctx, w, sess)   // also sets the readable cookie
//	router.Use(identity.Middleware, guard.Refresh)  // cookie rolls with the session
//	router.Handle("/api/auth/logout", guard.Middleware(logoutHandler))
//
// Clients echo the token in the X-CSRF-Token header on every request other
// than GET, HEAD and OPTIONS.
//
// # Rate limiting
//
//	limiter := middleware.NewFixedWindowLimiter(nil)            // single process
//	limiter := middleware.NewDistributedRateLimiter(redis, "")  // shared
//	rl := middleware.NewRateLimitMiddleware(limiter, metrics, logger)
//	router.Handle("/api/auth/login", rl.Limit(middleware.ClassAuth)(loginHandler))
//
// Redis errors fail open.
package middleware
