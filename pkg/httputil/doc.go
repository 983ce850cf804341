// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteMessage(w, "Logged out successfully")
//	httputil.WriteCreated(w, resource)
//
// Domain errors implement StatusError and are written with WriteAPIError,
// which keeps 5xx bodies opaque and logs the cause:
//
//	if err != nil {
//		httputil.WriteAPIError(w, logger, err)
//		return
//	}
//
// # Request Parsing
//
//	var req loginRequest
//	if !httputil.DecodeAndValidate(w, r, &req) {
//		return // 400 already written
//	}
//
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.ClientInfoMiddleware(trustProxy),
//		httputil.RecoveryMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related Packages
//
//   - pkg/middleware: sessions, CSRF, identity and rate limiting
//   - pkg/rbac: permission gates
package httputil
