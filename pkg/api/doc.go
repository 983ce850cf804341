// Package api assembles the HTTP surface of Whiskey Canon.
//
// Routes are registered on a gorilla/mux router under /api. Each state
// changing route carries its gates in a fixed order: rate limit class, then
// CSRF, then authentication and RBAC. Identity resolution runs once per
// request in the outer stack, so handlers that need the caller take it as an
// explicit parameter via middleware.Authenticated.
//
//	srv := api.NewServer(api.Deps{...}, api.Options{TrustProxy: true})
//	http.ListenAndServe(":8080", srv)
//
// # Endpoints
//
//	GET    /api/csrf-token
//	POST   /api/auth/register              auth limit, CSRF
//	POST   /api/auth/verify-email          auth limit, CSRF
//	POST   /api/auth/resend-verification   contact limit, CSRF
//	POST   /api/auth/login                 auth limit, CSRF
//	POST   /api/auth/logout                CSRF
//	GET    /api/auth/me                    authenticated
//	PUT    /api/auth/profile               CSRF, authenticated
//	POST   /api/auth/forgot-password       password_reset limit, CSRF
//	POST   /api/auth/reset-password        password_reset limit, CSRF
//	GET    /api/users/{username}
//	GET    /api/admin/users                users:manage
//	PUT    /api/admin/users/{id}/role      CSRF, users:manage
//	GET    /api/whiskeys[/{id}]            whiskey:read
//	POST   /api/whiskeys                   CSRF, whiskey:create
//	PUT    /api/whiskeys/{id}              CSRF, whiskey:update
//	DELETE /api/whiskeys/{id}              CSRF, admin role, whiskey:delete
//
// Errors are JSON objects with "error" and "code" fields; see auth.Error.
package api
