// Package rbac maps account roles onto a fixed permission table and exposes
// HTTP gates over it.
//
//	admin:  whiskey:create whiskey:read whiskey:update whiskey:delete users:manage
//	editor: whiskey:create whiskey:read whiskey:update
//	viewer: whiskey:read
//
// Roles and permissions are closed sets; there is no runtime role creation.
//
//	authz := rbac.NewAuthorizer(auditLogger, logger)
//	r.Handle("/api/whiskeys", authz.RequirePermission(rbac.PermCreateWhiskey)(createHandler))
//	r.Handle("/api/whiskeys/{id}", authz.RequireRole(auth.RoleAdmin)(
//		authz.RequirePermission(rbac.PermDeleteWhiskey)(deleteHandler)))
//
// A denial answers 403 with the required permission (or roles) and the
// caller's current role, and records an authz.access_denied audit event.
package rbac
