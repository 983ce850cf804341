// Package auth implements account identity for the whiskey collection:
// registration with email verification, credential login, profile edits and
// password recovery.
//
// # Components
//
// PasswordPolicy enforces a minimum length of 12 characters and at least three
// of four character classes (upper, lower, digit, special). When a
// BreachChecker is configured, passwords that pass the local rules are looked
// up with a k-anonymity range query; the lookup fails open.
//
//	policy := auth.NewPasswordPolicy(auth.NewRangeClient(auth.DefaultBreachAPIURL, logger))
//	if err := policy.Validate(ctx, password); err != nil { ... }
//
// TokenService issues 8-symbol verification codes (15 minute lifetime) and
// 64-hex-character password reset tokens (60 minute lifetime).
//
// ResendCooldown throttles verification resends per email address.
//
// Service ties these together over an AccountStore and a Mailer:
//
//	svc := auth.NewService(auth.Deps{
//		Store:  accounts,
//		Mailer: sender,
//		Policy: policy,
//		Audit:  auditLogger,
//	})
//	acct, err := svc.Login(ctx, username, password)
//
// # Errors
//
// Service methods return *Error values carrying a Kind, a stable client code
// and a client-safe message. StatusCode and Payload map them onto HTTP
// responses. Unknown usernames and wrong passwords produce identical errors.
//
// # Related Packages
//
//   - pkg/storage: SQL AccountStore implementations
//   - pkg/session: server-side sessions holding the account id
//   - pkg/rbac: role and permission checks
//   - pkg/audit: audit trail for auth events
package auth
