// Package audit records security-relevant events: registrations, email
// verification, logins and their failures, logouts, password resets, role
// changes, access denials and collection mutations.
//
// # Sinks
//
// DBLogger writes to the audit_logs table, LogrusLogger emits structured log
// lines and NoOpLogger discards everything. MultiLogger fans out to several
// sinks and, when built with NewAsyncMultiLogger, writes in the background so
// a slow database never delays an auth response.
//
//	logger := audit.NewAsyncMultiLogger(runner, dbLogger, audit.NewLogrusLogger(log))
//	logger.Log(ctx, audit.AccountEvent(ctx, audit.EventTypeAuthLogin, audit.EventStatusSuccess, id, username, "login"))
//
// # Retention
//
// Events older than the retention policy (90 days by default) are removed by
// DBLogger.Purge, which the server schedules daily.
//
// # Querying
//
// DBLogger.Search filters by time range, actor, event type, status and IP.
// Export renders a result set as JSON, CSV or NDJSON.
package audit
