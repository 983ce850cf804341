// Package config loads application configuration.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file named by WHISKEY_CONFIG_FILE, then WHISKEY_* environment variables.
//
// Server settings:
//
//	WHISKEY_HOST="0.0.0.0"
//	WHISKEY_PORT="8080"
//	WHISKEY_HEALTH_PORT="9090"
//	WHISKEY_TRUST_PROXY="true"
//	WHISKEY_CORS_ORIGINS="https://whiskey.example.com"
//
// Storage settings:
//
//	WHISKEY_DB_DRIVER="postgres"  # postgres, sqlite
//	WHISKEY_DB_DSN="postgres://localhost/whiskey?sslmode=disable"
//	WHISKEY_REDIS_URL="redis://localhost:6379/0"
//
// Sessions and request protection:
//
//	WHISKEY_SESSION_BACKEND="redis"  # memory, redis
//	WHISKEY_SESSION_SECRET="..."     # at least 32 bytes
//	WHISKEY_CSRF_SECRET="..."        # at least 32 bytes
//	WHISKEY_RATELIMIT_BACKEND="memory"
//
// Auth and email:
//
//	WHISKEY_BREACH_CHECK_ENABLED="true"
//	WHISKEY_BREACH_TIMEOUT="5s"
//	WHISKEY_EMAIL_PROVIDER="resend"  # log, resend
//	WHISKEY_RESEND_API_KEY="re_..."
//	WHISKEY_APP_BASE_URL="https://whiskey.example.com"
//
// Observability settings:
//
//	WHISKEY_LOG_LEVEL="info"  # debug, info, warn, error
//	WHISKEY_LOG_FORMAT="json" # json, text
//	WHISKEY_OTEL_ENABLED="true"
//	WHISKEY_OTEL_ENDPOINT="otel-collector:4317"
//
// When a YAML file is in use, LogLevelWatcher picks up log level edits
// without a restart.
package config
