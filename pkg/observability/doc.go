// Package observability wires logging, Prometheus metrics, health probes,
// OpenTelemetry and graceful shutdown.
//
// # Logging
//
//	logger, err := observability.NewLogger("info", observability.FormatJSON, os.Stdout)
//	observability.FromContext(r.Context()).WithError(err).Warn("email send failed")
//
// # Metrics
//
// Metrics satisfies auth.Metrics, so the auth service, the rate limiter and
// the CSRF guard all report into one registry:
//
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	observability.RegisterMetricsEndpoint(healthMux, registry)
//
// # Health
//
// The database probe is required; Redis only degrades readiness.
//
//	checker := observability.NewHealthChecker(version,
//		observability.DatabaseProbe(db), observability.RedisProbe(redisClient))
//	observability.RegisterHealthRoutes(healthMux, checker)
//
// # Shutdown
//
//	sm := observability.NewShutdownManager(logger, 30*time.Second, apiServer, healthServer)
//	sm.Stage("stores", func(ctx context.Context) error { return db.Close() })
//	err := sm.Shutdown(ctx)
package observability
