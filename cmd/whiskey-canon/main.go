package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/api"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/async"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/audit"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/auth"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/config"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/email"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/middleware"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/observability"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/rbac"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/session"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/storage"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	limiterCleanupSchedule = flag.String("limiter-cleanup-schedule", "@every 5m", "Cron schedule for dropping expired rate limit windows")
	auditPurgeSchedule     = flag.String("audit-purge-schedule", "30 3 * * *", "Cron schedule for purging audit records past retention (default: 03:30 UTC)")
	dbStatsSchedule        = flag.String("db-stats-schedule", "@every 30s", "Cron schedule for sampling connection pool stats")
	migrateOnly            = flag.Bool("migrate-only", false, "Apply database migrations and exit")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "whiskey-canon: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"version":     version,
		"db_driver":   cfg.Database.Driver,
		"config_file": cfg.File,
	}).Info("Starting whiskey-canon")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storageCfg := cfg.StorageConfig()
	db, err := storage.Open(ctx, storageCfg)
	if err != nil {
		return err
	}
	if err := storage.Migrate(ctx, db, storageCfg.Dialect); err != nil {
		db.Close()
		return err
	}
	if *migrateOnly {
		logger.Info("Migrations applied")
		return db.Close()
	}

	var redisClient *redis.Client
	if cfg.UsesRedis() {
		redisClient, err = storage.NewRedisClient(ctx, cfg.RedisClientConfig())
		if err != nil {
			db.Close()
			return err
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	runner := async.NewRunner(logger)
	dbAudit, err := audit.NewDBLogger(db, storageCfg.Dialect)
	if err != nil {
		return err
	}
	auditLogger := audit.NewAsyncMultiLogger(runner, dbAudit, audit.NewLogrusLogger(logger))

	sessions, err := newSessionManager(cfg, redisClient)
	if err != nil {
		return err
	}

	var limiter middleware.Limiter
	fixedWindow := middleware.NewFixedWindowLimiter(nil)
	if cfg.Security.RateLimitBackend == "redis" {
		limiter = middleware.NewDistributedRateLimiter(redisClient, "whiskey:ratelimit")
	} else {
		limiter = fixedWindow
	}
	rateLimit := middleware.NewRateLimitMiddleware(limiter, metrics, logger)

	csrf, err := middleware.NewCSRFGuard([]byte(cfg.Security.CSRFSecret), sessions, metrics, logger)
	if err != nil {
		return err
	}

	mailer, err := newMailer(cfg, metrics, logger)
	if err != nil {
		return err
	}

	var breach auth.BreachChecker
	if cfg.Auth.BreachCheckEnabled {
		breach = auth.NewRangeClient(cfg.Auth.BreachAPIURL, logger,
			auth.WithBreachTimeout(cfg.Auth.BreachTimeout),
			auth.WithBreachMetrics(metrics),
		)
	} else {
		logger.Warn("Breached password check is disabled")
	}

	accounts := storage.NewAccountStore(db, storageCfg.Dialect)
	tokens := auth.NewTokenService(nil)
	authService := auth.NewService(auth.Deps{
		Store:    accounts,
		Mailer:   mailer,
		Policy:   auth.NewPasswordPolicy(breach),
		Tokens:   tokens,
		Hasher:   auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Cooldown: auth.NewResendCooldown(cfg.Auth.ResendCooldown, tokens.Now),
		Audit:    auditLogger,
		Metrics:  metrics,
		Logger:   logger,
	})

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return err
	}

	deps := api.Deps{
		Auth:       authService,
		Accounts:   accounts,
		Whiskeys:   storage.NewWhiskeyStore(db, storageCfg.Dialect),
		Sessions:   sessions,
		CSRF:       csrf,
		RateLimit:  rateLimit,
		Authorizer: rbac.NewAuthorizer(auditLogger, logger),
		Audit:      auditLogger,
		AuditLog:   dbAudit,
		Logger:     logger,
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = metrics
	}
	server := api.NewServer(deps, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TrustProxy:     cfg.Server.TrustProxy,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Tracing:        providers != nil,
	})

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	probes := []observability.Probe{observability.DatabaseProbe(db)}
	if redisClient != nil {
		probes = append(probes, observability.RedisProbe(redisClient))
	}
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(version, probes...))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	retention := audit.RetentionPolicy{RetentionDays: int(cfg.Observability.AuditRetention / (24 * time.Hour))}
	scheduler, err := newScheduler(logger, schedulerJobs{
		limiter:   fixedWindow,
		audit:     dbAudit,
		retention: retention,
		db:        db,
		metrics:   metrics,
	})
	if err != nil {
		return err
	}
	scheduler.Start()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.Stage("scheduler", func(ctx context.Context) error {
		select {
		case <-scheduler.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	shutdown.Stage("audit", func(ctx context.Context) error {
		if err := runner.Wait(10 * time.Second); err != nil {
			logger.WithError(err).Warn("Audit writes still pending at shutdown")
		}
		return auditLogger.Close()
	})
	stores := []observability.ShutdownFunc{func(context.Context) error { return db.Close() }}
	if redisClient != nil {
		stores = append(stores, func(context.Context) error { return redisClient.Close() })
	}
	shutdown.Stage("stores", stores...)
	shutdown.Stage("telemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("API server listening")
		return serve(apiServer)
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		return serve(healthServer)
	})
	if cfg.File != "" {
		g.Go(func() error {
			return config.WatchLogLevel(gctx, cfg.File, logger)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")
		return shutdown.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("whiskey-canon stopped")
	return nil
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server %s: %w", srv.Addr, err)
	}
	return nil
}

func newSessionManager(cfg *config.Config, redisClient *redis.Client) (*session.Manager, error) {
	var store session.Store
	switch cfg.Session.Backend {
	case "redis":
		store = session.NewRedisStore(redisClient, "whiskey:session:")
	default:
		store = session.NewMemoryStore(cfg.Session.MemorySize, cfg.Session.Lifetime)
	}
	return session.NewManager(store, session.Options{
		CookieName: cfg.Session.CookieName,
		Secret:     []byte(cfg.Session.Secret),
		Lifetime:   cfg.Session.Lifetime,
		Secure:     cfg.Session.Secure,
		SameSite:   cfg.Session.SameSiteMode(),
		Path:       "/",
	}, nil)
}

func newMailer(cfg *config.Config, metrics email.Metrics, logger *logrus.Logger) (*email.Sender, error) {
	var provider email.Provider
	switch cfg.Email.Provider {
	case "resend":
		p, err := email.NewResendProvider(email.ResendConfig{
			APIKey:  cfg.Email.ResendAPIKey,
			BaseURL: cfg.Email.ResendBaseURL,
		})
		if err != nil {
			return nil, err
		}
		provider = p
	default:
		provider = email.NewLogProvider(logger)
	}
	logger.WithField("provider", provider.Name()).Info("Email provider configured")

	return email.NewSender(provider, email.SenderConfig{
		From:             cfg.Email.From,
		AppBaseURL:       cfg.Email.AppBaseURL,
		VerificationTTL:  auth.VerificationCodeTTL,
		PasswordResetTTL: auth.ResetTokenTTL,
	}, metrics, logger), nil
}

type schedulerJobs struct {
	limiter   *middleware.FixedWindowLimiter
	audit     *audit.DBLogger
	retention audit.RetentionPolicy
	db        *sql.DB
	metrics   *observability.Metrics
}

func newScheduler(logger *logrus.Logger, jobs schedulerJobs) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))

	if _, err := c.AddFunc(*limiterCleanupSchedule, func() {
		defer observability.RecoverPanic(logger, "cron: limiter cleanup")
		if n := jobs.limiter.Cleanup(); n > 0 {
			logger.WithField("removed", n).Debug("Expired rate limit windows dropped")
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule limiter cleanup: %w", err)
	}

	if jobs.retention.RetentionDays > 0 {
		if _, err := c.AddFunc(*auditPurgeSchedule, func() {
			defer observability.RecoverPanic(logger, "cron: purge audit log")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			n, err := jobs.audit.Purge(ctx, jobs.retention, time.Now().UTC())
			if err != nil {
				logger.WithError(err).Error("Audit purge failed")
				return
			}
			logger.WithField("deleted", n).Info("Audit records purged")
		}); err != nil {
			return nil, fmt.Errorf("failed to schedule audit purge: %w", err)
		}
	}

	if _, err := c.AddFunc(*dbStatsSchedule, func() {
		defer observability.RecoverPanic(logger, "cron: db stats")
		jobs.metrics.ObserveDB(jobs.db.Stats())
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule db stats: %w", err)
	}

	return c, nil
}
