package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-queue/config"
	"github.com/jwalitptl/clinic-queue/internal/email"
	authhandler "github.com/jwalitptl/clinic-queue/internal/handler/auth"
	clinichandler "github.com/jwalitptl/clinic-queue/internal/handler/clinic"
	displayhandler "github.com/jwalitptl/clinic-queue/internal/handler/display"
	"github.com/jwalitptl/clinic-queue/internal/handler/health"
	notificationhandler "github.com/jwalitptl/clinic-queue/internal/handler/notification"
	"github.com/jwalitptl/clinic-queue/internal/handler/stream"
	"github.com/jwalitptl/clinic-queue/internal/middleware"
	"github.com/jwalitptl/clinic-queue/internal/repository"
	"github.com/jwalitptl/clinic-queue/internal/repository/memory"
	"github.com/jwalitptl/clinic-queue/internal/repository/postgres"
	"github.com/jwalitptl/clinic-queue/internal/router"
	authservice "github.com/jwalitptl/clinic-queue/internal/service/auth"
	"github.com/jwalitptl/clinic-queue/internal/service/display"
	"github.com/jwalitptl/clinic-queue/internal/service/notification"
	"github.com/jwalitptl/clinic-queue/internal/service/queue"
	"github.com/jwalitptl/clinic-queue/internal/session"
	"github.com/jwalitptl/clinic-queue/pkg/auth"
	"github.com/jwalitptl/clinic-queue/pkg/feed"
	"github.com/jwalitptl/clinic-queue/pkg/logger"
	"github.com/jwalitptl/clinic-queue/pkg/messaging"
	"github.com/jwalitptl/clinic-queue/pkg/messaging/mqtt"
	"github.com/jwalitptl/clinic-queue/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-queue/pkg/metrics"
	"github.com/jwalitptl/clinic-queue/pkg/security"
	"github.com/jwalitptl/clinic-queue/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	appLog := logger.NewLogger(cfg.ToLoggerConfig())
	m := metrics.NewMetrics("clinic_queue", prometheus.DefaultRegisterer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	goRun := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	hub := feed.NewHub(cfg.Feed.ToFeedConfig(), appLog, m)
	goRun(func() { hub.Run(ctx) })

	// Initialize store
	var (
		repos  repository.Store
		checks = map[string]health.Pinger{}
		db     *sqlx.DB
	)
	switch cfg.Store {
	case config.StoreMemory:
		appLog.Warn("using in-memory store; state is lost on restart")
		repos = memory.NewStore(hub).Repositories()
	default:
		pgCfg := cfg.Database.ToPostgresConfig()
		db, err = postgres.NewDB(pgCfg)
		if err != nil {
			appLog.Fatal(err, "failed to connect to database")
		}
		defer db.Close()
		if cfg.Database.Migrate {
			if err := postgres.RunMigrations(db.DB, appLog); err != nil {
				appLog.Fatal(err, "failed to run migrations")
			}
		}
		repos = postgres.NewStore(db)
		checks["database"] = db

		listener := postgres.NewChangeListener(pgCfg.DSN(), hub, appLog)
		goRun(func() {
			if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
				appLog.Error(err, "change listener stopped")
			}
		})
	}

	// Initialize services
	hasher := security.NewBcryptHasher(0)
	jwt := auth.NewJWTService(cfg.JWT.ToAuthConfig())

	queueSvc := queue.NewService(repos.Clinics, repos.Outbox, hasher, cfg.Queue.ToQueueConfig(), appLog, m)
	notificationSvc := notification.NewService(
		repos.Notifications,
		repos.Clinics,
		repos.Outbox,
		email.NewService(cfg.SMTP.ToEmailConfig()),
		notification.Config{LogSize: cfg.Notifications.LogSize},
		appLog,
		m,
	)
	displaySvc := display.NewService(repos.DisplayConfig, repos.Screens, repos.Doctors, hasher, appLog)
	authSvc, err := authservice.NewService(repos.Clinics, repos.Screens, hasher, jwt, cfg.Admin.Secret, appLog)
	if err != nil {
		appLog.Fatal(err, "failed to initialize auth service")
	}

	// Initialize handlers
	authMiddleware := middleware.NewAuthMiddleware(jwt)
	requireAdmin := router.RequireAdmin(authMiddleware)
	limits := cfg.RateLimit.ToRateLimiterConfig()

	r, err := router.NewRouter(
		authMiddleware,
		authhandler.NewHandler(authSvc),
		health.NewHandler(checks),
		stream.NewHandler(hub, session.NewStoreSnapshot(repos), notificationSvc, cfg.Feed.ToSessionConfig(), appLog, m),
		[]router.Handler{
			clinichandler.NewHandler(queueSvc, requireAdmin),
			notificationhandler.NewHandler(notificationSvc),
			displayhandler.NewHandler(displaySvc, requireAdmin),
		},
		appLog,
		m,
		router.RouterConfig{
			RateLimit:  limits.Rate,
			RateBurst:  limits.Burst,
			CORSConfig: cfg.Security.ToCORSConfig(),
			Mode:       cfg.Server.Mode,
		},
	)
	if err != nil {
		appLog.Fatal(err, "failed to build router")
	}
	r.Setup()

	// Outbox relay
	broker, err := newBroker(cfg, appLog)
	if err != nil {
		appLog.Fatal(err, "failed to connect to message broker")
	}
	if broker.Len() > 0 {
		defer broker.Close()
		processor := worker.NewOutboxProcessor(repos.Outbox, broker, cfg.Outbox.ToWorkerConfig(), appLog, m)
		goRun(func() { processor.Start(ctx) })
	} else {
		appLog.Info("no message broker configured; outbox relay disabled")
	}
	cleanup := worker.NewOutboxCleanupWorker(repos.Outbox, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, appLog)
	goRun(func() { cleanup.Start(ctx) })

	// WriteTimeout stays zero: streams are long-lived.
	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		BaseContext:    func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		appLog.Info("server listening", "addr", srv.Addr, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("shutting down server...")

	// Cancelling first ends open streams so Shutdown does not wait on them.
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error(err, "server forced to shutdown")
	}
	hub.Close()
	wg.Wait()

	appLog.Info("server exited properly")
}

// newBroker connects every configured integration bus.
func newBroker(cfg *config.Config, appLog *logger.Logger) (*messaging.Fanout, error) {
	var brokers []messaging.Broker
	if cfg.Redis.Enabled() {
		b, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), appLog)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		brokers = append(brokers, b)
	}
	if cfg.MQTT.Enabled() {
		b, err := mqtt.NewBroker(cfg.MQTT.ToBrokerConfig(), appLog)
		if err != nil {
			return nil, fmt.Errorf("mqtt: %w", err)
		}
		brokers = append(brokers, b)
	}
	return messaging.NewFanout(brokers...), nil
}
