// Command worker relays the outbox to Redis and MQTT without serving the
// API. Run it next to cmd/api when the relay should scale on its own.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-queue/config"
	"github.com/jwalitptl/clinic-queue/internal/repository/postgres"
	"github.com/jwalitptl/clinic-queue/pkg/logger"
	"github.com/jwalitptl/clinic-queue/pkg/messaging"
	"github.com/jwalitptl/clinic-queue/pkg/messaging/mqtt"
	"github.com/jwalitptl/clinic-queue/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-queue/pkg/metrics"
	"github.com/jwalitptl/clinic-queue/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	appLog := logger.NewLogger(cfg.ToLoggerConfig())
	hostname, _ := os.Hostname()
	appLog = appLog.With("worker_id", fmt.Sprintf("%s-%d", hostname, os.Getpid()))
	m := metrics.NewMetrics("clinic_queue_worker", prometheus.DefaultRegisterer)

	if cfg.Store != config.StorePostgres {
		appLog.Fatal(errors.New("store is "+cfg.Store), "the relay worker needs the postgres store")
	}

	db, err := postgres.NewDB(cfg.Database.ToPostgresConfig())
	if err != nil {
		appLog.Fatal(err, "failed to connect to database")
	}
	defer db.Close()
	outbox := postgres.NewOutboxRepository(postgres.NewBaseRepository(db))

	var brokers []messaging.Broker
	if cfg.Redis.Enabled() {
		b, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), appLog)
		if err != nil {
			appLog.Fatal(err, "failed to create Redis broker")
		}
		brokers = append(brokers, b)
	}
	if cfg.MQTT.Enabled() {
		b, err := mqtt.NewBroker(cfg.MQTT.ToBrokerConfig(), appLog)
		if err != nil {
			appLog.Fatal(err, "failed to create MQTT broker")
		}
		brokers = append(brokers, b)
	}
	broker := messaging.NewFanout(brokers...)
	if broker.Len() == 0 {
		appLog.Fatal(errors.New("no broker configured"), "set redis.url or mqtt.broker")
	}
	defer broker.Close()

	processor := worker.NewOutboxProcessor(outbox, broker, cfg.Outbox.ToWorkerConfig(), appLog, m)
	cleanup := worker.NewOutboxCleanupWorker(outbox, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, appLog)

	srv := healthServer(cfg.Outbox.HealthPort, db.PingContext)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Error(err, "health check server failed")
			os.Exit(1)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLog.Info("shutting down...")
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

func healthServer(port int, ping func(context.Context) error) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
