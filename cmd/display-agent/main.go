// Command display-agent runs a waiting room screen. It mirrors the server's
// change feed, plays call announcements through a local audio player and
// writes display frames as JSON lines on stdout for the renderer.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-queue/config"
	"github.com/jwalitptl/clinic-queue/internal/service/announce"
	"github.com/jwalitptl/clinic-queue/internal/session"
	"github.com/jwalitptl/clinic-queue/pkg/feed"
	"github.com/jwalitptl/clinic-queue/pkg/feed/remote"
	"github.com/jwalitptl/clinic-queue/pkg/logger"
	"github.com/jwalitptl/clinic-queue/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logCfg := cfg.ToLoggerConfig()
	logCfg.Output = os.Stderr
	appLog := logger.NewLogger(logCfg).With("screen_id", cfg.Agent.ScreenID)

	remoteCfg, err := cfg.Agent.ToRemoteConfig()
	if err != nil {
		appLog.Fatal(err, "invalid agent configuration")
	}
	m := metrics.NewMetrics("display_agent", prometheus.NewRegistry())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := feed.NewHub(cfg.Feed.ToFeedConfig(), appLog, m)
	defer hub.Close()
	client := remote.NewClient(remoteCfg, hub, appLog)

	if err := loginWithRetry(ctx, client, appLog); err != nil {
		appLog.Info("stopped before login")
		return
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = client.Run(ctx)
	}()

	sequencer := announce.NewSequencer(announce.NewExecProvider(cfg.Agent.ToExecConfig()), appLog, m)
	defer sequencer.Stop()

	screen := session.NewScreen(
		remoteCfg.ScreenID,
		client,
		client,
		newLogSurface(appLog),
		sequencer,
		cfg.Feed.ToSessionConfig(),
		appLog,
		m,
	)

	enc := json.NewEncoder(os.Stdout)
	var mu sync.Mutex
	sink := func(f session.Frame) error {
		mu.Lock()
		defer mu.Unlock()
		return enc.Encode(f)
	}

	// A session ends on heartbeat loss; start a fresh one with a snapshot.
	for ctx.Err() == nil {
		if err := screen.Run(ctx, sink); err != nil && ctx.Err() == nil {
			appLog.Error(err, "screen session ended")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
	wg.Wait()
	appLog.Info("display agent stopped")
}

func loginWithRetry(ctx context.Context, client *remote.Client, appLog *logger.Logger) error {
	delay := time.Second
	for {
		err := client.Login(ctx)
		if err == nil {
			return nil
		}
		appLog.Warn("login failed", "error", err.Error(), "retry_in", delay.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}
