package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ride-tracker/internal/archive"
	"github.com/example/ride-tracker/internal/cache"
	"github.com/example/ride-tracker/internal/cancelflow"
	"github.com/example/ride-tracker/internal/channel"
	"github.com/example/ride-tracker/internal/config"
	"github.com/example/ride-tracker/internal/connectivity"
	httpapi "github.com/example/ride-tracker/internal/http"
	"github.com/example/ride-tracker/internal/logging"
	"github.com/example/ride-tracker/internal/payments"
	"github.com/example/ride-tracker/internal/poller"
	"github.com/example/ride-tracker/internal/rideapi"
	"github.com/example/ride-tracker/internal/ridesync"
	"github.com/example/ride-tracker/internal/smoother"
	"github.com/example/ride-tracker/internal/telemetry"
)

func main() {
	cfg, err := config.LoadTrackerConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if cfg.RideID == "" {
		logger.Error("RIDE_ID is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := rideapi.NewClient(cfg.APIBaseURL, cfg.AuthToken)

	var store cache.Cache
	if cfg.RedisAddr != "" {
		store = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.CacheTTL)
	} else {
		store = cache.NewMemory()
	}

	sm := smoother.New(cfg.SmoothDuration)

	// Feeders are stopped by the reconciler once the ride is terminal;
	// declared up front so the closure can capture them.
	var adapter *channel.Adapter
	var fallback *poller.Poller

	rcfg := ridesync.Config{
		RideID:        cfg.RideID,
		UI:            &logUI{log: logging.ForComponent(logger, "ui")},
		Cache:         store,
		Smoother:      sm,
		Logger:        logger,
		SnapshotEvery: cfg.SnapshotEvery,
		StopFeeders: func() {
			if adapter != nil {
				adapter.Close()
			}
			if fallback != nil {
				fallback.Stop()
			}
		},
	}
	if len(cfg.KafkaBrokers) > 0 {
		pub := telemetry.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer pub.Close()
		rcfg.Transitions = pub
	}
	if cfg.PGDSN != "" {
		if st, err := archive.NewStore(cfg.PGDSN); err != nil {
			logger.Warn("ride archive unavailable", "error", err)
		} else {
			defer st.Close()
			rcfg.Archive = st
		}
	}
	if os.Getenv("STRIPE_API_KEY") != "" {
		rcfg.Settler = payments.NewStripeSettler()
	}

	rec := ridesync.New(rcfg)
	rec.Start(ctx)
	defer rec.Close()

	// Initial load; on failure the poller catches up on its first stale tick.
	if snap, err := api.FetchSnapshotWithRetry(ctx, cfg.RideID, 3, 500*time.Millisecond); err != nil {
		logger.Warn("initial snapshot load failed", "error", err)
	} else {
		rec.ApplySnapshot(ridesync.SourcePoll, snap)
	}

	if cfg.ChannelURL != "" {
		adapter = channel.New(channel.Config{
			URL:       cfg.ChannelURL,
			AuthToken: cfg.AuthToken,
			RideID:    cfg.RideID,
			Sink:      rec,
			Logger:    logger,
		})
		adapter.Start()
	}

	fallback = poller.New(poller.Config{
		RideID:            cfg.RideID,
		Fetcher:           api,
		Sink:              rec,
		Logger:            logger,
		Interval:          cfg.PollInterval,
		StaleWhileTracked: cfg.StaleWhileTracked,
		StaleWhileIdle:    cfg.StaleWhileIdle,
	})
	fallback.Start(ctx)

	var monitor *connectivity.Monitor
	if cfg.ProbeAddr != "" {
		monitor = connectivity.New(connectivity.Config{
			Probe:    connectivity.DialProbe(cfg.ProbeAddr),
			Interval: cfg.ProbeInterval,
			Logger:   logger,
			OnChange: func(online bool) {
				rec.SetOnline(online)
				fallback.SetOnline(online)
				if online {
					fallback.ForceFetch()
				}
			},
		})
		monitor.Start(ctx)
		defer monitor.Stop()
	}

	// In a real client the host UI drives the cancellation flow; here it is
	// exposed on the ops server so the same path is exercised end to end.
	cancelFlow := cancelflow.New(cfg.RideID, api, rec, logger)

	ops := httpapi.NewServer(rec, sm, cancelFlow, logger)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      ops,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("ops server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server stopped", "error", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case <-rec.Done():
		logger.Info("ride finished, shutting down")
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	if adapter != nil {
		adapter.Close()
	}
	fallback.Stop()
}

// logUI satisfies the reconciler's UI surface by logging the commands a
// real client would render.
type logUI struct {
	log *slog.Logger
}

func (u *logUI) NavigateTo(screen string, params map[string]any) {
	u.log.Info("navigate", "screen", screen, "params", params)
}

func (u *logUI) ShowAlert(message string) {
	u.log.Info("alert", "message", message)
}
