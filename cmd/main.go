package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mklounge/squadqueue/internal/adapters/http/api"
	"github.com/mklounge/squadqueue/internal/adapters/messaging"
	"github.com/mklounge/squadqueue/internal/adapters/provision"
	"github.com/mklounge/squadqueue/internal/adapters/ratings"
	"github.com/mklounge/squadqueue/internal/adapters/settings"
	"github.com/mklounge/squadqueue/internal/app"
	"github.com/mklounge/squadqueue/internal/clock"
	"github.com/mklounge/squadqueue/internal/config"
	"github.com/mklounge/squadqueue/internal/domain/assign"
	"github.com/mklounge/squadqueue/internal/domain/model"
	"github.com/mklounge/squadqueue/internal/domain/policy"
	"github.com/mklounge/squadqueue/pkg/logger"
	"github.com/mklounge/squadqueue/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second

	autoExtendGrant = 2 * time.Minute
)

func main() {
	// The scheduler's own metrics are enough; drop the default collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := settings.Open(cfg.SettingsPath)
	if err != nil {
		log.Error(ctx, "failed to open settings store", logger.Error(err))
		return
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn(ctx, "settings store close failed", logger.Error(err))
		}
	}()

	svc, cache, err := buildService(ctx, cfg, store, log)
	if err != nil {
		log.Error(ctx, "failed to build service", logger.Error(err))
		return
	}

	go cache.Run(ctx)
	go svc.Run(ctx)

	mux := http.NewServeMux()
	api.NewServer(svc).Register(mux)
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
}

// buildService assembles the scheduler from configuration: the event
// clock, rating cache, assignment strategy, close policy and provisioners.
func buildService(ctx context.Context, cfg *config.Config, store *settings.Store, log logger.Logger) (*app.Service, *ratings.Cache, error) {
	// Persisted operator settings override the static configuration.
	saved, err := store.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading persisted settings: %w", err)
	}
	applySavedSettings(ctx, cfg, saved, log)

	now := time.Now().UTC()
	anchor := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		Add(time.Duration(cfg.DailyAnchorMinutes) * time.Minute)

	var clockOpts []clock.Option
	rotationOrder, err := parseFormats(cfg.ForcedFormatOrder)
	if err != nil {
		return nil, nil, err
	}
	if len(rotationOrder) > 0 && cfg.ForcedFormatEveryNEvents > 0 {
		clockOpts = append(clockOpts, clock.WithRotation(clock.Rotation{
			Anchor: anchor.Add(time.Duration(cfg.ForcedFormatAnchorHourOffset) * time.Hour),
			Order:  rotationOrder,
			EveryN: cfg.ForcedFormatEveryNEvents,
			Cycles: cfg.ForcedFormatCycles,
			Offset: cfg.ForcedFormatOrderOffset,
		}))
	}

	interval := time.Duration(cfg.EventIntervalMinutes) * time.Minute
	joining := time.Duration(cfg.JoiningWindowMinutes) * time.Minute
	schedule := clock.New(anchor, interval, joining,
		time.Duration(cfg.DisplayOffsetMinutes)*time.Minute, clockOpts...)
	schedule.Autoschedule(now)

	strategy, err := assign.New(cfg.Strategy, cfg.RatingThreshold)
	if err != nil {
		return nil, nil, err
	}

	// Auto-extension only makes sense when invalid rooms can hold the
	// close open; the truncate strategy never produces one.
	var policyOpts []policy.Option
	if cfg.Strategy == assign.StrategyBalanced {
		policyOpts = append(policyOpts, policy.WithAutoExtend(autoExtendGrant))
	}
	pol := policy.New(time.Duration(cfg.ExtensionWindowMinutes)*time.Minute, policyOpts...)

	cache := ratings.New(cfg.RatingURL,
		ratings.WithRefreshInterval(time.Duration(cfg.RatingRefreshMinutes)*time.Minute),
		ratings.WithRetryBackoff(time.Duration(cfg.RatingRetryBackoffSeconds)*time.Second),
		ratings.WithPlacementRating(cfg.PlacementRating),
	)

	svc := app.New(schedule, strategy, pol, cache,
		cfg.TeamSize, cfg.RoomCapacity, joining, interval,
		cfg.RatingFloor, cfg.RatingCeiling, cfg.PlacementRating,
		app.WithLogger(log),
		app.WithSink(buildSink(cfg)),
		app.WithProvisioner(buildProvisioner(cfg, log)),
		app.WithRoles(provision.NewLogRoles(nil)),
		app.WithSettingsStore(store),
		app.WithTick(time.Duration(cfg.TickSeconds)*time.Second),
		app.WithVoteTimeout(time.Duration(cfg.VoteTimeoutSeconds)*time.Second),
		app.WithEventLifetime(time.Duration(cfg.EventLifetimeMinutes)*time.Minute),
	)
	return svc, cache, nil
}

// buildSink routes announcements to the configured webhook, or to the log
// when none is set.
func buildSink(cfg *config.Config) messaging.Sink {
	if cfg.AnnounceWebhookURL == "" {
		return messaging.NewLogSink(nil)
	}
	return messaging.NewWebhookSink(cfg.AnnounceWebhookURL, nil)
}

// buildProvisioner prefers the pre-provisioned channel pool and falls back
// to minting threads once it runs dry.
func buildProvisioner(cfg *config.Config, log logger.Logger) provision.Provisioner {
	if cfg.ChannelPoolSize <= 0 {
		return provision.NewThreads()
	}
	channels := make([]provision.Channel, 0, cfg.ChannelPoolSize)
	for i := 1; i <= cfg.ChannelPoolSize; i++ {
		channels = append(channels, provision.Channel{
			ID:   fmt.Sprintf("pool-%d", i),
			Name: fmt.Sprintf("room-channel-%d", i),
		})
	}
	return provision.NewFallback(log, provision.NewPool(channels), provision.NewThreads())
}

// applySavedSettings overlays the persisted operator values onto the
// loaded configuration. Unknown or malformed entries are skipped with a
// warning rather than blocking startup.
func applySavedSettings(ctx context.Context, cfg *config.Config, saved map[string]string, log logger.Logger) {
	for key, raw := range saved {
		var target *int
		switch key {
		case app.SettingRatingThreshold:
			target = &cfg.RatingThreshold
		case app.SettingVoteTimeout:
			target = &cfg.VoteTimeoutSeconds
		case app.SettingEventLifetime:
			target = &cfg.EventLifetimeMinutes
		default:
			log.Warn(ctx, "ignoring unknown persisted setting", logger.String("key", key))
			continue
		}
		var n int
		if _, err := fmt.Sscanf(raw, "%d", &n); err != nil || n <= 0 {
			log.Warn(ctx, "ignoring malformed persisted setting",
				logger.String("key", key), logger.String("value", raw))
			continue
		}
		*target = n
	}
}

func parseFormats(names []string) ([]model.Format, error) {
	formats := make([]model.Format, 0, len(names))
	for _, name := range names {
		f, err := model.ParseFormat(name)
		if err != nil {
			return nil, fmt.Errorf("forced_format_order: %w", err)
		}
		formats = append(formats, f)
	}
	return formats, nil
}
