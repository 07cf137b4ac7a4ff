package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ogulcanaydogan/fuel-guardian/internal/config"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/alerts"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/lifecycle"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/lock"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/metrics"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/storage"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/tracker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "fuelguard",
	Short: "Fuel Guardian - generator fuel forecasting and refuel alerts",
	Long: `Fuel Guardian forecasts when each site's diesel generator will run out of
fuel from its refueling history, and keeps one open alert per site that
reflects how urgently it needs refueling.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.fuelguard/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initStorage creates a storage backend from config.
func initStorage(cfg *config.Config) (storage.Storage, error) {
	return storage.NewSQLite(cfg.Storage.Path)
}

func thresholds(cfg *config.Config) lifecycle.Thresholds {
	return lifecycle.Thresholds{
		CriticalDays: cfg.Alerts.CriticalDays,
		WarningDays:  cfg.Alerts.WarningDays,
	}
}

// initNotifiers creates notifiers from config, each behind a circuit breaker.
func initNotifiers(cfg *config.Config) []alerts.Notifier {
	var notifiers []alerts.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alerts.NewSlackNotifier(
			cfg.Alerts.Slack.WebhookURL,
			cfg.Alerts.Slack.Channel,
		))
	}

	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(
			cfg.Alerts.Webhook.URL,
			cfg.Alerts.Webhook.Secret,
		))
	}

	if cfg.Alerts.Email.Enabled {
		notifiers = append(notifiers, alerts.NewEmailNotifier(alerts.EmailConfig{
			APIKey:   cfg.Alerts.Email.APIKey,
			BaseURL:  cfg.Alerts.Email.BaseURL,
			FromName: cfg.Alerts.Email.FromName,
			FromAddr: cfg.Alerts.Email.FromAddress,
		}))
	}

	settings := alerts.BreakerSettings{
		MaxFailures: cfg.Alerts.Breaker.MaxFailures,
		Timeout:     cfg.Alerts.Breaker.Timeout,
	}
	for i, n := range notifiers {
		notifiers[i] = alerts.NewBreaker(n, settings)
	}
	return notifiers
}

// initLocker creates the per-site lock backend. The returned func releases
// its resources.
func initLocker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (lock.Locker, func(), error) {
	switch cfg.Lock.Backend {
	case "redis":
		r, err := lock.NewRedis(ctx, cfg.Lock.RedisURL, cfg.Lock.TTL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init redis lock: %w", err)
		}
		return r, func() { r.Close() }, nil
	default:
		return lock.NewMemory(), func() {}, nil
	}
}

// runtime is everything a reconciliation cycle needs.
type runtime struct {
	store    storage.Storage
	registry *prometheus.Registry
	manager  *lifecycle.Manager
	close    func()
}

// initRuntime wires storage, metrics, notifiers, locking and the lifecycle
// manager from config.
func initRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	store, err := initStorage(cfg)
	if err != nil {
		return nil, err
	}

	locker, closeLocker, err := initLocker(ctx, cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	dispatcher := alerts.NewDispatcher(store, logger, initNotifiers(cfg)...)
	dispatcher.OnDelivery = m.Notification

	predictor := tracker.NewPredictor(store, cfg.Forecast, m, logger)
	manager := lifecycle.NewManager(store, predictor, dispatcher, locker, m, logger, lifecycle.Config{
		Thresholds: thresholds(cfg),
		Workers:    cfg.Cycle.Workers,
	})

	return &runtime{
		store:    store,
		registry: registry,
		manager:  manager,
		close: func() {
			closeLocker()
			store.Close()
		},
	}, nil
}
