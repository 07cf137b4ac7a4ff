package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ogulcanaydogan/fuel-guardian/internal/server"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/lifecycle"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run reconciliation cycles on a schedule and serve the status API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "Listen address (default from config)")
	serveCmd.Flags().Duration("interval", 0, "Cycle interval (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Listen = listen
	}
	if interval, _ := cmd.Flags().GetDuration("interval"); interval > 0 {
		cfg.Cycle.Interval = interval
	}

	logger := newLogger(cfg)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rt, err := initRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	apiServer := server.NewServer(rt.store, rt.registry, thresholds(cfg), logger)
	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      apiServer.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	cycleDone := make(chan struct{})
	go func() {
		defer close(cycleDone)
		runCycles(ctx, rt.manager, cfg.Cycle.Interval, logger)
	}()

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "listen", cfg.Server.Listen, "interval", cfg.Cycle.Interval.String())
		fmt.Fprintf(os.Stderr, "Fuel Guardian listening on %s\n", cfg.Server.Listen)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var serveErr error
	select {
	case err := <-errCh:
		serveErr = fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	// Stop scheduling, then wait for the in-flight cycle to return.
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("shutdown error: %w", err)
	}
	<-cycleDone

	logger.Info("server stopped")
	return serveErr
}

// runCycles runs a cycle immediately and then once per interval until ctx is
// cancelled. A tick that arrives while a cycle is running is dropped.
func runCycles(ctx context.Context, manager *lifecycle.Manager, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := manager.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
