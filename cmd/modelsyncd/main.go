// Command modelsyncd is a demo daemon that wires a Dispatcher up with the
// config/logging/introspection ambient stack, the way the teacher's
// cmd/qubicdb/main.go wires a brain server up with its own config,
// persistence, and daemon layers. It exists to exercise the engine
// end-to-end; the library itself (pkg/dispatch and friends) has no
// dependency on this binary.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/modelsync/modelsync/pkg/config"
	"github.com/modelsync/modelsync/pkg/dispatch"
	"github.com/modelsync/modelsync/pkg/introspect"
)

func main() {
	var configPath string
	var gcSeconds int
	var logLevel string
	var introspectEnabled bool
	var introspectAddr string

	rootCmd := &cobra.Command{
		Use:   "modelsyncd",
		Short: "modelsyncd — demo daemon hosting a model consistency engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Flags(), &config.CLIOverrides{
				GCIntervalSeconds: flagIntPtr(cmd.Flags(), "gc-interval", gcSeconds),
				LogLevel:          flagStringPtr(cmd.Flags(), "log-level", logLevel),
				IntrospectEnabled: flagBoolPtr(cmd.Flags(), "introspect", introspectEnabled),
				IntrospectAddr:    flagStringPtr(cmd.Flags(), "introspect-addr", introspectAddr),
			}, configPath)
		},
	}

	f := rootCmd.Flags()
	f.StringVar(&configPath, "config", "", "Path to a YAML config file (overrides MODELSYNC_CONFIG)")
	f.IntVar(&gcSeconds, "gc-interval", 300, "Background clean_memory interval in seconds (0 disables it)")
	f.StringVar(&logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	f.BoolVar(&introspectEnabled, "introspect", false, "Serve a read-only MCP introspection endpoint")
	f.StringVar(&introspectAddr, "introspect-addr", "127.0.0.1:8989", "Address for the introspection endpoint")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func flagIntPtr(flags *pflag.FlagSet, name string, v int) *int {
	if !flags.Changed(name) {
		return nil
	}
	return &v
}

func flagStringPtr(flags *pflag.FlagSet, name string, v string) *string {
	if !flags.Changed(name) {
		return nil
	}
	return &v
}

func flagBoolPtr(flags *pflag.FlagSet, name string, v bool) *bool {
	if !flags.Changed(name) {
		return nil
	}
	return &v
}

func run(flags *pflag.FlagSet, overrides *config.CLIOverrides, configPath string) error {
	if configPath == "" {
		configPath = os.Getenv("MODELSYNC_CONFIG")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.ApplyCLIOverrides(cfg, *overrides)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting modelsyncd", "gc_interval_seconds", cfg.Engine.GCIntervalSeconds, "introspect_enabled", cfg.Introspect.Enabled)

	d := dispatch.New(dispatch.NewChanScheduler(64), dispatch.Config{
		GCInterval: cfg.GCInterval(),
		Logger:     logger,
	})
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var introspectSrv *http.Server
	if cfg.Introspect.Enabled {
		handler, err := introspect.NewHandler(d)
		if err != nil {
			return fmt.Errorf("building introspection handler: %w", err)
		}
		introspectSrv = &http.Server{Addr: cfg.Introspect.Addr, Handler: handler}
		go func() {
			logger.Info("introspection endpoint listening", "addr", cfg.Introspect.Addr)
			if err := introspectSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("introspection endpoint failed", "error", err)
			}
		}()
	}

	waitForShutdown(ctx, cancel)

	logger.Info("shutting down")
	if introspectSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = introspectSrv.Shutdown(shutdownCtx)
	}
	return nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// waitForShutdown blocks until SIGINT/SIGTERM is received, then cancels
// ctx, the same shape as the teacher's core.WaitForShutdown.
func waitForShutdown(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
	case <-ctx.Done():
	}
	cancel()
}
