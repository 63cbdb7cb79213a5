package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	seamhttp "github.com/seamrpc/seam/adapters/http"
	"github.com/seamrpc/seam/adapters/metrics"
	"github.com/seamrpc/seam/config"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the procedure server",
	Long: `Start the seam server with the demo user service.

The server will:
  - Load configuration from seam.yaml (or --config), falling back to
    SEAM_* environment variables
  - Derive the schema snapshot from the registered handlers
  - Serve GET /schema plus one route per procedure
  - Validate every request and response against the derived schema

Environment variables:
  SEAM_SERVER_PORT        - Server port (default: 8080)
  SEAM_LOG_LEVEL          - Log level: debug, info, warn, error
  SEAM_LOG_FORMAT         - Log format: json or console
  SEAM_METRICS_ENABLED    - Enable /metrics endpoint
  SEAM_VALIDATION_STRICT  - Reject undeclared arguments

Examples:
  seam serve
  seam serve --config /etc/seam/config.yaml
  SEAM_SERVER_PORT=9090 seam serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	var cfg *config.Config
	var holder *config.Holder
	var err error

	if hasConfigFile && hotReload {
		holder, err = config.NewHolder(cfgFile, zerolog.New(os.Stdout).With().Timestamp().Logger())
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		cfg = holder.Get()
	} else {
		cfg, err = config.LoadWithFallback(cfgFile)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
	}

	logger := newLogger(cfg.Logging)

	if holder != nil {
		if err := holder.WatchFile(); err != nil {
			logger.Warn().Err(err).Msg("config file watch unavailable")
		}
		holder.WatchSignals()
		holder.OnChange(func(next *config.Config) {
			applyLogLevel(next.Logging.Level)
		})
		defer holder.Stop()
	}

	reg := newDemoRegistry()

	opts := []seamhttp.Option{seamhttp.WithLogger(logger)}
	if cfg.Metrics.Enabled {
		opts = append(opts, seamhttp.WithMetrics(metrics.New()))
	}
	if cfg.Validation.Strict {
		opts = append(opts, seamhttp.Strict())
	}
	handler := seamhttp.New(reg, opts...)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", addr).
			Int("procedures", len(reg.Procedures())).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	applyLogLevel(cfg.Level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func applyLogLevel(levelStr string) {
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
