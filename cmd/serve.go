package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-xop/internal/config"
	"github.com/sirosfoundation/go-xop/internal/metrics"
	"github.com/sirosfoundation/go-xop/internal/server"
	"github.com/sirosfoundation/go-xop/pkg/transport"
	"github.com/sirosfoundation/go-xop/pkg/xop"
)

// DefaultShutdownTimeout is the default timeout for graceful server shutdown
const DefaultShutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var (
		configPath string
		httpAddr   string
		debugMode  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the XOP HTTP service",
		Long: `Start the HTTP service exposing POST {basePath}/{action}.

Configuration is read from a YAML file (--config). Without one the
built-in defaults are used: port 8080, base path /xop, metrics disabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if debugMode {
				cfg.Logging.Level = "debug"
			}
			if httpAddr == "" {
				httpAddr = fmt.Sprintf(":%d", cfg.Server.Port)
			}
			return runServe(cmd.Context(), cfg, httpAddr)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the YAML configuration file")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (default \":<server.port>\")")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, addr string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	var m *metrics.Metrics
	if cfg.Metrics.Metrics.Enabled {
		m = metrics.New()
	}

	handler, err := newHandler(cfg, logger, m)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, handler, m, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// newHandler wires the XOP handler with the fetch client and the optional
// metrics observer
func newHandler(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*xop.Handler, error) {
	minTLS, err := cfg.Fetch.TLSVersion()
	if err != nil {
		return nil, err
	}

	httpsCfg := transport.DefaultHTTPSConfig()
	httpsCfg.MinTLSVersion = minTLS
	httpsCfg.Timeout = cfg.Fetch.Timeout
	httpsCfg.IdleConnTimeout = cfg.Fetch.IdleConnTimeout
	httpsCfg.MaxResponseSize = cfg.Fetch.MaxResponseSize

	hc := &xop.Config{
		Properties: cfg.Handler.Properties(),
		Fetcher:    transport.NewHTTPSClient(httpsCfg),
		Logger:     logger,
	}
	if m != nil {
		hc.Observer = m
	}
	return xop.NewHandler(hc), nil
}
