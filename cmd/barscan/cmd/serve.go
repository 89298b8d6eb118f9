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

	"github.com/MeKo-Tech/barscan/internal/config"
	"github.com/MeKo-Tech/barscan/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the barcode API",
	Long: `Start an HTTP server that provides REST and websocket endpoints for
barcode localization and decoding.

The server provides the following endpoints:
  GET  /health      - Health check endpoint
  POST /detect      - Process an uploaded image (multipart field "image")
  POST /detect/pdf  - Process an uploaded PDF (multipart field "pdf")
  GET  /ws/detect   - Websocket streaming every stage and the final result
  GET  /metrics     - Prometheus metrics

Examples:
  barscan serve
  barscan serve --port 8080
  barscan serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	SilenceUsage: true,
	RunE:         runServe,
}

// serverConfig maps the configuration onto the server settings.
func serverConfig(cfg *config.Config) server.Config {
	sc := server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		CORSOrigin:     cfg.Server.CORSOrigin,
		MaxUploadMB:    int64(cfg.Server.MaxUploadMB),
		TimeoutSec:     cfg.Server.TimeoutSec,
		PipelineConfig: cfg.ToPipelineConfig(),
		OverlayEnabled: cfg.Server.OverlayEnabled,
	}
	if cfg.Server.RateLimitEnabled {
		sc.Limits = server.Limits{
			PerMinute:      cfg.Server.RequestsPerMinute,
			PerHour:        cfg.Server.RequestsPerHour,
			RequestsPerDay: cfg.Server.MaxRequestsPerDay,
			BytesPerDay:    cfg.Server.MaxDataPerDay,
		}
	}
	return sc
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	sc := serverConfig(cfg)

	srv, err := server.NewServer(sc)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	timeout := time.Duration(sc.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              sc.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting barcode server", "host", sc.Host, "port", sc.Port,
			"rate_limit", !sc.Limits.IsZero())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			serveErr <- err
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("Graceful shutdown completed")
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	default:
		return nil
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addPipelineFlags(serveCmd)

	def := config.DefaultConfig().Server
	fs := serveCmd.Flags()
	fs.StringP("host", "H", def.Host, "server host")
	fs.IntP("port", "p", def.Port, "server port")
	fs.String("cors-origin", def.CORSOrigin, "CORS allowed origins")
	fs.Int("max-upload-size", def.MaxUploadMB, "maximum upload size in MB")
	fs.Int("timeout", def.TimeoutSec, "request timeout in seconds")
	fs.Int("shutdown-timeout", def.ShutdownTimeout, "shutdown timeout in seconds")
	fs.Bool("overlay-enable", def.OverlayEnabled, "enable overlay image responses")
	// Rate limiting flags
	fs.Bool("rate-limit-enabled", def.RateLimitEnabled, "enable rate limiting")
	fs.Int("requests-per-minute", def.RequestsPerMinute, "maximum requests per minute per client")
	fs.Int("requests-per-hour", def.RequestsPerHour, "maximum requests per hour per client")
	fs.Int("max-requests-per-day", def.MaxRequestsPerDay, "maximum requests per day per client")
	fs.Int64("max-data-per-day", def.MaxDataPerDay, "maximum data processed per day per client (bytes)")

	annotateFlags(fs, []flagBinding{
		{"server.host", "host"},
		{"server.port", "port"},
		{"server.cors_origin", "cors-origin"},
		{"server.max_upload_mb", "max-upload-size"},
		{"server.timeout_sec", "timeout"},
		{"server.shutdown_timeout", "shutdown-timeout"},
		{"server.overlay_enabled", "overlay-enable"},
		{"server.rate_limit_enabled", "rate-limit-enabled"},
		{"server.requests_per_minute", "requests-per-minute"},
		{"server.requests_per_hour", "requests-per-hour"},
		{"server.max_requests_per_day", "max-requests-per-day"},
		{"server.max_data_per_day", "max-data-per-day"},
	})
}
