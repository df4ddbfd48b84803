package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/cutout/internal/config"
	"github.com/MeKo-Tech/cutout/internal/models"
	"github.com/MeKo-Tech/cutout/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the background removal HTTP server",
	Long: `Start an HTTP server exposing background removal over REST and WebSocket.

The server provides the following endpoints:
  POST /api/rem-bg        - Cut out one uploaded image (field "image"), returns PNG
  POST /api/batch-rem-bg  - Cut out several images (field "images"), returns ZIP
  POST /api/pdf-rem-bg    - Cut out the images embedded in a PDF (field "pdf")
  GET  /ws/rem-bg         - WebSocket: binary image frames in, PNG frames out
  GET  /health            - Health check endpoint
  GET  /models            - List available models
  GET  /metrics           - Prometheus metrics

Examples:
  cutout serve
  cutout serve --port 8080
  cutout serve --host 0.0.0.0 --cache --cache-addr redis:6379`,
	SilenceUsage: true,
	RunE:         runServeCommand,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringP("host", "H", "localhost", "server host")
	f.IntP("port", "p", 8000, "server port")
	f.String("cors-origin", "*", "CORS allowed origin")
	f.Int("max-upload-size", 10, "maximum upload size in MB")
	f.Int("timeout", 60, "request timeout in seconds")
	f.Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	f.Int("max-batch-items", 50, "maximum images per batch request")
	f.Bool("cache", false, "enable the Redis result cache")
	f.String("cache-addr", "localhost:6379", "Redis address")

	bindFlags(f, map[string]string{
		"host":             "server.host",
		"port":             "server.port",
		"cors-origin":      "server.cors_origin",
		"max-upload-size":  "server.max_upload_mb",
		"timeout":          "server.timeout_sec",
		"shutdown-timeout": "server.shutdown_timeout",
		"max-batch-items":  "server.max_batch_items",
		"cache":            "cache.enabled",
		"cache-addr":       "cache.addr",
	})
}

// serverConfig maps the loaded configuration to server.Config.
func serverConfig(cfg *config.Config) server.Config {
	return server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		CORSOrigin:     cfg.Server.CORSOrigin,
		MaxUploadMB:    int64(cfg.Server.MaxUploadMB),
		TimeoutSec:     cfg.Server.TimeoutSec,
		MaxBatchItems:  cfg.Server.MaxBatchItems,
		BatchWorkers:   cfg.Batch.Workers,
		ModelsDir:      models.GetModelsDir(cfg.ModelsDir),
		PipelineConfig: cfg.ToPipelineConfig(),
		Cache:          cfg.ToCacheConfig(),
	}
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	sc := serverConfig(cfg)

	if sc.Port < 1 || sc.Port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", sc.Port)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	srv, err := server.NewServer(sc)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	timeout := cfg.ServerTimeout()
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", sc.Host, sc.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout + 10*time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting cutout server",
			"host", sc.Host,
			"port", sc.Port,
			"model", sc.PipelineConfig.Model,
			"cache", sc.Cache.Enabled)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
	}()

	<-ctx.Done()
	if cmd.Context().Err() != nil {
		slog.Info("Received shutdown signal")
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	slog.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server shutdown completed")
	}

	slog.Info("Cleaning up server resources")
	if err := srv.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	}

	slog.Info("Graceful shutdown completed")

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	default:
		return nil
	}
}
