// Package server exposes background removal over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/cutout/internal/cache"
	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Defaults applied when a Config field is left zero.
const (
	DefaultMaxUploadMB   = 10
	DefaultTimeoutSec    = 60
	DefaultMaxBatchItems = 50
	memoryCacheEntries   = 256
)

// Remover defines the methods needed by the server from a pipeline.
type Remover interface {
	Process(ctx context.Context, data []byte) (*pipeline.Output, error)
	ProcessBatch(ctx context.Context, inputs [][]byte, cfg pipeline.ParallelConfig) (*pipeline.BatchResult, error)
	CutoutImage(ctx context.Context, img image.Image) (*pipeline.Output, error)
	Info() pipeline.Info
	Fingerprint() string
	Close() error
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline       Remover
	cache          cache.Cache
	corsOrigin     string
	maxUploadBytes int64
	timeout        time.Duration
	maxBatchItems  int
	batchWorkers   int
	modelsDir      string
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	MaxBatchItems  int
	BatchWorkers   int
	ModelsDir      string
	PipelineConfig pipeline.Config
	Cache          cache.Config
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Model   string `json:"model,omitempty"`
	Time    string `json:"time"`
}

// ModelInfo describes one registered segmentation model.
type ModelInfo struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	TargetSize  int    `json:"target_size"`
	Description string `json:"description"`
	Available   bool   `json:"available"`
	Active      bool   `json:"active"`
}

// ModelsResponse is returned by GET /models.
type ModelsResponse struct {
	Models []ModelInfo    `json:"models"`
	Count  int            `json:"count"`
	Active *pipeline.Info `json:"active,omitempty"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
}

// NewServer builds the pipeline described by config and, when enabled, connects
// the Redis result cache. An unreachable Redis falls back to an in-process cache.
func NewServer(config Config) (*Server, error) {
	pl, err := pipeline.NewBuilderFromConfig(config.PipelineConfig).Build()
	if err != nil {
		return nil, err
	}

	s := NewServerWithPipeline(pl, config)
	if config.Cache.Enabled {
		s.cache = connectCache(config.Cache)
	}
	return s, nil
}

func connectCache(cfg cache.Config) cache.Cache {
	rc := cache.NewRedisCache(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		slog.Warn("Redis cache unreachable, using in-memory cache", "addr", cfg.Addr, "error", err)
		_ = rc.Close()
		return cache.NewMemoryCache(memoryCacheEntries)
	}
	slog.Info("Result cache enabled", "addr", cfg.Addr, "ttl", cfg.TTL)
	return rc
}

// NewServerWithPipeline wraps an existing pipeline. The server takes ownership
// and closes it in Close.
func NewServerWithPipeline(p Remover, config Config) *Server {
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = DefaultMaxUploadMB
	}
	if config.TimeoutSec <= 0 {
		config.TimeoutSec = DefaultTimeoutSec
	}
	if config.MaxBatchItems <= 0 {
		config.MaxBatchItems = DefaultMaxBatchItems
	}
	if config.CORSOrigin == "" {
		config.CORSOrigin = "*"
	}
	return &Server{
		pipeline:       p,
		corsOrigin:     config.CORSOrigin,
		maxUploadBytes: config.MaxUploadMB << 20,
		timeout:        time.Duration(config.TimeoutSec) * time.Second,
		maxBatchItems:  config.MaxBatchItems,
		batchWorkers:   config.BatchWorkers,
		modelsDir:      config.ModelsDir,
	}
}

// WithCache puts c in front of single-image requests.
func (s *Server) WithCache(c cache.Cache) *Server {
	s.cache = c
	return s
}

// Close releases server resources.
func (s *Server) Close() error {
	var errs []error
	if s.pipeline != nil {
		errs = append(errs, s.pipeline.Close())
	}
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	return errors.Join(errs...)
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/models", s.corsMiddleware(s.modelsHandler))
	mux.HandleFunc("/api/rem-bg", s.corsMiddleware(s.removeBackgroundHandler))
	mux.HandleFunc("/api/batch-rem-bg", s.corsMiddleware(s.batchRemoveBackgroundHandler))
	mux.HandleFunc("/api/pdf-rem-bg", s.corsMiddleware(s.pdfRemoveBackgroundHandler))
	mux.HandleFunc("/ws/rem-bg", s.removeBackgroundWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns the routed handler with panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return recoverMiddleware(mux)
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}
