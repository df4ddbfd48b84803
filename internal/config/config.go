package config

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/cutout/internal/cache"
	"github.com/MeKo-Tech/cutout/internal/matte"
	"github.com/MeKo-Tech/cutout/internal/models"
	"github.com/MeKo-Tech/cutout/internal/onnx"
	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/utils"
)

var (
	validLogLevels    = []string{"debug", "info", "warn", "error"}
	validFilters      = []string{matte.FilterLinear, matte.FilterLanczos, matte.FilterCatmullRom, matte.FilterBox, matte.FilterNearest}
	validCompressions = []string{"default", "speed", "fast", "best", "none"}
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	refine := matte.DefaultRefineConfig()
	cacheCfg := cache.DefaultConfig()
	return Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  "info",
		Model: ModelConfig{
			Name: models.DefaultModel,
		},
		Preprocess: PreprocessConfig{
			ResizeFilter: matte.DefaultResizeFilter,
			MaxPixels:    utils.DefaultMaxPixels,
		},
		Refine: RefineConfig{
			Enabled:          refine.Enabled,
			EdgeThreshold:    refine.EdgeThreshold,
			EdgeAlphaMin:     refine.EdgeAlphaMin,
			EdgeAlphaRange:   refine.EdgeAlphaRange,
			BlendFactor:      refine.BlendFactor,
			SmoothAlphaMin:   refine.SmoothAlphaMin,
			SmoothAlphaRange: refine.SmoothAlphaRange,
		},
		Output: OutputConfig{
			Compression: "default",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8000,
			CORSOrigin:      "*",
			MaxUploadMB:     10,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
			MaxBatchItems:   50,
		},
		Batch: BatchConfig{
			Workers:         4,
			Suffix:          "_nobg",
			ContinueOnError: true,
		},
		Cache: CacheConfig{
			Enabled: cacheCfg.Enabled,
			Addr:    cacheCfg.Addr,
			DB:      cacheCfg.DB,
			TTL:     cacheCfg.TTL,
		},
		GPU: GPUConfig{
			MemoryLimit: "auto",
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if _, err := models.Lookup(c.Model.Name); err != nil {
		return err
	}
	if c.Model.TargetSize < 0 {
		return fmt.Errorf("invalid model target size: %d (must be >= 0)", c.Model.TargetSize)
	}
	if c.Model.NumThreads < 0 {
		return fmt.Errorf("invalid model num threads: %d (must be >= 0)", c.Model.NumThreads)
	}
	if _, err := c.normalization(); err != nil {
		return err
	}

	if c.Preprocess.ResizeFilter != "" && !slices.Contains(validFilters, c.Preprocess.ResizeFilter) {
		return fmt.Errorf("invalid resize filter: %s (must be one of: %s)", c.Preprocess.ResizeFilter, strings.Join(validFilters, ", "))
	}
	if c.Preprocess.MaxPixels < 0 {
		return fmt.Errorf("invalid max pixels: %d (must be >= 0)", c.Preprocess.MaxPixels)
	}

	for name, v := range map[string]float64{
		"refine.edge_threshold":   c.Refine.EdgeThreshold,
		"refine.edge_alpha_min":   c.Refine.EdgeAlphaMin,
		"refine.blend_factor":     c.Refine.BlendFactor,
		"refine.smooth_alpha_min": c.Refine.SmoothAlphaMin,
	} {
		if err := validateThreshold(v, name); err != nil {
			return err
		}
	}
	if c.Refine.EdgeAlphaRange <= 0 {
		return fmt.Errorf("invalid refine.edge_alpha_range: %.2f (must be positive)", c.Refine.EdgeAlphaRange)
	}
	if c.Refine.SmoothAlphaRange <= 0 {
		return fmt.Errorf("invalid refine.smooth_alpha_range: %.2f (must be positive)", c.Refine.SmoothAlphaRange)
	}

	if c.Output.Compression != "" && !slices.Contains(validCompressions, c.Output.Compression) {
		return fmt.Errorf("invalid output compression: %s (must be one of: %s)", c.Output.Compression, strings.Join(validCompressions, ", "))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.MaxBatchItems <= 0 {
		return fmt.Errorf("invalid max batch items: %d (must be positive)", c.Server.MaxBatchItems)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}

	if c.Cache.Enabled && c.Cache.Addr == "" {
		return errors.New("cache enabled but cache.addr is empty")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("invalid cache ttl: %v (must be >= 0)", c.Cache.TTL)
	}

	if c.GPU.Device < 0 {
		return fmt.Errorf("invalid GPU device: %d (must be >= 0)", c.GPU.Device)
	}
	if _, err := parseMemoryLimit(c.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid GPU memory limit: %w", err)
	}

	return nil
}

// ToPipelineConfig converts the config to the pipeline configuration.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.ModelsDir = models.GetModelsDir(c.ModelsDir)
	cfg.Model = c.Model.Name
	cfg.ModelPath = c.Model.Path
	cfg.TargetSize = c.Model.TargetSize
	cfg.NumThreads = c.Model.NumThreads
	cfg.WarmupIterations = c.Model.WarmupIterations
	if norm, err := c.normalization(); err == nil && norm != nil {
		cfg.Normalization = norm
	}
	if c.Preprocess.ResizeFilter != "" {
		cfg.ResizeFilter = c.Preprocess.ResizeFilter
	}
	cfg.MaxPixels = c.Preprocess.MaxPixels
	cfg.Refine = c.toRefineConfig()
	if c.Output.Compression != "" {
		cfg.Compression = c.Output.Compression
	}
	cfg.GPU = c.toGPUConfig()
	if c.Batch.Workers > 0 {
		cfg.Parallel.MaxWorkers = c.Batch.Workers
	}
	return cfg
}

// ToCacheConfig converts to cache.Config.
func (c *Config) ToCacheConfig() cache.Config {
	return cache.Config{
		Enabled:  c.Cache.Enabled,
		Addr:     c.Cache.Addr,
		Password: c.Cache.Password,
		DB:       c.Cache.DB,
		TTL:      c.Cache.TTL,
	}
}

// ServerTimeout returns the per-request timeout.
func (c *Config) ServerTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSec) * time.Second
}

// MaxUploadBytes returns the request body limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

func (c *Config) toRefineConfig() matte.RefineConfig {
	return matte.RefineConfig{
		Enabled:          c.Refine.Enabled,
		EdgeThreshold:    c.Refine.EdgeThreshold,
		EdgeAlphaMin:     c.Refine.EdgeAlphaMin,
		EdgeAlphaRange:   c.Refine.EdgeAlphaRange,
		BlendFactor:      c.Refine.BlendFactor,
		SmoothAlphaMin:   c.Refine.SmoothAlphaMin,
		SmoothAlphaRange: c.Refine.SmoothAlphaRange,
	}
}

func (c *Config) toGPUConfig() onnx.GPUConfig {
	cfg := onnx.DefaultGPUConfig()
	cfg.Enabled = c.GPU.Enabled
	cfg.DeviceID = c.GPU.Device
	cfg.MemLimit, _ = parseMemoryLimit(c.GPU.MemoryLimit)
	return cfg
}

// normalization returns nil when no override is configured.
func (c *Config) normalization() (*matte.Normalization, error) {
	mean, std := c.Model.Normalization.Mean, c.Model.Normalization.Std
	if len(mean) == 0 && len(std) == 0 {
		return nil, nil
	}
	if len(mean) != 3 || len(std) != 3 {
		return nil, fmt.Errorf("model.normalization needs 3 mean and 3 std values, got %d and %d", len(mean), len(std))
	}
	var m, s [3]float32
	for i := range 3 {
		m[i], s[i] = float32(mean[i]), float32(std[i])
	}
	n, err := matte.FromMeanStd(m, s)
	if err != nil {
		return nil, fmt.Errorf("model.normalization: %w", err)
	}
	return &n, nil
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

// parseMemoryLimit parses GPU memory limits such as "512MB" or "2GB". "auto"
// and the empty string mean no limit.
func parseMemoryLimit(limit string) (uint64, error) {
	if limit == "" || limit == "auto" {
		return 0, nil
	}
	upper := strings.ToUpper(strings.TrimSpace(limit))
	units := []struct {
		suffix string
		mult   float64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, u := range units {
		if !strings.HasSuffix(upper, u.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSuffix(upper, u.suffix), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
		}
		return uint64(n * u.mult), nil
	}
	return 0, fmt.Errorf("memory limit must end with one of: B, KB, MB, GB (got %s)", limit)
}
