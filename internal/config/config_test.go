package config

import (
	"testing"
	"time"

	"github.com/MeKo-Tech/cutout/internal/matte"
	"github.com/MeKo-Tech/cutout/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, models.Silueta, cfg.Model.Name)
	assert.Equal(t, matte.FilterLinear, cfg.Preprocess.ResizeFilter)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Server.MaxUploadMB)
	assert.True(t, cfg.Refine.Enabled)
	assert.InDelta(t, 0.8, cfg.Refine.BlendFactor, 1e-12)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "auto", cfg.GPU.MemoryLimit)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"model", func(c *Config) { c.Model.Name = "unknown" }, "unknown"},
		{"target size", func(c *Config) { c.Model.TargetSize = -5 }, "target size"},
		{"threads", func(c *Config) { c.Model.NumThreads = -1 }, "num threads"},
		{"mean only", func(c *Config) { c.Model.Normalization.Mean = []float64{0.5, 0.5, 0.5} }, "normalization"},
		{"zero std", func(c *Config) {
			c.Model.Normalization.Mean = []float64{0.5, 0.5, 0.5}
			c.Model.Normalization.Std = []float64{1, 0, 1}
		}, "std"},
		{"filter", func(c *Config) { c.Preprocess.ResizeFilter = "bicubic" }, "resize filter"},
		{"max pixels", func(c *Config) { c.Preprocess.MaxPixels = -1 }, "max pixels"},
		{"edge threshold", func(c *Config) { c.Refine.EdgeThreshold = 1.5 }, "refine.edge_threshold"},
		{"blend factor", func(c *Config) { c.Refine.BlendFactor = -0.1 }, "refine.blend_factor"},
		{"edge range", func(c *Config) { c.Refine.EdgeAlphaRange = 0 }, "edge_alpha_range"},
		{"smooth range", func(c *Config) { c.Refine.SmoothAlphaRange = -1 }, "smooth_alpha_range"},
		{"compression", func(c *Config) { c.Output.Compression = "max" }, "compression"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "upload"},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "timeout"},
		{"batch items", func(c *Config) { c.Server.MaxBatchItems = 0 }, "batch items"},
		{"workers", func(c *Config) { c.Batch.Workers = 0 }, "workers"},
		{"cache addr", func(c *Config) {
			c.Cache.Enabled = true
			c.Cache.Addr = ""
		}, "cache.addr"},
		{"cache ttl", func(c *Config) { c.Cache.TTL = -time.Second }, "ttl"},
		{"gpu device", func(c *Config) { c.GPU.Device = -1 }, "GPU device"},
		{"gpu memory", func(c *Config) { c.GPU.MemoryLimit = "lots" }, "memory limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseMemoryLimit(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"", 0, false},
		{"auto", 0, false},
		{"512MB", 512 << 20, false},
		{"2gb", 2 << 30, false},
		{"1.5GB", 3 << 29, false},
		{"64KB", 64 << 10, false},
		{"100B", 100, false},
		{"12", 0, true},
		{"xGB", 0, true},
		{"-1MB", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseMemoryLimit(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelsDir = "/opt/models"
	cfg.Model.Name = models.ISNetGeneral
	cfg.Model.TargetSize = 1024
	cfg.Model.NumThreads = 2
	cfg.Preprocess.ResizeFilter = matte.FilterLanczos
	cfg.Refine.Enabled = false
	cfg.Output.Compression = "best"
	cfg.Batch.Workers = 7
	cfg.GPU.Enabled = true
	cfg.GPU.Device = 1
	cfg.GPU.MemoryLimit = "1GB"

	pc := cfg.ToPipelineConfig()
	require.NoError(t, pc.Validate())
	assert.Equal(t, "/opt/models", pc.ModelsDir)
	assert.Equal(t, models.ISNetGeneral, pc.Model)
	assert.Equal(t, 1024, pc.TargetSize)
	assert.Equal(t, 2, pc.NumThreads)
	assert.Equal(t, matte.FilterLanczos, pc.ResizeFilter)
	assert.False(t, pc.Refine.Enabled)
	assert.Equal(t, "best", pc.Compression)
	assert.Equal(t, 7, pc.Parallel.MaxWorkers)
	assert.True(t, pc.GPU.Enabled)
	assert.Equal(t, 1, pc.GPU.DeviceID)
	assert.Equal(t, uint64(1<<30), pc.GPU.MemLimit)
	assert.Nil(t, pc.Normalization)
}

func TestToPipelineConfig_Normalization(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.Normalization.Mean = []float64{0.5, 0.5, 0.5}
	cfg.Model.Normalization.Std = []float64{1, 1, 1}
	require.NoError(t, cfg.Validate())

	pc := cfg.ToPipelineConfig()
	require.NotNil(t, pc.Normalization)
	assert.Equal(t, [3]float32{1, 1, 1}, pc.Normalization.Scale)
	assert.Equal(t, [3]float32{-0.5, -0.5, -0.5}, pc.Normalization.Offset)
}

func TestToCacheConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Enabled = true
	cfg.Cache.Addr = "redis:6379"
	cfg.Cache.Password = "secret"
	cfg.Cache.DB = 2
	cfg.Cache.TTL = time.Hour

	cc := cfg.ToCacheConfig()
	assert.True(t, cc.Enabled)
	assert.Equal(t, "redis:6379", cc.Addr)
	assert.Equal(t, "secret", cc.Password)
	assert.Equal(t, 2, cc.DB)
	assert.Equal(t, time.Hour, cc.TTL)
}

func TestServerHelpers(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 60*time.Second, cfg.ServerTimeout())
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes())
}
