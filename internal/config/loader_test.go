package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/cutout/internal/models"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader() *Loader {
	return NewLoaderWithViper(viper.New())
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewLoader(t *testing.T) {
	assert.Same(t, viper.GetViper(), NewLoader().GetViper())
	assert.NotNil(t, NewLoaderWithViper(nil).GetViper())
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := newTestLoader().Load()
	require.NoError(t, err)

	want := DefaultConfig()
	assert.Equal(t, want.LogLevel, cfg.LogLevel)
	assert.Equal(t, want.ModelsDir, cfg.ModelsDir)
	assert.Equal(t, want.Model.Name, cfg.Model.Name)
	assert.Equal(t, want.Preprocess, cfg.Preprocess)
	assert.Equal(t, want.Refine, cfg.Refine)
	assert.Equal(t, want.Output, cfg.Output)
	assert.Equal(t, want.Server, cfg.Server)
	assert.Equal(t, want.Batch, cfg.Batch)
	assert.Equal(t, want.Cache, cfg.Cache)
	assert.Equal(t, want.GPU, cfg.GPU)
}

func TestLoadWithFile_YAML(t *testing.T) {
	path := writeConfig(t, "cutout.yaml", `
log_level: debug
models_dir: /custom/models
model:
  name: u2netp
  num_threads: 3
  normalization:
    mean: [0.5, 0.5, 0.5]
    std: [1, 1, 1]
preprocess:
  resize_filter: lanczos
refine:
  blend_factor: 0.6
server:
  port: 9090
cache:
  enabled: true
  addr: cache:6379
  ttl: 2h
`)

	loader := newTestLoader()
	cfg, err := loader.LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, path, loader.GetConfigFileUsed())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/custom/models", cfg.ModelsDir)
	assert.Equal(t, models.U2NetP, cfg.Model.Name)
	assert.Equal(t, 3, cfg.Model.NumThreads)
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, cfg.Model.Normalization.Mean)
	assert.Equal(t, "lanczos", cfg.Preprocess.ResizeFilter)
	assert.InDelta(t, 0.6, cfg.Refine.BlendFactor, 1e-12)
	// Unset keys keep their defaults.
	assert.InDelta(t, 0.1, cfg.Refine.EdgeThreshold, 1e-12)
	assert.True(t, cfg.Refine.Enabled)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 2*time.Hour, cfg.Cache.TTL)
}

func TestLoadWithFile_Invalid(t *testing.T) {
	path := writeConfig(t, "cutout.yaml", "server:\n  port: 0\n")

	_, err := newTestLoader().LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")

	cfg, err := newTestLoader().LoadWithFileWithoutValidation(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Server.Port)
}

func TestLoadWithFile_Missing(t *testing.T) {
	_, err := newTestLoader().LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadWithFile_Malformed(t *testing.T) {
	path := writeConfig(t, "cutout.yaml", "server: [unclosed\n")
	_, err := newTestLoader().LoadWithFile(path)
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("CUTOUT_SERVER_PORT", "9123")
	t.Setenv("CUTOUT_MODEL_NAME", "isnet-general-use")
	t.Setenv("CUTOUT_REFINE_ENABLED", "false")
	t.Setenv("CUTOUT_LOG_LEVEL", "warn")

	cfg, err := newTestLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, 9123, cfg.Server.Port)
	assert.Equal(t, models.ISNetGeneral, cfg.Model.Name)
	assert.False(t, cfg.Refine.Enabled)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_ConfigInWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cutout.yaml"), []byte("output:\n  compression: best\n"), 0o600))
	t.Chdir(dir)

	cfg, err := newTestLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "best", cfg.Output.Compression)
}

func TestGenerateDefaultConfigFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cutout.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))

	// Refuses to clobber.
	assert.Error(t, GenerateDefaultConfigFile(path))

	cfg, err := newTestLoader().LoadWithFile(path)
	require.NoError(t, err)

	want := DefaultConfig()
	assert.Equal(t, want.Server, cfg.Server)
	assert.Equal(t, want.Refine, cfg.Refine)
	assert.Equal(t, want.Model.Name, cfg.Model.Name)
	assert.Equal(t, want.Cache.TTL, cfg.Cache.TTL)
	assert.Empty(t, cfg.Model.Normalization.Mean)
}

func TestWriteYAML_MasksPassword(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Password = "hunter2"

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, cfg))
	assert.NotContains(t, buf.String(), "hunter2")
	assert.Contains(t, buf.String(), "resize_filter: linear")
	assert.Equal(t, "hunter2", cfg.Cache.Password)
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	paths := GetConfigSearchPaths()
	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, filepath.Join("/xdg", "cutout"))
	assert.Equal(t, "/etc/cutout", paths[len(paths)-1])
}

func TestPrintConfigInfo(t *testing.T) {
	var buf bytes.Buffer
	newTestLoader().PrintConfigInfo(&buf)
	assert.Contains(t, buf.String(), "Environment prefix: CUTOUT")
}
