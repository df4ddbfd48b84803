package onnx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGPUConfig(t *testing.T) {
	cfg := DefaultGPUConfig()
	assert.False(t, cfg.Enabled)
	assert.Zero(t, cfg.DeviceID)
	assert.Zero(t, cfg.MemLimit)
	assert.Equal(t, "kNextPowerOfTwo", cfg.ArenaExtendStrategy)
	assert.Equal(t, "DEFAULT", cfg.CUDNNConvAlgoSearch)
	assert.NoError(t, cfg.Validate())
}

func TestGPUConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     GPUConfig
		wantErr bool
	}{
		{"disabled ignores garbage", GPUConfig{DeviceID: -4, ArenaExtendStrategy: "x"}, false},
		{"valid", GPUConfig{Enabled: true, ArenaExtendStrategy: "kSameAsRequested", CUDNNConvAlgoSearch: "HEURISTIC"}, false},
		{"negative device", GPUConfig{Enabled: true, DeviceID: -1}, true},
		{"bad arena", GPUConfig{Enabled: true, ArenaExtendStrategy: "grow"}, true},
		{"bad algo search", GPUConfig{Enabled: true, CUDNNConvAlgoSearch: "fast"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGPUConfig_ProviderSettings(t *testing.T) {
	cfg := DefaultGPUConfig()
	cfg.Enabled = true
	cfg.DeviceID = 2
	cfg.MemLimit = 1 << 30

	s := cfg.providerSettings()
	assert.Equal(t, "2", s["device_id"])
	assert.Equal(t, "1073741824", s["gpu_mem_limit"])
	assert.Equal(t, "kNextPowerOfTwo", s["arena_extend_strategy"])
	assert.Equal(t, "DEFAULT", s["cudnn_conv_algo_search"])
	assert.Equal(t, "1", s["do_copy_in_default_stream"])

	cfg.MemLimit = 0
	_, ok := cfg.providerSettings()["gpu_mem_limit"]
	assert.False(t, ok)
}

func TestLibraryCandidates_EnvFirst(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "libonnxruntime.so")
	t.Setenv(LibraryEnvVar, lib)

	cpu := LibraryCandidates(false)
	require.NotEmpty(t, cpu)
	assert.Equal(t, lib, cpu[0])

	gpu := LibraryCandidates(true)
	assert.Greater(t, len(gpu), len(cpu))
}

func TestLibraryCandidates_ProjectRelative(t *testing.T) {
	t.Setenv(LibraryEnvVar, "")
	wd, err := os.Getwd()
	require.NoError(t, err)

	root, err := findProjectRoot()
	require.NoError(t, err)
	assert.Contains(t, wd, root)

	name, err := libraryName()
	require.NoError(t, err)
	assert.Contains(t, LibraryCandidates(false), filepath.Join(root, "onnxruntime", "lib", name))
}
