package onnx

import (
	"fmt"
	"log/slog"
	"strconv"

	ort "github.com/yalue/onnxruntime_go"
)

// GPUConfig selects the CUDA execution provider.
type GPUConfig struct {
	Enabled             bool   // Use CUDA instead of the default CPU provider
	DeviceID            int    // CUDA device ordinal
	MemLimit            uint64 // Arena limit in bytes, 0 = unlimited
	ArenaExtendStrategy string // kNextPowerOfTwo or kSameAsRequested
	CUDNNConvAlgoSearch string // EXHAUSTIVE, HEURISTIC or DEFAULT
}

// DefaultGPUConfig returns a CPU-only configuration with sane CUDA defaults.
func DefaultGPUConfig() GPUConfig {
	return GPUConfig{
		ArenaExtendStrategy: "kNextPowerOfTwo",
		CUDNNConvAlgoSearch: "DEFAULT",
	}
}

var (
	arenaStrategies = []string{"kNextPowerOfTwo", "kSameAsRequested"}
	convAlgoSearch  = []string{"EXHAUSTIVE", "HEURISTIC", "DEFAULT"}
)

// Validate checks CUDA options; a disabled config is always valid.
func (g GPUConfig) Validate() error {
	if !g.Enabled {
		return nil
	}
	if g.DeviceID < 0 {
		return fmt.Errorf("device ID must be non-negative, got %d", g.DeviceID)
	}
	if g.ArenaExtendStrategy != "" && !oneOf(g.ArenaExtendStrategy, arenaStrategies) {
		return fmt.Errorf("invalid arena extend strategy %q (want one of %v)", g.ArenaExtendStrategy, arenaStrategies)
	}
	if g.CUDNNConvAlgoSearch != "" && !oneOf(g.CUDNNConvAlgoSearch, convAlgoSearch) {
		return fmt.Errorf("invalid cuDNN conv algo search %q (want one of %v)", g.CUDNNConvAlgoSearch, convAlgoSearch)
	}
	return nil
}

// providerSettings renders the CUDA provider option map.
func (g GPUConfig) providerSettings() map[string]string {
	settings := map[string]string{
		"device_id":                 strconv.Itoa(g.DeviceID),
		"do_copy_in_default_stream": "1",
	}
	if g.MemLimit > 0 {
		settings["gpu_mem_limit"] = strconv.FormatUint(g.MemLimit, 10)
	}
	if g.ArenaExtendStrategy != "" {
		settings["arena_extend_strategy"] = g.ArenaExtendStrategy
	}
	if g.CUDNNConvAlgoSearch != "" {
		settings["cudnn_conv_algo_search"] = g.CUDNNConvAlgoSearch
	}
	return settings
}

func appendCUDAProvider(opts *ort.SessionOptions, g GPUConfig) error {
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("failed to create CUDA provider options (GPU may not be available): %w", err)
	}
	defer func() {
		if err := cuda.Destroy(); err != nil {
			slog.Warn("Failed to destroy CUDA provider options", "error", err)
		}
	}()

	if err := cuda.Update(g.providerSettings()); err != nil {
		return fmt.Errorf("failed to update CUDA provider options: %w", err)
	}
	if err := opts.AppendExecutionProviderCUDA(cuda); err != nil {
		return fmt.Errorf("failed to append CUDA execution provider: %w", err)
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
