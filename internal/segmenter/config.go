package segmenter

import (
	"errors"
	"fmt"
	"os"

	"github.com/MeKo-Tech/cutout/internal/onnx"
)

// Config holds configuration for a segmentation session.
type Config struct {
	ModelPath  string         // Path to the ONNX segmentation model
	TargetSize int            // Square input side; 0 derives it from the model
	NumThreads int            // Intra-op CPU threads, 0 = runtime default
	GPU        onnx.GPUConfig // CUDA execution provider options
}

// DefaultConfig returns a CPU configuration for a 320px model.
func DefaultConfig() Config {
	return Config{
		TargetSize: 320,
		GPU:        onnx.DefaultGPUConfig(),
	}
}

func (c Config) validate() error {
	if c.ModelPath == "" {
		return errors.New("model path cannot be empty")
	}
	if c.TargetSize < 0 {
		return fmt.Errorf("target size must be >= 0, got %d", c.TargetSize)
	}
	if c.NumThreads < 0 {
		return fmt.Errorf("num threads must be >= 0, got %d", c.NumThreads)
	}
	if err := c.GPU.Validate(); err != nil {
		return fmt.Errorf("gpu: %w", err)
	}
	if _, err := os.Stat(c.ModelPath); err != nil {
		return fmt.Errorf("model file not found: %s", c.ModelPath)
	}
	return nil
}
