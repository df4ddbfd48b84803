package batch

import (
	"github.com/MeKo-Tech/cutout/internal/pipeline"
)

// buildPipeline creates a pipeline from the batch configuration.
func buildPipeline(config *Config) (*pipeline.Pipeline, error) {
	return newBuilder(config).Build()
}

func newBuilder(config *Config) *pipeline.Builder {
	b := pipeline.NewBuilderFromConfig(config.Pipeline)
	if config.Workers > 0 {
		b = b.WithParallelWorkers(config.Workers)
	}
	return b
}
