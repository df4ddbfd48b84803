// Package batch removes backgrounds from many files on disk, writing one PNG
// per input.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
)

// ErrNoFiles is returned when discovery finds nothing to process.
var ErrNoFiles = errors.New("no image files found")

// Remover is the part of the pipeline batch processing depends on.
type Remover interface {
	Process(ctx context.Context, data []byte) (*pipeline.Output, error)
}

// ProcessBatch discovers images under paths, builds a pipeline from
// config.Pipeline and processes every file.
func ProcessBatch(ctx context.Context, paths []string, config *Config) (*Result, error) {
	files, err := discoverImageFiles(paths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	pl, err := buildPipeline(config)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer func() {
		if err := pl.Close(); err != nil {
			slog.Warn("Error closing pipeline", "error", err)
		}
	}()

	return Run(ctx, pl, files, config)
}

// Run processes files with rem. Per-file failures are recorded in the result;
// the returned error is non-nil when ctx was cancelled, when processing stopped
// on the first failure, or when no file succeeded.
func Run(ctx context.Context, rem Remover, files []string, config *Config) (*Result, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	jobs := planOutputs(files, config)
	progress := config.Progress
	if progress == nil && config.ShowProgress && !config.Quiet {
		progress = pipeline.NewConsoleProgressCallback(os.Stderr, "Processing: ")
	}

	start := time.Now()
	results, workers, err := processParallel(ctx, rem, jobs, config.Workers, config.ContinueOnError, progress)
	res := &Result{
		Files:       results,
		Duration:    time.Since(start),
		WorkerCount: workers,
	}
	for _, f := range res.Files {
		switch f.Status {
		case StatusOK:
			res.Succeeded++
		case StatusSkipped:
			res.Skipped++
		default:
			res.Failed++
		}
	}

	slog.Info("Batch finished",
		"files", len(res.Files),
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"duration", res.Duration)

	if err != nil {
		return res, err
	}
	if res.Succeeded == 0 && res.Failed > 0 {
		return res, pipeline.ErrNoImagesProcessed
	}
	return res, nil
}
