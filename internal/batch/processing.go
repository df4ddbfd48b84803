package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/utils"
)

var errAborted = errors.New("not processed after earlier failure")

type job struct {
	index  int
	input  string
	output string
	skip   bool
}

// planOutputs assigns every input a unique output path. Inputs whose output
// already exists are marked skipped unless config.Overwrite is set.
func planOutputs(files []string, config *Config) []job {
	used := make(map[string]int, len(files))
	jobs := make([]job, len(files))
	for i, in := range files {
		dir := config.OutputDir
		if dir == "" {
			dir = filepath.Dir(in)
		}
		out := filepath.Join(dir, utils.OutputName(in, config.Suffix))
		if n := used[out]; n > 0 {
			used[out] = n + 1
			out = withCounter(out, n+1)
		}
		used[out]++

		jobs[i] = job{index: i, input: in, output: out}
		if !config.Overwrite {
			if _, err := os.Stat(out); err == nil {
				jobs[i].skip = true
			}
		}
	}
	return jobs
}

// withCounter turns "a/b_nobg.png" into "a/b_nobg_2.png".
func withCounter(path string, n int) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + strconv.Itoa(n) + ext
}

// processFile reads, processes and writes one input.
func processFile(ctx context.Context, rem Remover, j job) FileResult {
	res := FileResult{Input: j.input, Output: j.output}
	if j.skip {
		res.Status = StatusSkipped
		res.Error = "output exists"
		return res
	}

	start := time.Now()
	err := func() error {
		data, err := utils.ReadImageFile(j.input)
		if err != nil {
			return err
		}
		out, err := rem.Process(ctx, data)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(j.output), 0o750); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		//nolint:gosec // G306: cutouts are regular user-facing image files
		if err := os.WriteFile(j.output, out.PNG, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", j.output, err)
		}
		res.Width, res.Height, res.Bytes = out.Width, out.Height, len(out.PNG)
		return nil
	}()
	res.Duration = time.Since(start)

	if err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		slog.Warn("Failed to process image", "file", j.input, "error", err)
		return res
	}
	res.Status = StatusOK
	slog.Debug("Processed image", "file", j.input, "output", j.output, "duration", res.Duration)
	return res
}

// processParallel runs jobs on a bounded worker pool. Results keep input order.
// Without continueOnError the first failure cancels the remaining jobs.
func processParallel(ctx context.Context, rem Remover, jobs []job, workers int,
	continueOnError bool, progress pipeline.ProgressCallback,
) ([]FileResult, int, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(jobs))
	if progress == nil {
		progress = pipeline.NoOpProgressCallback{}
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	results := make([]FileResult, len(jobs))
	done := make([]bool, len(jobs))
	queue := make(chan job)

	var (
		mu        sync.Mutex
		completed int
		firstErr  error
		wg        sync.WaitGroup
	)

	progress.OnStart(len(jobs))
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				if ctx.Err() != nil {
					continue
				}
				r := processFile(ctx, rem, j)

				mu.Lock()
				results[j.index] = r
				done[j.index] = true
				completed++
				if r.Status == StatusFailed {
					progress.OnError(j.index, errors.New(r.Error))
					if !continueOnError && firstErr == nil {
						firstErr = fmt.Errorf("%s: %s", j.input, r.Error)
						cancel(errAborted)
					}
				}
				progress.OnProgress(completed, len(jobs))
				mu.Unlock()
			}
		}()
	}

feed:
	for _, j := range jobs {
		select {
		case queue <- j:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()
	progress.OnComplete()

	for i, j := range jobs {
		if !done[i] {
			results[i] = FileResult{
				Input:  j.input,
				Output: j.output,
				Status: StatusFailed,
				Error:  context.Cause(ctx).Error(),
			}
		}
	}

	if firstErr != nil {
		return results, workers, fmt.Errorf("batch stopped: %w", firstErr)
	}
	if err := context.Cause(ctx); err != nil {
		return results, workers, err
	}
	return results, workers, nil
}
