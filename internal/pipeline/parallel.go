package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// ErrNoImagesProcessed is returned when every item of a batch failed.
var ErrNoImagesProcessed = errors.New("no images were successfully processed")

// ParallelConfig holds configuration for batch processing.
type ParallelConfig struct {
	MaxWorkers       int              // Parallel workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback // Optional progress reporting
}

// DefaultParallelConfig returns one worker per CPU.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

// ItemResult is the outcome of one batch item. Exactly one of Output and Err is set.
type ItemResult struct {
	Index  int
	Output *Output
	Err    error
}

// BatchResult collects per-item outcomes in input order.
type BatchResult struct {
	Items     []ItemResult
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// Successful returns the items that produced output, in input order.
func (b *BatchResult) Successful() []ItemResult {
	out := make([]ItemResult, 0, b.Succeeded)
	for _, it := range b.Items {
		if it.Err == nil {
			out = append(out, it)
		}
	}
	return out
}

// Failures returns the failed items, in input order.
func (b *BatchResult) Failures() []ItemResult {
	out := make([]ItemResult, 0, b.Failed)
	for _, it := range b.Items {
		if it.Err != nil {
			out = append(out, it)
		}
	}
	return out
}

type batchJob struct {
	index int
	data  []byte
}

// ProcessBatch runs Process on every input using a worker pool. Items fail
// independently; the returned error is non-nil only when no item succeeded or
// ctx was cancelled. The BatchResult is returned in both cases.
func (p *Pipeline) ProcessBatch(ctx context.Context, inputs [][]byte, cfg ParallelConfig) (*BatchResult, error) {
	if len(inputs) == 0 {
		return nil, errors.New("no images provided")
	}
	if p == nil || p.seg == nil {
		return nil, errors.New("pipeline not initialized")
	}

	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(inputs))

	start := time.Now()
	if cfg.ProgressCallback != nil {
		cfg.ProgressCallback.OnStart(len(inputs))
		defer cfg.ProgressCallback.OnComplete()
	}

	jobs := make(chan batchJob)
	results := make(chan ItemResult, len(inputs))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				out, err := p.Process(ctx, job.data)
				results <- ItemResult{Index: job.index, Output: out, Err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, data := range inputs {
			select {
			case jobs <- batchJob{index: i, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	batch := &BatchResult{Items: make([]ItemResult, len(inputs))}
	seen := make([]bool, len(inputs))
	done := 0
	for r := range results {
		batch.Items[r.Index] = r
		seen[r.Index] = true
		done++
		if cfg.ProgressCallback != nil {
			if r.Err != nil {
				cfg.ProgressCallback.OnError(r.Index, r.Err)
			}
			cfg.ProgressCallback.OnProgress(done, len(inputs))
		}
	}

	for i := range batch.Items {
		if !seen[i] {
			batch.Items[i] = ItemResult{Index: i, Err: fmt.Errorf("not processed: %w", ctx.Err())}
		}
		if batch.Items[i].Err != nil {
			batch.Failed++
		} else {
			batch.Succeeded++
		}
	}
	batch.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		return batch, err
	}
	if batch.Succeeded == 0 {
		return batch, ErrNoImagesProcessed
	}
	return batch, nil
}
