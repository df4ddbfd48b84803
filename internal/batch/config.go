package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
)

// Config holds all configuration for batch processing.
type Config struct {
	// Pipeline settings
	Pipeline pipeline.Config

	// Output settings
	OutputDir  string // empty writes next to each input
	Suffix     string
	Overwrite  bool
	Format     string // text, json, csv
	OutputFile string

	// Parallel processing settings
	Workers         int
	ContinueOnError bool

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Progress settings
	ShowProgress bool
	Quiet        bool
	ShowStats    bool
	Progress     pipeline.ProgressCallback // overrides ShowProgress when set
}

// DefaultConfig returns the settings used by `cutout batch` without flags.
func DefaultConfig() *Config {
	return &Config{
		Pipeline:        pipeline.DefaultConfig(),
		Suffix:          "_nobg",
		Format:          "text",
		Workers:         4,
		ContinueOnError: true,
		ShowProgress:    true,
	}
}

// Status of one input file.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// FileResult is the outcome for one input file.
type FileResult struct {
	Input    string        `json:"input"`
	Output   string        `json:"output,omitempty"`
	Status   string        `json:"status"`
	Width    int           `json:"width,omitempty"`
	Height   int           `json:"height,omitempty"`
	Bytes    int           `json:"bytes,omitempty"`
	Duration time.Duration `json:"-"`
	Error    string        `json:"error,omitempty"`
}

// MarshalJSON adds the duration in milliseconds.
func (f FileResult) MarshalJSON() ([]byte, error) {
	type alias FileResult
	return json.Marshal(struct {
		alias
		DurationMs int64 `json:"duration_ms"`
	}{alias: alias(f), DurationMs: f.Duration.Milliseconds()})
}

// Result holds the result of batch processing.
type Result struct {
	Files       []FileResult
	Succeeded   int
	Failed      int
	Skipped     int
	Duration    time.Duration
	WorkerCount int
}

// FormatResults formats the batch processing results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r, format)
}

// SaveResults writes the formatted results to outputFile, or to w when no file
// is given.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
		}
		return nil
	}

	_, _ = fmt.Fprint(w, output)
	return nil
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	total := len(r.Files)
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", total)
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", r.Succeeded)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", r.Failed)
	_, _ = fmt.Fprintf(w, "  Skipped: %d\n", r.Skipped)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if r.Succeeded > 0 {
		avg := r.Duration / time.Duration(r.Succeeded)
		_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", avg.Round(time.Millisecond))
	}
	if secs := r.Duration.Seconds(); secs > 0 {
		_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", float64(r.Succeeded)/secs)
	}
}
