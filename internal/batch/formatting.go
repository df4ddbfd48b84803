package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// formatBatchResults formats the batch processing results in the specified format.
func formatBatchResults(r *Result, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(r)
	case "csv":
		return formatCSV(r)
	case "text", "":
		return formatText(r), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats results as JSON.
func formatJSON(r *Result) (string, error) {
	doc := struct {
		Files      []FileResult `json:"files"`
		Succeeded  int          `json:"succeeded"`
		Failed     int          `json:"failed"`
		Skipped    int          `json:"skipped"`
		DurationMs int64        `json:"duration_ms"`
		Workers    int          `json:"workers"`
	}{
		Files:      r.Files,
		Succeeded:  r.Succeeded,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
		DurationMs: r.Duration.Milliseconds(),
		Workers:    r.WorkerCount,
	}
	if doc.Files == nil {
		doc.Files = []FileResult{}
	}

	bts, err := json.MarshalIndent(doc, "", "  ")
	return string(bts), err
}

// formatCSV formats results as CSV, one row per input file.
func formatCSV(r *Result) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	if err := writer.Write([]string{
		"input", "output", "status", "width", "height", "bytes", "duration_ms", "error",
	}); err != nil {
		return "", err
	}

	for _, f := range r.Files {
		if err := writer.Write([]string{
			f.Input,
			f.Output,
			f.Status,
			strconv.Itoa(f.Width),
			strconv.Itoa(f.Height),
			strconv.Itoa(f.Bytes),
			strconv.FormatInt(f.Duration.Milliseconds(), 10),
			f.Error,
		}); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

// formatText formats results as plain text.
func formatText(r *Result) string {
	var output strings.Builder
	for _, f := range r.Files {
		switch f.Status {
		case StatusOK:
			fmt.Fprintf(&output, "%s -> %s (%dx%d)\n", f.Input, f.Output, f.Width, f.Height)
		case StatusSkipped:
			fmt.Fprintf(&output, "%s: skipped (%s)\n", f.Input, f.Error)
		default:
			fmt.Fprintf(&output, "%s: FAILED: %s\n", f.Input, f.Error)
		}
	}
	return output.String()
}
