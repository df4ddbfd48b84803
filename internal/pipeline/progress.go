package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives batch progress. Calls are made from the aggregating
// goroutine only, never concurrently.
type ProgressCallback interface {
	OnStart(total int)
	OnProgress(current, total int)
	OnComplete()
	OnError(index int, err error)
}

// NoOpProgressCallback discards progress.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)         {}
func (NoOpProgressCallback) OnProgress(int, int) {}
func (NoOpProgressCallback) OnComplete()         {}
func (NoOpProgressCallback) OnError(int, error)  {}

// ConsoleProgressCallback draws a single-line progress bar.
type ConsoleProgressCallback struct {
	writer   io.Writer
	prefix   string
	width    int
	interval time.Duration

	mu       sync.Mutex
	start    time.Time
	last     time.Time
	failures int
}

// NewConsoleProgressCallback writes to w (stderr when nil).
func NewConsoleProgressCallback(w io.Writer, prefix string) *ConsoleProgressCallback {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleProgressCallback{writer: w, prefix: prefix, width: 40, interval: 100 * time.Millisecond}
}

// WithWidth sets the bar width in cells.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	if width > 0 {
		c.width = width
	}
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
	c.last = time.Time{}
	c.failures = 0
	_, _ = fmt.Fprintf(c.writer, "%s0/%d\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnProgress(current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if current < total && now.Sub(c.last) < c.interval {
		return
	}
	c.last = now
	if total <= 0 {
		return
	}

	filled := c.width * current / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)
	line := fmt.Sprintf("\r%s[%s] %d/%d", c.prefix, bar, current, total)
	if elapsed := now.Sub(c.start).Seconds(); elapsed > 0 && current > 0 {
		line += fmt.Sprintf(" %.1f img/s", float64(current)/elapsed)
	}
	if c.failures > 0 {
		line += fmt.Sprintf(" (%d failed)", c.failures)
	}
	_, _ = fmt.Fprint(c.writer, line)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.writer, "\n%sCompleted in %v\n", c.prefix, time.Since(c.start).Round(time.Millisecond))
}

func (c *ConsoleProgressCallback) OnError(index int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	_, _ = fmt.Fprintf(c.writer, "\n%sImage %d failed: %v\n", c.prefix, index, err)
}

// LogProgressCallback reports progress through slog every interval items.
type LogProgressCallback struct {
	logger   *slog.Logger
	interval int
}

// NewLogProgressCallback logs through logger (slog.Default when nil).
func NewLogProgressCallback(logger *slog.Logger, interval int) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10
	}
	return &LogProgressCallback{logger: logger, interval: interval}
}

func (l *LogProgressCallback) OnStart(total int) {
	l.logger.Info("Batch started", "total", total)
}

func (l *LogProgressCallback) OnProgress(current, total int) {
	if current%l.interval == 0 || current == total {
		l.logger.Info("Batch progress", "current", current, "total", total)
	}
}

func (l *LogProgressCallback) OnComplete() {
	l.logger.Info("Batch completed")
}

func (l *LogProgressCallback) OnError(index int, err error) {
	l.logger.Warn("Batch item failed", "index", index, "error", err)
}
