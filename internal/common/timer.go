// Package common holds the error kinds and timing helpers shared by the cutout stages.
package common

import (
	"fmt"
	"strings"
	"time"
)

// Timer measures a single named stage.
type Timer struct {
	name     string
	start    time.Time
	duration time.Duration
}

// NewTimer starts a timer for the given stage name.
func NewTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// Stop records and returns the elapsed time.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (zero until Stop).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Name returns the stage name.
func (t *Timer) Name() string {
	return t.name
}

func (t *Timer) String() string {
	return fmt.Sprintf("%s: %v", t.name, t.duration)
}

// StageTimings collects per-stage durations of one image in the order they ran.
type StageTimings struct {
	order  []string
	stages map[string]time.Duration
}

// Track runs fn and records its duration under name.
func (s *StageTimings) Track(name string, fn func() error) error {
	t := NewTimer(name)
	err := fn()
	s.Record(name, t.Stop())
	return err
}

// Record adds d to the named stage.
func (s *StageTimings) Record(name string, d time.Duration) {
	if s.stages == nil {
		s.stages = make(map[string]time.Duration)
	}
	if _, ok := s.stages[name]; !ok {
		s.order = append(s.order, name)
	}
	s.stages[name] += d
}

// Get returns the duration of a stage, zero when it never ran.
func (s *StageTimings) Get(name string) time.Duration {
	return s.stages[name]
}

// Stages returns the recorded stage names in first-recorded order.
func (s *StageTimings) Stages() []string {
	return append([]string(nil), s.order...)
}

// Total sums every recorded stage.
func (s *StageTimings) Total() time.Duration {
	var total time.Duration
	for _, d := range s.stages {
		total += d
	}
	return total
}

func (s *StageTimings) String() string {
	parts := make([]string, 0, len(s.order))
	for _, name := range s.order {
		parts = append(parts, fmt.Sprintf("%s=%v", name, s.stages[name]))
	}
	return strings.Join(parts, " ")
}
