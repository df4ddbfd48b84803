package testutil

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/MeKo-Tech/cutout/internal/onnx"
)

// FakeSegmenter returns a precomputed mask for every input of the right shape.
type FakeSegmenter struct {
	Size int
	Mask []float32
	Err  error

	mu     sync.Mutex
	failOn map[int]error
	calls  atomic.Int64
}

// NewUniformSegmenter returns a fake whose mask is v everywhere.
func NewUniformSegmenter(size int, v float32) *FakeSegmenter {
	return &FakeSegmenter{Size: size, Mask: UniformMask(size, v)}
}

// NewDiscSegmenter returns a fake whose mask is a centered disc of the given
// radius fraction with a soft one-pixel rim.
func NewDiscSegmenter(size int, radius float64) *FakeSegmenter {
	return &FakeSegmenter{Size: size, Mask: DiscMask(size, radius)}
}

// NewFailingSegmenter returns a fake whose Predict always fails with err.
func NewFailingSegmenter(size int, err error) *FakeSegmenter {
	return &FakeSegmenter{Size: size, Err: err}
}

// FailOnCall makes the n-th Predict call (1-based) fail with err.
func (f *FakeSegmenter) FailOnCall(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn == nil {
		f.failOn = make(map[int]error)
	}
	f.failOn[n] = err
}

// TargetSize implements the segmenter contract.
func (f *FakeSegmenter) TargetSize() int { return f.Size }

// Calls reports how many times Predict ran.
func (f *FakeSegmenter) Calls() int { return int(f.calls.Load()) }

// Predict validates the input like a real session and returns a copy of Mask.
func (f *FakeSegmenter) Predict(t onnx.Tensor) ([]float32, error) {
	n := int(f.calls.Add(1))
	if err := onnx.VerifySquareInput(t, f.Size); err != nil {
		return nil, err
	}

	f.mu.Lock()
	callErr := f.failOn[n]
	f.mu.Unlock()
	if callErr != nil {
		return nil, callErr
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.Mask) != f.Size*f.Size {
		return nil, fmt.Errorf("fake mask has %d values for size %d", len(f.Mask), f.Size)
	}
	return append([]float32(nil), f.Mask...), nil
}

// Close satisfies io.Closer.
func (f *FakeSegmenter) Close() error { return nil }

// ErrFakeInference is a stand-in engine failure.
var ErrFakeInference = errors.New("fake inference failure")

// UniformMask returns a size x size mask with value v.
func UniformMask(size int, v float32) []float32 {
	m := make([]float32, size*size)
	for i := range m {
		m[i] = v
	}
	return m
}

// DiscMask returns a centered disc covering radius*size/2 pixels, 1 inside and
// 0 outside with a linear one-pixel transition.
func DiscMask(size int, radius float64) []float32 {
	m := make([]float32, size*size)
	c := float64(size-1) / 2
	r := radius * float64(size) / 2
	for y := range size {
		for x := range size {
			d := math.Hypot(float64(x)-c, float64(y)-c)
			m[y*size+x] = float32(math.Min(1, math.Max(0, r-d+0.5)))
		}
	}
	return m
}
