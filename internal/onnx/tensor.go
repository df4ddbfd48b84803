// Package onnx wraps the ONNX Runtime plumbing shared by model sessions: tensor
// values, runtime library discovery and execution provider setup.
package onnx

import (
	"errors"
	"fmt"
)

// Tensor is a float32 tensor in row-major order. Image inputs use NCHW.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// NewImageTensor wraps data as a single image tensor of shape [1, c, h, w].
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	if want := c * h * w; len(data) != want {
		return Tensor{}, fmt.Errorf("unexpected data length: got %d, want %d", len(data), want)
	}
	return Tensor{Data: data, Shape: []int64{1, int64(c), int64(h), int64(w)}}, nil
}

// ValidateNCHW ensures a shape is [N, C, H, W] with positive dimensions.
func ValidateNCHW(shape []int64) error {
	if len(shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(shape))
	}
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
	}
	return nil
}

// VerifyImageTensor checks that the data length matches the NCHW shape.
func VerifyImageTensor(t Tensor) error {
	if err := ValidateNCHW(t.Shape); err != nil {
		return err
	}
	want := int(t.Shape[0] * t.Shape[1] * t.Shape[2] * t.Shape[3])
	if len(t.Data) != want {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), want, t.Shape)
	}
	return nil
}

// VerifySquareInput checks that t is a [1, 3, size, size] model input.
func VerifySquareInput(t Tensor, size int) error {
	if err := VerifyImageTensor(t); err != nil {
		return err
	}
	s := int64(size)
	if t.Shape[0] != 1 || t.Shape[1] != 3 || t.Shape[2] != s || t.Shape[3] != s {
		return fmt.Errorf("input shape %v, want [1 3 %d %d]", t.Shape, size, size)
	}
	return nil
}

// VerifyMaskShape accepts [S,S], [1,S,S] and [1,1,S,S] single-channel masks.
// Anything else, including a right-sized buffer with the wrong layout, is rejected.
func VerifyMaskShape(shape []int64, size int) error {
	if len(shape) < 2 || len(shape) > 4 {
		return fmt.Errorf("mask rank %d not in [2,4]", len(shape))
	}
	lead := shape[:len(shape)-2]
	for _, d := range lead {
		if d != 1 {
			return fmt.Errorf("mask shape %v has non-singleton leading dimension", shape)
		}
	}
	h, w := shape[len(shape)-2], shape[len(shape)-1]
	if h != int64(size) || w != int64(size) {
		return fmt.Errorf("mask shape %v, want %dx%d", shape, size, size)
	}
	return nil
}

// TensorStats returns min, max and mean for debug logging.
func TensorStats(data []float32) (float32, float32, float32) {
	if len(data) == 0 {
		return 0, 0, 0
	}
	minVal, maxVal := data[0], data[0]
	var sum float64
	for _, v := range data {
		minVal = min(minVal, v)
		maxVal = max(maxVal, v)
		sum += float64(v)
	}
	return minVal, maxVal, float32(sum / float64(len(data)))
}
