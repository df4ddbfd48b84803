package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageTensor(t *testing.T) {
	tests := []struct {
		name    string
		data    []float32
		wantErr bool
	}{
		{"nil data", nil, true},
		{"too short", make([]float32, 10), true},
		{"too long", make([]float32, 100), true},
		{"exact", make([]float32, 60), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ten, err := NewImageTensor(tt.data, 3, 4, 5)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []int64{1, 3, 4, 5}, ten.Shape)
			assert.NoError(t, VerifyImageTensor(ten))
		})
	}
}

func TestValidateNCHW(t *testing.T) {
	assert.NoError(t, ValidateNCHW([]int64{1, 3, 2, 2}))
	assert.Error(t, ValidateNCHW([]int64{1, 3, 2}))
	assert.Error(t, ValidateNCHW([]int64{1, 0, 2, 2}))
	assert.Error(t, ValidateNCHW([]int64{1, 3, -1, 2}))
}

func TestVerifyImageTensor_LengthMismatch(t *testing.T) {
	err := VerifyImageTensor(Tensor{Data: make([]float32, 11), Shape: []int64{1, 3, 2, 2}})
	assert.Error(t, err)
}

func TestVerifySquareInput(t *testing.T) {
	ok, err := NewImageTensor(make([]float32, 3*8*8), 3, 8, 8)
	require.NoError(t, err)
	assert.NoError(t, VerifySquareInput(ok, 8))
	assert.Error(t, VerifySquareInput(ok, 16))

	gray, err := NewImageTensor(make([]float32, 64), 1, 8, 8)
	require.NoError(t, err)
	assert.Error(t, VerifySquareInput(gray, 8))
}

func TestVerifyMaskShape(t *testing.T) {
	tests := []struct {
		shape []int64
		ok    bool
	}{
		{[]int64{320, 320}, true},
		{[]int64{1, 320, 320}, true},
		{[]int64{1, 1, 320, 320}, true},
		{[]int64{1, 2, 320, 320}, false},
		{[]int64{1, 1, 160, 640}, false},
		{[]int64{102400}, false},
		{[]int64{1, 1, 1, 320, 320}, false},
	}
	for _, tt := range tests {
		err := VerifyMaskShape(tt.shape, 320)
		if tt.ok {
			assert.NoError(t, err, "%v", tt.shape)
		} else {
			assert.Error(t, err, "%v", tt.shape)
		}
	}
}

func TestTensorStats(t *testing.T) {
	minV, maxV, mean := TensorStats([]float32{-1, 0, 1, 4})
	assert.Equal(t, float32(-1), minV)
	assert.Equal(t, float32(4), maxV)
	assert.InDelta(t, 1.0, mean, 1e-6)

	minV, maxV, mean = TensorStats(nil)
	assert.Zero(t, minV)
	assert.Zero(t, maxV)
	assert.Zero(t, mean)
}
