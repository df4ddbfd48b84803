package matte

import (
	"fmt"
	"image"

	"github.com/MeKo-Tech/cutout/internal/common"
	"github.com/MeKo-Tech/cutout/internal/letterbox"
	"github.com/MeKo-Tech/cutout/internal/mempool"
	"github.com/MeKo-Tech/cutout/internal/onnx"
)

// Normalization maps an 8-bit channel value v to v/255*Scale[c] + Offset[c].
// Channels are ordered R, G, B.
type Normalization struct {
	Scale  [3]float32 `json:"scale"`
	Offset [3]float32 `json:"offset"`
}

// ImageNet mean/std used by the U2-Net family.
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// FromMeanStd builds the normalization (v/255 - mean) / std.
func FromMeanStd(mean, std [3]float32) (Normalization, error) {
	var n Normalization
	for c := range 3 {
		if std[c] <= 0 {
			return Normalization{}, fmt.Errorf("std[%d] must be positive, got %v", c, std[c])
		}
		n.Scale[c] = 1 / std[c]
		n.Offset[c] = -mean[c] / std[c]
	}
	return n, nil
}

// ImageNetNormalization returns the ImageNet mean/std normalization.
func ImageNetNormalization() Normalization {
	n, _ := FromMeanStd(ImageNetMean, ImageNetStd)
	return n
}

// Apply normalizes a single channel value.
func (n Normalization) Apply(c int, v uint8) float32 {
	return float32(v)/255*n.Scale[c] + n.Offset[c]
}

// PrepareTensor converts the letterboxed square into a [1, 3, S, S] planar tensor.
// The backing slice comes from mempool; callers hand it back with ReleaseTensor
// once inference has consumed it.
func PrepareTensor(square *image.NRGBA, plan letterbox.Plan, norm Normalization) (onnx.Tensor, error) {
	s := plan.TargetSize
	if square == nil || square.Rect.Dx() != s || square.Rect.Dy() != s {
		return onnx.Tensor{}, common.InvalidImage("prepare tensor",
			fmt.Errorf("expected %dx%d letterboxed buffer", s, s))
	}

	plane := s * s
	data := mempool.GetFloat32(3 * plane)

	forEachRowBand(s, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := square.Pix[y*square.Stride : y*square.Stride+4*s]
			for x := range s {
				px := row[4*x : 4*x+3]
				i := y*s + x
				data[i] = norm.Apply(0, px[0])
				data[plane+i] = norm.Apply(1, px[1])
				data[2*plane+i] = norm.Apply(2, px[2])
			}
		}
	})

	return onnx.NewImageTensor(data, 3, s, s)
}

// ReleaseTensor returns a tensor's buffer to the pool.
func ReleaseTensor(t onnx.Tensor) {
	mempool.PutFloat32(t.Data)
}
