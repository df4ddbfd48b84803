package matte

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/cutout/internal/common"
	"github.com/MeKo-Tech/cutout/internal/letterbox"
)

// AlphaField holds one opacity value in [0,1] per source pixel, row-major.
type AlphaField struct {
	Width  int
	Height int
	Values []float32
}

// At returns the value at (x, y) with coordinates clamped to the field bounds.
func (f AlphaField) At(x, y int) float32 {
	x = min(max(x, 0), f.Width-1)
	y = min(max(y, 0), f.Height-1)
	return f.Values[y*f.Width+x]
}

// Resample bilinearly interpolates the S*S model mask back onto the plan's original
// resolution. Values are clamped to [0,1].
func Resample(mask []float32, plan letterbox.Plan) (AlphaField, error) {
	s := plan.TargetSize
	if len(mask) != s*s {
		return AlphaField{}, common.ModelFailure("resample mask",
			fmt.Errorf("mask has %d values, want %d (%dx%d)", len(mask), s*s, s, s))
	}

	w, h := plan.OrigW, plan.OrigH
	out := make([]float32, w*h)

	forEachRowBand(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := range w {
				mx, my := plan.ToMaskSpace(float64(x), float64(y))
				out[y*w+x] = SampleBilinear(mask, s, mx, my)
			}
		}
	})

	return AlphaField{Width: w, Height: h, Values: out}, nil
}

// SampleBilinear samples a size x size row-major mask at a fractional coordinate.
// Indices outside the mask contribute zero.
func SampleBilinear(mask []float32, size int, mx, my float64) float32 {
	fx0 := math.Floor(mx)
	fy0 := math.Floor(my)
	x0, y0 := int(fx0), int(fy0)
	x1 := min(x0+1, size-1)
	y1 := min(y0+1, size-1)
	dx := mx - fx0
	dy := my - fy0

	v00 := maskAt(mask, size, x0, y0)
	v10 := maskAt(mask, size, x1, y0)
	v01 := maskAt(mask, size, x0, y1)
	v11 := maskAt(mask, size, x1, y1)

	v := v00*(1-dx)*(1-dy) + v10*dx*(1-dy) + v01*(1-dx)*dy + v11*dx*dy
	return float32(clamp01(v))
}

func maskAt(mask []float32, size, x, y int) float64 {
	if x < 0 || y < 0 || x >= size || y >= size {
		return 0
	}
	return float64(mask[y*size+x])
}

// clamp01 maps NaN to 0.
func clamp01(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
