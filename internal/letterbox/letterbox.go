// Package letterbox maps an arbitrary image size into a fixed square model input
// via aspect-preserving resize plus centered black padding, and back.
package letterbox

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/cutout/internal/common"
)

// Plan is the immutable letterbox geometry for one image. It is computed once per
// request and shared by the tensor preparer and the mask resampler.
type Plan struct {
	OrigW      int // Source image width
	OrigH      int // Source image height
	ResizeW    int // Width of the resized image inside the square
	ResizeH    int // Height of the resized image inside the square
	StartX     int // Left padding
	StartY     int // Top padding
	TargetSize int // Side length of the square model input
}

// ComputePlan derives the letterbox geometry for an origW x origH image fitted into
// a targetSize square. The longer side fills the square exactly.
func ComputePlan(origW, origH, targetSize int) (Plan, error) {
	if origW <= 0 || origH <= 0 {
		return Plan{}, common.InvalidImage("letterbox plan",
			fmt.Errorf("image dimensions must be positive, got %dx%d", origW, origH))
	}
	if targetSize <= 0 {
		return Plan{}, common.InvalidImage("letterbox plan", errors.New("target size must be positive"))
	}

	var resizeW, resizeH int
	if origW > origH {
		resizeW = targetSize
		resizeH = scaledSide(origH, origW, targetSize)
	} else {
		resizeH = targetSize
		resizeW = scaledSide(origW, origH, targetSize)
	}

	return Plan{
		OrigW:      origW,
		OrigH:      origH,
		ResizeW:    resizeW,
		ResizeH:    resizeH,
		StartX:     (targetSize - resizeW) / 2,
		StartY:     (targetSize - resizeH) / 2,
		TargetSize: targetSize,
	}, nil
}

// scaledSide scales the short side so the long side becomes target. Extremely thin
// images would round to zero; they keep a single row or column instead.
func scaledSide(short, long, target int) int {
	v := int(math.Round(float64(short) * float64(target) / float64(long)))
	if v < 1 {
		return 1
	}
	if v > target {
		return target
	}
	return v
}

// ScaleX is the horizontal factor from original to mask space.
func (p Plan) ScaleX() float64 {
	return float64(p.ResizeW) / float64(p.OrigW)
}

// ScaleY is the vertical factor from original to mask space.
func (p Plan) ScaleY() float64 {
	return float64(p.ResizeH) / float64(p.OrigH)
}

// ToMaskSpace maps an original-image coordinate into the padded square.
func (p Plan) ToMaskSpace(origX, origY float64) (float64, float64) {
	return origX*p.ScaleX() + float64(p.StartX), origY*p.ScaleY() + float64(p.StartY)
}

// ToOriginal maps a coordinate in the padded square back onto the original image.
// Points in the padding map outside [0, OrigW) x [0, OrigH).
func (p Plan) ToOriginal(maskX, maskY float64) (float64, float64) {
	return (maskX - float64(p.StartX)) / p.ScaleX(), (maskY - float64(p.StartY)) / p.ScaleY()
}

// Contains reports whether the mask-space pixel (x, y) lies inside the resized image.
func (p Plan) Contains(x, y int) bool {
	return x >= p.StartX && x < p.StartX+p.ResizeW && y >= p.StartY && y < p.StartY+p.ResizeH
}

func (p Plan) String() string {
	return fmt.Sprintf("%dx%d -> %dx%d at (%d,%d) in %d", p.OrigW, p.OrigH,
		p.ResizeW, p.ResizeH, p.StartX, p.StartY, p.TargetSize)
}
