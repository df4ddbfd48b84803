package matte

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/MeKo-Tech/cutout/internal/common"
	"github.com/MeKo-Tech/cutout/internal/letterbox"
	"github.com/disintegration/imaging"
)

// Resize filter names accepted by ParseResizeFilter.
const (
	FilterLinear     = "linear"
	FilterLanczos    = "lanczos"
	FilterCatmullRom = "catmullrom"
	FilterBox        = "box"
	FilterNearest    = "nearest"
)

// DefaultResizeFilter is triangle (bilinear) filtering. Switching filters shifts the
// tensor values slightly, so model parity tests pin the filter as well.
const DefaultResizeFilter = FilterLinear

// ParseResizeFilter maps a filter name to the imaging resample filter.
func ParseResizeFilter(name string) (imaging.ResampleFilter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", FilterLinear:
		return imaging.Linear, nil
	case FilterLanczos:
		return imaging.Lanczos, nil
	case FilterCatmullRom:
		return imaging.CatmullRom, nil
	case FilterBox:
		return imaging.Box, nil
	case FilterNearest:
		return imaging.NearestNeighbor, nil
	default:
		return imaging.ResampleFilter{}, fmt.Errorf("unknown resize filter %q", name)
	}
}

// Letterbox resizes src to the plan's ResizeW x ResizeH and pastes it centered onto a
// black TargetSize square.
func Letterbox(src image.Image, plan letterbox.Plan, filter imaging.ResampleFilter) (*image.NRGBA, error) {
	if src == nil {
		return nil, common.InvalidImage("letterbox", errors.New("input image is nil"))
	}
	b := src.Bounds()
	if b.Dx() != plan.OrigW || b.Dy() != plan.OrigH {
		return nil, common.InvalidImage("letterbox",
			fmt.Errorf("image is %dx%d but plan expects %dx%d", b.Dx(), b.Dy(), plan.OrigW, plan.OrigH))
	}

	var resized *image.NRGBA
	if plan.ResizeW == plan.OrigW && plan.ResizeH == plan.OrigH {
		resized = imaging.Clone(src)
	} else {
		resized = imaging.Resize(src, plan.ResizeW, plan.ResizeH, filter)
	}

	canvas := imaging.New(plan.TargetSize, plan.TargetSize, color.Black)
	return imaging.Paste(canvas, resized, image.Pt(plan.StartX, plan.StartY)), nil
}
