package matte

import (
	"errors"
	"fmt"
	"math"
)

// RefineConfig tunes the edge-aware alpha refinement. Different models produce
// differently calibrated masks, so all thresholds are configuration.
type RefineConfig struct {
	Enabled          bool    `json:"enabled"`            // Apply refinement; when false alpha is quantized as-is
	EdgeThreshold    float64 `json:"edge_threshold"`     // Laplacian score above which a pixel counts as edge
	EdgeAlphaMin     float64 `json:"edge_alpha_min"`     // Start of the smoothstep ramp on edge pixels
	EdgeAlphaRange   float64 `json:"edge_alpha_range"`   // Width of the smoothstep ramp on edge pixels
	BlendFactor      float64 `json:"blend_factor"`       // Weight of the smoothstep result against the raw alpha
	SmoothAlphaMin   float64 `json:"smooth_alpha_min"`   // Start of the smootherstep ramp on flat pixels
	SmoothAlphaRange float64 `json:"smooth_alpha_range"` // Width of the smootherstep ramp on flat pixels
}

// DefaultRefineConfig returns the empirically tuned defaults.
func DefaultRefineConfig() RefineConfig {
	return RefineConfig{
		Enabled:          true,
		EdgeThreshold:    0.1,
		EdgeAlphaMin:     0.2,
		EdgeAlphaRange:   0.6,
		BlendFactor:      0.8,
		SmoothAlphaMin:   0.1,
		SmoothAlphaRange: 0.8,
	}
}

// Validate checks that the ramps are well formed.
func (c RefineConfig) Validate() error {
	if c.EdgeThreshold < 0 || c.EdgeThreshold > 1 {
		return fmt.Errorf("edge threshold must be in [0,1], got %v", c.EdgeThreshold)
	}
	if c.EdgeAlphaRange <= 0 {
		return errors.New("edge alpha range must be positive")
	}
	if c.SmoothAlphaRange <= 0 {
		return errors.New("smooth alpha range must be positive")
	}
	if c.BlendFactor < 0 || c.BlendFactor > 1 {
		return fmt.Errorf("blend factor must be in [0,1], got %v", c.BlendFactor)
	}
	return nil
}

// EdgeScore is |8*A(x,y) - sum of the 8 neighbours| capped at 1. Neighbour
// coordinates clamp to the field bounds.
func EdgeScore(f AlphaField, x, y int) float64 {
	center := float64(f.At(x, y))
	var sum float64
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			sum += float64(f.At(x+dx, y+dy))
		}
	}
	return math.Min(math.Abs(8*center-sum), 1)
}

// Smoothstep is the cubic t²(3-2t).
func Smoothstep(t float64) float64 {
	return t * t * (3 - 2*t)
}

// Smootherstep is the quintic t³(t(6t-15)+10).
func Smootherstep(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

// RefineValue remaps one raw alpha value given its edge score.
func (c RefineConfig) RefineValue(a, score float64) float64 {
	if score > c.EdgeThreshold {
		t := clamp01((a - c.EdgeAlphaMin) / c.EdgeAlphaRange)
		return c.BlendFactor*Smoothstep(t) + (1-c.BlendFactor)*a
	}
	t := clamp01((a - c.SmoothAlphaMin) / c.SmoothAlphaRange)
	return Smootherstep(t)
}

// Refine computes the 8-bit alpha channel from the raw field. Scores are read from
// the raw field only, so output pixels are independent of each other.
func Refine(f AlphaField, cfg RefineConfig) []uint8 {
	out := make([]uint8, len(f.Values))
	if !cfg.Enabled {
		for i, v := range f.Values {
			out[i] = quantize(float64(v))
		}
		return out
	}

	forEachRowBand(f.Height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := range f.Width {
				i := y*f.Width + x
				out[i] = quantize(cfg.RefineValue(float64(f.Values[i]), EdgeScore(f, x, y)))
			}
		}
	})
	return out
}

func quantize(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 255))
}
