// Package testutil provides synthetic images, encoders and fake segmentation
// models for tests that must run without ONNX Runtime.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

// Common test image sizes.
var (
	SmallSize  = ImageSize{320, 240}
	MediumSize = ImageSize{640, 480}
	LargeSize  = ImageSize{1024, 768}
)

// SolidImage returns a w x h image filled with c.
func SolidImage(w, h int, c color.Color) *image.NRGBA {
	return imaging.New(w, h, c)
}

// SubjectImage draws a red disc centered on a light gray background, a crude
// stand-in for a photographed subject.
func SubjectImage(w, h int) *image.NRGBA {
	img := imaging.New(w, h, color.NRGBA{R: 220, G: 220, B: 220, A: 255})
	cx, cy := float64(w)/2, float64(h)/2
	r := min(cx, cy) * 0.6
	for y := range h {
		for x := range w {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			if dx*dx+dy*dy <= r*r {
				img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
			}
		}
	}
	return img
}

// EncodePNG encodes img as PNG or fails the test.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// EncodeJPEG encodes img as JPEG at quality 95 or fails the test.
func EncodeJPEG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

// DecodePNG decodes PNG bytes into an NRGBA image or fails the test.
func DecodePNG(t testing.TB, data []byte) *image.NRGBA {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return imaging.Clone(img)
}

// SaveImage writes img to path, creating parent directories. The format follows
// the file extension.
func SaveImage(t testing.TB, img image.Image, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, imaging.Save(img, path))
}

// AlphaHistogram counts output pixels that are fully transparent, fully opaque
// and in between.
func AlphaHistogram(img *image.NRGBA) (transparent, opaque, partial int) {
	for i := 3; i < len(img.Pix); i += 4 {
		switch img.Pix[i] {
		case 0:
			transparent++
		case 255:
			opaque++
		default:
			partial++
		}
	}
	return transparent, opaque, partial
}
