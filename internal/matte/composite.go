package matte

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/MeKo-Tech/cutout/internal/common"
	"github.com/disintegration/imaging"
)

// Composite copies the RGB channels of src verbatim and replaces alpha with the
// refined channel. The result always has origin (0,0).
func Composite(src image.Image, alpha []uint8) (*image.NRGBA, error) {
	if src == nil {
		return nil, common.InvalidImage("composite", errors.New("input image is nil"))
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if len(alpha) != w*h {
		return nil, common.ModelFailure("composite",
			fmt.Errorf("alpha has %d values for a %dx%d image", len(alpha), w, h))
	}

	out := imaging.Clone(src)
	for y := range h {
		row := out.Pix[y*out.Stride : y*out.Stride+4*w]
		a := alpha[y*w : (y+1)*w]
		for x := range w {
			row[4*x+3] = a[x]
		}
	}
	return out, nil
}

// ParseCompression maps a compression name to a PNG compression level.
func ParseCompression(name string) (png.CompressionLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return png.DefaultCompression, nil
	case "speed", "fast":
		return png.BestSpeed, nil
	case "best":
		return png.BestCompression, nil
	case "none":
		return png.NoCompression, nil
	default:
		return png.DefaultCompression, fmt.Errorf("unknown png compression %q", name)
	}
}

// EncodePNG serializes the cutout losslessly.
func EncodePNG(img *image.NRGBA, level png.CompressionLevel) ([]byte, error) {
	if img == nil {
		return nil, common.EncodingFailure("encode png", errors.New("image is nil"))
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(level)); err != nil {
		return nil, common.EncodingFailure("encode png", err)
	}
	return buf.Bytes(), nil
}
