// Package utils holds the image codec boundary: bounds-checked decoding of
// uploaded bytes, file loading and output naming.
package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/cutout/internal/common"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// DefaultMaxPixels caps decoded images at 64 megapixels.
const DefaultMaxPixels = 64 << 20

// SupportedImageExtensions lists file extensions accepted for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}

var supportedContentTypes = []string{"image/png", "image/jpeg", "image/jpg", "image/bmp", "image/webp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// IsSupportedContentType reports whether a multipart Content-Type names a
// decodable image. Parameters such as charset are ignored.
func IsSupportedContentType(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	for _, s := range supportedContentTypes {
		if mt == s {
			return true
		}
	}
	return false
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path      string
	Format    string
	SizeBytes int64
	Width     int
	Height    int
}

// DecodeImage decodes PNG, JPEG, BMP or WebP bytes. Dimensions are checked from
// the header before the pixel data is decoded, so zero-size and oversized images
// are rejected without allocating their buffers. Every failure is InvalidImage.
func DecodeImage(data []byte, maxPixels int) (image.Image, ImageMetadata, error) {
	if len(data) == 0 {
		return nil, ImageMetadata{}, common.InvalidImage("decode", errors.New("empty image data"))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ImageMetadata{}, common.InvalidImage("decode header", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ImageMetadata{}, common.InvalidImage("decode header",
			fmt.Errorf("zero dimension image %dx%d", cfg.Width, cfg.Height))
	}
	if maxPixels > 0 && cfg.Width*cfg.Height > maxPixels {
		return nil, ImageMetadata{}, common.InvalidImage("decode header",
			fmt.Errorf("image %dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxPixels))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ImageMetadata{}, common.InvalidImage("decode", err)
	}
	b := img.Bounds()
	if b.Dx() != cfg.Width || b.Dy() != cfg.Height {
		return nil, ImageMetadata{}, common.InvalidImage("decode",
			fmt.Errorf("decoded %dx%d, header said %dx%d", b.Dx(), b.Dy(), cfg.Width, cfg.Height))
	}

	return img, ImageMetadata{
		Format:    format,
		SizeBytes: int64(len(data)),
		Width:     cfg.Width,
		Height:    cfg.Height,
	}, nil
}

// ReadImageFile reads a supported image file into memory.
func ReadImageFile(path string) ([]byte, error) {
	if path == "" {
		return nil, common.InvalidImage("load", errors.New("empty path"))
	}
	if !IsSupportedImage(path) {
		return nil, common.InvalidImage("load", fmt.Errorf("unsupported format: %s", filepath.Ext(path)))
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: reading user-provided image path is expected
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// LoadImage reads and decodes an image file.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	data, err := ReadImageFile(path)
	if err != nil {
		return nil, ImageMetadata{}, err
	}
	img, meta, err := DecodeImage(data, DefaultMaxPixels)
	if err != nil {
		return nil, ImageMetadata{}, fmt.Errorf("%s: %w", path, err)
	}
	meta.Path = path
	return img, meta, nil
}
