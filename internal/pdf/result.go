package pdf

import (
	"fmt"
	"os"
	"path/filepath"
)

// ImageResult is the cutout of one embedded image.
type ImageResult struct {
	Page       int    `json:"page"`
	Index      int    `json:"index"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	OutputName string `json:"output_name"`
	Error      string `json:"error,omitempty"`
	PNG        []byte `json:"-"`
}

// OK reports whether the image was cut out.
func (r ImageResult) OK() bool { return r.Error == "" && len(r.PNG) > 0 }

// DocumentResult collects the cutouts of one PDF.
type DocumentResult struct {
	Filename   string         `json:"filename"`
	TotalPages int            `json:"total_pages"`
	Images     []ImageResult  `json:"images"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Processing ProcessingInfo `json:"processing"`
}

// ProcessingInfo contains timing information.
type ProcessingInfo struct {
	ExtractionTimeMs int64 `json:"extraction_time_ms"`
	CutoutTimeMs     int64 `json:"cutout_time_ms"`
	TotalTimeMs      int64 `json:"total_time_ms"`
}

// OutputName is the file name used for a cutout of page/index.
func OutputName(page, index int) string {
	return fmt.Sprintf("page_%03d_image_%02d.png", page, index)
}

// WriteTo saves every successful cutout into dir and returns the written paths.
func (d *DocumentResult) WriteTo(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	var paths []string
	for _, img := range d.Images {
		if !img.OK() {
			continue
		}
		path := filepath.Join(dir, img.OutputName)
		if err := os.WriteFile(path, img.PNG, 0o600); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
