// Package pdf pulls embedded raster images out of PDF documents so their
// backgrounds can be removed.
package pdf

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	_ "golang.org/x/image/tiff"
)

// ExtractedImage is one embedded image of a page.
type ExtractedImage struct {
	Page  int
	Index int    // 1-based position on the page
	Name  string // File name pdfcpu chose for the image
	Image image.Image
}

// PageRangeError reports a selected page beyond the end of the document.
type PageRangeError struct {
	Page  int
	Pages int
}

func (e *PageRangeError) Error() string {
	return fmt.Sprintf("page %d out of range (document has %d pages)", e.Page, e.Pages)
}

// IsPageRangeError reports whether err is a *PageRangeError.
func IsPageRangeError(err error) bool {
	var pre *PageRangeError
	return errors.As(err, &pre)
}

// ExtractImages extracts the images of the selected pages. An empty pageRange
// selects all pages. Results are ordered by page, then by position on the page.
func ExtractImages(filename, pageRange string) ([]ExtractedImage, error) {
	pageNumbers, err := parsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}
	if len(pageNumbers) > 0 {
		pages, err := PageCount(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read PDF: %w", err)
		}
		if err := checkPages(pageNumbers, pages); err != nil {
			return nil, err
		}
	}

	tempDir, err := os.MkdirTemp("", "cutout-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var pageStrings []string
	if len(pageNumbers) > 0 {
		pageStrings = make([]string, len(pageNumbers))
		for i, pageNum := range pageNumbers {
			pageStrings[i] = strconv.Itoa(pageNum)
		}
	}

	if err := api.ExtractImagesFile(filename, tempDir, pageStrings, nil); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	images, err := collectExtractedImages(tempDir, base)
	if err != nil {
		return nil, fmt.Errorf("failed to process extracted images: %w", err)
	}
	return images, nil
}

// PageCount returns the number of pages of a PDF file.
func PageCount(filename string) (int, error) {
	return api.PageCountFile(filename)
}

func loadImageFile(path string) (image.Image, error) {
	file, err := os.Open(path) //nolint:gosec // G304: files come from our own temp directory
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	return img, err
}

// collectExtractedImages loads every decodable image pdfcpu wrote to dir.
func collectExtractedImages(dir, base string) ([]ExtractedImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []ExtractedImage
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		pageNum, err := parsePageFromFilename(e.Name(), base)
		if err != nil {
			continue
		}
		img, err := loadImageFile(filepath.Join(dir, e.Name()))
		if err != nil || img == nil {
			// pdfcpu may emit formats we cannot decode (JPX, CCITT).
			continue
		}
		out = append(out, ExtractedImage{Page: pageNum, Name: e.Name(), Image: img})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Page != out[j].Page {
			return out[i].Page < out[j].Page
		}
		return out[i].Name < out[j].Name
	})
	index := 0
	for i := range out {
		if i == 0 || out[i].Page != out[i-1].Page {
			index = 0
		}
		index++
		out[i].Index = index
	}
	return out, nil
}

// parsePageFromFilename extracts the page number from an extracted image name.
// pdfcpu writes <base>_<page>[_<name>].<ext>; older releases used
// page_<page>_image_<n>.<ext>.
func parsePageFromFilename(filename, base string) (int, error) {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	if base != "" && strings.HasPrefix(name, base+"_") {
		name = strings.TrimPrefix(name, base+"_")
	} else if strings.HasPrefix(name, "page_") {
		name = strings.TrimPrefix(name, "page_")
	} else {
		return 0, errors.New("not a page file")
	}

	token, _, _ := strings.Cut(name, "_")
	pageNum, err := strconv.Atoi(token)
	if err != nil || pageNum <= 0 {
		return 0, errors.New("invalid page number")
	}
	return pageNum, nil
}

// checkPages rejects selected pages past the end of the document. pdfcpu does
// not guard against an empty selection.
func checkPages(pageNumbers []int, pages int) error {
	for _, p := range pageNumbers {
		if p > pages {
			return &PageRangeError{Page: p, Pages: pages}
		}
	}
	return nil
}

// parsePageRange parses a page range string like "1-5" or "1,3,5".
func parsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
	}

	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

// parseRangeToken parses either a single page token ("3") or a range ("1-5").
func parseRangeToken(part string) ([]int, error) {
	if startStr, endStr, ok := strings.Cut(part, "-"); ok {
		start, err := strconv.Atoi(strings.TrimSpace(startStr))
		if err != nil {
			return nil, fmt.Errorf("invalid start page: %s", startStr)
		}
		end, err := strconv.Atoi(strings.TrimSpace(endStr))
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", endStr)
		}
		if start < 1 {
			return nil, fmt.Errorf("page numbers start at 1, got %d", start)
		}
		if start > end {
			return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	if page < 1 {
		return nil, fmt.Errorf("page numbers start at 1, got %d", page)
	}
	return []int{page}, nil
}
