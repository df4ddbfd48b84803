package pdf

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
)

// ErrNoImages is returned when the selected pages contain no decodable images.
var ErrNoImages = errors.New("no images found in PDF")

// ImageCutter removes the background of a decoded image.
type ImageCutter interface {
	CutoutImage(ctx context.Context, img image.Image) (*pipeline.Output, error)
}

// ProcessorConfig contains configuration for PDF processing.
type ProcessorConfig struct {
	MaxWorkers  int // 0 = runtime.NumCPU()
	Credentials *PasswordCredentials
}

// Processor extracts the images of a PDF and cuts each one out.
type Processor struct {
	cutter ImageCutter
	config ProcessorConfig
}

// NewProcessor creates a processor with default settings.
func NewProcessor(cutter ImageCutter) *Processor {
	return NewProcessorWithConfig(cutter, ProcessorConfig{})
}

// NewProcessorWithConfig creates a processor with custom configuration.
func NewProcessorWithConfig(cutter ImageCutter, config ProcessorConfig) *Processor {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	return &Processor{cutter: cutter, config: config}
}

// SetPasswordCredentials sets the passwords used for encrypted files.
func (p *Processor) SetPasswordCredentials(creds *PasswordCredentials) {
	p.config.Credentials = creds
}

// ProcessFile cuts out every embedded image of the selected pages. Individual
// image failures are recorded in the result; an error is returned only when
// the document cannot be read or contains no images.
func (p *Processor) ProcessFile(ctx context.Context, filename, pageRange string) (*DocumentResult, error) {
	start := time.Now()

	path, cleanup, err := Decrypt(filename, p.config.Credentials)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	doc := &DocumentResult{Filename: filepath.Base(filename)}
	if n, err := PageCount(path); err == nil {
		doc.TotalPages = n
	}

	extractStart := time.Now()
	images, err := ExtractImages(path, pageRange)
	if err != nil {
		return nil, err
	}
	doc.Processing.ExtractionTimeMs = time.Since(extractStart).Milliseconds()
	if len(images) == 0 {
		return doc, ErrNoImages
	}

	cutStart := time.Now()
	doc.Images = p.cutoutAll(ctx, images)
	doc.Processing.CutoutTimeMs = time.Since(cutStart).Milliseconds()

	for _, img := range doc.Images {
		if img.OK() {
			doc.Succeeded++
		} else {
			doc.Failed++
		}
	}
	doc.Processing.TotalTimeMs = time.Since(start).Milliseconds()

	slog.Debug("Processed PDF",
		"file", doc.Filename,
		"pages", doc.TotalPages,
		"images", len(doc.Images),
		"failed", doc.Failed,
		"total_ms", doc.Processing.TotalTimeMs)
	return doc, ctx.Err()
}

// ProcessBytes is ProcessFile for an in-memory document.
func (p *Processor) ProcessBytes(ctx context.Context, data []byte, name, pageRange string) (*DocumentResult, error) {
	if len(data) == 0 {
		return nil, errors.New("empty PDF")
	}
	dir, err := os.MkdirTemp("", "cutout-upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	if name == "" {
		name = "document.pdf"
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to spool PDF: %w", err)
	}
	return p.ProcessFile(ctx, path, pageRange)
}

// ProcessFiles processes several PDFs sequentially. Each document's images are
// still cut out in parallel.
func (p *Processor) ProcessFiles(ctx context.Context, filenames []string, pageRange string) ([]*DocumentResult, error) {
	results := make([]*DocumentResult, 0, len(filenames))
	for _, filename := range filenames {
		doc, err := p.ProcessFile(ctx, filename, pageRange)
		if err != nil && !errors.Is(err, ErrNoImages) {
			return results, fmt.Errorf("%s: %w", filename, err)
		}
		results = append(results, doc)
	}
	return results, nil
}

func (p *Processor) cutoutAll(ctx context.Context, images []ExtractedImage) []ImageResult {
	results := make([]ImageResult, len(images))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for range min(p.config.MaxWorkers, len(images)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.cutoutOne(ctx, images[i])
			}
		}()
	}

	for i := range images {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

func (p *Processor) cutoutOne(ctx context.Context, ex ExtractedImage) ImageResult {
	b := ex.Image.Bounds()
	res := ImageResult{
		Page:       ex.Page,
		Index:      ex.Index,
		Width:      b.Dx(),
		Height:     b.Dy(),
		OutputName: OutputName(ex.Page, ex.Index),
	}
	if err := ctx.Err(); err != nil {
		res.Error = err.Error()
		return res
	}
	out, err := p.cutter.CutoutImage(ctx, ex.Image)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.PNG = out.PNG
	return res
}
