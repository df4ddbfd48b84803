package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/cutout/internal/cache"
	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/utils"
)

const (
	imageField  = "image"
	imagesField = "images"
)

// Client-facing messages of the upload endpoints.
const (
	msgNoImageFile   = "No image file found"
	msgNoneProcessed = "No images were successfully processed"
)

var errNoImageFile = errors.New("no image file found")

// cutout is the outcome of a single-image request.
type cutout struct {
	PNG      []byte
	Cached   bool
	Duration time.Duration
}

// removeBackgroundHandler handles POST /api/rem-bg.
func (s *Server) removeBackgroundHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := s.parseImageRequest(w, r)
	if err != nil {
		removalRequestsTotal.WithLabelValues("image", "error").Inc()
		return // error already written
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	res, err := s.removeBackground(ctx, data, "image")
	if err != nil {
		s.writeProcessingError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(res.PNG)))
	w.Header().Set("X-Processing-Time-Ms", strconv.FormatInt(res.Duration.Milliseconds(), 10))
	if s.cache != nil {
		w.Header().Set("X-Cache", cacheStatus(res.Cached))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.PNG); err != nil {
		slog.Debug("Failed to write PNG response", "error", err)
	}
}

// parseImageRequest reads the "image" upload of a multipart request.
func (s *Server) parseImageRequest(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if err := s.parseUpload(w, r); err != nil {
		return nil, err
	}

	file, header, err := r.FormFile(imageField)
	if err != nil {
		s.writeErrorResponse(w, msgNoImageFile, http.StatusBadRequest)
		return nil, errNoImageFile
	}
	defer func() { _ = file.Close() }()

	if ct := header.Header.Get("Content-Type"); ct != "" && !utils.IsSupportedContentType(ct) {
		msg := "Unsupported file type: " + ct
		s.writeErrorResponse(w, msg, http.StatusBadRequest)
		return nil, errors.New(msg)
	}

	data, err := readUpload(file, header)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return nil, err
	}
	return data, nil
}

// parseUpload applies the body limit and parses the multipart form.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		s.handleFormParseError(w, err)
		return err
	}
	return nil
}

func (s *Server) handleFormParseError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
		s.writeErrorResponse(w, fmt.Sprintf("File too large (limit %d MB)", s.maxUploadBytes>>20), http.StatusRequestEntityTooLarge)
		return
	}
	s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
}

func readUpload(file multipart.File, header *multipart.FileHeader) ([]byte, error) {
	uploadSizeBytes.Observe(float64(header.Size))
	return io.ReadAll(file)
}

// removeBackground runs one image through the pipeline, consulting the result
// cache first when one is configured.
func (s *Server) removeBackground(ctx context.Context, data []byte, kind string) (*cutout, error) {
	if s.pipeline == nil {
		return nil, errors.New("pipeline not initialized")
	}

	start := time.Now()
	var key string
	if s.cache != nil {
		key = cache.Key(s.pipeline.Fingerprint(), data)
		png, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			cacheLookupsTotal.WithLabelValues("error").Inc()
			slog.Warn("Cache lookup failed", "error", err)
		case ok:
			cacheLookupsTotal.WithLabelValues("hit").Inc()
			removalRequestsTotal.WithLabelValues(kind, "success").Inc()
			return &cutout{PNG: png, Cached: true, Duration: time.Since(start)}, nil
		default:
			cacheLookupsTotal.WithLabelValues("miss").Inc()
		}
	}

	out, err := s.pipeline.Process(ctx, data)
	if err != nil {
		removalRequestsTotal.WithLabelValues(kind, "error").Inc()
		return nil, err
	}
	observeOutput(kind, out)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, out.PNG); err != nil {
			slog.Warn("Cache store failed", "error", err)
		}
	}
	return &cutout{PNG: out.PNG, Duration: time.Since(start)}, nil
}

// observeOutput records a successful cutout and its stage timings.
func observeOutput(kind string, out *pipeline.Output) {
	removalRequestsTotal.WithLabelValues(kind, "success").Inc()
	removalDuration.WithLabelValues(kind).Observe(out.Timings.Total().Seconds())
	for _, stage := range out.Timings.Stages() {
		stageDuration.WithLabelValues(stage).Observe(out.Timings.Get(stage).Seconds())
	}
}

func cacheStatus(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}
