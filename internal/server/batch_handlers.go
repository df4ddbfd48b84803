package server

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/utils"
	"github.com/segmentio/ksuid"
)

// zipEntry is one file of a response archive.
type zipEntry struct {
	Name string
	Data []byte
}

// batchRemoveBackgroundHandler handles POST /api/batch-rem-bg. Every "images"
// upload is processed independently; the successful cutouts are returned as a
// ZIP archive numbered in upload order.
func (s *Server) batchRemoveBackgroundHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.pipeline == nil {
		s.writeErrorResponse(w, "Pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	inputs, skipped, err := s.parseBatchRequest(w, r)
	if err != nil {
		removalRequestsTotal.WithLabelValues("batch", "error").Inc()
		return // error already written
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	res, err := s.pipeline.ProcessBatch(ctx, inputs, pipeline.ParallelConfig{MaxWorkers: s.batchWorkers})
	if res != nil {
		batchItemsTotal.WithLabelValues("succeeded").Add(float64(res.Succeeded))
		batchItemsTotal.WithLabelValues("failed").Add(float64(res.Failed))
	}
	if err != nil {
		removalRequestsTotal.WithLabelValues("batch", "error").Inc()
		if errors.Is(err, pipeline.ErrNoImagesProcessed) {
			s.writeErrorResponse(w, msgNoneProcessed, http.StatusBadRequest)
			return
		}
		s.writeProcessingError(w, err)
		return
	}

	entries := make([]zipEntry, 0, res.Succeeded)
	for _, item := range res.Successful() {
		observeOutput("batch_item", item.Output)
		entries = append(entries, zipEntry{
			Name: fmt.Sprintf("processed_image_%d.png", len(entries)+1),
			Data: item.Output.PNG,
		})
	}
	for _, item := range res.Failures() {
		slog.Warn("Batch item failed", "index", item.Index, "error", item.Err)
	}

	archive, err := buildZip(entries)
	if err != nil {
		s.writeErrorResponse(w, "Failed to build archive", http.StatusInternalServerError)
		return
	}

	removalRequestsTotal.WithLabelValues("batch", "success").Inc()
	removalDuration.WithLabelValues("batch").Observe(res.Duration.Seconds())

	writeZip(w, "processed_images_"+ksuid.New().String()+".zip", archive)
	w.Header().Set("X-Failed-Count", strconv.Itoa(res.Failed+skipped))
	w.Header().Set("X-Processed-Count", strconv.Itoa(res.Succeeded))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

// parseBatchRequest reads every "images" upload. Parts with an unsupported
// content type are skipped and counted.
func (s *Server) parseBatchRequest(w http.ResponseWriter, r *http.Request) ([][]byte, int, error) {
	if err := s.parseUpload(w, r); err != nil {
		return nil, 0, err
	}

	headers := r.MultipartForm.File[imagesField]
	if len(headers) == 0 {
		s.writeErrorResponse(w, msgNoImageFile, http.StatusBadRequest)
		return nil, 0, errNoImageFile
	}
	if len(headers) > s.maxBatchItems {
		msg := fmt.Sprintf("Too many images: %d (max %d)", len(headers), s.maxBatchItems)
		s.writeErrorResponse(w, msg, http.StatusBadRequest)
		return nil, 0, errors.New(msg)
	}

	inputs := make([][]byte, 0, len(headers))
	skipped := 0
	for _, header := range headers {
		if ct := header.Header.Get("Content-Type"); ct != "" && !utils.IsSupportedContentType(ct) {
			slog.Debug("Skipping unsupported upload", "filename", header.Filename, "content_type", ct)
			batchItemsTotal.WithLabelValues("skipped").Inc()
			skipped++
			continue
		}

		file, err := header.Open()
		if err != nil {
			s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
			return nil, 0, err
		}
		data, err := readUpload(file, header)
		_ = file.Close()
		if err != nil {
			s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
			return nil, 0, err
		}
		inputs = append(inputs, data)
	}

	if len(inputs) == 0 {
		s.writeErrorResponse(w, msgNoneProcessed, http.StatusBadRequest)
		return nil, skipped, errors.New("no supported images")
	}
	return inputs, skipped, nil
}

// buildZip stores entries uncompressed.
func buildZip(entries []zipEntry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	now := time.Now()
	for _, e := range entries {
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Store,
			Modified: now,
		})
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(f, bytes.NewReader(e.Data)); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeZip sets the archive headers. The caller writes the status and body.
func writeZip(w http.ResponseWriter, filename string, archive []byte) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", utils.SanitizeFilename(filename)))
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
}
