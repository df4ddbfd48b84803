package server

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/cutout/internal/pdf"
)

const pdfField = "pdf"

// pdfRemoveBackgroundHandler handles POST /api/pdf-rem-bg. The embedded images
// of the selected pages are cut out and returned as a ZIP archive, or as a JSON
// summary with format=json.
func (s *Server) pdfRemoveBackgroundHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.pipeline == nil {
		s.writeErrorResponse(w, "Pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	if err := s.parseUpload(w, r); err != nil {
		removalRequestsTotal.WithLabelValues("pdf", "error").Inc()
		return
	}

	file, header, err := r.FormFile(pdfField)
	if err != nil {
		s.writeErrorResponse(w, "No PDF file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := readUpload(file, header)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read PDF data", http.StatusInternalServerError)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	proc := pdf.NewProcessorWithConfig(s.pipeline, pdf.ProcessorConfig{
		MaxWorkers: s.batchWorkers,
		Credentials: &pdf.PasswordCredentials{
			UserPassword:  r.FormValue("password"),
			OwnerPassword: r.FormValue("owner_password"),
		},
	})
	doc, err := proc.ProcessBytes(ctx, data, header.Filename, r.FormValue("pages"))
	if err != nil {
		removalRequestsTotal.WithLabelValues("pdf", "error").Inc()
		s.writePDFError(w, err)
		return
	}
	removalRequestsTotal.WithLabelValues("pdf", "success").Inc()
	removalDuration.WithLabelValues("pdf").Observe(float64(doc.Processing.TotalTimeMs) / 1000)

	if formatOf(r) == "json" {
		writeJSON(w, http.StatusOK, doc)
		return
	}

	if doc.Succeeded == 0 {
		s.writeErrorResponse(w, msgNoneProcessed, http.StatusBadRequest)
		return
	}

	entries := make([]zipEntry, 0, doc.Succeeded)
	for _, img := range doc.Images {
		if img.OK() {
			entries = append(entries, zipEntry{Name: img.OutputName, Data: img.PNG})
		}
	}
	archive, err := buildZip(entries)
	if err != nil {
		s.writeErrorResponse(w, "Failed to build archive", http.StatusInternalServerError)
		return
	}

	stem := strings.TrimSuffix(doc.Filename, filepath.Ext(doc.Filename))
	writeZip(w, stem+"_cutouts.zip", archive)
	w.Header().Set("X-Failed-Count", strconv.Itoa(doc.Failed))
	w.Header().Set("X-Processed-Count", strconv.Itoa(doc.Succeeded))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (s *Server) writePDFError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		s.writeErrorResponse(w, "Processing timed out", http.StatusGatewayTimeout)
	case errors.Is(err, pdf.ErrNoImages):
		s.writeErrorResponse(w, "No images found in PDF", http.StatusUnprocessableEntity)
	case pdf.IsPageRangeError(err):
		s.writeErrorResponse(w, "Invalid page selection: "+err.Error(), http.StatusBadRequest)
	case pdf.IsPasswordError(err):
		s.writeErrorResponse(w, "PDF is password protected", http.StatusUnauthorized)
	default:
		s.writeErrorResponse(w, "Failed to process PDF: "+err.Error(), http.StatusBadRequest)
	}
}

// formatOf reads the response format from the form or the query string.
func formatOf(r *http.Request) string {
	if f := r.FormValue("format"); f != "" {
		return strings.ToLower(f)
	}
	return strings.ToLower(r.URL.Query().Get("format"))
}
