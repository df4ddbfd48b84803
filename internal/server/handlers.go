package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/cutout/internal/common"
	"github.com/MeKo-Tech/cutout/internal/models"
	"github.com/MeKo-Tech/cutout/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	v, _, _ := version.Info()
	response := HealthResponse{
		Status:  "healthy",
		Version: v,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	if s.pipeline != nil {
		response.Model = s.pipeline.Info().Model
	}

	writeJSON(w, http.StatusOK, response)
}

// modelsHandler returns information about available models.
func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := ModelsResponse{}
	active := ""
	if s.pipeline != nil {
		info := s.pipeline.Info()
		response.Active = &info
		active = info.Model
	}

	for _, preset := range models.All() {
		path, _ := models.ResolveModelPath(s.modelsDir, preset.Name)
		response.Models = append(response.Models, ModelInfo{
			Name:        preset.Name,
			Path:        path,
			TargetSize:  preset.TargetSize,
			Description: preset.Description,
			Available:   models.Available(s.modelsDir, preset.Name),
			Active:      preset.Name == active,
		})
	}
	response.Count = len(response.Models)

	writeJSON(w, http.StatusOK, response)
}

// statusForError maps a processing error to its HTTP status.
func statusForError(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeProcessingError reports a pipeline failure. Server-side details are
// logged, not returned.
func (s *Server) writeProcessingError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	kind := common.KindOf(err).String()

	message := err.Error()
	switch status {
	case http.StatusInternalServerError:
		slog.Error("Background removal failed", "kind", kind, "error", err)
		message = "Background removal failed"
	case http.StatusGatewayTimeout:
		message = "Processing timed out"
	}

	writeJSON(w, status, ErrorResponse{Success: false, Error: message, Kind: kind})
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone, nothing left to report to the client.
		slog.Error("Failed to encode response", "error", err)
	}
}
