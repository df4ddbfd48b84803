package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/cutout/internal/common"
	"github.com/gorilla/websocket"
	"github.com/segmentio/ksuid"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingPeriod   = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// WebSocket response statuses.
const (
	wsStatusProcessing = "processing"
	wsStatusCompleted  = "completed"
	wsStatusError      = "error"
)

// WebSocketRequest is the JSON form of a request. Clients may instead send the
// raw image bytes as a binary frame.
type WebSocketRequest struct {
	Type     string `json:"type"` // "image"
	Image    []byte `json:"image,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// WebSocketResponse is a JSON status or error frame. A completed status frame
// is followed by one binary frame holding the PNG.
type WebSocketResponse struct {
	Type         string `json:"type"`
	Status       string `json:"status"`
	RequestID    string `json:"request_id,omitempty"`
	Filename     string `json:"filename,omitempty"`
	Bytes        int    `json:"bytes,omitempty"`
	Cached       bool   `json:"cached,omitempty"`
	ProcessingMs int64  `json:"processing_ms,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorType    string `json:"error_type,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return s.corsOrigin == "*" || origin == "" || origin == s.corsOrigin
		},
	}
}

// removeBackgroundWebSocketHandler handles GET /ws/rem-bg.
func (s *Server) removeBackgroundWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", getClientIP(r))
	s.handleWebSocketConnection(conn)
}

// handleWebSocketConnection serves requests until the client disconnects.
func (s *Server) handleWebSocketConnection(conn *websocket.Conn) {
	conn.SetReadLimit(s.maxUploadBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		switch messageType {
		case websocket.BinaryMessage:
			s.processWebSocketImage(conn, data, "")
		case websocket.TextMessage:
			s.handleWebSocketMessage(conn, data)
		}
	}
}

// handleWebSocketMessage processes a JSON request frame.
func (s *Server) handleWebSocketMessage(conn WebSocketConnWriter, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	switch req.Type {
	case "", "image":
		if len(req.Image) == 0 {
			s.sendWebSocketError(conn, "", "invalid_request", "No image data provided")
			return
		}
		s.processWebSocketImage(conn, req.Image, req.Filename)
	default:
		s.sendWebSocketError(conn, "", "invalid_request", "Unsupported request type: "+req.Type)
	}
}

// processWebSocketImage cuts out one image and answers with a status frame
// followed by the PNG.
func (s *Server) processWebSocketImage(conn WebSocketConnWriter, data []byte, filename string) {
	requestID := ksuid.New().String()
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "status",
		Status:    wsStatusProcessing,
		RequestID: requestID,
		Filename:  filename,
	})

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res, err := s.removeBackground(ctx, data, "websocket")
	if err != nil {
		errorType := "processing_error"
		if common.IsClientError(err) {
			errorType = "invalid_image"
		}
		s.sendWebSocketError(conn, requestID, errorType, err.Error())
		return
	}

	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:         "status",
		Status:       wsStatusCompleted,
		RequestID:    requestID,
		Filename:     filename,
		Bytes:        len(res.PNG),
		Cached:       res.Cached,
		ProcessingMs: res.Duration.Milliseconds(),
	})
	if err := conn.WriteMessage(websocket.BinaryMessage, res.PNG); err != nil {
		slog.Error("Failed to send WebSocket image", "request_id", requestID, "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "error",
		Status:    wsStatusError,
		RequestID: requestID,
		Error:     message,
		ErrorType: errorType,
	})
}
