// Package support holds the godog step definitions for the HTTP scenarios.
package support

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/cutout/internal/testutil"
	"github.com/gorilla/websocket"
)

var errServerNotRunning = errors.New("server is not running")

// TestContext holds the state of one scenario.
type TestContext struct {
	t testing.TB

	Server    *httptest.Server
	Segmenter *testutil.FakeSegmenter

	// Last HTTP response
	LastStatus  int
	LastHeaders http.Header
	LastBody    []byte

	// WebSocket frames received after the last send
	ws     *websocket.Conn
	Frames []Frame

	closers []func() error
}

// Frame is one WebSocket message.
type Frame struct {
	Binary bool
	Data   []byte
}

// NewTestContext creates an empty scenario context.
func NewTestContext(t testing.TB) *TestContext {
	return &TestContext{t: t}
}

// Cleanup closes the WebSocket, stops the server and releases the pipeline.
func (tc *TestContext) Cleanup() {
	if tc.ws != nil {
		_ = tc.ws.Close()
		tc.ws = nil
	}
	if tc.Server != nil {
		tc.Server.Close()
		tc.Server = nil
	}
	for _, c := range tc.closers {
		_ = c()
	}
	tc.closers = nil
}
