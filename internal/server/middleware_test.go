package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORSMiddleware(t *testing.T) {
	s := &Server{corsOrigin: "https://app.example"}
	called := false
	handler := s.corsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		called = false
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodOptions, "/api/rem-bg", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.False(t, called)
		assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("request passes through", func(t *testing.T) {
		called = false
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodPost, "/api/rem-bg", nil))

		assert.True(t, called)
		assert.Equal(t, http.StatusTeapot, w.Code)
		assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Failed-Count")
	})
}

func TestResponseWriter_CapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	rw.WriteHeader(http.StatusNotFound)
	assert.Equal(t, http.StatusNotFound, rw.statusCode)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, _, err := rw.Hijack()
	assert.Error(t, err, "recorder cannot be hijacked")
}

func TestRecoverMiddleware(t *testing.T) {
	handler := recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{name: "remote addr", remoteAddr: "10.0.0.1:5555", want: "10.0.0.1"},
		{name: "remote addr without port", remoteAddr: "10.0.0.1", want: "10.0.0.1"},
		{name: "forwarded for list", remoteAddr: "10.0.0.1:1", headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"}, want: "1.2.3.4"},
		{name: "forwarded for single", remoteAddr: "10.0.0.1:1", headers: map[string]string{"X-Forwarded-For": " 1.2.3.4 "}, want: "1.2.3.4"},
		{name: "real ip", remoteAddr: "10.0.0.1:1", headers: map[string]string{"X-Real-IP": "9.9.9.9"}, want: "9.9.9.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewServerWithPipeline(nil, Config{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	// Generate at least one labelled sample.
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "cutout_http_requests_total")
}
