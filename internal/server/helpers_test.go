package server

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/testutil"
	"github.com/stretchr/testify/require"
)

type upload struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func pngUpload(t *testing.T, field string, w, h int) upload {
	t.Helper()
	return upload{
		field:       field,
		filename:    fmt.Sprintf("img_%dx%d.png", w, h),
		contentType: "image/png",
		data:        testutil.EncodePNG(t, testutil.SubjectImage(w, h)),
	}
}

func newTestServer(t *testing.T, seg pipeline.Segmenter, cfg Config) *Server {
	t.Helper()
	pl, err := pipeline.NewBuilder().WithSegmenter(seg).Build()
	require.NoError(t, err)
	s := NewServerWithPipeline(pl, cfg)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func multipartBody(t *testing.T, uploads []upload, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, u := range uploads {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, u.field, u.filename))
		if u.contentType != "" {
			h.Set("Content-Type", u.contentType)
		}
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(u.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func newUploadRequest(t *testing.T, path string, uploads []upload, fields map[string]string) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, uploads, fields)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	return req
}

func readZip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		require.Equal(t, zip.Store, f.Method, f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		out[f.Name] = b
	}
	return out
}
