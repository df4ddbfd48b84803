package server

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/MeKo-Tech/cutout/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var zipNamePattern = regexp.MustCompile(`^attachment; filename="processed_images_[0-9A-Za-z]{27}\.zip"$`)

func TestBatchHandler_Success(t *testing.T) {
	server := newTestServer(t, testutil.NewDiscSegmenter(32, 0.6), Config{BatchWorkers: 2})

	uploads := []upload{
		pngUpload(t, imagesField, 40, 30),
		pngUpload(t, imagesField, 20, 20),
		pngUpload(t, imagesField, 33, 47),
	}
	w := httptest.NewRecorder()
	server.batchRemoveBackgroundHandler(w, newUploadRequest(t, "/api/batch-rem-bg", uploads, nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Regexp(t, zipNamePattern, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "0", w.Header().Get("X-Failed-Count"))
	assert.Equal(t, "3", w.Header().Get("X-Processed-Count"))

	files := readZip(t, w.Body.Bytes())
	require.Len(t, files, 3)
	for name, dims := range map[string][2]int{
		"processed_image_1.png": {40, 30},
		"processed_image_2.png": {20, 20},
		"processed_image_3.png": {33, 47},
	} {
		require.Contains(t, files, name)
		img := testutil.DecodePNG(t, files[name])
		assert.Equal(t, dims[0], img.Bounds().Dx(), name)
		assert.Equal(t, dims[1], img.Bounds().Dy(), name)
	}
}

func TestBatchHandler_PartialFailureNumbersSuccessesOnly(t *testing.T) {
	server := newTestServer(t, testutil.NewUniformSegmenter(16, 1), Config{BatchWorkers: 1})

	uploads := []upload{
		pngUpload(t, imagesField, 10, 10),
		{field: imagesField, filename: "broken.png", contentType: "image/png", data: []byte("garbage")},
		{field: imagesField, filename: "anim.gif", contentType: "image/gif", data: []byte("GIF89a")},
		pngUpload(t, imagesField, 14, 12),
	}
	w := httptest.NewRecorder()
	server.batchRemoveBackgroundHandler(w, newUploadRequest(t, "/api/batch-rem-bg", uploads, nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-Failed-Count"))
	assert.Equal(t, "2", w.Header().Get("X-Processed-Count"))

	files := readZip(t, w.Body.Bytes())
	require.Len(t, files, 2)
	assert.Equal(t, 10, testutil.DecodePNG(t, files["processed_image_1.png"]).Bounds().Dx())
	assert.Equal(t, 14, testutil.DecodePNG(t, files["processed_image_2.png"]).Bounds().Dx())
}

func TestBatchHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		seg        *testutil.FakeSegmenter
		uploads    func(t *testing.T) []upload
		cfg        Config
		wantStatus int
		wantError  string
	}{
		{
			name:       "no images field",
			seg:        testutil.NewUniformSegmenter(16, 1),
			uploads:    func(t *testing.T) []upload { return []upload{pngUpload(t, imageField, 10, 10)} },
			wantStatus: http.StatusBadRequest,
			wantError:  msgNoImageFile,
		},
		{
			name: "only unsupported types",
			seg:  testutil.NewUniformSegmenter(16, 1),
			uploads: func(*testing.T) []upload {
				return []upload{{field: imagesField, filename: "a.txt", contentType: "text/plain", data: []byte("hi")}}
			},
			wantStatus: http.StatusBadRequest,
			wantError:  msgNoneProcessed,
		},
		{
			name: "every item fails",
			seg:  testutil.NewFailingSegmenter(16, testutil.ErrFakeInference),
			uploads: func(t *testing.T) []upload {
				return []upload{pngUpload(t, imagesField, 10, 10), pngUpload(t, imagesField, 12, 12)}
			},
			wantStatus: http.StatusBadRequest,
			wantError:  msgNoneProcessed,
		},
		{
			name: "too many images",
			seg:  testutil.NewUniformSegmenter(16, 1),
			uploads: func(t *testing.T) []upload {
				return []upload{pngUpload(t, imagesField, 5, 5), pngUpload(t, imagesField, 5, 5), pngUpload(t, imagesField, 5, 5)}
			},
			cfg:        Config{MaxBatchItems: 2},
			wantStatus: http.StatusBadRequest,
			wantError:  "Too many images: 3 (max 2)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, tt.seg, tt.cfg)
			w := httptest.NewRecorder()
			server.batchRemoveBackgroundHandler(w, newUploadRequest(t, "/api/batch-rem-bg", tt.uploads(t), nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantError)
		})
	}
}

func TestBatchHandler_MethodNotAllowed(t *testing.T) {
	server := newTestServer(t, testutil.NewUniformSegmenter(16, 1), Config{})
	w := httptest.NewRecorder()
	server.batchRemoveBackgroundHandler(w, httptest.NewRequest(http.MethodGet, "/api/batch-rem-bg", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestBuildZip(t *testing.T) {
	archive, err := buildZip([]zipEntry{
		{Name: "a.png", Data: []byte("first")},
		{Name: "b.png", Data: []byte("second")},
	})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "a.png", zr.File[0].Name)
	assert.Equal(t, zip.Store, zr.File[0].Method)
	assert.Equal(t, uint64(5), zr.File[0].UncompressedSize64)

	empty, err := buildZip(nil)
	require.NoError(t, err)
	assert.NotEmpty(t, empty)
}
