package segmenter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/cutout/internal/common"
	"github.com/MeKo-Tech/cutout/internal/models"
	"github.com/MeKo-Tech/cutout/internal/onnx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
)

func TestConfig_Validate(t *testing.T) {
	model := filepath.Join(t.TempDir(), "m.onnx")
	require.NoError(t, os.WriteFile(model, []byte("stub"), 0o600))

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty path", func(c *Config) { c.ModelPath = "" }, true},
		{"missing file", func(c *Config) { c.ModelPath = model + ".missing" }, true},
		{"negative size", func(c *Config) { c.TargetSize = -1 }, true},
		{"negative threads", func(c *Config) { c.NumThreads = -2 }, true},
		{"bad gpu", func(c *Config) {
			c.GPU.Enabled = true
			c.GPU.DeviceID = -1
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ModelPath = model
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_MissingModelIsModelError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = filepath.Join(t.TempDir(), "absent.onnx")

	_, err := New(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrModel)
}

func TestResolveTargetSize(t *testing.T) {
	tests := []struct {
		name       string
		configured int
		dims       ort.Shape
		want       int
		wantErr    bool
	}{
		{"fixed model", 0, ort.NewShape(1, 3, 320, 320), 320, false},
		{"fixed model agrees", 320, ort.NewShape(1, 3, 320, 320), 320, false},
		{"fixed model disagrees", 1024, ort.NewShape(1, 3, 320, 320), 0, true},
		{"non-square model", 0, ort.NewShape(1, 3, 320, 256), 0, true},
		{"dynamic uses config", 1024, ort.NewShape(1, 3, -1, -1), 1024, false},
		{"dynamic without config", 0, ort.NewShape(-1, 3, -1, -1), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveTargetSize(tt.configured, tt.dims)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestSegmenter_RealModel runs only when the default model and runtime are installed.
func TestSegmenter_RealModel(t *testing.T) {
	path, err := models.ResolveModelPath("", models.DefaultModel)
	require.NoError(t, err)
	if _, err := os.Stat(path); err != nil {
		t.Skip("model not available:", path)
	}

	cfg := DefaultConfig()
	cfg.ModelPath = path
	seg, err := New(cfg)
	if err != nil {
		t.Skip("onnx runtime not available:", err)
	}
	defer func() { _ = seg.Close() }()

	size := seg.TargetSize()
	require.Equal(t, 320, size)
	require.NoError(t, seg.Warmup(1))

	input, err := onnx.NewImageTensor(make([]float32, 3*size*size), 3, size, size)
	require.NoError(t, err)
	mask, err := seg.Predict(input)
	require.NoError(t, err)
	assert.Len(t, mask, size*size)

	info := seg.Info()
	assert.Equal(t, path, info.Path)
	assert.NotEmpty(t, info.OutputName)

	wrong, err := onnx.NewImageTensor(make([]float32, 3*16*16), 3, 16, 16)
	require.NoError(t, err)
	_, err = seg.Predict(wrong)
	assert.ErrorIs(t, err, common.ErrModel)

	require.NoError(t, seg.Close())
	_, err = seg.Predict(input)
	assert.ErrorIs(t, err, common.ErrModel)
}
