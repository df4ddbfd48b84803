package batch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, cfg *Config) *pipeline.Pipeline {
	t.Helper()
	pl, err := newBuilder(cfg).WithSegmenter(testutil.NewDiscSegmenter(32, 0.6)).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = pl.Close() })
	return pl
}

func quietConfig(outDir string) *Config {
	cfg := DefaultConfig()
	cfg.OutputDir = outDir
	cfg.ShowProgress = false
	cfg.Workers = 2
	return cfg
}

func TestRun_WritesCutouts(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "cutouts")
	testutil.SaveImage(t, testutil.SubjectImage(60, 40), filepath.Join(in, "portrait.jpg"))
	testutil.SaveImage(t, testutil.SubjectImage(30, 30), filepath.Join(in, "square.png"))

	cfg := quietConfig(out)
	files, err := discoverImageFiles([]string{in}, false, nil, nil)
	require.NoError(t, err)

	res, err := Run(context.Background(), newTestPipeline(t, cfg), files, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded)
	assert.Zero(t, res.Failed)
	assert.Equal(t, 2, res.WorkerCount)

	data, err := os.ReadFile(filepath.Join(out, "portrait_nobg.png"))
	require.NoError(t, err)
	img := testutil.DecodePNG(t, data)
	assert.Equal(t, 60, img.Bounds().Dx())
	assert.Equal(t, 40, img.Bounds().Dy())

	transparent, opaque, _ := testutil.AlphaHistogram(img)
	assert.Positive(t, transparent)
	assert.Positive(t, opaque)
	assert.FileExists(t, filepath.Join(out, "square_nobg.png"))
}

func TestRun_PartialFailure(t *testing.T) {
	in := t.TempDir()
	testutil.SaveImage(t, testutil.SubjectImage(20, 20), filepath.Join(in, "good.png"))
	require.NoError(t, os.WriteFile(filepath.Join(in, "broken.png"), []byte("not an image"), 0o600))

	cfg := quietConfig(t.TempDir())
	files, err := discoverImageFiles([]string{in}, false, nil, nil)
	require.NoError(t, err)

	res, err := Run(context.Background(), newTestPipeline(t, cfg), files, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)

	failed := res.Files[0]
	assert.Equal(t, filepath.Join(in, "broken.png"), failed.Input)
	assert.Contains(t, failed.Error, "InvalidImage")
}

func TestRun_AllFailed(t *testing.T) {
	in := t.TempDir()
	bad := filepath.Join(in, "broken.png")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o600))

	cfg := quietConfig(t.TempDir())
	res, err := Run(context.Background(), newTestPipeline(t, cfg), []string{bad}, cfg)
	require.ErrorIs(t, err, pipeline.ErrNoImagesProcessed)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Failed)
}

func TestRun_SkipsExistingOutputs(t *testing.T) {
	in := t.TempDir()
	src := filepath.Join(in, "a.png")
	testutil.SaveImage(t, testutil.SubjectImage(16, 16), src)

	cfg := quietConfig("")
	pl := newTestPipeline(t, cfg)

	_, err := Run(context.Background(), pl, []string{src}, cfg)
	require.NoError(t, err)

	res, err := Run(context.Background(), pl, []string{src}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Succeeded)

	cfg.Overwrite = true
	res, err = Run(context.Background(), pl, []string{src}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
}

func TestRun_ReportsProgress(t *testing.T) {
	in := t.TempDir()
	var files []string
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		p := filepath.Join(in, name)
		testutil.SaveImage(t, testutil.SubjectImage(12, 12), p)
		files = append(files, p)
	}

	var buf bytes.Buffer
	cfg := quietConfig(t.TempDir())
	cfg.Progress = pipeline.NewConsoleProgressCallback(&buf, "Cutting: ")

	_, err := Run(context.Background(), newTestPipeline(t, cfg), files, cfg)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Cutting: ")
	assert.Contains(t, buf.String(), "3/3")
}

func TestRun_NoFiles(t *testing.T) {
	_, err := Run(context.Background(), &stubRemover{}, nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestProcessBatch_NothingDiscovered(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("#"), 0o600))

	_, err := ProcessBatch(context.Background(), []string{dir}, DefaultConfig())
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestProcessBatch_MissingModel(t *testing.T) {
	dir := t.TempDir()
	testutil.SaveImage(t, testutil.SubjectImage(8, 8), filepath.Join(dir, "a.png"))

	cfg := DefaultConfig()
	cfg.Pipeline.ModelsDir = t.TempDir()
	_, err := ProcessBatch(context.Background(), []string{dir}, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build pipeline")
}
