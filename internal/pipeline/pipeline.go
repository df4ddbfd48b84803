package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/MeKo-Tech/cutout/internal/matte"
	"github.com/MeKo-Tech/cutout/internal/models"
	"github.com/MeKo-Tech/cutout/internal/onnx"
	"github.com/MeKo-Tech/cutout/internal/segmenter"
	"github.com/MeKo-Tech/cutout/internal/utils"
	"github.com/disintegration/imaging"
)

// Segmenter is the inference boundary: a [1,3,S,S] tensor in, S*S mask out.
type Segmenter interface {
	Predict(t onnx.Tensor) ([]float32, error)
	TargetSize() int
}

// Config holds configuration for the background removal pipeline.
type Config struct {
	ModelsDir        string
	Model            string               // Registry name, see models.Names
	ModelPath        string               // Overrides the registry file location
	TargetSize       int                  // 0 uses the model preset
	Normalization    *matte.Normalization // nil uses the model preset
	ResizeFilter     string               // linear, lanczos, catmullrom, box, nearest
	Refine           matte.RefineConfig
	Compression      string // default, speed, best, none
	MaxPixels        int    // Decode limit, 0 = unlimited
	NumThreads       int
	GPU              onnx.GPUConfig
	WarmupIterations int
	Parallel         ParallelConfig
}

// DefaultConfig returns the defaults for the silueta model.
func DefaultConfig() Config {
	return Config{
		ModelsDir:    models.GetModelsDir(""),
		Model:        models.DefaultModel,
		ResizeFilter: matte.DefaultResizeFilter,
		Refine:       matte.DefaultRefineConfig(),
		Compression:  "default",
		MaxPixels:    utils.DefaultMaxPixels,
		GPU:          onnx.DefaultGPUConfig(),
		Parallel:     DefaultParallelConfig(),
	}
}

// Validate checks the configuration without touching the filesystem.
func (c Config) Validate() error {
	if _, err := models.Lookup(c.Model); err != nil {
		return err
	}
	if c.TargetSize < 0 {
		return fmt.Errorf("target size must be >= 0, got %d", c.TargetSize)
	}
	if _, err := matte.ParseResizeFilter(c.ResizeFilter); err != nil {
		return err
	}
	if _, err := matte.ParseCompression(c.Compression); err != nil {
		return err
	}
	if err := c.Refine.Validate(); err != nil {
		return fmt.Errorf("refine: %w", err)
	}
	if err := c.GPU.Validate(); err != nil {
		return fmt.Errorf("gpu: %w", err)
	}
	if c.MaxPixels < 0 {
		return errors.New("max pixels must be >= 0")
	}
	return nil
}

// Info describes the loaded pipeline.
type Info struct {
	Model         string              `json:"model"`
	ModelPath     string              `json:"model_path"`
	TargetSize    int                 `json:"target_size"`
	Normalization matte.Normalization `json:"normalization"`
	ResizeFilter  string              `json:"resize_filter"`
	Refine        matte.RefineConfig  `json:"refine"`
}

// Pipeline removes backgrounds. It holds only read-only state after Build and is
// safe for concurrent use.
type Pipeline struct {
	cfg         Config
	seg         Segmenter
	owned       io.Closer
	modelPath   string
	size        int
	norm        matte.Normalization
	filter      imaging.ResampleFilter
	compression png.CompressionLevel
	fingerprint string
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg Config
	seg Segmenter
}

// NewBuilder creates a builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// NewBuilderFromConfig starts from an existing configuration.
func NewBuilderFromConfig(cfg Config) *Builder { return &Builder{cfg: cfg} }

// WithModelsDir sets the directory registry models are resolved in.
func (b *Builder) WithModelsDir(dir string) *Builder {
	if dir != "" {
		b.cfg.ModelsDir = dir
	}
	return b
}

// WithModel selects a registered model by name.
func (b *Builder) WithModel(name string) *Builder {
	if name != "" {
		b.cfg.Model = name
	}
	return b
}

// WithModelPath loads the model from an explicit file.
func (b *Builder) WithModelPath(path string) *Builder {
	b.cfg.ModelPath = path
	return b
}

// WithTargetSize overrides the model input side.
func (b *Builder) WithTargetSize(size int) *Builder {
	b.cfg.TargetSize = size
	return b
}

// WithNormalization overrides the preset normalization with mean/std values.
func (b *Builder) WithNormalization(n matte.Normalization) *Builder {
	b.cfg.Normalization = &n
	return b
}

// WithResizeFilter selects the letterbox resize filter.
func (b *Builder) WithResizeFilter(name string) *Builder {
	b.cfg.ResizeFilter = name
	return b
}

// WithRefine replaces the alpha refinement settings.
func (b *Builder) WithRefine(r matte.RefineConfig) *Builder {
	b.cfg.Refine = r
	return b
}

// WithCompression sets the PNG compression level name.
func (b *Builder) WithCompression(name string) *Builder {
	b.cfg.Compression = name
	return b
}

// WithThreads sets ONNX Runtime intra-op threads.
func (b *Builder) WithThreads(n int) *Builder {
	if n >= 0 {
		b.cfg.NumThreads = n
	}
	return b
}

// WithGPU toggles the CUDA execution provider.
func (b *Builder) WithGPU(enabled bool, deviceID int) *Builder {
	b.cfg.GPU.Enabled = enabled
	b.cfg.GPU.DeviceID = deviceID
	return b
}

// WithWarmupIterations runs n blank inferences after loading.
func (b *Builder) WithWarmupIterations(n int) *Builder {
	if n >= 0 {
		b.cfg.WarmupIterations = n
	}
	return b
}

// WithParallelWorkers sets the batch worker count.
func (b *Builder) WithParallelWorkers(n int) *Builder {
	if n > 0 {
		b.cfg.Parallel.MaxWorkers = n
	}
	return b
}

// WithProgressCallback attaches batch progress reporting.
func (b *Builder) WithProgressCallback(cb ProgressCallback) *Builder {
	b.cfg.Parallel.ProgressCallback = cb
	return b
}

// WithSegmenter injects an already constructed model. The pipeline does not
// close injected segmenters.
func (b *Builder) WithSegmenter(s Segmenter) *Builder {
	b.seg = s
	return b
}

// Config returns the current configuration.
func (b *Builder) Config() Config { return b.cfg }

// Build validates the configuration, loads the model and returns the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	cfg := b.cfg
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	preset, err := models.Lookup(cfg.Model)
	if err != nil {
		return nil, err
	}

	modelPath := cfg.ModelPath
	if modelPath == "" {
		if modelPath, err = models.ResolveModelPath(cfg.ModelsDir, cfg.Model); err != nil {
			return nil, err
		}
	}

	seg := b.seg
	var owned io.Closer
	if seg == nil {
		size := cfg.TargetSize
		if size == 0 {
			size = preset.TargetSize
		}
		s, err := segmenter.New(segmenter.Config{
			ModelPath:  modelPath,
			TargetSize: size,
			NumThreads: cfg.NumThreads,
			GPU:        cfg.GPU,
		})
		if err != nil {
			return nil, err
		}
		if err := s.Warmup(cfg.WarmupIterations); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("warmup: %w", err)
		}
		seg, owned = s, s
	}

	size := seg.TargetSize()
	if cfg.TargetSize > 0 && cfg.TargetSize != size {
		closeQuietly(owned)
		return nil, fmt.Errorf("target size %d does not match segmenter input %d", cfg.TargetSize, size)
	}

	norm := matte.Normalization{}
	if cfg.Normalization != nil {
		norm = *cfg.Normalization
	} else if norm, err = matte.FromMeanStd(preset.Mean, preset.Std); err != nil {
		closeQuietly(owned)
		return nil, err
	}

	filter, _ := matte.ParseResizeFilter(cfg.ResizeFilter)
	level, _ := matte.ParseCompression(cfg.Compression)

	p := &Pipeline{
		cfg:         cfg,
		seg:         seg,
		owned:       owned,
		modelPath:   modelPath,
		size:        size,
		norm:        norm,
		filter:      filter,
		compression: level,
	}
	p.fingerprint = p.computeFingerprint()

	slog.Debug("Pipeline ready",
		"model", cfg.Model,
		"model_path", modelPath,
		"target_size", size,
		"resize_filter", cfg.ResizeFilter,
		"refine", cfg.Refine.Enabled)
	return p, nil
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

// Close releases the segmenter if the pipeline created it.
func (p *Pipeline) Close() error {
	if p == nil || p.owned == nil {
		return nil
	}
	err := p.owned.Close()
	p.owned = nil
	return err
}

// TargetSize returns the model input side.
func (p *Pipeline) TargetSize() int { return p.size }

// Info describes the loaded model and processing settings.
func (p *Pipeline) Info() Info {
	return Info{
		Model:         p.cfg.Model,
		ModelPath:     p.modelPath,
		TargetSize:    p.size,
		Normalization: p.norm,
		ResizeFilter:  p.cfg.ResizeFilter,
		Refine:        p.cfg.Refine,
	}
}

// Fingerprint identifies everything that influences the output bytes. Two
// pipelines with equal fingerprints produce identical PNGs for the same input.
func (p *Pipeline) Fingerprint() string { return p.fingerprint }

func (p *Pipeline) computeFingerprint() string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%s|%s|%d|%v|%s|%+v|%d",
		p.cfg.Model, filepath.Base(p.modelPath), p.size, p.norm,
		p.cfg.ResizeFilter, p.cfg.Refine, p.compression)
	return hex.EncodeToString(h.Sum(nil))[:16]
}
