// Package segmenter runs a foreground segmentation model: a [1,3,S,S] tensor in,
// an S*S foreground probability mask out.
package segmenter

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/cutout/internal/common"
	"github.com/MeKo-Tech/cutout/internal/onnx"
	ort "github.com/yalue/onnxruntime_go"
)

// ModelInfo describes the loaded model.
type ModelInfo struct {
	Path        string
	InputName   string
	OutputName  string
	InputShape  []int64
	OutputShape []int64
	TargetSize  int
	GPU         bool
}

// Segmenter is the process-wide model handle. It is read-only after New and safe
// for concurrent Predict calls.
type Segmenter struct {
	config     Config
	session    *ort.DynamicAdvancedSession
	inputInfo  ort.InputOutputInfo
	outputInfo ort.InputOutputInfo
	size       int
	mu         sync.RWMutex
}

// New loads the model and creates its inference session.
func New(cfg Config) (*Segmenter, error) {
	if err := cfg.validate(); err != nil {
		return nil, common.ModelFailure("load model", err)
	}

	slog.Debug("Initializing segmenter",
		"model_path", cfg.ModelPath,
		"gpu_enabled", cfg.GPU.Enabled,
		"num_threads", cfg.NumThreads)

	if err := onnx.InitRuntime(cfg.GPU.Enabled); err != nil {
		return nil, common.ModelFailure("init runtime", err)
	}

	in, out, err := readModelInfo(cfg.ModelPath)
	if err != nil {
		return nil, common.ModelFailure("read model info", err)
	}

	size, err := resolveTargetSize(cfg.TargetSize, in.Dimensions)
	if err != nil {
		return nil, common.ModelFailure("resolve target size", err)
	}

	session, err := createSession(cfg, in, out)
	if err != nil {
		return nil, common.ModelFailure("create session", err)
	}

	cfg.TargetSize = size
	s := &Segmenter{
		config:     cfg,
		session:    session,
		inputInfo:  in,
		outputInfo: out,
		size:       size,
	}

	slog.Debug("Segmenter initialized", "input", in.Name, "output", out.Name, "target_size", size)
	return s, nil
}

// TargetSize is the square input side length S.
func (s *Segmenter) TargetSize() int {
	return s.size
}

// Info returns a copy of the model description.
func (s *Segmenter) Info() ModelInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ModelInfo{
		Path:        s.config.ModelPath,
		InputName:   s.inputInfo.Name,
		OutputName:  s.outputInfo.Name,
		InputShape:  append([]int64(nil), s.inputInfo.Dimensions...),
		OutputShape: append([]int64(nil), s.outputInfo.Dimensions...),
		TargetSize:  s.size,
		GPU:         s.config.GPU.Enabled,
	}
}

// Predict runs one inference and returns the S*S mask in row-major order.
// The returned slice is owned by the caller.
func (s *Segmenter) Predict(t onnx.Tensor) ([]float32, error) {
	if err := onnx.VerifySquareInput(t, s.size); err != nil {
		return nil, common.ModelFailure("predict", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, common.ModelFailure("predict", errors.New("segmenter is closed"))
	}
	return s.run(t)
}

func (s *Segmenter) run(t onnx.Tensor) ([]float32, error) {
	input, err := ort.NewTensor(ort.NewShape(t.Shape...), t.Data)
	if err != nil {
		return nil, common.ModelFailure("create input tensor", err)
	}
	defer func() {
		if err := input.Destroy(); err != nil {
			slog.Warn("Failed to destroy input tensor", "error", err)
		}
	}()

	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, common.ModelFailure("run inference", err)
	}
	defer func() {
		if outputs[0] != nil {
			if err := outputs[0].Destroy(); err != nil {
				slog.Warn("Failed to destroy output tensor", "error", err)
			}
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, common.ModelFailure("run inference", fmt.Errorf("unexpected output type %T", outputs[0]))
	}
	if err := onnx.VerifyMaskShape(out.GetShape(), s.size); err != nil {
		return nil, common.ModelFailure("validate output", err)
	}

	data := out.GetData()
	if len(data) != s.size*s.size {
		return nil, common.ModelFailure("validate output",
			fmt.Errorf("output has %d values, want %d", len(data), s.size*s.size))
	}
	mask := make([]float32, len(data))
	copy(mask, data)
	return mask, nil
}

// Warmup runs iterations forward passes on a black input to pay first-run costs
// before serving traffic.
func (s *Segmenter) Warmup(iterations int) error {
	if iterations <= 0 {
		return nil
	}
	n := s.size
	t, err := onnx.NewImageTensor(make([]float32, 3*n*n), 3, n, n)
	if err != nil {
		return err
	}
	for i := range iterations {
		if _, err := s.Predict(t); err != nil {
			return fmt.Errorf("warmup iteration %d: %w", i, err)
		}
	}
	slog.Debug("Segmenter warmed up", "iterations", iterations)
	return nil
}

// Close releases the session. The runtime environment stays alive until
// onnx.ShutdownRuntime at process exit.
func (s *Segmenter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}
