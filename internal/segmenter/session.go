package segmenter

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/cutout/internal/onnx"
	ort "github.com/yalue/onnxruntime_go"
)

// readModelInfo picks the first input and the first output. U2-Net style exports
// carry several side outputs; the first is the fused mask.
func readModelInfo(modelPath string) (ort.InputOutputInfo, ort.InputOutputInfo, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return ort.InputOutputInfo{}, ort.InputOutputInfo{},
			fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) != 1 {
		return ort.InputOutputInfo{}, ort.InputOutputInfo{}, fmt.Errorf("expected 1 input, got %d", len(inputs))
	}
	if len(outputs) == 0 {
		return ort.InputOutputInfo{}, ort.InputOutputInfo{}, errors.New("model has no outputs")
	}
	if len(inputs[0].Dimensions) != 4 {
		return ort.InputOutputInfo{}, ort.InputOutputInfo{},
			fmt.Errorf("expected 4D input tensor, got %dD", len(inputs[0].Dimensions))
	}
	return inputs[0], outputs[0], nil
}

// resolveTargetSize reconciles the configured size with the model's declared input.
// Dynamic dimensions are reported as values <= 0.
func resolveTargetSize(configured int, dims ort.Shape) (int, error) {
	h, w := dims[2], dims[3]
	fixed := h > 0 && w > 0

	switch {
	case fixed && h != w:
		return 0, fmt.Errorf("model input is %dx%d, only square inputs are supported", h, w)
	case fixed && configured > 0 && int64(configured) != h:
		return 0, fmt.Errorf("configured target size %d does not match model input %d", configured, h)
	case fixed:
		return int(h), nil
	case configured > 0:
		return configured, nil
	default:
		return 0, errors.New("model input size is dynamic and no target size is configured")
	}
}

func createSession(cfg Config, in, out ort.InputOutputInfo) (*ort.DynamicAdvancedSession, error) {
	opts, err := onnx.NewSessionOptions(onnx.SessionConfig{NumThreads: cfg.NumThreads, GPU: cfg.GPU})
	if err != nil {
		return nil, err
	}
	defer func() { _ = opts.Destroy() }()

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{in.Name}, []string{out.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return session, nil
}
