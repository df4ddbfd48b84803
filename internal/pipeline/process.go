package pipeline

import (
	"context"
	"errors"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/cutout/internal/common"
	"github.com/MeKo-Tech/cutout/internal/letterbox"
	"github.com/MeKo-Tech/cutout/internal/matte"
	"github.com/MeKo-Tech/cutout/internal/onnx"
	"github.com/MeKo-Tech/cutout/internal/utils"
)

// Stage names recorded in Result timings.
const (
	StageDecode      = "decode"
	StagePreprocess  = "preprocess"
	StageInference   = "inference"
	StagePostprocess = "postprocess"
	StageEncode      = "encode"
)

// Result is a cutout before encoding.
type Result struct {
	Image   *image.NRGBA
	Plan    letterbox.Plan
	Timings common.StageTimings
}

// Output is an encoded cutout.
type Output struct {
	PNG     []byte
	Width   int
	Height  int
	Format  string // Source container format
	Timings common.StageTimings
}

// ProcessImage cuts out the foreground of an already decoded image. The result
// has the same dimensions as img.
func (p *Pipeline) ProcessImage(ctx context.Context, img image.Image) (*Result, error) {
	if p == nil || p.seg == nil {
		return nil, common.ModelFailure("process image", errors.New("pipeline not initialized"))
	}
	if img == nil {
		return nil, common.InvalidImage("process image", errors.New("nil image"))
	}

	res := &Result{}
	b := img.Bounds()
	plan, err := letterbox.ComputePlan(b.Dx(), b.Dy(), p.size)
	if err != nil {
		return nil, err
	}
	res.Plan = plan

	var tensor onnx.Tensor
	err = res.Timings.Track(StagePreprocess, func() error {
		square, err := matte.Letterbox(img, plan, p.filter)
		if err != nil {
			return err
		}
		tensor, err = matte.PrepareTensor(square, plan, p.norm)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		matte.ReleaseTensor(tensor)
		return nil, err
	}

	var mask []float32
	err = res.Timings.Track(StageInference, func() error {
		var err error
		mask, err = p.seg.Predict(tensor)
		return err
	})
	matte.ReleaseTensor(tensor)
	if err != nil {
		var pe *common.ProcessingError
		if !errors.As(err, &pe) {
			err = common.ModelFailure("predict", err)
		}
		return nil, err
	}

	err = res.Timings.Track(StagePostprocess, func() error {
		field, err := matte.Resample(mask, plan)
		if err != nil {
			return err
		}
		alpha := matte.Refine(field, p.cfg.Refine)
		res.Image, err = matte.Composite(img, alpha)
		return err
	})
	if err != nil {
		return nil, err
	}

	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		lo, hi, mean := onnx.TensorStats(mask)
		slog.Debug("Processed image",
			"plan", plan.String(),
			"mask_min", lo, "mask_max", hi, "mask_mean", mean,
			"timings", res.Timings.String())
	}
	return res, nil
}

// Process decodes data, removes the background and encodes the cutout as PNG.
// Errors are *common.ProcessingError values tagged InvalidImage, ModelError or
// EncodingError; no partial image is ever returned.
func (p *Pipeline) Process(ctx context.Context, data []byte) (*Output, error) {
	out := &Output{}

	var img image.Image
	err := out.Timings.Track(StageDecode, func() error {
		var meta utils.ImageMetadata
		var err error
		img, meta, err = utils.DecodeImage(data, p.cfg.MaxPixels)
		out.Format = meta.Format
		return err
	})
	if err != nil {
		return nil, err
	}

	cut, err := p.CutoutImage(ctx, img)
	if err != nil {
		return nil, err
	}
	for _, stage := range cut.Timings.Stages() {
		out.Timings.Record(stage, cut.Timings.Get(stage))
	}
	out.PNG, out.Width, out.Height = cut.PNG, cut.Width, cut.Height
	return out, nil
}

// CutoutImage removes the background of a decoded image and encodes the result.
func (p *Pipeline) CutoutImage(ctx context.Context, img image.Image) (*Output, error) {
	res, err := p.ProcessImage(ctx, img)
	if err != nil {
		return nil, err
	}

	out := &Output{Timings: res.Timings}
	err = out.Timings.Track(StageEncode, func() error {
		var err error
		out.PNG, err = matte.EncodePNG(res.Image, p.compression)
		return err
	})
	if err != nil {
		return nil, err
	}

	out.Width = res.Plan.OrigW
	out.Height = res.Plan.OrigH
	return out, nil
}

// RemoveBackground turns image bytes into transparent-background PNG bytes.
func (p *Pipeline) RemoveBackground(ctx context.Context, data []byte) ([]byte, error) {
	out, err := p.Process(ctx, data)
	if err != nil {
		return nil, err
	}
	return out.PNG, nil
}
