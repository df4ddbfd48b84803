package matte

import (
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/cutout/internal/letterbox"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageNetNormalization_PinnedConstants(t *testing.T) {
	n := ImageNetNormalization()

	wantScale := [3]float32{1 / 0.229, 1 / 0.224, 1 / 0.225}
	wantOffset := [3]float32{-0.485 / 0.229, -0.456 / 0.224, -0.406 / 0.225}
	for c := range 3 {
		assert.InDelta(t, wantScale[c], n.Scale[c], 1e-5, "scale[%d]", c)
		assert.InDelta(t, wantOffset[c], n.Offset[c], 1e-5, "offset[%d]", c)
	}

	// (255/255 - 0.485) / 0.229
	assert.InDelta(t, 2.2489, n.Apply(0, 255), 1e-3)
	assert.InDelta(t, -2.1179, n.Apply(0, 0), 1e-3)
}

func TestFromMeanStd_RejectsNonPositiveStd(t *testing.T) {
	_, err := FromMeanStd([3]float32{0.5, 0.5, 0.5}, [3]float32{1, 0, 1})
	require.Error(t, err)
}

func TestPrepareTensor_PlanarLayoutAndPadding(t *testing.T) {
	src := imaging.New(4, 2, color.NRGBA{R: 255, G: 128, B: 0, A: 255})
	plan, err := letterbox.ComputePlan(4, 2, 8)
	require.NoError(t, err)
	require.Equal(t, 2, plan.StartY)

	square, err := Letterbox(src, plan, imaging.NearestNeighbor)
	require.NoError(t, err)

	norm := Normalization{Scale: [3]float32{1, 1, 1}}
	tensor, err := PrepareTensor(square, plan, norm)
	require.NoError(t, err)
	defer ReleaseTensor(tensor)

	assert.Equal(t, []int64{1, 3, 8, 8}, tensor.Shape)
	require.Len(t, tensor.Data, 3*64)

	plane := 64
	for y := range 8 {
		for x := range 8 {
			i := y*8 + x
			if plan.Contains(x, y) {
				assert.InDelta(t, 1.0, tensor.Data[i], 1e-6)
				assert.InDelta(t, 128.0/255, tensor.Data[plane+i], 1e-6)
				assert.InDelta(t, 0.0, tensor.Data[2*plane+i], 1e-6)
			} else {
				assert.Zero(t, tensor.Data[i], "padding at %d,%d", x, y)
				assert.Zero(t, tensor.Data[plane+i])
				assert.Zero(t, tensor.Data[2*plane+i])
			}
		}
	}
}

func TestPrepareTensor_OffsetAppliedToPadding(t *testing.T) {
	plan, err := letterbox.ComputePlan(10, 5, 16)
	require.NoError(t, err)
	square, err := Letterbox(imaging.New(10, 5, color.White), plan, imaging.Linear)
	require.NoError(t, err)

	tensor, err := PrepareTensor(square, plan, ImageNetNormalization())
	require.NoError(t, err)
	defer ReleaseTensor(tensor)

	// Row 0 is padding: black normalizes to -mean/std.
	assert.InDelta(t, -0.485/0.229, tensor.Data[0], 1e-4)
	assert.InDelta(t, -0.406/0.225, tensor.Data[2*256], 1e-4)
}

func TestPrepareTensor_WrongSize(t *testing.T) {
	plan, err := letterbox.ComputePlan(10, 10, 16)
	require.NoError(t, err)

	_, err = PrepareTensor(image.NewNRGBA(image.Rect(0, 0, 15, 16)), plan, ImageNetNormalization())
	require.Error(t, err)

	_, err = PrepareTensor(nil, plan, ImageNetNormalization())
	require.Error(t, err)
}

func TestLetterbox_Geometry(t *testing.T) {
	src := imaging.New(64, 32, color.White)
	plan, err := letterbox.ComputePlan(64, 32, 32)
	require.NoError(t, err)

	square, err := Letterbox(src, plan, imaging.Linear)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 32), square.Bounds())

	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, square.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, square.NRGBAAt(16, 16))
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, square.NRGBAAt(16, 31))
}

func TestLetterbox_PlanMismatch(t *testing.T) {
	plan, err := letterbox.ComputePlan(64, 32, 32)
	require.NoError(t, err)

	_, err = Letterbox(imaging.New(10, 10, color.White), plan, imaging.Linear)
	require.Error(t, err)
}

func TestParseResizeFilter(t *testing.T) {
	for _, name := range []string{"", "linear", "Lanczos", "catmullrom", "box", "nearest"} {
		_, err := ParseResizeFilter(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseResizeFilter("bicubic-ish")
	assert.Error(t, err)
}
