package pipeline

import (
	"context"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/detector"
	"github.com/MeKo-Tech/barscan/internal/rectify"
	"github.com/MeKo-Tech/barscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStubPipeline(t *testing.T, b *Builder) *Pipeline {
	t.Helper()
	if b == nil {
		b = NewBuilder()
	}
	p, err := b.WithDecoder(testutil.StubDecoder{}).Build()
	require.NoError(t, err)
	return p
}

func TestProcess_EndToEnd(t *testing.T) {
	scene := testutil.EmbedRotated(testutil.BarcodeLabel("BC"), 15, testutil.LargeSize)
	p := newStubPipeline(t, nil)

	res, err := p.Process(context.Background(), scene)
	require.NoError(t, err)

	assert.Equal(t, testutil.LargeSize.Width, res.Width)
	assert.Equal(t, testutil.LargeSize.Height, res.Height)
	require.NotNil(t, res.Region)
	assert.Greater(t, res.Region.Area, 1000.0)

	require.NotNil(t, res.Skew)
	assert.InDelta(t, -15, res.Skew.Angle, 2)

	require.NotNil(t, res.ROI)
	aspect := float64(res.ROI.Bounds.Width) / float64(res.ROI.Bounds.Height)
	assert.InDelta(t, 2.0, aspect, 0.2, "roi %+v", res.ROI.Bounds)

	require.Len(t, res.Symbols, 1)
	assert.Equal(t, []byte("BC"), res.Symbols[0].Payload)
	assert.Equal(t, "BC", res.Symbols[0].Text)
	assert.Equal(t, "SYNTHETIC", res.Symbols[0].Type)

	assert.Len(t, res.Timings, len(Stages()))
	assert.Empty(t, res.Error)
	assert.NotNil(t, res.Artifacts.ROIImage())
}

func TestProcess_SubImageRegionInInputCoordinates(t *testing.T) {
	scene := testutil.EmbedRotated(testutil.BarcodeLabel("SUB"), 12, testutil.LargeSize)
	offset := image.Pt(50, 30)
	canvas := image.NewNRGBA(scene.Bounds().Add(offset).Inset(-20))
	draw.Draw(canvas, scene.Bounds().Add(offset), scene, image.Point{}, draw.Src)
	sub := canvas.SubImage(scene.Bounds().Add(offset))

	p := newStubPipeline(t, nil)
	want, err := p.Process(context.Background(), scene)
	require.NoError(t, err)
	got, err := p.Process(context.Background(), sub)
	require.NoError(t, err)

	wb, gb := want.Region.Bounds, got.Region.Bounds
	assert.Equal(t, wb.Image().Add(offset), gb.Image())
	assert.True(t, gb.Image().In(sub.Bounds()))
	require.Len(t, got.Region.Polygon, len(want.Region.Polygon))
	for i, pt := range want.Region.Polygon {
		assert.Equal(t, pt.X+float64(offset.X), got.Region.Polygon[i].X)
		assert.Equal(t, pt.Y+float64(offset.Y), got.Region.Polygon[i].Y)
	}
	assert.Equal(t, want.ROI, got.ROI)
	require.Len(t, got.Symbols, 1)
	assert.Equal(t, "SUB", got.Symbols[0].Text)
}

func TestProcess_ObserverSeesEveryStage(t *testing.T) {
	var seen []Stage
	obs := ObserverFunc(func(s Stage, title string, img image.Image) {
		assert.NotEmpty(t, title)
		assert.NotNil(t, img)
		seen = append(seen, s)
	})
	p := newStubPipeline(t, NewBuilder().WithObserver(obs))

	_, err := p.Process(context.Background(), testutil.EmbedRotated(testutil.BarcodeLabel("OK"), -10, testutil.LargeSize))
	require.NoError(t, err)
	assert.Equal(t, Stages(), seen)
}

func TestProcess_BlankImage(t *testing.T) {
	var seen []Stage
	obs := ObserverFunc(func(s Stage, _ string, _ image.Image) { seen = append(seen, s) })
	p := newStubPipeline(t, NewBuilder().WithObserver(obs))

	res, err := p.Process(context.Background(), testutil.BlankImage(testutil.MediumSize, 128))
	require.Error(t, err)
	assert.ErrorIs(t, err, detector.ErrNoBarcodeRegion)
	assert.True(t, IsGeometryError(err))

	var nbr *detector.NoBarcodeRegionError
	require.ErrorAs(t, err, &nbr)
	assert.Zero(t, nbr.Candidates)

	require.NotNil(t, res)
	assert.Nil(t, res.Region)
	assert.Nil(t, res.Skew)
	assert.NotEmpty(t, res.Error)
	assert.Len(t, res.Timings, 6)
	assert.Equal(t, Stages()[:6], seen)
}

func TestProcess_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newStubPipeline(t, nil)
	res, err := p.Process(ctx, testutil.BlankImage(testutil.SmallSize, 0))
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsGeometryError(err))
	assert.Empty(t, res.Timings)
}

func TestProcess_ZXingCode128(t *testing.T) {
	scene := testutil.Code128Scene(t, "BARSCAN-42")

	p, err := NewBuilder().WithFormats(barcode.FormatCode128).Build()
	require.NoError(t, err)

	res, err := p.Process(context.Background(), scene)
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Skew.Angle, 1e-9)
	require.Len(t, res.Symbols, 1)
	assert.Equal(t, "CODE_128", res.Symbols[0].Type)
	assert.Equal(t, "BARSCAN-42", res.Symbols[0].Text)
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteScene(t, dir, "scene.png", "OK", 20)
	p := newStubPipeline(t, nil)

	res, err := p.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, res.Source)
	require.Len(t, res.Symbols, 1)
	assert.Equal(t, "OK", res.Symbols[0].Text)

	res, err = p.ProcessFile(context.Background(), filepath.Join(dir, "missing.png"))
	require.Error(t, err)
	assert.False(t, IsGeometryError(err))
	assert.NotEmpty(t, res.Error)
}

func TestStagesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "stages")
	p := newStubPipeline(t, NewBuilder().WithStagesDir(dir))

	_, err := p.Process(context.Background(), testutil.EmbedRotated(testutil.BarcodeLabel("A"), 5, testutil.LargeSize))
	require.NoError(t, err)

	sink := NewDirObserver(dir, "stage")
	for _, s := range Stages() {
		_, err := os.Stat(sink.Path(s))
		assert.NoError(t, err, "stage %s", s)
	}
}

func TestBuilder(t *testing.T) {
	b := NewBuilder().
		WithMinArea(500).
		WithBlurKernel(7).
		WithAdaptiveThreshold(15, 3).
		WithMorphKernel(11).
		WithInterpolation(rectify.InterpolationLinear).
		WithBorderMode(rectify.BorderConstant).
		WithPadding(4).
		WithTryHarder(false).
		WithParallelWorkers(3)

	cfg := b.Config()
	assert.InDelta(t, 500.0, cfg.Detector.MinArea, 0)
	assert.Equal(t, 7, cfg.Detector.BlurKernel)
	assert.Equal(t, 7, cfg.Rectify.BlurKernel)
	assert.Equal(t, 15, cfg.Detector.AdaptiveBlockSize)
	assert.InDelta(t, 3.0, cfg.Detector.AdaptiveOffset, 0)
	assert.Equal(t, 11, cfg.Detector.MorphKernel)
	assert.Equal(t, rectify.InterpolationLinear, cfg.Rectify.Interpolation)
	assert.Equal(t, rectify.BorderConstant, cfg.Rectify.BorderMode)
	assert.Equal(t, 4, cfg.Rectify.Padding)
	assert.False(t, cfg.Barcode.TryHarder)
	assert.Equal(t, 3, cfg.Parallel.MaxWorkers)
	require.NoError(t, b.Validate())

	_, err := NewBuilder().WithBlurKernel(4).Build()
	require.Error(t, err)

	_, err = NewBuilder().WithDecoderName("nope").Build()
	require.ErrorIs(t, err, barcode.ErrUnknownDecoder)
}
