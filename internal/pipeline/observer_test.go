package pipeline

import (
	"bytes"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/barscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiObserver(t *testing.T) {
	var a, b []Stage
	m := MultiObserver{
		ObserverFunc(func(s Stage, _ string, _ image.Image) { a = append(a, s) }),
		nil,
		ObserverFunc(func(s Stage, _ string, _ image.Image) { b = append(b, s) }),
	}
	m.Observe(StageBlur, "Blurred", nil)
	m.Observe(StageROI, "Region of interest", nil)
	assert.Equal(t, []Stage{StageBlur, StageROI}, a)
	assert.Equal(t, a, b)
}

func TestDirObserver(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	obs := NewDirObserver(dir, "scan")
	obs.Observe(StageGradient, "Gradient magnitude", testutil.BlankImage(testutil.SmallSize, 7))
	obs.Observe(StageDeskew, "Rotated", nil)

	assert.Equal(t, filepath.Join(dir, "scan_03_gradient.png"), obs.Path(StageGradient))
	_, err := os.Stat(obs.Path(StageGradient))
	require.NoError(t, err)
	_, err = os.Stat(obs.Path(StageDeskew))
	assert.True(t, os.IsNotExist(err))
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	obs := LogObserver{Logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	obs.Observe(StageContours, StageContours.Title(), testutil.BlankImage(testutil.SmallSize, 0))
	assert.Contains(t, buf.String(), "stage=contours")
	assert.Contains(t, buf.String(), "width=320")
}

func TestStageNames(t *testing.T) {
	assert.Len(t, Stages(), 9)
	assert.Equal(t, "normalize", StageNormalize.String())
	assert.Equal(t, "decode", StageDecode.String())
	assert.Equal(t, "unknown", Stage(42).String())
	for _, s := range Stages() {
		assert.NotEmpty(t, s.Title())
	}
}
