package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/MeKo-Tech/barscan/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleResults() []*Result {
	ok := &Result{
		Source: "label.png",
		Width:  800,
		Height: 600,
		Region: &RegionResult{Bounds: utils.Rect{X: 10, Y: 20, Width: 300, Height: 150}, Area: 44000, Candidates: 2},
		Skew:   &SkewResult{RawAngle: -15, Angle: -15},
		ROI:    &ROIResult{Bounds: utils.Rect{X: 200, Y: 200, Width: 400, Height: 200}, OtsuLevel: 90},
		Symbols: []SymbolResult{
			{Type: "CODE_128", Text: "ABC-1", Payload: []byte("ABC-1"), Location: utils.Rect{Width: 10, Height: 5}},
			{Type: "QR_CODE", Text: "hello, world", Payload: []byte("hello, world")},
		},
	}
	failed := &Result{Source: "blank.png", Width: 10, Height: 10, Symbols: []SymbolResult{}, Error: "no barcode region found"}
	return []*Result{ok, failed}
}

func TestToText(t *testing.T) {
	out := ToText(sampleResults())
	assert.Contains(t, out, "label.png:")
	assert.Contains(t, out, "angle: -15.00 (raw -15.00)")
	assert.Contains(t, out, "roi: 400x200 at (200,200)")
	assert.Contains(t, out, "CODE_128: ABC-1")
	assert.Contains(t, out, "blank.png:\n  error: no barcode region found")
}

func TestToJSON(t *testing.T) {
	results := sampleResults()

	single, err := ToJSON(results[:1])
	require.NoError(t, err)
	var obj map[string]any
	require.NoError(t, json.Unmarshal([]byte(single), &obj))
	assert.Equal(t, "label.png", obj["source"])
	assert.NotContains(t, single, "Artifacts")

	multi, err := ToJSON(results)
	require.NoError(t, err)
	var arr []Result
	require.NoError(t, json.Unmarshal([]byte(multi), &arr))
	require.Len(t, arr, 2)
	assert.Equal(t, []byte("ABC-1"), arr[0].Symbols[0].Payload)
	assert.Nil(t, arr[1].Region)
}

func TestToYAML(t *testing.T) {
	out, err := ToYAML(sampleResults()[:1])
	require.NoError(t, err)
	assert.Contains(t, out, "raw_angle: -15")

	var back Result
	require.NoError(t, yaml.Unmarshal([]byte(out), &back))
	assert.Equal(t, 400, back.ROI.Bounds.Width)
	assert.Equal(t, "QR_CODE", back.Symbols[1].Type)
}

func TestToCSV(t *testing.T) {
	out, err := ToCSV(sampleResults())
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4, "header, two symbols, one failed image")
	assert.Equal(t, "source", rows[0][0])
	assert.Equal(t, []string{"label.png", "-15.00", "200", "200", "400", "200", "QR_CODE", "hello, world", ""}, rows[2])
	assert.Equal(t, "no barcode region found", rows[3][8])
}

func TestFormat(t *testing.T) {
	for _, f := range []string{"", "text", "json", "csv", "yaml", "YML"} {
		_, err := Format(sampleResults(), f)
		assert.NoError(t, err, f)
	}
	_, err := Format(sampleResults(), "xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
