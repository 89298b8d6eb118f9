package barcode

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"qr":       FormatQR,
		"QR_CODE":  FormatQR,
		"code-128": FormatCode128,
		"EAN13":    FormatEAN13,
		"upc_a":    FormatUPCA,
		"codabar":  FormatCodabar,
	}
	for in, want := range cases {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("morse")
	assert.Error(t, err)

	fs, err := ParseFormats([]string{"qr", "ean8"})
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatQR, FormatEAN8}, fs)
	assert.Equal(t, "ean8", FormatEAN8.String())
	assert.Equal(t, "unknown", FormatUnknown.String())
}

func TestPayloadText(t *testing.T) {
	assert.Equal(t, "hello", PayloadText([]byte("  hello\n")))
	assert.Equal(t, "café", PayloadText([]byte{'c', 'a', 'f', 0xE9}))
	assert.Equal(t, "", PayloadText(nil))
}

func TestNewDecoder(t *testing.T) {
	d, err := NewDecoder("")
	require.NoError(t, err)
	assert.IsType(t, &ZXingDecoder{}, d)

	none, err := NewDecoder("none")
	require.NoError(t, err)
	syms, err := none.Decode(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)), Options{})
	require.NoError(t, err)
	assert.Empty(t, syms)

	_, err = NewDecoder("zbar")
	assert.ErrorIs(t, err, ErrUnknownDecoder)
}

func TestZXingDecoder_BlankIsEmpty(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 120, 60))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{Y: 255}), image.Point{}, draw.Src)

	syms, err := NewZXingDecoder().Decode(context.Background(), img, Options{})
	require.NoError(t, err)
	assert.Empty(t, syms)
}

func TestZXingDecoder_Code128(t *testing.T) {
	matrix, err := oned.NewCode128Writer().Encode("BARSCAN-42", gozxing.BarcodeFormat_CODE_128, 360, 90, nil)
	require.NoError(t, err)

	b := matrix.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), matrix, b.Min, draw.Src)

	syms, err := NewZXingDecoder().Decode(context.Background(), gray, Options{Formats: []Format{FormatCode128}})
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "CODE_128", syms[0].Type)
	assert.Equal(t, "BARSCAN-42", syms[0].Text())
	assert.True(t, syms[0].Location.In(gray.Bounds()))
	assert.False(t, syms[0].Location.Empty())
}

func TestZXingDecoder_SeveralQRCodes(t *testing.T) {
	canvas := image.NewGray(image.Rect(0, 0, 400, 200))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Gray{Y: 255}), image.Point{}, draw.Src)
	for i, text := range []string{"LEFT-1", "RIGHT-2"} {
		matrix, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, 160, 160, nil)
		require.NoError(t, err)
		b := matrix.Bounds()
		at := image.Pt(20+i*200, 20)
		draw.Draw(canvas, image.Rectangle{Min: at, Max: at.Add(b.Size())}, matrix, b.Min, draw.Src)
	}

	syms, err := NewZXingDecoder().Decode(context.Background(), canvas, Options{Formats: []Format{FormatQR}})
	require.NoError(t, err)

	var texts []string
	for _, s := range syms {
		assert.Equal(t, "QR_CODE", s.Type)
		texts = append(texts, s.Text())
	}
	assert.ElementsMatch(t, []string{"LEFT-1", "RIGHT-2"}, texts)
}

func TestZXingDecoder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewZXingDecoder().Decode(ctx, image.NewGray(image.Rect(0, 0, 10, 10)), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
