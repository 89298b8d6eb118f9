package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
	multiqr "github.com/makiuchi-d/gozxing/multi/qrcode"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ZXingDecoder decodes 1D and 2D symbols with gozxing. Each reader is tried
// in turn and every distinct hit is reported; QR codes go through the
// multi-symbol detector so several codes in one ROI are all returned. Readers carry state, so a fresh
// set is built per Decode call and the decoder is safe for concurrent use.
type ZXingDecoder struct {
	readers map[Format]func() gozxing.Reader
	order   []Format
}

// NewZXingDecoder builds a decoder with all supported readers.
func NewZXingDecoder() *ZXingDecoder {
	d := &ZXingDecoder{readers: map[Format]func() gozxing.Reader{
		FormatCode128:    func() gozxing.Reader { return oned.NewCode128Reader() },
		FormatCode39:     func() gozxing.Reader { return oned.NewCode39Reader() },
		FormatEAN13:      func() gozxing.Reader { return oned.NewEAN13Reader() },
		FormatEAN8:       func() gozxing.Reader { return oned.NewEAN8Reader() },
		FormatUPCA:       func() gozxing.Reader { return oned.NewUPCAReader() },
		FormatUPCE:       func() gozxing.Reader { return oned.NewUPCEReader() },
		FormatITF:        func() gozxing.Reader { return oned.NewITFReader() },
		FormatCodabar:    func() gozxing.Reader { return oned.NewCodaBarReader() },
		FormatQR:         func() gozxing.Reader { return qrcode.NewQRCodeReader() },
		FormatDataMatrix: func() gozxing.Reader { return datamatrix.NewDataMatrixReader() },
	}}
	d.order = []Format{
		FormatCode128, FormatEAN13, FormatEAN8, FormatUPCA, FormatUPCE,
		FormatCode39, FormatITF, FormatCodabar, FormatQR, FormatDataMatrix,
	}
	return d
}

// Decode implements Decoder.
func (d *ZXingDecoder) Decode(ctx context.Context, roi *image.Gray, opts Options) ([]Symbol, error) {
	if roi == nil || roi.Bounds().Empty() {
		return nil, nil
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(roi)
	if err != nil {
		return nil, fmt.Errorf("prepare bitmap: %w", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{}
	if opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	if opts.PureBarcode {
		hints[gozxing.DecodeHintType_PURE_BARCODE] = true
	}

	var out []Symbol
	seen := map[string]bool{}
	for _, f := range d.selected(opts.Formats) {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		results, err := d.read(f, bmp, hints)
		if err != nil {
			var nf gozxing.NotFoundException
			if !errors.As(err, &nf) {
				slog.Debug("Barcode reader failed", "format", f.String(), "error", err)
			}
			continue
		}
		for _, r := range results {
			sym := toSymbol(r, roi.Bounds())
			key := sym.Type + "\x00" + string(sym.Payload)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, sym)
		}
	}
	return out, nil
}

// read runs the reader for f. The multi QR detector needs finder patterns
// with a quiet zone, so a miss falls back to the single reader.
func (d *ZXingDecoder) read(f Format, bmp *gozxing.BinaryBitmap, hints map[gozxing.DecodeHintType]interface{}) ([]*gozxing.Result, error) {
	if f == FormatQR && hints[gozxing.DecodeHintType_PURE_BARCODE] == nil {
		results, err := multiqr.NewQRCodeMultiReader().DecodeMultiple(bmp, hints)
		if err == nil && len(results) > 0 {
			return results, nil
		}
	}
	r, err := d.readers[f]().Decode(bmp, hints)
	if err != nil {
		return nil, err
	}
	return []*gozxing.Result{r}, nil
}

func (d *ZXingDecoder) selected(formats []Format) []Format {
	if len(formats) == 0 {
		return d.order
	}
	var out []Format
	for _, f := range d.order {
		for _, want := range formats {
			if f == want {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func toSymbol(r *gozxing.Result, bounds image.Rectangle) Symbol {
	payload := []byte(r.GetText())
	pts := make([]image.Point, 0, len(r.GetResultPoints()))
	for _, p := range r.GetResultPoints() {
		pts = append(pts, image.Pt(int(math.Round(p.GetX())), int(math.Round(p.GetY()))))
	}
	loc := rectFromPoints(pts, bounds)
	if len(pts) <= 2 {
		// 1D readers report points on the scan line only; widen to the ROI
		// height so the location covers the bars.
		loc = image.Rect(loc.Min.X, bounds.Min.Y, loc.Max.X, bounds.Max.Y)
	}
	return Symbol{
		Type:     r.GetBarcodeFormat().String(),
		Payload:  payload,
		Location: loc,
		Points:   pts,
	}
}
