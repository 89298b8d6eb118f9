package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
)

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatQR
	FormatDataMatrix
	FormatAztec
	FormatPDF417
	FormatCode128
	FormatCode39
	FormatEAN8
	FormatEAN13
	FormatUPCA
	FormatUPCE
	FormatITF
	FormatCodabar
)

var formatNames = map[Format]string{
	FormatQR:         "qr",
	FormatDataMatrix: "datamatrix",
	FormatAztec:      "aztec",
	FormatPDF417:     "pdf417",
	FormatCode128:    "code128",
	FormatCode39:     "code39",
	FormatEAN8:       "ean8",
	FormatEAN13:      "ean13",
	FormatUPCA:       "upca",
	FormatUPCE:       "upce",
	FormatITF:        "itf",
	FormatCodabar:    "codabar",
}

// String returns the lower-case symbology name used in configuration.
func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return "unknown"
}

// ParseFormat maps a configuration name (case-insensitive, "-" and "_"
// ignored) to a Format.
func ParseFormat(s string) (Format, error) {
	key := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch key {
	case "qrcode":
		return FormatQR, nil
	case "ean":
		return FormatEAN13, nil
	}
	for f, name := range formatNames {
		if name == key {
			return f, nil
		}
	}
	return FormatUnknown, fmt.Errorf("unknown barcode format %q", s)
}

// ParseFormats parses a list of names, failing on the first unknown one.
func ParseFormats(names []string) ([]Format, error) {
	out := make([]Format, 0, len(names))
	for _, n := range names {
		f, err := ParseFormat(n)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Options controls decoding behavior.
type Options struct {
	// Formats constrains the set of symbologies to search. Empty means all.
	Formats []Format

	// TryHarder enables more exhaustive search (slower but more robust).
	TryHarder bool

	// PureBarcode hints that the ROI contains nothing but the symbol.
	PureBarcode bool
}

// Symbol is one decoded record.
type Symbol struct {
	// Type is the symbology tag, e.g. "CODE_128" or "QR_CODE".
	Type    string
	Payload []byte
	// Location is axis-aligned and relative to the ROI passed to Decode.
	Location image.Rectangle
	Points   []image.Point
}

// Text renders the payload for display.
func (s Symbol) Text() string { return PayloadText(s.Payload) }

// Decoder turns a rectified ROI into symbols.
type Decoder interface {
	Decode(ctx context.Context, roi *image.Gray, opts Options) ([]Symbol, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(ctx context.Context, roi *image.Gray, opts Options) ([]Symbol, error)

// Decode calls f.
func (f DecoderFunc) Decode(ctx context.Context, roi *image.Gray, opts Options) ([]Symbol, error) {
	return f(ctx, roi, opts)
}

// ErrUnknownDecoder is returned by NewDecoder for unregistered names.
var ErrUnknownDecoder = errors.New("unknown barcode decoder")

// NewDecoder returns a decoder by name: "zxing" (default when empty) or
// "none", which never reports symbols.
func NewDecoder(name string) (Decoder, error) {
	switch strings.ToLower(name) {
	case "", "zxing", "gozxing":
		return NewZXingDecoder(), nil
	case "none":
		return DecoderFunc(func(context.Context, *image.Gray, Options) ([]Symbol, error) {
			return nil, nil
		}), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDecoder, name)
	}
}

// rectFromPoints returns the bounding rectangle of pts, clipped to bounds.
func rectFromPoints(pts []image.Point, bounds image.Rectangle) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: pts[0], Max: pts[0].Add(image.Pt(1, 1))}
	for _, p := range pts[1:] {
		r = r.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}
	return r.Intersect(bounds)
}
