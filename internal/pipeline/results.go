package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/utils"
	"gopkg.in/yaml.v3"
)

// Output formats understood by Format.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatYAML = "yaml"
)

// ErrUnknownFormat is returned by Format for unsupported output formats.
var ErrUnknownFormat = errors.New("unknown output format")

func symbolResult(s barcode.Symbol) SymbolResult {
	out := SymbolResult{
		Type:     s.Type,
		Text:     s.Text(),
		Payload:  s.Payload,
		Location: utils.RectFrom(s.Location),
	}
	if len(s.Points) > 0 {
		out.Points = utils.PointsFromInts(s.Points)
	}
	return out
}

// Format renders results in the named output format.
func Format(results []*Result, format string) (string, error) {
	switch strings.ToLower(format) {
	case "", FormatText:
		return ToText(results), nil
	case FormatJSON:
		return ToJSON(results)
	case FormatCSV:
		return ToCSV(results)
	case FormatYAML, "yml":
		return ToYAML(results)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// ToJSON serializes results as pretty JSON. A single result is written as an
// object, several as an array.
func ToJSON(results []*Result) (string, error) {
	var v any = results
	if len(results) == 1 {
		v = results[0]
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToYAML serializes results as YAML with the same shape as ToJSON.
func ToYAML(results []*Result) (string, error) {
	var v any = results
	if len(results) == 1 {
		v = results[0]
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ToText renders a short human-readable report.
func ToText(results []*Result) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		if r.Source != "" {
			fmt.Fprintf(&sb, "%s:\n", r.Source)
		}
		if r.Error != "" {
			fmt.Fprintf(&sb, "  error: %s\n", r.Error)
			continue
		}
		if r.Region != nil {
			b := r.Region.Bounds
			fmt.Fprintf(&sb, "  region: %dx%d at (%d,%d), area %.0f\n", b.Width, b.Height, b.X, b.Y, r.Region.Area)
		}
		if r.Skew != nil {
			fmt.Fprintf(&sb, "  angle: %.2f (raw %.2f)\n", r.Skew.Angle, r.Skew.RawAngle)
		}
		if r.ROI != nil {
			b := r.ROI.Bounds
			fmt.Fprintf(&sb, "  roi: %dx%d at (%d,%d)\n", b.Width, b.Height, b.X, b.Y)
		}
		if len(r.Symbols) == 0 {
			sb.WriteString("  no symbols decoded\n")
		}
		for _, s := range r.Symbols {
			fmt.Fprintf(&sb, "  %s: %s\n", s.Type, s.Text)
		}
	}
	return sb.String()
}

// ToCSV exports one row per decoded symbol; images without symbols get one
// row with empty symbol columns.
func ToCSV(results []*Result) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"source", "angle", "roi_x", "roi_y", "roi_w", "roi_h", "type", "text", "error"}
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, r := range results {
		base := []string{r.Source, "", "", "", "", ""}
		if r.Skew != nil {
			base[1] = strconv.FormatFloat(r.Skew.Angle, 'f', 2, 64)
		}
		if r.ROI != nil {
			b := r.ROI.Bounds
			base[2], base[3] = strconv.Itoa(b.X), strconv.Itoa(b.Y)
			base[4], base[5] = strconv.Itoa(b.Width), strconv.Itoa(b.Height)
		}
		if len(r.Symbols) == 0 {
			if err := w.Write(append(base, "", "", r.Error)); err != nil {
				return "", err
			}
			continue
		}
		for _, s := range r.Symbols {
			row := append(append([]string(nil), base...), s.Type, s.Text, r.Error)
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}
