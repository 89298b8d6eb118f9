package barcode

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// PayloadText renders payload bytes as text. Valid UTF-8 is used as is;
// anything else is read as ISO-8859-1, the default byte encoding of most 1D
// and 2D symbologies. Surrounding whitespace is trimmed.
func PayloadText(payload []byte) string {
	if utf8.Valid(payload) {
		return strings.TrimSpace(string(payload))
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(payload)
	if err != nil {
		return strings.TrimSpace(string(payload))
	}
	return strings.TrimSpace(string(decoded))
}
