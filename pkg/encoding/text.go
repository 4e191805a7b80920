package encoding

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// ToUTF8 converts a raw column value to a trimmed UTF-8 string
// Valid UTF-8 passes through; anything else is read as Windows-1252, the latin1 flavour MySQL uses
func ToUTF8(b []byte) string {
	if len(b) == 0 {
		return ""
	}

	if utf8.Valid(b) {
		return strings.TrimSpace(string(b))
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return strings.TrimSpace(string(b))
	}

	return strings.TrimSpace(string(decoded))
}

// Normalize returns the NFC form of s so composed and decomposed accents compare equal
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
