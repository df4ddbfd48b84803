package utils

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SanitizeFilename folds accents and replaces anything outside [A-Za-z0-9._-]
// with '_' so names are safe inside ZIP archives and Content-Disposition headers.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	for _, r := range folded {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "image"
	}
	return out
}

// OutputName derives the PNG name written for an input file, e.g.
// "Café photo.jpg" with suffix "_nobg" becomes "Cafe_photo_nobg.png".
func OutputName(inputPath, suffix string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return SanitizeFilename(stem+suffix) + ".png"
}
