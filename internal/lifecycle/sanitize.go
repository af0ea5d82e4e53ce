package lifecycle

import (
	"path/filepath"
	"regexp"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Scratch names keep at most this much of the client's file name so the full
// name stays well under NAME_MAX.
const (
	maxStemLen = 64
	maxExtLen  = 16
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFilename strips diacritics and replaces every character outside
// [a-zA-Z0-9._-] with an underscore.
func SanitizeFilename(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}
	return unsafeFilenameChars.ReplaceAllString(stripped, "_")
}

// shortName shortens a sanitized name to maxStemLen bytes plus its extension.
// Sanitized names are ASCII, so byte slicing cannot split a character.
func shortName(name string) string {
	ext := filepath.Ext(name)
	if len(ext) > maxExtLen {
		ext = ""
	}
	stem := name[:len(name)-len(ext)]
	if len(stem) > maxStemLen {
		stem = stem[:maxStemLen]
	}
	return stem + ext
}
