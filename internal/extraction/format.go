package extraction

import (
	"path/filepath"
	"strings"
)

// Format is a supported document format, named by its extension.
type Format string

// Supported formats
const (
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
	FormatDOC      Format = "doc"
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatHTM      Format = "htm"
)

var supportedFormats = map[Format]bool{
	FormatPDF:      true,
	FormatDOCX:     true,
	FormatDOC:      true,
	FormatText:     true,
	FormatMarkdown: true,
	FormatHTML:     true,
	FormatHTM:      true,
}

// ParseFormat resolves a declared format. It accepts a bare extension
// ("pdf", ".PDF") or a file name ("cv.final.docx"), case-insensitive.
func ParseFormat(declared string) (Format, error) {
	s := strings.ToLower(strings.TrimSpace(declared))
	if strings.ContainsAny(s, "/\\") || strings.Count(s, ".") > 1 || (strings.Contains(s, ".") && !strings.HasPrefix(s, ".")) {
		s = filepath.Ext(s)
	}
	s = strings.TrimPrefix(s, ".")

	f := Format(s)
	if !supportedFormats[f] {
		return "", &UnsupportedFormatError{Format: s}
	}
	return f, nil
}

// SupportedFormats lists the accepted extensions
func SupportedFormats() []Format {
	return []Format{FormatPDF, FormatDOCX, FormatDOC, FormatText, FormatMarkdown, FormatHTML, FormatHTM}
}
