package extraction

import (
	"context"
	"strings"
)

// DefaultPdftotext is the pdftotext binary looked up on PATH
const DefaultPdftotext = "pdftotext"

// PDFExtractor converts PDF files with poppler's pdftotext.
type PDFExtractor struct {
	Binary string
	Runner Runner
}

// Extract runs `pdftotext -layout -enc UTF-8 -eol unix <path> -`
func (e *PDFExtractor) Extract(ctx context.Context, path string) (string, error) {
	bin := e.Binary
	if bin == "" {
		bin = DefaultPdftotext
	}
	out, errb, err := e.Runner.Run(ctx, bin, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		msg := strings.TrimSpace(string(errb))
		if msg == "" {
			msg = "pdftotext failed"
		}
		return "", &Error{Format: FormatPDF, Message: truncate(msg, 512), Cause: err}
	}
	// pages are separated by form feeds
	return strings.ReplaceAll(string(out), "\f", "\n\n"), nil
}
