// Package extraction turns uploaded documents into plain text. The Dispatcher
// routes a file to the extractor for its format and normalizes the result.
package extraction

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Extractor produces raw text from one file format.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Dispatcher maps formats to extractors. Safe for concurrent use once built.
type Dispatcher struct {
	extractors map[Format]Extractor
	logger     *zap.Logger
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithExtractor overrides the extractor for a format
func WithExtractor(f Format, e Extractor) Option {
	return func(d *Dispatcher) {
		d.extractors[f] = e
	}
}

// NewDispatcher wires the default extractors. pdftotextBin may be empty.
func NewDispatcher(pdftotextBin string, runner Runner, logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}

	pdf := &PDFExtractor{Binary: pdftotextBin, Runner: runner}
	docx := &DOCXExtractor{}
	text := &PlainTextExtractor{}
	html := &HTMLExtractor{}

	d := &Dispatcher{
		extractors: map[Format]Extractor{
			FormatPDF:      pdf,
			FormatDOCX:     docx,
			FormatDOC:      docx,
			FormatText:     text,
			FormatMarkdown: text,
			FormatHTML:     html,
			FormatHTM:      html,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Extract resolves declaredFormat (an extension or file name), runs the
// matching extractor on path and returns cleaned text. Unsupported formats
// fail before any extractor is invoked.
func (d *Dispatcher) Extract(ctx context.Context, path, declaredFormat string) (string, error) {
	format, err := ParseFormat(declaredFormat)
	if err != nil {
		return "", err
	}

	extractor, ok := d.extractors[format]
	if !ok {
		return "", &UnsupportedFormatError{Format: string(format)}
	}

	raw, err := extractor.Extract(ctx, path)
	if err != nil {
		return "", err
	}

	text := CleanText(raw)
	if strings.TrimSpace(text) == "" {
		return "", &EmptyTextError{Format: format}
	}

	d.logger.Debug("text extracted",
		zap.String("format", string(format)),
		zap.Int("chars", len(text)),
	)
	return text, nil
}
