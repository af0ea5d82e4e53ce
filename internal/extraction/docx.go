package extraction

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const documentPart = "word/document.xml"

// DefaultMaxPartBytes caps the decompressed size of word/document.xml.
const DefaultMaxPartBytes = 20 << 20

var errPartTooLarge = errors.New("document part too large")

// DOCXExtractor reads the main document part of an OOXML package.
// Legacy .doc uploads are routed here too; a binary .doc fails as an invalid archive.
type DOCXExtractor struct {
	// MaxPartBytes overrides DefaultMaxPartBytes when positive.
	MaxPartBytes int64
}

// Extract returns the paragraph text of word/document.xml
func (e *DOCXExtractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", &Error{Format: FormatDOCX, Message: "not a valid DOCX archive", Cause: err}
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		if f.Name != documentPart {
			continue
		}
		limit := e.MaxPartBytes
		if limit <= 0 {
			limit = DefaultMaxPartBytes
		}
		tooLarge := &Error{Format: FormatDOCX, Message: fmt.Sprintf("document part exceeds %d bytes", limit), Cause: errPartTooLarge}
		if f.UncompressedSize64 > uint64(limit) {
			return "", tooLarge
		}

		rc, err := f.Open()
		if err != nil {
			return "", &Error{Format: FormatDOCX, Message: "failed to open document part", Cause: err}
		}
		defer func() { _ = rc.Close() }()

		// the header size is not trusted; the reader enforces the limit too
		text, err := documentText(&cappedReader{r: rc, left: limit})
		if errors.Is(err, errPartTooLarge) {
			return "", tooLarge
		}
		if err != nil {
			return "", &Error{Format: FormatDOCX, Message: "failed to parse document part", Cause: err}
		}
		return text, nil
	}

	return "", &Error{Format: FormatDOCX, Message: "archive has no " + documentPart}
}

// cappedReader fails with errPartTooLarge once more than left bytes are read.
type cappedReader struct {
	r    io.Reader
	left int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.left < 0 {
		return 0, errPartTooLarge
	}
	if int64(len(p)) > c.left+1 {
		p = p[:c.left+1]
	}
	n, err := c.r.Read(p)
	c.left -= int64(n)
	if c.left < 0 {
		return n, errPartTooLarge
	}
	return n, err
}

// documentText walks the WordprocessingML token stream. Text runs are
// concatenated, tabs and breaks kept, and each paragraph ends a line.
func documentText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	inText := false
	propsDepth := 0

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pPr", "rPr":
				propsDepth++
			case "t":
				inText = true
			case "tab":
				if propsDepth == 0 {
					b.WriteByte('\t')
				}
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "pPr", "rPr":
				propsDepth--
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
