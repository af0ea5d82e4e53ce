package extraction

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls  [][]string
	stdout string
	stderr string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return []byte(f.stdout), []byte(f.stderr), f.err
}

type countingExtractor struct {
	calls int
	text  string
}

func (c *countingExtractor) Extract(context.Context, string) (string, error) {
	c.calls++
	return c.text, nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeDocx(t *testing.T, documentXML string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cv.docx")
	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, _ = w.Write([]byte(`<?xml version="1.0"?><Types/>`))
	if documentXML != "" {
		w, err = zw.Create(documentPart)
		require.NoError(t, err)
		_, _ = w.Write([]byte(documentXML))
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

const sampleDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Jan Kowalski</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Senior </w:t></w:r><w:r><w:t>Go Developer</w:t></w:r></w:p>
    <w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="2000"/></w:tabs></w:pPr><w:r><w:t>Skills:</w:t><w:tab/><w:t>Go, Kubernetes</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"pdf", FormatPDF},
		{".PDF", FormatPDF},
		{"DocX", FormatDOCX},
		{"cv.final.docx", FormatDOCX},
		{"CV.doc", FormatDOC},
		{"/tmp/upload/profile.md", FormatMarkdown},
		{"page.HTM", FormatHTM},
		{"txt", FormatText},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFormat_Unsupported(t *testing.T) {
	for _, in := range []string{"odt", "cv.rtf", "", "image.png", "pdfx"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseFormat(in)
			var unsupported *UnsupportedFormatError
			require.True(t, errors.As(err, &unsupported))
		})
	}
}

func TestDispatcher_UnsupportedFormatRunsNoExtractor(t *testing.T) {
	runner := &fakeRunner{stdout: "text"}
	spy := &countingExtractor{text: "x"}
	d := NewDispatcher("", runner, nil, WithExtractor(FormatText, spy))

	_, err := d.Extract(context.Background(), "/nonexistent/cv.odt", "cv.odt")

	var unsupported *UnsupportedFormatError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "odt", unsupported.Format)
	assert.Empty(t, runner.calls)
	assert.Zero(t, spy.calls)
}

func TestDispatcher_PDF(t *testing.T) {
	runner := &fakeRunner{stdout: "Jan  Kowalski\r\nPage one\fPage two\n"}
	d := NewDispatcher("/usr/bin/pdftotext", runner, nil)

	text, err := d.Extract(context.Background(), "/scratch/cv.pdf", "PDF")
	require.NoError(t, err)

	assert.Equal(t, "Jan Kowalski\nPage one\n\nPage two", text)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"/usr/bin/pdftotext", "-layout", "-enc", "UTF-8", "-eol", "unix", "/scratch/cv.pdf", "-"}, runner.calls[0])
}

func TestDispatcher_PDFFailure(t *testing.T) {
	runner := &fakeRunner{stderr: "Syntax Error: Couldn't find trailer dictionary", err: errors.New("exit status 1")}
	d := NewDispatcher("", runner, nil)

	_, err := d.Extract(context.Background(), "/scratch/cv.pdf", "pdf")

	var extractErr *Error
	require.True(t, errors.As(err, &extractErr))
	assert.Equal(t, FormatPDF, extractErr.Format)
	assert.Contains(t, extractErr.Message, "trailer dictionary")
	assert.Equal(t, DefaultPdftotext, runner.calls[0][0])
}

func TestDispatcher_DOCX(t *testing.T) {
	path := writeDocx(t, sampleDocument)
	d := NewDispatcher("", &fakeRunner{}, nil)

	text, err := d.Extract(context.Background(), path, "docx")
	require.NoError(t, err)
	assert.Equal(t, "Jan Kowalski\nSenior Go Developer\nSkills: Go, Kubernetes", text)
}

func TestDispatcher_DOCRoutedToDOCXExtractor(t *testing.T) {
	path := writeDocx(t, sampleDocument)
	d := NewDispatcher("", &fakeRunner{}, nil)

	text, err := d.Extract(context.Background(), path, "cv.doc")
	require.NoError(t, err)
	assert.Contains(t, text, "Jan Kowalski")
}

func TestDispatcher_DOCXMissingDocumentPart(t *testing.T) {
	path := writeDocx(t, "")
	d := NewDispatcher("", &fakeRunner{}, nil)

	_, err := d.Extract(context.Background(), path, "docx")

	var extractErr *Error
	require.True(t, errors.As(err, &extractErr))
	assert.Contains(t, extractErr.Message, documentPart)
}

func TestDispatcher_DOCXNotAnArchive(t *testing.T) {
	path := writeFile(t, "legacy.doc", "\xd0\xcf\x11\xe0 binary word file")
	d := NewDispatcher("", &fakeRunner{}, nil)

	_, err := d.Extract(context.Background(), path, "doc")

	var extractErr *Error
	require.True(t, errors.As(err, &extractErr))
}

func TestDispatcher_PlainTextAndMarkdown(t *testing.T) {
	d := NewDispatcher("", &fakeRunner{}, nil)

	text, err := d.Extract(context.Background(), writeFile(t, "a.txt", "Jan\n\n\n\nGo   developer  "), "txt")
	require.NoError(t, err)
	assert.Equal(t, "Jan\n\nGo developer", text)

	text, err = d.Extract(context.Background(), writeFile(t, "a.md", "# Jan\n  - Go\n  - Rust"), ".md")
	require.NoError(t, err)
	assert.Equal(t, "# Jan\n  - Go\n  - Rust", text)
}

func TestDispatcher_InvalidUTF8(t *testing.T) {
	d := NewDispatcher("", &fakeRunner{}, nil)

	_, err := d.Extract(context.Background(), writeFile(t, "a.txt", "\xff\xfe\xfd"), "txt")

	var extractErr *Error
	require.True(t, errors.As(err, &extractErr))
}

func TestDispatcher_HTML(t *testing.T) {
	page := `<html><head><style>body{}</style></head><body>
<nav>Menu</nav><main><h1>Anna Nowak</h1><p>Data engineer</p></main>
<script>track()</script></body></html>`
	d := NewDispatcher("", &fakeRunner{}, nil)

	text, err := d.Extract(context.Background(), writeFile(t, "cv.html", page), "html")
	require.NoError(t, err)
	assert.Contains(t, text, "Anna Nowak")
	assert.Contains(t, text, "Data engineer")
	assert.NotContains(t, text, "Menu")
	assert.NotContains(t, text, "track()")
}

func TestDispatcher_EmptyText(t *testing.T) {
	d := NewDispatcher("", &fakeRunner{stdout: " \f \n"}, nil)

	_, err := d.Extract(context.Background(), "/scratch/scan.pdf", "pdf")

	var empty *EmptyTextError
	require.True(t, errors.As(err, &empty))
	assert.Equal(t, FormatPDF, empty.Format)
}

func TestDispatcher_CancelledContext(t *testing.T) {
	d := NewDispatcher("", &fakeRunner{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Extract(ctx, writeFile(t, "a.txt", "hello"), "txt")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"line endings", "a\r\nb\rc", "a\nb\nc"},
		{"space runs", "Go    and\t\tRust", "Go and Rust"},
		{"blank lines squeezed", "a\n\n\n\n\nb", "a\n\nb"},
		{"trailing space", "a   \n b ", "a\nb"},
		{"non-breaking space", "Jan\u00a0Kowalski", "Jan Kowalski"},
		{"bullet indent kept", "Skills\n    • Go\n    • SQL", "Skills\n    • Go\n    • SQL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.input))
		})
	}
}

func TestDOCXExtractor_PartSizeLimit(t *testing.T) {
	body := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` +
		strings.Repeat("x", 4096) + `</w:t></w:r></w:p></w:body></w:document>`
	path := writeDocx(t, body)

	_, err := (&DOCXExtractor{MaxPartBytes: 1024}).Extract(context.Background(), path)

	var extractErr *Error
	require.True(t, errors.As(err, &extractErr))
	assert.ErrorIs(t, err, errPartTooLarge)
	assert.Contains(t, extractErr.Message, "exceeds 1024 bytes")

	text, err := (&DOCXExtractor{MaxPartBytes: 8192}).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(text), 4096)
}

func TestCappedReader(t *testing.T) {
	r := &cappedReader{r: strings.NewReader(strings.Repeat("a", 10)), left: 10}
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Len(t, data, 10)

	r = &cappedReader{r: strings.NewReader(strings.Repeat("a", 11)), left: 10}
	_, err = io.ReadAll(r)
	assert.ErrorIs(t, err, errPartTooLarge)
}
