package extraction

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/cv-generator/internal/fetch"
)

var (
	spaceRun     = regexp.MustCompile(`[\t\p{Zs}]+`)
	blankLineRun = regexp.MustCompile(`\n\n\n+`)
	bulletPrefix = []string{"- ", "* ", "• ", "· "}
)

const maxTextBytes = 10 << 20

// PlainTextExtractor reads UTF-8 text and Markdown files as-is.
type PlainTextExtractor struct{}

// Extract reads the file, rejecting content that is not valid UTF-8
func (e *PlainTextExtractor) Extract(ctx context.Context, path string) (string, error) {
	content, err := readLimited(ctx, path)
	if err != nil {
		return "", &Error{Format: FormatText, Message: "failed to read file", Cause: err}
	}
	if !utf8.Valid(content) {
		return "", &Error{Format: FormatText, Message: "file is not valid UTF-8"}
	}
	return string(content), nil
}

// HTMLExtractor strips markup from saved HTML pages.
type HTMLExtractor struct{}

// Extract returns the main text of the page
func (e *HTMLExtractor) Extract(ctx context.Context, path string) (string, error) {
	content, err := readLimited(ctx, path)
	if err != nil {
		return "", &Error{Format: FormatHTML, Message: "failed to read file", Cause: err}
	}
	text, err := fetch.ExtractMainText(string(content), fetch.DefaultTextSelectors())
	if err != nil {
		return "", &Error{Format: FormatHTML, Message: "failed to parse HTML", Cause: err}
	}
	return text, nil
}

func readLimited(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxTextBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", maxTextBytes)
	}
	return os.ReadFile(path)
}

// CleanText normalizes extracted text while preserving its line structure:
// line endings become LF, runs of spaces collapse, trailing spaces go and at
// most one blank line separates blocks.
func CleanText(content string) string {
	if content == "" {
		return ""
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = strings.ReplaceAll(content, " ", " ")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = cleanLine(line)
	}

	result := strings.Join(lines, "\n")
	result = blankLineRun.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}

func cleanLine(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ""
	}

	// bullets keep a normalized indent so nesting survives
	for _, p := range bulletPrefix {
		if strings.HasPrefix(trimmed, p) {
			lead := len(line) - len(strings.TrimLeft(line, " \t"))
			return strings.Repeat(" ", lead) + spaceRun.ReplaceAllString(trimmed, " ")
		}
	}

	return spaceRun.ReplaceAllString(trimmed, " ")
}
