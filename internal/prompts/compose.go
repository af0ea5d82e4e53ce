package prompts

import (
	"fmt"
	"strings"

	"github.com/jonathan/cv-generator/internal/types"
)

// File is the prompt file used for CV extraction.
const File = "cv.json"

// Prompt key prefixes; the full key is "<prefix>-<language>".
const (
	KeyBase           = "base"
	KeyEnhance        = "enhance"
	KeyReference      = "reference"
	KeyDocumentHeader = "document-header"
)

const sectionSeparator = "\n\n"

// Key returns the prompt key for prefix in the given language.
func Key(prefix string, lang types.Language) string {
	return prefix + "-" + string(lang)
}

// RequiredKeys lists every key Compose may read.
func RequiredKeys() []string {
	var keys []string
	for _, lang := range []types.Language{types.LanguagePrimary, types.LanguageSecondary} {
		for _, prefix := range []string{KeyBase, KeyEnhance, KeyReference, KeyDocumentHeader} {
			keys = append(keys, Key(prefix, lang))
		}
	}
	return keys
}

// ComposeOptions selects the prompt variant.
type ComposeOptions struct {
	Language types.Language
	Enhance  bool
}

// Compose builds the model prompt. Sections always appear in the same order:
// base instructions, the enhancement block when requested, the reference
// block when referenceText is non-blank, then the document header followed
// by the extracted CV text. The output depends only on the arguments.
func Compose(opts ComposeOptions, extractedText, referenceText string) (string, error) {
	lang := opts.Language
	if lang == "" {
		lang = types.LanguagePrimary
	}
	if lang != types.LanguagePrimary && lang != types.LanguageSecondary {
		return "", fmt.Errorf("unknown prompt language %q", lang)
	}

	base, err := Get(File, Key(KeyBase, lang))
	if err != nil {
		return "", err
	}
	sections := []string{base}

	if opts.Enhance {
		enhance, err := Get(File, Key(KeyEnhance, lang))
		if err != nil {
			return "", err
		}
		sections = append(sections, enhance)
	}

	if ref := strings.TrimSpace(referenceText); ref != "" {
		tmpl, err := Get(File, Key(KeyReference, lang))
		if err != nil {
			return "", err
		}
		sections = append(sections, Format(tmpl, map[string]string{"Reference": ref}))
	}

	header, err := Get(File, Key(KeyDocumentHeader, lang))
	if err != nil {
		return "", err
	}
	sections = append(sections, header+sectionSeparator+extractedText)

	return strings.Join(sections, sectionSeparator), nil
}
