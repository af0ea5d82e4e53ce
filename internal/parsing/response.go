// Package parsing validates the remote model's reply and turns it into a CandidateProfile.
package parsing

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/cv-generator/internal/llm"
	"github.com/jonathan/cv-generator/internal/schemas"
	"github.com/jonathan/cv-generator/internal/types"
)

const excerptLen = 200

// Metadata is attached to a profile once it has been validated.
type Metadata struct {
	Language types.Language
	BlindCV  bool
}

// ValidateResponse parses a raw model reply. Surrounding whitespace and a
// markdown code fence are stripped first. The reply must be a JSON object
// carrying every required profile key; on success the request metadata is
// attached and nothing else about the content is changed.
func ValidateResponse(raw string, meta Metadata) (*types.CandidateProfile, error) {
	body := llm.CleanJSONBlock(raw)
	if body == "" {
		return nil, &MalformedResponseError{Message: "empty response"}
	}

	doc := []byte(body)
	var top any
	if err := json.Unmarshal(doc, &top); err != nil {
		return nil, &MalformedResponseError{Message: "response is not valid JSON", Excerpt: excerpt(body), Cause: err}
	}
	if _, ok := top.(map[string]any); !ok {
		return nil, &MalformedResponseError{Message: "response is not a JSON object", Excerpt: excerpt(body)}
	}

	if err := schemas.Validate(schemas.CandidateProfile, doc); err != nil {
		var ve *schemas.ValidationError
		if !errors.As(err, &ve) {
			return nil, err
		}
		if missing := ve.MissingRequired(); len(missing) > 0 {
			return nil, &IncompleteProfileError{Missing: missing}
		}
		return nil, &MalformedResponseError{Message: "response does not match the profile schema", Excerpt: excerpt(body), Cause: ve}
	}

	var profile types.CandidateProfile
	if err := json.Unmarshal(doc, &profile); err != nil {
		return nil, &MalformedResponseError{Message: "failed to decode profile", Excerpt: excerpt(body), Cause: err}
	}

	lang := meta.Language
	if lang == "" {
		lang = types.LanguagePrimary
	}
	profile.Language = lang.Code()
	profile.BlindCV = meta.BlindCV

	return &profile, nil
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= excerptLen {
		return s
	}
	cut := excerptLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
