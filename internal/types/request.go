package types

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Language selects the instruction set used for the remote model and the renderer's labels.
type Language string

const (
	// LanguagePrimary produces a Polish CV
	LanguagePrimary Language = "primary"
	// LanguageSecondary produces an English CV
	LanguageSecondary Language = "secondary"
)

// ParseLanguage maps a form value to a Language. Empty input selects the primary language.
// The short codes "pl" and "en" are accepted as aliases.
func ParseLanguage(s string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "primary", "pl":
		return LanguagePrimary, true
	case "secondary", "en":
		return LanguageSecondary, true
	default:
		return "", false
	}
}

// Code returns the short language code handed to the render script.
func (l Language) Code() string {
	if l == LanguageSecondary {
		return "en"
	}
	return "pl"
}

// Options are the per-request knobs supplied by the caller.
type Options struct {
	Language     Language `json:"language" validate:"required,oneof=primary secondary"`
	Enhance      bool     `json:"ai_enhance"`
	Anonymize    bool     `json:"blind_cv"`
	ReferenceURL string   `json:"reference_url,omitempty" validate:"omitempty,url"`
}

// StageTiming records how long one pipeline stage took.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
	Failed   bool          `json:"failed,omitempty"`
}

// RequestContext carries the identity and accumulated diagnostics of one request.
// Everything except the timing and attempt slices is fixed at construction.
type RequestContext struct {
	ID        string
	CreatedAt time.Time
	Options   Options

	mu       sync.Mutex
	timings  []StageTiming
	attempts []AttemptRecord
}

// NewRequestContext creates a context with a fresh request identifier.
func NewRequestContext(opts Options) *RequestContext {
	return &RequestContext{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		Options:   opts,
	}
}

// RecordTiming appends a stage timing.
func (rc *RequestContext) RecordTiming(t StageTiming) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.timings = append(rc.timings, t)
}

// RecordAttempt appends an attempt record. Implements retry.Recorder.
func (rc *RequestContext) RecordAttempt(a AttemptRecord) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.attempts = append(rc.attempts, a)
}

// Timings returns a copy of the recorded stage timings.
func (rc *RequestContext) Timings() []StageTiming {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]StageTiming, len(rc.timings))
	copy(out, rc.timings)
	return out
}

// Attempts returns a copy of the recorded attempt log.
func (rc *RequestContext) Attempts() []AttemptRecord {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]AttemptRecord, len(rc.attempts))
	copy(out, rc.attempts)
	return out
}

// Elapsed returns the time since the request was created.
func (rc *RequestContext) Elapsed() time.Duration {
	return time.Since(rc.CreatedAt)
}
