package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jonathan/cv-generator/internal/extraction"
	"github.com/jonathan/cv-generator/internal/lifecycle"
	"github.com/jonathan/cv-generator/internal/llm"
	"github.com/jonathan/cv-generator/internal/rendering"
	"github.com/jonathan/cv-generator/internal/retry"
	"github.com/jonathan/cv-generator/internal/types"
)

const profileReply = "```json\n" + `{
  "name": "Łukasz Nowak",
  "first_name": "Łukasz",
  "position": "Backend Developer",
  "why_points": ["6 years of Go"],
  "education": [{"dates": "2012 – 2017", "institution": "PW", "degree": "MSc Computer Science"}],
  "skills": [{"label": "Languages:", "content": "Go, SQL"}],
  "certifications": [],
  "languages": ["Polish – native"],
  "experience": [{
    "dates": "2019 – currently",
    "company": "Acme",
    "industry": "Logistics",
    "position": "Backend Developer",
    "responsibilities": ["Built APIs"],
    "technologies": ["Go"]
  }]
}` + "\n```"

const cvText = "Łukasz Nowak\nBackend Developer\n\nExperience\n- Acme, 2019 - now"

// fakeModel returns scripted errors in order, then reply.
type fakeModel struct {
	mu      sync.Mutex
	errs    []error
	reply   string
	block   bool
	calls   int
	prompts []string
}

func (m *fakeModel) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	n := m.calls
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if n <= len(m.errs) {
		return "", m.errs[n-1]
	}
	return m.reply, nil
}

func (m *fakeModel) Model() string { return "fake" }
func (m *fakeModel) Close() error  { return nil }

func (m *fakeModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func overloaded() error {
	return &llm.APIError{Provider: "anthropic", Status: 529, Kind: "overloaded_error", Message: "Overloaded"}
}

// fakeRenderer copies the staged profile into the output document.
type fakeRenderer struct {
	mu      sync.Mutex
	profile []byte
	err     error
	partial bool
}

func (r *fakeRenderer) Render(_ context.Context, profilePath, templatePath, outputPath string) (string, error) {
	data, err := os.ReadFile(profilePath)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	r.profile = data
	r.mu.Unlock()
	if r.partial {
		if werr := os.WriteFile(outputPath, []byte("half"), 0o600); werr != nil {
			return "", werr
		}
	}
	if r.err != nil {
		if r.partial {
			return outputPath, r.err
		}
		return "", r.err
	}
	if err := os.WriteFile(outputPath, []byte("DOCX:"+templatePath), 0o600); err != nil {
		return "", err
	}
	return outputPath, nil
}

type fakeReferences struct {
	text string
	err  error
	urls []string
}

func (f *fakeReferences) Text(_ context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	return f.text, f.err
}

type fixture struct {
	dir      string
	model    *fakeModel
	renderer *fakeRenderer
	refs     *fakeReferences
	delays   []time.Duration
	orch     *Orchestrator
}

func newFixture(t *testing.T, maxRetries int, ceiling time.Duration) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	fx := &fixture{
		dir:      t.TempDir(),
		model:    &fakeModel{reply: profileReply},
		renderer: &fakeRenderer{},
		refs:     &fakeReferences{text: "Reference: senior Go engineer"},
	}

	manager, err := lifecycle.NewManager(fx.dir, logger)
	require.NoError(t, err)

	var mu sync.Mutex
	controller := retry.New(retry.Config{MaxRetries: maxRetries, BaseDelay: 2 * time.Second}, logger,
		retry.WithSleeper(func(_ context.Context, d time.Duration) error {
			mu.Lock()
			defer mu.Unlock()
			fx.delays = append(fx.delays, d)
			return nil
		}))

	fx.orch, err = New(Config{
		Lifecycle:    manager,
		Extractor:    extraction.NewDispatcher("", nil, logger),
		References:   fx.refs,
		Model:        fx.model,
		Retry:        controller,
		Renderer:     fx.renderer,
		TemplatePath: "template.docx",
		Ceiling:      ceiling,
		Logger:       logger,
	})
	require.NoError(t, err)
	return fx
}

func (fx *fixture) assertScratchEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(fx.dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Empty(t, names, "scratch directory should be empty")
}

func textUpload(name, body string) Document {
	return Document{Name: name, Body: strings.NewReader(body)}
}

func requireFailure(t *testing.T, err error) *Failure {
	t.Helper()
	require.Error(t, err)
	f, ok := AsFailure(err)
	require.True(t, ok, "expected *Failure, got %T", err)
	return f
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lifecycle")
}

func TestProcess_Success(t *testing.T) {
	fx := newFixture(t, 4, time.Minute)

	var events []ProgressEvent
	res, err := fx.orch.Process(context.Background(), Input{
		RequestID:  "req-1",
		Upload:     textUpload("cv.txt", cvText),
		Options:    types.Options{Language: types.LanguageSecondary, Anonymize: true},
		OnProgress: func(e ProgressEvent) { events = append(events, e) },
	})
	require.NoError(t, err)

	assert.Equal(t, "req-1", res.RequestID)
	assert.Equal(t, "CV_B2B__ukasz_Nowak.docx", res.Filename)
	assert.Equal(t, rendering.ContentTypeDOCX, res.ContentType)
	assert.Equal(t, "DOCX:template.docx", string(res.Document))
	assert.Equal(t, "en", res.Profile.Language)
	assert.True(t, res.Profile.BlindCV)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, types.AttemptSuccess, res.Attempts[0].Outcome)

	var staged map[string]any
	require.NoError(t, json.Unmarshal(fx.renderer.profile, &staged))
	assert.Equal(t, "en", staged["language"])
	assert.Equal(t, true, staged["blind_cv"])

	require.Len(t, fx.model.prompts, 1)
	assert.Contains(t, fx.model.prompts[0], "CV to analyze:")
	assert.Contains(t, fx.model.prompts[0], "Backend Developer")

	var stages []Stage
	for _, e := range events {
		stages = append(stages, e.Stage)
		assert.Equal(t, "req-1", e.RequestID)
	}
	assert.Equal(t, []Stage{
		StageStoreUpload, StageExtract, StageCompose, StageRemoteCall,
		StageValidate, StageStageProfile, StageRender, StageReadOutput,
	}, stages)
	assert.Len(t, res.Timings, len(stages))

	fx.assertScratchEmpty(t)
}

func TestProcess_RetriesOverloadThenSucceeds(t *testing.T) {
	fx := newFixture(t, 4, time.Minute)
	fx.model.errs = []error{overloaded(), overloaded()}

	res, err := fx.orch.Process(context.Background(), Input{Upload: textUpload("cv.md", cvText)})
	require.NoError(t, err)

	require.Len(t, res.Attempts, 3)
	assert.Equal(t, types.AttemptFailure, res.Attempts[0].Outcome)
	assert.Equal(t, "retryable", res.Attempts[0].Classification)
	assert.Equal(t, 529, res.Attempts[0].StatusCode)
	assert.Equal(t, types.AttemptSuccess, res.Attempts[2].Outcome)

	var total time.Duration
	for _, d := range fx.delays {
		total += d
	}
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, fx.delays)
	assert.Equal(t, 6*time.Second, total)
	assert.Equal(t, "pl", res.Profile.Language)

	fx.assertScratchEmpty(t)
}

func TestProcess_UnsupportedFormatMakesNoRemoteCall(t *testing.T) {
	fx := newFixture(t, 4, time.Minute)

	_, err := fx.orch.Process(context.Background(), Input{Upload: textUpload("cv.rtf", cvText)})
	f := requireFailure(t, err)

	assert.Equal(t, KindUnsupportedFormat, f.Kind)
	assert.Equal(t, StageExtract, f.Stage)
	assert.NotEmpty(t, f.RequestID)
	assert.Contains(t, f.Detail, "pdf")
	assert.Empty(t, f.Attempts)
	assert.Zero(t, fx.model.Calls())

	fx.assertScratchEmpty(t)
}

func TestProcess_RetryExhausted(t *testing.T) {
	fx := newFixture(t, 4, time.Minute)
	fx.model.errs = []error{overloaded(), overloaded(), overloaded(), overloaded(), overloaded()}

	_, err := fx.orch.Process(context.Background(), Input{Upload: textUpload("cv.txt", cvText)})
	f := requireFailure(t, err)

	assert.Equal(t, KindRetryExhausted, f.Kind)
	assert.Equal(t, StageRemoteCall, f.Stage)
	assert.True(t, f.Retryable)
	assert.Len(t, f.Attempts, 5)
	assert.Equal(t, 5, fx.model.Calls())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}, fx.delays)

	var exhausted *retry.ExhaustedError
	require.True(t, errors.As(err, &exhausted))

	fx.assertScratchEmpty(t)
}

func TestProcess_TerminalRemoteError(t *testing.T) {
	fx := newFixture(t, 4, time.Minute)
	fx.model.errs = []error{&llm.APIError{Provider: "anthropic", Status: 429, Kind: "rate_limit_error"}}

	_, err := fx.orch.Process(context.Background(), Input{Upload: textUpload("cv.txt", cvText)})
	f := requireFailure(t, err)

	assert.Equal(t, KindRemoteCallFailed, f.Kind)
	assert.False(t, f.Retryable)
	assert.Equal(t, "rate_limit_error (status 429)", f.Detail)
	assert.Len(t, f.Attempts, 1)
	assert.Empty(t, fx.delays)

	fx.assertScratchEmpty(t)
}

func TestProcess_RemoteCeiling(t *testing.T) {
	fx := newFixture(t, 4, 20*time.Millisecond)
	fx.model.block = true

	_, err := fx.orch.Process(context.Background(), Input{Upload: textUpload("cv.txt", cvText)})
	f := requireFailure(t, err)

	assert.Equal(t, KindRemoteCallFailed, f.Kind)
	assert.True(t, f.Retryable)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	fx.assertScratchEmpty(t)
}

func TestProcess_ValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		kind  Kind
	}{
		{name: "empty reply", reply: "   ", kind: KindMalformedResponse},
		{name: "not json", reply: "Sorry, I cannot help with that.", kind: KindMalformedResponse},
		{name: "missing experience", reply: `{"name":"A","first_name":"A","position":"P","why_points":[],"education":[],"skills":[],"certifications":[],"languages":[]}`, kind: KindIncompleteProfile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, 4, time.Minute)
			fx.model.reply = tt.reply

			_, err := fx.orch.Process(context.Background(), Input{Upload: textUpload("cv.txt", cvText)})
			f := requireFailure(t, err)

			assert.Equal(t, tt.kind, f.Kind)
			assert.Equal(t, StageValidate, f.Stage)
			assert.Len(t, f.Attempts, 1)
			assert.Nil(t, fx.renderer.profile)
			if tt.kind == KindIncompleteProfile {
				assert.Equal(t, "missing: experience", f.Detail)
			}
			fx.assertScratchEmpty(t)
		})
	}
}

func TestProcess_RenderFailureRemovesPartialOutput(t *testing.T) {
	fx := newFixture(t, 4, time.Minute)
	fx.renderer.partial = true
	fx.renderer.err = &rendering.RenderError{Message: "render script failed", ExitCode: 1, Stderr: "Traceback"}

	_, err := fx.orch.Process(context.Background(), Input{Upload: textUpload("cv.txt", cvText)})
	f := requireFailure(t, err)

	assert.Equal(t, KindRenderFailed, f.Kind)
	assert.Equal(t, "render script failed", f.Detail)
	assert.NotContains(t, f.Detail, "Traceback")

	fx.assertScratchEmpty(t)
}

func TestProcess_EmptyDocument(t *testing.T) {
	fx := newFixture(t, 4, time.Minute)

	_, err := fx.orch.Process(context.Background(), Input{Upload: textUpload("cv.txt", " \n\t\n")})
	f := requireFailure(t, err)

	assert.Equal(t, KindExtractionFailed, f.Kind)
	assert.Zero(t, fx.model.Calls())
	fx.assertScratchEmpty(t)
}

func TestProcess_InvalidInput(t *testing.T) {
	fx := newFixture(t, 4, time.Minute)

	_, err := fx.orch.Process(context.Background(), Input{Upload: Document{Name: "cv.txt"}})
	f := requireFailure(t, err)
	assert.Equal(t, KindInvalidInput, f.Kind)

	_, err = fx.orch.Process(context.Background(), Input{
		Upload:  textUpload("cv.txt", cvText),
		Options: types.Options{Language: "de"},
	})
	f = requireFailure(t, err)
	assert.Equal(t, KindInvalidInput, f.Kind)

	assert.Zero(t, fx.model.Calls())
	fx.assertScratchEmpty(t)
}

func TestProcess_ReferenceFile(t *testing.T) {
	fx := newFixture(t, 4, time.Minute)

	ref := textUpload("reference.txt", "Reference profile: staff engineer")
	_, err := fx.orch.Process(context.Background(), Input{
		Upload:    textUpload("cv.txt", cvText),
		Reference: &ref,
		Options:   types.Options{ReferenceURL: "https://example.com/profile"},
	})
	require.NoError(t, err)

	require.Len(t, fx.model.prompts, 1)
	assert.Contains(t, fx.model.prompts[0], "staff engineer")
	assert.Empty(t, fx.refs.urls, "a reference file takes precedence over a URL")
	fx.assertScratchEmpty(t)
}

func TestProcess_ReferenceURL(t *testing.T) {
	fx := newFixture(t, 4, time.Minute)

	_, err := fx.orch.Process(context.Background(), Input{
		Upload:  textUpload("cv.txt", cvText),
		Options: types.Options{ReferenceURL: "https://example.com/profile"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/profile"}, fx.refs.urls)
	assert.Contains(t, fx.model.prompts[0], "senior Go engineer")
}

func TestProcess_ReferenceUnsupportedFormat(t *testing.T) {
	fx := newFixture(t, 4, time.Minute)

	ref := textUpload("reference.xlsx", "x")
	_, err := fx.orch.Process(context.Background(), Input{
		Upload:    textUpload("cv.txt", cvText),
		Reference: &ref,
	})
	f := requireFailure(t, err)
	assert.Equal(t, KindUnsupportedFormat, f.Kind)
	assert.Equal(t, StageReference, f.Stage)
	assert.Zero(t, fx.model.Calls())
	fx.assertScratchEmpty(t)
}

func TestProcess_ConcurrentRequestsAreIsolated(t *testing.T) {
	fx := newFixture(t, 4, time.Minute)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.orch.Process(context.Background(), Input{Upload: textUpload("cv.txt", cvText)})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	fx.assertScratchEmpty(t)
}

func TestProcess_LongUploadName(t *testing.T) {
	fx := newFixture(t, 4, time.Minute)

	res, err := fx.orch.Process(context.Background(), Input{
		Upload: textUpload(strings.Repeat("a", 250)+".txt", cvText),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Document)
	fx.assertScratchEmpty(t)
}

func TestProcess_ReferenceURLWithoutSource(t *testing.T) {
	dir := t.TempDir()
	logger := zaptest.NewLogger(t)
	manager, err := lifecycle.NewManager(dir, logger)
	require.NoError(t, err)

	model := &fakeModel{reply: profileReply}
	orch, err := New(Config{
		Lifecycle:    manager,
		Extractor:    extraction.NewDispatcher("", nil, logger),
		Model:        model,
		Retry:        retry.New(retry.Config{MaxRetries: 0, BaseDelay: time.Second}, logger),
		Renderer:     &fakeRenderer{},
		TemplatePath: "template.docx",
		Logger:       logger,
	})
	require.NoError(t, err)

	_, err = orch.Process(context.Background(), Input{
		Upload:  textUpload("cv.txt", cvText),
		Options: types.Options{ReferenceURL: "http://169.254.169.254/latest/meta-data"},
	})
	f := requireFailure(t, err)
	assert.Equal(t, KindInvalidInput, f.Kind)
	assert.Equal(t, StageReference, f.Stage)
	assert.Zero(t, model.Calls())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
