// Package pipeline runs one CV request end to end: store the upload, extract
// its text, call the remote model with retries, validate the reply, render the
// document and release every temporary file.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jonathan/cv-generator/internal/lifecycle"
	"github.com/jonathan/cv-generator/internal/llm"
	"github.com/jonathan/cv-generator/internal/metrics"
	"github.com/jonathan/cv-generator/internal/parsing"
	"github.com/jonathan/cv-generator/internal/prompts"
	"github.com/jonathan/cv-generator/internal/rendering"
	"github.com/jonathan/cv-generator/internal/retry"
	"github.com/jonathan/cv-generator/internal/types"
)

// DefaultRemoteCallCeiling bounds the whole remote phase, backoff included.
const DefaultRemoteCallCeiling = 5 * time.Minute

// TextExtractor turns a stored document into text. Implemented by *extraction.Dispatcher.
type TextExtractor interface {
	Extract(ctx context.Context, path, declaredFormat string) (string, error)
}

// ReferenceSource fetches reference profile text by URL. Implemented by *fetch.ReferenceFetcher.
type ReferenceSource interface {
	Text(ctx context.Context, url string) (string, error)
}

// Document is an uploaded file. Name is the client-supplied file name; its
// extension selects the extractor.
type Document struct {
	Name string
	Body io.Reader
}

// Input is one generation request.
type Input struct {
	// RequestID is used when set, otherwise a new one is generated.
	RequestID  string
	Upload     Document
	Reference  *Document
	Options    types.Options
	OnProgress ProgressCallback
}

// Result is a rendered CV.
type Result struct {
	RequestID   string
	Filename    string
	ContentType string
	Document    []byte
	Profile     *types.CandidateProfile
	Timings     []types.StageTiming
	Attempts    []types.AttemptRecord
	Elapsed     time.Duration
}

// Config holds the collaborators of an Orchestrator.
type Config struct {
	Lifecycle    *lifecycle.Manager
	Extractor    TextExtractor
	References   ReferenceSource // optional; nil rejects reference URLs
	Model        llm.Client
	Retry        *retry.Controller
	Renderer     rendering.Renderer
	TemplatePath string
	Ceiling      time.Duration
	Logger       *zap.Logger
}

// Orchestrator runs requests. It holds no per-request state and is safe for
// concurrent use.
type Orchestrator struct {
	cfg      Config
	validate *validator.Validate
	logger   *zap.Logger
}

// New checks the required collaborators and returns an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	switch {
	case cfg.Lifecycle == nil:
		return nil, fmt.Errorf("pipeline: lifecycle manager is required")
	case cfg.Extractor == nil:
		return nil, fmt.Errorf("pipeline: extractor is required")
	case cfg.Model == nil:
		return nil, fmt.Errorf("pipeline: model client is required")
	case cfg.Retry == nil:
		return nil, fmt.Errorf("pipeline: retry controller is required")
	case cfg.Renderer == nil:
		return nil, fmt.Errorf("pipeline: renderer is required")
	case cfg.TemplatePath == "":
		return nil, fmt.Errorf("pipeline: template path is required")
	}
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = DefaultRemoteCallCeiling
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		validate: validator.New(),
		logger:   logger.Named("pipeline"),
	}, nil
}

// run is the state of one Process call.
type run struct {
	o      *Orchestrator
	rc     *types.RequestContext
	scope  *lifecycle.Scope
	logger *zap.Logger
	notify ProgressCallback
}

// Process handles one request. Every temporary file it creates is removed
// before it returns, whatever the outcome. The returned error is always a *Failure.
func (o *Orchestrator) Process(ctx context.Context, in Input) (*Result, error) {
	done := metrics.TrackInFlight()
	defer done()

	if in.Options.Language == "" {
		in.Options.Language = types.LanguagePrimary
	}
	rc := types.NewRequestContext(in.Options)
	if in.RequestID != "" {
		rc.ID = in.RequestID
	}

	r := &run{
		o:      o,
		rc:     rc,
		scope:  o.cfg.Lifecycle.Acquire(rc.ID),
		logger: o.logger.With(zap.String("request_id", rc.ID)),
		notify: in.OnProgress,
	}
	defer r.release()

	r.logger.Info("processing request",
		zap.String("language", string(in.Options.Language)),
		zap.Bool("ai_enhance", in.Options.Enhance),
		zap.Bool("blind_cv", in.Options.Anonymize),
		zap.Bool("has_reference", in.Reference != nil || in.Options.ReferenceURL != ""))

	result, f := r.execute(ctx, in)
	if f != nil {
		f.RequestID = rc.ID
		f.Elapsed = rc.Elapsed()
		f.Attempts = rc.Attempts()
		metrics.IncreaseRequestsTotalMetric(metrics.OutcomeFailure, string(f.Kind))
		r.logger.Error("request failed",
			zap.String("kind", string(f.Kind)),
			zap.String("stage", string(f.Stage)),
			zap.Int("attempts", len(f.Attempts)),
			zap.Duration("elapsed", f.Elapsed),
			zap.Error(f.Cause))
		return nil, f
	}

	result.Timings = rc.Timings()
	result.Attempts = rc.Attempts()
	result.Elapsed = rc.Elapsed()
	metrics.IncreaseRequestsTotalMetric(metrics.OutcomeSuccess, "")
	r.logger.Info("request completed",
		zap.String("filename", result.Filename),
		zap.Int("bytes", len(result.Document)),
		zap.Int("attempts", len(result.Attempts)),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

func (r *run) release() {
	if err := r.scope.ReleaseAll(); err != nil {
		r.logger.Warn("temporary files were not fully removed", zap.Error(err))
	}
}

func (r *run) execute(ctx context.Context, in Input) (*Result, *Failure) {
	opts := in.Options
	if err := r.o.validate.Struct(opts); err != nil {
		return nil, invalidInput(StageStoreUpload, "invalid options: "+err.Error(), err)
	}
	if in.Upload.Body == nil {
		return nil, invalidInput(StageStoreUpload, "a CV file is required", nil)
	}

	var upload *lifecycle.Artifact
	if f := r.stage(StageStoreUpload, "stored upload", func() *Failure {
		var err error
		upload, err = r.store(lifecycle.KindUpload, in.Upload)
		if err != nil {
			return internalFailure(StageStoreUpload, err)
		}
		return nil
	}); f != nil {
		return nil, f
	}

	var cvText string
	if f := r.stage(StageExtract, "extracted CV text", func() *Failure {
		var err error
		cvText, err = r.o.cfg.Extractor.Extract(ctx, upload.Path, in.Upload.Name)
		if err != nil {
			return extractionFailure(StageExtract, "CV", err)
		}
		return nil
	}); f != nil {
		return nil, f
	}

	var referenceText string
	if in.Reference != nil || opts.ReferenceURL != "" {
		if f := r.stage(StageReference, "read reference profile", func() *Failure {
			var f *Failure
			referenceText, f = r.reference(ctx, in)
			return f
		}); f != nil {
			return nil, f
		}
	}

	var prompt string
	if f := r.stage(StageCompose, "composed prompt", func() *Failure {
		var err error
		prompt, err = prompts.Compose(prompts.ComposeOptions{
			Language: opts.Language,
			Enhance:  opts.Enhance,
		}, cvText, referenceText)
		if err != nil {
			return internalFailure(StageCompose, err)
		}
		return nil
	}); f != nil {
		return nil, f
	}

	var reply string
	if f := r.stage(StageRemoteCall, "received model reply", func() *Failure {
		callCtx, cancel := context.WithTimeout(ctx, r.o.cfg.Ceiling)
		defer cancel()

		var err error
		reply, err = retry.Execute(callCtx, r.o.cfg.Retry, r.rc.ID, attemptRecorder{r.rc},
			func(ctx context.Context) (string, error) {
				return r.o.cfg.Model.Generate(ctx, prompt)
			})
		if err != nil {
			return remoteFailure(err)
		}
		return nil
	}); f != nil {
		return nil, f
	}

	var profile *types.CandidateProfile
	if f := r.stage(StageValidate, "validated profile", func() *Failure {
		var err error
		profile, err = parsing.ValidateResponse(reply, parsing.Metadata{
			Language: opts.Language,
			BlindCV:  opts.Anonymize,
		})
		if err != nil {
			var malformed *parsing.MalformedResponseError
			if errors.As(err, &malformed) && malformed.Excerpt != "" {
				r.logger.Debug("rejected model reply", zap.String("excerpt", malformed.Excerpt))
			}
			return validationFailure(err)
		}
		return nil
	}); f != nil {
		return nil, f
	}

	var staging *lifecycle.Artifact
	if f := r.stage(StageStageProfile, "wrote profile data", func() *Failure {
		var err error
		staging, err = r.writeProfile(profile)
		if err != nil {
			return internalFailure(StageStageProfile, err)
		}
		return nil
	}); f != nil {
		return nil, f
	}

	var produced string
	if f := r.stage(StageRender, "rendered document", func() *Failure {
		output, err := r.scope.Register(lifecycle.KindOutput, "cv.docx")
		if err != nil {
			return internalFailure(StageRender, err)
		}
		produced, err = r.o.cfg.Renderer.Render(ctx, staging.Path, r.o.cfg.TemplatePath, output.Path)
		if produced != "" {
			if _, terr := r.scope.Track(lifecycle.KindOutput, produced); terr != nil {
				return internalFailure(StageRender, terr)
			}
		}
		if err != nil {
			return renderFailure(err)
		}
		return nil
	}); f != nil {
		return nil, f
	}

	var doc []byte
	if f := r.stage(StageReadOutput, "read document", func() *Failure {
		var err error
		doc, err = os.ReadFile(produced)
		if err != nil {
			return internalFailure(StageReadOutput, err)
		}
		return nil
	}); f != nil {
		return nil, f
	}

	return &Result{
		RequestID:   r.rc.ID,
		Filename:    rendering.OutputFilename(profile.Name),
		ContentType: rendering.ContentTypeDOCX,
		Document:    doc,
		Profile:     profile,
	}, nil
}

// stage runs fn, records its timing and reports progress on success.
func (r *run) stage(s Stage, message string, fn func() *Failure) *Failure {
	start := time.Now()
	f := fn()
	d := time.Since(start)

	failed := f != nil
	r.rc.RecordTiming(types.StageTiming{Stage: string(s), Duration: d, Failed: failed})
	metrics.ObserveStageDuration(string(s), d, failed)

	if failed {
		return f
	}
	r.logger.Debug("stage completed", zap.String("stage", string(s)), zap.Duration("duration", d))
	if r.notify != nil {
		r.notify(ProgressEvent{
			RequestID: r.rc.ID,
			Stage:     s,
			Category:  CategoryOf(s),
			Message:   message,
		})
	}
	return nil
}

// store registers an artifact before writing the document body to it.
func (r *run) store(kind lifecycle.Kind, doc Document) (*lifecycle.Artifact, error) {
	a, err := r.scope.Register(kind, doc.Name)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(a.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s file: %w", kind, err)
	}
	n, err := io.Copy(f, doc.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write %s file: %w", kind, err)
	}
	r.logger.Debug("stored document",
		zap.String("kind", string(kind)),
		zap.String("name", filepath.Base(doc.Name)),
		zap.Int64("bytes", n))
	return a, nil
}

// reference returns the reference profile text. An uploaded reference file
// takes precedence over a reference URL.
func (r *run) reference(ctx context.Context, in Input) (string, *Failure) {
	if in.Reference != nil {
		if in.Options.ReferenceURL != "" {
			r.logger.Info("reference file supplied, ignoring reference URL")
		}
		if in.Reference.Body == nil {
			return "", invalidInput(StageReference, "the reference file is empty", nil)
		}
		a, err := r.store(lifecycle.KindReference, *in.Reference)
		if err != nil {
			return "", internalFailure(StageReference, err)
		}
		text, err := r.o.cfg.Extractor.Extract(ctx, a.Path, in.Reference.Name)
		if err != nil {
			return "", extractionFailure(StageReference, "reference profile", err)
		}
		return text, nil
	}

	if r.o.cfg.References == nil {
		return "", invalidInput(StageReference, "reference URLs are not supported", nil)
	}
	text, err := r.o.cfg.References.Text(ctx, in.Options.ReferenceURL)
	if err != nil {
		return "", extractionFailure(StageReference, "reference profile", err)
	}
	return strings.TrimSpace(text), nil
}

func (r *run) writeProfile(profile *types.CandidateProfile) (*lifecycle.Artifact, error) {
	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}
	a, err := r.scope.Register(lifecycle.KindStaging, "profile.json")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(a.Path, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write profile data: %w", err)
	}
	return a, nil
}

// attemptRecorder appends attempts to the request and counts them.
type attemptRecorder struct {
	rc *types.RequestContext
}

func (a attemptRecorder) RecordAttempt(rec types.AttemptRecord) {
	a.rc.RecordAttempt(rec)
	metrics.IncreaseRemoteAttemptsMetric(string(rec.Outcome), rec.Classification, rec.Delay)
}
