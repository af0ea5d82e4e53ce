package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/cv-generator/internal/config"
	"github.com/jonathan/cv-generator/internal/extraction"
	"github.com/jonathan/cv-generator/internal/fetch"
	"github.com/jonathan/cv-generator/internal/lifecycle"
	"github.com/jonathan/cv-generator/internal/llm"
	"github.com/jonathan/cv-generator/internal/metrics"
	"github.com/jonathan/cv-generator/internal/pipeline"
	"github.com/jonathan/cv-generator/internal/rendering"
	"github.com/jonathan/cv-generator/internal/retry"
)

// buildOrchestrator wires the pipeline collaborators from cfg. The returned
// close function releases the model client.
func buildOrchestrator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pipeline.Orchestrator, func(), error) {
	manager, err := lifecycle.NewManager(cfg.Pipeline.ScratchDir, logger,
		lifecycle.WithCleanupFailureHook(metrics.AddCleanupFailures))
	if err != nil {
		return nil, nil, err
	}

	references := referenceSource(cfg, logger)

	model, err := llm.NewClient(ctx, cfg.LLMClientConfig(), cfg.APIKey())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s client: %w", cfg.LLM.Provider, err)
	}
	logger.Info("model client ready",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", model.Model()))

	orch, err := pipeline.New(pipeline.Config{
		Lifecycle:  manager,
		Extractor:  extraction.NewDispatcher(cfg.Pipeline.PdftotextBin, nil, logger),
		References: references,
		Model:      model,
		Retry:      retry.New(cfg.RetryPolicy(), logger),
		Renderer: &rendering.ScriptRenderer{
			Python:  cfg.Render.Python,
			Script:  cfg.Render.Script,
			Timeout: cfg.Render.Timeout,
			Logger:  logger,
		},
		TemplatePath: cfg.Render.TemplatePath,
		Ceiling:      cfg.Retry.RemoteCallCeiling,
		Logger:       logger,
	})
	if err != nil {
		_ = model.Close()
		return nil, nil, err
	}

	closeFn := func() {
		if err := model.Close(); err != nil {
			logger.Warn("failed to close model client", zap.Error(err))
		}
	}
	return orch, closeFn, nil
}

// referenceSource returns nil unless reference URLs are enabled, so the
// pipeline rejects reference_url by default.
func referenceSource(cfg *config.Config, logger *zap.Logger) pipeline.ReferenceSource {
	if !cfg.Pipeline.ReferenceURLs {
		return nil
	}
	var browser fetch.BrowserFunc
	if cfg.Pipeline.UseBrowser {
		browser = fetch.ChromeRenderer(cfg.Pipeline.FetchTimeout, logger)
	}
	opts := fetch.DefaultOptions()
	opts.Timeout = cfg.Pipeline.FetchTimeout
	return fetch.NewReferenceFetcher(opts, browser, logger)
}
