package rendering

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultPython is the interpreter used for the render script
	DefaultPython = "python3"
	// DefaultTimeout bounds a single render
	DefaultTimeout = 60 * time.Second

	maxStderr = 4 << 10
)

// Renderer produces a document from a profile JSON file and a template.
// It writes to outputPath and returns the path of the produced document.
type Renderer interface {
	Render(ctx context.Context, profilePath, templatePath, outputPath string) (string, error)
}

// ScriptRenderer runs `<python> <script> <profile.json> <template.docx> <out.docx>`.
type ScriptRenderer struct {
	Python  string
	Script  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Render executes the script and checks that it produced a non-empty document
func (r *ScriptRenderer) Render(ctx context.Context, profilePath, templatePath, outputPath string) (string, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if info, err := os.Stat(templatePath); err != nil || info.IsDir() {
		return "", &TemplateError{Path: templatePath, Message: "template not found", Cause: err}
	}
	if _, err := os.Stat(r.Script); err != nil {
		return "", &RenderError{Message: "render script not found", Cause: err}
	}

	python := r.Python
	if python == "" {
		python = DefaultPython
	}
	if _, err := exec.LookPath(python); err != nil {
		return "", &RenderError{Message: fmt.Sprintf("%s not found in PATH", python), Cause: err}
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, python, r.Script, profilePath, templatePath, outputPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		renderErr := &RenderError{
			Message:  "render script failed",
			ExitCode: -1,
			Stderr:   truncate(strings.TrimSpace(stderr.String()), maxStderr),
			Cause:    err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			renderErr.ExitCode = exitErr.ExitCode()
		}
		if ctx.Err() != nil {
			renderErr.Message = "render script timed out or was cancelled"
			renderErr.Cause = errors.Join(err, ctx.Err())
		}
		logger.Error("render script failed",
			zap.String("script", r.Script),
			zap.Int("exit_code", renderErr.ExitCode),
			zap.String("stderr", renderErr.Stderr),
			zap.Duration("duration", time.Since(start)),
		)
		return "", renderErr
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return "", &RenderError{Message: "render script produced no output", Cause: err}
	}
	if info.Size() == 0 {
		return "", &RenderError{Message: "render script produced an empty document"}
	}

	logger.Debug("document rendered",
		zap.Int64("bytes", info.Size()),
		zap.Duration("duration", time.Since(start)),
	)
	return outputPath, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
