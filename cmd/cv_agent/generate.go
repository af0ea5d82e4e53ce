package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-generator/internal/config"
	"github.com/jonathan/cv-generator/internal/logging"
	"github.com/jonathan/cv-generator/internal/observability"
	"github.com/jonathan/cv-generator/internal/pipeline"
	"github.com/jonathan/cv-generator/internal/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate <cv-file>",
	Short: "Generate a DOCX CV from a local file",
	Long: `Runs the same pipeline as POST /generate on a local file: text extraction -> model call with retries -> validation -> DOCX rendering.

The document is written to --out using the CV_B2B_<Name>.docx naming.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

var (
	genLanguage     string
	genEnhance      bool
	genBlind        bool
	genReference    string
	genReferenceURL string
	genOutDir       string
	genVerbose      bool
)

func init() {
	generateCmd.Flags().StringVarP(&genLanguage, "language", "l", "primary", "Output language: primary|secondary (aliases pl|en)")
	generateCmd.Flags().BoolVar(&genEnhance, "enhance", false, "Ask the model to enhance the CV content")
	generateCmd.Flags().BoolVar(&genBlind, "blind", false, "Produce a blind (anonymized) CV")
	generateCmd.Flags().StringVar(&genReference, "reference", "", "Path to a reference profile document")
	generateCmd.Flags().StringVar(&genReferenceURL, "reference-url", "", "URL of a reference profile page")
	generateCmd.Flags().StringVarP(&genOutDir, "out", "o", ".", "Output directory")
	generateCmd.Flags().BoolVarP(&genVerbose, "verbose", "v", false, "Print progress and debug logs")

	rootCmd.AddCommand(generateCmd)
}

func generateOptions() (types.Options, error) {
	lang, ok := types.ParseLanguage(genLanguage)
	if !ok {
		return types.Options{}, fmt.Errorf("invalid --language %q: must be primary, secondary, pl or en", genLanguage)
	}
	return types.Options{
		Language:     lang,
		Enhance:      genEnhance,
		Anonymize:    genBlind,
		ReferenceURL: genReferenceURL,
	}, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	opts, err := generateOptions()
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level := "warn"
	if genVerbose {
		level = "debug"
	}
	logger := logging.InitLog(logging.ParseLevel(level))
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	orch, closeModel, err := buildOrchestrator(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer closeModel()

	upload, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open CV: %w", err)
	}
	defer upload.Close()

	in := pipeline.Input{
		Upload:  pipeline.Document{Name: filepath.Base(args[0]), Body: upload},
		Options: opts,
	}
	if genReference != "" {
		ref, err := os.Open(genReference)
		if err != nil {
			return fmt.Errorf("failed to open reference: %w", err)
		}
		defer ref.Close()
		in.Reference = &pipeline.Document{Name: filepath.Base(genReference), Body: ref}
	}

	out := cmd.OutOrStdout()
	step := 0
	in.OnProgress = func(e pipeline.ProgressEvent) {
		step++
		fmt.Fprintln(out, formatProgress(step, e))
	}

	printer := observability.NewPrinter(out)
	result, err := orch.Process(ctx, in)
	if err != nil {
		if f, ok := pipeline.AsFailure(err); ok {
			if genVerbose {
				printer.PrintAttempts(f.Attempts)
			}
			return fmt.Errorf("%s: %s (request %s)", f.Message, f.Detail, f.RequestID)
		}
		return err
	}

	path, err := writeDocument(genOutDir, result)
	if err != nil {
		return err
	}
	if genVerbose {
		printer.PrintProfile(result.Profile)
		printer.PrintAttempts(result.Attempts)
		printer.PrintTimings(result.Timings)
	}
	printSummary(out, result, path)
	return nil
}

func formatProgress(step int, e pipeline.ProgressEvent) string {
	return fmt.Sprintf("Step %d/%d: [%s] %s", step, len(pipeline.Stages), e.Category, e.Message)
}

// writeDocument saves the rendered CV into dir and returns its path.
func writeDocument(dir string, result *pipeline.Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, result.Filename)
	if err := os.WriteFile(path, result.Document, 0o644); err != nil {
		return "", fmt.Errorf("failed to write document: %w", err)
	}
	return path, nil
}

func printSummary(w io.Writer, result *pipeline.Result, path string) {
	fmt.Fprintf(w, "\nWrote %s (%d bytes)\n", path, len(result.Document))
	fmt.Fprintf(w, "Request %s finished in %s after %d model attempt(s)\n",
		result.RequestID, result.Elapsed.Round(time.Millisecond), len(result.Attempts))
}
