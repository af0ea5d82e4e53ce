package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/cv-generator/internal/config"
	"github.com/jonathan/cv-generator/internal/logging"
	"github.com/jonathan/cv-generator/internal/server"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Start an HTTP server exposing POST /generate, GET /health and GET /metrics. Settings are read from the environment (and .env).`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides HTTP_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.HTTP.Port = servePort
	}

	logger := logging.InitLog(logging.ParseLevel(cfg.LogLevel))
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx := cmd.Context()
	orch, closeModel, err := buildOrchestrator(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer closeModel()

	srv := server.New(server.Config{
		Port:            cfg.HTTP.Port,
		MaxConcurrent:   cfg.HTTP.MaxConcurrent,
		MaxUploadBytes:  cfg.Pipeline.MaxUploadBytes,
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		RateLimit:       cfg.RateLimiter(),
	}, orch, logger)

	return srv.Start(ctx)
}
