package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-tailor/internal/config"
	"github.com/jonathan/resume-tailor/internal/db"
	"github.com/jonathan/resume-tailor/internal/logger"
	"github.com/jonathan/resume-tailor/internal/pipeline"
	"github.com/jonathan/resume-tailor/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes run submission, status, artifact download, streaming progress, and optional JWT auth (enabled when JWT_SECRET is set).`,
	RunE:  runServe,
}

var (
	serveAddr       string
	serveAPIKey     string
	serveDebug      bool
	serveUseBrowser bool
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to SERVER_ADDR or :8080)")
	serveCmd.Flags().StringVar(&serveAPIKey, "api-key", "", "Gemini API key (optional, defaults to GEMINI_API_KEY env var)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().BoolVar(&serveUseBrowser, "use-browser", false, "Use headless browser for SPA job pages (requires Chrome)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	envCfg := config.FromEnv()

	addr := serveAddr
	if addr == "" {
		addr = envCfg.ServerAddr
	}

	log, err := logger.New(true, serveDebug)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	var store db.Store
	if envCfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, envCfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		store = database
		log.Info("connected to postgres")
	} else {
		store = db.NewMemory()
		log.Warn("DATABASE_URL not set, using in-memory store: runs are lost on restart")
	}
	defer store.Close()

	client, err := newModelClient(ctx, serveAPIKey, log)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	pcfg := pipeline.DefaultConfig()
	pcfg.UseBrowser = serveUseBrowser
	orch := pipeline.New(store, client, log, pcfg)

	srv, err := server.New(server.Config{Addr: addr}, store, orch, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}
