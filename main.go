package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/arxmedia/resume-screener/internal/agent"
	"github.com/arxmedia/resume-screener/internal/api"
	"github.com/arxmedia/resume-screener/internal/config"
	"github.com/arxmedia/resume-screener/internal/gui"
	"github.com/arxmedia/resume-screener/internal/ingestion"
	"github.com/arxmedia/resume-screener/internal/ledger"
	"github.com/arxmedia/resume-screener/internal/llm"
	"github.com/arxmedia/resume-screener/internal/logging"
	"github.com/arxmedia/resume-screener/internal/research"
)

func main() {
	guiMode := flag.Bool("gui", false, "run with the desktop dashboard")
	configPath := flag.String("config", "", "path to a config file (default: user config directory)")
	once := flag.Bool("once", false, "run a single poll cycle and exit")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFrom(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	cfg.ApplyToEnv()

	logger, err := logging.New(cfg.Mode)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Fatalw("creating data directory", "dir", cfg.DataDir, "error", err)
	}
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatalw("creating database directory", "dir", dir, "error", err)
		}
	}

	store, err := ledger.Open(cfg.DatabasePath)
	if err != nil {
		logger.Fatalw("opening ledger", "path", cfg.DatabasePath, "error", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vertexClient, err := llm.NewVertexAIClient(ctx, cfg.GoogleCloudProject, cfg.GoogleCloudLocation)
	if err != nil {
		logger.Fatalw("initializing Vertex AI client", "error", err)
	}
	defer vertexClient.Close()

	inbox, err := ingestion.NewGmailHandler(ctx, cfg.GmailCredentialsPath, cfg.GmailTokenPath, logger)
	if err != nil {
		logger.Fatalw("initializing Gmail handler", "error", err)
	}

	screener := agent.NewScreener(agent.Params{
		Inbox:        inbox,
		Oracle:       llm.NewOracle(vertexClient),
		Renderer:     ingestion.NewRenderer(cfg.DataDir),
		Ledger:       store,
		Searcher:     research.NewClient(cfg.TavilyAPIKey),
		HREmail:      cfg.HREmail,
		AbandonAfter: cfg.AbandonAfter(),
		Logger:       logger,
	})

	if *once {
		if err := screener.RunOnce(ctx); err != nil {
			logger.Fatalw("poll cycle failed", "error", err)
		}
		return
	}

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewServer(store, cfg.DataDir, logger).Router(),
	}
	go func() {
		logger.Infow("http server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("http server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warnw("http server shutdown", "error", err)
		}
	}()

	if *guiMode {
		// The dashboard owns the poll loop; closing the window exits.
		gui.New(cfg, store, screener, logger).Run()
		return
	}

	if err := screener.Run(ctx, cfg.PollInterval()); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorw("screener stopped", "error", err)
	}
}
