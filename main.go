package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"goea/adapters/obo"
	"goea/adapters/store"
	"goea/domain/core"
	"goea/domain/ontology"
	"goea/internal"
	"goea/internal/api"
	"goea/internal/config"
	"goea/internal/subdag"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := internal.NewLogger(os.Stderr, internal.ParseLevel(cfg.LogLevel), os.Getenv("LOG_FORMAT"))
	slog.SetDefault(logger)

	if err := serve(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func serve(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, err := loadOntology(cfg, logger)
	if err != nil {
		return err
	}
	builder := subdag.NewBuilder(g,
		subdag.WithWorkers(cfg.Enrichment.Workers),
		subdag.WithLogger(logger),
		subdag.WithSubDagCache(0))

	runs, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer runs.Close()

	gin.SetMode(cfg.Server.GinMode)
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.NewRouter(builder, runs, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting goea server", "port", cfg.Server.Port, "terms", g.Len(), "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadOntology(cfg *config.Config, logger *slog.Logger) (*ontology.Graph, error) {
	opts := obo.Options{Logger: logger}
	for _, r := range cfg.Ontology.Relationships {
		switch r = strings.TrimSpace(r); r {
		case "":
		case "all", "*":
			opts.AllRelationships = true
		default:
			opts.Relationships = append(opts.Relationships, ontology.RelationshipType(r))
		}
	}

	g, warnings, err := obo.ParseFile(cfg.Ontology.Path, opts)
	if err != nil {
		return nil, err
	}
	core.LogWarnings(logger, warnings)
	logger.Info("ontology loaded", "path", cfg.Ontology.Path, "terms", g.Len(), "warnings", len(warnings))
	return g, nil
}
