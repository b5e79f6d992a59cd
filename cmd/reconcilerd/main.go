package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apflow/invoice-reconciler/internal/async"
	"github.com/apflow/invoice-reconciler/internal/common"
	"github.com/apflow/invoice-reconciler/internal/llm/openai"
	"github.com/apflow/invoice-reconciler/internal/metrics"
	"github.com/apflow/invoice-reconciler/internal/pipeline"
	"github.com/apflow/invoice-reconciler/internal/recon"
	"github.com/apflow/invoice-reconciler/internal/repository"
	"github.com/apflow/invoice-reconciler/internal/server"
	"github.com/apflow/invoice-reconciler/internal/source"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("daemon.exit", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	extractor := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	m := metrics.New()
	proc := pipeline.NewProcessor(repos.Files, repos.Records, extractor, logger).WithMetrics(m)
	queue := async.NewProcessorQueue(proc, logger,
		async.WithWorkers(cfg.Recon.Workers),
		async.WithQueueSize(cfg.Recon.QueueSize),
		async.WithProcessTimeout(cfg.Recon.ProcessTimeout),
	)

	fields, err := recon.ParseFieldSpecs(cfg.Recon.Fields)
	if err != nil {
		return err
	}
	builder := recon.NewBuilder(recon.Config{
		Fields:          fields,
		MatchThreshold:  cfg.Recon.MatchThreshold,
		AmountTolerance: cfg.Recon.AmountTolerance,
	}, logger)

	srv := server.New(repos, source.NewFSSource(repos.Files, logger), queue, builder, logger, m)

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http.listen", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("daemon.shutdown.begin")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http.shutdown.failed", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	logger.Info("daemon.shutdown.done")
	return nil
}

// openStore picks the backing store from config: Postgres when DB_URL is
// set, SQLite otherwise.
func openStore(ctx context.Context, cfg *common.Config, logger *slog.Logger) (repository.Repositories, func(), error) {
	if cfg.Database.DSN != "" {
		pool, err := repository.Open(ctx, repository.Config{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
		if err != nil {
			return repository.Repositories{}, nil, err
		}
		if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger); err != nil {
			repository.Close(pool, logger)
			return repository.Repositories{}, nil, err
		}
		return repository.NewPostgresRepositories(pool, logger), func() { repository.Close(pool, logger) }, nil
	}

	db, err := repository.OpenSQLite(ctx, cfg.Database.SQLitePath, logger)
	if err != nil {
		return repository.Repositories{}, nil, err
	}
	return repository.NewSQLiteRepositories(db, logger), func() { _ = db.Close() }, nil
}
