package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MikeSquared-Agency/Prioritizer/internal/api"
	"github.com/MikeSquared-Agency/Prioritizer/internal/broker"
	"github.com/MikeSquared-Agency/Prioritizer/internal/config"
	"github.com/MikeSquared-Agency/Prioritizer/internal/hermes"
	"github.com/MikeSquared-Agency/Prioritizer/internal/metrics"
	"github.com/MikeSquared-Agency/Prioritizer/internal/model"
	"github.com/MikeSquared-Agency/Prioritizer/internal/store"
	"github.com/MikeSquared-Agency/Prioritizer/internal/workbook"
)

const usage = `usage:
  prioritizer [-config file] run <workbook.xlsx>...
  prioritizer [-config file] serve`

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)
	metrics.Init()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch flag.Arg(0) {
	case "run":
		if flag.NArg() < 2 {
			flag.Usage()
			os.Exit(2)
		}
		if err := runWorkbooks(ctx, cfg, flag.Args()[1:], logger); err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(exitCode(err))
		}
	case "serve":
		if err := serve(ctx, cfg, logger); err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func newLogger(c config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// exitCode separates bad input (2) from everything else (1).
func exitCode(err error) int {
	if errors.Is(err, model.ErrData) || errors.Is(err, model.ErrConfiguration) {
		return 2
	}
	return 1
}

// openStore returns a nil Store when persistence is not configured.
func openStore(ctx context.Context, c config.DatabaseConfig) (store.Store, error) {
	if c.URL == "" {
		return nil, nil
	}
	switch c.Driver {
	case "postgres":
		return store.NewPostgresStore(ctx, c.URL)
	case "sqlite", "":
		return store.NewSQLiteStore(c.URL)
	default:
		return nil, fmt.Errorf("unknown database driver %q", c.Driver)
	}
}

func openHermes(ctx context.Context, url string, logger *slog.Logger) hermes.Client {
	if url == "" {
		return nil
	}
	hc, err := hermes.Dial(ctx, url, logger)
	if err != nil {
		logger.Warn("failed to connect to hermes, running without events", "error", err)
		return nil
	}
	logger.Info("connected to hermes")
	return hc
}

func newBroker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*broker.Broker, store.Store, hermes.Client, func(), error) {
	db, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open run store: %w", err)
	}
	hc := openHermes(ctx, cfg.Hermes.URL, logger)
	cleanup := func() {
		if hc != nil {
			hc.Close()
		}
		if db != nil {
			db.Close()
		}
	}
	b, err := broker.New(db, hc, cfg.Run.Params(), broker.Options{Concurrency: cfg.Batch.Concurrency}, logger)
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, err
	}
	return b, db, hc, cleanup, nil
}

// runWorkbooks evaluates each workbook with its own run parameters and
// writes the results next to the configured output path.
func runWorkbooks(ctx context.Context, cfg *config.Config, paths []string, logger *slog.Logger) error {
	b, _, _, cleanup, err := newBroker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	var jobs []broker.Job
	var errs []error
	for _, path := range paths {
		job, err := workbookJob(cfg, path, logger)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		jobs = append(jobs, job)
	}

	results, err := b.RunAll(ctx, jobs)
	if err != nil {
		errs = append(errs, err)
	}
	for _, res := range results {
		if res == nil {
			continue
		}
		for scenario, option := range res.Top() {
			logger.Info("top option", "run_id", res.ID, "name", res.Name, "scenario", scenario, "option", option)
		}
	}
	return errors.Join(errs...)
}

func workbookJob(cfg *config.Config, path string, logger *slog.Logger) (broker.Job, error) {
	wb, err := workbook.Read(path)
	if err != nil {
		return broker.Job{}, err
	}
	run := cfg.Run
	out := cfg.Output
	skipped, err := run.Apply(wb.Parameters)
	if err != nil {
		return broker.Job{}, err
	}
	for _, k := range skipped {
		if !out.Set(k, wb.Parameters[k]) {
			logger.Warn("workbook parameter ignored", "workbook", path, "parameter", k)
		}
	}
	params := run.Params()
	if wb.RandomIndex != nil {
		params.AHP.RandomIndex = wb.RandomIndex
	}
	if wb.Input.Name == "" {
		wb.Input.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	job := broker.Job{Input: wb.Input, Params: &params}
	if out.Write {
		job.Sinks = append(job.Sinks, &workbook.Writer{
			Root:    out.Root(),
			Path:    out.Path,
			Version: out.Version,
			Source:  path,
			Logger:  logger,
		})
	}
	return job, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	b, db, hc, cleanup, err := newBroker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	if db == nil {
		logger.Warn("no database configured, runs will not be retrievable")
	}
	if hc != nil {
		if err := b.Listen(); err != nil {
			return fmt.Errorf("subscribe to run requests: %w", err)
		}
		logger.Info("listening for run requests", "subject", hermes.SubjectRunRequest)
	}

	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(b, db, cfg.Run, cfg.Server, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           api.NewMetricsRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()
	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
	return nil
}
