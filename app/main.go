package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/izotovlife/izotovlife.ru-sub000/app/api"
	"github.com/izotovlife/izotovlife.ru-sub000/app/cache"
	"github.com/izotovlife/izotovlife.ru-sub000/app/cfg"
	"github.com/izotovlife/izotovlife.ru-sub000/app/classify"
	"github.com/izotovlife/izotovlife.ru-sub000/app/content"
	"github.com/izotovlife/izotovlife.ru-sub000/app/database"
	"github.com/izotovlife/izotovlife.ru-sub000/app/feed"
	"github.com/izotovlife/izotovlife.ru-sub000/app/fetcher"
	"github.com/izotovlife/izotovlife.ru-sub000/app/ingest"
	"github.com/izotovlife/izotovlife.ru-sub000/app/policy"
	"github.com/izotovlife/izotovlife.ru-sub000/app/probe"
	"github.com/izotovlife/izotovlife.ru-sub000/app/quality"
	"github.com/izotovlife/izotovlife.ru-sub000/app/tasks"
)

const (
	failedPageTTL     = 30 * time.Minute
	probeMaxBodyBytes = 64 << 10
	shutdownTimeout   = 30 * time.Second
)

// app holds the components shared by every command.
type app struct {
	cfg        *cfg.Cfg
	policy     *policy.Policy
	db         *database.DB
	sources    *database.SourceRepo
	items      *database.ItemRepo
	categories *database.CategoryRepo
	logs       *database.LogRepo
}

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}
	if appCfg == nil {
		return
	}

	closeLog := setupLogging(appCfg)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := run(ctx, appCfg)
	closeLog()
	stop()
	os.Exit(code)
}

func setupLogging(c *cfg.Cfg) func() {
	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	closer := func() {}
	if c.LogFile != "" {
		file := &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, file)
		closer = func() { _ = file.Close() }
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	return closer
}

func run(ctx context.Context, c *cfg.Cfg) int {
	slog.Info("Starting", "command", c.Command, "version", c.Version, "db", c.DBPath)

	a, err := newApp(ctx, c)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		return 1
	}
	defer a.db.Close()

	switch c.Command {
	case cfg.CommandMigrate:
		return 0
	case cfg.CommandIngest:
		return a.runIngest(ctx)
	case cfg.CommandClassify:
		return a.runClassify(ctx)
	case cfg.CommandProbe:
		return a.runProbe(ctx)
	default:
		return a.runServe(ctx)
	}
}

func newApp(ctx context.Context, c *cfg.Cfg) (*app, error) {
	pol, err := policy.Load(c.PolicyFile)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, c.DBPath)
	if err != nil {
		return nil, err
	}

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("Database ready", "path", db.Path(), "schema_version", version, "dirty", dirty)

	return &app{
		cfg:        c,
		policy:     pol,
		db:         db,
		sources:    database.NewSourceRepository(db),
		items:      database.NewItemRepository(db),
		categories: database.NewCategoryRepository(db),
		logs:       database.NewLogRepository(db),
	}, nil
}

func (a *app) newPipeline(allowEmpty bool) (*ingest.Pipeline, *feed.ConfigCache, error) {
	configs := feed.NewConfigCache(a.cfg.SourcesDir)
	if err := configs.Run(); err != nil {
		return nil, nil, fmt.Errorf("failed to load source configurations: %w", err)
	}

	f := fetcher.New(a.policy.FetcherConfig(a.cfg.UserAgent))

	pipeline := ingest.NewPipeline(ingest.Deps{
		Configs:         configs,
		Sources:         a.sources,
		Items:           a.items,
		Categories:      a.categories,
		Logs:            a.logs,
		Fetcher:         f,
		Pages:           content.NewPageExtractor(f, cache.New[string](failedPageTTL)),
		Extractor:       content.NewExtractor(content.DefaultConfig()),
		Gate:            quality.NewGate(a.policy.GateConfig(allowEmpty)),
		DefaultCategory: a.policy.Categories.Default,
	})
	return pipeline, configs, nil
}

func (a *app) newClassifyRunner() *classify.Runner {
	return classify.NewRunner(classify.NewClassifier(a.policy.ClassifierConfig()), a.items, a.categories)
}

func (a *app) runIngest(ctx context.Context) int {
	pipeline, _, err := a.newPipeline(a.cfg.Ingest.AllowEmpty)
	if err != nil {
		slog.Error("Ingestion setup failed", "error", err)
		return 1
	}

	summary, err := pipeline.Run(ctx, ingest.Options{Only: a.cfg.Ingest.Only})
	if err != nil {
		slog.Error("Ingestion failed", "error", err)
		return 1
	}

	fmt.Println(summary.String())
	if summary.NeedsReview() {
		slog.Warn("Ingestion finished with unexpected errors", "run_id", summary.RunID, "unexpected", summary.Unexpected)
		return 1
	}
	return 0
}

func (a *app) runClassify(ctx context.Context) int {
	result, err := a.newClassifyRunner().Run(ctx, a.cfg.Classify.Limit)
	if err != nil {
		slog.Error("Classification failed", "error", err)
		return 1
	}

	fmt.Printf("checked=%d updated=%d unchanged=%d\n", result.Checked, result.Updated, result.Unchanged)
	return 0
}

func (a *app) runProbe(ctx context.Context) int {
	opts := a.cfg.Probe

	refs, err := a.items.ListImages(ctx, opts.Limit)
	if err != nil {
		slog.Error("Failed to list images", "error", err)
		return 1
	}

	fetchCfg := a.policy.FetcherConfig(a.cfg.UserAgent)
	fetchCfg.MaxBodyBytes = probeMaxBodyBytes

	prober := probe.NewProber(fetcher.New(fetchCfg), probe.Config{
		Workers:        opts.Workers,
		ConnectTimeout: opts.TimeoutConnect,
		ReadTimeout:    opts.TimeoutRead,
	})

	rows, runErr := prober.Run(ctx, refs)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("Image probe failed", "error", runErr)
		return 1
	}

	var out io.Writer = os.Stdout
	if opts.Output != "" {
		file, err := os.Create(opts.Output)
		if err != nil {
			slog.Error("Failed to create report file", "path", opts.Output, "error", err)
			return 1
		}
		defer file.Close()
		out = file
	}

	if err := probe.WriteCSV(out, rows); err != nil {
		slog.Error("Failed to write report", "error", err)
		return 1
	}

	counts := probe.Counts(rows)
	slog.Info("Image probe finished",
		"rows", len(rows),
		"ok", counts[probe.StatusOK],
		"broken", counts[probe.StatusBroken],
		"not_image", counts[probe.StatusNotImage],
		"error", counts[probe.StatusError],
		"not_checked", counts[probe.StatusNotChecked],
		"interrupted", runErr != nil)

	if runErr != nil {
		return 130
	}
	return 0
}

func (a *app) runServe(ctx context.Context) int {
	opts := a.cfg.Serve

	pipeline, configs, err := a.newPipeline(false)
	if err != nil {
		slog.Error("Ingestion setup failed", "error", err)
		return 1
	}
	classifier := a.newClassifyRunner()

	scheduler := tasks.NewScheduler(pipeline, classifier, tasks.SchedulerConfig{
		Interval:      opts.SchedulerInterval,
		WorkerCount:   opts.WorkerCount,
		ClassifyLimit: a.cfg.Classify.Limit,
	})
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(api.HandlerDeps{
		Sources:       a.sources,
		Items:         a.items,
		Categories:    a.categories,
		Generator:     feed.NewGenerator(a.cfg.BaseUrl, a.cfg.Version),
		ConfigCache:   configs,
		Scheduler:     scheduler,
		Ingester:      pipeline,
		Classifier:    classifier,
		ClassifyLimit: a.cfg.Classify.Limit,
		BaseURL:       a.cfg.BaseUrl,
	})

	httpServer := &http.Server{
		Addr:         ":" + opts.Port,
		Handler:      api.NewServer(handler, opts.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", opts.Port, "task_endpoints", opts.APIAccessKey != "")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	code := 0
	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case err := <-serverErr:
		slog.Error("HTTP server error", "error", err)
		code = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return code
}
