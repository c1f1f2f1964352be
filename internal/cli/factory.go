package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/golem"
	"github.com/aretw0/golem/internal/config"
	"github.com/aretw0/golem/internal/logging"
	"github.com/aretw0/golem/pkg/adapters/loam"
	"github.com/aretw0/golem/pkg/adapters/memory"
	"github.com/aretw0/golem/pkg/adapters/redis"
	"github.com/aretw0/golem/pkg/adapters/sqlite"
	"github.com/aretw0/golem/pkg/extract"
	"github.com/aretw0/golem/pkg/flow"
	"github.com/aretw0/golem/pkg/observability"
	"github.com/aretw0/golem/pkg/persistence/middleware"
	"github.com/aretw0/golem/pkg/ports"
	"github.com/aretw0/golem/pkg/recorder"
	"github.com/aretw0/golem/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is a bot wired from a configuration file.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Bot      *golem.Bot
	Metrics  *prometheus.Registry
	TurnLog  *sqlite.TurnLog
	Flows    *flow.Registry
	Actions  *registry.Registry
	Extract  ports.EntityExtractor
	schedule func(ctx context.Context) error
	closers  []func() error
}

// LoadConfig reads the configuration at path, or returns the defaults when path is empty.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// NewLogger builds the application logger from the configuration.
// A non-empty level overrides the configured one.
func NewLogger(cfg *config.Config, level string) (*slog.Logger, error) {
	if level == "" {
		level = cfg.LogLevel
	}
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logging.NewWithWriter(os.Stderr, lvl, cfg.LogFormat == "json"), nil
}

// LoadFlows reads the flows named by the configuration.
// A directory path given as source overrides the configuration.
func LoadFlows(ctx context.Context, cfg *config.Config, source string, actions flow.Resolver) (*flow.Registry, error) {
	dir, files := cfg.FlowsDir, cfg.Flows
	if source != "" {
		info, err := os.Stat(source)
		if err != nil {
			return nil, err
		}
		dir, files = "", nil
		if info.IsDir() {
			dir = source
		} else {
			files = []string{source}
		}
	}

	switch {
	case dir != "":
		loader, err := loam.Open(dir)
		if err != nil {
			return nil, err
		}
		return loader.Load(ctx, actions)
	case len(files) > 0:
		defs, err := flow.LoadFiles(files...)
		if err != nil {
			return nil, err
		}
		return flow.Load(defs, actions)
	}
	return nil, errors.New("no flows configured: set flows or flows_dir, or pass a path")
}

// Build wires the store, scheduler, extractor and metrics described by cfg into a bot.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, source string, opts ...golem.Option) (*App, error) {
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: prometheus.NewRegistry(),
		Actions: registry.NewRegistry(),
	}
	app.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	flows, err := LoadFlows(ctx, cfg, source, app.Actions)
	if err != nil {
		return nil, fmt.Errorf("load flows: %w", err)
	}
	app.Flows = flows

	store, storeOpts, err := app.openStore(cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	rules, err := extract.NewRules(cfg.Extract, extract.WithLogger(logger))
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("extract rules: %w", err)
	}
	app.Extract = rules

	metrics := observability.NewMetrics(app.Metrics)
	botOpts := []golem.Option{
		golem.WithConfig(cfg.Runtime()),
		golem.WithLogger(logger),
		golem.WithStore(store),
		golem.WithExtractor(rules),
		golem.WithLifecycleHooks(observability.Combine(metrics.Hooks(), observability.LoggingHooks(logger))),
	}
	botOpts = append(botOpts, storeOpts...)
	if cfg.Recorder.Enabled {
		botOpts = append(botOpts, golem.WithRecorder(recorder.New(recorder.WithDir(cfg.Recorder.Dir), recorder.WithLogger(logger))))
	} else {
		botOpts = append(botOpts, golem.WithoutRecorder())
	}
	botOpts = append(botOpts, opts...)

	bot, err := golem.New(flows, botOpts...)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Bot = bot
	app.closers = append(app.closers, bot.Close)
	return app, nil
}

func (a *App) openStore(cfg *config.Config) (ports.SessionStore, []golem.Option, error) {
	var (
		store ports.SessionStore
		opts  []golem.Option
	)
	switch cfg.Storage.Driver {
	case config.DriverRedis:
		rs := redis.New(cfg.Storage.Redis.Addr, redis.WithPrefix(cfg.Storage.Redis.Prefix))
		store = rs
		opts = append(opts, golem.WithLocker(redis.NewLocker(rs.Client(), cfg.Storage.Redis.Prefix)))
		if cfg.Scheduler == config.DriverRedis {
			sched := redis.NewScheduler(rs.Client(), cfg.Storage.Redis.Prefix, redis.WithSchedulerLogger(a.Logger))
			opts = append(opts, golem.WithScheduler(sched))
			a.schedule = sched.Run
		}
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, db.Close)
		store = sqlite.NewStore(db)
		a.TurnLog = sqlite.NewTurnLog(db)
		opts = append(opts, golem.WithTurnLogger(a.TurnLog))
	default:
		store = memory.NewStore()
	}

	if cfg.Scheduler == config.DriverMemory {
		opts = append(opts, golem.WithScheduler(memory.NewScheduler(memory.WithSchedulerLogger(a.Logger))))
	}

	var mws []middleware.Middleware
	if len(cfg.Storage.MaskEntities) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(cfg.Storage.MaskEntities))
	}
	key, err := cfg.Storage.Key()
	if err != nil {
		return nil, nil, err
	}
	if key != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	return middleware.Chain(store, mws...), opts, nil
}

// RunScheduler polls the redis scheduler until ctx is done.
// With the in-process scheduler it only waits for ctx.
func (a *App) RunScheduler(ctx context.Context) error {
	if a.schedule == nil {
		<-ctx.Done()
		return nil
	}
	a.Logger.Info("scheduler polling started")
	return a.schedule(ctx)
}

// Close releases the bot and its backends.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
