package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"econ-snapshot/internal/alerting"
	"econ-snapshot/internal/cache"
	"econ-snapshot/internal/config"
	"econ-snapshot/internal/fetcher"
	"econ-snapshot/internal/logging"
	"econ-snapshot/internal/metrics"
	"econ-snapshot/internal/ratelimit"
	"econ-snapshot/internal/scheduler"
	"econ-snapshot/internal/service"
	"econ-snapshot/internal/snapshot"
	"econ-snapshot/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logging.Component(logger, "app"), Out: os.Stdout}
}

func (a *App) newGate(market snapshot.MarketHours, recorder *metrics.Recorder) *ratelimit.Gate {
	gate := ratelimit.New(
		ratelimit.WithLocation(market.Location),
		ratelimit.WithWaitObserver(recorder.ObserveGateWait),
		ratelimit.WithLogger(a.Logger),
	)
	sources := a.Config.Sources
	gate.Register(config.SourceYahoo, policyFor(sources.Yahoo))
	gate.Register(config.SourceWorldBank, policyFor(sources.WorldBank.SourceConfig))
	gate.Register(config.SourceAlphaVantage, policyFor(sources.AlphaVantage))
	return gate
}

func policyFor(cfg config.SourceConfig) ratelimit.Policy {
	return ratelimit.Policy{MinInterval: cfg.MinInterval, DailyLimit: cfg.DailyLimit}
}

func (a *App) newSources(gate fetcher.Gate) []fetcher.Source {
	cfg := a.Config.Sources
	var sources []fetcher.Source

	if cfg.Yahoo.Enabled {
		sources = append(sources, fetcher.NewYahoo(fetchOptions(cfg.Yahoo, cfg.UserAgent), gate, a.Logger))
	}
	if cfg.WorldBank.Enabled {
		sources = append(sources, fetcher.NewWorldBank(fetchOptions(cfg.WorldBank.SourceConfig, cfg.UserAgent), cfg.WorldBank.Country, gate, a.Logger))
	}
	if cfg.AlphaVantage.Enabled {
		if strings.TrimSpace(cfg.AlphaVantage.APIKey) == "" {
			a.Logger.Info().Msg("alphavantage api key not configured; currency fields use fallback values")
		} else {
			sources = append(sources, fetcher.NewAlphaVantage(fetchOptions(cfg.AlphaVantage, cfg.UserAgent), gate, a.Logger))
		}
	}
	return sources
}

func fetchOptions(cfg config.SourceConfig, userAgent string) fetcher.Options {
	return fetcher.Options{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		Timeout:   cfg.RequestTimeout,
		UserAgent: userAgent,
	}
}

// newCache returns the configured result cache. A redis backend that cannot
// be reached degrades to the in-process cache.
func (a *App) newCache(ctx context.Context, recorder *metrics.Recorder) (cache.Cache[snapshot.GroupResult], func()) {
	opts := []cache.Option{cache.WithObserver(recorder.ObserveCache), cache.WithLogger(a.Logger)}

	if a.Config.Cache.Backend == "redis" {
		rc := a.Config.Cache.Redis
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{Addr: rc.Addr, Password: rc.Password, DB: rc.DB, Prefix: rc.Prefix})
		if err == nil {
			return cache.NewRedis[snapshot.GroupResult](client, rc.Prefix, opts...), func() { _ = client.Close() }
		}
		a.Logger.Warn().Err(err).Str("addr", rc.Addr).Msg("redis unavailable; using in-process cache")
	}
	return cache.NewMemory[snapshot.GroupResult](opts...), func() {}
}

func (a *App) marketHours() (snapshot.MarketHours, error) {
	sc := a.Config.Snapshot
	return snapshot.ParseMarketHours(sc.Timezone, sc.MarketOpen, sc.MarketClose)
}

// builder bundles an assembler with the resources it holds.
type builder struct {
	*snapshot.Assembler
	gate  *ratelimit.Gate
	close func()
}

func (a *App) newBuilder(ctx context.Context, recorder *metrics.Recorder) (*builder, error) {
	market, err := a.marketHours()
	if err != nil {
		return nil, err
	}
	gate := a.newGate(market, recorder)
	store, closeCache := a.newCache(ctx, recorder)

	var rec snapshot.Recorder
	if recorder != nil {
		rec = recorder
	}
	assembler, err := snapshot.NewAssembler(snapshot.Options{
		Fields:   snapshot.SpecsFromConfig(a.Config),
		Sources:  a.newSources(gate),
		Cache:    store,
		TTL:      snapshot.GroupTTLs(a.Config),
		Market:   market,
		Recorder: rec,
	}, a.Logger)
	if err != nil {
		closeCache()
		return nil, err
	}
	return &builder{Assembler: assembler, gate: gate, close: closeCache}, nil
}

func (a *App) newNotifier() alerting.Notifier {
	var notifiers alerting.Multi
	for _, channel := range a.Config.Alerting.Channels {
		switch strings.ToLower(strings.TrimSpace(channel)) {
		case "telegram":
			cfg := a.Config.Alerting.Telegram
			if cfg.Enabled {
				notifiers = append(notifiers, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
			}
		case "log":
			notifiers = append(notifiers, alerting.NewLogNotifier(a.Logger))
		default:
			a.Logger.Warn().Str("channel", channel).Msg("unknown alert channel ignored")
		}
	}
	switch len(notifiers) {
	case 0:
		return nil
	case 1:
		return notifiers[0]
	default:
		return notifiers
	}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := storage.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) serveMetrics(ctx context.Context, recorder *metrics.Recorder) {
	addr := a.Config.Metrics.ListenAddr
	if addr == "" {
		return
	}
	path := a.Config.Metrics.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, recorder.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.Logger.Info().Str("addr", addr).Str("path", path).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// Run executes the long-running refresh service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	recorder := metrics.New()
	a.serveMetrics(ctx, recorder)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Info().Msg("database.dsn not configured; archive disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	b, err := a.newBuilder(ctx, recorder)
	if err != nil {
		return err
	}
	defer b.close()

	market, err := a.marketHours()
	if err != nil {
		return err
	}
	sched := scheduler.New(scheduler.Options{
		Interval:       a.Config.Scheduler.Interval,
		IdleInterval:   a.Config.Scheduler.ClosedInterval,
		Idle:           func(t time.Time) bool { return !market.IsOpen(t) },
		AlignToStart:   a.Config.Scheduler.AlignToBucket,
		StartupDelay:   a.Config.Scheduler.StartupDelay,
		RunImmediately: true,
	}, a.Logger)

	var snapshotStore storage.SnapshotStore
	var alertStore storage.AlertStore
	if store != nil {
		snapshotStore = store
		alertStore = store
	}

	svc := service.New(a.Config, sched, b, snapshotStore, alertStore, a.newNotifier(), recorder, a.Logger)

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting refresh service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("refresh service stopped")
	return nil
}

// SnapshotOptions configure the snapshot command.
type SnapshotOptions struct {
	Refresh bool
	JSON    bool
}

// HistoryOptions configure the history command.
type HistoryOptions struct {
	Period string
	Fields []string
	JSON   bool
}

// ExportOptions hold parameters for exporting historical series.
type ExportOptions struct {
	Period         string
	Fields         []string
	CSVPath        string
	PNGPath        string
	ComparePNGPath string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Field  string
	Alerts bool
}
