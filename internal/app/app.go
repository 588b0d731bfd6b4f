package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"bridgewatch/internal/alerting"
	"bridgewatch/internal/config"
	"bridgewatch/internal/fetcher"
	"bridgewatch/internal/scheduler"
	"bridgewatch/internal/service"
	"bridgewatch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives command output; defaults to stdout.
	Out io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newQuoter() fetcher.ProviderQuoter {
	wise := a.Config.Providers.Wise
	if !wise.Enabled {
		return nil
	}
	return fetcher.NewWise(fetcher.WiseOptions{
		BaseURL:        wise.BaseURL,
		Timeout:        wise.RequestTimeout,
		RateLimit:      wise.RateLimit,
		RateLimitBurst: wise.RateLimitBurst,
		UserAgent:      wise.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	return alerting.NewLogNotifier(a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// requireStore opens the database or fails with a message naming action.
func (a *App) requireStore(ctx context.Context, action string) (*storage.Store, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, fmt.Errorf("database not configured; cannot %s", action)
	}
	return store, closeStore, nil
}

func (a *App) newService(sched *scheduler.Scheduler, snapshots storage.SnapshotStore, alerts storage.AlertStore) (*service.Service, error) {
	return service.New(a.Config, sched, snapshots, alerts, a.newQuoter(), a.newNotifier(), a.Logger)
}

// Run executes the long-running alert evaluation service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.requireStore(ctx, "run the alert service")
	if err != nil {
		return err
	}
	defer closeStore()

	sched, err := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)
	if err != nil {
		return err
	}

	svc, err := a.newService(sched, store, store)
	if err != nil {
		return err
	}

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting alert service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("alert service stopped")
	return nil
}

// Evaluate runs a single evaluation cycle and prints its summary.
func (a *App) Evaluate(ctx context.Context) error {
	store, closeStore, err := a.requireStore(ctx, "evaluate alerts")
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := a.newService(nil, store, store)
	if err != nil {
		return err
	}

	report, err := svc.EvaluateAlerts(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	renderReport(a.Out, report)
	return nil
}

// Migrate applies the SQL migrations.
func (a *App) Migrate(ctx context.Context) error {
	store, closeStore, err := a.requireStore(ctx, "migrate")
	if err != nil {
		return err
	}
	defer closeStore()

	dir := a.Config.Database.MigrationsPath
	if dir == "" {
		dir = "migrations"
	}
	n, err := store.Migrate(ctx, dir)
	if err != nil {
		return err
	}
	a.Logger.Info().Int("files", n).Str("dir", dir).Msg("migrations applied")
	return nil
}

// ExportOptions hold parameters for exporting historical snapshots.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ReplayOptions configure an alert replay.
type ReplayOptions struct {
	AlertID string
	From    time.Time
	To      time.Time
}
