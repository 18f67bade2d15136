package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	checkininadapter "qc/internal/modules/checkin/adapter/in"
	checkinoutadapter "qc/internal/modules/checkin/adapter/out"
	checkinout "qc/internal/modules/checkin/port/out"
	checkinservice "qc/internal/modules/checkin/service"
	checkinusecase "qc/internal/modules/checkin/usecase"
	"qc/internal/platform/clock"
	"qc/internal/platform/config"
	"qc/internal/platform/id"
	"qc/internal/platform/logging"
	"qc/internal/platform/metrics"
	uiapp "qc/internal/ui/app"
)

const redisPingTimeout = 3 * time.Second

type App struct {
	CheckInCLI checkininadapter.CLIHandler
	Registry   *prometheus.Registry
	Logger     *slog.Logger

	closers []func() error
}

// New wires one device for the configured couple member. The engine is
// subscribed to the change feed and has loaded the active check-in when New
// returns.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.ValidateIdentity(); err != nil {
		return nil, err
	}
	logger := logging.WithCouple(logging.Init(cfg.Environment, cfg.LogLevel), cfg.CoupleID, cfg.UserID)
	clk := clock.SystemClock{}
	registry := prometheus.NewRegistry()
	app := &App{Registry: registry, Logger: logger}

	feed, publisher, err := app.newFeed(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	gateway, err := checkinoutadapter.NewSQLiteGateway(cfg.DBPath, id.UUID{}, clk, publisher, logger)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("new check-in gateway: %w", err)
	}
	app.closers = append(app.closers, gateway.Close)

	engine := checkinservice.NewEngine(
		checkinservice.Identity{CoupleID: cfg.CoupleID, UserID: cfg.UserID},
		gateway,
		feed,
		checkinservice.WithSessionCache(checkinoutadapter.NewFileSessionCache(cfg.CachePath)),
		checkinservice.WithMetrics(metrics.NewPrometheus(registry)),
		checkinservice.WithClock(clk),
		checkinservice.WithLogger(logger),
	)
	// closers run in reverse, so the engine stops before the gateway closes
	app.closers = append(app.closers, engine.Close)
	if err := engine.Open(ctx); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("open check-in engine: %w", err)
	}
	engine.Initialize(ctx)

	uc := checkinusecase.NewInteractor(engine, checkinoutadapter.NewVaultSummaryStore(cfg.SummaryDir), clk, cfg.AutosaveDelay)
	app.CheckInCLI = checkininadapter.NewCLIHandler(uc)
	return app, nil
}

// newFeed picks Redis pub/sub when a URL is configured and an in-process
// feed otherwise.
func (a *App) newFeed(ctx context.Context, cfg config.Config, logger *slog.Logger) (checkinout.ChangeFeed, checkinout.ChangePublisher, error) {
	if cfg.RedisURL == "" {
		logger.Debug("change feed is in-process; other devices will not see live updates")
		feed := checkinoutadapter.NewMemoryFeed()
		return feed, feed, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	logger.Info("change feed connected", "addr", opts.Addr)
	feed := checkinoutadapter.NewRedisFeed(client, logger)
	return feed, feed, nil
}

// Close releases resources in reverse wiring order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func RunTUI(app *App) error {
	model := uiapp.NewModel(app.CheckInCLI)
	program := tea.NewProgram(model, tea.WithAltScreen())
	final, err := program.Run()
	if m, ok := final.(uiapp.Model); ok {
		m.Close()
	} else {
		model.Close()
	}
	return err
}
