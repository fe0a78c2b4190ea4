package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"CoinPull/internal/domain/models"
	"CoinPull/pkg/config"
	xhttp "CoinPull/pkg/http"
	applogger "CoinPull/pkg/logger"
)

const (
	scheduledLockTimeout = 5 * time.Second
	pruneSchedule        = "@every 5m"
)

// Refresher starts background acquisitions.
type Refresher interface {
	Refresh(ctx context.Context, req models.RefreshRequest) (string, error)
	Close()
}

// Pruner forgets per-client state that has gone idle.
type Pruner interface {
	Prune() int
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	refresher  Refresher
	limiter    Pruner
	httpServer *xhttp.Server
	scheduler  *cron.Cron
}

// New creates a new App instance with all dependencies. limiter may be nil.
func New(cfg *config.Config, log *applogger.Logger, refresher Refresher, limiter Pruner, httpServer *xhttp.Server) *App {
	if log == nil {
		log = applogger.NewNop()
	}
	return &App{
		cfg:        cfg,
		log:        log,
		refresher:  refresher,
		limiter:    limiter,
		httpServer: httpServer,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the HTTP server and the refresh schedule and blocks
// until ctx is done, then shuts everything down.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.startScheduler(); err != nil {
		return err
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		a.stopScheduler()
		return err
	}
	a.log.Info("api listening",
		applogger.String("addr", a.httpServer.Addr()),
		applogger.String("env", a.cfg.Environment))

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) startScheduler() error {
	spec := a.cfg.Scheduler.RefreshCron
	if spec == "" && a.limiter == nil {
		return nil
	}
	a.scheduler = cron.New()
	if spec != "" {
		if _, err := a.scheduler.AddFunc(spec, a.scheduledRefresh); err != nil {
			return fmt.Errorf("schedule refresh %q: %w", spec, err)
		}
		a.log.Info("refresh scheduled",
			applogger.String("cron", spec),
			applogger.String("mode", a.cfg.Scheduler.Mode))
	}
	if a.limiter != nil {
		if _, err := a.scheduler.AddFunc(pruneSchedule, a.pruneLimiter); err != nil {
			return fmt.Errorf("schedule limiter prune: %w", err)
		}
	}
	a.scheduler.Start()
	return nil
}

func (a *App) pruneLimiter() {
	if n := a.limiter.Prune(); n > 0 {
		a.log.Debug("rate limiter pruned", applogger.Int("buckets", n))
	}
}

func (a *App) stopScheduler() {
	if a.scheduler == nil {
		return
	}
	<-a.scheduler.Stop().Done()
}

// scheduledRefresh kicks off one background acquisition. A tick that lands
// while another attempt runs is skipped.
func (a *App) scheduledRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), scheduledLockTimeout)
	defer cancel()

	id, err := a.refresher.Refresh(ctx, models.RefreshRequest{
		Mode:    a.cfg.Scheduler.Mode,
		Horizon: a.cfg.Analysis.Horizon,
	})
	switch {
	case errors.Is(err, models.ErrBusy):
		a.log.Info("scheduled refresh skipped, acquisition in progress")
	case err != nil:
		a.log.Error("scheduled refresh failed", applogger.Error(err))
	default:
		a.log.Info("scheduled refresh started", applogger.String("attempt_id", id))
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	a.log.Info("shutting down...")

	a.stopScheduler()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	var stopErr error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		stopErr = err
	}

	// cancels any running attempt and disconnects progress subscribers
	a.refresher.Close()

	a.log.Info("shutdown complete")
	return stopErr
}
