package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/zeref/currency-converter/pkg/config"
	"github.com/zeref/currency-converter/pkg/logger"
)

// syncTimeout bounds one scheduled sync run end to end.
const syncTimeout = 2 * time.Minute

// SyncJob is the work the scheduler triggers.
type SyncJob interface {
	Sync(ctx context.Context) error
}

// Worker drives the daily rate sync on a cron schedule, plus one run at
// startup so a fresh instance never serves against empty data.
type Worker struct {
	job  SyncJob
	cfg  *config.SyncConfig
	cron *cron.Cron
}

// NewWorker creates a sync scheduler. Schedules are evaluated in UTC.
func NewWorker(job SyncJob, cfg *config.SyncConfig) *Worker {
	return &Worker{
		job:  job,
		cfg:  cfg,
		cron: cron.New(cron.WithLocation(time.UTC)),
	}
}

// Start registers the schedule and launches the cron loop. When configured,
// an immediate sync runs in the background before the first tick.
func (w *Worker) Start() error {
	if _, err := w.cron.AddFunc(w.cfg.Schedule, w.runOnce); err != nil {
		return err
	}

	if w.cfg.RunOnStartup {
		go w.runOnce()
	}

	w.cron.Start()
	logger.Info("Sync scheduler started", zap.String("schedule", w.cfg.Schedule))
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (w *Worker) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	logger.Info("Sync scheduler stopped")
}

func (w *Worker) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	if err := w.job.Sync(ctx); err != nil {
		logger.Error("Scheduled rate sync failed", zap.Error(err))
	}
}
