package scheduler

import (
	"context"
	"fmt"
	"time"

	"chemtrack-backend/internal/notify"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sweepTimeout = 2 * time.Minute

// LowStockChecker is the part of the monitor the sweep needs.
type LowStockChecker interface {
	CheckAndNotify(ctx context.Context, chemicalID *uint) (*notify.CheckResult, error)
}

// Scheduler runs the recurring low stock sweep.
type Scheduler struct {
	cron    *cron.Cron
	checker LowStockChecker
	spec    string
	logger  *zap.Logger
}

// New builds a scheduler that evaluates spec (standard 5 field cron) in loc.
func New(spec string, loc *time.Location, checker LowStockChecker, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		checker: checker,
		spec:    spec,
		logger:  logger,
	}
}

// Start registers the sweep and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.sweep); err != nil {
		return fmt.Errorf("schedule low stock sweep %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("low_stock_cron", s.spec))
	return nil
}

// Stop stops scheduling and waits for a running sweep or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("stopping scheduler")
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

// Next is the next planned sweep, zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) sweep() {
	s.logger.Info("running scheduled low stock check")
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	res, err := s.checker.CheckAndNotify(ctx, nil)
	if err != nil {
		s.logger.Error("scheduled low stock check failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled low stock check finished",
		zap.Int("checked", res.Checked),
		zap.Int("low_stock", len(res.LowStock)),
		zap.Bool("delivered", res.Delivered))
}
