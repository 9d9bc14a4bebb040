package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sitemilenibarros/backend/pkg/telemetry"
)

// PendingReconciler is the slice of the reconcile service the sweeper needs
type PendingReconciler interface {
	SweepPending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// Sweeper periodically reconciles pending registrations whose webhook was
// acknowledged but never applied, or never arrived. It closes the gap left by
// the always-ack webhook policy: the provider will not redeliver after a 200.
type Sweeper struct {
	reconciler PendingReconciler
	interval   time.Duration
	minAge     time.Duration
	batchSize  int
	logger     *zap.Logger
	duration   *telemetry.Histogram
	stop       chan struct{}
	done       chan struct{}
}

// SweeperConfig holds sweeper tuning
type SweeperConfig struct {
	// Interval between sweeps
	Interval time.Duration
	// MinAge is how old a pending registration must be before it is swept
	MinAge time.Duration
	// BatchSize caps registrations per sweep
	BatchSize int
}

// DefaultSweeperConfig returns default sweeper tuning
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:  5 * time.Minute,
		MinAge:    15 * time.Minute,
		BatchSize: 50,
	}
}

// NewSweeper creates a new reconciliation sweeper
func NewSweeper(reconciler PendingReconciler, cfg SweeperConfig, logger *zap.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweeperConfig().Interval
	}
	if cfg.MinAge <= 0 {
		cfg.MinAge = DefaultSweeperConfig().MinAge
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultSweeperConfig().BatchSize
	}
	duration, _ := telemetry.NewHistogram(telemetry.MetricOpts{
		Name:        "forms_sweep_duration_seconds",
		Description: "Duration of one reconciliation sweep",
		Unit:        "s",
	})
	return &Sweeper{
		reconciler: reconciler,
		interval:   cfg.Interval,
		minAge:     cfg.MinAge,
		batchSize:  cfg.BatchSize,
		logger:     logger,
		duration:   duration,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called or the context is cancelled
func (s *Sweeper) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("reconciliation sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("min_age", s.minAge),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	start := time.Now()
	changed, err := s.reconciler.SweepPending(ctx, s.minAge, s.batchSize)
	if s.duration != nil {
		s.duration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
		return
	}
	if changed > 0 {
		s.logger.Info("sweep applied transitions", zap.Int("changed", changed))
	}
}

// Stop terminates the loop and waits for the in-flight sweep to finish
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}
