package service

import (
	"context"
	"time"

	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// Scanner is what the scheduler drives; satisfied by *AlertScanner
type Scanner interface {
	ScanAll(ctx context.Context) *ScanSummary
}

// AlertScheduler runs alert scans on a fixed interval in a background
// goroutine. The first scan fires immediately on start so a restart does not
// leave a full interval of blindness. Scans are idempotent, so overlapping a
// manual trigger with a scheduled run is harmless.
type AlertScheduler struct {
	scanner  Scanner
	interval time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
}

// NewAlertScheduler creates a new alert scheduler
func NewAlertScheduler(scanner Scanner, interval time.Duration, log *logger.Logger) *AlertScheduler {
	return &AlertScheduler{
		scanner:  scanner,
		interval: interval,
		logger:   log,
	}
}

// Start starts the scheduler in a background goroutine
func (s *AlertScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("alert scheduler started")

		s.scanner.ScanAll(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("alert scheduler stopped")
				return
			case <-ticker.C:
				s.scanner.ScanAll(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine
func (s *AlertScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}
