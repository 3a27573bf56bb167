package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

type countingScanner struct {
	scans atomic.Int32
}

func (c *countingScanner) ScanAll(ctx context.Context) *ScanSummary {
	c.scans.Add(1)
	return &ScanSummary{}
}

func TestAlertScheduler_RunsImmediatelyOnStart(t *testing.T) {
	scanner := &countingScanner{}
	log := logger.New("test", "test")
	scheduler := NewAlertScheduler(scanner, time.Hour, log)

	scheduler.Start(context.Background())
	defer scheduler.Stop()

	assert.Eventually(t, func() bool {
		return scanner.scans.Load() == 1
	}, time.Second, 10*time.Millisecond, "expected an immediate scan on start")
}

func TestAlertScheduler_TicksOnInterval(t *testing.T) {
	scanner := &countingScanner{}
	log := logger.New("test", "test")
	scheduler := NewAlertScheduler(scanner, 20*time.Millisecond, log)

	scheduler.Start(context.Background())
	defer scheduler.Stop()

	assert.Eventually(t, func() bool {
		return scanner.scans.Load() >= 3
	}, 2*time.Second, 10*time.Millisecond, "expected repeated scans on the interval")
}

func TestAlertScheduler_StopHaltsScanning(t *testing.T) {
	scanner := &countingScanner{}
	log := logger.New("test", "test")
	scheduler := NewAlertScheduler(scanner, 20*time.Millisecond, log)

	scheduler.Start(context.Background())

	assert.Eventually(t, func() bool {
		return scanner.scans.Load() >= 1
	}, time.Second, 10*time.Millisecond)

	scheduler.Stop()
	time.Sleep(50 * time.Millisecond)
	after := scanner.scans.Load()
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, after, scanner.scans.Load(), "no scans should run after Stop")
}
