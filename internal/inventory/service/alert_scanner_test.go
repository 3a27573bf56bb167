package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
)

func TestStockAlertSeverity(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		minimum  int
		expected string
	}{
		{"quarter of minimum", 25, 100, repository.SeverityCritical},
		{"just above quarter", 26, 100, repository.SeverityHigh},
		{"half of minimum", 50, 100, repository.SeverityHigh},
		{"just above half", 51, 100, repository.SeverityMedium},
		{"three quarters", 75, 100, repository.SeverityMedium},
		{"just above three quarters", 76, 100, repository.SeverityLow},
		{"one below minimum", 99, 100, repository.SeverityLow},
		{"single unit against minimum four", 1, 4, repository.SeverityCritical},
		{"small minimum rounding", 2, 5, repository.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, stockAlertSeverity(tt.current, tt.minimum))
		})
	}
}

func TestExpiryAlertSeverity(t *testing.T) {
	tests := []struct {
		name         string
		days         int
		wantType     string
		wantSeverity string
	}{
		{"expired yesterday", -1, repository.AlertExpired, repository.SeverityCritical},
		{"long expired", -365, repository.AlertExpired, repository.SeverityCritical},
		{"expires today", 0, repository.AlertExpiringSoon, repository.SeverityHigh},
		{"one week out", 7, repository.AlertExpiringSoon, repository.SeverityHigh},
		{"eight days out", 8, repository.AlertExpiringSoon, repository.SeverityMedium},
		{"fifteen days out", 15, repository.AlertExpiringSoon, repository.SeverityMedium},
		{"sixteen days out", 16, repository.AlertExpiringSoon, repository.SeverityLow},
		{"thirty days out", 30, repository.AlertExpiringSoon, repository.SeverityLow},
		{"beyond the window", 31, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alertType, severity := expiryAlertSeverity(tt.days)
			assert.Equal(t, tt.wantType, alertType)
			assert.Equal(t, tt.wantSeverity, severity)
		})
	}
}

func TestDaysUntilExpiry(t *testing.T) {
	now := time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		expiry   time.Time
		expected int
	}{
		{"same day", time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), 0},
		{"tomorrow", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), 1},
		{"yesterday", time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), -1},
		{"a week out", time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC), 7},
		{"time of day ignored", time.Date(2026, 9, 1, 23, 59, 0, 0, time.UTC), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, daysUntilExpiry(tt.expiry, now))
		})
	}
}
