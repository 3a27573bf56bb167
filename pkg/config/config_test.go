package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithValidation_Defaults(t *testing.T) {
	cfg, err := LoadWithValidation("inventory-service")
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Server.Environment)
	assert.Equal(t, 30, cfg.Alerts.ExpiringWindowDays)
}

func TestLoadWithValidation_RejectsShortScanInterval(t *testing.T) {
	t.Setenv("PHARMSTOCK_ALERTS_SCAN_INTERVAL", "30s")

	_, err := LoadWithValidation("inventory-service")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan_interval")
}

func TestLoadWithValidation_RejectsNarrowExpiringWindow(t *testing.T) {
	t.Setenv("PHARMSTOCK_ALERTS_EXPIRING_WINDOW_DAYS", "7")

	_, err := LoadWithValidation("inventory-service")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expiring_window_days")
}

func TestLoadWithValidation_AcceptsWiderExpiringWindow(t *testing.T) {
	t.Setenv("PHARMSTOCK_ALERTS_EXPIRING_WINDOW_DAYS", "60")

	cfg, err := LoadWithValidation("inventory-service")
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Alerts.ExpiringWindowDays)
}
