package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stockfeed/internal/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SUPABASE_URL", "https://proj.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service-key")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, "batch", cfg.Source)
	require.Len(t, cfg.Tickers, 13)
	require.Contains(t, cfg.Tickers, "SPY")
	require.Equal(t, 300, cfg.RetentionDays)
	require.Equal(t, 15*time.Second, cfg.RequestTimeout)
	require.Equal(t, 2, cfg.GroupMin)
	require.Equal(t, 5, cfg.GroupMax)
	require.Equal(t, 3, cfg.MaxRetries)
}

func TestLoad_MissingCredentialsIsFatal(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://proj.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "")

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("QUOTE_SOURCE", "history")
	t.Setenv("TICKERS", "SPY,BIL")
	t.Setenv("RETENTION_DAYS", "120")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "history", cfg.Source)
	require.Equal(t, []string{"SPY", "BIL"}, cfg.Tickers)
	require.Equal(t, 120, cfg.RetentionDays)
}

func TestLoad_RejectsUnknownSource(t *testing.T) {
	setRequired(t)
	t.Setenv("QUOTE_SOURCE", "websocket")

	_, err := config.Load()
	require.Error(t, err)
}
