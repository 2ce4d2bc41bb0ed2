package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BROKER_API_KEY", "key")
	t.Setenv("BROKER_APP_SECRET", "secret")
	t.Setenv("BROKER_ACCOUNT_ID", "ACC-1")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "https://api.schwabapi.com", cfg.BaseURL)
	assert.Equal(t, 100.0, cfg.DCAAmount)
	assert.Equal(t, "weekly", cfg.DCAFrequency)
	assert.Equal(t, []string{"SPY", "VOO"}, cfg.DCASymbols)
	assert.Equal(t, 0.05, cfg.RebalanceThreshold)
	assert.Equal(t, 0.03, cfg.OpportunisticDipThreshold)
	assert.Equal(t, 30, cfg.OptionsDTE)
	assert.Equal(t, 0.05, cfg.OptionsOTM)
	assert.Equal(t, 4, cfg.SubmitParallelism)
	assert.Equal(t, 2.0, cfg.SubmitRatePerSec)
	assert.Equal(t, "./data/stockpilot.db", cfg.DBPath)
	assert.Equal(t, "INFO", cfg.LogLevel)

	// Default four-fund allocation.
	assert.InDelta(t, 0.40, cfg.TargetAllocation["SPY"], 1e-9)
	assert.InDelta(t, 0.15, cfg.TargetAllocation["AGG"], 1e-9)
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	t.Setenv("BROKER_API_KEY", "")
	t.Setenv("BROKER_APP_SECRET", "")
	t.Setenv("BROKER_ACCOUNT_ID", "")

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BROKER_API_KEY")
	assert.Contains(t, err.Error(), "BROKER_APP_SECRET")
	assert.Contains(t, err.Error(), "BROKER_ACCOUNT_ID")
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DCA_AMOUNT", "250.50")
	t.Setenv("DCA_FREQUENCY", "daily")
	t.Setenv("DCA_SYMBOLS", "spy, qqq")
	t.Setenv("REBALANCE_THRESHOLD", "0.10")
	t.Setenv("SUBMIT_PARALLELISM", "8")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 250.50, cfg.DCAAmount)
	assert.Equal(t, "daily", cfg.DCAFrequency)
	assert.Equal(t, []string{"SPY", "QQQ"}, cfg.DCASymbols)
	assert.Equal(t, 0.10, cfg.RebalanceThreshold)
	assert.Equal(t, 8, cfg.SubmitParallelism)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad DCA frequency", key: "DCA_FREQUENCY", value: "hourly"},
		{name: "bad DCA amount", key: "DCA_AMOUNT", value: "lots"},
		{name: "bad DCA symbols", key: "DCA_SYMBOLS", value: "spy,123"},
		{name: "threshold out of range", key: "REBALANCE_THRESHOLD", value: "1.5"},
		{name: "dip threshold out of range", key: "OPPORTUNISTIC_DIP_THRESHOLD", value: "0"},
		{name: "negative DTE", key: "OPTIONS_DAYS_TO_EXPIRY", value: "-5"},
		{name: "zero parallelism", key: "SUBMIT_PARALLELISM", value: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig("")
			require.Error(t, err)
		})
	}
}

func TestLoadConfig_TargetAllocationJSON(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TARGET_ALLOCATION", `{"SPY": 0.7, "AGG": 0.3}`)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.InDelta(t, 0.7, cfg.TargetAllocation["SPY"], 1e-9)
	assert.InDelta(t, 0.3, cfg.TargetAllocation["AGG"], 1e-9)
	assert.Len(t, cfg.TargetAllocation, 2)
}

func TestLoadConfig_TargetAllocationJSONInvalid(t *testing.T) {
	setRequiredEnv(t)

	t.Run("malformed JSON", func(t *testing.T) {
		t.Setenv("TARGET_ALLOCATION", `{"SPY": }`)
		_, err := LoadConfig("")
		require.Error(t, err)
	})

	t.Run("does not sum to one", func(t *testing.T) {
		t.Setenv("TARGET_ALLOCATION", `{"SPY": 0.5}`)
		_, err := LoadConfig("")
		require.Error(t, err)
	})
}

func TestLoadConfig_TargetAllocationFile(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "allocation.yaml")
	require.NoError(t, os.WriteFile(path, []byte("SPY: 0.6\nQQQ: 0.4\n"), 0644))
	t.Setenv("TARGET_ALLOCATION_FILE", path)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, cfg.TargetAllocation["SPY"], 1e-9)
	assert.InDelta(t, 0.4, cfg.TargetAllocation["QQQ"], 1e-9)
}

func TestLoadConfig_EnvFileMissing(t *testing.T) {
	setRequiredEnv(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.env"))
	require.Error(t, err)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	setRequiredEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("DCA_AMOUNT=42.00\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 42.0, cfg.DCAAmount)
}
