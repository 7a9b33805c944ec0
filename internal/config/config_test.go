package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"server_url": "http://localhost:8080"}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, "console_state", cfg.DBPath)
	assert.Equal(t, 10, cfg.BotsPollIntervalSec)
	assert.Equal(t, 30, cfg.AccountPollIntervalSec)
	assert.Equal(t, 60, cfg.TradesPollIntervalSec)
	assert.Equal(t, 30, cfg.PricePollIntervalSec)
	assert.Equal(t, 30, cfg.SessionCheckIntervalSec)
	assert.Equal(t, 10, cfg.FetchRatePerSec)
	assert.Equal(t, 24, cfg.KlineLookbackHours)
}

func TestLoadConfigKeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, `{
		"server_url": "http://localhost:8080",
		"server_ws_url": "ws://localhost:8080",
		"db_path": "/tmp/console",
		"bots_poll_interval_sec": 5,
		"fetch_rate_per_sec": 50,
		"watch_symbols": ["BTCUSDT", "ETHUSDT"]
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:8080", cfg.ServerWSURL)
	assert.Equal(t, "/tmp/console", cfg.DBPath)
	assert.Equal(t, 5, cfg.BotsPollIntervalSec)
	assert.Equal(t, 50, cfg.FetchRatePerSec)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.WatchSymbols)
}

func TestLoadConfigRequiresServerURL(t *testing.T) {
	path := writeConfig(t, `{"db_path": "/tmp/console"}`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
