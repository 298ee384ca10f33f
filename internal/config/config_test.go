package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test: defaults and layering
// ============================================================================

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "https://api.ledgerx.com", cfg.APIBaseURL)
	assert.Equal(t, "wss://api.ledgerx.com/ws", cfg.FeedURL)
	assert.Equal(t, 200, cfg.PageLimit)
	assert.True(t, cfg.SkipExpired)
	assert.Equal(t, 60, cfg.MaxParallelBookLoads)
	assert.Equal(t, 20, cfg.CatchUpLimit)
	assert.Equal(t, 15*time.Second, cfg.ExpiryGuard)
	assert.Equal(t, 2*time.Second, cfg.HeartbeatStaleness)
	assert.Equal(t, 5*time.Hour, cfg.TradeReplayWindow)
	assert.Equal(t, ":9091", cfg.MetricsAddr)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.yaml")
	body := `
api_key: file-key
feed_url: wss://example.test/ws
catch_up_limit: 7
heartbeat_staleness: 5s
skip_expired: false
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.APIKey)
	assert.Equal(t, "wss://example.test/ws", cfg.FeedURL)
	assert.Equal(t, 7, cfg.CatchUpLimit)
	assert.Equal(t, 5*time.Second, cfg.HeartbeatStaleness)
	assert.False(t, cfg.SkipExpired)
	// Untouched keys keep their defaults.
	assert.Equal(t, "https://api.ledgerx.com", cfg.APIBaseURL)
	assert.Equal(t, 60, cfg.MaxParallelBookLoads)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_key: file-key\npage_limit: 50\n"), 0o600))

	t.Setenv("MIRROR_API_KEY", "env-key")
	t.Setenv("MIRROR_PAGE_LIMIT", "25")
	t.Setenv("MIRROR_TRADE_REPLAY_WINDOW", "90m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, 25, cfg.PageLimit)
	assert.Equal(t, 90*time.Minute, cfg.TradeReplayWindow)
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("MIRROR_API_KEY", "env-key")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.APIKey)
}

func TestLoad_MissingFileIsAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

// ============================================================================
// Test: validation
// ============================================================================

func TestLoad_MissingAPIKeyRejected(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestLoad_BadTuningRejected(t *testing.T) {
	t.Setenv("MIRROR_API_KEY", "env-key")

	t.Setenv("MIRROR_MAX_PARALLEL_BOOK_LOADS", "0")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("MIRROR_MAX_PARALLEL_BOOK_LOADS", "8")
	t.Setenv("MIRROR_CATCH_UP_LIMIT", "-1")
	_, err = Load("")
	assert.Error(t, err)

	t.Setenv("MIRROR_CATCH_UP_LIMIT", "0")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.CatchUpLimit)
}
