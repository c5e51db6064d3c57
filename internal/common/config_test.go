package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, "./data", config.Storage.Badger.Path)
	assert.Equal(t, time.Second, config.Login.PollInterval)
	assert.Equal(t, 5*time.Minute, config.Login.CompleteTimeout)
	assert.Equal(t, 10*time.Minute, config.Login.MaxFlowDuration)
	assert.False(t, config.Browser.Headless)
}

func TestLoadFromFiles_MergeOrder(t *testing.T) {
	dir := t.TempDir()

	base := filepath.Join(dir, "base.toml")
	require.NoError(t, os.WriteFile(base, []byte(`
environment = "production"

[server]
port = 8080

[integrations.slack]
workspace_url = "https://example.slack.com"
username = "user@example.com"
`), 0644))

	override := filepath.Join(dir, "override.toml")
	require.NoError(t, os.WriteFile(override, []byte(`
[server]
port = 8081
`), 0644))

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	// Later files override earlier ones; untouched fields keep defaults
	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, 8081, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, "https://example.slack.com", config.Integrations["slack"].WorkspaceURL)
}

func TestLoadFromFiles_RateLimits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[rate_limits."linkedin.search"]
calls = 1
window = "60s"
max_wait = "5s"
`), 0644))

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	quota := config.RateLimits["linkedin.search"]
	assert.Equal(t, 1, quota.Calls)
	assert.Equal(t, time.Minute, quota.Window)
	assert.Equal(t, 5*time.Second, quota.MaxWait)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles("/nonexistent/claviger.toml")
	assert.Error(t, err)
}

func TestLoadFromFiles_EnvOverrides(t *testing.T) {
	t.Setenv("CLAVIGER_SERVER_PORT", "7000")
	t.Setenv("CLAVIGER_SERVER_HOST", "0.0.0.0")
	t.Setenv("CLAVIGER_LOG_LEVEL", "debug")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 7000, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, 9999, "127.0.0.1")
	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)

	// Zero values leave config untouched
	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)
}

func TestConfig_Integration(t *testing.T) {
	config := NewDefaultConfig()
	config.Integrations["canvas"] = IntegrationConfig{
		Username: "student",
		Password: "secret",
	}

	assert.Equal(t, "student", config.Integration("canvas").Username)
	// Unknown integrations return an empty config, not an error
	assert.Equal(t, IntegrationConfig{}, config.Integration("unknown"))
}
