package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cll-genie-server/internal/domain"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 10*time.Minute, cfg.VQuestTimeout)
	assert.Equal(t, ModeHTTP, cfg.Mode)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, ModeHTTP, cfg.Mode)
	assert.Empty(t, cfg.VQuestURL)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("CLL_GENIE_DATA_DIR", "/tmp/test-cll")
	t.Setenv("CLL_GENIE_CACHE_MAX_ITEMS", "500")
	t.Setenv("CLL_GENIE_CACHE_TTL", "12h")
	t.Setenv("CLL_GENIE_MODE", "MCP")
	t.Setenv("CLL_GENIE_HTTP_PORT", "9090")
	t.Setenv("CLL_GENIE_LOG_LEVEL", "debug")
	t.Setenv("CLL_GENIE_VQUEST_URL", "http://vquest.local/analysis")
	t.Setenv("CLL_GENIE_VQUEST_TIMEOUT", "2m")
	t.Setenv("CLL_GENIE_SUPER_USER_GROUPS", "lab_admin, ,cll_genie_admin")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-cll", cfg.DataDir)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, ModeMCP, cfg.Mode)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://vquest.local/analysis", cfg.VQuestURL)
	assert.Equal(t, 2*time.Minute, cfg.VQuestTimeout)
	assert.Equal(t, []string{"lab_admin", "cll_genie_admin"}, cfg.SuperUserGroups)
}

func TestLoadLiteConfig_IgnoresInvalidNumbers(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("CLL_GENIE_CACHE_MAX_ITEMS", "-4")
	t.Setenv("CLL_GENIE_HTTP_PORT", "http")
	t.Setenv("CLL_GENIE_VQUEST_TIMEOUT", "soon")

	cfg := LoadLiteConfig()

	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 10*time.Minute, cfg.VQuestTimeout)
}

func TestLiteConfig_Paths(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.cll-genie"}

	assert.Equal(t, "/home/user/.cll-genie/cll_genie.db", cfg.DatabasePath())
	assert.Equal(t, "/home/user/.cll-genie/audit.db", cfg.AuditDBPath())
	assert.Equal(t, "/home/user/.cll-genie/vquest", cfg.OutputDir())
	assert.Equal(t, "/home/user/.cll-genie/reports", cfg.ReportDir())
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: filepath.Join(t.TempDir(), "cll")}

	require.NoError(t, cfg.EnsureDataDir())

	for _, dir := range []string{cfg.DataDir, cfg.OutputDir(), cfg.ReportDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestLiteConfig_ManagerIsValid(t *testing.T) {
	cfg := DefaultLiteConfig()
	cfg.DataDir = t.TempDir()

	manager := cfg.Manager()

	require.NoError(t, manager.Validate())
	assert.Equal(t, domain.DriverSQLite, manager.GetDatabaseConfig().Driver)
	assert.Equal(t, cfg.DatabasePath(), manager.GetConfig().SQLite.Path)
	assert.Equal(t, cfg.OutputDir(), manager.GetAnalysisConfig().OutputDir)
	assert.Equal(t, domain.DriverSQLite, manager.GetConfig().Audit.Driver)
	assert.GreaterOrEqual(t, manager.GetServerConfig().RequestTimeout, manager.GetVQuestConfig().Timeout)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"CLL_GENIE_DATA_DIR",
		"CLL_GENIE_CACHE_MAX_ITEMS",
		"CLL_GENIE_CACHE_TTL",
		"CLL_GENIE_MODE",
		"CLL_GENIE_HTTP_PORT",
		"CLL_GENIE_LOG_LEVEL",
		"CLL_GENIE_LOG_FORMAT",
		"CLL_GENIE_VQUEST_URL",
		"CLL_GENIE_VQUEST_TIMEOUT",
		"CLL_GENIE_SUPER_USER_GROUPS",
	}
	for _, v := range vars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}
