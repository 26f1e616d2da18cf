// Package config provides configuration management for the CLL Genie server.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cll-genie-server/internal/domain"
)

// Lite serving modes.
const (
	ModeHTTP = "http"
	ModeMCP  = "mcp"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for databases, artifacts and reports

	// Cache settings
	CacheMaxItems int           // Maximum summaries in memory cache
	CacheTTL      time.Duration // Summary cache TTL

	// V-QUEST
	VQuestURL     string
	VQuestTimeout time.Duration

	// Serving
	Mode            string // http or mcp
	HTTPPort        int
	SuperUserGroups []string

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".cll-genie")

	return &LiteConfig{
		DataDir:         dataDir,
		CacheMaxItems:   1000,
		CacheTTL:        24 * time.Hour,
		VQuestTimeout:   10 * time.Minute,
		Mode:            ModeHTTP,
		HTTPPort:        8080,
		SuperUserGroups: []string{"cll_genie_admin"},
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	// Data directory
	if v := os.Getenv("CLL_GENIE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Cache settings
	if v := os.Getenv("CLL_GENIE_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("CLL_GENIE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	// V-QUEST
	cfg.VQuestURL = os.Getenv("CLL_GENIE_VQUEST_URL")
	if v := os.Getenv("CLL_GENIE_VQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.VQuestTimeout = d
		}
	}

	// Serving
	if v := os.Getenv("CLL_GENIE_MODE"); v != "" {
		cfg.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("CLL_GENIE_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}
	if v := os.Getenv("CLL_GENIE_SUPER_USER_GROUPS"); v != "" {
		cfg.SuperUserGroups = splitList(v)
	}

	// Logging
	if v := os.Getenv("CLL_GENIE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CLL_GENIE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// DatabasePath returns the path to the sample and results SQLite database.
func (c *LiteConfig) DatabasePath() string {
	return filepath.Join(c.DataDir, "cll_genie.db")
}

// AuditDBPath returns the path to the audit trail SQLite database.
func (c *LiteConfig) AuditDBPath() string {
	return filepath.Join(c.DataDir, "audit.db")
}

// OutputDir returns the root of the V-QUEST artifact directories.
func (c *LiteConfig) OutputDir() string {
	return filepath.Join(c.DataDir, "vquest")
}

// ReportDir returns the directory for exported reports.
func (c *LiteConfig) ReportDir() string {
	return filepath.Join(c.DataDir, "reports")
}

// EnsureDataDir creates the data directories if they don't exist.
func (c *LiteConfig) EnsureDataDir() error {
	for _, dir := range []string{c.DataDir, c.OutputDir(), c.ReportDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// Config expands the lite settings into a full configuration backed by
// SQLite and the in-memory cache.
func (c *LiteConfig) Config() *domain.Config {
	return &domain.Config{
		Server: domain.ServerConfig{
			Host:           "0.0.0.0",
			Port:           c.HTTPPort,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   3 * c.VQuestTimeout,
			IdleTimeout:    120 * time.Second,
			RequestTimeout: 3 * c.VQuestTimeout,
		},
		Database: domain.DatabaseConfig{Driver: domain.DriverSQLite},
		SQLite:   domain.SQLiteConfig{Path: c.DatabasePath()},
		Cache: domain.CacheConfig{
			DefaultTTL: c.CacheTTL,
			MaxItems:   c.CacheMaxItems,
		},
		Logging: domain.LoggingConfig{Level: c.LogLevel, Format: c.LogFormat, Output: "stderr"},
		VQuest: domain.VQuestConfig{
			URL:     c.VQuestURL,
			Timeout: c.VQuestTimeout,
		},
		Analysis: domain.AnalysisConfig{
			OutputDir:       c.OutputDir(),
			ReportDir:       c.ReportDir(),
			UpperCutoff:     97.98,
			LowerCutoff:     97.00,
			Subsets:         domain.DefaultSubsets,
			SummaryColumns:  domain.DefaultSummaryColumns,
			JunctionColumns: domain.DefaultJunctionColumns,
		},
		Auth:  domain.AuthConfig{SuperUserGroups: c.SuperUserGroups},
		Audit: domain.AuditConfig{Enabled: true, Driver: domain.DriverSQLite, SQLitePath: c.AuditDBPath()},
		MCP:   domain.MCPConfig{ServerName: "cll-genie-server-lite", ServerVersion: "v1.0.0"},
	}
}

// Manager wraps the expanded configuration as a ConfigManager.
func (c *LiteConfig) Manager() domain.ConfigManager {
	return &staticManager{config: c.Config()}
}

type staticManager struct {
	config *domain.Config
}

func (m *staticManager) GetConfig() *domain.Config                 { return m.config }
func (m *staticManager) GetDatabaseConfig() *domain.DatabaseConfig { return &m.config.Database }
func (m *staticManager) GetServerConfig() *domain.ServerConfig     { return &m.config.Server }
func (m *staticManager) GetVQuestConfig() *domain.VQuestConfig     { return &m.config.VQuest }
func (m *staticManager) GetAnalysisConfig() *domain.AnalysisConfig { return &m.config.Analysis }
func (m *staticManager) Validate() error                           { return Validate(m.config) }
