package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/cll-genie-server/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. CLL_GENIE_SERVER_PORT.
const EnvPrefix = "CLL_GENIE"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	file   string
	config *domain.Config
}

// NewManager creates a new configuration manager. An empty configFile
// searches the default locations for config.yaml; a missing file is not an
// error.
func NewManager(configFile string) (*Manager, error) {
	m := &Manager{file: configFile}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.file != "" {
		v.SetConfigFile(m.file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/cll-genie/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if m.file != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "25m")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "25m")

	// Database defaults
	v.SetDefault("database.driver", domain.DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "cll_genie")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "migrations")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "cll_genie")
	v.SetDefault("mongo.samples_collection", "samples")
	v.SetDefault("mongo.results_collection", "vquest_results")
	v.SetDefault("mongo.connect_timeout", "10s")

	v.SetDefault("sqlite.path", "data/cll_genie.db")

	// Cache defaults
	v.SetDefault("cache.redis_url", "redis://localhost:6379")
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")
	v.SetDefault("cache.max_items", 1000)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// V-QUEST defaults
	v.SetDefault("vquest.url", "https://www.imgt.org/IMGT_vquest/analysis")
	v.SetDefault("vquest.timeout", "10m")
	v.SetDefault("vquest.rate_limit", 1)
	v.SetDefault("vquest.circuit_breaker.max_requests", 1)
	v.SetDefault("vquest.circuit_breaker.interval", "10m")
	v.SetDefault("vquest.circuit_breaker.timeout", "60s")
	v.SetDefault("vquest.circuit_breaker.min_requests", 3)
	v.SetDefault("vquest.circuit_breaker.failure_ratio", 0.6)

	// Analysis defaults
	v.SetDefault("analysis.output_dir", "data/vquest")
	v.SetDefault("analysis.report_dir", "data/reports")
	v.SetDefault("analysis.upper_cutoff", 97.98)
	v.SetDefault("analysis.lower_cutoff", 97.00)
	v.SetDefault("analysis.subsets", domain.DefaultSubsets)
	v.SetDefault("analysis.summary_columns", domain.DefaultSummaryColumns)
	v.SetDefault("analysis.junction_columns", domain.DefaultJunctionColumns)

	v.SetDefault("auth.user_header", "X-Remote-User")
	v.SetDefault("auth.groups_header", "X-Remote-Groups")
	v.SetDefault("auth.super_user_groups", []string{"cll_genie_admin"})

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.driver", domain.DriverPostgres)
	v.SetDefault("audit.sqlite_path", "data/audit.db")

	v.SetDefault("mcp.server_name", "cll-genie-server")
	v.SetDefault("mcp.server_version", "v1.0.0")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetVQuestConfig returns the V-QUEST client configuration
func (m *Manager) GetVQuestConfig() *domain.VQuestConfig {
	return &m.config.VQuest
}

// GetAnalysisConfig returns output locations and report thresholds
func (m *Manager) GetAnalysisConfig() *domain.AnalysisConfig {
	return &m.config.Analysis
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	return Validate(m.config)
}

// Validate checks a configuration for values the server cannot start with.
func Validate(config *domain.Config) error {
	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.RequestTimeout > 0 && config.VQuest.Timeout > 0 && config.Server.RequestTimeout < config.VQuest.Timeout {
		return fmt.Errorf("server request timeout %s is shorter than the V-QUEST timeout %s", config.Server.RequestTimeout, config.VQuest.Timeout)
	}

	// Validate storage configuration
	switch config.Database.Driver {
	case domain.DriverPostgres:
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	case domain.DriverMongo:
		if config.Mongo.URI == "" {
			return fmt.Errorf("mongo uri is required")
		}
		if config.Mongo.Database == "" {
			return fmt.Errorf("mongo database is required")
		}
	case domain.DriverSQLite:
		if config.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	default:
		return fmt.Errorf("unknown database driver: %q", config.Database.Driver)
	}

	if config.Analysis.OutputDir == "" {
		return fmt.Errorf("analysis output directory is required")
	}
	if config.Analysis.ReportDir == "" {
		return fmt.Errorf("analysis report directory is required")
	}
	if config.Analysis.LowerCutoff > config.Analysis.UpperCutoff {
		return fmt.Errorf("lower identity cutoff %.2f is above the upper cutoff %.2f", config.Analysis.LowerCutoff, config.Analysis.UpperCutoff)
	}

	if config.Audit.Enabled {
		switch config.Audit.Driver {
		case domain.DriverPostgres, domain.DriverSQLite:
		default:
			return fmt.Errorf("unknown audit driver: %q", config.Audit.Driver)
		}
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}
