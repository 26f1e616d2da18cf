package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	VQuest   VQuestConfig   `mapstructure:"vquest"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Audit    AuditConfig    `mapstructure:"audit"`
	MCP      MCPConfig      `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Storage backends for sample and results documents.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// MongoConfig represents MongoDB connection configuration
type MongoConfig struct {
	URI               string        `mapstructure:"uri"`
	Database          string        `mapstructure:"database"`
	SamplesCollection string        `mapstructure:"samples_collection"`
	ResultsCollection string        `mapstructure:"results_collection"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
}

// SQLiteConfig represents the embedded database configuration
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
	MaxItems    int           `mapstructure:"max_items"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// VQuestConfig represents the IMGT/V-QUEST client configuration
type VQuestConfig struct {
	URL            string               `mapstructure:"url"`
	UserAgent      string               `mapstructure:"user_agent"`
	Timeout        time.Duration        `mapstructure:"timeout"`
	RateLimit      float64              `mapstructure:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// CircuitBreakerConfig represents circuit breaker settings for an external service
type CircuitBreakerConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

// AnalysisConfig holds output locations and report thresholds
type AnalysisConfig struct {
	OutputDir       string   `mapstructure:"output_dir"`
	ReportDir       string   `mapstructure:"report_dir"`
	UpperCutoff     float64  `mapstructure:"upper_cutoff"`
	LowerCutoff     float64  `mapstructure:"lower_cutoff"`
	Subsets         []string `mapstructure:"subsets"`
	SummaryColumns  []string `mapstructure:"summary_columns"`
	JunctionColumns []string `mapstructure:"junction_columns"`
}

// AuthConfig holds authorization settings. Authentication happens upstream.
type AuthConfig struct {
	UserHeader      string   `mapstructure:"user_header"`
	GroupsHeader    string   `mapstructure:"groups_header"`
	SuperUserGroups []string `mapstructure:"super_user_groups"`
}

// AuditConfig selects the audit trail backend
type AuditConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Driver      string `mapstructure:"driver"`
	DatabaseURL string `mapstructure:"database_url"`
	SQLitePath  string `mapstructure:"sqlite_path"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
}

// DefaultSubsets are the CLL stereotyped subsets recognised in V-QUEST output,
// in matching order.
var DefaultSubsets = []string{"#1", "#2", "#3", "#4", "#5", "#6", "#7", "#8"}

// DefaultSummaryColumns are the summary columns carried into reports.
var DefaultSummaryColumns = []string{
	"V-DOMAIN Functionality",
	"V-GENE and allele",
	"V-REGION score",
	"V-REGION identity %",
	"V-REGION identity nt",
	"V-REGION identity % (with ins/del events)",
	"V-REGION identity nt (with ins/del events)",
	"J-GENE and allele",
	"J-REGION score",
	"J-REGION identity %",
	"J-REGION identity nt",
	"D-GENE and allele",
	"D-REGION reading frame",
	"CDR-IMGT lengths",
	"FR-IMGT lengths",
	"AA JUNCTION",
	"V-DOMAIN Functionality comment",
	"V-REGION insertions",
	"V-REGION deletions",
	"Analysed sequence length",
	"Sequence analysis category",
	"CLL subset",
	"Merge Count",
	"Total Reads Per",
}

// DefaultJunctionColumns are the junction columns carried into reports.
var DefaultJunctionColumns = []string{
	"JUNCTION-nt nb",
	"JUNCTION decryption",
}
