package domain

import (
	"context"
)

// SampleRepository persists sample documents.
type SampleRepository interface {
	CreateSample(ctx context.Context, sample *Sample) error
	GetSample(ctx context.Context, id string) (*Sample, error)
	ListSamples(ctx context.Context, limit, offset int) ([]*Sample, error)
	UpdateSample(ctx context.Context, sample *Sample) error
}

// ResultsRepository persists one results document per sample.
// InsertResults fails with ErrDuplicate when a document already exists;
// GetResults and ReplaceResults fail with ErrNotFound when none exists.
type ResultsRepository interface {
	InsertResults(ctx context.Context, doc *ResultsDocument) error
	GetResults(ctx context.Context, sampleID string) (*ResultsDocument, error)
	ReplaceResults(ctx context.Context, doc *ResultsDocument) error
	DeleteResults(ctx context.Context, sampleID string) error
}

// Repository is a storage backend serving both document kinds.
type Repository interface {
	SampleRepository
	ResultsRepository
	Ping(ctx context.Context) error
	Close() error
}

// SummaryCache caches generated report summary text.
type SummaryCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	GetVQuestConfig() *VQuestConfig
	GetAnalysisConfig() *AnalysisConfig
	Validate() error
}
