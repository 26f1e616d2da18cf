// Package app assembles the storage backends, the V-QUEST client and the
// services from a configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/cll-genie-server/internal/api"
	"github.com/cll-genie-server/internal/audit"
	"github.com/cll-genie-server/internal/cache"
	"github.com/cll-genie-server/internal/database"
	"github.com/cll-genie-server/internal/domain"
	"github.com/cll-genie-server/internal/mcp"
	"github.com/cll-genie-server/internal/report"
	"github.com/cll-genie-server/internal/repository"
	"github.com/cll-genie-server/internal/results"
	"github.com/cll-genie-server/internal/service"
	"github.com/cll-genie-server/pkg/vquest"
)

const defaultCacheItems = 1000

// App holds the wired services and the resources they depend on.
type App struct {
	Samples  *service.SampleService
	Analysis *service.AnalysisService
	Reports  *service.ReportService
	Results  *results.Store

	repo    domain.Repository
	closers []io.Closer
	logger  *logrus.Logger
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// New opens the configured backends and builds the services. Resources
// opened before a failure are released.
func New(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*App, error) {
	a := &App{logger: logger}

	// Step 1: Open the sample and results repository
	repo, err := a.openRepository(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.repo = repo

	// Step 2: Open the audit trail
	auditLog, err := a.openAudit(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	// Step 3: Pick the summary cache
	summaries, err := a.openCache(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	// Step 4: Build the report writer
	writer, err := report.NewWriter(cfg.Analysis.ReportDir, cfg.Analysis.SummaryColumns, cfg.Analysis.JunctionColumns, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create report writer: %w", err)
	}

	// Step 5: Wire the services
	client := vquest.NewClient(cfg.VQuest, logger)
	a.Results = results.NewStore(repo, repo, auditLog, summaries, cfg.Analysis.OutputDir, logger)
	a.Samples = service.NewSampleService(logger, repo, a.Results)
	a.Analysis = service.NewAnalysisService(logger, repo, a.Results, client, cfg.Analysis)
	a.Reports = service.NewReportService(logger, repo, a.Results, report.NewGenerator(cfg.Analysis), writer, summaries)

	logger.WithFields(logrus.Fields{
		"driver":     cfg.Database.Driver,
		"audit":      cfg.Audit.Enabled,
		"output_dir": cfg.Analysis.OutputDir,
		"report_dir": cfg.Analysis.ReportDir,
		"vquest_url": cfg.VQuest.URL,
	}).Info("Application wired successfully")

	return a, nil
}

func (a *App) openRepository(ctx context.Context, cfg *domain.Config) (domain.Repository, error) {
	switch cfg.Database.Driver {
	case domain.DriverPostgres:
		dbConfig := database.ConfigFrom(cfg.Database)
		if err := database.Migrate(ctx, dbConfig.URL(), cfg.Database.MigrationsPath, a.logger); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		db, err := database.NewConnection(ctx, dbConfig, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, closerFunc(func() error {
			db.Close()
			return nil
		}))
		return repository.NewPostgresRepository(db.Pool, a.logger), nil

	case domain.DriverMongo:
		repo, err := repository.NewMongoRepository(ctx, cfg.Mongo, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		a.closers = append(a.closers, repo)
		return repo, nil

	case domain.DriverSQLite:
		if err := ensureParent(cfg.SQLite.Path); err != nil {
			return nil, err
		}
		repo, err := repository.NewSQLiteRepository(cfg.SQLite.Path, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		a.closers = append(a.closers, repo)
		return repo, nil

	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Database.Driver)
	}
}

func (a *App) openAudit(cfg *domain.Config) (audit.Store, error) {
	if !cfg.Audit.Enabled {
		return audit.Discard{}, nil
	}

	switch cfg.Audit.Driver {
	case domain.DriverSQLite:
		if err := ensureParent(cfg.Audit.SQLitePath); err != nil {
			return nil, err
		}
		store, err := audit.NewSQLiteStore(cfg.Audit.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit store: %w", err)
		}
		a.closers = append(a.closers, store)
		return store, nil

	case domain.DriverPostgres:
		url := cfg.Audit.DatabaseURL
		if url == "" {
			url = database.ConfigFrom(cfg.Database).URL()
		}
		store, err := audit.NewPostgresStoreFromURL(url)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit store: %w", err)
		}
		a.closers = append(a.closers, store)
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported audit driver: %q", cfg.Audit.Driver)
	}
}

// openCache prefers Redis when one is configured for a server deployment.
// An unreachable Redis falls back to the in-process cache.
func (a *App) openCache(cfg *domain.Config) (domain.SummaryCache, error) {
	if cfg.Cache.RedisURL != "" && cfg.Database.Driver != domain.DriverSQLite {
		redisCache, err := cache.NewRedisCache(cfg.Cache)
		if err == nil {
			a.closers = append(a.closers, redisCache)
			return redisCache, nil
		}
		a.logger.WithError(err).Warn("Redis unavailable, using in-memory summary cache")
	}

	maxItems := cfg.Cache.MaxItems
	if maxItems <= 0 {
		maxItems = defaultCacheItems
	}
	memoryCache, err := cache.NewMemoryCache(maxItems, cfg.Cache.DefaultTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create summary cache: %w", err)
	}
	return memoryCache, nil
}

// APIServices returns the services for the HTTP server.
func (a *App) APIServices() *api.Services {
	return &api.Services{
		Samples:  a.Samples,
		Analysis: a.Analysis,
		Reports:  a.Reports,
		Results:  a.Results,
		Ping:     a.repo.Ping,
	}
}

// MCPServices returns the services for the MCP server.
func (a *App) MCPServices() *mcp.Services {
	return &mcp.Services{
		Samples: a.Samples,
		Reports: a.Reports,
		Results: a.Results,
	}
}

// Close releases everything New opened, last opened first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func ensureParent(path string) error {
	if path == "" {
		return fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return nil
}
