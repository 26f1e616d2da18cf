// Package setup provides status and validation checks for a standalone
// CLL Genie installation.
package setup

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/cll-genie-server/internal/audit"
	"github.com/cll-genie-server/internal/config"
)

// Status describes the local state of a standalone installation.
type Status struct {
	Mode            string
	DataDir         string
	DataDirExists   bool
	DatabasePath    string
	DatabasePresent bool
	AuditDBPath     string
	AuditPresent    bool
	AuditEntries    int64
	OutputDir       string
	ReportDir       string
	ReportFiles     int
	Issues          []string
}

// GetStatus inspects the data directory described by cfg without creating
// anything.
func GetStatus(ctx context.Context, cfg *config.LiteConfig) (*Status, error) {
	status := &Status{
		Mode:         cfg.Mode,
		DataDir:      cfg.DataDir,
		DatabasePath: cfg.DatabasePath(),
		AuditDBPath:  cfg.AuditDBPath(),
		OutputDir:    cfg.OutputDir(),
		ReportDir:    cfg.ReportDir(),
	}

	status.DataDirExists = exists(cfg.DataDir)
	status.DatabasePresent = exists(status.DatabasePath)
	status.AuditPresent = exists(status.AuditDBPath)

	if status.AuditPresent {
		store, err := audit.NewSQLiteStore(status.AuditDBPath)
		if err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("audit database unreadable: %v", err))
		} else {
			defer store.Close()
			count, err := store.Count(ctx)
			if err != nil {
				status.Issues = append(status.Issues, fmt.Sprintf("counting audit entries: %v", err))
			}
			status.AuditEntries = count
		}
	}

	reports, err := filepath.Glob(filepath.Join(status.ReportDir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	status.ReportFiles = len(reports)

	if status.DataDirExists && !status.DatabasePresent {
		status.Issues = append(status.Issues, "data directory exists but holds no database yet")
	}

	return status, nil
}

// Validate checks the configuration and the data directory. It returns
// false together with every problem found.
func Validate(cfg *config.LiteConfig) (bool, []string) {
	var issues []string

	if err := cfg.Manager().Validate(); err != nil {
		issues = append(issues, err.Error())
	}

	switch cfg.Mode {
	case config.ModeHTTP, config.ModeMCP:
	default:
		issues = append(issues, fmt.Sprintf("unknown mode %q (use %s or %s)", cfg.Mode, config.ModeHTTP, config.ModeMCP))
	}

	if cfg.VQuestURL != "" {
		u, err := url.Parse(cfg.VQuestURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, fmt.Sprintf("invalid V-QUEST URL %q", cfg.VQuestURL))
		}
	}

	if len(cfg.SuperUserGroups) == 0 {
		issues = append(issues, "no super-user groups configured; deletions and hiding will be refused")
	}

	if err := checkWritable(cfg.DataDir); err != nil {
		issues = append(issues, fmt.Sprintf("data directory not writable: %v", err))
	}

	return len(issues) == 0, issues
}

func checkWritable(dir string) error {
	if !exists(dir) {
		dir = filepath.Dir(dir)
	}
	f, err := os.CreateTemp(dir, ".cll-genie-check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
