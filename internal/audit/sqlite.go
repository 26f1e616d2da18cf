package audit

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite audit store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(s scanner) (*Entry, error) {
	e := &Entry{}
	err := s.Scan(
		&e.ID, &e.Operation, &e.SampleID, &e.SubmissionID, &e.Actor,
		&e.Success, &e.Payload, &e.Error, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// createSchema creates the audit table and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation TEXT NOT NULL,
		sample_id TEXT NOT NULL,
		submission_id TEXT NOT NULL DEFAULT '',
		actor TEXT NOT NULL DEFAULT '',
		success INTEGER NOT NULL,
		payload TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_audit_sample_id ON audit_log(sample_id);
	CREATE INDEX IF NOT EXISTS idx_audit_success ON audit_log(success);
	`

	_, err := db.Exec(schema)
	return err
}

// whereClause renders filter conditions with the given placeholder style.
func whereClause(filter Filter, placeholder func(n int) string) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if filter.SampleID != "" {
		args = append(args, filter.SampleID)
		conds = append(conds, "sample_id = "+placeholder(len(args)))
	}
	if filter.FailedOnly {
		args = append(args, false)
		conds = append(conds, "success = "+placeholder(len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// Record appends an entry.
func (s *SQLiteStore) Record(ctx context.Context, entry *Entry) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (
			operation, sample_id, submission_id, actor,
			success, payload, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.Operation,
		entry.SampleID,
		entry.SubmissionID,
		entry.Actor,
		entry.Success,
		entry.Payload,
		entry.Error,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	entry.ID = id
	return nil
}

// List returns entries, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter, limit, offset int) ([]*Entry, error) {
	where, args := whereClause(filter, func(int) string { return "?" })
	query := `
		SELECT id, operation, sample_id, submission_id, actor,
			success, payload, error, created_at
		FROM audit_log ` + where + `
		ORDER BY id DESC
		LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Count returns the total number of entries.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log").Scan(&count)
	return count, err
}

// ExportJSON writes every entry to writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, Filter{}, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list audit entries: %w", err)
	}
	return writeExport(writer, all)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
