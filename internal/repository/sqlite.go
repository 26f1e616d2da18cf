package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/cll-genie-server/internal/domain"
)

// SQLiteRepository stores documents as JSON text in an embedded database.
type SQLiteRepository struct {
	db     *sql.DB
	dbPath string
	log    *logrus.Logger
}

// NewSQLiteRepository opens the database file, creating it and its schema
// if they don't exist.
func NewSQLiteRepository(dbPath string, logger *logrus.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer avoids SQLITE_BUSY on concurrent read-modify-write.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createDocumentSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.WithField("path", dbPath).Info("SQLite repository opened")

	return &SQLiteRepository{
		db:     db,
		dbPath: dbPath,
		log:    logger,
	}, nil
}

func createDocumentSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS samples (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		vquest INTEGER NOT NULL DEFAULT 0,
		report INTEGER NOT NULL DEFAULT 0,
		document TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_samples_name ON samples(name);
	CREATE INDEX IF NOT EXISTS idx_samples_created_at ON samples(created_at);

	CREATE TABLE IF NOT EXISTS vquest_results (
		sample_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		document TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := db.Exec(schema)
	return err
}

// Path returns the database file location.
func (r *SQLiteRepository) Path() string {
	return r.dbPath
}

// CreateSample inserts a new sample
func (r *SQLiteRepository) CreateSample(ctx context.Context, sample *domain.Sample) error {
	if err := requireID("sample", sample.ID); err != nil {
		return err
	}
	stampSample(sample, true)
	data, err := encodeSample(sample)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO samples (id, name, vquest, report, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`,
		sample.ID,
		sample.Name,
		sample.VQuest,
		sample.Report,
		string(data),
		sample.CreatedAt,
		sample.UpdatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"sample_id": sample.ID,
			"error":     err,
		}).Error("Failed to create sample")
		return fmt.Errorf("failed to insert sample: %w", err)
	}
	if err := expectRow(result, fmt.Errorf("sample %s: %w", sample.ID, domain.ErrDuplicate)); err != nil {
		return err
	}

	r.log.WithFields(logrus.Fields{
		"sample_id": sample.ID,
		"name":      sample.Name,
	}).Info("Sample created successfully")
	return nil
}

// GetSample retrieves a sample by ID
func (r *SQLiteRepository) GetSample(ctx context.Context, id string) (*domain.Sample, error) {
	var data string
	err := r.db.QueryRowContext(ctx, "SELECT document FROM samples WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sample %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sample: %w", err)
	}
	return decodeSample([]byte(data))
}

// ListSamples returns samples, newest first
func (r *SQLiteRepository) ListSamples(ctx context.Context, limit, offset int) ([]*domain.Sample, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT document FROM samples
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`, listLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []*domain.Sample
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		sample, err := decodeSample([]byte(data))
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// UpdateSample replaces the stored sample document
func (r *SQLiteRepository) UpdateSample(ctx context.Context, sample *domain.Sample) error {
	stampSample(sample, false)
	data, err := encodeSample(sample)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE samples SET
			name = ?,
			vquest = ?,
			report = ?,
			document = ?,
			updated_at = ?
		WHERE id = ?
	`,
		sample.Name,
		sample.VQuest,
		sample.Report,
		string(data),
		sample.UpdatedAt,
		sample.ID,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"sample_id": sample.ID,
			"error":     err,
		}).Error("Failed to update sample")
		return fmt.Errorf("failed to update sample: %w", err)
	}
	return expectRow(result, fmt.Errorf("sample %s: %w", sample.ID, domain.ErrNotFound))
}

// InsertResults creates the results document for a sample
func (r *SQLiteRepository) InsertResults(ctx context.Context, doc *domain.ResultsDocument) error {
	if err := requireID("sample", doc.ID); err != nil {
		return err
	}
	data, err := encodeResults(doc)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO vquest_results (sample_id, name, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (sample_id) DO NOTHING
	`, doc.ID, doc.Name, string(data), now, now)
	if err != nil {
		return fmt.Errorf("failed to insert results: %w", err)
	}
	return expectRow(result, fmt.Errorf("results for sample %s: %w", doc.ID, domain.ErrDuplicate))
}

// GetResults retrieves the results document for a sample
func (r *SQLiteRepository) GetResults(ctx context.Context, sampleID string) (*domain.ResultsDocument, error) {
	var data string
	err := r.db.QueryRowContext(ctx, "SELECT document FROM vquest_results WHERE sample_id = ?", sampleID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("results for sample %s: %w", sampleID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	return decodeResults([]byte(data))
}

// ReplaceResults overwrites an existing results document
func (r *SQLiteRepository) ReplaceResults(ctx context.Context, doc *domain.ResultsDocument) error {
	data, err := encodeResults(doc)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE vquest_results SET name = ?, document = ?, updated_at = ?
		WHERE sample_id = ?
	`, doc.Name, string(data), time.Now().UTC(), doc.ID)
	if err != nil {
		return fmt.Errorf("failed to replace results: %w", err)
	}
	return expectRow(result, fmt.Errorf("results for sample %s: %w", doc.ID, domain.ErrNotFound))
}

// DeleteResults removes the results document for a sample
func (r *SQLiteRepository) DeleteResults(ctx context.Context, sampleID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM vquest_results WHERE sample_id = ?", sampleID)
	if err != nil {
		return fmt.Errorf("failed to delete results: %w", err)
	}
	return expectRow(result, fmt.Errorf("results for sample %s: %w", sampleID, domain.ErrNotFound))
}

// Ping checks the connection
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// expectRow returns missing when the statement touched no rows.
func expectRow(result sql.Result, missing error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}
