package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/cll-genie-server/internal/domain"
)

// PostgresRepository stores documents as JSONB rows.
type PostgresRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *pgxpool.Pool, logger *logrus.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:  db,
		log: logger,
	}
}

// CreateSample inserts a new sample
func (r *PostgresRepository) CreateSample(ctx context.Context, sample *domain.Sample) error {
	if err := requireID("sample", sample.ID); err != nil {
		return err
	}
	stampSample(sample, true)
	data, err := encodeSample(sample)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO samples (id, name, vquest, report, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	tag, err := r.db.Exec(ctx, query,
		sample.ID,
		sample.Name,
		sample.VQuest,
		sample.Report,
		data,
		sample.CreatedAt,
		sample.UpdatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"sample_id": sample.ID,
			"error":     err,
		}).Error("Failed to create sample")
		return fmt.Errorf("creating sample: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sample %s: %w", sample.ID, domain.ErrDuplicate)
	}

	r.log.WithFields(logrus.Fields{
		"sample_id": sample.ID,
		"name":      sample.Name,
	}).Info("Sample created successfully")
	return nil
}

// GetSample retrieves a sample by ID
func (r *PostgresRepository) GetSample(ctx context.Context, id string) (*domain.Sample, error) {
	var data []byte
	err := r.db.QueryRow(ctx, `SELECT document FROM samples WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sample %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting sample: %w", err)
	}
	return decodeSample(data)
}

// ListSamples returns samples, newest first
func (r *PostgresRepository) ListSamples(ctx context.Context, limit, offset int) ([]*domain.Sample, error) {
	query := `
		SELECT document FROM samples
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, listLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("listing samples: %w", err)
	}
	defer rows.Close()

	var samples []*domain.Sample
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning sample: %w", err)
		}
		sample, err := decodeSample(data)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// UpdateSample replaces the stored sample document
func (r *PostgresRepository) UpdateSample(ctx context.Context, sample *domain.Sample) error {
	stampSample(sample, false)
	data, err := encodeSample(sample)
	if err != nil {
		return err
	}

	query := `
		UPDATE samples
		SET name = $2, vquest = $3, report = $4, document = $5, updated_at = $6
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		sample.ID,
		sample.Name,
		sample.VQuest,
		sample.Report,
		data,
		sample.UpdatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"sample_id": sample.ID,
			"error":     err,
		}).Error("Failed to update sample")
		return fmt.Errorf("updating sample: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sample %s: %w", sample.ID, domain.ErrNotFound)
	}

	r.log.WithField("sample_id", sample.ID).Debug("Sample updated successfully")
	return nil
}

// InsertResults creates the results document for a sample
func (r *PostgresRepository) InsertResults(ctx context.Context, doc *domain.ResultsDocument) error {
	if err := requireID("sample", doc.ID); err != nil {
		return err
	}
	data, err := encodeResults(doc)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO vquest_results (sample_id, name, document)
		VALUES ($1, $2, $3)
		ON CONFLICT (sample_id) DO NOTHING`

	tag, err := r.db.Exec(ctx, query, doc.ID, doc.Name, data)
	if err != nil {
		return fmt.Errorf("inserting results: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("results for sample %s: %w", doc.ID, domain.ErrDuplicate)
	}
	return nil
}

// GetResults retrieves the results document for a sample
func (r *PostgresRepository) GetResults(ctx context.Context, sampleID string) (*domain.ResultsDocument, error) {
	var data []byte
	err := r.db.QueryRow(ctx, `SELECT document FROM vquest_results WHERE sample_id = $1`, sampleID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("results for sample %s: %w", sampleID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting results: %w", err)
	}
	return decodeResults(data)
}

// ReplaceResults overwrites an existing results document
func (r *PostgresRepository) ReplaceResults(ctx context.Context, doc *domain.ResultsDocument) error {
	data, err := encodeResults(doc)
	if err != nil {
		return err
	}

	query := `
		UPDATE vquest_results
		SET name = $2, document = $3, updated_at = NOW()
		WHERE sample_id = $1`

	tag, err := r.db.Exec(ctx, query, doc.ID, doc.Name, data)
	if err != nil {
		return fmt.Errorf("replacing results: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("results for sample %s: %w", doc.ID, domain.ErrNotFound)
	}
	return nil
}

// DeleteResults removes the results document for a sample
func (r *PostgresRepository) DeleteResults(ctx context.Context, sampleID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM vquest_results WHERE sample_id = $1`, sampleID)
	if err != nil {
		return fmt.Errorf("deleting results: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("results for sample %s: %w", sampleID, domain.ErrNotFound)
	}
	return nil
}

// Ping checks the connection
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Close is a no-op; the pool is owned by database.DB.
func (r *PostgresRepository) Close() error {
	return nil
}
