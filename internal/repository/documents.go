// Package repository persists sample and results documents. Every backend
// stores whole documents; the results store above it owns the
// read-modify-write logic.
package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cll-genie-server/internal/domain"
)

// defaultListLimit bounds ListSamples when the caller passes no limit.
const defaultListLimit = 100

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}

func encodeSample(sample *domain.Sample) ([]byte, error) {
	data, err := json.Marshal(sample)
	if err != nil {
		return nil, fmt.Errorf("encoding sample %s: %w", sample.ID, err)
	}
	return data, nil
}

func decodeSample(data []byte) (*domain.Sample, error) {
	var sample domain.Sample
	if err := json.Unmarshal(data, &sample); err != nil {
		return nil, fmt.Errorf("decoding sample: %w", err)
	}
	return &sample, nil
}

func encodeResults(doc *domain.ResultsDocument) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding results for sample %s: %w", doc.ID, err)
	}
	return data, nil
}

func decodeResults(data []byte) (*domain.ResultsDocument, error) {
	var doc domain.ResultsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding results: %w", err)
	}
	if doc.Submissions == nil {
		doc.Submissions = map[string]*domain.Submission{}
	}
	return &doc, nil
}

// stampSample fills the bookkeeping timestamps before a write.
func stampSample(sample *domain.Sample, created bool) {
	now := time.Now().UTC()
	if created && sample.CreatedAt.IsZero() {
		sample.CreatedAt = now
	}
	sample.UpdatedAt = now
}

func requireID(kind, id string) error {
	if id == "" {
		return domain.NewValidationError(kind+"_id", "is required", id)
	}
	return nil
}

var (
	_ domain.Repository = (*PostgresRepository)(nil)
	_ domain.Repository = (*SQLiteRepository)(nil)
	_ domain.Repository = (*MongoRepository)(nil)
)
