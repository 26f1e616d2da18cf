// Package audit records every results store mutation. Failed entries keep
// the intended change as JSON so an operator can replay it.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"time"
)

// Entry is one recorded mutation.
type Entry struct {
	ID           int64     `json:"id,omitempty"`
	Operation    string    `json:"operation"`
	SampleID     string    `json:"sample_id"`
	SubmissionID string    `json:"submission_id,omitempty"`
	Actor        string    `json:"actor,omitempty"`
	Success      bool      `json:"success"`
	Payload      string    `json:"payload,omitempty"` // JSON of the intended mutation
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	SampleID   string
	FailedOnly bool
}

// Store defines the interface for audit storage operations.
type Store interface {
	// Record appends an entry and assigns its ID.
	Record(ctx context.Context, entry *Entry) error

	// List returns entries, newest first.
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Entry, error)

	// Count returns the total number of entries.
	Count(ctx context.Context) (int64, error)

	// ExportJSON writes every entry to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// Close closes the store and releases resources.
	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Entries    []*Entry  `json:"entries"`
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// NewEntry builds an entry, serializing payload when it is not nil.
func NewEntry(op, sampleID, submissionID, actor string, payload interface{}, err error) *Entry {
	e := &Entry{
		Operation:    op,
		SampleID:     sampleID,
		SubmissionID: submissionID,
		Actor:        actor,
		Success:      err == nil,
		CreatedAt:    time.Now().UTC(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	if payload != nil {
		if data, merr := json.Marshal(payload); merr == nil {
			e.Payload = string(data)
		}
	}
	return e
}

func writeExport(writer io.Writer, entries []*Entry) error {
	export := &Export{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(entries),
		Entries:    entries,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// Discard is a Store that keeps nothing. It is used when auditing is disabled.
type Discard struct{}

func (Discard) Record(context.Context, *Entry) error { return nil }

func (Discard) List(context.Context, Filter, int, int) ([]*Entry, error) { return nil, nil }

func (Discard) Count(context.Context) (int64, error) { return 0, nil }

func (Discard) ExportJSON(_ context.Context, w io.Writer) error { return writeExport(w, nil) }

func (Discard) Close() error { return nil }
