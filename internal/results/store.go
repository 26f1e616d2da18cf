// Package results stores V-QUEST submissions per sample and keeps the
// sample's report bookkeeping and status flags in step with them.
//
// Writes are read-modify-write over whole documents with no concurrency
// control: two writers on the same sample can lose an update.
package results

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cll-genie-server/internal/audit"
	"github.com/cll-genie-server/internal/cache"
	"github.com/cll-genie-server/internal/domain"
	"github.com/cll-genie-server/pkg/vquest"
)

// Artifacts names the files a submission was built from.
type Artifacts struct {
	ZipFile  string
	TextFile string
}

// Store is the submission-indexed results store.
type Store struct {
	samples    domain.SampleRepository
	results    domain.ResultsRepository
	audit      audit.Store
	summaries  domain.SummaryCache
	outputRoot string
	log        *logrus.Logger
}

// NewStore wires a store. auditLog and summaries may be nil.
func NewStore(samples domain.SampleRepository, results domain.ResultsRepository, auditLog audit.Store, summaries domain.SummaryCache, outputRoot string, logger *logrus.Logger) *Store {
	if auditLog == nil {
		auditLog = audit.Discard{}
	}
	return &Store{
		samples:    samples,
		results:    results,
		audit:      auditLog,
		summaries:  summaries,
		outputRoot: outputRoot,
		log:        logger,
	}
}

// SubmissionDir is the directory holding every artifact of one submission.
func (s *Store) SubmissionDir(sampleID, submissionID string) string {
	return filepath.Join(s.outputRoot, sampleID, submissionID)
}

// record logs and audits the outcome of a write. A failed write is returned
// as a *domain.StoreError; the intended mutation goes to the log fields and
// the audit payload.
func (s *Store) record(ctx context.Context, op, sampleID, submissionID, actor string, mutation interface{}, err error) error {
	fields := logrus.Fields{
		"operation":     op,
		"sample_id":     sampleID,
		"submission_id": submissionID,
		"actor":         actor,
	}

	var payload interface{}
	if err != nil {
		payload = mutation
		fields["mutation"] = mutation
		s.log.WithFields(fields).WithError(err).Error("Results store write failed")
	} else {
		s.log.WithFields(fields).Info("Results store write completed successfully")
	}

	entry := audit.NewEntry(op, sampleID, submissionID, actor, payload, err)
	if aerr := s.audit.Record(ctx, entry); aerr != nil {
		s.log.WithFields(fields).WithError(aerr).Warn("Failed to record audit entry")
	}

	if err != nil {
		return &domain.StoreError{Op: op, SampleID: sampleID, Err: err}
	}
	return nil
}

// Save persists a normalized analysis as the given submission. Every
// sequence must carry its merge count and read percentage. The first
// submission creates the results document; later ones rewrite its
// submissions map.
func (s *Store) Save(ctx context.Context, sampleID, submissionID string, analysis *vquest.Analysis, artifacts Artifacts, actor string) error {
	ordinal, err := domain.SubmissionOrdinal(submissionID)
	if err != nil {
		return err
	}
	if analysis == nil || len(analysis.Sequences) == 0 {
		return domain.NewValidationError("results", "no sequence results to save", submissionID)
	}
	if missing := incomplete(analysis.Sequences); len(missing) > 0 {
		s.log.WithFields(logrus.Fields{
			"sample_id":     sampleID,
			"submission_id": submissionID,
			"sequences":     missing,
		}).Warn("Rejected results without selection statistics")
		return domain.NewValidationError("sequences", "missing merge count or read percentage", missing)
	}

	sample, err := s.samples.GetSample(ctx, sampleID)
	if err != nil {
		return fmt.Errorf("loading sample: %w", err)
	}

	submission := &domain.Submission{
		Results:          analysis.Sequences,
		Parameters:       analysis.Parameters,
		AddedAt:          time.Now().UTC(),
		ResultsZipFile:   artifacts.ZipFile,
		DetailedTextFile: artifacts.TextFile,
		Comments:         []*domain.Comment{},
		SubmittedBy:      actor,
	}

	if ordinal == 1 {
		doc := &domain.ResultsDocument{
			ID:             sampleID,
			Name:           sample.Name,
			Submissions:    map[string]*domain.Submission{submissionID: submission},
			LastSubmission: 1,
		}
		err = s.results.InsertResults(ctx, doc)
		return s.record(ctx, "insert_results", sampleID, submissionID, actor, doc, err)
	}

	doc, err := s.results.GetResults(ctx, sampleID)
	if err != nil {
		return s.record(ctx, "save_submission", sampleID, submissionID, actor, submission, err)
	}
	doc.Submissions[submissionID] = submission
	if ordinal > doc.LastSubmission {
		doc.LastSubmission = ordinal
	}
	err = s.results.ReplaceResults(ctx, doc)
	return s.record(ctx, "save_submission", sampleID, submissionID, actor, submission, err)
}

func incomplete(seqs map[string]*domain.SequenceResult) []string {
	var missing []string
	for id, seq := range seqs {
		if seq == nil || !seq.Complete() {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing
}

// GetResults returns the sample's results document, or nil when none exists.
func (s *Store) GetResults(ctx context.Context, sampleID string) (*domain.ResultsDocument, error) {
	doc, err := s.results.GetResults(ctx, sampleID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting results: %w", err)
	}
	return doc, nil
}

// GetSubmission returns one submission, or nil when the document or the
// key is missing.
func (s *Store) GetSubmission(ctx context.Context, sampleID, submissionID string) (*domain.Submission, error) {
	doc, err := s.GetResults(ctx, sampleID)
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.Submissions[submissionID], nil
}

// ListSubmissions returns the submission IDs in numeric order.
func (s *Store) ListSubmissions(ctx context.Context, sampleID string) ([]string, error) {
	doc, err := s.GetResults(ctx, sampleID)
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.SubmissionIDs(), nil
}

// SubmissionCount returns the number of stored submissions.
func (s *Store) SubmissionCount(ctx context.Context, sampleID string) (int, error) {
	doc, err := s.GetResults(ctx, sampleID)
	if err != nil || doc == nil {
		return 0, err
	}
	return len(doc.Submissions), nil
}

// NextSubmissionID allocates the key for a new submission. Numbers are
// compared as integers and never fall below the stored counter, so a
// deleted submission's number is not reused while the document exists.
func (s *Store) NextSubmissionID(ctx context.Context, sampleID string) (string, error) {
	doc, err := s.GetResults(ctx, sampleID)
	if err != nil {
		return "", err
	}
	if doc == nil {
		return domain.SubmissionID(1), nil
	}

	highest := doc.LastSubmission
	for id := range doc.Submissions {
		if n, err := domain.SubmissionOrdinal(id); err == nil && n > highest {
			highest = n
		}
	}
	return domain.SubmissionID(highest + 1), nil
}

// DeleteSubmission removes a submission, its artifact directory and the
// reports exported from it. Removing the last submission deletes the whole
// results document.
func (s *Store) DeleteSubmission(ctx context.Context, sampleID, submissionID, actor string) error {
	doc, err := s.GetResults(ctx, sampleID)
	if err != nil {
		return err
	}
	if doc == nil || doc.Submissions[submissionID] == nil {
		return fmt.Errorf("submission %s of sample %s: %w", submissionID, sampleID, domain.ErrNotFound)
	}

	remaining := len(doc.Submissions) - 1
	if remaining == 0 {
		err = s.results.DeleteResults(ctx, sampleID)
	} else {
		delete(doc.Submissions, submissionID)
		err = s.results.ReplaceResults(ctx, doc)
	}
	if err := s.record(ctx, "delete_submission", sampleID, submissionID, actor, map[string]string{"submission_id": submissionID}, err); err != nil {
		return err
	}

	s.removeArtifacts(sampleID, submissionID)
	s.invalidateSummary(ctx, sampleID, submissionID)

	var removed []*domain.Report
	err = s.UpdateSample(ctx, sampleID, "delete_submission_reports", actor, func(sample *domain.Sample) error {
		for id, report := range sample.Reports {
			if report.SubmissionID != submissionID {
				continue
			}
			removed = append(removed, report)
			delete(sample.Reports, id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, report := range removed {
		s.removeReportFile(report)
	}

	if err := s.RefreshReportStatus(ctx, sampleID, actor); err != nil {
		return err
	}
	return s.RefreshVQuestStatus(ctx, sampleID, actor)
}

func (s *Store) removeArtifacts(sampleID, submissionID string) {
	if s.outputRoot == "" || !plainName(sampleID) || !plainName(submissionID) {
		return
	}
	dir := s.SubmissionDir(sampleID, submissionID)
	if err := os.RemoveAll(dir); err != nil {
		s.log.WithFields(logrus.Fields{
			"sample_id":     sampleID,
			"submission_id": submissionID,
			"dir":           dir,
		}).WithError(err).Warn("Failed to remove submission artifacts")
	}
}

func plainName(v string) bool {
	return v != "" && v != "." && v != ".." && !strings.ContainsAny(v, `/\`)
}

func (s *Store) removeReportFile(report *domain.Report) {
	if report.Path == "" {
		return
	}
	if err := os.Remove(report.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.WithFields(logrus.Fields{
			"report_id": report.ID,
			"path":      report.Path,
		}).WithError(err).Warn("Failed to remove report file")
	}
}

func (s *Store) invalidateSummary(ctx context.Context, sampleID, submissionID string) {
	if s.summaries == nil {
		return
	}
	if err := s.summaries.Delete(ctx, cache.SummaryKey(sampleID, submissionID)); err != nil {
		s.log.WithError(err).Warn("Failed to invalidate cached summary")
	}
}

// AppendComment adds a comment to an existing submission.
func (s *Store) AppendComment(ctx context.Context, sampleID, submissionID, text, author string) (*domain.Comment, error) {
	comment := &domain.Comment{
		ID:        uuid.NewString(),
		Text:      text,
		Author:    author,
		CreatedAt: time.Now().UTC(),
	}
	err := s.updateSubmission(ctx, sampleID, submissionID, "append_comment", author, comment, func(sub *domain.Submission) error {
		sub.Comments = append(sub.Comments, comment)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// SetCommentHidden hides or restores a comment, recording who changed it.
func (s *Store) SetCommentHidden(ctx context.Context, sampleID, submissionID, commentID string, hidden bool, user string) error {
	mutation := map[string]interface{}{"comment_id": commentID, "hidden": hidden}
	return s.updateSubmission(ctx, sampleID, submissionID, "set_comment_hidden", user, mutation, func(sub *domain.Submission) error {
		comment, ok := sub.Comment(commentID)
		if !ok {
			return fmt.Errorf("comment %s: %w", commentID, domain.ErrNotFound)
		}
		comment.Hidden = hidden
		if hidden {
			now := time.Now().UTC()
			comment.HiddenBy = user
			comment.HiddenAt = &now
		} else {
			comment.HiddenBy = ""
			comment.HiddenAt = nil
		}
		return nil
	})
}

// updateSubmission applies fn to an existing submission and rewrites the
// document. Errors returned by fn abort the write unchanged.
func (s *Store) updateSubmission(ctx context.Context, sampleID, submissionID, op, actor string, mutation interface{}, fn func(*domain.Submission) error) error {
	doc, err := s.GetResults(ctx, sampleID)
	if err != nil {
		return err
	}
	if doc == nil || doc.Submissions[submissionID] == nil {
		return fmt.Errorf("submission %s of sample %s: %w", submissionID, sampleID, domain.ErrNotFound)
	}
	if err := fn(doc.Submissions[submissionID]); err != nil {
		return err
	}
	err = s.results.ReplaceResults(ctx, doc)
	return s.record(ctx, op, sampleID, submissionID, actor, mutation, err)
}

// UpdateSample applies fn to the stored sample and writes it back.
func (s *Store) UpdateSample(ctx context.Context, sampleID, op, actor string, fn func(*domain.Sample) error) error {
	sample, err := s.samples.GetSample(ctx, sampleID)
	if err != nil {
		return fmt.Errorf("loading sample: %w", err)
	}
	if err := fn(sample); err != nil {
		return err
	}
	err = s.samples.UpdateSample(ctx, sample)
	return s.record(ctx, op, sampleID, "", actor, sample, err)
}

// RefreshVQuestStatus sets the sample's vquest flag from whether results exist.
func (s *Store) RefreshVQuestStatus(ctx context.Context, sampleID, actor string) error {
	count, err := s.SubmissionCount(ctx, sampleID)
	if err != nil {
		return err
	}
	return s.UpdateSample(ctx, sampleID, "refresh_vquest_status", actor, func(sample *domain.Sample) error {
		sample.VQuest = count > 0
		return nil
	})
}

// RefreshReportStatus sets the sample's report flag from its visible
// reports and negative report.
func (s *Store) RefreshReportStatus(ctx context.Context, sampleID, actor string) error {
	return s.UpdateSample(ctx, sampleID, "refresh_report_status", actor, func(sample *domain.Sample) error {
		sample.Report = hasReport(sample)
		return nil
	})
}

func hasReport(sample *domain.Sample) bool {
	if sample.NegativeReport != nil {
		return true
	}
	for _, r := range sample.Reports {
		if !r.Hidden {
			return true
		}
	}
	return false
}
