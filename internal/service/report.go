package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cll-genie-server/internal/cache"
	"github.com/cll-genie-server/internal/domain"
	"github.com/cll-genie-server/internal/report"
	"github.com/cll-genie-server/internal/results"
)

// ErrSummaryUnavailable is returned when no summary text can be generated
// for a submission.
var ErrSummaryUnavailable = errors.New("summary text cannot be generated for this submission")

// ExportRequest asks for a report of one submission.
type ExportRequest struct {
	SampleID     string `json:"-"`
	SubmissionID string `json:"-"`
	Summary      string `json:"summary"`
	Actor        string `json:"-"`
}

// ReportService produces summary text and report artifacts.
type ReportService struct {
	logger    *logrus.Logger
	samples   domain.SampleRepository
	store     *results.Store
	generator *report.Generator
	writer    *report.Writer
	summaries domain.SummaryCache
}

// NewReportService creates a new report service. summaries may be nil.
func NewReportService(
	logger *logrus.Logger,
	samples domain.SampleRepository,
	store *results.Store,
	generator *report.Generator,
	writer *report.Writer,
	summaries domain.SummaryCache,
) *ReportService {
	return &ReportService{
		logger:    logger,
		samples:   samples,
		store:     store,
		generator: generator,
		writer:    writer,
		summaries: summaries,
	}
}

// Suggest returns the generated summary text of a submission.
func (s *ReportService) Suggest(ctx context.Context, sampleID, submissionID string) (string, error) {
	key := cache.SummaryKey(sampleID, submissionID)
	if s.summaries != nil {
		if text, ok, err := s.summaries.Get(ctx, key); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Summary cache lookup failed")
		} else if ok {
			return text, nil
		}
	}

	sub, err := s.submission(ctx, sampleID, submissionID)
	if err != nil {
		return "", err
	}
	text, ok := s.generator.Summarize(sub.Results, sub.Parameters[domain.SubmittedSequenceCount])
	if !ok {
		return "", fmt.Errorf("%s %s: %w", sampleID, submissionID, ErrSummaryUnavailable)
	}

	if s.summaries != nil {
		if err := s.summaries.Set(ctx, key, text); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Failed to cache summary")
		}
	}
	return text, nil
}

// LatestSummary returns the summary of the newest report of a submission,
// or a fresh suggestion when none has been exported.
func (s *ReportService) LatestSummary(ctx context.Context, sampleID, submissionID string) (string, error) {
	reports, err := s.store.SubmissionReports(ctx, sampleID, submissionID)
	if err != nil {
		return "", err
	}
	if len(reports) > 0 {
		return reports[len(reports)-1].Summary, nil
	}
	return s.Suggest(ctx, sampleID, submissionID)
}

// Export writes a report of a submission, records it on the sample and
// keeps its summary as a submission comment. An empty summary is replaced
// by the suggested text.
func (s *ReportService) Export(ctx context.Context, req *ExportRequest) (*domain.Report, error) {
	sample, err := s.samples.GetSample(ctx, req.SampleID)
	if err != nil {
		return nil, fmt.Errorf("loading sample: %w", err)
	}
	sub, err := s.submission(ctx, req.SampleID, req.SubmissionID)
	if err != nil {
		return nil, err
	}

	summary := req.Summary
	if strings.TrimSpace(summary) == "" {
		if summary, err = s.Suggest(ctx, req.SampleID, req.SubmissionID); err != nil {
			return nil, err
		}
	}

	reportID, err := s.store.NextReportID(ctx, req.SampleID, req.SubmissionID)
	if err != nil {
		return nil, err
	}
	path, err := s.writer.Write(s.writer.NewDocument(reportID, sample.Name, req.SubmissionID, summary, req.Actor, sub))
	if err != nil {
		return nil, err
	}

	rep := &domain.Report{
		ID:           reportID,
		Path:         path,
		SubmissionID: req.SubmissionID,
		Summary:      summary,
		CreatedBy:    req.Actor,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.AddReport(ctx, req.SampleID, rep, req.Actor); err != nil {
		s.removeFile(path)
		return nil, err
	}
	if _, err := s.store.AppendComment(ctx, req.SampleID, req.SubmissionID, summary, req.Actor); err != nil {
		s.logger.WithError(err).WithField("report_id", reportID).Warn("Failed to keep report summary as comment")
	}

	s.logger.WithFields(logrus.Fields{
		"sample_id":     req.SampleID,
		"submission_id": req.SubmissionID,
		"report_id":     reportID,
		"actor":         req.Actor,
	}).Info("Report exported successfully")
	return rep, nil
}

// SetHidden hides or restores an exported report.
func (s *ReportService) SetHidden(ctx context.Context, sampleID, reportID string, hidden bool, user string) error {
	return s.store.SetReportHidden(ctx, sampleID, reportID, hidden, user)
}

// Report returns an exported or negative report of a sample.
func (s *ReportService) Report(ctx context.Context, sampleID, reportID string) (*domain.Report, error) {
	return s.store.Report(ctx, sampleID, reportID)
}

// Delete removes an exported report and its file.
func (s *ReportService) Delete(ctx context.Context, sampleID, reportID, actor string) error {
	if err := s.store.DeleteReport(ctx, sampleID, reportID, actor); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"sample_id": sampleID,
		"report_id": reportID,
		"actor":     actor,
	}).Info("Report deleted successfully")
	return nil
}

// CreateNegativeReport writes the report of a sample without a usable
// sequence and takes the sample off the V-QUEST worklist. An empty summary
// uses the standard negative text.
func (s *ReportService) CreateNegativeReport(ctx context.Context, sampleID, summary, actor string) (*domain.Report, error) {
	sample, err := s.samples.GetSample(ctx, sampleID)
	if err != nil {
		return nil, fmt.Errorf("loading sample: %w", err)
	}
	if strings.TrimSpace(summary) == "" {
		summary = report.NegativeSummary()
	}

	reportID := sample.Name + "_negative"
	path, err := s.writer.Write(s.writer.NewDocument(reportID, sample.Name, "", summary, actor, nil))
	if err != nil {
		return nil, err
	}

	rep := &domain.Report{
		ID:        reportID,
		Path:      path,
		Summary:   summary,
		CreatedBy: actor,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SetNegativeReport(ctx, sampleID, rep, actor); err != nil {
		s.removeFile(path)
		return nil, err
	}
	return rep, nil
}

// DeleteNegativeReport removes the negative report and its file.
func (s *ReportService) DeleteNegativeReport(ctx context.Context, sampleID, actor string) error {
	return s.store.SetNegativeReport(ctx, sampleID, nil, actor)
}

func (s *ReportService) submission(ctx context.Context, sampleID, submissionID string) (*domain.Submission, error) {
	sub, err := s.store.GetSubmission(ctx, sampleID, submissionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("submission %s of sample %s: %w", submissionID, sampleID, domain.ErrNotFound)
	}
	return sub, nil
}

func (s *ReportService) removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.WithError(err).WithField("path", path).Warn("Failed to remove report file")
	}
}
