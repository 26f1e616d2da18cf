package results

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cll-genie-server/internal/domain"
)

// reportNumber parses the trailing counter of a report ID.
func reportNumber(reportID string) int {
	idx := strings.LastIndex(reportID, "_")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(reportID[idx+1:])
	if err != nil {
		return 0
	}
	return n
}

func submissionReports(sample *domain.Sample, submissionID string) []*domain.Report {
	var reports []*domain.Report
	for _, r := range sample.Reports {
		if r.SubmissionID == submissionID {
			reports = append(reports, r)
		}
	}
	sort.Slice(reports, func(i, j int) bool {
		a, b := reportNumber(reports[i].ID), reportNumber(reports[j].ID)
		if a != b {
			return a < b
		}
		return reports[i].ID < reports[j].ID
	})
	return reports
}

// SubmissionReports returns the reports exported from one submission,
// ordered by report number.
func (s *Store) SubmissionReports(ctx context.Context, sampleID, submissionID string) ([]*domain.Report, error) {
	sample, err := s.samples.GetSample(ctx, sampleID)
	if err != nil {
		return nil, fmt.Errorf("loading sample: %w", err)
	}
	return submissionReports(sample, submissionID), nil
}

// ReportCountsPerSubmission counts reports for every stored submission.
func (s *Store) ReportCountsPerSubmission(ctx context.Context, sampleID string) (map[string]int, error) {
	sample, err := s.samples.GetSample(ctx, sampleID)
	if err != nil {
		return nil, fmt.Errorf("loading sample: %w", err)
	}
	ids, err := s.ListSubmissions(ctx, sampleID)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		counts[id] = len(submissionReports(sample, id))
	}
	return counts, nil
}

// NextReportID returns "{sample name}_{ordinal}_{n}" where n is one more
// than the highest report number of the submission.
func (s *Store) NextReportID(ctx context.Context, sampleID, submissionID string) (string, error) {
	ordinal, err := domain.SubmissionOrdinal(submissionID)
	if err != nil {
		return "", err
	}
	sample, err := s.samples.GetSample(ctx, sampleID)
	if err != nil {
		return "", fmt.Errorf("loading sample: %w", err)
	}

	next := 1
	for _, r := range submissionReports(sample, submissionID) {
		if n := reportNumber(r.ID); n >= next {
			next = n + 1
		}
	}
	return domain.ReportID(sample.Name, ordinal, next), nil
}

// AddReport records an exported report on the sample and marks the sample
// as reported.
func (s *Store) AddReport(ctx context.Context, sampleID string, report *domain.Report, actor string) error {
	return s.UpdateSample(ctx, sampleID, "add_report", actor, func(sample *domain.Sample) error {
		if sample.Reports == nil {
			sample.Reports = map[string]*domain.Report{}
		}
		if _, exists := sample.Reports[report.ID]; exists {
			return fmt.Errorf("report %s: %w", report.ID, domain.ErrDuplicate)
		}
		sample.Reports[report.ID] = report
		sample.Report = hasReport(sample)
		return nil
	})
}

// SetReportHidden hides or restores a report and refreshes the report flag.
func (s *Store) SetReportHidden(ctx context.Context, sampleID, reportID string, hidden bool, user string) error {
	return s.UpdateSample(ctx, sampleID, "set_report_hidden", user, func(sample *domain.Sample) error {
		report, ok := sample.Reports[reportID]
		if !ok {
			return fmt.Errorf("report %s: %w", reportID, domain.ErrNotFound)
		}
		report.Hidden = hidden
		if hidden {
			now := time.Now().UTC()
			report.HiddenBy = user
			report.HiddenAt = &now
		} else {
			report.HiddenBy = ""
			report.HiddenAt = nil
		}
		sample.Report = hasReport(sample)
		return nil
	})
}

// DeleteReport removes a report and, once the sample is written, its file.
func (s *Store) DeleteReport(ctx context.Context, sampleID, reportID, actor string) error {
	var removed *domain.Report
	err := s.UpdateSample(ctx, sampleID, "delete_report", actor, func(sample *domain.Sample) error {
		report, ok := sample.Reports[reportID]
		if !ok {
			return fmt.Errorf("report %s: %w", reportID, domain.ErrNotFound)
		}
		removed = report
		delete(sample.Reports, reportID)
		sample.Report = hasReport(sample)
		return nil
	})
	if err != nil {
		return err
	}
	s.removeReportFile(removed)
	return nil
}

// Report returns a stored report by ID. The negative report is found under
// its own ID as well.
func (s *Store) Report(ctx context.Context, sampleID, reportID string) (*domain.Report, error) {
	sample, err := s.samples.GetSample(ctx, sampleID)
	if err != nil {
		return nil, fmt.Errorf("loading sample: %w", err)
	}
	if r, ok := sample.Reports[reportID]; ok {
		return r, nil
	}
	if sample.NegativeReport != nil && sample.NegativeReport.ID == reportID {
		return sample.NegativeReport, nil
	}
	return nil, fmt.Errorf("report %s: %w", reportID, domain.ErrNotFound)
}

// SetNegativeReport stores the report written for a sample without a usable
// sequence. The sample leaves the V-QUEST worklist. A nil report removes
// the stored one and its file.
func (s *Store) SetNegativeReport(ctx context.Context, sampleID string, report *domain.Report, actor string) error {
	op := "set_negative_report"
	if report == nil {
		op = "delete_negative_report"
	}
	var removed *domain.Report
	err := s.UpdateSample(ctx, sampleID, op, actor, func(sample *domain.Sample) error {
		if report == nil {
			if sample.NegativeReport == nil {
				return fmt.Errorf("negative report for sample %s: %w", sampleID, domain.ErrNotFound)
			}
			removed = sample.NegativeReport
			sample.NegativeReport = nil
		} else {
			sample.NegativeReport = report
			sample.EligibleForVQuest = false
		}
		sample.Report = hasReport(sample)
		return nil
	})
	if err != nil {
		return err
	}
	if removed != nil {
		s.removeReportFile(removed)
	}
	return nil
}
