package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cll-genie-server/internal/domain"
	"github.com/cll-genie-server/internal/results"
)

// RegisterSampleRequest describes a sample arriving from the sequencing lab.
type RegisterSampleRequest struct {
	Name              string   `json:"name"`
	EligibleForVQuest *bool    `json:"is_eligible_for_vquest,omitempty"`
	Q30Percent        *float64 `json:"q30_per,omitempty"`
	LymphotrackExcel  string   `json:"lymphotrack_excel_path,omitempty"`
	LymphotrackQC     string   `json:"lymphotrack_qc_path,omitempty"`
}

// SampleOverview is a sample with its submissions and report counts.
type SampleOverview struct {
	Sample       *domain.Sample `json:"sample"`
	Submissions  []string       `json:"submissions"`
	ReportCounts map[string]int `json:"report_counts"`
}

// SampleService manages sample registration and status flags.
type SampleService struct {
	logger  *logrus.Logger
	samples domain.SampleRepository
	store   *results.Store
}

// NewSampleService creates a new sample service
func NewSampleService(logger *logrus.Logger, samples domain.SampleRepository, store *results.Store) *SampleService {
	return &SampleService{
		logger:  logger,
		samples: samples,
		store:   store,
	}
}

// Register stores a new sample. Samples are eligible for V-QUEST unless
// the request says otherwise.
func (s *SampleService) Register(ctx context.Context, req *RegisterSampleRequest) (*domain.Sample, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.NewValidationError("name", "sample name is required", req.Name)
	}
	if strings.ContainsAny(name, `/\`) {
		return nil, domain.NewValidationError("name", "sample name must not contain path separators", req.Name)
	}

	eligible := true
	if req.EligibleForVQuest != nil {
		eligible = *req.EligibleForVQuest
	}
	sample := &domain.Sample{
		ID:                uuid.NewString(),
		Name:              name,
		EligibleForVQuest: eligible,
		Q30Percent:        req.Q30Percent,
		LymphotrackExcel:  req.LymphotrackExcel,
		LymphotrackQC:     req.LymphotrackQC,
	}
	if err := s.samples.CreateSample(ctx, sample); err != nil {
		return nil, fmt.Errorf("registering sample: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"sample_id":   sample.ID,
		"sample_name": sample.Name,
	}).Info("Sample registered successfully")
	return sample, nil
}

// Get returns a sample with its submissions and report counts.
func (s *SampleService) Get(ctx context.Context, sampleID string) (*SampleOverview, error) {
	sample, err := s.samples.GetSample(ctx, sampleID)
	if err != nil {
		return nil, fmt.Errorf("loading sample: %w", err)
	}
	submissions, err := s.store.ListSubmissions(ctx, sampleID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.ReportCountsPerSubmission(ctx, sampleID)
	if err != nil {
		return nil, err
	}
	if submissions == nil {
		submissions = []string{}
	}
	return &SampleOverview{Sample: sample, Submissions: submissions, ReportCounts: counts}, nil
}

// List returns a page of samples.
func (s *SampleService) List(ctx context.Context, limit, offset int) ([]*domain.Sample, error) {
	return s.samples.ListSamples(ctx, limit, offset)
}

// SetEligibility puts a sample on or takes it off the V-QUEST worklist.
func (s *SampleService) SetEligibility(ctx context.Context, sampleID string, eligible bool, actor string) error {
	return s.store.UpdateSample(ctx, sampleID, "set_eligibility", actor, func(sample *domain.Sample) error {
		sample.EligibleForVQuest = eligible
		return nil
	})
}

// SetReportStatus overrides the sample's report flag.
func (s *SampleService) SetReportStatus(ctx context.Context, sampleID string, reported bool, actor string) error {
	return s.store.UpdateSample(ctx, sampleID, "set_report_status", actor, func(sample *domain.Sample) error {
		sample.Report = reported
		return nil
	})
}
