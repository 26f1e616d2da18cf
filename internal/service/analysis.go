// Package service implements the CLL Genie workflows on top of the V-QUEST
// pipeline, the results store and the report generator.
package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cll-genie-server/internal/domain"
	"github.com/cll-genie-server/internal/results"
	"github.com/cll-genie-server/pkg/vquest"
)

// AnalysisRequest asks for a V-QUEST analysis of selected sequences.
type AnalysisRequest struct {
	SampleID   string            `json:"-"`
	Selection  []Selection       `json:"selection"`
	Parameters vquest.Parameters `json:"parameters"`
	Actor      string            `json:"-"`
}

// AnalysisResult describes a stored submission.
type AnalysisResult struct {
	SampleID     string                            `json:"sample_id"`
	SubmissionID string                            `json:"submission_id"`
	Sequences    map[string]*domain.SequenceResult `json:"sequences"`
	Parameters   map[string]string                 `json:"parameters"`
	Duration     time.Duration                     `json:"duration"`
}

// AnalysisService runs the two-variant V-QUEST submission and stores its
// merged results.
type AnalysisService struct {
	logger     *logrus.Logger
	samples    domain.SampleRepository
	store      *results.Store
	poster     vquest.Poster
	outputRoot string
	subsets    []string
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(
	logger *logrus.Logger,
	samples domain.SampleRepository,
	store *results.Store,
	poster vquest.Poster,
	cfg domain.AnalysisConfig,
) *AnalysisService {
	subsets := cfg.Subsets
	if len(subsets) == 0 {
		subsets = domain.DefaultSubsets
	}
	return &AnalysisService{
		logger:     logger,
		samples:    samples,
		store:      store,
		poster:     poster,
		outputRoot: cfg.OutputDir,
		subsets:    subsets,
	}
}

// Submit runs the full and then the detailed V-QUEST request for the
// selection, merges them and saves the result as the sample's next
// submission. V-QUEST failures are returned as *domain.VQuestError and
// leave the store untouched.
func (s *AnalysisService) Submit(ctx context.Context, req *AnalysisRequest) (*AnalysisResult, error) {
	startTime := time.Now()

	sample, err := s.samples.GetSample(ctx, req.SampleID)
	if err != nil {
		return nil, fmt.Errorf("loading sample: %w", err)
	}

	// Step 1: Build the request parameters and the selection statistics
	params, stats, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	submissionID, err := s.store.NextSubmissionID(ctx, sample.ID)
	if err != nil {
		return nil, fmt.Errorf("allocating submission id: %w", err)
	}

	log := s.logger.WithFields(logrus.Fields{
		"sample_id":     sample.ID,
		"sample_name":   sample.Name,
		"submission_id": submissionID,
		"sequences":     len(stats),
		"actor":         req.Actor,
	})
	log.Info("Starting V-QUEST analysis")

	// Step 2: Full run for the result tables
	full, err := s.run(ctx, params.Full(), sample.ID, submissionID, vquest.RunFull)
	if err != nil {
		s.discardArtifacts(log, sample.ID, submissionID)
		return nil, err
	}

	// Step 3: Detailed run for the subset and indel messages
	detailed, err := s.run(ctx, params.Detailed(), sample.ID, submissionID, vquest.RunDetailed)
	if err != nil {
		s.discardArtifacts(log, sample.ID, submissionID)
		return nil, err
	}

	// Step 4: Merge and attach the selection statistics
	analysis := full.Analysis
	vquest.MergeDetailed(analysis, detailed.Messages, s.subsets)
	spliceSelection(analysis, stats)

	// Step 5: Persist
	artifacts := results.Artifacts{ZipFile: full.ArtifactPath, TextFile: detailed.ArtifactPath}
	if err := s.store.Save(ctx, sample.ID, submissionID, analysis, artifacts, req.Actor); err != nil {
		s.discardArtifacts(log, sample.ID, submissionID)
		return nil, err
	}
	if err := s.store.UpdateSample(ctx, sample.ID, "set_vquest_status", req.Actor, func(sm *domain.Sample) error {
		sm.VQuest = true
		return nil
	}); err != nil {
		return nil, err
	}

	duration := time.Since(startTime)
	log.WithFields(logrus.Fields{
		"results":  len(analysis.Sequences),
		"duration": duration,
	}).Info("V-QUEST analysis completed successfully")

	return &AnalysisResult{
		SampleID:     sample.ID,
		SubmissionID: submissionID,
		Sequences:    analysis.Sequences,
		Parameters:   analysis.Parameters,
		Duration:     duration,
	}, nil
}

func (s *AnalysisService) prepare(req *AnalysisRequest) (vquest.Parameters, map[string]SelectionStats, error) {
	params := req.Parameters.Clone()

	var formStats map[string]SelectionStats
	if raw, ok := params[SelectionStatsKey]; ok {
		text, _ := raw.(string)
		parsed, err := ParseSelectionStats(text)
		if err != nil {
			return nil, nil, err
		}
		formStats = parsed
		delete(params, SelectionStatsKey)
	}

	if fasta := selectionFASTA(req.Selection); fasta != "" {
		params["sequences"] = fasta
	}
	if seqs, _ := params["sequences"].(string); strings.TrimSpace(seqs) == "" {
		return nil, nil, domain.NewValidationError("sequences", "no sequences selected", nil)
	}
	return params, collectSelection(req.Selection, formStats), nil
}

func (s *AnalysisService) run(ctx context.Context, params vquest.Parameters, sampleID, submissionID string, runType vquest.RunType) (*vquest.Result, error) {
	orch, err := vquest.NewOrchestrator(s.poster, params, s.outputRoot, sampleID, submissionID, runType, s.logger)
	if err != nil {
		return nil, fmt.Errorf("preparing %s run: %w", runType, err)
	}
	return orch.Run(ctx)
}

// discardArtifacts removes the files of a submission that could not be stored.
func (s *AnalysisService) discardArtifacts(log *logrus.Entry, sampleID, submissionID string) {
	dir := s.store.SubmissionDir(sampleID, submissionID)
	if err := os.RemoveAll(dir); err != nil {
		log.WithError(err).WithField("dir", dir).Warn("Failed to remove artifacts of unsaved submission")
		return
	}
	log.WithField("dir", dir).Warn("Removed artifacts of unsaved submission")
}
