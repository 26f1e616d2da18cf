package vquest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/cll-genie-server/internal/domain"
)

// RunType selects the V-QUEST output requested by an Orchestrator.
type RunType string

const (
	// RunFull downloads the zip of result tables.
	RunFull RunType = "full"
	// RunDetailed downloads the detailed text view with subset and indel messages.
	RunDetailed RunType = "detailed"
)

// ErrAlreadyRun is returned when Run is called twice on one Orchestrator.
var ErrAlreadyRun = errors.New("orchestrator has already submitted its request")

// Result is the outcome of a successful run. Analysis is set for full runs
// and Messages for detailed runs.
type Result struct {
	RunType      RunType
	ArtifactPath string
	Analysis     *Analysis
	Messages     map[string]*domain.Messages
}

// Orchestrator performs one V-QUEST submission for one sample and persists
// the returned artifact under a deterministic path:
//
//	full:     {root}/{sample}/{submission}/vquest/{sample}.zip
//	detailed: {root}/{sample}/{submission}/vquest/detailed/{sample}.txt
type Orchestrator struct {
	poster       Poster
	runType      RunType
	sampleID     string
	params       Parameters
	outputDir    string
	artifactPath string
	logger       *logrus.Logger

	mu  sync.Mutex
	ran bool
}

// NewOrchestrator prepares a run: it removes any artifact left at the
// destination path by an earlier run, and for a full run the unpacked result
// members too, then creates the destination directory.
func NewOrchestrator(poster Poster, params Parameters, outputRoot, sampleID, submissionID string, runType RunType, logger *logrus.Logger) (*Orchestrator, error) {
	if err := validPathElement("sample id", sampleID); err != nil {
		return nil, err
	}
	if err := validPathElement("submission id", submissionID); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		poster:   poster,
		runType:  runType,
		sampleID: sampleID,
		logger:   logger,
	}

	base := filepath.Join(outputRoot, sampleID, submissionID, "vquest")
	var stale []string
	switch runType {
	case RunFull:
		o.params = params.Full()
		o.outputDir = base
		o.artifactPath = filepath.Join(base, sampleID+".zip")
		stale = []string{
			filepath.Join(base, ParametersFile),
			filepath.Join(base, SummaryFile),
			filepath.Join(base, JunctionFile),
		}
	case RunDetailed:
		o.params = params.Detailed()
		o.outputDir = filepath.Join(base, "detailed")
		o.artifactPath = filepath.Join(o.outputDir, sampleID+".txt")
	default:
		return nil, fmt.Errorf("unknown run type %q", runType)
	}

	for _, path := range append(stale, o.artifactPath) {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("removing stale artifact: %w", err)
		}
	}
	if err := os.MkdirAll(o.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	return o, nil
}

func validPathElement(name, v string) error {
	if v == "" || v == "." || v == ".." || strings.ContainsAny(v, `/\`) {
		return domain.NewValidationError(name, "must be a plain directory name", v)
	}
	return nil
}

// OutputDir returns the directory artifacts are written to.
func (o *Orchestrator) OutputDir() string {
	return o.outputDir
}

// ArtifactPath returns the canonical artifact location.
func (o *Orchestrator) ArtifactPath() string {
	return o.artifactPath
}

// Params returns the parameters that will be sent.
func (o *Orchestrator) Params() Parameters {
	return o.params
}

// Run submits the request once and processes the response. Every failure
// is a *domain.VQuestError carrying the messages to show the user.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	o.mu.Lock()
	if o.ran {
		o.mu.Unlock()
		return nil, ErrAlreadyRun
	}
	o.ran = true
	o.mu.Unlock()

	log := o.logger.WithFields(logrus.Fields{
		"sample_id": o.sampleID,
		"run_type":  o.runType,
	})
	log.Info("Submitting sequences to V-QUEST")
	log.WithField("payload", o.params).Debug("V-QUEST payload")

	resp, err := o.poster.Post(ctx, o.params.Encode())
	if err != nil {
		return nil, o.fail(log, err)
	}

	payload, messages := ParseResponse(resp)
	if len(messages) > 0 {
		kind := domain.KindServiceReported
		if resp.StatusCode != http.StatusOK {
			kind = domain.KindTransport
		}
		return nil, o.fail(log, domain.NewVQuestError(kind, messages...))
	}
	if payload.HTML {
		return nil, o.fail(log, domain.NewVQuestError(domain.KindShape, "V-QUEST returned a page without results"))
	}

	var result *Result
	switch o.runType {
	case RunFull:
		result, err = o.processArchive(payload.Body)
	case RunDetailed:
		result, err = o.processText(payload.Body)
	}
	if err != nil {
		return nil, o.fail(log, err)
	}

	log.WithField("artifact", o.artifactPath).Info("V-QUEST run completed successfully")
	return result, nil
}

func (o *Orchestrator) fail(log *logrus.Entry, err error) error {
	var vqErr *domain.VQuestError
	if !errors.As(err, &vqErr) {
		vqErr = &domain.VQuestError{Kind: domain.KindLocalIO, Messages: []string{err.Error()}, Err: err}
	}
	for _, msg := range vqErr.Messages {
		log.WithField("kind", vqErr.Kind.String()).Error(msg)
	}
	if vqErr.Err != nil {
		log.WithError(vqErr.Err).Debug("V-QUEST failure cause")
	}
	return vqErr
}

func (o *Orchestrator) processArchive(data []byte) (*Result, error) {
	if err := os.WriteFile(o.artifactPath, data, 0644); err != nil {
		return nil, &domain.VQuestError{
			Kind:     domain.KindLocalIO,
			Messages: []string{"Could not save the V-QUEST results archive"},
			Err:      err,
		}
	}

	if _, err := ExtractArchive(data, o.outputDir); err != nil {
		return nil, err
	}

	analysis, err := LoadAnalysis(o.outputDir)
	if err != nil {
		return nil, err
	}

	return &Result{RunType: RunFull, ArtifactPath: o.artifactPath, Analysis: analysis}, nil
}

func (o *Orchestrator) processText(data []byte) (*Result, error) {
	if err := os.WriteFile(o.artifactPath, data, 0644); err != nil {
		return nil, &domain.VQuestError{
			Kind:     domain.KindLocalIO,
			Messages: []string{"Could not save the V-QUEST detailed results"},
			Err:      err,
		}
	}

	written, err := os.ReadFile(o.artifactPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &domain.VQuestError{Kind: domain.KindLocalIO, Messages: []string{msgFileNotFound}, Err: err}
		}
		return nil, &domain.VQuestError{
			Kind:     domain.KindLocalIO,
			Messages: []string{"Could not read the V-QUEST detailed results"},
			Err:      err,
		}
	}

	messages, err := ParseDetailed(string(written))
	if err != nil {
		return nil, &domain.VQuestError{
			Kind:     domain.KindShape,
			Messages: []string{"Unexpected content in the V-QUEST detailed results"},
			Err:      err,
		}
	}

	return &Result{RunType: RunDetailed, ArtifactPath: o.artifactPath, Messages: messages}, nil
}
