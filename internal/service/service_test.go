package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/cll-genie-server/internal/cache"
	"github.com/cll-genie-server/internal/domain"
	"github.com/cll-genie-server/internal/report"
	"github.com/cll-genie-server/internal/repository"
	"github.com/cll-genie-server/internal/results"
	"github.com/cll-genie-server/pkg/vquest"
)

const summaryTable = "Sequence number\tSequence ID\tV-DOMAIN Functionality\tV-GENE and allele\tV-REGION identity %\tCLL subset\t\n" +
	"1\tSeq1_S1\tproductive\tHomsap IGHV3-21*01 F\t99.50\t\t\n" +
	"2\tSeq2_S1\tproductive\tHomsap IGHV4-34*01 F\t99.10\t\t\n"

const junctionTable = "Sequence number\tSequence ID\tJUNCTION-nt nb\tJUNCTION decryption\n" +
	"1\tSeq1_S1\t66\tHomsap IGHV3-21*01 F\n" +
	"2\tSeq2_S1\t54\tHomsap IGHV4-34*01 F\n"

const parametersTable = "Date\tThu Oct 16 10:12:01 CEST 2026\n" +
	"Number of submitted sequences\t2\n" +
	"Species\tHomo sapiens\n"

const detailedText = "IMGT/V-QUEST detailed view\n" +
	"------------------------------\n" +
	">Seq1_S1\ngaggtgcagctggtggagtctggg\n\n" +
	"Result summary: Seq1_S1\nProductive IGH rearranged sequence (no stop codon and in-frame junction)\n\n" +
	"IMGT/V-QUEST results for Seq1_S1:\nV-GENE and allele;Homsap IGHV3-21*01 F\nCLL subset #2 (IGHV3-21/IGLV3-21)\n\n" +
	"------------------------------\n" +
	">Seq2_S1\ncaggtgcagctacagcagtgggg\n\n" +
	"Result summary: Seq2_S1\nProductive IGH rearranged sequence (no stop codon and in-frame junction)\n\n" +
	"IMGT/V-QUEST results for Seq2_S1:\nV-GENE and allele;Homsap IGHV4-34*01 F\n\n"

const sampleName = "22KLL123"

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func resultArchive(t *testing.T) []byte {
	return archiveWithout(t, "")
}

// archiveWithout builds the result archive without the named member.
func archiveWithout(t *testing.T, missing string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		vquest.SummaryFile:    summaryTable,
		vquest.JunctionFile:   junctionTable,
		vquest.ParametersFile: parametersTable,
	} {
		if name == missing {
			continue
		}
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// fakeVQuest answers full requests with an archive and detailed requests
// with text, the way the live service does.
type fakeVQuest struct {
	mu       sync.Mutex
	archive  []byte
	detailed string
	failWith *vquest.Response
	forms    []url.Values
}

func (f *fakeVQuest) Post(_ context.Context, form url.Values) (*vquest.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forms = append(f.forms, form)

	if f.failWith != nil {
		return f.failWith, nil
	}
	if form.Get("resultType") == "detailed" {
		return &vquest.Response{StatusCode: 200, ContentType: "text/plain", Body: []byte(f.detailed)}, nil
	}
	return &vquest.Response{StatusCode: 200, ContentType: "application/zip", Body: f.archive}, nil
}

type env struct {
	repo      *repository.SQLiteRepository
	store     *results.Store
	summaries *cache.MemoryCache
	vquest    *fakeVQuest
	analysis  *AnalysisService
	reports   *ReportService
	samples   *SampleService
	outputDir string
	reportDir string
	sample    *domain.Sample
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	logger := quietLogger()

	repo, err := repository.NewSQLiteRepository(filepath.Join(dir, "cll_genie.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	summaries, err := cache.NewMemoryCache(32, 0)
	require.NoError(t, err)

	cfg := domain.AnalysisConfig{
		OutputDir: filepath.Join(dir, "vquest"),
		ReportDir: filepath.Join(dir, "reports"),
	}
	store := results.NewStore(repo, repo, nil, summaries, cfg.OutputDir, logger)
	writer, err := report.NewWriter(cfg.ReportDir, nil, nil, logger)
	require.NoError(t, err)

	fake := &fakeVQuest{archive: resultArchive(t), detailed: detailedText}
	e := &env{
		repo:      repo,
		store:     store,
		summaries: summaries,
		vquest:    fake,
		analysis:  NewAnalysisService(logger, repo, store, fake, cfg),
		reports:   NewReportService(logger, repo, store, report.NewGenerator(cfg), writer, summaries),
		samples:   NewSampleService(logger, repo, store),
		outputDir: cfg.OutputDir,
		reportDir: cfg.ReportDir,
	}

	e.sample, err = e.samples.Register(context.Background(), &RegisterSampleRequest{Name: sampleName})
	require.NoError(t, err)
	return e
}

func (e *env) submit(t *testing.T) *AnalysisResult {
	t.Helper()
	res, err := e.analysis.Submit(context.Background(), analysisRequest(e.sample.ID))
	require.NoError(t, err)
	return res
}

func analysisRequest(sampleID string) *AnalysisRequest {
	return &AnalysisRequest{
		SampleID: sampleID,
		Actor:    "anna",
		Parameters: vquest.Parameters{
			"species":             "human",
			"receptorOrLocusType": "IG",
			"cllSubsetSearch":     true,
			"inputType":           "inline",
			"dv_V_GENEalignment":  true,
			SelectionStatsKey:     "Seq1_S1;1200;45.314|Seq2_S1;300;7.2/",
		},
		Selection: []Selection{
			{ID: "Seq1_S1", Sequence: "gaggtgcagctggtggagtctggg"},
			{ID: "Seq2_S1", Sequence: "caggtgcagctacagcagtgggg"},
		},
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
