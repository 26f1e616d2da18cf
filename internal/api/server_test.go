package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cll-genie-server/internal/cache"
	"github.com/cll-genie-server/internal/domain"
	"github.com/cll-genie-server/internal/report"
	"github.com/cll-genie-server/internal/repository"
	"github.com/cll-genie-server/internal/results"
	"github.com/cll-genie-server/internal/service"
	"github.com/cll-genie-server/pkg/vquest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const summaryTable = "Sequence number\tSequence ID\tV-DOMAIN Functionality\tV-GENE and allele\tV-REGION identity %\tCLL subset\t\n" +
	"1\tSeq1_S1\tproductive\tHomsap IGHV1-69*01 F\t95.10\t\t\n"

const junctionTable = "Sequence number\tSequence ID\tJUNCTION-nt nb\n" +
	"1\tSeq1_S1\t66\n"

const parametersTable = "Number of submitted sequences\t1\nSpecies\tHomo sapiens\n"

const detailedText = "IMGT/V-QUEST detailed view\n" +
	"------------------------------\n" +
	">Seq1_S1\ngaggtgcagctggtggagtctggg\n\n" +
	"IMGT/V-QUEST results for Seq1_S1:\nCLL subset #1 (IGHV1-69)\n\n"

type staticConfig struct {
	cfg *domain.Config
}

func (s staticConfig) GetConfig() *domain.Config                 { return s.cfg }
func (s staticConfig) GetDatabaseConfig() *domain.DatabaseConfig { return &s.cfg.Database }
func (s staticConfig) GetServerConfig() *domain.ServerConfig     { return &s.cfg.Server }
func (s staticConfig) GetVQuestConfig() *domain.VQuestConfig     { return &s.cfg.VQuest }
func (s staticConfig) GetAnalysisConfig() *domain.AnalysisConfig { return &s.cfg.Analysis }
func (s staticConfig) Validate() error                           { return nil }

type fakeVQuest struct {
	mu       sync.Mutex
	archive  []byte
	failWith *vquest.Response
}

func (f *fakeVQuest) Post(_ context.Context, form url.Values) (*vquest.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith, nil
	}
	if form.Get("resultType") == "detailed" {
		return &vquest.Response{StatusCode: 200, ContentType: "text/plain", Body: []byte(detailedText)}, nil
	}
	return &vquest.Response{StatusCode: 200, ContentType: "application/zip", Body: f.archive}, nil
}

type testServer struct {
	handler http.Handler
	vquest  *fakeVQuest
	sample  *domain.Sample
	repo    *repository.SQLiteRepository
	ping    error
}

func archive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		vquest.SummaryFile:    summaryTable,
		vquest.JunctionFile:   junctionTable,
		vquest.ParametersFile: parametersTable,
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repo, err := repository.NewSQLiteRepository(filepath.Join(dir, "cll_genie.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	summaries, err := cache.NewMemoryCache(16, 0)
	require.NoError(t, err)

	cfg := &domain.Config{
		Auth: domain.AuthConfig{SuperUserGroups: []string{"cll_genie_admin"}},
		Analysis: domain.AnalysisConfig{
			OutputDir: filepath.Join(dir, "vquest"),
			ReportDir: filepath.Join(dir, "reports"),
		},
	}
	store := results.NewStore(repo, repo, nil, summaries, cfg.Analysis.OutputDir, logger)
	writer, err := report.NewWriter(cfg.Analysis.ReportDir, nil, nil, logger)
	require.NoError(t, err)

	ts := &testServer{vquest: &fakeVQuest{archive: archive(t)}, repo: repo}
	samples := service.NewSampleService(logger, repo, store)
	services := &Services{
		Samples:  samples,
		Analysis: service.NewAnalysisService(logger, repo, store, ts.vquest, cfg.Analysis),
		Reports:  service.NewReportService(logger, repo, store, report.NewGenerator(cfg.Analysis), writer, summaries),
		Results:  store,
		Ping:     func(context.Context) error { return ts.ping },
	}
	ts.handler = NewServer(staticConfig{cfg: cfg}, services, logger).Handler()

	ts.sample, err = samples.Register(context.Background(), &service.RegisterSampleRequest{Name: "22KLL123"})
	require.NoError(t, err)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, groups string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Remote-User", "anna")
	if groups != "" {
		req.Header.Set("X-Remote-Groups", groups)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func (ts *testServer) path(suffix string) string {
	return "/api/v1/samples/" + ts.sample.ID + suffix
}

func analysisBody() gin.H {
	return gin.H{
		"parameters": gin.H{
			"species":                 "human",
			"receptorOrLocusType":     "IG",
			"cllSubsetSearch":         true,
			service.SelectionStatsKey: "Seq1_S1;800;61.5",
		},
		"selection": []gin.H{{"id": "Seq1_S1", "sequence": "gaggtgcagctggtggagtctggg"}},
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	ts.ping = errors.New("database is locked")
	w = ts.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRequiresActingUser(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/samples", nil)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSampleEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/samples", gin.H{"name": "22KLL124"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, decode(t, w)["is_eligible_for_vquest"])

	w = ts.do(t, http.MethodPost, "/api/v1/samples", gin.H{"name": "  "}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "name", decode(t, w)["field"])

	w = ts.do(t, http.MethodGet, "/api/v1/samples?limit=10", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["samples"], 2)

	w = ts.do(t, http.MethodGet, "/api/v1/samples?limit=-1", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, ts.path("/eligibility"), gin.H{"value": false}, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, ts.path(""), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	overview := decode(t, w)
	assert.Equal(t, false, overview["sample"].(map[string]interface{})["is_eligible_for_vquest"])
	assert.Equal(t, []interface{}{}, overview["submissions"])

	w = ts.do(t, http.MethodGet, "/api/v1/samples/unknown", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalysisAndReportFlow(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, ts.path("/vquest"), analysisBody(), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "submission_1", decode(t, w)["submission_id"])

	w = ts.do(t, http.MethodGet, ts.path("/submissions/submission_1"), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	seq := decode(t, w)["vquest_results"].(map[string]interface{})["Seq1_S1"].(map[string]interface{})
	assert.Equal(t, float64(800), seq["merge_count"])

	w = ts.do(t, http.MethodGet, ts.path("/submissions/submission_1/summary"), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode(t, w)["summary"].(string)
	assert.Contains(t, summary, "(M-CLL)")
	assert.Contains(t, summary, "tillhör subset #1")

	w = ts.do(t, http.MethodPost, ts.path("/submissions/submission_1/reports"), nil, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rep := decode(t, w)
	assert.Equal(t, "22KLL123_1_1", rep["report_id"])
	assert.Equal(t, summary, rep["summary"])

	w = ts.do(t, http.MethodGet, ts.path("/submissions/submission_1/artifacts/zip"), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")

	w = ts.do(t, http.MethodGet, ts.path("/submissions/submission_1/artifacts/pdf"), nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, ts.path("/reports/22KLL123_1_1"), gin.H{"hidden": true}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodPut, ts.path("/reports/22KLL123_1_1"), gin.H{"hidden": true}, "cll_genie_admin")
	assert.Equal(t, http.StatusNoContent, w.Code)

	sample, err := ts.repo.GetSample(context.Background(), ts.sample.ID)
	require.NoError(t, err)
	assert.False(t, sample.Report)
}

func TestReportViewAndDelete(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, ts.path("/vquest"), analysisBody(), "")
	require.Equal(t, http.StatusCreated, w.Code)
	w = ts.do(t, http.MethodPost, ts.path("/submissions/submission_1/reports"), nil, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, ts.path("/reports/22KLL123_1_1"), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<title>22KLL123_1_1</title>")

	w = ts.do(t, http.MethodGet, ts.path("/reports/22KLL123_1_9"), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodDelete, ts.path("/reports/22KLL123_1_1"), nil, "lab")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodDelete, ts.path("/reports/22KLL123_1_1"), nil, "cll_genie_admin")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, ts.path("/reports/22KLL123_1_1"), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	sample, err := ts.repo.GetSample(context.Background(), ts.sample.ID)
	require.NoError(t, err)
	assert.Empty(t, sample.Reports)
	assert.False(t, sample.Report)
}

func TestRunAnalysis_FormEncoded(t *testing.T) {
	ts := newTestServer(t)
	form := url.Values{
		"species":                 {"human"},
		"cllSubsetSearch":         {"true"},
		"sequences":               {">Seq1_S1\r\ngaggtgcagctggtggagtctggg\r\n"},
		service.SelectionStatsKey: {"Seq1_S1;800;61.5/"},
	}

	req := httptest.NewRequest(http.MethodPost, ts.path("/vquest"), strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Remote-User", "anna")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "submission_1", decode(t, w)["submission_id"])
}

func TestRunAnalysis_VQuestErrorsAreShown(t *testing.T) {
	ts := newTestServer(t)
	ts.vquest.failWith = &vquest.Response{
		StatusCode:  200,
		ContentType: "text/html; charset=UTF-8",
		Body:        []byte(`<html><body><ul class="errorMessage"><li><span>Sequence Seq1_S1 is too short</span></li></ul></body></html>`),
	}

	w := ts.do(t, http.MethodPost, ts.path("/vquest"), analysisBody(), "")

	require.Equal(t, http.StatusBadGateway, w.Code)
	body := decode(t, w)
	assert.Equal(t, "service_reported", body["kind"])
	assert.Equal(t, []interface{}{"Sequence Seq1_S1 is too short"}, body["errors"])

	w = ts.do(t, http.MethodGet, ts.path("/submissions/submission_1"), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmissionNotFound(t *testing.T) {
	ts := newTestServer(t)

	for _, p := range []string{
		"/submissions/submission_1",
		"/submissions/submission_1/artifacts/zip",
		"/submissions/submission_1/summary",
	} {
		w := ts.do(t, http.MethodGet, ts.path(p), nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code, p)
	}
}

func TestCommentsAndDeleteRequireSuperUserToHide(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, ts.path("/vquest"), analysisBody(), "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodPost, ts.path("/submissions/submission_1/comments"), gin.H{"text": "Kontrollerad"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	commentID := decode(t, w)["id"].(string)

	w = ts.do(t, http.MethodPost, ts.path("/submissions/submission_1/comments"), gin.H{}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, ts.path("/submissions/submission_1/comments/"+commentID), gin.H{"hidden": true}, "lab")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodPut, ts.path("/submissions/submission_1/comments/"+commentID), gin.H{"hidden": true}, "cll_genie_admin")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodDelete, ts.path("/submissions/submission_1"), nil, "cll_genie_admin")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodDelete, ts.path("/submissions/submission_1"), nil, "cll_genie_admin")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNegativeReportEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, ts.path("/negative-report"), nil, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "22KLL123_negative", decode(t, w)["report_id"])

	w = ts.do(t, http.MethodGet, ts.path("/reports/22KLL123_negative"), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "22KLL123_negative")

	w = ts.do(t, http.MethodDelete, ts.path("/negative-report"), nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodDelete, ts.path("/negative-report"), nil, "cll_genie_admin")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, ts.path("/reports/22KLL123_negative"), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
