package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cll-genie-server/internal/domain"
	"github.com/cll-genie-server/pkg/vquest"
)

func TestParseSelectionStats(t *testing.T) {
	stats, err := ParseSelectionStats("Seq1_S;1200;45.314|>Seq2_S;300;7.2/")
	require.NoError(t, err)
	assert.Equal(t, map[string]SelectionStats{
		"Seq1_S": {MergeCount: 1200, ReadPercent: 45.31},
		"Seq2_S": {MergeCount: 300, ReadPercent: 7.2},
	}, stats)

	stats, err = ParseSelectionStats("")
	require.NoError(t, err)
	assert.Empty(t, stats)

	for _, bad := range []string{"Seq1_S;1200", "Seq1_S;many;4.5", "Seq1_S;12;lots", ";1;2"} {
		_, err := ParseSelectionStats(bad)
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr, bad)
	}
}

func TestSubmit_EndToEnd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res := e.submit(t)
	assert.Equal(t, "submission_1", res.SubmissionID)

	require.Len(t, e.vquest.forms, 2)
	full, detailed := e.vquest.forms[0], e.vquest.forms[1]
	assert.Equal(t, "excel", full.Get("resultType"))
	assert.Equal(t, "1", full.Get("xv_outputtype"))
	assert.Equal(t, "True", full.Get("dv_V_GENEalignment"))
	assert.Equal(t, ">Seq1_S1\ngaggtgcagctggtggagtctggg\n>Seq2_S1\ncaggtgcagctacagcagtgggg\n", full.Get("sequences"))
	assert.Equal(t, "detailed", detailed.Get("resultType"))
	assert.Equal(t, "text", detailed.Get("outputType"))
	assert.Equal(t, "False", detailed.Get("dv_V_GENEalignment"))
	assert.Equal(t, full.Get("sequences"), detailed.Get("sequences"))
	for _, form := range e.vquest.forms {
		assert.NotContains(t, form, SelectionStatsKey, "selection statistics stay local")
	}

	sub, err := e.store.GetSubmission(ctx, e.sample.ID, "submission_1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	seq1, seq2 := sub.Results["Seq1_S1"], sub.Results["Seq2_S1"]
	assert.Equal(t, "#2", seq1.Subset().String())
	assert.True(t, seq2.Subset().IsAbsent())
	assert.Equal(t, 1200, *seq1.MergeCount)
	assert.Equal(t, 45.31, *seq1.ReadPercent)
	assert.Equal(t, 7.2, *seq2.ReadPercent)
	assert.Equal(t, "anna", sub.SubmittedBy)
	assert.FileExists(t, sub.ResultsZipFile)
	assert.FileExists(t, sub.DetailedTextFile)
	assert.FileExists(t, filepath.Join(e.outputDir, e.sample.ID, "submission_1", "vquest", vquest.SummaryFile))

	sample, err := e.repo.GetSample(ctx, e.sample.ID)
	require.NoError(t, err)
	assert.True(t, sample.VQuest)

	text, err := e.reports.Suggest(ctx, e.sample.ID, "submission_1")
	require.NoError(t, err)
	assert.Contains(t, text, "kan två funktionella IGH-gen rearrangemang identifieras")
	assert.Contains(t, text, "(U-CLL)")
	assert.Contains(t, text, "tillhör subset #2")

	second := e.submit(t)
	assert.Equal(t, "submission_2", second.SubmissionID)
}

func TestSubmit_SelectionListStatistics(t *testing.T) {
	e := newEnv(t)
	merge := 80
	reads := 1.234

	req := analysisRequest(e.sample.ID)
	delete(req.Parameters, SelectionStatsKey)
	req.Selection[0].MergeCount, req.Selection[0].ReadPercent = &merge, &reads
	req.Selection[1].MergeCount, req.Selection[1].ReadPercent = &merge, &reads

	_, err := e.analysis.Submit(context.Background(), req)
	require.NoError(t, err)

	sub, err := e.store.GetSubmission(context.Background(), e.sample.ID, "submission_1")
	require.NoError(t, err)
	assert.Equal(t, 1.23, *sub.Results["Seq2_S1"].ReadPercent)
}

func TestSubmit_MissingStatisticsAreRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	req := analysisRequest(e.sample.ID)
	req.Parameters[SelectionStatsKey] = "Seq1_S1;1200;45.31"

	_, err := e.analysis.Submit(ctx, req)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"Seq2_S1"}, verr.Value)

	doc, err := e.store.GetResults(ctx, e.sample.ID)
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.NoDirExists(t, e.store.SubmissionDir(e.sample.ID, "submission_1"), "artifacts of the unsaved submission are removed")
}

func TestSubmit_VQuestErrorPersistsNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.vquest.failWith = &vquest.Response{
		StatusCode:  200,
		ContentType: "text/html; charset=UTF-8",
		Body:        []byte(`<html><body><ul class="errorMessage"><li><span>Sequence Seq1_S1 is too short</span></li></ul></body></html>`),
	}

	_, err := e.analysis.Submit(ctx, analysisRequest(e.sample.ID))

	var vqErr *domain.VQuestError
	require.ErrorAs(t, err, &vqErr)
	assert.Equal(t, domain.KindServiceReported, vqErr.Kind)
	assert.Equal(t, []string{"Sequence Seq1_S1 is too short"}, vqErr.Messages)
	assert.Len(t, e.vquest.forms, 1, "the detailed run is not attempted")

	doc, err := e.store.GetResults(ctx, e.sample.ID)
	require.NoError(t, err)
	assert.Nil(t, doc)
	sample, err := e.repo.GetSample(ctx, e.sample.ID)
	require.NoError(t, err)
	assert.False(t, sample.VQuest)
}

func TestSubmit_DetailedFailureDiscardsArtifacts(t *testing.T) {
	e := newEnv(t)
	e.vquest.detailed = "preamble\n------------------------------\nchunk without a sequence header\n"

	_, err := e.analysis.Submit(context.Background(), analysisRequest(e.sample.ID))

	require.Error(t, err)
	assert.Equal(t, domain.KindShape, domain.KindOf(err))
	_, statErr := os.Stat(e.store.SubmissionDir(e.sample.ID, "submission_1"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSubmit_FullFailureLeavesNothingForRetry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.vquest.archive = archiveWithout(t, vquest.SummaryFile)
	_, err := e.analysis.Submit(ctx, analysisRequest(e.sample.ID))
	require.Error(t, err)
	assert.Equal(t, domain.KindLocalIO, domain.KindOf(err))
	assert.NoDirExists(t, e.store.SubmissionDir(e.sample.ID, "submission_1"))

	// The retry reuses submission_1; its missing junction table must not be
	// read from the first attempt.
	e.vquest.archive = archiveWithout(t, vquest.JunctionFile)
	_, err = e.analysis.Submit(ctx, analysisRequest(e.sample.ID))

	var vqErr *domain.VQuestError
	require.ErrorAs(t, err, &vqErr)
	assert.Equal(t, domain.KindLocalIO, vqErr.Kind)
	assert.Equal(t, []string{"File not found on the server"}, vqErr.Messages)

	doc, err := e.store.GetResults(ctx, e.sample.ID)
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestSubmit_RequiresSequences(t *testing.T) {
	e := newEnv(t)
	req := analysisRequest(e.sample.ID)
	req.Selection = nil

	_, err := e.analysis.Submit(context.Background(), req)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "sequences", verr.Field)
	assert.Empty(t, e.vquest.forms)
}

func TestSubmit_UnknownSample(t *testing.T) {
	e := newEnv(t)

	_, err := e.analysis.Submit(context.Background(), analysisRequest("missing"))

	assert.True(t, isNotFound(err))
}
