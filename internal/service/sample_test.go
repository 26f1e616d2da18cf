package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cll-genie-server/internal/domain"
)

func TestRegister(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	assert.NotEmpty(t, e.sample.ID)
	assert.True(t, e.sample.EligibleForVQuest)

	ineligible := false
	q30 := 88.2
	sample, err := e.samples.Register(ctx, &RegisterSampleRequest{Name: " 22KLL124 ", EligibleForVQuest: &ineligible, Q30Percent: &q30})
	require.NoError(t, err)
	assert.Equal(t, "22KLL124", sample.Name)
	assert.False(t, sample.EligibleForVQuest)
	assert.NotEqual(t, e.sample.ID, sample.ID)

	for _, name := range []string{"", "  ", "a/b"} {
		_, err := e.samples.Register(ctx, &RegisterSampleRequest{Name: name})
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr, name)
	}

	list, err := e.samples.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestGetOverview(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	overview, err := e.samples.Get(ctx, e.sample.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{}, overview.Submissions)
	assert.Empty(t, overview.ReportCounts)

	e.submit(t)
	e.submit(t)
	_, err = e.reports.Export(ctx, &ExportRequest{SampleID: e.sample.ID, SubmissionID: "submission_2", Actor: "anna"})
	require.NoError(t, err)

	overview, err = e.samples.Get(ctx, e.sample.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"submission_1", "submission_2"}, overview.Submissions)
	assert.Equal(t, map[string]int{"submission_1": 0, "submission_2": 1}, overview.ReportCounts)

	_, err = e.samples.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStatusFlags(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.samples.SetEligibility(ctx, e.sample.ID, false, "anna"))
	require.NoError(t, e.samples.SetReportStatus(ctx, e.sample.ID, true, "anna"))

	sample, err := e.repo.GetSample(ctx, e.sample.ID)
	require.NoError(t, err)
	assert.False(t, sample.EligibleForVQuest)
	assert.True(t, sample.Report)

	assert.ErrorIs(t, e.samples.SetEligibility(ctx, "missing", true, "anna"), domain.ErrNotFound)
}
