package repository

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cll-genie-server/internal/domain"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testResults(sampleID string) *domain.ResultsDocument {
	merge := 1200
	reads := 45.31
	return &domain.ResultsDocument{
		ID:   sampleID,
		Name: "22KLL123",
		Submissions: map[string]*domain.Submission{
			"submission_1": {
				Results: map[string]*domain.SequenceResult{
					"Seq1_S1": {
						Summary: domain.Fields{
							"V-REGION identity %": domain.Present("100.00"),
							"CLL subset":          domain.Present("#2"),
							"D-GENE and allele":   domain.Absent,
						},
						Junction:    domain.Fields{"JUNCTION-nt nb": domain.Present("66")},
						Messages:    &domain.Messages{SubsetSummary: "CLL subset #2", Indels: domain.Present("Productive")},
						MergeCount:  &merge,
						ReadPercent: &reads,
					},
				},
				Parameters: map[string]string{domain.SubmittedSequenceCount: "1"},
				AddedAt:    time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC),
				Comments:   []*domain.Comment{},
			},
		},
		LastSubmission: 1,
	}
}

// exerciseRepository runs the behaviour every backend must share.
func exerciseRepository(t *testing.T, repo domain.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.Ping(ctx))

	t.Run("samples", func(t *testing.T) {
		q30 := 91.5
		sample := &domain.Sample{ID: "sample-a", Name: "22KLL123", EligibleForVQuest: true, Q30Percent: &q30}
		require.NoError(t, repo.CreateSample(ctx, sample))
		assert.False(t, sample.CreatedAt.IsZero())

		err := repo.CreateSample(ctx, &domain.Sample{ID: "sample-a", Name: "other"})
		assert.ErrorIs(t, err, domain.ErrDuplicate)

		got, err := repo.GetSample(ctx, "sample-a")
		require.NoError(t, err)
		assert.Equal(t, "22KLL123", got.Name)
		assert.True(t, got.EligibleForVQuest)
		require.NotNil(t, got.Q30Percent)
		assert.Equal(t, 91.5, *got.Q30Percent)

		got.VQuest = true
		got.Reports = map[string]*domain.Report{
			"22KLL123_1_1": {ID: "22KLL123_1_1", SubmissionID: "submission_1", Summary: "text"},
		}
		require.NoError(t, repo.UpdateSample(ctx, got))

		again, err := repo.GetSample(ctx, "sample-a")
		require.NoError(t, err)
		assert.True(t, again.VQuest)
		assert.Equal(t, "submission_1", again.Reports["22KLL123_1_1"].SubmissionID)

		again.Reports = nil
		require.NoError(t, repo.UpdateSample(ctx, again))
		cleared, err := repo.GetSample(ctx, "sample-a")
		require.NoError(t, err)
		assert.Empty(t, cleared.Reports, "removed fields do not survive a replace")

		_, err = repo.GetSample(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		err = repo.UpdateSample(ctx, &domain.Sample{ID: "missing"})
		assert.ErrorIs(t, err, domain.ErrNotFound)

		require.NoError(t, repo.CreateSample(ctx, &domain.Sample{ID: "sample-b", Name: "22KLL124"}))
		list, err := repo.ListSamples(ctx, 10, 0)
		require.NoError(t, err)
		assert.Len(t, list, 2)
		page, err := repo.ListSamples(ctx, 1, 1)
		require.NoError(t, err)
		assert.Len(t, page, 1)
	})

	t.Run("results", func(t *testing.T) {
		doc := testResults("sample-a")
		require.NoError(t, repo.InsertResults(ctx, doc))
		assert.ErrorIs(t, repo.InsertResults(ctx, testResults("sample-a")), domain.ErrDuplicate)

		got, err := repo.GetResults(ctx, "sample-a")
		require.NoError(t, err)
		seq := got.Submissions["submission_1"].Results["Seq1_S1"]
		require.NotNil(t, seq)
		assert.Equal(t, "#2", seq.Subset().String())
		assert.True(t, seq.Summary.Get("D-GENE and allele").IsAbsent())
		_, hasKey := seq.Summary["D-GENE and allele"]
		assert.True(t, hasKey, "absent cells keep their column")
		assert.Equal(t, 1200, *seq.MergeCount)
		assert.Equal(t, "Productive", seq.Messages.Indels.String())
		assert.True(t, seq.Messages.IndelMessages.IsAbsent())
		assert.Equal(t, 1, got.LastSubmission)

		got.Submissions["submission_2"] = &domain.Submission{Parameters: map[string]string{}}
		got.LastSubmission = 2
		require.NoError(t, repo.ReplaceResults(ctx, got))

		replaced, err := repo.GetResults(ctx, "sample-a")
		require.NoError(t, err)
		assert.Equal(t, []string{"submission_1", "submission_2"}, replaced.SubmissionIDs())
		assert.Equal(t, 2, replaced.LastSubmission)

		_, err = repo.GetResults(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, repo.ReplaceResults(ctx, testResults("missing")), domain.ErrNotFound)

		require.NoError(t, repo.DeleteResults(ctx, "sample-a"))
		_, err = repo.GetResults(ctx, "sample-a")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, repo.DeleteResults(ctx, "sample-a"), domain.ErrNotFound)
	})
}
