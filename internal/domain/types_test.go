package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestCell_JSONRoundTrip(t *testing.T) {
	fields := Fields{
		"V-GENE and allele":   Present("Homsap IGHV3-21*01 F"),
		"V-REGION insertions": Absent,
	}

	data, err := json.Marshal(fields)
	require.NoError(t, err)
	assert.JSONEq(t, `{"V-GENE and allele":"Homsap IGHV3-21*01 F","V-REGION insertions":null}`, string(data))

	var decoded Fields
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Get("V-REGION insertions").IsAbsent())
	assert.Equal(t, "Homsap IGHV3-21*01 F", decoded.Get("V-GENE and allele").String())
}

func TestCell_UnmarshalNumber(t *testing.T) {
	var c Cell
	require.NoError(t, json.Unmarshal([]byte(`98.26`), &c))

	v, err := c.Float()
	require.NoError(t, err)
	assert.Equal(t, 98.26, v)
}

func TestCell_BSONRoundTrip(t *testing.T) {
	in := SequenceResult{
		Summary: Fields{
			"V-REGION identity %": Present("98.26"),
			"CLL subset":          Absent,
		},
		Junction: Fields{},
	}

	data, err := bson.Marshal(in)
	require.NoError(t, err)

	var out SequenceResult
	require.NoError(t, bson.Unmarshal(data, &out))
	assert.True(t, out.Subset().IsAbsent())
	assert.Equal(t, "98.26", out.Summary.Get("V-REGION identity %").String())
}

func TestCellOf(t *testing.T) {
	assert.True(t, CellOf("").IsAbsent())
	v, ok := CellOf(" ").Value()
	assert.True(t, ok)
	assert.Equal(t, " ", v)
}

func TestSequenceResult_Identity(t *testing.T) {
	r := &SequenceResult{Summary: Fields{SummaryIdentityColumn: Present("97.984")}}
	v, err := r.Identity()
	require.NoError(t, err)
	assert.Equal(t, 97.98, v)

	missing := &SequenceResult{Summary: Fields{}}
	_, err = missing.Identity()
	assert.Error(t, err)
}

func TestSubmissionOrdinal(t *testing.T) {
	tests := []struct {
		id      string
		want    int
		wantErr bool
	}{
		{"submission_1", 1, false},
		{"submission_12", 12, false},
		{"submission_0", 0, true},
		{"submission_x", 0, true},
		{"sub_1", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := SubmissionOrdinal(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResultsDocument_SubmissionIDs(t *testing.T) {
	doc := &ResultsDocument{Submissions: map[string]*Submission{
		"submission_10": {},
		"submission_2":  {},
		"submission_1":  {},
	}}

	assert.Equal(t, []string{"submission_1", "submission_2", "submission_10"}, doc.SubmissionIDs())
}

func TestReportID(t *testing.T) {
	assert.Equal(t, "S123_2_3", ReportID("S123", 2, 3))
}
