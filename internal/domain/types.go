package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors shared by repositories and services.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// Sample is a clinical CLL sample registered for analysis.
type Sample struct {
	ID                string             `json:"id" bson:"_id"`
	Name              string             `json:"name" bson:"name"`
	VQuest            bool               `json:"vquest" bson:"vquest"`
	Report            bool               `json:"report" bson:"report"`
	EligibleForVQuest bool               `json:"is_eligible_for_vquest" bson:"is_eligible_for_vquest"`
	Reports           map[string]*Report `json:"cll_reports,omitempty" bson:"cll_reports,omitempty"`
	NegativeReport    *Report            `json:"negative_report,omitempty" bson:"negative_report,omitempty"`
	Q30Percent        *float64           `json:"q30_per,omitempty" bson:"q30_per,omitempty"`
	LymphotrackExcel  string             `json:"lymphotrack_excel_path,omitempty" bson:"lymphotrack_excel_path,omitempty"`
	LymphotrackQC     string             `json:"lymphotrack_qc_path,omitempty" bson:"lymphotrack_qc_path,omitempty"`
	CreatedAt         time.Time          `json:"date_added" bson:"date_added"`
	UpdatedAt         time.Time          `json:"updated_at" bson:"updated_at"`
}

// Report is an exported clinical report. ID has the form
// "{sample name}_{submission ordinal}_{report number}".
type Report struct {
	ID           string     `json:"report_id" bson:"report_id"`
	Path         string     `json:"path" bson:"path"`
	SubmissionID string     `json:"submission_id,omitempty" bson:"submission_id,omitempty"`
	Summary      string     `json:"summary" bson:"summary"`
	CreatedBy    string     `json:"created_by" bson:"created_by"`
	CreatedAt    time.Time  `json:"date_created" bson:"date_created"`
	Hidden       bool       `json:"hidden" bson:"hidden"`
	HiddenBy     string     `json:"hidden_by,omitempty" bson:"hidden_by,omitempty"`
	HiddenAt     *time.Time `json:"time_hidden,omitempty" bson:"time_hidden,omitempty"`
}

// Comment is a free-text note attached to a submission.
type Comment struct {
	ID        string     `json:"id" bson:"id"`
	Text      string     `json:"text" bson:"text"`
	Author    string     `json:"author" bson:"author"`
	CreatedAt time.Time  `json:"time_created" bson:"time_created"`
	Hidden    bool       `json:"hidden" bson:"hidden"`
	HiddenBy  string     `json:"hidden_by" bson:"hidden_by"`
	HiddenAt  *time.Time `json:"time_hidden,omitempty" bson:"time_hidden,omitempty"`
}

// Messages holds the per-sequence text extracted from a detailed V-QUEST run.
type Messages struct {
	SubsetSummary string `json:"CLL Subset Summary" bson:"CLL Subset Summary"`
	Indels        Cell   `json:"Indels if Any" bson:"Indels if Any"`
	IndelMessages Cell   `json:"Indel Messages" bson:"Indel Messages"`
}

// SummarySubsetColumn is the summary column carrying the CLL subset label.
const SummarySubsetColumn = "CLL subset"

// SummaryIdentityColumn is the summary column carrying the V-REGION identity.
const SummaryIdentityColumn = "V-REGION identity %"

// SequenceResult is the normalized V-QUEST output for one submitted sequence.
type SequenceResult struct {
	Summary     Fields    `json:"summary" bson:"summary"`
	Junction    Fields    `json:"junction" bson:"junction"`
	Messages    *Messages `json:"messages,omitempty" bson:"messages,omitempty"`
	MergeCount  *int      `json:"merge_count" bson:"merge_count"`
	ReadPercent *float64  `json:"total_reads_per" bson:"total_reads_per"`
}

// Subset returns the assigned CLL subset label.
func (r *SequenceResult) Subset() Cell {
	return r.Summary.Get(SummarySubsetColumn)
}

// Identity returns the V-REGION identity percentage rounded to two decimals.
func (r *SequenceResult) Identity() (float64, error) {
	v, err := r.Summary.Get(SummaryIdentityColumn).Float()
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", SummaryIdentityColumn, err)
	}
	return Round2(v), nil
}

// Complete reports whether the selection statistics have been attached.
func (r *SequenceResult) Complete() bool {
	return r.MergeCount != nil && r.ReadPercent != nil
}

// Submission is one numbered V-QUEST run stored for a sample.
type Submission struct {
	Results          map[string]*SequenceResult `json:"vquest_results" bson:"vquest_results"`
	Parameters       map[string]string          `json:"vquest_parameters" bson:"vquest_parameters"`
	AddedAt          time.Time                  `json:"data_added" bson:"data_added"`
	ResultsZipFile   string                     `json:"results_zip_file" bson:"results_zip_file"`
	DetailedTextFile string                     `json:"detailed_text_file" bson:"detailed_text_file"`
	Comments         []*Comment                 `json:"submission_comments" bson:"submission_comments"`
	SubmittedBy      string                     `json:"submitted_by,omitempty" bson:"submitted_by,omitempty"`
}

// SequenceIDs returns the result keys in sorted order.
func (s *Submission) SequenceIDs() []string {
	ids := make([]string, 0, len(s.Results))
	for id := range s.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Comment returns the comment with the given id.
func (s *Submission) Comment(id string) (*Comment, bool) {
	for _, c := range s.Comments {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// SubmittedSequenceCount is the V-QUEST parameter holding the number of
// sequences sent in a run.
const SubmittedSequenceCount = "Number of submitted sequences"

// ResultsDocument aggregates all submissions of one sample.
type ResultsDocument struct {
	ID             string                 `json:"id" bson:"_id"`
	Name           string                 `json:"name" bson:"name"`
	Submissions    map[string]*Submission `json:"results" bson:"results"`
	LastSubmission int                    `json:"last_submission" bson:"last_submission"`
}

// SubmissionIDs returns the submission keys in numeric order.
func (d *ResultsDocument) SubmissionIDs() []string {
	ids := make([]string, 0, len(d.Submissions))
	for id := range d.Submissions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, _ := SubmissionOrdinal(ids[i])
		b, _ := SubmissionOrdinal(ids[j])
		if a != b {
			return a < b
		}
		return ids[i] < ids[j]
	})
	return ids
}

// SubmissionPrefix starts every submission key.
const SubmissionPrefix = "submission_"

// SubmissionID formats an ordinal as a submission key.
func SubmissionID(ordinal int) string {
	return SubmissionPrefix + strconv.Itoa(ordinal)
}

// SubmissionOrdinal parses the ordinal out of a submission key.
func SubmissionOrdinal(id string) (int, error) {
	if !strings.HasPrefix(id, SubmissionPrefix) {
		return 0, NewValidationError("submission_id", "must start with "+SubmissionPrefix, id)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, SubmissionPrefix))
	if err != nil || n < 1 {
		return 0, NewValidationError("submission_id", "ordinal must be a positive integer", id)
	}
	return n, nil
}

// ReportID builds "{sample}_{ordinal}_{number}".
func ReportID(sampleName string, ordinal, number int) string {
	return fmt.Sprintf("%s_%d_%d", sampleName, ordinal, number)
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
