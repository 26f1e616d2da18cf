package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cll-genie-server/internal/domain"
)

//go:embed templates/report.html
var templatesFS embed.FS

// Columns backed by the selection statistics rather than V-QUEST output.
const (
	mergeCountColumn  = "Merge Count"
	readPercentColumn = "Total Reads Per"
)

// Column is one labelled value of a report table.
type Column struct {
	Name  string
	Value string
}

// SequenceRow is the report view of one sequence.
type SequenceRow struct {
	ID            string
	Summary       []Column
	Junction      []Column
	SubsetSummary string
	Indels        string
	IndelMessages string
}

// Document is the data rendered into a report file.
type Document struct {
	ReportID     string
	SampleName   string
	SubmissionID string
	Summary      string
	CreatedBy    string
	CreatedAt    time.Time
	Sequences    []SequenceRow
	Parameters   []Column
}

// Writer renders report documents to {dir}/{report id}.html.
type Writer struct {
	dir             string
	summaryColumns  []string
	junctionColumns []string
	tmpl            *template.Template
	log             *logrus.Logger
}

// NewWriter parses the report template. Nil column lists use the defaults.
func NewWriter(dir string, summaryColumns, junctionColumns []string, logger *logrus.Logger) (*Writer, error) {
	if dir == "" {
		return nil, domain.NewValidationError("report_dir", "report directory is required", dir)
	}
	if summaryColumns == nil {
		summaryColumns = domain.DefaultSummaryColumns
	}
	if junctionColumns == nil {
		junctionColumns = domain.DefaultJunctionColumns
	}

	tmpl, err := template.New("report.html").Funcs(template.FuncMap{
		"paragraphs": paragraphs,
		"lines":      func(s string) []string { return strings.Split(s, "\n") },
	}).ParseFS(templatesFS, "templates/report.html")
	if err != nil {
		return nil, fmt.Errorf("parsing report template: %w", err)
	}

	return &Writer{
		dir:             dir,
		summaryColumns:  summaryColumns,
		junctionColumns: junctionColumns,
		tmpl:            tmpl,
		log:             logger,
	}, nil
}

func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Path returns the file a report ID is written to.
func (w *Writer) Path(reportID string) string {
	return filepath.Join(w.dir, reportID+".html")
}

// NewDocument builds the report view of a submission. A nil submission
// gives a document without sequence tables, as used for negative reports.
func (w *Writer) NewDocument(reportID, sampleName, submissionID, summary, author string, sub *domain.Submission) *Document {
	doc := &Document{
		ReportID:     reportID,
		SampleName:   sampleName,
		SubmissionID: submissionID,
		Summary:      summary,
		CreatedBy:    author,
		CreatedAt:    time.Now().UTC(),
	}
	if sub == nil {
		return doc
	}

	for _, id := range sub.SequenceIDs() {
		doc.Sequences = append(doc.Sequences, w.sequenceRow(id, sub.Results[id]))
	}

	keys := make([]string, 0, len(sub.Parameters))
	for k := range sub.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		doc.Parameters = append(doc.Parameters, Column{Name: k, Value: sub.Parameters[k]})
	}
	return doc
}

func (w *Writer) sequenceRow(id string, seq *domain.SequenceResult) SequenceRow {
	row := SequenceRow{ID: id}
	for _, col := range w.summaryColumns {
		switch col {
		case mergeCountColumn:
			if seq.MergeCount != nil {
				row.Summary = append(row.Summary, Column{Name: col, Value: strconv.Itoa(*seq.MergeCount)})
			}
		case readPercentColumn:
			if seq.ReadPercent != nil {
				row.Summary = append(row.Summary, Column{Name: col, Value: strconv.FormatFloat(*seq.ReadPercent, 'f', -1, 64)})
			}
		default:
			if c, ok := seq.Summary[col]; ok {
				row.Summary = append(row.Summary, Column{Name: col, Value: c.String()})
			}
		}
	}
	for _, col := range w.junctionColumns {
		if c, ok := seq.Junction[col]; ok {
			row.Junction = append(row.Junction, Column{Name: col, Value: c.String()})
		}
	}
	if seq.Messages != nil {
		row.SubsetSummary = seq.Messages.SubsetSummary
		row.Indels = seq.Messages.Indels.String()
		row.IndelMessages = seq.Messages.IndelMessages.String()
	}
	return row
}

// Write renders doc and returns the written path. An existing file for
// the same report ID is replaced.
func (w *Writer) Write(doc *Document) (string, error) {
	if doc.ReportID == "" || strings.ContainsAny(doc.ReportID, `/\`) {
		return "", domain.NewValidationError("report_id", "invalid report id", doc.ReportID)
	}

	var buf bytes.Buffer
	if err := w.tmpl.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("rendering report %s: %w", doc.ReportID, err)
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}

	path := w.Path(doc.ReportID)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("writing report %s: %w", doc.ReportID, err)
	}

	w.log.WithFields(logrus.Fields{
		"report_id": doc.ReportID,
		"path":      path,
		"sequences": len(doc.Sequences),
	}).Info("Report written successfully")
	return path, nil
}
