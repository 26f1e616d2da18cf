package service

import (
	"strconv"
	"strings"

	"github.com/cll-genie-server/internal/domain"
	"github.com/cll-genie-server/pkg/vquest"
)

// SelectionStatsKey is the form field carrying the selection statistics
// of the chosen sequences. It is not a V-QUEST parameter.
const SelectionStatsKey = "selected_seqs_merging_rate"

// Selection is one sequence chosen for analysis together with the
// statistics of its clonotype in the sequencing run.
type Selection struct {
	ID          string   `json:"id"`
	Sequence    string   `json:"sequence,omitempty"`
	MergeCount  *int     `json:"merge_count,omitempty"`
	ReadPercent *float64 `json:"read_percent,omitempty"`
}

// SelectionStats is the merge count and read percentage of one sequence.
type SelectionStats struct {
	MergeCount  int
	ReadPercent float64
}

// ParseSelectionStats parses "Seq1_S;1200;45.31|Seq2_S;300;7.2/" into
// per-sequence statistics. Read percentages may carry trailing slashes and
// are rounded to two decimals.
func ParseSelectionStats(raw string) (map[string]SelectionStats, error) {
	stats := map[string]SelectionStats{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return stats, nil
	}

	for _, entry := range strings.Split(raw, "|") {
		parts := strings.Split(strings.TrimSpace(entry), ";")
		if len(parts) < 3 || parts[0] == "" {
			return nil, domain.NewValidationError(SelectionStatsKey, "expected id;merge count;read percentage", entry)
		}
		id := strings.TrimPrefix(parts[0], ">")

		merge, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, domain.NewValidationError(SelectionStatsKey, "merge count must be an integer", entry)
		}
		reads, err := strconv.ParseFloat(strings.Trim(strings.TrimSpace(parts[2]), "/"), 64)
		if err != nil {
			return nil, domain.NewValidationError(SelectionStatsKey, "read percentage must be a number", entry)
		}
		stats[id] = SelectionStats{MergeCount: merge, ReadPercent: domain.Round2(reads)}
	}
	return stats, nil
}

// collectSelection merges statistics from the selection list over those
// parsed from the form field.
func collectSelection(selection []Selection, formStats map[string]SelectionStats) map[string]SelectionStats {
	stats := make(map[string]SelectionStats, len(formStats)+len(selection))
	for id, st := range formStats {
		stats[id] = st
	}
	for _, sel := range selection {
		if sel.MergeCount == nil || sel.ReadPercent == nil {
			continue
		}
		stats[sel.ID] = SelectionStats{MergeCount: *sel.MergeCount, ReadPercent: domain.Round2(*sel.ReadPercent)}
	}
	return stats
}

// selectionFASTA renders the selected sequences that carry sequence text.
func selectionFASTA(selection []Selection) string {
	var records []vquest.Sequence
	for _, sel := range selection {
		if strings.TrimSpace(sel.Sequence) == "" {
			continue
		}
		records = append(records, vquest.Sequence{ID: sel.ID, Sequence: sel.Sequence})
	}
	return vquest.FASTA(records)
}

// spliceSelection attaches statistics to the analysed sequences. Sequences
// without statistics are left incomplete and rejected by the store.
func spliceSelection(analysis *vquest.Analysis, stats map[string]SelectionStats) {
	for id, seq := range analysis.Sequences {
		st, ok := stats[id]
		if !ok {
			continue
		}
		merge := st.MergeCount
		reads := st.ReadPercent
		seq.MergeCount = &merge
		seq.ReadPercent = &reads
	}
}
