package vquest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cll-genie-server/internal/domain"
)

const (
	chunkDelimiter = "------------------------------"

	sectionResultSummary = "Result summary"
	sectionResults       = "IMGT/V-QUEST results"
	indelPhrasePartial   = "J-REGION partial 3"
	indelPhraseIdentity  = "Low V-REGION identity"
	subsetMarker         = "CLL subset #"

	// NoSubsetSummary is stored when V-QUEST reports no CLL subset for a sequence.
	NoSubsetSummary = "I aktuell sekvens kan ingen subsettillhörighet identifieras. "
)

var (
	resultsHeaderPattern = regexp.MustCompile(`IMGT/V-QUEST results.*:\n`)
	indelAdvicePattern   = regexp.MustCompile(`Try 'Search for insertions and deletions'.*\n*`)
)

// DetailedSections are the raw sections found for one sequence in a
// detailed text result.
type DetailedSections struct {
	Message      domain.Cell
	Result       string
	IndelMessage domain.Cell
}

var newlineNormalizer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// ParseDetailedSections splits a detailed text result into per-sequence
// sections. The text before the first delimiter is a preamble and is
// ignored. When several sections carry the indel warning, the last one wins.
// CRLF and lone CR line endings are read as LF.
func ParseDetailedSections(text string) (map[string]*DetailedSections, error) {
	text = newlineNormalizer.Replace(text)
	chunks := strings.Split(text, chunkDelimiter)
	out := make(map[string]*DetailedSections, len(chunks))

	for i, chunk := range chunks[1:] {
		_, body, found := strings.Cut(chunk, ">")
		if !found {
			if strings.TrimSpace(chunk) == "" {
				continue
			}
			return nil, fmt.Errorf("detailed chunk %d has no sequence header", i+1)
		}

		elements := strings.Split(body, "\n\n")
		seqID, _, _ := strings.Cut(elements[0], "\n")
		seqID = strings.TrimSpace(seqID)
		if seqID == "" {
			return nil, fmt.Errorf("detailed chunk %d has an empty sequence ID", i+1)
		}

		sections := &DetailedSections{}
		for _, element := range elements[1:] {
			switch {
			case strings.Contains(element, sectionResultSummary):
				sections.Message = domain.Present(strings.ReplaceAll(element, sectionResultSummary+": "+seqID, ""))
			case strings.Contains(element, sectionResults):
				sections.Result = resultsHeaderPattern.ReplaceAllString(element, "")
			case strings.Contains(element, indelPhrasePartial) && strings.Contains(element, indelPhraseIdentity):
				sections.IndelMessage = domain.Present(indelAdvicePattern.ReplaceAllString(element, ""))
			}
		}
		out[seqID] = sections
	}

	return out, nil
}

// ParseDetailed turns a detailed text result into the per-sequence messages
// merged into a full result.
func ParseDetailed(text string) (map[string]*domain.Messages, error) {
	sections, err := ParseDetailedSections(text)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*domain.Messages, len(sections))
	for id, s := range sections {
		out[id] = s.Messages()
	}
	return out, nil
}

// Messages derives the stored messages from the raw sections.
func (s *DetailedSections) Messages() *domain.Messages {
	m := &domain.Messages{
		SubsetSummary: NoSubsetSummary,
		IndelMessages: s.IndelMessage,
	}

	if idx := strings.Index(s.Result, subsetMarker); idx >= 0 {
		m.SubsetSummary = s.Result[idx:]
	}

	if msg, ok := s.Message.Value(); ok {
		head, _, _ := strings.Cut(msg, ":")
		m.Indels = domain.Present(strings.ReplaceAll(head, "\n", ""))
	}

	return m
}

// AssignSubset returns the first tag contained in the subset summary.
func AssignSubset(summary string, tags []string) domain.Cell {
	for _, tag := range tags {
		if strings.Contains(summary, tag) {
			return domain.Present(tag)
		}
	}
	return domain.Absent
}

// MergeDetailed attaches detailed messages to the matching sequences of a
// full analysis and sets their CLL subset label. Sequences present only in
// the detailed result are ignored.
func MergeDetailed(analysis *Analysis, detailed map[string]*domain.Messages, tags []string) {
	for id, msgs := range detailed {
		seq, ok := analysis.Sequences[id]
		if !ok {
			continue
		}
		seq.Messages = msgs
		if seq.Summary == nil {
			seq.Summary = domain.Fields{}
		}
		seq.Summary[domain.SummarySubsetColumn] = AssignSubset(msgs.SubsetSummary, tags)
	}
}
