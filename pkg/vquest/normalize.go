package vquest

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cll-genie-server/internal/domain"
)

// Archive members read from a full V-QUEST result.
const (
	ParametersFile = "11_Parameters.txt"
	SummaryFile    = "1_Summary.txt"
	JunctionFile   = "6_Junction.txt"
)

const sequenceIDColumn = "Sequence ID"

const msgFileNotFound = "File not found on the server"

// Analysis is the normalized content of a full V-QUEST result.
type Analysis struct {
	Parameters map[string]string
	Sequences  map[string]*domain.SequenceResult
}

// SubmittedCount returns the "Number of submitted sequences" parameter.
func (a *Analysis) SubmittedCount() string {
	return a.Parameters[domain.SubmittedSequenceCount]
}

// ExtractArchive writes every member of the zip in data into dir, flattened
// to its base name, and returns the member names written.
func ExtractArchive(data []byte, dir string) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &domain.VQuestError{
			Kind:     domain.KindShape,
			Messages: []string{"V-QUEST did not return a zip archive"},
			Err:      err,
		}
	}

	var names []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(f.Name)
		if err := extractMember(f, filepath.Join(dir, name)); err != nil {
			return names, &domain.VQuestError{
				Kind:     domain.KindLocalIO,
				Messages: []string{fmt.Sprintf("Could not save %s", name)},
				Err:      err,
			}
		}
		names = append(names, name)
	}
	return names, nil
}

func extractMember(f *zip.File, path string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening member %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return out.Close()
}

// LoadAnalysis parses the parameter, summary and junction members found in dir.
func LoadAnalysis(dir string) (*Analysis, error) {
	params, err := readMember(dir, ParametersFile, ParseParameters)
	if err != nil {
		return nil, err
	}
	summary, err := readMember(dir, SummaryFile, ParseTable)
	if err != nil {
		return nil, err
	}
	junction, err := readMember(dir, JunctionFile, ParseTable)
	if err != nil {
		return nil, err
	}
	return Normalize(params, summary, junction), nil
}

func readMember[T any](dir, name string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return zero, &domain.VQuestError{Kind: domain.KindLocalIO, Messages: []string{msgFileNotFound}, Err: err}
		}
		return zero, &domain.VQuestError{
			Kind:     domain.KindLocalIO,
			Messages: []string{fmt.Sprintf("Could not read %s", name)},
			Err:      err,
		}
	}
	defer f.Close()

	v, err := parse(f)
	if err != nil {
		return zero, &domain.VQuestError{
			Kind:     domain.KindShape,
			Messages: []string{fmt.Sprintf("Unexpected content in %s", name)},
			Err:      err,
		}
	}
	return v, nil
}

// ParseParameters reads "key<TAB>value" lines. The run date and the
// per-region nucleotide counts are skipped, as are lines with no value.
func ParseParameters(r io.Reader) (map[string]string, error) {
	params := make(map[string]string)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		key := parts[0]
		if key == "Date" || strings.HasPrefix(key, "Nb of nucleotides") {
			continue
		}
		if len(parts) < 2 {
			continue
		}
		params[key] = parts[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading parameters: %w", err)
	}
	return params, nil
}

// ParseTable reads a tab-separated V-QUEST table with a header row and
// returns the first row of each sequence ID. Columns with an empty header
// are dropped and empty values become absent cells.
func ParseTable(r io.Reader) (map[string]domain.Fields, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("table has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	idIndex := -1
	for i, name := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if header[i] == sequenceIDColumn {
			idIndex = i
		}
	}
	if idIndex < 0 {
		return nil, fmt.Errorf("table has no %q column", sequenceIDColumn)
	}

	rows := make(map[string]domain.Fields)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		if idIndex >= len(record) {
			continue
		}
		id := record[idIndex]
		if id == "" {
			continue
		}
		if _, seen := rows[id]; seen {
			continue
		}

		fields := make(domain.Fields, len(header))
		for i, name := range header {
			if name == "" || i == idIndex {
				continue
			}
			value := ""
			if i < len(record) {
				value = strings.TrimSuffix(record[i], "\r")
			}
			fields[name] = domain.CellOf(value)
		}
		rows[id] = fields
	}
	return rows, nil
}

// Normalize joins summary and junction rows by sequence ID. The summary
// decides which sequences exist; a sequence with no junction row gets an
// empty junction map.
func Normalize(params map[string]string, summary, junction map[string]domain.Fields) *Analysis {
	analysis := &Analysis{
		Parameters: params,
		Sequences:  make(map[string]*domain.SequenceResult, len(summary)),
	}
	for id, fields := range summary {
		j := junction[id]
		if j == nil {
			j = domain.Fields{}
		}
		analysis.Sequences[id] = &domain.SequenceResult{
			Summary:  fields,
			Junction: j,
		}
	}
	return analysis
}
