package vquest

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/url"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const summaryFixture = "Sequence number\tSequence ID\tV-DOMAIN Functionality\tV-GENE and allele\tV-REGION identity %\tCLL subset\t\n" +
	"1\tSeq1_S1\tproductive\tHomsap IGHV3-21*01 F\t100.00\t\t\n" +
	"2\tSeq2_S1\tproductive\tHomsap IGHV4-34*01 F\t95.5\t\t\n"

const junctionFixture = "Sequence number\tSequence ID\tJUNCTION-nt nb\tJUNCTION decryption\n" +
	"1\tSeq1_S1\t66\tHomsap IGHV3-21*01 F\n"

const parametersFixture = "Date\tThu Oct 16 10:12:01 CEST 2026\n" +
	"IMGT/V-QUEST programme version\t3.6.3\n" +
	"Number of submitted sequences\t2\n" +
	"Nb of nucleotides to add (or exclude) in 5' of the V-REGION\t0\n" +
	"Species\tHomo sapiens\n"

const detailedFixture = "IMGT/V-QUEST detailed view\nNumber of analysed sequences: 2\n" +
	"------------------------------\n" +
	">Seq1_S1\ngaggtgcagctggtggagtctggg\n\n" +
	"Result summary: Seq1_S1\nProductive IGH rearranged sequence (no stop codon and in-frame junction)\n\n" +
	"IMGT/V-QUEST results for Seq1_S1:\nV-GENE and allele;Homsap IGHV3-21*01 F;identity = 100.00%\nCLL subset #2 (IGHV3-21/IGLV3-21)\n\n" +
	"------------------------------\n" +
	">Seq2_S1\ncaggtgcagctacagcagtgggg\n\n" +
	"Result summary: Seq2_S1\nUnproductive: stop codons\n\n" +
	"IMGT/V-QUEST results for Seq2_S1:\nV-GENE and allele;Homsap IGHV4-34*01 F\n\n" +
	"Warning: J-REGION partial 3' and Low V-REGION identity (85.00%)\nTry 'Search for insertions and deletions' option.\n\n" +
	"Note: J-REGION partial 3' and Low V-REGION identity second warning\n"

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func buildArchive(t *testing.T, members map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func fullArchive(t *testing.T) []byte {
	return buildArchive(t, map[string]string{
		"results/" + ParametersFile: parametersFixture,
		SummaryFile:                 summaryFixture,
		JunctionFile:                junctionFixture,
	})
}

// stubPoster replays canned responses and records submitted forms.
type stubPoster struct {
	mu    sync.Mutex
	resp  *Response
	err   error
	forms []url.Values
}

func (p *stubPoster) Post(_ context.Context, form url.Values) (*Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forms = append(p.forms, form)
	return p.resp, p.err
}

func (p *stubPoster) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.forms)
}
