package annotation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/geoleven/CAMPAREE/interval"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
)

// The geneinfo format is tab-delimited with 1-based, inclusive coordinates
// and one transcript per line:
//   chrom strand txStart txEnd exonCount exonStarts exonEnds
//   transcriptID geneID geneSymbol biotype
// exonStarts/exonEnds are comma-joined lists sorted by plus-strand
// coordinate.  An optional header line is marked with a leading '#'.
const geneinfoColumns = 11

// geneinfoRow is one parsed transcript line.
type geneinfoRow struct {
	chrom        string
	strand       byte
	txStart      PosType
	txEnd        PosType
	exonStarts   []PosType
	exonEnds     []PosType
	transcriptID string
	geneID       string
	geneSymbol   string
	biotype      string
}

// getTokens identifies up to the first len(tokens) tokens from curLine,
// returning the number of tokens saved.  Any (group of) characters <= ' ' is
// treated as a delimiter.
func getTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

func parsePos(token []byte) (PosType, error) {
	v, err := strconv.Atoi(string(token))
	if err != nil {
		return 0, err
	}
	if (v < 1) || (v > interval.PosTypeMax) {
		return 0, fmt.Errorf("coordinate %d out of range", v)
	}
	return PosType(v), nil
}

func parsePosList(token []byte) ([]PosType, error) {
	parts := strings.Split(strings.TrimSuffix(string(token), ","), ",")
	result := make([]PosType, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		if (v < 1) || (v > interval.PosTypeMax) {
			return nil, fmt.Errorf("coordinate %d out of range", v)
		}
		result = append(result, PosType(v))
	}
	return result, nil
}

// parseGeneinfo reads geneinfo rows from reader.  Any structural problem is
// an error naming the offending line.
func parseGeneinfo(reader io.Reader) (rows []geneinfoRow, err error) {
	scanner := bufio.NewScanner(reader)
	// Unlike BED, geneinfo lines carry full exon lists and can get very long
	// for transcripts with many exons; Scanner does not auto-resize.
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<24)

	var tokens [geneinfoColumns][]byte
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		if (len(curLine) == 0) || (curLine[0] == '#') {
			continue
		}
		nToken := getTokens(tokens[:], curLine)
		if nToken != geneinfoColumns {
			err = fmt.Errorf("annotation.parseGeneinfo: line %d has %d tokens, expected %d", lineIdx, nToken, geneinfoColumns)
			return
		}
		var row geneinfoRow
		row.chrom = string(tokens[0])
		if (len(tokens[1]) != 1) || ((tokens[1][0] != '+') && (tokens[1][0] != '-')) {
			err = fmt.Errorf("annotation.parseGeneinfo: invalid strand %q on line %d", tokens[1], lineIdx)
			return
		}
		row.strand = tokens[1][0]
		if row.txStart, err = parsePos(tokens[2]); err != nil {
			err = fmt.Errorf("annotation.parseGeneinfo: bad txStart on line %d: %v", lineIdx, err)
			return
		}
		if row.txEnd, err = parsePos(tokens[3]); err != nil {
			err = fmt.Errorf("annotation.parseGeneinfo: bad txEnd on line %d: %v", lineIdx, err)
			return
		}
		if row.txEnd < row.txStart {
			err = fmt.Errorf("annotation.parseGeneinfo: txEnd < txStart on line %d", lineIdx)
			return
		}
		var exonCount int
		if exonCount, err = strconv.Atoi(string(tokens[4])); err != nil {
			err = fmt.Errorf("annotation.parseGeneinfo: bad exonCount on line %d: %v", lineIdx, err)
			return
		}
		if row.exonStarts, err = parsePosList(tokens[5]); err != nil {
			err = fmt.Errorf("annotation.parseGeneinfo: bad exonStarts on line %d: %v", lineIdx, err)
			return
		}
		if row.exonEnds, err = parsePosList(tokens[6]); err != nil {
			err = fmt.Errorf("annotation.parseGeneinfo: bad exonEnds on line %d: %v", lineIdx, err)
			return
		}
		if (len(row.exonStarts) != exonCount) || (len(row.exonEnds) != exonCount) {
			err = fmt.Errorf("annotation.parseGeneinfo: exon list length mismatch on line %d", lineIdx)
			return
		}
		for i := 0; i != exonCount; i++ {
			if row.exonEnds[i] < row.exonStarts[i] {
				err = fmt.Errorf("annotation.parseGeneinfo: exon %d inverted on line %d", i, lineIdx)
				return
			}
			if (i != 0) && (row.exonStarts[i] < row.exonStarts[i-1]) {
				err = fmt.Errorf("annotation.parseGeneinfo: exons unsorted on line %d", lineIdx)
				return
			}
		}
		row.transcriptID = string(tokens[7])
		row.geneID = string(tokens[8])
		row.geneSymbol = string(tokens[9])
		row.biotype = string(tokens[10])
		rows = append(rows, row)
	}
	if err = scanner.Err(); err != nil {
		return
	}
	return rows, nil
}

// Opts configures index construction.
type Opts struct {
	// FlankSize is the padding, in bases, added to a terminal intron's
	// effective length for each transcript boundary it abuts.
	FlankSize PosType
	// ChromLengths supplies each chromosome's total length, normally taken
	// from the alignment header.  Chromosomes missing from this map are
	// excluded from the index.
	ChromLengths map[string]PosType
}

// LoadIndex reads a geneinfo file (gzipped or plain) and builds the full
// annotation index.
func LoadIndex(ctx context.Context, path string, opts Opts) (idx *Index, err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer func() {
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader := io.Reader(infile.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		if reader, err = gzip.NewReader(reader); err != nil {
			return
		}
	}
	var rows []geneinfoRow
	if rows, err = parseGeneinfo(reader); err != nil {
		return
	}
	if idx, err = buildIndex(rows, opts); err != nil {
		return
	}
	log.Printf("annotation: loaded %d transcript(s) on %d chromosome(s) from %s", len(idx.Transcripts), len(idx.TranscriptsByChrom), path)
	return
}
