package annotation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
)

const testGeneinfo = `#chrom	strand	txStart	txEnd	exonCount	exonStarts	exonEnds	transcriptID	geneID	geneSymbol	biotype
1	+	100	999	3	100,300,600	199,399,999	T1	G1	ALPHA	protein_coding
1	+	250	899	2	250,700	449,899	T2	G1	ALPHA	protein_coding
1	-	320	560	2	320,500	380,560	T3	G2	BETA	lincRNA
2	+	100	500	2	100,400	199,500	T4	G3	GAMMA	protein_coding
`

func testOpts() Opts {
	return Opts{
		FlankSize:    10,
		ChromLengths: map[string]PosType{"1": 2000},
	}
}

func loadTestIndex(t *testing.T) *Index {
	rows, err := parseGeneinfo(strings.NewReader(testGeneinfo))
	expect.NoError(t, err)
	idx, err := buildIndex(rows, testOpts())
	expect.NoError(t, err)
	return idx
}

// intronKey identifies an intron in expectations as "transcript:start-end".
func intronKey(in *Intron) string {
	return fmt.Sprintf("%s:%d-%d", in.Transcript.ID, in.Start, in.End)
}

func intronKeys(introns []*Intron) []string {
	keys := make([]string, len(introns))
	for i, in := range introns {
		keys[i] = intronKey(in)
	}
	return keys
}

func TestParseGeneinfo(t *testing.T) {
	rows, err := parseGeneinfo(strings.NewReader(testGeneinfo))
	expect.NoError(t, err)
	expect.EQ(t, len(rows), 4)
	expect.EQ(t, rows[0].chrom, "1")
	expect.EQ(t, rows[0].strand, byte('+'))
	expect.EQ(t, rows[0].txStart, PosType(100))
	expect.EQ(t, rows[0].txEnd, PosType(999))
	expect.EQ(t, rows[0].exonStarts, []PosType{100, 300, 600})
	expect.EQ(t, rows[0].exonEnds, []PosType{199, 399, 999})
	expect.EQ(t, rows[0].transcriptID, "T1")
	expect.EQ(t, rows[0].geneID, "G1")
	expect.EQ(t, rows[0].geneSymbol, "ALPHA")
	expect.EQ(t, rows[0].biotype, "protein_coding")
	// Trailing commas in exon lists are tolerated.
	rows, err = parseGeneinfo(strings.NewReader("1\t+\t100\t500\t2\t100,400,\t199,500,\tT\tG\tS\tb\n"))
	expect.NoError(t, err)
	expect.EQ(t, rows[0].exonStarts, []PosType{100, 400})
}

func TestParseGeneinfoErrors(t *testing.T) {
	tests := []string{
		// wrong token count
		"1\t+\t100\t500\t2\t100,400\t199,500\tT\tG\tS\n",
		// bad strand
		"1\t*\t100\t500\t2\t100,400\t199,500\tT\tG\tS\tb\n",
		// txEnd < txStart
		"1\t+\t500\t100\t2\t100,400\t199,500\tT\tG\tS\tb\n",
		// exon count mismatch
		"1\t+\t100\t500\t3\t100,400\t199,500\tT\tG\tS\tb\n",
		// inverted exon
		"1\t+\t100\t500\t2\t100,400\t99,500\tT\tG\tS\tb\n",
		// unsorted exons
		"1\t+\t100\t500\t2\t400,100\t500,199\tT\tG\tS\tb\n",
		// zero coordinate
		"1\t+\t0\t500\t2\t100,400\t199,500\tT\tG\tS\tb\n",
	}
	for _, tt := range tests {
		_, err := parseGeneinfo(strings.NewReader(tt))
		expect.NotNil(t, err, "input=%q", tt)
	}
}

func TestBuildIndexDuplicateTranscript(t *testing.T) {
	input := "1\t+\t100\t500\t2\t100,400\t199,500\tT\tG\tS\tb\n" +
		"1\t-\t100\t500\t2\t100,400\t199,500\tT\tG\tS\tb\n"
	rows, err := parseGeneinfo(strings.NewReader(input))
	expect.NoError(t, err)
	_, err = buildIndex(rows, testOpts())
	expect.NotNil(t, err)
}

func TestIntronDerivation(t *testing.T) {
	idx := loadTestIndex(t)
	t1 := idx.Transcripts["T1"]
	expect.EQ(t, intronKeys(t1.Introns), []string{"T1:200-299", "T1:400-599"})
	// Terminal introns get one flank each.
	expect.EQ(t, t1.Introns[0].EffectiveLength, PosType(110))
	expect.EQ(t, t1.Introns[1].EffectiveLength, PosType(210))
	// A single-intron transcript gets the flank twice.
	t2 := idx.Transcripts["T2"]
	expect.EQ(t, intronKeys(t2.Introns), []string{"T2:450-699"})
	expect.EQ(t, t2.Introns[0].EffectiveLength, PosType(270))
	// Gene records are shared across a gene's transcripts.
	expect.True(t, t1.Gene == t2.Gene)
}

func TestMintronPartition(t *testing.T) {
	idx := loadTestIndex(t)
	mintrons := idx.Mintrons[StrandKey{"1", '+'}]
	expect.EQ(t, len(mintrons), 4)
	type span struct{ start, end PosType }
	var spans []span
	for _, m := range mintrons {
		spans = append(spans, span{m.Start, m.End})
	}
	expect.EQ(t, spans, []span{{200, 299}, {400, 449}, {450, 599}, {600, 699}})
	expect.EQ(t, intronKeys(mintrons[0].Introns), []string{"T1:200-299"})
	expect.EQ(t, intronKeys(mintrons[2].Introns), []string{"T1:400-599", "T2:450-699"})
	// The earliest-starting covering intron owns the shared bin.
	expect.EQ(t, intronKeys(mintrons[2].Primary), []string{"T1:400-599"})
	expect.EQ(t, intronKeys(mintrons[3].Primary), []string{"T2:450-699"})
	// Every intron points back at its bins.
	t1 := idx.Transcripts["T1"]
	expect.EQ(t, len(t1.Introns[1].Mintrons), 2)
	expect.True(t, t1.Introns[1].Mintrons[0] == mintrons[1])
	expect.True(t, t1.Introns[1].Mintrons[1] == mintrons[2])
}

func TestAntisenseDesignation(t *testing.T) {
	idx := loadTestIndex(t)
	plus := idx.Mintrons[StrandKey{"1", '+'}]
	// Sole-owner bins designate the same intron for both directions.
	expect.EQ(t, intronKeys(plus[0].PrimaryAntisense), []string{"T1:200-299"})
	expect.EQ(t, intronKeys(plus[1].PrimaryAntisense), []string{"T1:400-599"})
	expect.EQ(t, intronKeys(plus[3].PrimaryAntisense), []string{"T2:450-699"})
	// In the shared bin the sense designation goes to the earliest start and
	// the antisense designation to the latest end.
	expect.EQ(t, intronKeys(plus[2].Primary), []string{"T1:400-599"})
	expect.EQ(t, intronKeys(plus[2].PrimaryAntisense), []string{"T2:450-699"})

	minus := idx.Mintrons[StrandKey{"1", '-'}]
	expect.EQ(t, len(minus), 1)
	expect.EQ(t, minus[0].Start, PosType(381))
	expect.EQ(t, minus[0].End, PosType(499))
	expect.EQ(t, intronKeys(minus[0].PrimaryAntisense), []string{"T3:381-499"})

	// Antisense bookkeeping runs over the intron's own bins, and the bins
	// tile the intron exactly, so the antisense denominator is the unpadded
	// length.
	a2 := idx.Transcripts["T1"].Introns[1]
	expect.EQ(t, len(a2.AntisenseMintrons), 2)
	expect.True(t, a2.AntisenseMintrons[0] == plus[1])
	expect.True(t, a2.AntisenseMintrons[1] == plus[2])
	expect.EQ(t, a2.AntisenseEffectiveLength, PosType(200))
	expect.EQ(t, a2.EffectiveLength, PosType(210))
	c := idx.Transcripts["T3"].Introns[0]
	expect.EQ(t, c.AntisenseEffectiveLength, PosType(119))
}

func TestIntergenicComplement(t *testing.T) {
	idx := loadTestIndex(t)
	extents, ok := idx.IntergenicExtents["1"]
	expect.True(t, ok)
	expect.EQ(t, extents.Starts, []PosType{1, 1000})
	expect.EQ(t, extents.Ends, []PosType{99, 2000})
	// Chromosome 2 is annotated but absent from the alignment header.
	expect.True(t, idx.HasChrom("1"))
	expect.False(t, idx.HasChrom("2"))
	expect.False(t, idx.HasChrom("MT"))
}

func TestIntergenicBeyondChromLength(t *testing.T) {
	rows, err := parseGeneinfo(strings.NewReader("1\t+\t100\t500\t2\t100,400\t199,500\tT\tG\tS\tb\n"))
	expect.NoError(t, err)
	_, err = buildIndex(rows, Opts{ChromLengths: map[string]PosType{"1": 400}})
	expect.NotNil(t, err)
}

func TestLoadIndex(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "geneinfo.txt")
	expect.NoError(t, os.WriteFile(path, []byte(testGeneinfo), 0644))
	idx, err := LoadIndex(context.Background(), path, testOpts())
	expect.NoError(t, err)
	expect.EQ(t, len(idx.Transcripts), 4)
	expect.EQ(t, len(idx.Genes), 3)
	expect.EQ(t, intronKeys(idx.Transcripts["T4"].Introns), []string{"T4:200-399"})
}
