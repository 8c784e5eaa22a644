package intronquant

import (
	"github.com/geoleven/CAMPAREE/annotation"
)

// fpkScale converts a per-base rate to a per-kilobase rate.
const fpkScale = 1000

// countTables holds all per-run accumulator state.  Raw counts are written
// during the alignment pass; the normalized tables are derived from them once
// afterward, then adjusted in place by the double-count correction.  A table
// set serves exactly one run; start a new run with newCountTables.
type countTables struct {
	rawSense     map[*annotation.Intron]uint64
	rawAntisense map[*annotation.Intron]uint64

	normSense     map[*annotation.Intron]float64
	normAntisense map[*annotation.Intron]float64

	// intergenic[chrom][i] counts fragments touching intergenic bin i.
	intergenic map[string][]uint64

	normalized bool
}

func newCountTables(idx *annotation.Index) *countTables {
	ct := &countTables{
		rawSense:      make(map[*annotation.Intron]uint64),
		rawAntisense:  make(map[*annotation.Intron]uint64),
		normSense:     make(map[*annotation.Intron]float64),
		normAntisense: make(map[*annotation.Intron]float64),
		intergenic:    make(map[string][]uint64),
	}
	for chrom, extents := range idx.IntergenicExtents {
		ct.intergenic[chrom] = make([]uint64, extents.N())
	}
	return ct
}

// binSet collects the distinct bin indices one fragment touches on one axis.
// A fragment contributes at most one count per bin no matter how many of its
// blocks land there.
type binSet map[int]struct{}

func (s binSet) reset() {
	for i := range s {
		delete(s, i)
	}
}

func (s binSet) addRange(lo, hi int) {
	for i := lo; i != hi; i++ {
		s[i] = struct{}{}
	}
}

// fragmentScratch is per-pass reusable state for countFragment.
type fragmentScratch struct {
	blocks     []block
	sense      binSet
	antisense  binSet
	intergenic binSet
}

func newFragmentScratch() *fragmentScratch {
	return &fragmentScratch{
		sense:      make(binSet),
		antisense:  make(binSet),
		intergenic: make(binSet),
	}
}

// countFragment resolves one fragment's aligned blocks against the index and
// adds one count per touched bin: to the primary introns of bins on the
// fragment's own strand (sense), to the antisense-primary introns of bins on
// the opposite strand (antisense), and to each touched intergenic bin.
func (ct *countTables) countFragment(idx *annotation.Index, frag *fragment, scratch *fragmentScratch) {
	if ct.normalized {
		panic("intronquant: countFragment called after normalize")
	}
	scratch.blocks = alignedBlocks(scratch.blocks[:0], frag.r1)
	scratch.blocks = alignedBlocks(scratch.blocks, frag.r2)

	senseKey := annotation.StrandKey{Chrom: frag.chrom, Strand: frag.strand}
	antisenseKey := senseKey.Opposite()
	senseExtents := idx.MintronExtents[senseKey]
	antisenseExtents := idx.MintronExtents[antisenseKey]
	intergenicExtents := idx.IntergenicExtents[frag.chrom]
	scratch.sense.reset()
	scratch.antisense.reset()
	scratch.intergenic.reset()
	for _, b := range scratch.blocks {
		scratch.sense.addRange(senseExtents.OverlapRange(b.start, b.end))
		scratch.antisense.addRange(antisenseExtents.OverlapRange(b.start, b.end))
		scratch.intergenic.addRange(intergenicExtents.OverlapRange(b.start, b.end))
	}

	senseMintrons := idx.Mintrons[senseKey]
	for i := range scratch.sense {
		for _, in := range senseMintrons[i].Primary {
			ct.rawSense[in]++
		}
	}
	antisenseMintrons := idx.Mintrons[antisenseKey]
	for i := range scratch.antisense {
		for _, in := range antisenseMintrons[i].PrimaryAntisense {
			ct.rawAntisense[in]++
		}
	}
	counts := ct.intergenic[frag.chrom]
	for i := range scratch.intergenic {
		counts[i]++
	}
}

// normalize converts raw counts to fragments per kilobase of effective
// length.  Introns with no fragments stay absent from the normalized tables
// rather than appearing with value zero; the correction stage distinguishes
// absence from zero.
func (ct *countTables) normalize() {
	if ct.normalized {
		panic("intronquant: normalize called twice")
	}
	ct.normalized = true
	for in, n := range ct.rawSense {
		ct.normSense[in] = float64(n) / float64(in.EffectiveLength) * fpkScale
	}
	for in, n := range ct.rawAntisense {
		ct.normAntisense[in] = float64(n) / float64(in.AntisenseEffectiveLength) * fpkScale
	}
}
