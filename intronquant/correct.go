package intronquant

import (
	"sort"

	"github.com/geoleven/CAMPAREE/annotation"
)

// ClampMode selects how the double-count correction bounds an adjusted
// intron rate.
type ClampMode int

const (
	// ClampZeroCeiling caps every corrected rate at zero, i.e. adjusted =
	// min(rate - deduction, 0).  This reproduces the historical correction
	// rule, under which any bin owner sharing its bin with an
	// earlier-starting expressed intron ends at or below zero.
	ClampZeroCeiling ClampMode = iota
	// ClampZeroFloor subtracts with a floor of zero instead, i.e. adjusted =
	// max(rate - deduction, 0).
	ClampZeroFloor
)

// strandView exposes one strand perspective of the count tables so the
// correction walk is written once for both.  The antisense view pairs
// antisense rates with the opposite-strand bins they were accumulated
// through.
type strandView struct {
	norm     map[*annotation.Intron]float64
	mintrons func(in *annotation.Intron) []*annotation.Mintron
	primary  func(m *annotation.Mintron) []*annotation.Intron
}

func (ct *countTables) senseView() strandView {
	return strandView{
		norm:     ct.normSense,
		mintrons: func(in *annotation.Intron) []*annotation.Mintron { return in.Mintrons },
		primary:  func(m *annotation.Mintron) []*annotation.Intron { return m.Primary },
	}
}

func (ct *countTables) antisenseView() strandView {
	return strandView{
		norm:     ct.normAntisense,
		mintrons: func(in *annotation.Intron) []*annotation.Mintron { return in.AntisenseMintrons },
		primary:  func(m *annotation.Mintron) []*annotation.Intron { return m.PrimaryAntisense },
	}
}

// correctChromosome removes double-counted expression on one chromosome for
// one strand perspective.  Transcripts are walked in (start, ID) order; for
// each expressed intron, every bin it covers without owning passes the
// intron's rate on as a deduction from the bin's owners.  Corrections
// compound, so the walk order is part of the contract.
func correctChromosome(transcripts []*annotation.Transcript, view strandView, clamp ClampMode) {
	for _, tr := range transcripts {
		for _, in := range tr.Introns {
			rate, found := view.norm[in]
			if !found || rate == 0 {
				continue
			}
			for _, m := range view.mintrons(in) {
				owners := view.primary(m)
				if containsIntron(owners, in) {
					continue
				}
				for _, owner := range owners {
					adjusted := view.norm[owner] - rate
					switch clamp {
					case ClampZeroCeiling:
						if adjusted > 0 {
							adjusted = 0
						}
					case ClampZeroFloor:
						if adjusted < 0 {
							adjusted = 0
						}
					}
					view.norm[owner] = adjusted
				}
			}
		}
	}
}

func containsIntron(introns []*annotation.Intron, in *annotation.Intron) bool {
	for _, other := range introns {
		if other == in {
			return true
		}
	}
	return false
}

// correctDoubleCounts runs the correction over every chromosome, sense and
// antisense, in sorted chromosome order so repeated runs on the same input
// produce identical tables.
func correctDoubleCounts(idx *annotation.Index, ct *countTables, clamp ClampMode) {
	chroms := make([]string, 0, len(idx.TranscriptsByChrom))
	for chrom := range idx.TranscriptsByChrom {
		chroms = append(chroms, chrom)
	}
	sort.Strings(chroms)
	for _, chrom := range chroms {
		transcripts := idx.TranscriptsByChrom[chrom]
		correctChromosome(transcripts, ct.senseView(), clamp)
		correctChromosome(transcripts, ct.antisenseView(), clamp)
	}
}
