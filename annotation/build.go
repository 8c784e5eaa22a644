package annotation

import (
	"fmt"
	"sort"

	"github.com/geoleven/CAMPAREE/interval"
)

// buildIndex assembles the full index from parsed geneinfo rows.  All derived
// structure (introns, mintron partition, primary ownership, antisense
// linkage, intergenic complement) is computed here, once; the result is
// immutable.
func buildIndex(rows []geneinfoRow, opts Opts) (*Index, error) {
	idx := &Index{
		Genes:              make(map[string]*Gene),
		Transcripts:        make(map[string]*Transcript),
		TranscriptsByChrom: make(map[string][]*Transcript),
		Mintrons:           make(map[StrandKey][]*Mintron),
		MintronExtents:     make(map[StrandKey]interval.Extents),
		IntergenicExtents:  make(map[string]interval.Extents),
	}
	intronsByKey := make(map[StrandKey][]*Intron)
	for _, row := range rows {
		if _, found := idx.Transcripts[row.transcriptID]; found {
			return nil, fmt.Errorf("annotation.buildIndex: duplicate transcript %s", row.transcriptID)
		}
		gene := idx.Genes[row.geneID]
		if gene == nil {
			gene = &Gene{ID: row.geneID, Symbol: row.geneSymbol}
			idx.Genes[row.geneID] = gene
		}
		tr := &Transcript{
			ID:     row.transcriptID,
			Gene:   gene,
			Chrom:  row.chrom,
			Strand: row.strand,
			Start:  row.txStart,
			End:    row.txEnd,
		}
		tr.Introns = deriveIntrons(tr, row.exonStarts, row.exonEnds, opts.FlankSize)
		idx.Transcripts[tr.ID] = tr
		idx.TranscriptsByChrom[tr.Chrom] = append(idx.TranscriptsByChrom[tr.Chrom], tr)
		key := StrandKey{tr.Chrom, tr.Strand}
		intronsByKey[key] = append(intronsByKey[key], tr.Introns...)
	}

	// Downstream stages require a stable 5'->3' transcript walk.
	for _, transcripts := range idx.TranscriptsByChrom {
		sort.Slice(transcripts, func(i, j int) bool {
			if transcripts[i].Start != transcripts[j].Start {
				return transcripts[i].Start < transcripts[j].Start
			}
			return transcripts[i].ID < transcripts[j].ID
		})
	}

	for key, introns := range intronsByKey {
		mintrons, err := partitionIntrons(introns)
		if err != nil {
			return nil, fmt.Errorf("annotation.buildIndex: %s%c: %v", key.Chrom, key.Strand, err)
		}
		idx.Mintrons[key] = mintrons
		starts := make([]PosType, len(mintrons))
		ends := make([]PosType, len(mintrons))
		for i, m := range mintrons {
			starts[i] = m.Start
			ends[i] = m.End
		}
		extents, err := interval.NewExtents(starts, ends)
		if err != nil {
			return nil, fmt.Errorf("annotation.buildIndex: %s%c: %v", key.Chrom, key.Strand, err)
		}
		idx.MintronExtents[key] = extents
	}

	if err := buildIntergenics(idx, opts.ChromLengths); err != nil {
		return nil, err
	}
	return idx, nil
}

// deriveIntrons converts a transcript's exon lists into its intron list.
// Terminal introns receive flankSize of effective-length padding per
// transcript boundary they abut.
func deriveIntrons(tr *Transcript, exonStarts, exonEnds []PosType, flankSize PosType) []*Intron {
	var introns []*Intron
	for i := 1; i < len(exonStarts); i++ {
		start := exonEnds[i-1] + 1
		end := exonStarts[i] - 1
		if end < start {
			// Touching or overlapping exons leave no gap.
			continue
		}
		introns = append(introns, &Intron{
			Transcript:      tr,
			Start:           start,
			End:             end,
			EffectiveLength: end - start + 1,
		})
	}
	if len(introns) != 0 {
		introns[0].EffectiveLength += flankSize
		introns[len(introns)-1].EffectiveLength += flankSize
	}
	return introns
}

// intronOrder is the canonical intron ordering used everywhere ties must
// break deterministically.
func intronOrder(a, b *Intron) bool {
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	if a.End != b.End {
		return a.End < b.End
	}
	return a.Transcript.ID < b.Transcript.ID
}

// partitionIntrons computes the boundary partition of the intron union on one
// axis: maximal segments over which the covering-intron set is constant.
// Each segment becomes a Mintron; its primary introns are the covering
// intron(s) with the smallest start.  Every intron's Mintrons list is filled
// in as a side effect.
func partitionIntrons(introns []*Intron) ([]*Mintron, error) {
	if len(introns) == 0 {
		return nil, nil
	}
	sorted := append([]*Intron(nil), introns...)
	sort.Slice(sorted, func(i, j int) bool { return intronOrder(sorted[i], sorted[j]) })

	// Breakpoints at every start and every end+1.
	breakSet := make(map[PosType]bool, 2*len(sorted))
	for _, in := range sorted {
		breakSet[in.Start] = true
		breakSet[in.End+1] = true
	}
	breaks := make([]PosType, 0, len(breakSet))
	for p := range breakSet {
		breaks = append(breaks, p)
	}
	sort.Slice(breaks, func(i, j int) bool { return breaks[i] < breaks[j] })

	var mintrons []*Mintron
	var active []*Intron
	nextIntron := 0
	for bi := 0; bi+1 <= len(breaks)-1; bi++ {
		pos := breaks[bi]
		// Retire introns ending before pos, admit introns starting at pos.
		live := active[:0]
		for _, in := range active {
			if in.End >= pos {
				live = append(live, in)
			}
		}
		active = live
		for nextIntron != len(sorted) && sorted[nextIntron].Start == pos {
			active = append(active, sorted[nextIntron])
			nextIntron++
		}
		if len(active) == 0 {
			continue
		}
		m := &Mintron{
			Start:   pos,
			End:     breaks[bi+1] - 1,
			Introns: append([]*Intron(nil), active...),
		}
		sort.Slice(m.Introns, func(i, j int) bool { return intronOrder(m.Introns[i], m.Introns[j]) })
		m.Primary = primarySubset(m.Introns)
		m.PrimaryAntisense = antisensePrimarySubset(m.Introns)
		for _, in := range m.Introns {
			in.Mintrons = append(in.Mintrons, m)
		}
		mintrons = append(mintrons, m)
	}
	if nextIntron != len(sorted) {
		return nil, fmt.Errorf("partitionIntrons: %d intron(s) unplaced", len(sorted)-nextIntron)
	}
	// The bins tile each intron's span exactly, so the antisense denominator
	// comes out to the unpadded intron length.
	for _, in := range sorted {
		in.AntisenseMintrons = in.Mintrons
		in.AntisenseEffectiveLength = 0
		for _, m := range in.Mintrons {
			in.AntisenseEffectiveLength += m.Length()
		}
	}
	return mintrons, nil
}

// primarySubset returns the introns with the smallest start coordinate.
// introns must already be in intronOrder.
func primarySubset(introns []*Intron) []*Intron {
	n := 1
	for n != len(introns) && introns[n].Start == introns[0].Start {
		n++
	}
	return introns[:n:n]
}

// antisensePrimarySubset returns the introns with the largest end
// coordinate, in intronOrder.
func antisensePrimarySubset(introns []*Intron) []*Intron {
	maxEnd := introns[0].End
	for _, in := range introns[1:] {
		if in.End > maxEnd {
			maxEnd = in.End
		}
	}
	var subset []*Intron
	for _, in := range introns {
		if in.End == maxEnd {
			subset = append(subset, in)
		}
	}
	return subset
}

// buildIntergenics computes, per chromosome with a known length, the
// complement of the union of transcript extents within [1, length].
func buildIntergenics(idx *Index, chromLengths map[string]PosType) error {
	for chrom, transcripts := range idx.TranscriptsByChrom {
		chromLen, ok := chromLengths[chrom]
		if !ok {
			// Annotated contig absent from the alignment header; reads can
			// never land here, so no intergenic axis is needed.
			continue
		}
		var merged [][2]PosType
		for _, tr := range transcripts { // already sorted by start
			if tr.End > chromLen {
				return fmt.Errorf("annotation.buildIntergenics: transcript %s ends at %d, beyond %s length %d", tr.ID, tr.End, chrom, chromLen)
			}
			if n := len(merged); n != 0 && tr.Start <= merged[n-1][1]+1 {
				if tr.End > merged[n-1][1] {
					merged[n-1][1] = tr.End
				}
			} else {
				merged = append(merged, [2]PosType{tr.Start, tr.End})
			}
		}
		var starts, ends []PosType
		cursor := PosType(1)
		for _, span := range merged {
			if span[0] > cursor {
				starts = append(starts, cursor)
				ends = append(ends, span[0]-1)
			}
			cursor = span[1] + 1
		}
		if cursor <= chromLen {
			starts = append(starts, cursor)
			ends = append(ends, chromLen)
		}
		extents, err := interval.NewExtents(starts, ends)
		if err != nil {
			return fmt.Errorf("annotation.buildIntergenics: %s: %v", chrom, err)
		}
		idx.IntergenicExtents[chrom] = extents
	}
	return nil
}
