// Package annotation loads CAMPAREE-style geneinfo files and builds the
// merged-interval index consumed by the intron quantifier: per-transcript
// introns, per-(chromosome, strand) "mintron" bins with primary-intron
// ownership, and per-chromosome intergenic regions.
package annotation

import (
	"github.com/geoleven/CAMPAREE/interval"
)

// PosType is the genomic coordinate type.  All coordinates in this package
// are 1-based and inclusive on both sides.
type PosType = interval.PosType

// StrandKey identifies one chromosome+strand coordinate axis.
type StrandKey struct {
	Chrom  string
	Strand byte // '+' or '-'
}

// Opposite returns the key for the other strand of the same chromosome.
func (k StrandKey) Opposite() StrandKey {
	if k.Strand == '+' {
		return StrandKey{k.Chrom, '-'}
	}
	return StrandKey{k.Chrom, '+'}
}

// Gene is the minimal gene record carried through to the reports.
type Gene struct {
	ID     string
	Symbol string
}

// Transcript is one annotated transcript.  Introns are kept in plus-strand
// genomic order regardless of transcript strand; the geneinfo format already
// lists exons that way.
type Transcript struct {
	ID     string
	Gene   *Gene
	Chrom  string
	Strand byte
	Start  PosType
	End    PosType
	// Introns holds the gaps between consecutive exons.  Transcripts with
	// fewer than two exons have none.
	Introns []*Intron
}

// Intron is one exon gap of one transcript.  The same genomic span appearing
// in two transcripts yields two distinct Intron values; the mintron layer is
// what ties them together.
type Intron struct {
	Transcript *Transcript
	Start      PosType
	End        PosType
	// EffectiveLength is the intron length in bases, plus the configured
	// flank padding for each transcript boundary the intron abuts (so a
	// single-intron transcript gets the padding twice).  Used as the sense
	// FPK denominator.
	EffectiveLength PosType
	// AntisenseEffectiveLength is the summed length of AntisenseMintrons,
	// used as the antisense FPK denominator.  The bins tile the intron's
	// span exactly, so this is the unpadded intron length.
	AntisenseEffectiveLength PosType
	// Mintrons are the partition bins this intron covers, in genomic
	// order.
	Mintrons []*Mintron
	// AntisenseMintrons are the bins this intron receives antisense counts
	// through.  They are the same bins as Mintrons; the two lists exist so
	// the sense and antisense bookkeeping stay independent.
	AntisenseMintrons []*Mintron
}

// Length returns the intron's span in bases, without flank padding.
func (in *Intron) Length() PosType {
	return in.End - in.Start + 1
}

// Mintron is one bin of the boundary partition of the intron union on one
// chromosome+strand: a maximal segment over which the set of covering introns
// is constant.  Bins within one axis never overlap.
type Mintron struct {
	Start PosType
	End   PosType
	// Introns is the full covering set, ordered by (start, transcript ID).
	Introns []*Intron
	// Primary is the subset of Introns designated to receive raw counts
	// from same-strand fragments landing in this bin: the covering
	// intron(s) with the smallest start coordinate.
	Primary []*Intron
	// PrimaryAntisense is the subset designated to receive raw counts from
	// opposite-strand fragments.  Antisense reads run 3'->5' over the
	// annotation, so the designation mirrors: the covering intron(s) with
	// the largest end coordinate.
	PrimaryAntisense []*Intron
}

// Length returns the bin's span in bases.
func (m *Mintron) Length() PosType {
	return m.End - m.Start + 1
}

// Index is the full annotation index: immutable once built.
type Index struct {
	Genes       map[string]*Gene
	Transcripts map[string]*Transcript
	// TranscriptsByChrom lists each chromosome's transcripts sorted by
	// (start, transcript ID).  The double-count corrector depends on this
	// order; see intronquant.
	TranscriptsByChrom map[string][]*Transcript
	// Mintrons maps each chromosome+strand axis to its partition bins in
	// genomic order; MintronExtents holds the matching coordinate arrays.
	Mintrons       map[StrandKey][]*Mintron
	MintronExtents map[StrandKey]interval.Extents
	// IntergenicExtents maps each chromosome to the complement of its
	// transcript extents within [1, chromosome length].  Only chromosomes
	// with a known length (i.e. present in the alignment header) appear.
	IntergenicExtents map[string]interval.Extents
}

// HasChrom reports whether the index carries annotation for chrom.  Reads
// from other chromosomes cannot be assigned and are skipped by the caller.
func (idx *Index) HasChrom(chrom string) bool {
	_, ok := idx.IntergenicExtents[chrom]
	return ok
}
