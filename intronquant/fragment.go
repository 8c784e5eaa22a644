package intronquant

import (
	"fmt"

	"github.com/geoleven/CAMPAREE/interval"
	"github.com/grailbio/hts/sam"
)

// PosType is the genomic coordinate type, shared with the annotation index.
type PosType = interval.PosType

var nhTag = sam.NewTag("NH")

// auxInt extracts an integer aux value regardless of the width the encoder
// chose for it.
func auxInt(aux sam.Aux) (int64, bool) {
	switch v := aux.Value().(type) {
	case int8:
		return int64(v), true
	case uint8:
		return int64(v), true
	case int16:
		return int64(v), true
	case uint16:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint32:
		return int64(v), true
	case int:
		return int64(v), true
	}
	return 0, false
}

// block is one gapless aligned stretch of a read on the reference, 1-based
// and inclusive on both ends.
type block struct {
	start, end PosType
}

// alignedBlocks appends r's aligned reference blocks to buf and returns it.
// Deletions and reference skips split blocks; insertions and clips consume
// no reference.
func alignedBlocks(buf []block, r *sam.Record) []block {
	pos := PosType(r.Pos) // 0-based alignment start
	for _, co := range r.Cigar {
		n := PosType(co.Len())
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			buf = append(buf, block{pos + 1, pos + n})
			pos += n
		case sam.CigarDeletion, sam.CigarSkipped:
			pos += n
		}
	}
	return buf
}

// fragment is a mated pair of alignments with a resolved strand of origin.
type fragment struct {
	r1, r2 *sam.Record
	chrom  string
	strand byte // '+' or '-'
}

// fragmentAssembler mates records arriving in any order within one pass over
// the alignment stream, keyed by query name.  Records failing the
// uniquely-aligned-proper-pair filters never enter the cache.
type fragmentAssembler struct {
	forwardReadIsSense bool
	pending            map[string]*sam.Record
	nFiltered          int64
	nFragments         int64
}

func newFragmentAssembler(forwardReadIsSense bool) *fragmentAssembler {
	return &fragmentAssembler{
		forwardReadIsSense: forwardReadIsSense,
		pending:            make(map[string]*sam.Record),
	}
}

// usable applies the per-record filters: mapped, proper pair, and uniquely
// aligned (NH tag present and equal to one).
func usable(r *sam.Record) bool {
	if (r.Flags&sam.Unmapped != 0) || (r.Flags&sam.ProperPair == 0) {
		return false
	}
	aux := r.AuxFields.Get(nhTag)
	if aux == nil {
		return false
	}
	nh, ok := auxInt(aux)
	return ok && nh == 1
}

// add consumes one record.  It returns a completed fragment once both mates
// of a pair have been seen, and nil otherwise.
func (fa *fragmentAssembler) add(r *sam.Record) (*fragment, error) {
	if !usable(r) {
		fa.nFiltered++
		return nil, nil
	}
	mate, found := fa.pending[r.Name]
	if !found {
		fa.pending[r.Name] = r
		return nil, nil
	}
	delete(fa.pending, r.Name)
	if (mate.Flags&sam.Reverse != 0) == (r.Flags&sam.Reverse != 0) {
		return nil, fmt.Errorf("intronquant: mates of pair %s align to the same strand", r.Name)
	}
	strand, err := fragmentStrand(r, fa.forwardReadIsSense)
	if err != nil {
		return nil, err
	}
	fa.nFragments++
	return &fragment{r1: mate, r2: r, chrom: r.Ref.Name(), strand: strand}, nil
}

// pendingReads returns the number of cached reads still awaiting a mate.
func (fa *fragmentAssembler) pendingReads() int { return len(fa.pending) }

// fragmentStrand derives the fragment's strand of origin from one mate's
// orientation.  read1Reverse is true when read 1 aligned to the reverse
// strand, regardless of which mate r is.
func fragmentStrand(r *sam.Record, forwardReadIsSense bool) (byte, error) {
	reverse := r.Flags&sam.Reverse != 0
	read1 := r.Flags&sam.Read1 != 0
	read2 := r.Flags&sam.Read2 != 0
	if read1 == read2 {
		return 0, fmt.Errorf("intronquant: read %s is not marked as exactly one of read1/read2", r.Name)
	}
	read1Reverse := (reverse && read1) || (!reverse && read2)
	if read1Reverse == forwardReadIsSense {
		return '-', nil
	}
	return '+', nil
}
