package intronquant

import (
	"fmt"
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/expect"
)

func newAux(name string, val interface{}) sam.Aux {
	aux, err := sam.NewAux(sam.NewTag(name), val)
	if err != nil {
		panic(fmt.Sprintf("error creating %s %v tag: %v", name, val, err))
	}
	return aux
}

func newRecord(name string, ref *sam.Reference, pos int, flags sam.Flags, cigar sam.Cigar, auxs ...sam.Aux) *sam.Record {
	r := sam.GetFromFreePool()
	r.Name = name
	r.Ref = ref
	r.Pos = pos
	r.MateRef = ref
	r.MatePos = pos
	r.Flags = flags
	r.Cigar = cigar
	r.AuxFields = append(r.AuxFields, auxs...)
	return r
}

func cigarOps(ops ...sam.CigarOp) sam.Cigar { return sam.Cigar(ops) }

func testRef(t *testing.T, name string, length int) *sam.Reference {
	ref, err := sam.NewReference(name, "", "", length, nil, nil)
	expect.NoError(t, err)
	return ref
}

func TestAlignedBlocks(t *testing.T) {
	ref := testRef(t, "1", 10000)
	tests := []struct {
		pos    int
		cigar  sam.Cigar
		blocks []block
	}{
		// plain match
		{149, cigarOps(sam.NewCigarOp(sam.CigarMatch, 11)), []block{{150, 160}}},
		// reference skip splits blocks
		{99, cigarOps(
			sam.NewCigarOp(sam.CigarMatch, 5),
			sam.NewCigarOp(sam.CigarSkipped, 3),
			sam.NewCigarOp(sam.CigarMatch, 5)),
			[]block{{100, 104}, {108, 112}}},
		// soft clips consume no reference, deletions split
		{9, cigarOps(
			sam.NewCigarOp(sam.CigarSoftClipped, 2),
			sam.NewCigarOp(sam.CigarMatch, 5),
			sam.NewCigarOp(sam.CigarDeletion, 2),
			sam.NewCigarOp(sam.CigarMatch, 3),
			sam.NewCigarOp(sam.CigarSoftClipped, 4)),
			[]block{{10, 14}, {17, 19}}},
		// insertions consume no reference but still split
		{0, cigarOps(
			sam.NewCigarOp(sam.CigarMatch, 3),
			sam.NewCigarOp(sam.CigarInsertion, 2),
			sam.NewCigarOp(sam.CigarMatch, 3)),
			[]block{{1, 3}, {4, 6}}},
		// = and X count as aligned
		{0, cigarOps(
			sam.NewCigarOp(sam.CigarEqual, 4),
			sam.NewCigarOp(sam.CigarMismatch, 2)),
			[]block{{1, 4}, {5, 6}}},
	}
	for _, tt := range tests {
		r := newRecord("r", ref, tt.pos, sam.Paired, tt.cigar)
		expect.EQ(t, alignedBlocks(nil, r), tt.blocks, "pos=%d cigar=%v", tt.pos, tt.cigar)
	}
}

func TestFragmentStrand(t *testing.T) {
	ref := testRef(t, "1", 10000)
	tests := []struct {
		flags              sam.Flags
		forwardReadIsSense bool
		strand             byte
	}{
		{sam.Paired | sam.Read1, true, '+'},
		{sam.Paired | sam.Read1, false, '-'},
		{sam.Paired | sam.Read1 | sam.Reverse, true, '-'},
		{sam.Paired | sam.Read1 | sam.Reverse, false, '+'},
		{sam.Paired | sam.Read2, true, '-'},
		{sam.Paired | sam.Read2, false, '+'},
		{sam.Paired | sam.Read2 | sam.Reverse, true, '+'},
		{sam.Paired | sam.Read2 | sam.Reverse, false, '-'},
	}
	for _, tt := range tests {
		r := newRecord("r", ref, 100, tt.flags, cigarOps(sam.NewCigarOp(sam.CigarMatch, 10)))
		strand, err := fragmentStrand(r, tt.forwardReadIsSense)
		expect.NoError(t, err)
		expect.EQ(t, strand, tt.strand, "flags=%v forward=%v", tt.flags, tt.forwardReadIsSense)
	}
	// A record marked as neither or both of read1/read2 cannot be resolved.
	r := newRecord("r", ref, 100, sam.Paired, cigarOps(sam.NewCigarOp(sam.CigarMatch, 10)))
	_, err := fragmentStrand(r, true)
	expect.NotNil(t, err)
}

func TestAssemblerFilters(t *testing.T) {
	ref := testRef(t, "1", 10000)
	cigar := cigarOps(sam.NewCigarOp(sam.CigarMatch, 10))
	nh1 := newAux("NH", 1)
	tests := []struct {
		name string
		rec  *sam.Record
	}{
		{"unmapped", newRecord("a", ref, 100, sam.Paired|sam.ProperPair|sam.Read1|sam.Unmapped, cigar, nh1)},
		{"not proper pair", newRecord("b", ref, 100, sam.Paired|sam.Read1, cigar, nh1)},
		{"multimapper", newRecord("c", ref, 100, sam.Paired|sam.ProperPair|sam.Read1, cigar, newAux("NH", 4))},
		{"no NH tag", newRecord("d", ref, 100, sam.Paired|sam.ProperPair|sam.Read1, cigar)},
	}
	fa := newFragmentAssembler(true)
	for _, tt := range tests {
		frag, err := fa.add(tt.rec)
		expect.NoError(t, err, tt.name)
		expect.Nil(t, frag, tt.name)
	}
	// Filtered records must not linger in the mate cache.
	expect.EQ(t, fa.pendingReads(), 0)
	expect.EQ(t, fa.nFiltered, int64(len(tests)))
}

func TestAssemblerPairing(t *testing.T) {
	ref := testRef(t, "1", 10000)
	cigar := cigarOps(sam.NewCigarOp(sam.CigarMatch, 10))
	nh1 := newAux("NH", 1)
	fa := newFragmentAssembler(true)

	r1 := newRecord("pair", ref, 100, sam.Paired|sam.ProperPair|sam.Read1, cigar, nh1)
	r2 := newRecord("pair", ref, 180, sam.Paired|sam.ProperPair|sam.Read2|sam.Reverse, cigar, nh1)
	frag, err := fa.add(r1)
	expect.NoError(t, err)
	expect.Nil(t, frag)
	expect.EQ(t, fa.pendingReads(), 1)
	frag, err = fa.add(r2)
	expect.NoError(t, err)
	expect.NotNil(t, frag)
	expect.EQ(t, fa.pendingReads(), 0)
	expect.EQ(t, frag.chrom, "1")
	expect.EQ(t, frag.strand, byte('+'))
	expect.True(t, frag.r1 == r1)
	expect.True(t, frag.r2 == r2)

	// Mates reporting the same strand orientation are a fatal input problem.
	s1 := newRecord("bad", ref, 100, sam.Paired|sam.ProperPair|sam.Read1, cigar, nh1)
	s2 := newRecord("bad", ref, 180, sam.Paired|sam.ProperPair|sam.Read2, cigar, nh1)
	_, err = fa.add(s1)
	expect.NoError(t, err)
	_, err = fa.add(s2)
	expect.NotNil(t, err)
}
