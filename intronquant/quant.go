// Package intronquant quantifies intronic and intergenic expression from a
// paired-end RNA alignment.  Uniquely aligned proper pairs are mated into
// fragments, each fragment's aligned blocks are resolved against the
// annotation index's mintron and intergenic bins, per-intron raw counts are
// normalized to fragments per kilobase of effective length, double-counted
// expression between overlapping introns is corrected, and three
// tab-delimited reports are written: sense intron rates, antisense intron
// rates, and intergenic rates.
package intronquant

import (
	"context"
	"runtime"

	"github.com/geoleven/CAMPAREE/annotation"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	gbam "github.com/grailbio/bio/encoding/bam"
	"github.com/grailbio/bio/encoding/bamprovider"
	"github.com/grailbio/hts/sam"
)

// Opts provides options for Quantify.
type Opts struct {
	// BAMIndexPath is the path of the BAM index.  "" means the alignment
	// path plus ".bai".
	BAMIndexPath string
	// FlankSize is the padding, in bases, added to a terminal intron's
	// effective length for each transcript boundary it abuts.
	FlankSize int
	// ForwardReadIsSense selects the library strand convention: true when
	// read 1 carries the transcript's sense sequence.
	ForwardReadIsSense bool
	// Clamp selects the double-count correction bound.
	Clamp ClampMode
	// Parallelism caps the number of concurrent aggregation jobs.  Zero
	// means one job per CPU.
	Parallelism int
}

// DefaultOpts is the baseline configuration of Quantify.  Strand-specificity
// is assumed, with read 2 carrying the sense sequence unless
// ForwardReadIsSense is set.
var DefaultOpts = Opts{
	FlankSize:          500,
	ForwardReadIsSense: false,
	Clamp:              ClampZeroCeiling,
}

// Quantify runs the full pipeline: it reads the alignment at bamPath and the
// geneinfo annotation at geneinfoPath and writes the three report files
// under outputDir.
func Quantify(ctx context.Context, bamPath, geneinfoPath, outputDir string, opts Opts) (err error) {
	provider := bamprovider.NewProvider(bamPath, bamprovider.ProviderOpts{Index: opts.BAMIndexPath})
	defer func() {
		if e := provider.Close(); e != nil && err == nil {
			err = e
		}
	}()
	return quantify(ctx, provider, geneinfoPath, outputDir, opts)
}

// quantify runs the pipeline on an already-open provider.
func quantify(ctx context.Context, provider bamprovider.Provider, geneinfoPath, outputDir string, opts Opts) error {
	header, err := provider.GetHeader()
	if err != nil {
		return err
	}
	chromLengths := make(map[string]annotation.PosType, len(header.Refs()))
	for _, ref := range header.Refs() {
		chromLengths[ref.Name()] = annotation.PosType(ref.Len())
	}
	idx, err := annotation.LoadIndex(ctx, geneinfoPath, annotation.Opts{
		FlankSize:    annotation.PosType(opts.FlankSize),
		ChromLengths: chromLengths,
	})
	if err != nil {
		return err
	}
	ct, err := accumulateCounts(provider, header, idx, opts)
	if err != nil {
		return err
	}
	ct.normalize()
	correctDoubleCounts(idx, ct, opts.Clamp)

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	transcripts := reportTranscripts(idx)
	summaries, err := aggregate(transcripts, ct, parallelism)
	if err != nil {
		return err
	}
	if err := writeIntronReport(ctx, file.Join(outputDir, SenseReportName), transcripts, summaries,
		ct.normSense, func(s *transcriptSummary) float64 { return s.sense }); err != nil {
		return err
	}
	if err := writeIntronReport(ctx, file.Join(outputDir, AntisenseReportName), transcripts, summaries,
		ct.normAntisense, func(s *transcriptSummary) float64 { return s.antisense }); err != nil {
		return err
	}
	return writeIntergenicReport(ctx, file.Join(outputDir, IntergenicReportName), idx, ct)
}

// accumulateCounts makes the single ordered pass over the alignment stream,
// mating reads into fragments and accumulating raw counts.
func accumulateCounts(provider bamprovider.Provider, header *sam.Header, idx *annotation.Index, opts Opts) (ct *countTables, err error) {
	ct = newCountTables(idx)
	assembler := newFragmentAssembler(opts.ForwardReadIsSense)
	scratch := newFragmentScratch()
	iter := provider.NewIterator(gbam.UniversalShard(header))
	defer func() {
		if e := iter.Close(); e != nil && err == nil {
			err = e
		}
	}()
	skipped := make(map[string]bool)
	for iter.Scan() {
		var frag *fragment
		if frag, err = assembler.add(iter.Record()); err != nil {
			return
		}
		if frag == nil {
			continue
		}
		if !idx.HasChrom(frag.chrom) {
			if !skipped[frag.chrom] {
				skipped[frag.chrom] = true
				log.Printf("intronquant: no annotation for chromosome %s, skipping its reads", frag.chrom)
			}
			continue
		}
		ct.countFragment(idx, frag, scratch)
	}
	if err = iter.Err(); err != nil {
		return
	}
	// Reads whose mate never arrived contribute nothing.
	log.Debug.Printf("intronquant: %d fragment(s) counted, %d record(s) filtered, %d read(s) left unmated",
		assembler.nFragments, assembler.nFiltered, assembler.pendingReads())
	return ct, nil
}
