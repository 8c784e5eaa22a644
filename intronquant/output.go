package intronquant

import (
	"context"
	"sort"
	"strconv"

	"github.com/geoleven/CAMPAREE/annotation"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// Report file names, relative to the output directory.
const (
	SenseReportName      = "intron_quant.txt"
	AntisenseReportName  = "intron_quant_antisense.txt"
	IntergenicReportName = "intergenic_quant.txt"
)

// writeIntronReport writes one intron table (sense or antisense, selected by
// the norm map and the per-transcript summary accessor).
func writeIntronReport(ctx context.Context, path string, transcripts []*annotation.Transcript,
	summaries []transcriptSummary, norm map[*annotation.Intron]float64,
	summaryRate func(*transcriptSummary) float64) (err error) {
	var out file.File
	if out, err = file.Create(ctx, path); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewWriter(out.Writer(ctx))
	w.WriteString("#gene_id\ttranscript_id\tchr\tstrand\ttranscript_intron_reads_FPK\tintron_reads_FPK")
	if err = w.EndLine(); err != nil {
		return
	}
	var rates []byte
	for i, tr := range transcripts {
		w.WriteString(tr.Gene.ID)
		w.WriteString(tr.ID)
		w.WriteString(tr.Chrom)
		w.WriteByte(tr.Strand)
		w.WriteFloat64(summaryRate(&summaries[i]), 'g', -1)
		rates = rates[:0]
		for j, in := range tr.Introns {
			if j != 0 {
				rates = append(rates, ',')
			}
			rates = strconv.AppendFloat(rates, norm[in], 'g', -1, 64)
		}
		w.WriteString(string(rates))
		if err = w.EndLine(); err != nil {
			return
		}
	}
	return w.Flush()
}

// writeIntergenicReport writes the per-bin intergenic table, chromosomes in
// sorted order, bins in genomic order.  Intergenic values are raw fragment
// counts: expression here tends to come in bits and pieces, so dividing by
// the full bin length would not make the numbers more comparable.
func writeIntergenicReport(ctx context.Context, path string, idx *annotation.Index, ct *countTables) (err error) {
	var out file.File
	if out, err = file.Create(ctx, path); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewWriter(out.Writer(ctx))
	w.WriteString("#chromosome\tintergenic_region_number\tstart\tend\treads_FPK")
	if err = w.EndLine(); err != nil {
		return
	}
	chroms := make([]string, 0, len(idx.IntergenicExtents))
	for chrom := range idx.IntergenicExtents {
		chroms = append(chroms, chrom)
	}
	sort.Strings(chroms)
	for _, chrom := range chroms {
		extents := idx.IntergenicExtents[chrom]
		counts := ct.intergenic[chrom]
		for i := 0; i != extents.N(); i++ {
			start, end := extents.Interval(i)
			w.WriteString(chrom)
			w.WriteInt64(int64(i))
			w.WriteUint32(uint32(start))
			w.WriteUint32(uint32(end))
			w.WriteInt64(int64(counts[i]))
			if err = w.EndLine(); err != nil {
				return
			}
		}
	}
	return w.Flush()
}
