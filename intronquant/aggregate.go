package intronquant

import (
	"sort"

	"github.com/geoleven/CAMPAREE/annotation"
	"github.com/grailbio/base/traverse"
)

// transcriptSummary is the length-weighted average rate over a transcript's
// internal introns, for both strand perspectives.
type transcriptSummary struct {
	sense     float64
	antisense float64
}

// reportTranscripts returns every transcript in the index ordered by
// (gene ID, transcript ID), the order all reports use.
func reportTranscripts(idx *annotation.Index) []*annotation.Transcript {
	transcripts := make([]*annotation.Transcript, 0, len(idx.Transcripts))
	for _, tr := range idx.Transcripts {
		transcripts = append(transcripts, tr)
	}
	sort.Slice(transcripts, func(i, j int) bool {
		if transcripts[i].Gene.ID != transcripts[j].Gene.ID {
			return transcripts[i].Gene.ID < transcripts[j].Gene.ID
		}
		return transcripts[i].ID < transcripts[j].ID
	})
	return transcripts
}

// internalIntrons drops a transcript's first and last introns.  Terminal
// introns carry flank padding in their effective lengths and would bias the
// transcript-level average.
func internalIntrons(tr *annotation.Transcript) []*annotation.Intron {
	if len(tr.Introns) <= 2 {
		return nil
	}
	return tr.Introns[1 : len(tr.Introns)-1]
}

// summarize computes one transcript's summary: the effective-length-weighted
// mean of its internal introns' corrected rates.  Transcripts with no
// internal introns report zero.
func summarize(tr *annotation.Transcript, ct *countTables) transcriptSummary {
	var senseSum, antisenseSum, lengthSum float64
	for _, in := range internalIntrons(tr) {
		w := float64(in.EffectiveLength)
		senseSum += ct.normSense[in] * w
		antisenseSum += ct.normAntisense[in] * w
		lengthSum += w
	}
	if lengthSum == 0 {
		return transcriptSummary{}
	}
	return transcriptSummary{
		sense:     senseSum / lengthSum,
		antisense: antisenseSum / lengthSum,
	}
}

// aggregate summarizes all transcripts.  Each job reads the (by now frozen)
// normalized tables and writes its own slice elements, so jobs never share
// mutable state.
func aggregate(transcripts []*annotation.Transcript, ct *countTables, parallelism int) ([]transcriptSummary, error) {
	if parallelism < 1 {
		parallelism = 1
	}
	summaries := make([]transcriptSummary, len(transcripts))
	err := traverse.Each(parallelism, func(job int) error {
		for i := job; i < len(transcripts); i += parallelism {
			summaries[i] = summarize(transcripts[i], ct)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}
