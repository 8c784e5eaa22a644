package main

/*
intron-quant quantifies intronic and intergenic expression from a paired-end
RNA alignment.  It writes three tab-delimited reports under the output
directory: intron_quant.txt (sense), intron_quant_antisense.txt, and
intergenic_quant.txt.
*/

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/geoleven/CAMPAREE/intronquant"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
)

var (
	bamIndexPath = flag.String("index", intronquant.DefaultOpts.BAMIndexPath, "Input BAM index path. Defaults to bampath + .bai")
	flankSize    = flag.Int("flank-size", intronquant.DefaultOpts.FlankSize, "Bases of padding added to a terminal intron's effective length per transcript boundary it abuts")
	forwardSense = flag.Bool("forward-read-is-sense", intronquant.DefaultOpts.ForwardReadIsSense, "Library strand convention: read 1 carries the transcript's sense sequence")
	floorClamp   = flag.Bool("clamp-floor", false, "Bound double-count corrections at zero from below (max(v-c, 0)) instead of the legacy cap at zero from above (min(v-c, 0))")
	parallelism  = flag.Int("parallelism", 0, "Maximum number of simultaneous aggregation jobs; 0 = runtime.NumCPU()")
	outputDir    = flag.String("out", ".", "Output directory for the three report files")
)

func intronQuantUsage() {
	fmt.Printf("Usage: %s [OPTIONS] bampath geneinfopath\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = intronQuantUsage
	shutdown := grail.Init()
	defer shutdown()

	allArgs := flag.Args()
	nPositionalArgs := flag.NArg()
	positionalArgs := allArgs[len(allArgs)-nPositionalArgs:]
	if nPositionalArgs != 2 {
		if nPositionalArgs < 2 {
			log.Fatalf("Missing positional arguments (bampath and geneinfopath required); please check flag syntax: '%s'", strings.Join(positionalArgs, " "))
		} else {
			log.Fatalf("Too many positional arguments (only bampath and geneinfopath expected); please check flag syntax: '%s'", strings.Join(positionalArgs, " "))
		}
	}
	clamp := intronquant.ClampZeroCeiling
	if *floorClamp {
		clamp = intronquant.ClampZeroFloor
	}
	opts := intronquant.Opts{
		BAMIndexPath:       *bamIndexPath,
		FlankSize:          *flankSize,
		ForwardReadIsSense: *forwardSense,
		Clamp:              clamp,
		Parallelism:        *parallelism,
	}
	ctx := vcontext.Background()
	if err := intronquant.Quantify(ctx, positionalArgs[0], positionalArgs[1], *outputDir, opts); err != nil {
		log.Fatalf("intron-quant: %v", err)
	}
}
