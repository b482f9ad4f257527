// gt-manifest generates a synthetic ground-truth manifest for validation
// runs that do not have the real datasets downloaded. The manifest schema
// matches the dataset preparation tooling, so rangesim and offline analysis
// consume either interchangeably.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/rangefinder/internal/groundtruth"
)

var (
	output = flag.String("output", "", "Output directory for manifest.json (required)")
	seed   = flag.Int64("seed", 42, "Random seed for reproducibility")
	scale  = flag.Float64("scale", 1.0, "Band quota scale factor")
)

func main() {
	flag.Parse()
	if *output == "" {
		fmt.Fprintln(os.Stderr, "usage: gt-manifest -output DIR [-seed N] [-scale F]")
		os.Exit(2)
	}

	targets := groundtruth.DefaultBandTargets()
	if *scale != 1.0 {
		for band, n := range targets {
			scaled := int(float64(n) * *scale)
			if scaled < 1 {
				scaled = 1
			}
			targets[band] = scaled
		}
	}

	if err := os.MkdirAll(*output, 0o755); err != nil {
		log.Fatalf("create output dir: %v", err)
	}

	manifest := groundtruth.GenerateSyntheticManifest(groundtruth.SyntheticConfig{
		Seed:        *seed,
		BandTargets: targets,
	}, time.Now())

	path := filepath.Join(*output, "manifest.json")
	if err := manifest.Write(path); err != nil {
		log.Fatalf("write manifest: %v", err)
	}

	fmt.Printf("Manifest written: %s\n", path)
	fmt.Printf("Total samples: %d\n", manifest.TotalSamples)
	for _, b := range groundtruth.Bands {
		s := manifest.DistanceBands[b.Name]
		fmt.Printf("  %-10s (%6.1f-%6.1fm): %5d samples\n", b.Name, s.MinM, s.MaxM, s.Count)
	}
}
