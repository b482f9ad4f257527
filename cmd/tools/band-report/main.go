// band-report renders per-band error plots from a rangesim decision log:
// a scatter of absolute percentage error against true distance, with the
// per-band mean overlaid. Output is a PNG alongside the database.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/rangefinder/internal/depth"
	storage "github.com/banshee-data/rangefinder/internal/depth/storage/sqlite"
)

var (
	dbPath    = flag.String("db", "rangesim.db", "Decision log SQLite path")
	sessionID = flag.String("session", "", "Session ID to plot (required)")
	outPath   = flag.String("out", "band_error.png", "Output PNG path")
)

func main() {
	flag.Parse()
	if *sessionID == "" {
		fmt.Fprintln(os.Stderr, "usage: band-report -db FILE -session ID [-out FILE]")
		os.Exit(2)
	}

	store, err := storage.Open(*dbPath)
	if err != nil {
		log.Fatalf("open decision log: %v", err)
	}
	defer store.Close()

	recs, err := store.Decisions(*sessionID)
	if err != nil {
		log.Fatalf("load decisions: %v", err)
	}

	pts := make(plotter.XYs, 0, len(recs))
	for _, rec := range recs {
		if rec.GroundTruthM <= 0 || rec.PrimaryKind == depth.SourceNone || rec.PrimaryKind == "" {
			continue
		}
		absPct := math.Abs(rec.PrimaryDepth-rec.GroundTruthM) / rec.GroundTruthM * 100
		pts = append(pts, plotter.XY{X: rec.GroundTruthM, Y: absPct})
	}
	if len(pts) == 0 {
		log.Fatalf("session %s has no frames with ground truth", *sessionID)
	}

	p := plot.New()
	p.Title.Text = "Absolute percentage error vs distance"
	p.X.Label.Text = "true distance (m)"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Y.Label.Text = "abs error (%)"

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		log.Fatalf("build scatter: %v", err)
	}
	scatter.GlyphStyle.Radius = vg.Points(1.5)
	p.Add(scatter)

	stats, err := store.SessionBandStats(*sessionID)
	if err != nil {
		log.Fatalf("band stats: %v", err)
	}
	for _, st := range stats {
		log.Printf("band %-10s frames=%5d with_estimate=%5d MAPE=%.1f%%",
			st.Band, st.Frames, st.WithEstimate, st.MeanAbsPct*100)
	}

	if err := p.Save(8*vg.Inch, 5*vg.Inch, *outPath); err != nil {
		log.Fatalf("save plot: %v", err)
	}
	log.Printf("plot written to %s (%d points)", *outPath, len(pts))
}
