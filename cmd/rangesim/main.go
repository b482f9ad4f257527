// rangesim runs the depth-fusion pipeline over a large synthetic
// ground-truth population and reports per-band accuracy and decision mix.
// Every frame's decision is logged to SQLite for later analysis; an
// optional go-echarts HTML report summarises the run.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/rangefinder/internal/config"
	"github.com/banshee-data/rangefinder/internal/depth"
	"github.com/banshee-data/rangefinder/internal/depth/calib"
	storage "github.com/banshee-data/rangefinder/internal/depth/storage/sqlite"
	"github.com/banshee-data/rangefinder/internal/groundtruth"
	"github.com/banshee-data/rangefinder/internal/terrain"
	"github.com/banshee-data/rangefinder/internal/version"
)

var (
	frames     = flag.Int("frames", 5000, "Number of synthetic frames to run")
	seed       = flag.Int64("seed", 42, "Random seed")
	dbPath     = flag.String("db", "rangesim.db", "Decision log SQLite path")
	reportPath = flag.String("report", "", "Optional HTML report output path")
	tuningPath = flag.String("tuning", "", "Optional tuning JSON overriding defaults")
	label      = flag.String("label", "rangesim", "Session label")
	occluders  = flag.Float64("occluders", 0.15, "Fraction of outdoor frames given a near occluder")
)

const (
	deviceHeightMeters = 1.7
	roiSampleCount     = 256
	frameInterval      = 33 * time.Millisecond
)

func main() {
	flag.Parse()

	cfg := depth.DefaultFusionConfig()
	if *tuningPath != "" {
		tc, err := config.LoadTuningConfig(*tuningPath)
		if err != nil {
			log.Fatalf("load tuning: %v", err)
		}
		tc.Apply(&cfg)
	}

	store, err := storage.Open(*dbPath)
	if err != nil {
		log.Fatalf("open decision log: %v", err)
	}
	defer store.Close()

	cfgJSON, _ := json.Marshal(cfg.Staleness)
	sessionID, err := store.CreateSession(*label, string(cfgJSON))
	if err != nil {
		log.Fatalf("create session: %v", err)
	}
	log.Printf("rangesim %s (%s) session %s: %d frames, seed %d",
		version.Version, version.GitSHA, sessionID, *frames, *seed)

	manifest := groundtruth.GenerateSyntheticManifest(groundtruth.SyntheticConfig{Seed: *seed}, time.Now())
	rng := rand.New(rand.NewSource(*seed + 1))

	sim := newSimulator(cfg, rng)
	stats := map[string]*bandAccumulator{}
	decisionMix := map[depth.SourceKind]int{}

	n := *frames
	if n > len(manifest.Samples) {
		n = len(manifest.Samples)
	}
	for i := 0; i < n; i++ {
		sample := manifest.Samples[i]
		rec := sim.runFrame(sample, int64(i), *occluders)
		rec.SessionID = sessionID
		if err := store.InsertDecision(rec); err != nil {
			log.Fatalf("insert decision: %v", err)
		}

		decisionMix[rec.PrimaryKind]++
		if rec.GroundTruthM > 0 && rec.PrimaryKind != depth.SourceNone {
			acc := stats[rec.DistanceBand]
			if acc == nil {
				acc = &bandAccumulator{}
				stats[rec.DistanceBand] = acc
			}
			acc.add(math.Abs(rec.PrimaryDepth-rec.GroundTruthM) / rec.GroundTruthM)
		}
	}

	fmt.Printf("\nPer-band accuracy (%d frames):\n", n)
	for _, b := range groundtruth.Bands {
		if acc, ok := stats[b.Name]; ok {
			fmt.Printf("  %-10s (%6.1f-%6.1fm): n=%5d  MAPE=%5.1f%%\n",
				b.Name, b.MinMeters, b.MaxMeters, acc.n, acc.mean()*100)
		}
	}
	fmt.Printf("\nDecision mix:\n")
	for kind, count := range decisionMix {
		fmt.Printf("  %-14s %6d (%.1f%%)\n", kind, count, 100*float64(count)/float64(n))
	}

	if *reportPath != "" {
		if err := writeReport(*reportPath, sessionID, stats, decisionMix); err != nil {
			log.Fatalf("write report: %v", err)
		}
		log.Printf("report written to %s", *reportPath)
	}
}

// simulator synthesises per-frame sensor candidates from a ground-truth
// sample and steps the real selection pipeline over them.
type simulator struct {
	cfg        depth.FusionConfig
	rng        *rand.Rand
	board      *depth.CandidateBoard
	motion     *depth.MotionPredictor
	selector   *depth.SemanticSelector
	calibrator *calib.Calibrator
	caster     *terrain.RayCaster
	clock      time.Time
}

func newSimulator(cfg depth.FusionConfig, rng *rand.Rand) *simulator {
	board := depth.NewCandidateBoard(cfg.Staleness)
	motion := depth.NewMotionPredictor(cfg.Motion)
	return &simulator{
		cfg:        cfg,
		rng:        rng,
		board:      board,
		motion:     motion,
		selector:   depth.NewSemanticSelector(cfg, board, motion),
		calibrator: calib.New(calib.DefaultConfig()),
		caster:     terrain.NewRayCaster(terrain.DefaultRayCasterConfig(), terrain.FlatProvider{ElevationMeters: 0}),
		clock:      time.Unix(1_700_000_000, 0),
	}
}

func (s *simulator) runFrame(sample groundtruth.Sample, frameIdx int64, occluderFrac float64) storage.DecisionRecord {
	s.clock = s.clock.Add(frameInterval)
	now := s.clock
	truth := sample.GroundTruthCenterM
	outdoor := sample.SceneType == "outdoor"

	priority := depth.PriorityNear
	occluded := false
	occluderDepth := 0.0
	if outdoor && truth > 100 && s.rng.Float64() < occluderFrac {
		occluded = true
		occluderDepth = 2.0 + s.rng.Float64()*2.0
		priority = depth.PriorityFar
	}

	// ROI depth samples: a spread around the true depth, plus a near
	// cluster when an occluder sits in front of the aim point.
	roi := s.roiSamples(sample, truth, occluded, occluderDepth)

	// Near-range sensor.
	if sample.LiDARCenterM != nil {
		s.board.Publish(depth.DepthCandidate{
			Source:      depth.SourceLiDAR,
			DepthMeters: *sample.LiDARCenterM,
			Confidence:  0.95,
			Timestamp:   now,
		})
	} else if occluded {
		reading := occluderDepth * (1 + s.rng.NormFloat64()*groundtruth.LiDARNoiseFraction(occluderDepth))
		s.board.Publish(depth.DepthCandidate{
			Source:      depth.SourceLiDAR,
			DepthMeters: reading,
			Confidence:  0.95,
			Timestamp:   now,
		})
	} else {
		s.board.Clear(depth.SourceLiDAR)
	}

	// Terrain ray-cast: place the device on flat terrain at the altitude
	// that puts the analytic intersection at the true distance.
	s.board.Clear(depth.SourceDEM)
	if outdoor && truth > 40 {
		pitch := math.Asin(deviceHeightMeters * 20 / truth) // elevated vantage
		origin := terrain.Origin{Lat: 46.5, Lon: 7.5, AltitudeMeters: deviceHeightMeters * 20}
		if hit, ok := s.caster.Intersect(origin, pitch, s.rng.Float64()*2*math.Pi, 2500); ok {
			conf := terrain.HitConfidence(terrain.HitQuality{
				HorizontalAccuracyMeters: 5,
				HeadingAccuracyRad:       0.01,
				VerticalAccuracyMeters:   8,
			}, hit.DistanceMeters)
			s.board.Publish(depth.DepthCandidate{
				Source:      depth.SourceDEM,
				DepthMeters: hit.DistanceMeters,
				Confidence:  conf,
				Timestamp:   now,
			})
		}
	}

	// Neural inverse depth: true mapping n = 1/d with multiplicative noise;
	// calibrates itself against the sensor whenever both overlap.
	rawInverse := (1.0 / truth) * (1 + s.rng.NormFloat64()*0.05)
	if occluded {
		rawInverse = (1.0 / occluderDepth) * (1 + s.rng.NormFloat64()*0.05)
	}
	if sample.LiDARCenterM != nil {
		s.calibrator.AddOverlapSample(rawInverse, *sample.LiDARCenterM, 0.95, now)
	}
	if cand, ok := s.calibrator.Candidate(rawInverse, now); ok {
		s.board.Publish(cand)
	} else {
		s.board.Clear(depth.SourceNeural)
	}

	// Ground-plane geometry for level outdoor scenes.
	s.board.Clear(depth.SourceGeometric)
	if outdoor {
		pitch := math.Atan2(deviceHeightMeters, truth)
		if cand, ok := depth.GroundPlaneCandidate(deviceHeightMeters, pitch, now); ok {
			s.board.Publish(cand)
		}
	}

	est := s.selector.Step(depth.FrameInput{
		Now:            now,
		TargetPriority: priority,
		Motion:         depth.MotionStationary,
		DepthSamples:   roi,
	})

	return storage.DecisionRecord{
		FrameIndex:      frameIdx,
		Timestamp:       now,
		PrimaryKind:     est.Decision.Primary,
		PrimaryDepth:    est.Decision.PrimaryDepth,
		BackgroundKind:  est.Decision.Background,
		BackgroundDepth: est.Decision.BackgroundDepth,
		FgUncertainty:   est.ForegroundUncertainty,
		ReasonFlags:     est.Decision.Reasons,
		IsBimodal:       est.Bimodal.IsBimodal,
		NearPeak:        est.Bimodal.NearPeak,
		FarPeak:         est.Bimodal.FarPeak,
		GroundTruthM:    truth,
		DistanceBand:    sample.DistanceBand,
	}
}

func (s *simulator) roiSamples(sample groundtruth.Sample, truth float64, occluded bool, occluderDepth float64) []float64 {
	lo, hi := truth*0.85, truth*1.15
	if sample.GroundTruthP25M != nil && sample.GroundTruthP75M != nil {
		lo, hi = *sample.GroundTruthP25M, *sample.GroundTruthP75M
	}
	roi := make([]float64, 0, roiSampleCount)
	nearCount := 0
	if occluded {
		nearCount = roiSampleCount * 3 / 10
	}
	for i := 0; i < nearCount; i++ {
		roi = append(roi, occluderDepth*(1+s.rng.NormFloat64()*0.05))
	}
	for i := nearCount; i < roiSampleCount; i++ {
		roi = append(roi, lo+s.rng.Float64()*(hi-lo))
	}
	return roi
}

type bandAccumulator struct {
	n   int
	sum float64
}

func (a *bandAccumulator) add(v float64) {
	a.n++
	a.sum += v
}

func (a *bandAccumulator) mean() float64 {
	if a.n == 0 {
		return 0
	}
	return a.sum / float64(a.n)
}

func writeReport(path, sessionID string, stats map[string]*bandAccumulator, mix map[depth.SourceKind]int) error {
	bands := make([]string, 0, len(groundtruth.Bands))
	mape := make([]opts.BarData, 0, len(groundtruth.Bands))
	for _, b := range groundtruth.Bands {
		acc, ok := stats[b.Name]
		if !ok {
			continue
		}
		bands = append(bands, b.Name)
		mape = append(mape, opts.BarData{Value: acc.mean() * 100})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Depth fusion accuracy", Subtitle: "session " + sessionID}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "MAPE (%)"}),
	)
	bar.SetXAxis(bands).AddSeries("MAPE", mape,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	pieData := make([]opts.PieData, 0, len(mix))
	for kind, count := range mix {
		pieData = append(pieData, opts.PieData{Name: string(kind), Value: count})
	}
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Primary source mix"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	pie.AddSeries("sources", pieData)

	page := components.NewPage()
	page.AddCharts(bar, pie)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()
	return page.Render(f)
}
