package depth

import (
	"time"

	"github.com/banshee-data/rangefinder/internal/monitoring"
)

// FrameInput carries everything the per-frame decision step needs beyond
// the candidate board: the frame clock, the operator's target priority, the
// device motion class, and the ROI depth samples for bimodal analysis.
type FrameInput struct {
	Now            time.Time
	TargetPriority TargetPriority
	Motion         MotionState

	// DepthSamples is the depth-map patch around the aim point, metres.
	// May be empty when no depth map was captured this frame.
	DepthSamples []float64
}

// Estimate is the full per-frame output: the decision, both smoothed depths
// with their tracking uncertainties, and the bimodal analysis used, enough
// to drive any display without re-deriving fusion logic.
type Estimate struct {
	Decision SemanticDecision

	ForegroundDepth       float64
	ForegroundUncertainty float64

	HasBackground         bool
	BackgroundDepth       float64
	BackgroundUncertainty float64

	Bimodal BimodalResult
}

// backgroundPreference maps each primary source to the ordered list of
// sources to try for the background hypothesis. The background is always a
// different source than the primary; the occluder exception overrides this
// table to pin the demoted sensor reading.
var backgroundPreference = map[SourceKind][]SourceKind{
	SourceStadiametric: {SourceDEM, SourceNeural, SourceLiDAR},
	SourceLiDAR:        {SourceDEM, SourceNeural, SourceGeometric},
	SourceObject:       {SourceDEM, SourceNeural, SourceLiDAR},
	SourceDEM:          {SourceNeural, SourceGeometric, SourceLiDAR},
	SourceNeural:       {SourceDEM, SourceGeometric},
	SourceGeometric:    {SourceDEM, SourceNeural},
}

// SemanticSelector is the top-level decision component. Each frame it picks
// exactly one authoritative depth source (never a blended average), tracks a
// secondary background hypothesis from a different source, and smooths both
// through independent Kalman tracks.
//
// Step must be called from a single goroutine; the candidate board is the
// only concurrency boundary.
type SemanticSelector struct {
	cfg      FusionConfig
	board    *CandidateBoard
	analyzer *BimodalAnalyzer
	motion   *MotionPredictor

	foreground *DepthTrack
	background *DepthTrack

	// prevPrimary is the last frame's authoritative source. A frame with no
	// estimate does not count as a switch: the track keeps coasting so a
	// brief dropout of the same source resumes smoothly.
	prevPrimary    SourceKind
	prevBackground SourceKind
}

// NewSemanticSelector wires a selector over a candidate board. The motion
// predictor may be nil when no pose source is available.
func NewSemanticSelector(cfg FusionConfig, board *CandidateBoard, motion *MotionPredictor) *SemanticSelector {
	return &SemanticSelector{
		cfg:            cfg,
		board:          board,
		analyzer:       NewBimodalAnalyzer(cfg.Bimodal),
		motion:         motion,
		foreground:     NewDepthTrack(cfg.Track),
		background:     NewDepthTrack(cfg.Track),
		prevPrimary:    SourceNone,
		prevBackground: SourceNone,
	}
}

// Board returns the selector's candidate board.
func (s *SemanticSelector) Board() *CandidateBoard { return s.board }

// ForegroundTrack exposes the primary track for diagnostics.
func (s *SemanticSelector) ForegroundTrack() *DepthTrack { return s.foreground }

// BackgroundTrack exposes the background track for diagnostics.
func (s *SemanticSelector) BackgroundTrack() *DepthTrack { return s.background }

// Step runs one non-blocking decision over the currently fresh candidates.
// Absent or stale sources are simply skipped; there is no wait-and-retry
// within a frame.
func (s *SemanticSelector) Step(in FrameInput) Estimate {
	fresh := s.board.Snapshot(in.Now)

	demEstimate, demOK := 0.0, false
	if dem, ok := fresh[SourceDEM]; ok {
		demEstimate, demOK = dem.DepthMeters, true
	}
	bimodal := s.analyzer.Analyze(in.DepthSamples, demEstimate, demOK)

	var reasons ReasonFlags
	primary, demotedLiDAR := s.pickPrimary(fresh, bimodal, in.TargetPriority, &reasons)

	decision := SemanticDecision{
		Primary:    SourceNone,
		Background: SourceNone,
	}

	var backgroundCand DepthCandidate
	haveBackground := false
	backgroundKind := SourceNone

	if primary.Valid() {
		decision.Primary = primary.Source
		if demotedLiDAR.Valid() {
			// The occluder exception keeps the near reading as explicit
			// near-field context rather than discarding it.
			backgroundCand = demotedLiDAR
			backgroundKind = demotedLiDAR.Source
			haveBackground = true
		} else {
			for _, kind := range backgroundPreference[primary.Source] {
				if c, ok := fresh[kind]; ok && kind != primary.Source {
					backgroundCand = c
					backgroundKind = kind
					haveBackground = true
					break
				}
			}
		}
	} else {
		reasons |= ReasonNoValidSource
	}

	// Foreground track: reinitialise on a primary-source switch so the new
	// source's semantics never blend with the old one's.
	if decision.Primary != SourceNone && decision.Primary != s.prevPrimary {
		s.foreground.Reset()
		reasons |= ReasonPrimarySwitched
		monitoring.Logf("depth: primary source %s -> %s", s.prevPrimary, decision.Primary)
	}

	out := Estimate{Bimodal: bimodal}

	if primary.Valid() {
		smoothed := s.foreground.Update(primary.DepthMeters, primary.Confidence, in.Motion, in.Now)
		if s.motion != nil {
			s.motion.OnMeasurementConsumed()
		}
		decision.PrimaryDepth = smoothed
		out.ForegroundDepth = smoothed
		out.ForegroundUncertainty = s.foreground.Uncertainty()
	} else if d, ok := s.foreground.Predict(in.Now); ok {
		// No fresh measurement: coast on the last track state, corrected for
		// device motion since the last consumed measurement.
		if s.motion != nil {
			d = s.motion.Predict(d)
		}
		out.ForegroundDepth = d
		out.ForegroundUncertainty = s.foreground.Uncertainty()
	}

	// Background track: independent of the primary track, reset only when
	// its own selected source changes.
	if haveBackground && backgroundKind != s.prevBackground {
		s.background.Reset()
	}
	if haveBackground {
		smoothed := s.background.Update(backgroundCand.DepthMeters, backgroundCand.Confidence, in.Motion, in.Now)
		decision.Background = backgroundKind
		decision.BackgroundDepth = smoothed
		out.HasBackground = true
		out.BackgroundDepth = smoothed
		out.BackgroundUncertainty = s.background.Uncertainty()
	}

	decision.Reasons = reasons
	out.Decision = decision

	if decision.Primary != SourceNone {
		s.prevPrimary = decision.Primary
	}
	if haveBackground {
		s.prevBackground = backgroundKind
	}
	return out
}

// pickPrimary evaluates the strict short-circuiting priority chain. When the
// foreground-occluder exception fires, the skipped sensor candidate is
// returned as demoted so the caller can pin it as the background hypothesis.
func (s *SemanticSelector) pickPrimary(fresh map[SourceKind]DepthCandidate, bimodal BimodalResult, priority TargetPriority, reasons *ReasonFlags) (primary, demoted DepthCandidate) {
	// 1. A manual stadiametric bracket overrides everything.
	if c, ok := fresh[SourceStadiametric]; ok {
		*reasons |= ReasonStadiametricOverride
		return c, DepthCandidate{}
	}

	// 2. Near-range sensor inside its valid band, unless demoted by the
	// occluder exception.
	if c, ok := fresh[SourceLiDAR]; ok {
		inBand := c.DepthMeters >= s.cfg.NearBandMinMeters && c.DepthMeters <= s.cfg.NearBandMaxMeters
		if !inBand {
			*reasons |= ReasonLiDAROutOfBand
		} else if s.occluderException(c, fresh, bimodal, priority) {
			*reasons |= ReasonOccluderDemoted
			demoted = c
		} else {
			return c, DepthCandidate{}
		}
	}

	// 3. Known-size object detection at the aim point.
	if c, ok := fresh[SourceObject]; ok {
		return c, demoted
	}

	// 4. Terrain ray-cast hit.
	if c, ok := fresh[SourceDEM]; ok {
		return c, demoted
	}

	// 5. Neural depth, strictly below the hard cap.
	if c, ok := fresh[SourceNeural]; ok {
		if c.DepthMeters < s.cfg.NeuralHardCapMeters && c.Confidence > 0 {
			return c, demoted
		}
		*reasons |= ReasonNeuralBeyondCap
	}

	// 6. Geometric ground-plane estimate.
	if c, ok := fresh[SourceGeometric]; ok {
		return c, demoted
	}

	// 7. No estimate. A valid, displayed state, not an error.
	return DepthCandidate{}, demoted
}

// occluderException demotes the near-range sensor when the operator wants
// the far population of a bimodal scene and the far peak is corroborated by
// terrain. Averaging a 2 m occluder with 1600 m terrain can never produce a
// correct answer; the only coherent move is to switch which source is
// authoritative.
func (s *SemanticSelector) occluderException(lidar DepthCandidate, fresh map[SourceKind]DepthCandidate, bimodal BimodalResult, priority TargetPriority) bool {
	if priority != PriorityFar {
		return false
	}
	if !bimodal.IsBimodal {
		return false
	}
	if !bimodal.DEMAgreesWithFar {
		return false
	}
	if _, ok := fresh[SourceDEM]; !ok {
		return false
	}
	return bimodal.InNearCluster(lidar.DepthMeters)
}
