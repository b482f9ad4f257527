package depth

import (
	"math"
	"testing"
	"time"
)

func newTestSelector() *SemanticSelector {
	cfg := DefaultFusionConfig()
	board := NewCandidateBoard(cfg.Staleness)
	return NewSemanticSelector(cfg, board, nil)
}

func cand(kind SourceKind, depth, conf float64, at time.Time) DepthCandidate {
	return DepthCandidate{Source: kind, DepthMeters: depth, Confidence: conf, Timestamp: at}
}

func TestSemanticSelector_PriorityOrdering(t *testing.T) {
	now := testTime(0)
	cases := []struct {
		name    string
		publish []DepthCandidate
		want    SourceKind
	}{
		{
			name: "stadiametric beats everything",
			publish: []DepthCandidate{
				cand(SourceStadiametric, 120, 0.95, now),
				cand(SourceLiDAR, 3, 0.9, now),
				cand(SourceObject, 25, 0.8, now),
				cand(SourceDEM, 800, 0.7, now),
				cand(SourceNeural, 60, 0.5, now),
				cand(SourceGeometric, 40, 0.4, now),
			},
			want: SourceStadiametric,
		},
		{
			name: "lidar in band beats object and terrain",
			publish: []DepthCandidate{
				cand(SourceLiDAR, 3, 0.9, now),
				cand(SourceObject, 25, 0.8, now),
				cand(SourceDEM, 800, 0.7, now),
			},
			want: SourceLiDAR,
		},
		{
			name: "lidar out of band falls through to object",
			publish: []DepthCandidate{
				cand(SourceLiDAR, 7, 0.9, now),
				cand(SourceObject, 25, 0.8, now),
			},
			want: SourceObject,
		},
		{
			name: "object beats terrain and neural",
			publish: []DepthCandidate{
				cand(SourceObject, 25, 0.8, now),
				cand(SourceDEM, 800, 0.7, now),
				cand(SourceNeural, 60, 0.5, now),
			},
			want: SourceObject,
		},
		{
			name: "terrain beats neural",
			publish: []DepthCandidate{
				cand(SourceDEM, 800, 0.7, now),
				cand(SourceNeural, 60, 0.5, now),
			},
			want: SourceDEM,
		},
		{
			name: "neural beats geometric",
			publish: []DepthCandidate{
				cand(SourceNeural, 60, 0.5, now),
				cand(SourceGeometric, 40, 0.4, now),
			},
			want: SourceNeural,
		},
		{
			name:    "geometric is the last resort",
			publish: []DepthCandidate{cand(SourceGeometric, 40, 0.4, now)},
			want:    SourceGeometric,
		},
		{
			name: "nothing fresh means no estimate",
			want: SourceNone,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSelector()
			for _, c := range tc.publish {
				s.Board().Publish(c)
			}
			est := s.Step(FrameInput{Now: now, TargetPriority: PriorityNear, Motion: MotionStationary})
			if est.Decision.Primary != tc.want {
				t.Fatalf("primary = %s, want %s (reasons %b)", est.Decision.Primary, tc.want, est.Decision.Reasons)
			}
		})
	}
}

func TestSemanticSelector_ReasonFlags(t *testing.T) {
	now := testTime(0)

	s := newTestSelector()
	s.Board().Publish(cand(SourceStadiametric, 120, 0.95, now))
	est := s.Step(FrameInput{Now: now})
	if !est.Decision.Reasons.Has(ReasonStadiametricOverride) {
		t.Fatalf("stadiametric selection should flag the override, got %b", est.Decision.Reasons)
	}

	s = newTestSelector()
	s.Board().Publish(cand(SourceLiDAR, 7, 0.9, now))
	est = s.Step(FrameInput{Now: now})
	if !est.Decision.Reasons.Has(ReasonLiDAROutOfBand) {
		t.Fatalf("7m lidar should be flagged out of band, got %b", est.Decision.Reasons)
	}
	if est.Decision.Primary != SourceNone || !est.Decision.Reasons.Has(ReasonNoValidSource) {
		t.Fatalf("out-of-band lidar alone yields no estimate, got %+v", est.Decision)
	}
}

func TestSemanticSelector_NeuralHardCap(t *testing.T) {
	now := testTime(0)

	s := newTestSelector()
	s.Board().Publish(cand(SourceNeural, 400, 0.6, now))
	est := s.Step(FrameInput{Now: now})
	if est.Decision.Primary != SourceNone {
		t.Fatalf("neural beyond the hard cap must never be authoritative, got %s", est.Decision.Primary)
	}
	if !est.Decision.Reasons.Has(ReasonNeuralBeyondCap) {
		t.Fatalf("capped neural should be flagged, got %b", est.Decision.Reasons)
	}

	s = newTestSelector()
	s.Board().Publish(cand(SourceNeural, 350, 0.6, now))
	if est := s.Step(FrameInput{Now: now}); est.Decision.Primary != SourceNone {
		t.Fatalf("the cap is exclusive: exactly 350m is rejected, got %s", est.Decision.Primary)
	}

	s = newTestSelector()
	s.Board().Publish(cand(SourceNeural, 349, 0.6, now))
	if est := s.Step(FrameInput{Now: now}); est.Decision.Primary != SourceNeural {
		t.Fatalf("neural below the cap should be usable, got %s", est.Decision.Primary)
	}
}

func TestSemanticSelector_TrackResetOnSourceSwitch(t *testing.T) {
	s := newTestSelector()

	s.Board().Publish(cand(SourceLiDAR, 3, 0.9, testTime(0)))
	est := s.Step(FrameInput{Now: testTime(0)})
	if est.Decision.PrimaryDepth != 3 {
		t.Fatalf("first acquisition returns the measurement exactly, got %v", est.Decision.PrimaryDepth)
	}

	// Same source next frame: smoothed, no switch flag.
	s.Board().Publish(cand(SourceLiDAR, 3.1, 0.9, testTime(100*time.Millisecond)))
	est = s.Step(FrameInput{Now: testTime(100 * time.Millisecond)})
	if est.Decision.Reasons.Has(ReasonPrimarySwitched) {
		t.Fatalf("continuing on the same source is not a switch")
	}
	if est.Decision.PrimaryDepth <= 3 || est.Decision.PrimaryDepth >= 3.1 {
		t.Fatalf("same-source update should smooth between measurements, got %v", est.Decision.PrimaryDepth)
	}

	// Source switch: track reinitialises, no blending across semantics.
	s.Board().Clear(SourceLiDAR)
	s.Board().Publish(cand(SourceDEM, 100, 0.7, testTime(200*time.Millisecond)))
	est = s.Step(FrameInput{Now: testTime(200 * time.Millisecond)})
	if est.Decision.Primary != SourceDEM {
		t.Fatalf("primary should switch to terrain, got %s", est.Decision.Primary)
	}
	if !est.Decision.Reasons.Has(ReasonPrimarySwitched) {
		t.Fatalf("switch should be flagged, got %b", est.Decision.Reasons)
	}
	if est.Decision.PrimaryDepth != 100 {
		t.Fatalf("post-switch estimate must not blend 3m into 100m, got %v", est.Decision.PrimaryDepth)
	}
}

func TestSemanticSelector_DropoutCoastsWithoutReset(t *testing.T) {
	s := newTestSelector()

	s.Board().Publish(cand(SourceLiDAR, 3, 0.9, testTime(0)))
	s.Step(FrameInput{Now: testTime(0)})

	// Dropout frame: no fresh source, track coasts.
	s.Board().Clear(SourceLiDAR)
	est := s.Step(FrameInput{Now: testTime(100 * time.Millisecond)})
	if est.Decision.Primary != SourceNone {
		t.Fatalf("dropout frame has no primary, got %s", est.Decision.Primary)
	}
	if math.Abs(est.ForegroundDepth-3) > 1e-9 {
		t.Fatalf("coasted depth should hold at 3m, got %v", est.ForegroundDepth)
	}

	// Same source returns: no switch, smoothing continues from the track.
	s.Board().Publish(cand(SourceLiDAR, 3.2, 0.9, testTime(200*time.Millisecond)))
	est = s.Step(FrameInput{Now: testTime(200 * time.Millisecond)})
	if est.Decision.Reasons.Has(ReasonPrimarySwitched) {
		t.Fatalf("a dropout does not make the returning source a switch")
	}
	if est.Decision.PrimaryDepth == 3.2 {
		t.Fatalf("returning source should blend with the coasting track, not reinitialise")
	}
}

func TestSemanticSelector_BackgroundHypothesis(t *testing.T) {
	s := newTestSelector()

	s.Board().Publish(cand(SourceLiDAR, 3, 0.9, testTime(0)))
	s.Board().Publish(cand(SourceDEM, 120, 0.7, testTime(0)))
	est := s.Step(FrameInput{Now: testTime(0)})

	if est.Decision.Primary != SourceLiDAR || est.Decision.Background != SourceDEM {
		t.Fatalf("expected lidar primary with terrain background, got %+v", est.Decision)
	}
	if !est.HasBackground || est.BackgroundDepth != 120 {
		t.Fatalf("first background acquisition is exact, got %v", est.BackgroundDepth)
	}

	// The background track resets on its own source change, independent of the
	// primary track.
	s.Board().Clear(SourceDEM)
	s.Board().Publish(cand(SourceLiDAR, 3, 0.9, testTime(100*time.Millisecond)))
	s.Board().Publish(cand(SourceNeural, 80, 0.5, testTime(100*time.Millisecond)))
	est = s.Step(FrameInput{Now: testTime(100 * time.Millisecond)})
	if est.Decision.Background != SourceNeural {
		t.Fatalf("background should fall through to neural, got %s", est.Decision.Background)
	}
	if est.BackgroundDepth != 80 {
		t.Fatalf("background switch must reinitialise its track, got %v", est.BackgroundDepth)
	}
}

func occluderSamples() []float64 {
	return append(repeatDepth(2.5, 80), repeatDepth(1600, 180)...)
}

func TestSemanticSelector_OccluderExceptionFarPriority(t *testing.T) {
	s := newTestSelector()
	now := testTime(0)

	s.Board().Publish(cand(SourceLiDAR, 2.5, 0.9, now))
	s.Board().Publish(cand(SourceDEM, 1600, 0.7, now))

	est := s.Step(FrameInput{Now: now, TargetPriority: PriorityFar, DepthSamples: occluderSamples()})

	if est.Decision.Primary != SourceDEM {
		t.Fatalf("far priority over a corroborated far peak should demote lidar, got %s", est.Decision.Primary)
	}
	if !est.Decision.Reasons.Has(ReasonOccluderDemoted) {
		t.Fatalf("demotion should be flagged, got %b", est.Decision.Reasons)
	}
	if est.Decision.Background != SourceLiDAR || est.BackgroundDepth != 2.5 {
		t.Fatalf("demoted reading should be pinned as background, got %+v", est.Decision)
	}
	if est.Decision.PrimaryDepth != 1600 {
		t.Fatalf("primary should carry the terrain distance, got %v", est.Decision.PrimaryDepth)
	}
}

func TestSemanticSelector_OccluderExceptionNeedsNearPriorityOff(t *testing.T) {
	s := newTestSelector()
	now := testTime(0)

	s.Board().Publish(cand(SourceLiDAR, 2.5, 0.9, now))
	s.Board().Publish(cand(SourceDEM, 1600, 0.7, now))

	est := s.Step(FrameInput{Now: now, TargetPriority: PriorityNear, DepthSamples: occluderSamples()})
	if est.Decision.Primary != SourceLiDAR {
		t.Fatalf("near priority keeps the sensor authoritative, got %s", est.Decision.Primary)
	}
	if est.Decision.Reasons.Has(ReasonOccluderDemoted) {
		t.Fatalf("no demotion under near priority")
	}
}

func TestSemanticSelector_OccluderExceptionNeedsTerrain(t *testing.T) {
	s := newTestSelector()
	now := testTime(0)

	// Bimodal ROI but no terrain corroboration: the sensor stays primary.
	s.Board().Publish(cand(SourceLiDAR, 2.5, 0.9, now))
	est := s.Step(FrameInput{Now: now, TargetPriority: PriorityFar, DepthSamples: occluderSamples()})
	if est.Decision.Primary != SourceLiDAR {
		t.Fatalf("without terrain agreement the sensor stays authoritative, got %s", est.Decision.Primary)
	}
}

func TestSemanticSelector_MotionCorrectedCoasting(t *testing.T) {
	cfg := DefaultFusionConfig()
	board := NewCandidateBoard(cfg.Staleness)
	motion := NewMotionPredictor(cfg.Motion)
	s := NewSemanticSelector(cfg, board, motion)

	board.Publish(cand(SourceLiDAR, 4, 0.9, testTime(0)))
	s.Step(FrameInput{Now: testTime(0), Motion: MotionStationary})

	// Operator walks 1m toward the target during a sensor dropout.
	forward := Vec3{X: 1}
	motion.UpdatePose(Vec3{}, forward, testTime(10*time.Millisecond))
	motion.UpdatePose(Vec3{X: 1}, forward, testTime(90*time.Millisecond))

	board.Clear(SourceLiDAR)
	est := s.Step(FrameInput{Now: testTime(100 * time.Millisecond), Motion: MotionTracking})
	if math.Abs(est.ForegroundDepth-3) > 1e-9 {
		t.Fatalf("coasted depth should absorb the forward step: want 3, got %v", est.ForegroundDepth)
	}
}
