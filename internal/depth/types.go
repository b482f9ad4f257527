package depth

import (
	"math"
	"time"
)

// SourceKind identifies a depth-sensing modality.
type SourceKind string

const (
	SourceNone         SourceKind = "none"
	SourceStadiametric SourceKind = "stadiametric" // user-confirmed bracket on a known-size target
	SourceLiDAR        SourceKind = "lidar"        // near-range time-of-flight sensor
	SourceObject       SourceKind = "object"       // known-size object detection at the aim point
	SourceDEM          SourceKind = "dem"          // terrain ray-cast intersection
	SourceNeural       SourceKind = "neural"       // calibrated monocular inverse-depth network
	SourceGeometric    SourceKind = "geometric"    // device-height ground-plane trigonometry
)

// MotionState classifies how the device is moving. The process noise of the
// depth tracks is keyed off this closed set.
type MotionState int

const (
	MotionStationary MotionState = iota
	MotionTracking
	MotionPanning
)

func (m MotionState) String() string {
	switch m {
	case MotionStationary:
		return "stationary"
	case MotionTracking:
		return "tracking"
	case MotionPanning:
		return "panning"
	}
	return "unknown"
}

// TargetPriority expresses whether the operator wants the near or far
// population of a bimodal scene.
type TargetPriority int

const (
	PriorityNear TargetPriority = iota
	PriorityFar
)

func (p TargetPriority) String() string {
	if p == PriorityFar {
		return "far"
	}
	return "near"
}

// DepthCandidate is one source's measurement for the current frame.
// Candidates are consumed and discarded each frame; they carry no identity.
type DepthCandidate struct {
	Source      SourceKind
	DepthMeters float64
	Confidence  float64 // [0, 1]
	Timestamp   time.Time
}

// Valid reports whether the candidate carries a usable measurement.
// A depth of zero or a non-finite value is never propagated.
func (c DepthCandidate) Valid() bool {
	if c.Source == "" || c.Source == SourceNone {
		return false
	}
	if math.IsNaN(c.DepthMeters) || math.IsInf(c.DepthMeters, 0) || c.DepthMeters <= 0 {
		return false
	}
	return c.Confidence > 0 && c.Confidence <= 1
}

// ReasonFlags records which gating rules fired while making a decision.
// Diagnostic only; the flags never feed back into selection.
type ReasonFlags uint32

const (
	// ReasonStadiametricOverride: a manual bracket reading bypassed all gating.
	ReasonStadiametricOverride ReasonFlags = 1 << iota
	// ReasonOccluderDemoted: the near-range sensor was demoted to the
	// background hypothesis in favour of a corroborated far peak.
	ReasonOccluderDemoted
	// ReasonLiDAROutOfBand: a sensor candidate was present but outside its
	// valid near-range band.
	ReasonLiDAROutOfBand
	// ReasonNeuralBeyondCap: a neural candidate was present at or beyond the
	// hard-cap distance and was excluded.
	ReasonNeuralBeyondCap
	// ReasonPrimarySwitched: the primary source differs from the previous
	// frame and the foreground track was reinitialised.
	ReasonPrimarySwitched
	// ReasonNoValidSource: every source was absent or excluded this frame.
	ReasonNoValidSource
)

// Has reports whether all the given flags are set.
func (r ReasonFlags) Has(f ReasonFlags) bool { return r&f == f }

// SemanticDecision is the per-frame output of the selector: exactly one
// authoritative source (or none), plus an optional background hypothesis
// from a different source. Decisions are immutable and superseded by the
// next frame.
type SemanticDecision struct {
	Primary         SourceKind
	PrimaryDepth    float64
	Background      SourceKind // SourceNone when no background hypothesis
	BackgroundDepth float64
	Reasons         ReasonFlags
}

// HasEstimate reports whether the decision carries an actionable primary depth.
func (d SemanticDecision) HasEstimate() bool {
	return d.Primary != SourceNone && d.Primary != ""
}
