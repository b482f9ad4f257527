package depth

import (
	"math"
	"time"
)

// Confidence models for the derived sources. Stadiametric brackets are
// operator-confirmed and trusted near-fully; the geometric estimate degrades
// with distance because a fixed pitch error grows the range error linearly.
const (
	stadiametricConfidence = 0.95
	geometricFalloffMeters = 80.0
	minGroundPlanePitchRad = 0.01 // ~0.6 degrees below horizontal
	minPixelExtent         = 2.0
)

// StadiametricCandidate derives a depth candidate from a user-confirmed
// bracket: a known real-world size spanning a measured pixel separation.
func StadiametricCandidate(knownSizeMeters, pixelSeparation, focalLengthPixels float64, at time.Time) (DepthCandidate, bool) {
	d, ok := pinholeDistance(knownSizeMeters, pixelSeparation, focalLengthPixels)
	if !ok {
		return DepthCandidate{}, false
	}
	return DepthCandidate{
		Source:      SourceStadiametric,
		DepthMeters: d,
		Confidence:  stadiametricConfidence,
		Timestamp:   at,
	}, true
}

// ObjectSizeCandidate derives a depth candidate from a detected object of
// known real-world size at the aim point. classConfidence is the detector's
// confidence for the class whose size is being assumed.
func ObjectSizeCandidate(knownSizeMeters, pixelExtent, focalLengthPixels, classConfidence float64, at time.Time) (DepthCandidate, bool) {
	d, ok := pinholeDistance(knownSizeMeters, pixelExtent, focalLengthPixels)
	if !ok {
		return DepthCandidate{}, false
	}
	if classConfidence < 0 || classConfidence > 1 {
		return DepthCandidate{}, false
	}
	return DepthCandidate{
		Source:      SourceObject,
		DepthMeters: d,
		Confidence:  classConfidence,
		Timestamp:   at,
	}, true
}

// GroundPlaneCandidate derives a depth candidate from device height above
// the ground plane and the pitch below horizontal: d = h / tan(pitch).
// Pitch at or above the horizon cannot intersect the plane.
func GroundPlaneCandidate(deviceHeightMeters, pitchBelowHorizontalRad float64, at time.Time) (DepthCandidate, bool) {
	if deviceHeightMeters <= 0 || pitchBelowHorizontalRad < minGroundPlanePitchRad {
		return DepthCandidate{}, false
	}
	if pitchBelowHorizontalRad > math.Pi/2 {
		return DepthCandidate{}, false
	}
	d := deviceHeightMeters / math.Tan(pitchBelowHorizontalRad)
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return DepthCandidate{}, false
	}
	// Confidence decays with distance: the same pitch jitter sweeps a wider
	// ground arc the shallower the look angle.
	conf := math.Exp(-d / geometricFalloffMeters)
	return DepthCandidate{
		Source:      SourceGeometric,
		DepthMeters: d,
		Confidence:  conf,
		Timestamp:   at,
	}, true
}

// pinholeDistance is the shared similar-triangles ranging core:
// distance = realSize * focalPx / pixelSize.
func pinholeDistance(sizeMeters, pixels, focalPixels float64) (float64, bool) {
	if sizeMeters <= 0 || focalPixels <= 0 || pixels < minPixelExtent {
		return 0, false
	}
	d := sizeMeters * focalPixels / pixels
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return 0, false
	}
	return d, true
}
