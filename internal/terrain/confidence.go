package terrain

import "math"

// Error scales for the hit-confidence model. Each term maps one degraded
// input to a multiplicative confidence factor; the ray answer itself is
// never changed, only how much the display should trust it.
const (
	horizontalErrorScaleMeters = 25.0
	lateralErrorScaleMeters    = 40.0
	verticalErrorScaleMeters   = 30.0
	distanceScaleMeters        = 4000.0
)

// HitQuality describes the accuracy of the inputs that produced a ray cast.
type HitQuality struct {
	HorizontalAccuracyMeters float64 // GPS horizontal fix accuracy
	HeadingAccuracyRad       float64 // compass accuracy
	VerticalAccuracyMeters   float64 // altitude fix accuracy
}

// HitConfidence combines horizontal-fix, heading, and vertical accuracy with
// hit distance into a display confidence in [0, 1]. Heading error grows the
// lateral miss linearly with distance, so the same compass accuracy costs
// far more confidence at 1500 m than at 200 m.
func HitConfidence(q HitQuality, hitDistanceMeters float64) float64 {
	if hitDistanceMeters <= 0 {
		return 0
	}
	lateralError := q.HeadingAccuracyRad * hitDistanceMeters

	conf := math.Exp(-q.HorizontalAccuracyMeters/horizontalErrorScaleMeters) *
		math.Exp(-lateralError/lateralErrorScaleMeters) *
		math.Exp(-q.VerticalAccuracyMeters/verticalErrorScaleMeters) *
		math.Exp(-hitDistanceMeters/distanceScaleMeters)

	if conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}
