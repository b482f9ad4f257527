package depth

import (
	"math"
	"time"
)

// Constants for track numerics.
const (
	// MinInnovationCovariance guards the scalar innovation covariance
	// inversion; below this the correction step is skipped.
	MinInnovationCovariance = 1e-9
	// MinTrackDepthMeters is the floor applied to the depth estimate after
	// every update.
	MinTrackDepthMeters = 0.05
)

// Distance bands for the measurement-noise multiplier. Inside the
// range-sensor band measurements are trusted near-flat; past the handover
// band inverse-depth calibration amplifies disparity noise quadratically.
const (
	rangeSensorBandMeters = 5.0
	handoverBandMeters    = 15.0
	quadraticOnsetMeters  = 50.0
	handoverBandFactor    = 4.0
)

// TrackConfig holds tuning parameters for a single depth track.
type TrackConfig struct {
	BaseMeasurementNoise   float64       // measurement noise at unit confidence, near range (σ²)
	ProcessNoiseStationary float64       // CV-model q when the device is still
	ProcessNoiseTracking   float64       // q while smoothly following a target
	ProcessNoisePanning    float64       // q during fast reaiming
	MinUpdateInterval      time.Duration // below this dt the update is a no-op
	MaxUpdateInterval      time.Duration // above this dt the track reinitialises
	MaxDistanceFactor      float64       // cap on the distance noise multiplier
}

// DefaultTrackConfig returns track tuning suitable for handheld use.
func DefaultTrackConfig() TrackConfig {
	return TrackConfig{
		BaseMeasurementNoise:   0.05,
		ProcessNoiseStationary: 0.01,
		ProcessNoiseTracking:   0.5,
		ProcessNoisePanning:    4.0,
		MinUpdateInterval:      2 * time.Millisecond,
		MaxUpdateInterval:      2 * time.Second,
		MaxDistanceFactor:      40.0,
	}
}

// DepthTrack is a single-hypothesis 1D depth estimator: constant-velocity
// Kalman filter over state [depth, velocity] with a symmetric 2x2 covariance
// kept as its three distinct entries. A track is exclusively owned by its
// selector; no internal locking.
type DepthTrack struct {
	cfg TrackConfig

	depth    float64
	velocity float64

	// Covariance: [p00 p01; p01 p11]
	p00, p01, p11 float64

	lastUpdate  time.Time
	initialized bool
}

// NewDepthTrack creates an uninitialised track.
func NewDepthTrack(cfg TrackConfig) *DepthTrack {
	return &DepthTrack{cfg: cfg}
}

// Initialized reports whether the track holds state.
func (t *DepthTrack) Initialized() bool { return t.initialized }

// Reset clears the track to uninitialised. The next Update reinitialises
// directly from its measurement.
func (t *DepthTrack) Reset() {
	t.depth = 0
	t.velocity = 0
	t.p00, t.p01, t.p11 = 0, 0, 0
	t.lastUpdate = time.Time{}
	t.initialized = false
}

// Depth returns the current smoothed depth estimate.
func (t *DepthTrack) Depth() float64 { return t.depth }

// Uncertainty returns the 1-sigma tracking uncertainty in metres.
func (t *DepthTrack) Uncertainty() float64 {
	if !t.initialized || t.p00 <= 0 {
		return 0
	}
	return math.Sqrt(t.p00)
}

// Predict extrapolates the depth to the given time without mutating state.
// Returns false when the track is uninitialised.
func (t *DepthTrack) Predict(at time.Time) (float64, bool) {
	if !t.initialized {
		return 0, false
	}
	dt := at.Sub(t.lastUpdate).Seconds()
	if dt < 0 {
		dt = 0
	}
	d := t.depth + t.velocity*dt
	if d < MinTrackDepthMeters {
		d = MinTrackDepthMeters
	}
	return d, true
}

// Update performs predict-then-correct with a new measurement and returns
// the smoothed depth. The first call after construction or Reset initialises
// state directly from the measurement (velocity 0, unit covariance) instead
// of running the filter equations.
func (t *DepthTrack) Update(measurement, confidence float64, motion MotionState, at time.Time) float64 {
	if !t.initialized {
		return t.initialise(measurement, at)
	}

	dt := at.Sub(t.lastUpdate).Seconds()
	if dt < t.cfg.MinUpdateInterval.Seconds() {
		// Near-zero dt: do not run the filter against a degenerate interval.
		return t.depth
	}
	if dt > t.cfg.MaxUpdateInterval.Seconds() {
		// App suspended or tracking lost; extrapolating across the gap would
		// be meaningless.
		return t.initialise(measurement, at)
	}

	// Predict: x' = F x with F = [1 dt; 0 1], P' = F P F^T + Q.
	q := t.processNoise(motion)
	t.depth += t.velocity * dt
	p00 := t.p00 + dt*(t.p01+t.p01) + dt*dt*t.p11 + q*dt*dt*dt/3.0
	p01 := t.p01 + dt*t.p11 + q*dt*dt/2.0
	p11 := t.p11 + q*dt
	t.p00, t.p01, t.p11 = p00, p01, p11
	t.lastUpdate = at

	// Correct with scalar measurement z = depth + v, v ~ N(0, R).
	r := t.measurementNoise(measurement, confidence)
	s := t.p00 + r
	if s <= MinInnovationCovariance {
		// Numerically degenerate; prediction already advanced the state.
		return t.floorDepth()
	}

	k0 := t.p00 / s
	k1 := t.p01 / s
	innovation := measurement - t.depth

	t.depth += k0 * innovation
	t.velocity += k1 * innovation

	// P' = (I - K H) P for H = [1 0].
	p00n := (1 - k0) * t.p00
	p01n := (1 - k0) * t.p01
	p11n := t.p11 - k1*t.p01
	t.p00, t.p01, t.p11 = p00n, p01n, p11n

	return t.floorDepth()
}

func (t *DepthTrack) initialise(measurement float64, at time.Time) float64 {
	t.depth = measurement
	t.velocity = 0
	t.p00, t.p01, t.p11 = 1, 0, 1
	t.lastUpdate = at
	t.initialized = true
	return t.floorDepth()
}

func (t *DepthTrack) floorDepth() float64 {
	if t.depth < MinTrackDepthMeters {
		t.depth = MinTrackDepthMeters
	}
	return t.depth
}

func (t *DepthTrack) processNoise(motion MotionState) float64 {
	switch motion {
	case MotionStationary:
		return t.cfg.ProcessNoiseStationary
	case MotionPanning:
		return t.cfg.ProcessNoisePanning
	default:
		return t.cfg.ProcessNoiseTracking
	}
}

// measurementNoise is R = base * (1/confidence) * distanceFactor(depth).
func (t *DepthTrack) measurementNoise(measurement, confidence float64) float64 {
	if confidence < 0.01 {
		confidence = 0.01
	} else if confidence > 1 {
		confidence = 1
	}
	return t.cfg.BaseMeasurementNoise * (1.0 / confidence) * t.distanceFactor(measurement)
}

// distanceFactor grows the measurement noise with depth: flat inside the
// range-sensor band, a linear ramp through the handover band, then quadratic
// beyond the quadratic onset. The cap keeps the gain from collapsing at
// extreme range, so the filter stays responsive to valid long-range
// measurements.
func (t *DepthTrack) distanceFactor(d float64) float64 {
	var f float64
	switch {
	case d <= rangeSensorBandMeters:
		f = 1.0
	case d <= handoverBandMeters:
		frac := (d - rangeSensorBandMeters) / (handoverBandMeters - rangeSensorBandMeters)
		f = 1.0 + frac*(handoverBandFactor-1.0)
	case d <= quadraticOnsetMeters:
		f = handoverBandFactor
	default:
		ratio := d / quadraticOnsetMeters
		f = handoverBandFactor * ratio * ratio
	}
	if f > t.cfg.MaxDistanceFactor {
		f = t.cfg.MaxDistanceFactor
	}
	return f
}
