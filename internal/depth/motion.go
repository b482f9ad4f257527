package depth

import (
	"math"
	"time"
)

// Vec3 is a device-frame position or direction in metres.
type Vec3 struct {
	X, Y, Z float64
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// Normalized returns v scaled to unit length, or the zero vector.
func (v Vec3) Normalized() Vec3 {
	n := v.Norm()
	if n < 1e-12 {
		return Vec3{}
	}
	return Vec3{v.X / n, v.Y / n, v.Z / n}
}

// MotionPredictorConfig tunes the pose-delta forward displacement model.
type MotionPredictorConfig struct {
	MaxAccumulatedMeters float64 // clamp on accumulated displacement between measurements
	VelocitySmoothing    float64 // EMA factor for the forward-velocity estimate, (0, 1]
	MinDepthMeters       float64 // floor applied by Predict
}

// DefaultMotionPredictorConfig returns tuning for handheld pose cadences
// (tens of Hz).
func DefaultMotionPredictorConfig() MotionPredictorConfig {
	return MotionPredictorConfig{
		MaxAccumulatedMeters: 5.0,
		VelocitySmoothing:    0.3,
		MinDepthMeters:       MinTrackDepthMeters,
	}
}

// MotionPredictor converts device pose deltas into a forward-displacement
// correction applied to depth between measurements: walking toward the
// target decreases depth. Displacement is measured along the previous
// forward axis and accumulates until a depth measurement consumes it.
type MotionPredictor struct {
	cfg MotionPredictorConfig

	havePose    bool
	lastPos     Vec3
	lastForward Vec3
	lastTime    time.Time

	accumulated     float64 // forward displacement since last consumed measurement
	forwardVelocity float64 // EMA of forward speed, m/s
}

// NewMotionPredictor creates a predictor with the given tuning.
func NewMotionPredictor(cfg MotionPredictorConfig) *MotionPredictor {
	return &MotionPredictor{cfg: cfg}
}

// UpdatePose stores the latest device pose. Called at the pose-producing
// cadence; cheap.
func (m *MotionPredictor) UpdatePose(position, forward Vec3, at time.Time) {
	fwd := forward.Normalized()
	if !m.havePose {
		m.havePose = true
		m.lastPos = position
		m.lastForward = fwd
		m.lastTime = at
		return
	}

	// Displacement along the previous forward axis: the axis the camera was
	// pointing down when the last measurement was made.
	disp := position.Sub(m.lastPos).Dot(m.lastForward)
	m.accumulated += disp
	if m.accumulated > m.cfg.MaxAccumulatedMeters {
		m.accumulated = m.cfg.MaxAccumulatedMeters
	} else if m.accumulated < -m.cfg.MaxAccumulatedMeters {
		m.accumulated = -m.cfg.MaxAccumulatedMeters
	}

	if dt := at.Sub(m.lastTime).Seconds(); dt > 1e-4 {
		inst := disp / dt
		a := m.cfg.VelocitySmoothing
		m.forwardVelocity = a*inst + (1-a)*m.forwardVelocity
	}

	m.lastPos = position
	m.lastForward = fwd
	m.lastTime = at
}

// DepthAdjustment returns the correction to add to a base depth: the negated
// accumulated forward displacement.
func (m *MotionPredictor) DepthAdjustment() float64 { return -m.accumulated }

// ForwardVelocity returns the smoothed forward speed in m/s.
func (m *MotionPredictor) ForwardVelocity() float64 { return m.forwardVelocity }

// OnMeasurementConsumed resets accumulation once a new depth measurement has
// incorporated the correction, so prediction restarts fresh.
func (m *MotionPredictor) OnMeasurementConsumed() { m.accumulated = 0 }

// Predict returns the base depth adjusted for device motion, floored to the
// minimum depth.
func (m *MotionPredictor) Predict(baseDepth float64) float64 {
	d := baseDepth + m.DepthAdjustment()
	if d < m.cfg.MinDepthMeters {
		d = m.cfg.MinDepthMeters
	}
	return d
}
