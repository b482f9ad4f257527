// Package calib maintains the regression that maps raw monocular
// inverse-depth network output to metric depth. The model d = scale/n + shift
// is fit by weighted least squares over overlap pairs collected while a
// trusted short-range source is simultaneously available; weights decay
// exponentially with sample age so the fit follows calibration drift.
package calib

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/rangefinder/internal/depth"
	"github.com/banshee-data/rangefinder/internal/monitoring"
)

// Config tunes the calibrator.
type Config struct {
	WindowSize     int     // bounded overlap-sample window; oldest evicted
	DecayPerSecond float64 // per-second weight decay factor, (0, 1]
	MinSamples     int     // below this the calibrator reports unavailable

	HardCapMeters float64 // confidence is exactly 0 at and beyond this depth

	// Calibration-quality decay: full confidence for FreshWindow after the
	// last overlap sample, then decay toward QualityFloor with the given
	// half-life. Calibration drifts once the device stops seeing short-range
	// corroborating targets.
	FreshWindow     time.Duration
	QualityHalfLife time.Duration
	QualityFloor    float64
}

// DefaultConfig returns calibration tuning for a handheld session.
func DefaultConfig() Config {
	return Config{
		WindowSize:      64,
		DecayPerSecond:  0.98,
		MinSamples:      2,
		HardCapMeters:   350.0,
		FreshWindow:     20 * time.Second,
		QualityHalfLife: 90 * time.Second,
		QualityFloor:    0.3,
	}
}

// Sample is one overlap pair: the raw inverse-depth output and the trusted
// reference depth observed in the same frame.
type Sample struct {
	InverseDepth   float64 // raw network output n
	ReferenceDepth float64 // trusted metric depth, metres
	Confidence     float64 // reference source confidence at capture
	Timestamp      time.Time
}

// Calibrator owns the bounded sample window and the fitted model. Mutated
// only when a fresh overlap pair arrives; reads are cheap. Calibration is
// in-memory only: a fresh process starts uncalibrated.
type Calibrator struct {
	cfg Config

	window []Sample // ordered oldest first

	scale  float64
	shift  float64
	fitted bool

	lastFit    time.Time
	lastSample time.Time
}

// New creates an uncalibrated calibrator.
func New(cfg Config) *Calibrator {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultConfig().WindowSize
	}
	if cfg.MinSamples < 2 {
		// A two-parameter fit needs at least two distinct abscissae.
		cfg.MinSamples = 2
	}
	return &Calibrator{cfg: cfg}
}

// AddOverlapSample records an overlap pair and refits the model. Pairs with
// unusable values are dropped.
func (c *Calibrator) AddOverlapSample(rawInverseDepth, referenceDepth, confidence float64, at time.Time) {
	if rawInverseDepth <= 0 || referenceDepth <= 0 ||
		math.IsNaN(rawInverseDepth) || math.IsNaN(referenceDepth) ||
		math.IsInf(rawInverseDepth, 0) || math.IsInf(referenceDepth, 0) {
		return
	}
	if confidence <= 0 {
		return
	}
	if confidence > 1 {
		confidence = 1
	}

	c.window = append(c.window, Sample{
		InverseDepth:   rawInverseDepth,
		ReferenceDepth: referenceDepth,
		Confidence:     confidence,
		Timestamp:      at,
	})
	if len(c.window) > c.cfg.WindowSize {
		c.window = c.window[len(c.window)-c.cfg.WindowSize:]
	}
	c.lastSample = at
	c.refit(at)
}

// refit runs decay-weighted least squares of reference depth against
// 1/inverseDepth. Requires at least MinSamples with distinct abscissae.
func (c *Calibrator) refit(now time.Time) {
	if len(c.window) < c.cfg.MinSamples {
		c.fitted = false
		return
	}

	x := make([]float64, 0, len(c.window))
	y := make([]float64, 0, len(c.window))
	w := make([]float64, 0, len(c.window))
	for _, s := range c.window {
		age := now.Sub(s.Timestamp).Seconds()
		if age < 0 {
			age = 0
		}
		weight := math.Pow(c.cfg.DecayPerSecond, age) * s.Confidence
		if weight <= 0 {
			continue
		}
		x = append(x, 1.0/s.InverseDepth)
		y = append(y, s.ReferenceDepth)
		w = append(w, weight)
	}
	if len(x) < c.cfg.MinSamples || !hasDistinct(x) {
		c.fitted = false
		return
	}

	shift, scale := stat.LinearRegression(x, y, w, false)
	if math.IsNaN(scale) || math.IsNaN(shift) || math.IsInf(scale, 0) || math.IsInf(shift, 0) {
		c.fitted = false
		return
	}

	wasFitted := c.fitted
	c.scale = scale
	c.shift = shift
	c.fitted = true
	c.lastFit = now
	if !wasFitted {
		monitoring.Logf("calib: neural depth calibrated over %d samples (scale=%.3f shift=%.3f)",
			len(x), scale, shift)
	}
}

// Available reports whether enough overlap samples have been collected to
// fit the model. Callers must treat neural depth as zero-confidence until
// this returns true.
func (c *Calibrator) Available() bool { return c.fitted }

// Model returns the fitted scale and shift.
func (c *Calibrator) Model() (scale, shift float64, ok bool) {
	return c.scale, c.shift, c.fitted
}

// Metric converts a raw inverse-depth output to metric depth. No artificial
// compression is applied to the estimate itself; distances beyond the hard
// cap are legitimate values with zero confidence.
func (c *Calibrator) Metric(rawInverseDepth float64) (float64, bool) {
	if !c.fitted || rawInverseDepth <= 0 {
		return 0, false
	}
	d := c.scale/rawInverseDepth + c.shift
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return 0, false
	}
	return d, true
}

// Confidence returns the calibrated-depth confidence at a given depth and
// time: zero at and beyond the hard cap, decaying quadratically as the cap
// approaches (the inverse-depth transform amplifies sensor noise
// quadratically with distance), scaled by the calibration-quality modifier.
func (c *Calibrator) Confidence(depthMeters float64, now time.Time) float64 {
	if !c.fitted || depthMeters <= 0 {
		return 0
	}
	if depthMeters >= c.cfg.HardCapMeters {
		return 0
	}
	ratio := depthMeters / c.cfg.HardCapMeters
	rangeConf := 1.0 - ratio*ratio
	return rangeConf * c.quality(now)
}

// quality is full for FreshWindow after the most recent overlap sample, then
// decays toward the floor with the configured half-life.
func (c *Calibrator) quality(now time.Time) float64 {
	if c.lastSample.IsZero() {
		return c.cfg.QualityFloor
	}
	stale := now.Sub(c.lastSample) - c.cfg.FreshWindow
	if stale <= 0 {
		return 1.0
	}
	if c.cfg.QualityHalfLife <= 0 {
		return c.cfg.QualityFloor
	}
	decay := math.Exp2(-stale.Seconds() / c.cfg.QualityHalfLife.Seconds())
	q := c.cfg.QualityFloor + (1.0-c.cfg.QualityFloor)*decay
	return q
}

// Candidate converts a raw inverse-depth output into a neural depth
// candidate, or reports false while uncalibrated or out of range.
func (c *Calibrator) Candidate(rawInverseDepth float64, at time.Time) (depth.DepthCandidate, bool) {
	d, ok := c.Metric(rawInverseDepth)
	if !ok {
		return depth.DepthCandidate{}, false
	}
	conf := c.Confidence(d, at)
	if conf <= 0 {
		return depth.DepthCandidate{}, false
	}
	return depth.DepthCandidate{
		Source:      depth.SourceNeural,
		DepthMeters: d,
		Confidence:  conf,
		Timestamp:   at,
	}, true
}

// SampleCount returns the current overlap-window population.
func (c *Calibrator) SampleCount() int { return len(c.window) }

func hasDistinct(x []float64) bool {
	for i := 1; i < len(x); i++ {
		if math.Abs(x[i]-x[0]) > 1e-12 {
			return true
		}
	}
	return false
}
