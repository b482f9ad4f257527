package depth

import "time"

// FusionConfig gathers the tuning for a full selection pipeline. Pass it
// explicitly; there is no ambient shared state.
type FusionConfig struct {
	// Near-range band in which the time-of-flight sensor is authoritative.
	NearBandMinMeters float64
	NearBandMaxMeters float64

	// NeuralHardCapMeters excludes neural candidates at or beyond this
	// distance regardless of what else is absent.
	NeuralHardCapMeters float64

	// Per-source staleness bounds: a candidate older than its bound is
	// treated as absent for the frame.
	Staleness map[SourceKind]time.Duration

	Track   TrackConfig
	Motion  MotionPredictorConfig
	Bimodal BimodalConfig
}

// DefaultFusionConfig returns the tuning used on device. The staleness
// bounds reflect each modality's cadence: the sensor publishes at tens of
// Hz, a neural inference at a few Hz, a terrain ray-cast at 1-2 Hz, and a
// confirmed stadiametric bracket stays valid until the operator clears it.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		NearBandMinMeters:   0.3,
		NearBandMaxMeters:   5.0,
		NeuralHardCapMeters: 350.0,
		Staleness: map[SourceKind]time.Duration{
			SourceLiDAR:        250 * time.Millisecond,
			SourceNeural:       time.Second,
			SourceDEM:          3 * time.Second,
			SourceObject:       time.Second,
			SourceGeometric:    time.Second,
			SourceStadiametric: 30 * time.Second,
		},
		Track:   DefaultTrackConfig(),
		Motion:  DefaultMotionPredictorConfig(),
		Bimodal: DefaultBimodalConfig(),
	}
}
