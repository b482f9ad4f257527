package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/rangefinder/internal/depth"
)

// TuningConfig is the JSON tuning surface for the fusion pipeline. All
// fields are optional pointers so a partial file overrides only what it
// names; everything else keeps the compiled-in defaults.
type TuningConfig struct {
	// Selection params
	NearBandMinMeters   *float64 `json:"near_band_min_meters,omitempty"`
	NearBandMaxMeters   *float64 `json:"near_band_max_meters,omitempty"`
	NeuralHardCapMeters *float64 `json:"neural_hard_cap_meters,omitempty"`

	// Track params
	BaseMeasurementNoise   *float64 `json:"base_measurement_noise,omitempty"`
	ProcessNoiseStationary *float64 `json:"process_noise_stationary,omitempty"`
	ProcessNoiseTracking   *float64 `json:"process_noise_tracking,omitempty"`
	ProcessNoisePanning    *float64 `json:"process_noise_panning,omitempty"`
	MaxDistanceFactor      *float64 `json:"max_distance_factor,omitempty"`

	// Bimodal params
	PeakSeparationRatio  *float64 `json:"peak_separation_ratio,omitempty"`
	MinPeakFraction      *float64 `json:"min_peak_fraction,omitempty"`
	DEMToleranceFraction *float64 `json:"dem_tolerance_fraction,omitempty"`

	// Staleness bounds, duration strings like "250ms"
	LiDARStaleness  *string `json:"lidar_staleness,omitempty"`
	NeuralStaleness *string `json:"neural_staleness,omitempty"`
	DEMStaleness    *string `json:"dem_staleness,omitempty"`

	// Motion params
	MaxAccumulatedMeters *float64 `json:"max_accumulated_meters,omitempty"`
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the file stay nil, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &TuningConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that set values are usable.
func (c *TuningConfig) Validate() error {
	if c.NearBandMinMeters != nil && *c.NearBandMinMeters <= 0 {
		return fmt.Errorf("near_band_min_meters must be positive, got %f", *c.NearBandMinMeters)
	}
	if c.NearBandMinMeters != nil && c.NearBandMaxMeters != nil &&
		*c.NearBandMaxMeters <= *c.NearBandMinMeters {
		return fmt.Errorf("near_band_max_meters (%f) must exceed near_band_min_meters (%f)",
			*c.NearBandMaxMeters, *c.NearBandMinMeters)
	}
	if c.NeuralHardCapMeters != nil && *c.NeuralHardCapMeters <= 0 {
		return fmt.Errorf("neural_hard_cap_meters must be positive, got %f", *c.NeuralHardCapMeters)
	}
	if c.MinPeakFraction != nil && (*c.MinPeakFraction < 0 || *c.MinPeakFraction > 1) {
		return fmt.Errorf("min_peak_fraction must be between 0 and 1, got %f", *c.MinPeakFraction)
	}
	if c.PeakSeparationRatio != nil && *c.PeakSeparationRatio < 1 {
		return fmt.Errorf("peak_separation_ratio must be at least 1, got %f", *c.PeakSeparationRatio)
	}
	if c.DEMToleranceFraction != nil && (*c.DEMToleranceFraction <= 0 || *c.DEMToleranceFraction > 1) {
		return fmt.Errorf("dem_tolerance_fraction must be in (0, 1], got %f", *c.DEMToleranceFraction)
	}
	for name, v := range map[string]*string{
		"lidar_staleness":  c.LiDARStaleness,
		"neural_staleness": c.NeuralStaleness,
		"dem_staleness":    c.DEMStaleness,
	} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}
	return nil
}

// Apply overlays the set fields onto a FusionConfig. Validate must have
// passed; duration strings that fail to parse here are skipped.
func (c *TuningConfig) Apply(fc *depth.FusionConfig) {
	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setF(&fc.NearBandMinMeters, c.NearBandMinMeters)
	setF(&fc.NearBandMaxMeters, c.NearBandMaxMeters)
	setF(&fc.NeuralHardCapMeters, c.NeuralHardCapMeters)
	setF(&fc.Track.BaseMeasurementNoise, c.BaseMeasurementNoise)
	setF(&fc.Track.ProcessNoiseStationary, c.ProcessNoiseStationary)
	setF(&fc.Track.ProcessNoiseTracking, c.ProcessNoiseTracking)
	setF(&fc.Track.ProcessNoisePanning, c.ProcessNoisePanning)
	setF(&fc.Track.MaxDistanceFactor, c.MaxDistanceFactor)
	setF(&fc.Bimodal.PeakSeparationRatio, c.PeakSeparationRatio)
	setF(&fc.Bimodal.MinPeakFraction, c.MinPeakFraction)
	setF(&fc.Bimodal.DEMToleranceFraction, c.DEMToleranceFraction)
	setF(&fc.Motion.MaxAccumulatedMeters, c.MaxAccumulatedMeters)

	setDur := func(kind depth.SourceKind, src *string) {
		if src == nil || *src == "" {
			return
		}
		if d, err := time.ParseDuration(*src); err == nil {
			fc.Staleness[kind] = d
		}
	}
	setDur(depth.SourceLiDAR, c.LiDARStaleness)
	setDur(depth.SourceNeural, c.NeuralStaleness)
	setDur(depth.SourceDEM, c.DEMStaleness)
}
