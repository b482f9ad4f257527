package groundtruth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ManifestVersion is the schema version written by this package. It must
// stay in lockstep with the dataset preparation tooling.
const ManifestVersion = "1.0.0"

// Intrinsics are the pinhole camera intrinsics for a sample's frame.
type Intrinsics struct {
	Fx float64 `json:"fx"`
	Fy float64 `json:"fy"`
	Cx float64 `json:"cx"`
	Cy float64 `json:"cy"`
}

// Sample is one validation frame with known ground truth.
type Sample struct {
	Dataset            string      `json:"dataset"`
	FrameID            string      `json:"frame_id"`
	GroundTruthCenterM float64     `json:"ground_truth_center_m"`
	LiDARCenterM       *float64    `json:"lidar_center_m"`
	GroundTruthP25M    *float64    `json:"ground_truth_p25_m"`
	GroundTruthP75M    *float64    `json:"ground_truth_p75_m"`
	Intrinsics         *Intrinsics `json:"intrinsics"`
	ImageWidth         int         `json:"image_width"`
	ImageHeight        int         `json:"image_height"`
	SceneType          string      `json:"scene_type"`
	DistanceBand       string      `json:"distance_band"`
	DepthMapFile       string      `json:"depth_map_file,omitempty"`
	ImageFile          string      `json:"image_file,omitempty"`
}

// BandSummary is the per-band accounting embedded in a manifest.
type BandSummary struct {
	MinM  float64 `json:"min_m"`
	MaxM  float64 `json:"max_m"`
	Count int     `json:"count"`
}

// Manifest is the top-level validation dataset description.
type Manifest struct {
	Version        string                 `json:"version"`
	GeneratedDate  string                 `json:"generated_date"`
	DatasetSources []string               `json:"dataset_sources"`
	TotalSamples   int                    `json:"total_samples"`
	DistanceBands  map[string]BandSummary `json:"distance_bands"`
	Samples        []Sample               `json:"samples"`
}

// BuildManifest assembles the band accounting for a sample set.
func BuildManifest(samples []Sample, generatedAt time.Time) *Manifest {
	sources := map[string]bool{}
	for _, s := range samples {
		sources[s.Dataset] = true
	}
	srcList := make([]string, 0, len(sources))
	for s := range sources {
		srcList = append(srcList, s)
	}

	bands := make(map[string]BandSummary, len(Bands))
	for _, b := range Bands {
		count := 0
		for _, s := range samples {
			if s.DistanceBand == b.Name {
				count++
			}
		}
		bands[b.Name] = BandSummary{MinM: b.MinMeters, MaxM: b.MaxMeters, Count: count}
	}

	return &Manifest{
		Version:        ManifestVersion,
		GeneratedDate:  generatedAt.Format(time.RFC3339),
		DatasetSources: srcList,
		TotalSamples:   len(samples),
		DistanceBands:  bands,
		Samples:        samples,
	}
}

// LoadManifest reads a manifest.json.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Version == "" || len(m.Samples) == 0 {
		return nil, fmt.Errorf("manifest %s: missing version or samples", path)
	}
	return &m, nil
}

// Write serialises the manifest to path, compact encoding.
func (m *Manifest) Write(path string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
