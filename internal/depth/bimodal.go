package depth

import "math"

// BimodalConfig tunes the scene bimodality classifier.
type BimodalConfig struct {
	MinDepthMeters       float64 // samples below this are discarded
	MaxDepthMeters       float64 // samples at or above this are discarded
	HistogramBins        int     // log-scale bins across [MinDepth, MaxDepth)
	PeakSeparationRatio  float64 // far/near peak distance ratio required for bimodality
	MinPeakFraction      float64 // each cluster must cover this fraction of the ROI
	DEMToleranceFraction float64 // relative tolerance for DEM agreement with the far peak
}

// DefaultBimodalConfig returns tuning for a centre-ROI depth patch.
func DefaultBimodalConfig() BimodalConfig {
	return BimodalConfig{
		MinDepthMeters:       0.1,
		MaxDepthMeters:       2000.0,
		HistogramBins:        48,
		PeakSeparationRatio:  2.0,
		MinPeakFraction:      0.10,
		DEMToleranceFraction: 0.30,
	}
}

// BimodalResult classifies the depth distribution of the region of interest
// around the aim point. Recomputed from scratch each frame; never mutated.
type BimodalResult struct {
	IsBimodal bool

	// Peak depths in metres. For a unimodal scene NearPeak carries the single
	// mode and FarPeak is zero.
	NearPeak float64
	FarPeak  float64

	// Fractions of the ROI covered by each cluster.
	NearFraction float64
	FarFraction  float64

	// SplitDepth is the valley between the two clusters; a measurement below
	// it belongs to the near cluster. Zero when unimodal.
	SplitDepth float64

	// DEMAgreesWithFar is true when an externally supplied terrain estimate
	// fell within tolerance of the far peak.
	DEMAgreesWithFar bool

	// ValidSamples is the number of in-range finite samples used.
	ValidSamples int
}

// InNearCluster reports whether a depth belongs to the near cluster of a
// bimodal scene.
func (r BimodalResult) InNearCluster(d float64) bool {
	return r.IsBimodal && d > 0 && d < r.SplitDepth
}

// BimodalAnalyzer builds a log-scale histogram over an ROI depth patch and
// classifies it as unimodal or bimodal.
type BimodalAnalyzer struct {
	cfg BimodalConfig
}

// NewBimodalAnalyzer creates an analyzer with the given tuning.
func NewBimodalAnalyzer(cfg BimodalConfig) *BimodalAnalyzer {
	if cfg.HistogramBins <= 0 {
		cfg.HistogramBins = DefaultBimodalConfig().HistogramBins
	}
	return &BimodalAnalyzer{cfg: cfg}
}

// Analyze classifies the ROI samples. demEstimate is an optional terrain
// distance used only to set DEMAgreesWithFar; pass demOK=false when no
// terrain estimate is available this frame.
func (a *BimodalAnalyzer) Analyze(samples []float64, demEstimate float64, demOK bool) BimodalResult {
	cfg := a.cfg
	logMin := math.Log(cfg.MinDepthMeters)
	logMax := math.Log(cfg.MaxDepthMeters)
	binWidth := (logMax - logMin) / float64(cfg.HistogramBins)

	hist := make([]int, cfg.HistogramBins)
	valid := 0
	for _, d := range samples {
		if math.IsNaN(d) || math.IsInf(d, 0) || d < cfg.MinDepthMeters || d >= cfg.MaxDepthMeters {
			continue
		}
		bin := int((math.Log(d) - logMin) / binWidth)
		if bin < 0 {
			bin = 0
		} else if bin >= cfg.HistogramBins {
			bin = cfg.HistogramBins - 1
		}
		hist[bin]++
		valid++
	}

	res := BimodalResult{ValidSamples: valid}
	if valid == 0 || len(samples) == 0 {
		return res
	}

	// Light 3-bin box smoothing suppresses single-bin spikes before peak
	// finding.
	smoothed := make([]float64, cfg.HistogramBins)
	for i := range hist {
		sum := float64(hist[i])
		n := 1.0
		if i > 0 {
			sum += float64(hist[i-1])
			n++
		}
		if i+1 < len(hist) {
			sum += float64(hist[i+1])
			n++
		}
		smoothed[i] = sum / n
	}

	first, second := topTwoPeaks(smoothed)
	binCenter := func(i int) float64 {
		return math.Exp(logMin + (float64(i)+0.5)*binWidth)
	}

	roi := float64(len(samples))
	if second < 0 {
		res.NearPeak = binCenter(first)
		res.NearFraction = float64(valid) / roi
		return res
	}

	nearBin, farBin := first, second
	if nearBin > farBin {
		nearBin, farBin = farBin, nearBin
	}

	// Split the histogram at the emptiest bin between the peaks and weigh the
	// two cluster masses.
	valley := nearBin
	for i := nearBin + 1; i < farBin; i++ {
		if smoothed[i] < smoothed[valley] || valley == nearBin {
			valley = i
		}
	}
	nearCount, farCount := 0, 0
	nearSumLog, farSumLog := 0.0, 0.0
	for i, c := range hist {
		if c == 0 {
			continue
		}
		if i <= valley {
			nearCount += c
			nearSumLog += float64(c) * math.Log(binCenter(i))
		} else {
			farCount += c
			farSumLog += float64(c) * math.Log(binCenter(i))
		}
	}
	if nearCount == 0 || farCount == 0 {
		res.NearPeak = binCenter(first)
		res.NearFraction = float64(valid) / roi
		return res
	}

	nearPeak := math.Exp(nearSumLog / float64(nearCount))
	farPeak := math.Exp(farSumLog / float64(farCount))
	nearFrac := float64(nearCount) / roi
	farFrac := float64(farCount) / roi

	res.NearPeak = nearPeak
	res.FarPeak = farPeak
	res.NearFraction = nearFrac
	res.FarFraction = farFrac
	res.SplitDepth = binCenter(valley + 1)

	if farPeak >= cfg.PeakSeparationRatio*nearPeak &&
		nearFrac >= cfg.MinPeakFraction && farFrac >= cfg.MinPeakFraction {
		res.IsBimodal = true
	} else {
		// Not separable enough: report the dominant mode as unimodal.
		res.IsBimodal = false
		if farFrac > nearFrac {
			res.NearPeak = farPeak
		}
		res.FarPeak = 0
		res.SplitDepth = 0
		res.NearFraction = float64(valid) / roi
		res.FarFraction = 0
		return res
	}

	if demOK && demEstimate > 0 {
		rel := math.Abs(demEstimate-farPeak) / farPeak
		res.DEMAgreesWithFar = rel <= cfg.DEMToleranceFraction
	}
	return res
}

// topTwoPeaks returns the indices of the two strongest local maxima, second
// being -1 when only one exists.
func topTwoPeaks(h []float64) (first, second int) {
	first, second = -1, -1
	for i := range h {
		if h[i] <= 0 {
			continue
		}
		left := i == 0 || h[i] >= h[i-1]
		right := i == len(h)-1 || h[i] > h[i+1]
		if !(left && right) {
			continue
		}
		switch {
		case first < 0 || h[i] > h[first]:
			second = first
			first = i
		case second < 0 || h[i] > h[second]:
			second = i
		}
	}
	if first < 0 {
		// Degenerate: fall back to the global max.
		max := 0
		for i := range h {
			if h[i] > h[max] {
				max = i
			}
		}
		return max, -1
	}
	return first, second
}
