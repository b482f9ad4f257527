package terrain

import "math"

// Geographic conversion uses the small-angle meters-per-degree
// approximation with the longitude scale corrected by cos(latitude). At the
// coarse march step and ranges under a few kilometres the approximation
// error is far below the bisection resolution; a full geodesic conversion
// would change long-range high-latitude answers only marginally.
const metersPerDegreeLat = 111320.0

// Pitch limits in radians. pitchBelowHorizontal is positive looking down;
// rays aimed more than 30 degrees above the horizon are not marched.
const (
	maxPitchAboveHorizonRad = 30.0 * math.Pi / 180.0
	maxPitchBelowHorizonRad = math.Pi / 2
)

// Origin is the device position for a ray cast.
type Origin struct {
	Lat, Lon       float64
	AltitudeMeters float64 // metres above mean sea level
}

// Hit is a ray-terrain intersection.
type Hit struct {
	DistanceMeters  float64
	Lat, Lon        float64
	ElevationMeters float64
}

// RayCasterConfig tunes the terrain march.
type RayCasterConfig struct {
	StepMeters          float64 // coarse march interval
	BisectionIterations int     // refinement halvings; accuracy ~ step/2^iters
}

// DefaultRayCasterConfig returns the on-device march tuning: 30 m coarse
// steps refined by 5 bisections, roughly 1 m positional accuracy.
func DefaultRayCasterConfig() RayCasterConfig {
	return RayCasterConfig{
		StepMeters:          30.0,
		BisectionIterations: 5,
	}
}

// RayCaster marches rays through an elevation provider. Stateless across
// calls; any tile caching belongs to the provider.
type RayCaster struct {
	cfg  RayCasterConfig
	elev ElevationProvider
}

// NewRayCaster creates a caster over the given elevation provider.
func NewRayCaster(cfg RayCasterConfig, elev ElevationProvider) *RayCaster {
	if cfg.StepMeters <= 0 {
		cfg.StepMeters = DefaultRayCasterConfig().StepMeters
	}
	if cfg.BisectionIterations <= 0 {
		cfg.BisectionIterations = DefaultRayCasterConfig().BisectionIterations
	}
	return &RayCaster{cfg: cfg, elev: elev}
}

// Intersect marches a ray from the origin and returns its first terrain
// crossing within maxRange, or false when the ray stays above terrain or
// elevation data is unavailable. The absence of a crossing is the sole
// safety mechanism: upward-looking rays within the pitch limit are marched
// normally so over-obstacle targets on rising terrain stay reachable.
//
// pitchBelowHorizontalRad is positive looking down; headingRad is clockwise
// from true north.
func (rc *RayCaster) Intersect(origin Origin, pitchBelowHorizontalRad, headingRad, maxRangeMeters float64) (Hit, bool) {
	if pitchBelowHorizontalRad < -maxPitchAboveHorizonRad || pitchBelowHorizontalRad > maxPitchBelowHorizonRad {
		return Hit{}, false
	}
	if maxRangeMeters <= 0 {
		return Hit{}, false
	}

	// Ray direction in the local East-North-Up frame. Negative pitch
	// (looking upward) yields a positive vertical component so the ray can
	// climb into rising terrain.
	cosPitch := math.Cos(pitchBelowHorizontalRad)
	east := cosPitch * math.Sin(headingRad)
	north := cosPitch * math.Cos(headingRad)
	up := -math.Sin(pitchBelowHorizontalRad)

	above := func(s float64) (clearance float64, ok bool) {
		lat, lon := rc.offsetToGeo(origin, east*s, north*s)
		elev, ok := rc.elev.ElevationAt(lat, lon)
		if !ok {
			return 0, false
		}
		return origin.AltitudeMeters + up*s - elev, true
	}

	prevS := 0.0
	clearance0, ok := above(0)
	if !ok {
		return Hit{}, false
	}
	if clearance0 <= 0 {
		// Origin already at or below terrain; treat as no usable crossing.
		return Hit{}, false
	}

	for s := rc.cfg.StepMeters; s <= maxRangeMeters; s += rc.cfg.StepMeters {
		clearance, ok := above(s)
		if !ok {
			// Tile miss mid-march: degrade to no answer for this frame.
			return Hit{}, false
		}
		if clearance <= 0 {
			hitS := rc.bisect(above, prevS, s)
			lat, lon := rc.offsetToGeo(origin, east*hitS, north*hitS)
			elev, _ := rc.elev.ElevationAt(lat, lon)
			return Hit{
				DistanceMeters:  hitS,
				Lat:             lat,
				Lon:             lon,
				ElevationMeters: elev,
			}, true
		}
		prevS = s
	}
	return Hit{}, false
}

// bisect refines the crossing between a bracketing pair of march distances,
// halving the interval a fixed number of iterations.
func (rc *RayCaster) bisect(above func(float64) (float64, bool), lo, hi float64) float64 {
	for i := 0; i < rc.cfg.BisectionIterations; i++ {
		mid := (lo + hi) / 2
		clearance, ok := above(mid)
		if !ok {
			break
		}
		if clearance > 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// offsetToGeo converts an ENU offset in metres to geographic coordinates.
func (rc *RayCaster) offsetToGeo(origin Origin, eastM, northM float64) (lat, lon float64) {
	lat = origin.Lat + northM/metersPerDegreeLat
	metersPerDegreeLon := metersPerDegreeLat * math.Cos(origin.Lat*math.Pi/180.0)
	if metersPerDegreeLon < 1 {
		metersPerDegreeLon = 1
	}
	lon = origin.Lon + eastM/metersPerDegreeLon
	return lat, lon
}
