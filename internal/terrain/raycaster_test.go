package terrain

import (
	"math"
	"testing"
)

// bisectionTolerance is the worst-case positional error of the default march:
// half a coarse step after the configured number of halvings.
func bisectionTolerance(cfg RayCasterConfig) float64 {
	return cfg.StepMeters / math.Pow(2, float64(cfg.BisectionIterations))
}

func TestRayCaster_FlatTerrainAnalytic(t *testing.T) {
	cfg := DefaultRayCasterConfig()
	rc := NewRayCaster(cfg, FlatProvider{ElevationMeters: 0})

	origin := Origin{Lat: 47.0, Lon: 8.0, AltitudeMeters: 100}
	pitch := 30.0 * math.Pi / 180.0

	hit, ok := rc.Intersect(origin, pitch, 0, 2000)
	if !ok {
		t.Fatalf("downward ray over flat terrain must hit")
	}

	// Slant distance to a flat plane: altitude / sin(pitch) = 200m.
	want := 100.0 / math.Sin(pitch)
	if err := math.Abs(hit.DistanceMeters - want); err > bisectionTolerance(cfg) {
		t.Fatalf("hit distance %v, want %v within %v", hit.DistanceMeters, want, bisectionTolerance(cfg))
	}

	// Heading north: the hit is due north of the origin.
	groundRange := hit.DistanceMeters * math.Cos(pitch)
	wantLat := origin.Lat + groundRange/metersPerDegreeLat
	if math.Abs(hit.Lat-wantLat) > 1e-6 {
		t.Fatalf("hit latitude %v, want %v", hit.Lat, wantLat)
	}
	if math.Abs(hit.Lon-origin.Lon) > 1e-9 {
		t.Fatalf("northbound ray must not drift in longitude, got %v", hit.Lon)
	}
}

func TestRayCaster_HeadingEast(t *testing.T) {
	cfg := DefaultRayCasterConfig()
	rc := NewRayCaster(cfg, FlatProvider{ElevationMeters: 0})

	origin := Origin{Lat: 47.0, Lon: 8.0, AltitudeMeters: 50}
	hit, ok := rc.Intersect(origin, 20.0*math.Pi/180.0, math.Pi/2, 2000)
	if !ok {
		t.Fatalf("eastbound downward ray must hit")
	}
	if hit.Lon <= origin.Lon {
		t.Fatalf("eastbound hit should be east of the origin, got %v", hit.Lon)
	}
	if math.Abs(hit.Lat-origin.Lat) > 1e-6 {
		t.Fatalf("eastbound ray must not drift in latitude, got %v", hit.Lat)
	}
}

func TestRayCaster_UpwardRayIntoRisingTerrain(t *testing.T) {
	// Ridge climbing 115m per km to the north; device looks 3 degrees above
	// the horizon from 1000m altitude. The ray gains ~52m per km, the terrain
	// 115m per km, so they cross around 1.6km.
	origin := Origin{Lat: 47.0, Lon: 8.0, AltitudeMeters: 1000}
	slope := FuncProvider(func(lat, lon float64) (float64, bool) {
		northM := (lat - origin.Lat) * metersPerDegreeLat
		return 900 + 0.115*northM, true
	})

	cfg := DefaultRayCasterConfig()
	rc := NewRayCaster(cfg, slope)

	pitch := -3.0 * math.Pi / 180.0 // above horizontal
	hit, ok := rc.Intersect(origin, pitch, 0, 2500)
	if !ok {
		t.Fatalf("upward ray into rising terrain must still intersect")
	}

	// Analytic crossing: 1000 + sin(3deg)*s = 900 + 0.115*cos(3deg)*s.
	up := math.Sin(3.0 * math.Pi / 180.0)
	ground := 0.115 * math.Cos(3.0*math.Pi/180.0)
	want := 100.0 / (ground - up)
	if err := math.Abs(hit.DistanceMeters - want); err > bisectionTolerance(cfg)+1 {
		t.Fatalf("hit distance %v, want %v", hit.DistanceMeters, want)
	}
}

func TestRayCaster_PitchLimits(t *testing.T) {
	rc := NewRayCaster(DefaultRayCasterConfig(), FlatProvider{})
	origin := Origin{Lat: 47, Lon: 8, AltitudeMeters: 100}

	if _, ok := rc.Intersect(origin, -35.0*math.Pi/180.0, 0, 2000); ok {
		t.Fatalf("ray more than 30 degrees above the horizon must be rejected")
	}
	if _, ok := rc.Intersect(origin, math.Pi/2+0.01, 0, 2000); ok {
		t.Fatalf("pitch beyond straight down must be rejected")
	}
}

func TestRayCaster_NoCrossingWithinRange(t *testing.T) {
	rc := NewRayCaster(DefaultRayCasterConfig(), FlatProvider{ElevationMeters: 0})
	origin := Origin{Lat: 47, Lon: 8, AltitudeMeters: 100}

	// 10 degrees above the horizon over flat ground: the ray only climbs.
	if _, ok := rc.Intersect(origin, -10.0*math.Pi/180.0, 0, 5000); ok {
		t.Fatalf("climbing ray over flat terrain never lands")
	}

	// Shallow dive that would land at ~5.7km stays airborne within 2km.
	if _, ok := rc.Intersect(origin, 1.0*math.Pi/180.0, 0, 2000); ok {
		t.Fatalf("crossing beyond maxRange must not be reported")
	}
}

func TestRayCaster_TileMissDegrades(t *testing.T) {
	origin := Origin{Lat: 47, Lon: 8, AltitudeMeters: 100}

	// Coverage ends 300m north of the origin.
	partial := FuncProvider(func(lat, lon float64) (float64, bool) {
		if (lat-origin.Lat)*metersPerDegreeLat > 300 {
			return 0, false
		}
		return 0, true
	})
	rc := NewRayCaster(DefaultRayCasterConfig(), partial)

	// The crossing would be at ~573m, past the coverage edge.
	if _, ok := rc.Intersect(origin, 10.0*math.Pi/180.0, 0, 2000); ok {
		t.Fatalf("tile miss mid-march must degrade to no answer")
	}

	none := FuncProvider(func(lat, lon float64) (float64, bool) { return 0, false })
	rc = NewRayCaster(DefaultRayCasterConfig(), none)
	if _, ok := rc.Intersect(origin, 10.0*math.Pi/180.0, 0, 2000); ok {
		t.Fatalf("no elevation data at all must degrade to no answer")
	}
}

func TestRayCaster_OriginBelowTerrain(t *testing.T) {
	rc := NewRayCaster(DefaultRayCasterConfig(), FlatProvider{ElevationMeters: 500})
	origin := Origin{Lat: 47, Lon: 8, AltitudeMeters: 100}
	if _, ok := rc.Intersect(origin, 0.2, 0, 2000); ok {
		t.Fatalf("an origin below terrain has no usable crossing")
	}
}

func TestGridTile_BilinearInterpolation(t *testing.T) {
	tile := &GridTile{
		MinLat: 47.0, MinLon: 8.0,
		LatStep: 0.001, LonStep: 0.001,
		Rows: 2, Cols: 2,
		Elevations: []float64{0, 10, 20, 30},
	}

	if e, ok := tile.ElevationAt(47.0, 8.0); !ok || e != 0 {
		t.Fatalf("southwest corner: got %v %v", e, ok)
	}
	if e, ok := tile.ElevationAt(47.001, 8.001); !ok || e != 30 {
		t.Fatalf("northeast corner: got %v %v", e, ok)
	}
	if e, ok := tile.ElevationAt(47.0005, 8.0005); !ok || math.Abs(e-15) > 1e-9 {
		t.Fatalf("centre should interpolate to 15, got %v %v", e, ok)
	}
	if _, ok := tile.ElevationAt(47.002, 8.0); ok {
		t.Fatalf("queries outside the tile report unavailable")
	}
}

func TestHitConfidence(t *testing.T) {
	good := HitQuality{HorizontalAccuracyMeters: 3, HeadingAccuracyRad: 0.01, VerticalAccuracyMeters: 5}
	bad := HitQuality{HorizontalAccuracyMeters: 30, HeadingAccuracyRad: 0.1, VerticalAccuracyMeters: 50}

	near := HitConfidence(good, 200)
	far := HitConfidence(good, 1500)
	if near <= 0 || near > 1 {
		t.Fatalf("confidence out of range: %v", near)
	}
	if far >= near {
		t.Fatalf("the same fix quality is worth less at range: near=%v far=%v", near, far)
	}
	if HitConfidence(bad, 200) >= near {
		t.Fatalf("degraded fixes must cost confidence")
	}
	if HitConfidence(good, 0) != 0 {
		t.Fatalf("no hit distance means no confidence")
	}
}
