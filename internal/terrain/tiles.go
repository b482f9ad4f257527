// Package terrain marches rays from a device position through a digital
// elevation model to find ground intersections for long-range distance
// estimation.
package terrain

import "math"

// ElevationProvider answers point elevation queries. Implementations own
// their tile cache and any I/O; a query may legitimately report unavailable
// (no fix, tile miss) and the caller degrades for that frame rather than
// blocking. All elevations are metres above mean sea level.
type ElevationProvider interface {
	ElevationAt(lat, lon float64) (float64, bool)
}

// GridTile is an in-memory elevation grid with bilinear interpolation,
// used by tests, simulation, and as the resolved-tile representation handed
// to the ray caster. Row 0 is the southern edge.
type GridTile struct {
	MinLat, MinLon   float64
	LatStep, LonStep float64 // degrees per cell
	Rows, Cols       int
	Elevations       []float64 // row-major, len Rows*Cols
}

// ElevationAt returns the bilinearly interpolated elevation at a point, or
// false outside the tile.
func (t *GridTile) ElevationAt(lat, lon float64) (float64, bool) {
	if t.Rows < 2 || t.Cols < 2 || len(t.Elevations) < t.Rows*t.Cols {
		return 0, false
	}
	fy := (lat - t.MinLat) / t.LatStep
	fx := (lon - t.MinLon) / t.LonStep
	if fy < 0 || fx < 0 || fy > float64(t.Rows-1) || fx > float64(t.Cols-1) {
		return 0, false
	}

	y0 := int(math.Floor(fy))
	x0 := int(math.Floor(fx))
	if y0 >= t.Rows-1 {
		y0 = t.Rows - 2
	}
	if x0 >= t.Cols-1 {
		x0 = t.Cols - 2
	}
	dy := fy - float64(y0)
	dx := fx - float64(x0)

	e00 := t.Elevations[y0*t.Cols+x0]
	e01 := t.Elevations[y0*t.Cols+x0+1]
	e10 := t.Elevations[(y0+1)*t.Cols+x0]
	e11 := t.Elevations[(y0+1)*t.Cols+x0+1]

	top := e00*(1-dx) + e01*dx
	bottom := e10*(1-dx) + e11*dx
	return top*(1-dy) + bottom*dy, true
}

// FlatProvider answers every query with a constant elevation. Used for
// analytic accuracy tests and open-water fallback.
type FlatProvider struct {
	ElevationMeters float64
}

// ElevationAt implements ElevationProvider.
func (f FlatProvider) ElevationAt(lat, lon float64) (float64, bool) {
	return f.ElevationMeters, true
}

// FuncProvider adapts a function to ElevationProvider, for synthetic
// terrain shapes in tests and simulation.
type FuncProvider func(lat, lon float64) (float64, bool)

// ElevationAt implements ElevationProvider.
func (f FuncProvider) ElevationAt(lat, lon float64) (float64, bool) { return f(lat, lon) }
