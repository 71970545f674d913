package geo

import "math"

// Bounds is an axis-aligned lat/lng box.
type Bounds struct {
	SouthWest Coordinate
	NorthEast Coordinate
}

// BoundsOf returns the smallest box containing every point of path.
// The zero Bounds is returned for an empty path.
func BoundsOf(path []Coordinate) Bounds {
	if len(path) == 0 {
		return Bounds{}
	}

	b := Bounds{SouthWest: path[0], NorthEast: path[0]}
	for _, p := range path[1:] {
		b.SouthWest.Lat = math.Min(b.SouthWest.Lat, p.Lat)
		b.SouthWest.Lng = math.Min(b.SouthWest.Lng, p.Lng)
		b.NorthEast.Lat = math.Max(b.NorthEast.Lat, p.Lat)
		b.NorthEast.Lng = math.Max(b.NorthEast.Lng, p.Lng)
	}
	return b
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Coordinate {
	return Interpolate(b.SouthWest, b.NorthEast, 0.5)
}
