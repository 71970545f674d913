// Package geo provides spherical-earth math for route playback.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EarthRadiusMeters is the mean Earth radius used by every distance in this package.
const EarthRadiusMeters = 6371000.0

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"` // Latitude in degrees (north positive)
	Lng float64 `json:"lng"` // Longitude in degrees (east positive)
}

// String formats the coordinate as "lat,lng" with six decimals.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Valid reports whether the coordinate is finite and within WGS84 ranges.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Round returns the coordinate rounded to the given number of decimals.
func (c Coordinate) Round(decimals int) Coordinate {
	scale := math.Pow(10, float64(decimals))
	return Coordinate{
		Lat: math.Round(c.Lat*scale) / scale,
		Lng: math.Round(c.Lng*scale) / scale,
	}
}

// ParseCoordinate parses a string like "43.0686,141.3507".
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Coordinate{}, fmt.Errorf("invalid coordinate %q: want lat,lng", s)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid latitude in %q: %w", s, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid longitude in %q: %w", s, err)
	}

	c := Coordinate{Lat: lat, Lng: lng}
	if !c.Valid() {
		return Coordinate{}, fmt.Errorf("coordinate %q out of range", s)
	}
	return c, nil
}

// Distance returns the great-circle distance between a and b in meters (haversine).
func Distance(a, b Coordinate) float64 {
	phi1 := degToRad(a.Lat)
	phi2 := degToRad(b.Lat)
	dPhi := degToRad(b.Lat - a.Lat)
	dLambda := degToRad(b.Lng - a.Lng)

	sinDPhi := math.Sin(dPhi / 2)
	sinDLambda := math.Sin(dLambda / 2)
	h := sinDPhi*sinDPhi + math.Cos(phi1)*math.Cos(phi2)*sinDLambda*sinDLambda
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Bearing returns the initial bearing from a to b in degrees [0, 360),
// clockwise from north. The result is meaningless when a == b.
func Bearing(a, b Coordinate) float64 {
	phi1 := degToRad(a.Lat)
	phi2 := degToRad(b.Lat)
	dLambda := degToRad(b.Lng - a.Lng)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)

	return NormalizeDegrees(radToDeg(math.Atan2(y, x)))
}

// Interpolate returns the point at fraction t between a and b, linear in
// lat/lng space. Fine for the short segments routing services return.
func Interpolate(a, b Coordinate, t float64) Coordinate {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	return Coordinate{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lng: a.Lng + (b.Lng-a.Lng)*t,
	}
}

// SegmentLength returns the length of segment i (path[i] -> path[i+1]),
// or 0 if i does not name a segment.
func SegmentLength(path []Coordinate, i int) float64 {
	if i < 0 || i >= len(path)-1 {
		return 0
	}
	return Distance(path[i], path[i+1])
}

// PathLength returns the total length of path in meters.
func PathLength(path []Coordinate) float64 {
	var total float64
	for i := 0; i < len(path)-1; i++ {
		total += Distance(path[i], path[i+1])
	}
	return total
}

// RemainingDistance returns the meters left from a cursor positioned
// segProgress meters into segment segIndex. NaN for an empty path.
func RemainingDistance(path []Coordinate, segIndex int, segProgress float64) float64 {
	if len(path) == 0 {
		return math.NaN()
	}
	if segIndex < 0 {
		segIndex = 0
	}
	if segIndex >= len(path)-1 {
		return 0
	}

	meters := math.Max(0, SegmentLength(path, segIndex)-segProgress)
	for j := segIndex + 1; j < len(path)-1; j++ {
		meters += Distance(path[j], path[j+1])
	}
	return meters
}

// NormalizeDegrees maps any angle into [0, 360).
func NormalizeDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d = 0
	}
	return d
}

func degToRad(d float64) float64 {
	return d * math.Pi / 180
}

func radToDeg(r float64) float64 {
	return r * 180 / math.Pi
}
