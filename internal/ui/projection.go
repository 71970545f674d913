package ui

import (
	"math"

	"github.com/litescript/ls-drive/internal/geo"
)

const (
	tileSize = 256.0

	// A terminal cell covers roughly twice as many pixels vertically.
	cellWidthPx  = 8.0
	cellHeightPx = 16.0

	maxMercatorLat = 85.05112878

	minZoom = 1
)

// worldPixel projects c to Web Mercator world pixels at zoom.
func worldPixel(c geo.Coordinate, zoom float64) (float64, float64) {
	lat := math.Max(-maxMercatorLat, math.Min(maxMercatorLat, c.Lat))
	latRad := lat * math.Pi / 180
	n := math.Pow(2, zoom) * tileSize
	x := (c.Lng + 180) / 360 * n
	y := (1 - math.Asinh(math.Tan(latRad))/math.Pi) / 2 * n
	return x, y
}

// fromWorldPixel is the inverse of worldPixel.
func fromWorldPixel(x, y, zoom float64) geo.Coordinate {
	n := math.Pow(2, zoom) * tileSize
	lng := x/n*360 - 180
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*y/n)))
	return geo.Coordinate{Lat: latRad * 180 / math.Pi, Lng: lng}
}

// fitZoom returns the largest zoom in [minZoom, maxZoom] at which b fits in
// a width x height cell viewport.
func fitZoom(b geo.Bounds, width, height, maxZoom int) int {
	if width <= 0 || height <= 0 {
		return maxZoom
	}
	for z := maxZoom; z > minZoom; z-- {
		x1, y1 := worldPixel(geo.Coordinate{Lat: b.NorthEast.Lat, Lng: b.SouthWest.Lng}, float64(z))
		x2, y2 := worldPixel(geo.Coordinate{Lat: b.SouthWest.Lat, Lng: b.NorthEast.Lng}, float64(z))
		if (x2-x1)/cellWidthPx <= float64(width-2) && (y2-y1)/cellHeightPx <= float64(height-2) {
			return z
		}
	}
	return minZoom
}

// easeOutCubic eases t in [0, 1].
func easeOutCubic(t float64) float64 {
	return 1 - math.Pow(1-t, 3)
}

// lerp linear interpolation
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// lerpCoordinate interpolates between two map centers.
func lerpCoordinate(a, b geo.Coordinate, t float64) geo.Coordinate {
	return geo.Coordinate{Lat: lerp(a.Lat, b.Lat, t), Lng: lerp(a.Lng, b.Lng, t)}
}
