// Package orient maps a travel bearing to the rotation and mirroring applied
// to a vehicle asset so it never renders upside down.
package orient

import (
	"math"

	"github.com/litescript/ls-drive/internal/geo"
)

// EastFacingOffset is the offset for an asset drawn facing east.
const EastFacingOffset = -90.0

// Orientation is the transform applied to the vehicle asset.
type Orientation struct {
	RotationDegrees float64 // Always within [-90, 90]
	Mirrored        bool    // Horizontal flip
}

// Map converts a compass bearing (0 = north, clockwise) into an orientation
// for an asset whose natural direction is described by offset.
func Map(bearing, offset float64) Orientation {
	heading := geo.NormalizeDegrees(bearing + offset)

	switch {
	case heading > 90 && heading < 270:
		return Orientation{RotationDegrees: heading - 180, Mirrored: true}
	case heading >= 270:
		return Orientation{RotationDegrees: heading - 360}
	default:
		return Orientation{RotationDegrees: heading}
	}
}

// Facing returns the compass bearing the rendered asset points to.
// Facing(Map(b, off), off) == NormalizeDegrees(b).
func Facing(o Orientation, offset float64) float64 {
	bearing := o.RotationDegrees - offset
	if o.Mirrored {
		bearing += 180
	}
	return geo.NormalizeDegrees(bearing)
}

// Sector returns the index (0..n-1) of the compass sector containing
// bearing, sector 0 centered on north.
func Sector(bearing float64, n int) int {
	if n <= 0 {
		return 0
	}
	width := 360 / float64(n)
	idx := int(math.Floor(geo.NormalizeDegrees(bearing+width/2) / width))
	return idx % n
}
