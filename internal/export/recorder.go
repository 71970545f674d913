package export

import (
	"time"

	"github.com/litescript/ls-drive/internal/geo"
)

// Recorder samples vehicle positions into a track, keeping at most one
// point per interval plus the final one.
type Recorder struct {
	interval time.Duration
	points   []TrackPoint
}

// NewRecorder creates a recorder. A non-positive interval keeps every
// distinct position.
func NewRecorder(interval time.Duration) *Recorder {
	return &Recorder{interval: interval}
}

// Record adds c at t unless it repeats the last position or arrives
// within the interval.
func (r *Recorder) Record(t time.Time, c geo.Coordinate) bool {
	if n := len(r.points); n > 0 {
		last := r.points[n-1]
		if last.Position == c {
			return false
		}
		if t.Sub(last.Time) < r.interval {
			return false
		}
	}
	r.points = append(r.points, TrackPoint{Time: t, Position: c})
	return true
}

// Finish records c at t regardless of the interval, unless it repeats the
// last position.
func (r *Recorder) Finish(t time.Time, c geo.Coordinate) {
	if n := len(r.points); n > 0 && r.points[n-1].Position == c {
		return
	}
	r.points = append(r.points, TrackPoint{Time: t, Position: c})
}

// Points returns a copy of the recorded track.
func (r *Recorder) Points() []TrackPoint {
	out := make([]TrackPoint, len(r.points))
	copy(out, r.points)
	return out
}

// Reset discards the track.
func (r *Recorder) Reset() {
	r.points = nil
}
