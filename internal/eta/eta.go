// Package eta estimates arrival time from remaining distance and speed.
package eta

import (
	"fmt"
	"math"
	"time"

	// Embedded zone database so Asia/Tokyo resolves on hosts without one.
	_ "time/tzdata"
)

const (
	// DefaultTimeZone is the zone arrival times are displayed in.
	DefaultTimeZone = "Asia/Tokyo"

	// DefaultInterval is the minimum time between two evaluations.
	DefaultInterval = 500 * time.Millisecond

	// Layout is the fixed arrival time format.
	Layout = "2006/01/02 15:04:05"
)

// Seconds returns remaining/speed. The second result is false when either
// input cannot produce a meaningful estimate.
func Seconds(remainingMeters, speedMPS float64) (float64, bool) {
	if math.IsNaN(remainingMeters) || math.IsInf(remainingMeters, 0) || remainingMeters < 0 {
		return 0, false
	}
	if math.IsNaN(speedMPS) || math.IsInf(speedMPS, 0) || speedMPS <= 0 {
		return 0, false
	}
	return remainingMeters / speedMPS, true
}

// LoadLocation resolves a zone name. An empty name means DefaultTimeZone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimeZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return loc, nil
}

// Format renders t in loc using Layout.
func Format(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(Layout)
}

// Result is one ETA evaluation.
type Result struct {
	Known    bool          // False means the display should be blanked
	Duration time.Duration // Time left at current speed
	Arrival  time.Time
	Text     string // Arrival formatted with Layout, empty when unknown
}

// Calculator throttles ETA evaluation to at most one per interval.
// It is not safe for concurrent use.
type Calculator struct {
	interval time.Duration
	location *time.Location
	last     time.Time
}

// NewCalculator creates a calculator. A non-positive interval disables
// throttling; a nil location means UTC.
func NewCalculator(interval time.Duration, loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	return &Calculator{interval: interval, location: loc}
}

// Evaluate computes the ETA at now. It returns false without recomputing
// when the previous evaluation happened less than one interval ago; the
// caller keeps showing the previous value in that case.
func (c *Calculator) Evaluate(now time.Time, remainingMeters, speedMPS float64) (Result, bool) {
	if !c.last.IsZero() && now.Sub(c.last) < c.interval {
		return Result{}, false
	}
	c.last = now
	return c.compute(now, remainingMeters, speedMPS), true
}

// Force computes the ETA regardless of the throttle and restarts the interval.
func (c *Calculator) Force(now time.Time, remainingMeters, speedMPS float64) Result {
	c.last = now
	return c.compute(now, remainingMeters, speedMPS)
}

// Reset forgets the last evaluation so the next call always computes.
func (c *Calculator) Reset() {
	c.last = time.Time{}
}

func (c *Calculator) compute(now time.Time, remainingMeters, speedMPS float64) Result {
	secs, ok := Seconds(remainingMeters, speedMPS)
	if !ok {
		return Result{}
	}
	// Durations beyond ~292 years overflow; treat as unknown.
	if secs > math.MaxInt64/float64(time.Second) {
		return Result{}
	}

	d := time.Duration(secs * float64(time.Second))
	arrival := now.Add(d)
	return Result{
		Known:    true,
		Duration: d,
		Arrival:  arrival,
		Text:     Format(arrival, c.location),
	}
}
