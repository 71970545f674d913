package geocode

import (
	"time"

	"github.com/litescript/ls-drive/internal/geo"
)

// DefaultTrackInterval is the current-address lookup window while driving.
const DefaultTrackInterval = 5 * time.Second

// Request is a reverse lookup the tracker wants performed.
type Request struct {
	Coordinate geo.Coordinate
	Token      uint64
}

// Tracker decides when the current address of a moving vehicle needs a new
// lookup. Positions are pushed at frame rate; at most one lookup is due per
// window, using the latest position rounded to six decimals, and only when
// it differs from the previous lookup. Only the newest request's result
// should be shown (Accept).
//
// Tracker is not safe for concurrent use.
type Tracker struct {
	window time.Duration

	pending     geo.Coordinate
	hasPending  bool
	windowStart time.Time

	last    geo.Coordinate
	hasLast bool
	token   uint64
}

// NewTracker creates a tracker with the given window.
func NewTracker(window time.Duration) *Tracker {
	return &Tracker{window: window}
}

// Push records the latest position. The first push after a lookup opens
// a new window.
func (t *Tracker) Push(now time.Time, c geo.Coordinate) {
	if !t.hasPending {
		t.windowStart = now
		t.hasPending = true
	}
	t.pending = c
}

// Due returns a lookup request once the open window has elapsed and the
// rounded position changed since the last request.
func (t *Tracker) Due(now time.Time) (Request, bool) {
	if !t.hasPending || now.Sub(t.windowStart) < t.window {
		return Request{}, false
	}
	t.hasPending = false

	c := t.pending.Round(cacheDecimals)
	if t.hasLast && c == t.last {
		return Request{}, false
	}
	t.last = c
	t.hasLast = true
	t.token++
	return Request{Coordinate: c, Token: t.token}, true
}

// Immediate returns a request for c that supersedes anything in flight.
// Used on arrival.
func (t *Tracker) Immediate(c geo.Coordinate) Request {
	t.hasPending = false
	t.last = c.Round(cacheDecimals)
	t.hasLast = true
	t.token++
	return Request{Coordinate: t.last, Token: t.token}
}

// Accept reports whether a result for token is still the newest.
func (t *Tracker) Accept(token uint64) bool {
	return token == t.token
}

// Reset drops the pending window and the duplicate filter. Results for
// earlier tokens are no longer accepted.
func (t *Tracker) Reset() {
	t.hasPending = false
	t.hasLast = false
	t.token++
}
