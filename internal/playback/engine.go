// Package playback advances a simulated vehicle along a route.
//
// The engine owns the route geometry and a cursor (segment index plus meters
// travelled inside that segment). It has no timer of its own: a scheduler
// (the TUI frame tick, the headless loop, or a test) calls Tick with the
// elapsed wall-clock time, and the engine publishes position updates to its
// subscribers. All methods must be called from a single goroutine.
package playback

import (
	"errors"
	"math"
	"slices"

	"github.com/litescript/ls-drive/internal/geo"
)

// arrivalEpsilon is the residual, in meters, treated as reaching a segment end.
const arrivalEpsilon = 1e-6

var (
	// ErrDegenerateRoute is returned by Load for paths with fewer than two points.
	ErrDegenerateRoute = errors.New("playback: route needs at least two points")

	// ErrNoRoute is returned by Start when no route is loaded.
	ErrNoRoute = errors.New("playback: no route loaded")

	// ErrFinished is returned by Start once the vehicle has reached the end.
	ErrFinished = errors.New("playback: route already finished")
)

// State is the engine lifecycle state.
type State int

const (
	StateIdle     State = iota // No route loaded
	StateLoaded                // Route loaded, cursor at start
	StateRunning               // Ticks advance the cursor
	StateStopped               // Halted externally, cursor kept for resume
	StateFinished              // Cursor reached the end
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoaded:
		return "loaded"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// SpeedFunc returns the current speed in meters per second.
// It is called on every tick so speed changes apply immediately.
type SpeedFunc func() float64

// Update is published for every segment boundary crossed and for the final
// interpolated position of each tick.
type Update struct {
	Position     geo.Coordinate
	Prev         geo.Coordinate // Start of the segment used for heading
	Next         geo.Coordinate // End of the segment used for heading
	SegmentIndex int
	Heading      float64 // Bearing Prev -> Next in degrees
	Arrived      bool    // Set on the update that reaches the destination
}

// Listener receives position updates.
type Listener func(Update)

// Cursor is the engine's position within the route.
type Cursor struct {
	SegmentIndex  int
	SegmentMeters float64
}

// Engine is the route playback state machine.
type Engine struct {
	path      []geo.Coordinate
	segIndex  int
	segMeters float64
	state     State
	speed     SpeedFunc
	heading   float64 // Last non-degenerate bearing

	subs   []subscription
	nextID int
}

// New creates an idle engine.
func New() *Engine {
	return &Engine{}
}

// Load replaces the route and rewinds the cursor. Any running playback is
// cancelled. Paths with fewer than two points are rejected and leave the
// engine untouched.
func (e *Engine) Load(path []geo.Coordinate) error {
	if len(path) < 2 {
		return ErrDegenerateRoute
	}

	e.path = make([]geo.Coordinate, len(path))
	copy(e.path, path)
	e.segIndex = 0
	e.segMeters = 0
	e.heading = 0
	e.state = StateLoaded
	return nil
}

// Clear discards the route and returns to Idle.
func (e *Engine) Clear() {
	e.path = nil
	e.segIndex = 0
	e.segMeters = 0
	e.heading = 0
	e.speed = nil
	e.state = StateIdle
}

// Start begins (or resumes) playback. Calling Start while running is a no-op.
// One update at the current cursor is published immediately.
func (e *Engine) Start(speed SpeedFunc) error {
	switch e.state {
	case StateRunning:
		return nil
	case StateIdle:
		return ErrNoRoute
	case StateFinished:
		return ErrFinished
	}

	e.speed = speed
	e.state = StateRunning

	// At the very start there is no previous segment, so the first two
	// points give the heading reference.
	pos, _ := e.Position()
	e.emit(pos, e.path[e.segIndex], e.path[e.segIndex+1], false)
	return nil
}

// Stop halts playback, keeping the cursor. No-op unless running.
func (e *Engine) Stop() {
	if e.state != StateRunning {
		return
	}
	e.state = StateStopped
}

// Tick advances the cursor by speed * elapsedSeconds meters, crossing as
// many segments as needed. Only effective while running.
func (e *Engine) Tick(elapsedSeconds float64) {
	if e.state != StateRunning {
		return
	}
	if elapsedSeconds < 0 || math.IsNaN(elapsedSeconds) {
		elapsedSeconds = 0
	}

	speed := 0.0
	if e.speed != nil {
		speed = e.speed()
	}
	if speed <= 0 || math.IsNaN(speed) {
		return
	}

	remaining := speed * elapsedSeconds
	if math.IsInf(remaining, 1) {
		remaining = math.MaxFloat64
	}

	last := len(e.path) - 1
	for remaining > 0 && e.segIndex < last {
		a := e.path[e.segIndex]
		b := e.path[e.segIndex+1]
		segLen := geo.Distance(a, b)
		distLeft := segLen - e.segMeters

		if remaining < distLeft-arrivalEpsilon {
			e.segMeters += remaining
			remaining = 0
			e.emit(geo.Interpolate(a, b, e.segMeters/segLen), a, b, false)
		} else {
			remaining -= distLeft
			e.segIndex++
			e.segMeters = 0
			e.emit(b, a, b, e.segIndex >= last)
		}
	}

	if e.segIndex >= last {
		e.state = StateFinished
	}
}

// RemainingMeters returns the distance left to the destination, or NaN
// when no route is loaded.
func (e *Engine) RemainingMeters() float64 {
	return geo.RemainingDistance(e.path, e.segIndex, e.segMeters)
}

// TotalMeters returns the route length, 0 when idle.
func (e *Engine) TotalMeters() float64 {
	return geo.PathLength(e.path)
}

// Progress returns the travelled fraction of the route in [0, 1].
func (e *Engine) Progress() float64 {
	total := e.TotalMeters()
	if total <= 0 {
		if e.state == StateFinished {
			return 1
		}
		return 0
	}
	p := 1 - e.RemainingMeters()/total
	return math.Max(0, math.Min(1, p))
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Running reports whether ticks currently advance the cursor.
func (e *Engine) Running() bool {
	return e.state == StateRunning
}

// Cursor returns the current cursor.
func (e *Engine) Cursor() Cursor {
	return Cursor{SegmentIndex: e.segIndex, SegmentMeters: e.segMeters}
}

// Path returns a copy of the loaded route.
func (e *Engine) Path() []geo.Coordinate {
	if e.path == nil {
		return nil
	}
	out := make([]geo.Coordinate, len(e.path))
	copy(out, e.path)
	return out
}

// Position returns the interpolated vehicle position and whether a route is loaded.
func (e *Engine) Position() (geo.Coordinate, bool) {
	if len(e.path) == 0 {
		return geo.Coordinate{}, false
	}
	if e.segIndex >= len(e.path)-1 {
		return e.path[len(e.path)-1], true
	}
	a := e.path[e.segIndex]
	b := e.path[e.segIndex+1]
	segLen := geo.Distance(a, b)
	if segLen <= 0 {
		return a, true
	}
	return geo.Interpolate(a, b, e.segMeters/segLen), true
}

type subscription struct {
	id int
	fn Listener
}

// Subscribe registers a listener and returns a function that removes it.
// Listeners are called in registration order.
func (e *Engine) Subscribe(l Listener) func() {
	id := e.nextID
	e.nextID++
	e.subs = append(e.subs, subscription{id: id, fn: l})
	return func() {
		// Copy so an emit in progress keeps ranging over the old slice.
		e.subs = slices.DeleteFunc(slices.Clone(e.subs), func(s subscription) bool {
			return s.id == id
		})
	}
}

func (e *Engine) emit(pos, prev, next geo.Coordinate, arrived bool) {
	// A zero-length segment has no bearing; keep the last one.
	if prev != next {
		e.heading = geo.Bearing(prev, next)
	}

	u := Update{
		Position:     pos,
		Prev:         prev,
		Next:         next,
		SegmentIndex: e.segIndex,
		Heading:      e.heading,
		Arrived:      arrived,
	}
	for _, s := range e.subs {
		s.fn(u)
	}
}
