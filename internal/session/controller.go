// Package session orchestrates a map session: point picking, route
// loading, playback, HUD updates, and collaborator lookups.
//
// The Controller is single-threaded. Network calls are returned to the host
// as Tasks; their Completions are applied back on the same goroutine that
// calls Click, Advance and the other methods. Each completion carries the
// session generation it was issued under and is dropped if the session has
// since been cleared or replaced.
package session

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/litescript/ls-drive/internal/eta"
	"github.com/litescript/ls-drive/internal/geo"
	"github.com/litescript/ls-drive/internal/geocode"
	"github.com/litescript/ls-drive/internal/logging"
	"github.com/litescript/ls-drive/internal/orient"
	"github.com/litescript/ls-drive/internal/playback"
	"github.com/litescript/ls-drive/internal/state"
)

// Config holds session behavior settings.
type Config struct {
	MinSpeedKmh     float64
	MaxSpeedKmh     float64
	DefaultSpeedKmh float64
	AssetOffset     float64 // Orientation offset of the vehicle asset
	Language        string  // Reverse geocoding language
	AddressInterval time.Duration
	ETAInterval     time.Duration
	Location        *time.Location // ETA display zone
	FailureNotice   string
	Store           state.Config
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	loc, err := eta.LoadLocation(eta.DefaultTimeZone)
	if err != nil {
		loc = time.UTC
	}
	return Config{
		MinSpeedKmh:     20,
		MaxSpeedKmh:     180,
		DefaultSpeedKmh: 60,
		AssetOffset:     orient.EastFacingOffset,
		Language:        geocode.DefaultLanguage,
		AddressInterval: geocode.DefaultTrackInterval,
		ETAInterval:     eta.DefaultInterval,
		Location:        loc,
		FailureNotice:   "route search failed",
		Store:           state.DefaultConfig(),
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// Controller is the map session state machine.
type Controller struct {
	cfg      Config
	surface  Surface
	router   RouteFetcher
	geocoder geocode.Reverser
	store    *state.Manager
	engine   *playback.Engine
	eta      *eta.Calculator
	tracker  *geocode.Tracker
	log      *logging.Logger
	now      func() time.Time

	id         string
	generation uint64
	points     []geo.Coordinate
	busy       bool
	follow     bool
	showStart  bool
	speedKmh   float64

	vehicle     geo.Coordinate
	hasVehicle  bool
	heading     float64
	orientation orient.Orientation

	// Tasks produced by engine updates during the current call.
	pending []Task
}

// New creates a controller drawing on surface.
func New(cfg Config, surface Surface, router RouteFetcher, geocoder geocode.Reverser, opts ...Option) *Controller {
	if cfg.MinSpeedKmh <= 0 || cfg.MaxSpeedKmh < cfg.MinSpeedKmh {
		def := DefaultConfig()
		cfg.MinSpeedKmh, cfg.MaxSpeedKmh = def.MinSpeedKmh, def.MaxSpeedKmh
	}
	if cfg.DefaultSpeedKmh <= 0 || math.IsNaN(cfg.DefaultSpeedKmh) {
		cfg.DefaultSpeedKmh = DefaultConfig().DefaultSpeedKmh
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	c := &Controller{
		cfg:      cfg,
		surface:  surface,
		router:   router,
		geocoder: geocoder,
		store:    state.NewManager(cfg.Store),
		engine:   playback.New(),
		eta:      eta.NewCalculator(cfg.ETAInterval, cfg.Location),
		tracker:  geocode.NewTracker(cfg.AddressInterval),
		log:      logging.Discard(),
		now:      time.Now,
		follow:   true,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.speedKmh = c.clampSpeed(cfg.DefaultSpeedKmh)
	c.engine.Subscribe(c.onUpdate)
	return c
}

// Store returns the session store.
func (c *Controller) Store() *state.Manager {
	return c.store
}

// Route returns a copy of the loaded route, nil when none.
func (c *Controller) Route() []geo.Coordinate {
	return c.engine.Path()
}

// Click handles a picked map point. It is ignored while a route is being
// fetched or the vehicle is driving. A third point starts over. The second
// point returns the route fetch task.
func (c *Controller) Click(p geo.Coordinate) []Task {
	if c.busy || c.engine.Running() || !p.Valid() {
		return nil
	}
	if len(c.points) >= 2 {
		c.Clear()
	}
	c.store.DismissNotice()

	kind := MarkerStart
	if len(c.points) == 1 {
		kind = MarkerEnd
	}
	c.surface.PlaceMarker(kind, p)
	c.points = append(c.points, p)
	c.log.Debug("%s point %s", kind, p)

	if len(c.points) < 2 {
		return nil
	}
	c.busy = true
	return []Task{c.fetchRouteTask(c.points[0], c.points[1])}
}

// Complete applies a task result. Results from a cleared or replaced
// session are dropped.
func (c *Controller) Complete(done Completion) []Task {
	if done == nil {
		return nil
	}
	if done.generation() != c.generation {
		c.log.Debug("dropping stale completion %T (gen %d, now %d)", done, done.generation(), c.generation)
		return nil
	}
	return done.apply(c)
}

func (c *Controller) routeLoaded(path []geo.Coordinate, err error) []Task {
	c.busy = false

	if err == nil {
		err = c.engine.Load(path)
	}
	if err != nil {
		c.routeFailed(err)
		return nil
	}

	c.id = uuid.NewString()
	total := geo.PathLength(path)
	c.surface.DrawRoute(path)
	c.store.SetTotalMeters(total)
	c.surface.FitBounds(geo.BoundsOf(path))

	first := orient.Map(geo.Bearing(path[0], path[1]), c.cfg.AssetOffset)
	c.setVehicle(path[0], geo.Bearing(path[0], path[1]), first)

	c.store.AddEvent(state.Event{
		Type:      state.EventRouteLoaded,
		Timestamp: c.now(),
		Session:   c.id,
		Detail:    fmt.Sprintf("%d points, %.0f m", len(path), math.Round(total)),
	})
	c.log.Info("route loaded: %d points, %.0f m", len(path), total)

	tasks := []Task{c.endpointsTask(c.points[0], c.points[1])}
	c.follow = true
	c.startPlayback()
	return append(tasks, c.drainPending()...)
}

func (c *Controller) routeFailed(err error) {
	c.log.Warn("route failed: %v", err)
	now := c.now()
	c.store.AddEvent(state.Event{
		Type:      state.EventRouteFailed,
		Timestamp: now,
		Detail:    err.Error(),
	})
	c.Clear()
	c.store.ShowNotice(now, c.cfg.FailureNotice)
}

// Advance moves playback forward by elapsed. Called once per frame.
func (c *Controller) Advance(elapsed time.Duration) []Task {
	c.engine.Tick(elapsed.Seconds())

	if c.engine.Running() {
		if req, ok := c.tracker.Due(c.now()); ok {
			c.pending = append(c.pending, c.addressTask(req))
		}
	}
	return c.drainPending()
}

// Stop halts a running vehicle. The route and cursor are kept.
func (c *Controller) Stop() {
	if !c.engine.Running() {
		return
	}
	c.engine.Stop()
	c.store.ClearPosition()
	c.store.SetETA("")
	c.store.SetCurrentAddress("")
	c.tracker.Reset()
	c.eta.Reset()
	c.showStart = true

	c.store.AddEvent(state.Event{Type: state.EventStopped, Timestamp: c.now(), Session: c.id})
	c.log.Info("stopped at %.0f m remaining", c.engine.RemainingMeters())
}

// Start resumes a stopped vehicle.
func (c *Controller) Start() {
	if c.engine.State() != playback.StateStopped && c.engine.State() != playback.StateLoaded {
		return
	}
	c.startPlayback()
}

func (c *Controller) startPlayback() {
	if c.follow && c.hasVehicle {
		c.surface.SetView(c.vehicle, c.surface.MaxZoom(), true)
	}
	if err := c.engine.Start(c.speedMPS); err != nil {
		c.log.Debug("start: %v", err)
		return
	}
	c.showStart = false
	c.store.AddEvent(state.Event{Type: state.EventStarted, Timestamp: c.now(), Session: c.id})
}

// Clear tears down the session: engine, route, markers, vehicle and HUD.
// Pending task results become stale.
func (c *Controller) Clear() {
	hadSession := len(c.points) > 0 || c.engine.State() != playback.StateIdle

	c.engine.Clear()
	c.surface.ClearRoute()
	c.surface.RemoveVehicle()
	c.surface.ClearMarkers()
	c.store.Clear()
	c.tracker.Reset()
	c.eta.Reset()

	c.points = nil
	c.busy = false
	c.follow = true
	c.showStart = false
	c.hasVehicle = false
	c.pending = nil
	c.generation++

	if hadSession {
		c.store.AddEvent(state.Event{Type: state.EventCleared, Timestamp: c.now(), Session: c.id})
	}
	c.id = ""
}

// SetSpeed sets the target speed in km/h, clamped to the configured range.
// NaN is ignored.
func (c *Controller) SetSpeed(kmh float64) {
	if math.IsNaN(kmh) {
		return
	}
	c.speedKmh = c.clampSpeed(kmh)
}

// Speed returns the current speed in km/h.
func (c *Controller) Speed() float64 {
	return c.speedKmh
}

func (c *Controller) clampSpeed(kmh float64) float64 {
	if math.IsNaN(kmh) {
		return c.cfg.MinSpeedKmh
	}
	return math.Max(c.cfg.MinSpeedKmh, math.Min(c.cfg.MaxSpeedKmh, kmh))
}

func (c *Controller) speedMPS() float64 {
	return c.speedKmh * 1000 / 3600
}

// ToggleFollow flips follow mode. Turning it on recenters on the vehicle
// while driving.
func (c *Controller) ToggleFollow() {
	c.follow = !c.follow
	if !c.follow {
		return
	}
	if pos := c.store.Snapshot(c.now()).Position; pos != nil {
		c.surface.SetView(*pos, c.surface.Zoom(), false)
	}
}

func (c *Controller) onUpdate(u playback.Update) {
	o := orient.Map(u.Heading, c.cfg.AssetOffset)
	c.setVehicle(u.Position, u.Heading, o)

	if !c.engine.Running() {
		return
	}

	now := c.now()
	c.store.SetPosition(u.Position)
	if c.follow {
		c.surface.SetView(u.Position, c.surface.Zoom(), false)
	}

	if u.Arrived {
		c.arrive(now, u.Position)
		return
	}

	if r, ok := c.eta.Evaluate(now, c.engine.RemainingMeters(), c.speedMPS()); ok {
		c.store.SetETA(r.Text)
	}
	c.tracker.Push(now, u.Position)
}

func (c *Controller) arrive(now time.Time, pos geo.Coordinate) {
	r := c.eta.Force(now, 0, c.speedMPS())
	c.store.SetETA(r.Text)

	req := c.tracker.Immediate(pos)
	c.pending = append(c.pending, c.addressTask(req))

	c.store.AddEvent(state.Event{
		Type:      state.EventArrived,
		Timestamp: now,
		Session:   c.id,
		Detail:    pos.String(),
	})
	c.log.Info("arrived at %s", pos)
}

func (c *Controller) setVehicle(pos geo.Coordinate, heading float64, o orient.Orientation) {
	c.vehicle = pos
	c.heading = heading
	c.orientation = o
	c.hasVehicle = true
	c.surface.MoveVehicle(pos, o)
}

func (c *Controller) drainPending() []Task {
	tasks := c.pending
	c.pending = nil
	return tasks
}

// View is a read-only snapshot for renderers.
type View struct {
	SessionID       string
	State           playback.State
	Points          []geo.Coordinate
	Busy            bool
	Running         bool
	HasRoute        bool
	Follow          bool
	ShowStart       bool
	SpeedKmh        float64
	Vehicle         *geo.Coordinate
	Heading         float64
	Orientation     orient.Orientation
	Progress        float64
	RemainingMeters float64
	HUD             state.Snapshot
}

// View returns the current session view.
func (c *Controller) View() View {
	v := View{
		SessionID:       c.id,
		State:           c.engine.State(),
		Points:          append([]geo.Coordinate(nil), c.points...),
		Busy:            c.busy,
		Running:         c.engine.Running(),
		HasRoute:        c.engine.State() != playback.StateIdle,
		Follow:          c.follow,
		ShowStart:       c.showStart,
		SpeedKmh:        c.speedKmh,
		Heading:         c.heading,
		Orientation:     c.orientation,
		Progress:        c.engine.Progress(),
		RemainingMeters: c.engine.RemainingMeters(),
		HUD:             c.store.Snapshot(c.now()),
	}
	if c.hasVehicle {
		pos := c.vehicle
		v.Vehicle = &pos
	}
	return v
}
