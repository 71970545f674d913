package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/litescript/ls-drive/internal/geo"
	"github.com/litescript/ls-drive/internal/orient"
	"github.com/litescript/ls-drive/internal/playback"
	"github.com/litescript/ls-drive/internal/state"
)

type viewCall struct {
	center  geo.Coordinate
	zoom    int
	animate bool
}

type fakeSurface struct {
	routes       [][]geo.Coordinate
	routeCleared int
	markers      []MarkerKind
	vehicle      *geo.Coordinate
	orientation  orient.Orientation
	views        []viewCall
	fits         []geo.Bounds
	zoom         int
	maxZoom      int
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{zoom: 14, maxZoom: 19}
}

func (s *fakeSurface) DrawRoute(p []geo.Coordinate) { s.routes = append(s.routes, p) }
func (s *fakeSurface) ClearRoute()                  { s.routeCleared++ }
func (s *fakeSurface) PlaceMarker(k MarkerKind, _ geo.Coordinate) {
	s.markers = append(s.markers, k)
}
func (s *fakeSurface) ClearMarkers() { s.markers = nil }
func (s *fakeSurface) MoveVehicle(c geo.Coordinate, o orient.Orientation) {
	s.vehicle = &c
	s.orientation = o
}
func (s *fakeSurface) RemoveVehicle() { s.vehicle = nil }
func (s *fakeSurface) SetView(c geo.Coordinate, zoom int, animate bool) {
	s.views = append(s.views, viewCall{c, zoom, animate})
	s.zoom = zoom
}
func (s *fakeSurface) FitBounds(b geo.Bounds) { s.fits = append(s.fits, b) }
func (s *fakeSurface) Zoom() int              { return s.zoom }
func (s *fakeSurface) MaxZoom() int           { return s.maxZoom }

type fakeRouter struct {
	path  []geo.Coordinate
	err   error
	calls int
}

func (r *fakeRouter) FetchRoute(_ context.Context, start, end geo.Coordinate) ([]geo.Coordinate, error) {
	r.calls++
	return r.path, r.err
}

type fakeGeocoder struct {
	mu    sync.Mutex
	calls []geo.Coordinate
}

func (g *fakeGeocoder) Reverse(_ context.Context, c geo.Coordinate, lang string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, c)
	return fmt.Sprintf("%s@%s", lang, c)
}

// route is ~222 m along the equator.
var route = []geo.Coordinate{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.001}, {Lat: 0, Lng: 0.002}}

type harness struct {
	c       *Controller
	surface *fakeSurface
	router  *fakeRouter
	geo     *fakeGeocoder
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		surface: newFakeSurface(),
		router:  &fakeRouter{path: route},
		geo:     &fakeGeocoder{},
		now:     time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC),
	}
	cfg := DefaultConfig()
	h.c = New(cfg, h.surface, h.router, h.geo, WithClock(func() time.Time { return h.now }))
	return h
}

// run executes tasks synchronously and applies their completions,
// following any tasks those produce.
func (h *harness) run(tasks []Task) {
	for len(tasks) > 0 {
		var next []Task
		for _, done := range RunAll(context.Background(), tasks) {
			next = append(next, h.c.Complete(done)...)
		}
		tasks = next
	}
}

// load picks both route endpoints and completes the fetch.
func (h *harness) load(t *testing.T) {
	t.Helper()
	if tasks := h.c.Click(route[0]); len(tasks) != 0 {
		t.Fatalf("first click returned %d tasks", len(tasks))
	}
	tasks := h.c.Click(route[2])
	if len(tasks) != 1 {
		t.Fatalf("second click returned %d tasks, want 1", len(tasks))
	}
	h.run(tasks)
}

// advance moves the clock and the session forward by d.
func (h *harness) advance(d time.Duration) []Task {
	h.now = h.now.Add(d)
	return h.c.Advance(d)
}

func TestController_ClickLoadsAndStarts(t *testing.T) {
	h := newHarness(t)

	h.c.Click(route[0])
	tasks := h.c.Click(route[2])
	if !h.c.View().Busy {
		t.Error("controller should be busy while fetching")
	}
	if extra := h.c.Click(geo.Coordinate{Lat: 1, Lng: 1}); extra != nil {
		t.Error("click while busy should be ignored")
	}
	if len(h.surface.markers) != 2 || h.surface.markers[0] != MarkerStart || h.surface.markers[1] != MarkerEnd {
		t.Errorf("markers = %v, want [start end]", h.surface.markers)
	}

	h.run(tasks)

	v := h.c.View()
	if v.Busy || !v.Running || !v.HasRoute {
		t.Errorf("view = busy %v running %v hasRoute %v", v.Busy, v.Running, v.HasRoute)
	}
	if v.SessionID == "" {
		t.Error("session id should be assigned on load")
	}
	if len(h.surface.routes) != 1 {
		t.Errorf("DrawRoute calls = %d, want 1", len(h.surface.routes))
	}
	if len(h.surface.fits) != 1 || h.surface.fits[0] != geo.BoundsOf(route) {
		t.Errorf("FitBounds calls = %v", h.surface.fits)
	}
	if v.HUD.TotalMeters == nil || *v.HUD.TotalMeters != math.Round(geo.PathLength(route)) {
		t.Errorf("TotalMeters = %v", v.HUD.TotalMeters)
	}

	// Follow mode zooms to max with animation on start
	var sawMaxZoom bool
	for _, call := range h.surface.views {
		if call.zoom == 19 && call.animate && call.center == route[0] {
			sawMaxZoom = true
		}
	}
	if !sawMaxZoom {
		t.Errorf("no animated max-zoom recenter: %v", h.surface.views)
	}

	// Endpoint addresses resolved in parallel
	if v.HUD.StartAddress != "ja@"+route[0].String() || v.HUD.EndAddress != "ja@"+route[2].String() {
		t.Errorf("addresses = %q, %q", v.HUD.StartAddress, v.HUD.EndAddress)
	}

	if v.HUD.Position == nil || *v.HUD.Position != route[0] {
		t.Errorf("HUD position = %v, want start", v.HUD.Position)
	}
	if v.HUD.ETA == "" {
		t.Error("ETA should be set once driving")
	}
	if !v.Orientation.Mirrored && v.Orientation.RotationDegrees != 0 {
		t.Errorf("eastbound orientation = %+v, want unrotated", v.Orientation)
	}
}

func TestController_RouteFailure(t *testing.T) {
	tests := []struct {
		name string
		path []geo.Coordinate
		err  error
	}{
		{"router error", nil, errors.New("no route available")},
		{"single point", route[:1], nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.router.path, h.router.err = tt.path, tt.err

			h.load(t)

			v := h.c.View()
			if v.HasRoute || v.Running || v.Busy {
				t.Errorf("view after failure = %+v", v)
			}
			if len(v.Points) != 0 || len(h.surface.markers) != 0 {
				t.Errorf("points/markers not cleared: %v %v", v.Points, h.surface.markers)
			}
			if v.HUD.Notice != "route search failed" {
				t.Errorf("Notice = %q", v.HUD.Notice)
			}
			if v.State != playback.StateIdle {
				t.Errorf("engine state = %v, want idle", v.State)
			}

			// Notice auto-dismisses
			h.now = h.now.Add(3 * time.Second)
			if got := h.c.View().HUD.Notice; got != "" {
				t.Errorf("Notice after 3s = %q", got)
			}

			var failed bool
			for _, e := range v.HUD.Events {
				if e.Type == state.EventRouteFailed {
					failed = true
				}
			}
			if !failed {
				t.Error("missing ROUTE_FAILED event")
			}

			// Clicks work again
			if tasks := h.c.Click(route[0]); tasks != nil || len(h.surface.markers) != 1 {
				t.Error("click after failure should place a start marker")
			}
		})
	}
}

func TestController_StaleCompletionDropped(t *testing.T) {
	h := newHarness(t)

	h.c.Click(route[0])
	tasks := h.c.Click(route[2])
	h.c.Clear()

	done := tasks[0](context.Background())
	if follow := h.c.Complete(done); follow != nil {
		t.Errorf("stale completion produced tasks: %d", len(follow))
	}
	if h.c.View().HasRoute {
		t.Error("stale route should not be loaded")
	}
	if len(h.surface.routes) != 0 {
		t.Error("stale route should not be drawn")
	}
}

func TestController_StaleEndpointAddresses(t *testing.T) {
	h := newHarness(t)
	h.c.Click(route[0])
	routeTasks := h.c.Click(route[2])

	var follow []Task
	for _, done := range RunAll(context.Background(), routeTasks) {
		follow = append(follow, h.c.Complete(done)...)
	}
	h.c.Clear()
	h.run(follow)

	if v := h.c.View(); v.HUD.StartAddress != "" || v.HUD.EndAddress != "" {
		t.Errorf("addresses from cleared session applied: %+v", v.HUD)
	}
}

func TestController_DrivesToArrival(t *testing.T) {
	h := newHarness(t)
	h.c.SetSpeed(180) // 50 m/s
	h.load(t)

	tasks := h.advance(10 * time.Second)

	v := h.c.View()
	if v.State != playback.StateFinished || v.Running {
		t.Fatalf("state = %v running %v, want finished", v.State, v.Running)
	}
	if v.RemainingMeters != 0 {
		t.Errorf("RemainingMeters = %v", v.RemainingMeters)
	}
	if v.Vehicle == nil || *v.Vehicle != route[2] {
		t.Errorf("vehicle = %v, want destination", v.Vehicle)
	}
	if v.HUD.Position == nil || *v.HUD.Position != route[2] {
		t.Errorf("HUD position = %v, want destination", v.HUD.Position)
	}
	if v.HUD.ETA != "2024/06/01 12:00:10" {
		t.Errorf("ETA = %q, want arrival time in JST", v.HUD.ETA)
	}
	if len(tasks) != 1 {
		t.Fatalf("arrival returned %d tasks, want 1 address lookup", len(tasks))
	}

	h.run(tasks)
	if got := h.c.View().HUD.CurrentAddress; got != "ja@"+route[2].String() {
		t.Errorf("CurrentAddress = %q", got)
	}

	var arrived int
	for _, e := range h.c.View().HUD.Events {
		if e.Type == state.EventArrived {
			arrived++
		}
	}
	if arrived != 1 {
		t.Errorf("ARRIVED events = %d, want 1", arrived)
	}

	// Start after arrival does nothing
	h.c.Start()
	if h.c.View().Running {
		t.Error("Start after arrival should not restart")
	}
}

func TestController_StopAndStart(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	h.advance(2 * time.Second)

	before := h.c.View().RemainingMeters
	h.c.Stop()

	v := h.c.View()
	if v.Running || !v.ShowStart {
		t.Errorf("after Stop: running %v showStart %v", v.Running, v.ShowStart)
	}
	if v.HUD.Position != nil || v.HUD.ETA != "" || v.HUD.CurrentAddress != "" {
		t.Errorf("HUD not blanked on stop: %+v", v.HUD)
	}
	if !v.HasRoute {
		t.Error("route should be kept on stop")
	}

	h.advance(5 * time.Second)
	if got := h.c.View().RemainingMeters; got != before {
		t.Errorf("stopped vehicle moved: %v -> %v", before, got)
	}

	// Stop is idempotent
	h.c.Stop()

	h.surface.views = nil
	h.c.Start()
	v = h.c.View()
	if !v.Running || v.ShowStart {
		t.Errorf("after Start: running %v showStart %v", v.Running, v.ShowStart)
	}
	if len(h.surface.views) == 0 || h.surface.views[0].zoom != 19 || !h.surface.views[0].animate {
		t.Errorf("resume should recenter at max zoom: %v", h.surface.views)
	}

	h.advance(time.Second)
	if got := h.c.View().RemainingMeters; got >= before {
		t.Errorf("resumed vehicle did not move: %v", got)
	}
}

func TestController_ClicksIgnoredWhileRunning(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	if tasks := h.c.Click(geo.Coordinate{Lat: 1, Lng: 1}); tasks != nil {
		t.Error("click while running should be ignored")
	}
	if len(h.surface.markers) != 2 {
		t.Errorf("markers = %v", h.surface.markers)
	}

	// Third click after stop clears and starts a new pick
	h.c.Stop()
	h.c.Click(geo.Coordinate{Lat: 1, Lng: 1})

	v := h.c.View()
	if v.HasRoute {
		t.Error("third click should clear the route")
	}
	if len(v.Points) != 1 || len(h.surface.markers) != 1 || h.surface.markers[0] != MarkerStart {
		t.Errorf("points %v markers %v, want one start marker", v.Points, h.surface.markers)
	}
	if h.surface.routeCleared == 0 || h.surface.vehicle != nil {
		t.Error("route and vehicle should be removed")
	}
}

func TestController_SetSpeed(t *testing.T) {
	h := newHarness(t)

	if h.c.Speed() != 60 {
		t.Errorf("default speed = %v, want 60", h.c.Speed())
	}

	tests := []struct {
		input    float64
		expected float64
	}{
		{100, 100},
		{10, 20},
		{500, 180},
		{math.Inf(1), 180},
		{math.Inf(-1), 20},
		{math.NaN(), 20}, // ignored, keeps previous
	}

	for _, tt := range tests {
		h.c.SetSpeed(tt.input)
		if got := h.c.Speed(); got != tt.expected {
			t.Errorf("SetSpeed(%v) -> %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestController_SpeedChangeAppliesLive(t *testing.T) {
	h := newHarness(t)
	h.c.SetSpeed(36) // 10 m/s
	h.load(t)

	total := geo.PathLength(route)
	h.advance(time.Second)
	if got := total - h.c.View().RemainingMeters; math.Abs(got-10) > 1e-6 {
		t.Fatalf("travelled %v, want 10", got)
	}

	h.c.SetSpeed(72)
	h.advance(time.Second)
	if got := total - h.c.View().RemainingMeters; math.Abs(got-30) > 1e-6 {
		t.Errorf("travelled %v, want 30", got)
	}
}

func TestController_Follow(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	h.c.ToggleFollow()
	if h.c.View().Follow {
		t.Fatal("follow should be off")
	}

	h.surface.views = nil
	h.advance(time.Second)
	if len(h.surface.views) != 0 {
		t.Errorf("viewport moved with follow off: %v", h.surface.views)
	}

	h.c.ToggleFollow()
	if len(h.surface.views) != 1 || h.surface.views[0].animate || h.surface.views[0].zoom != 19 {
		t.Errorf("follow on should recenter at current zoom: %v", h.surface.views)
	}

	h.advance(time.Second)
	last := h.surface.views[len(h.surface.views)-1]
	if pos := h.c.View().HUD.Position; pos == nil || last.center != *pos {
		t.Errorf("viewport %v not following vehicle %v", last.center, pos)
	}

	// Clear resets follow
	h.c.ToggleFollow()
	h.c.Clear()
	if !h.c.View().Follow {
		t.Error("Clear should turn follow back on")
	}
}

func TestController_FollowResetOnLoad(t *testing.T) {
	tests := []struct {
		name   string
		toggle func(h *harness) []Task
	}{
		{"off before first pick", func(h *harness) []Task {
			h.c.ToggleFollow()
			h.c.Click(route[0])
			return h.c.Click(route[2])
		}},
		{"off while fetching", func(h *harness) []Task {
			h.c.Click(route[0])
			tasks := h.c.Click(route[2])
			h.c.ToggleFollow()
			return tasks
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tasks := tt.toggle(h)
			if h.c.View().Follow {
				t.Fatal("follow should be off before the route loads")
			}

			h.surface.views = nil
			h.run(tasks)

			v := h.c.View()
			if !v.Running || !v.Follow {
				t.Fatalf("after load: running=%v follow=%v", v.Running, v.Follow)
			}
			if len(h.surface.views) == 0 {
				t.Fatal("route load should recenter on the vehicle")
			}
			first := h.surface.views[0]
			if first.center != route[0] || first.zoom != 19 || !first.animate {
				t.Errorf("recenter = %+v, want animated max zoom on start", first)
			}
		})
	}
}

func TestController_ClickDismissesNotice(t *testing.T) {
	h := newHarness(t)
	h.router.err = errors.New("no route available")
	h.load(t)
	if h.c.View().HUD.Notice == "" {
		t.Fatal("failure notice not shown")
	}

	h.router.err = nil
	h.c.Click(route[0])
	if got := h.c.View().HUD.Notice; got != "" {
		t.Errorf("Notice after new pick = %q, want dismissed", got)
	}
}

func TestNew_ZeroDefaultSpeed(t *testing.T) {
	tests := []struct {
		name string
		kmh  float64
	}{
		{"zero", 0},
		{"negative", -5},
		{"nan", math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DefaultSpeedKmh = tt.kmh
			c := New(cfg, newFakeSurface(), &fakeRouter{}, &fakeGeocoder{})
			if got := c.Speed(); got != DefaultConfig().DefaultSpeedKmh {
				t.Errorf("Speed = %v, want %v", got, DefaultConfig().DefaultSpeedKmh)
			}
		})
	}
}

func TestController_CurrentAddressThrottled(t *testing.T) {
	h := newHarness(t)
	h.c.SetSpeed(20)
	h.router.path = []geo.Coordinate{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.1}}
	h.c.Click(h.router.path[0])
	h.run(h.c.Click(h.router.path[1]))
	h.geo.calls = nil

	var lookups int
	frame := 33 * time.Millisecond
	for i := 0; i < 400; i++ { // ~13 s of frames
		tasks := h.advance(frame)
		lookups += len(tasks)
		h.run(tasks)
	}

	if lookups != 2 {
		t.Errorf("address lookups over ~13s = %d, want 2 (one per 5s window)", lookups)
	}
	if got := h.c.View().HUD.CurrentAddress; got == "" {
		t.Error("current address should be set")
	}
}

func TestController_ClearEmitsEventOnce(t *testing.T) {
	h := newHarness(t)
	h.c.Clear() // nothing to clear

	if n := len(h.c.View().HUD.Events); n != 0 {
		t.Errorf("empty clear logged %d events", n)
	}

	h.load(t)
	h.c.Clear()

	events := h.c.View().HUD.Events
	if events[len(events)-1].Type != state.EventCleared {
		t.Errorf("last event = %v, want CLEARED", events[len(events)-1].Type)
	}
}

func TestNopSurface(t *testing.T) {
	s := NewNopSurface(geo.Coordinate{Lat: 43, Lng: 141}, 14, 19)
	var _ Surface = s

	s.SetView(geo.Coordinate{Lat: 1, Lng: 2}, 19, true)
	if s.Zoom() != 19 || s.Center != (geo.Coordinate{Lat: 1, Lng: 2}) {
		t.Errorf("SetView not recorded: %+v", s)
	}
	s.FitBounds(geo.BoundsOf(route))
	if s.Center != geo.BoundsOf(route).Center() {
		t.Errorf("FitBounds center = %v", s.Center)
	}
}
