package ui

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/litescript/ls-drive/internal/geo"
	"github.com/litescript/ls-drive/internal/orient"
	"github.com/litescript/ls-drive/internal/playback"
	"github.com/litescript/ls-drive/internal/session"
)

type straightRouter struct{}

func (straightRouter) FetchRoute(_ context.Context, start, end geo.Coordinate) ([]geo.Coordinate, error) {
	return []geo.Coordinate{start, geo.Interpolate(start, end, 0.5), end}, nil
}

type fixedGeocoder struct{}

func (fixedGeocoder) Reverse(context.Context, geo.Coordinate, string) string {
	return "北海道札幌市"
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	mv := NewMapView(sapporo, 14, 19, orient.EastFacingOffset)
	ctrl := session.New(session.DefaultConfig(), mv, straightRouter{}, fixedGeocoder{})
	m := New(context.Background(), ctrl, mv, Options{FrameInterval: time.Millisecond, SpeedStepKmh: 10}, nil)
	return update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func updateCmd(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// completions runs cmd and returns the session completions it produces.
// Frame ticks are dropped.
func completions(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	var out []tea.Msg
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			out = append(out, completions(c)...)
		}
	case completionMsg:
		out = append(out, msg)
	}
	return out
}

// settle feeds completions back until no task is left.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for i := 0; cmd != nil && i < 10; i++ {
		var next []tea.Cmd
		for _, msg := range completions(cmd) {
			var c tea.Cmd
			m, c = updateCmd(t, m, msg)
			next = append(next, c)
		}
		cmd = tea.Batch(next...)
	}
	return m
}

func loadRoute(t *testing.T, m Model) Model {
	t.Helper()
	m, cmd := updateCmd(t, m, key("enter"))
	if len(completions(cmd)) != 0 {
		t.Fatal("first pick should not start a task")
	}
	for i := 0; i < 6; i++ {
		m = update(t, m, key("right"))
	}
	m, cmd = updateCmd(t, m, key("enter"))
	if cmd == nil {
		t.Fatal("second pick should fetch a route")
	}
	if !m.ctrl.View().Busy {
		t.Fatal("controller should be busy while routing")
	}
	return settle(t, m, cmd)
}

func TestModel_ViewBeforeSize(t *testing.T) {
	mv := NewMapView(sapporo, 14, 19, orient.EastFacingOffset)
	ctrl := session.New(session.DefaultConfig(), mv, straightRouter{}, fixedGeocoder{})
	m := New(context.Background(), ctrl, mv, Options{}, nil)

	if got := m.View(); got != "Initializing..." {
		t.Errorf("View = %q", got)
	}
	if m.opts.FrameInterval != DefaultOptions().FrameInterval {
		t.Errorf("FrameInterval = %v, want default", m.opts.FrameInterval)
	}
}

func TestModel_WindowSizeLaysOutMap(t *testing.T) {
	m := newTestModel(t)

	w, h := m.mapView.Size()
	if w != 120-hudWidth || h != 40-headerLines-footerLines {
		t.Errorf("map size = %dx%d", w, h)
	}

	narrow := update(t, m, tea.WindowSizeMsg{Width: 60, Height: 20})
	if w, _ := narrow.mapView.Size(); w != 60 {
		t.Errorf("narrow map width = %d, want full width", w)
	}
}

func TestModel_PickLoadAndDrive(t *testing.T) {
	m := newTestModel(t)
	m = loadRoute(t, m)

	v := m.ctrl.View()
	if !v.Running || !v.HasRoute {
		t.Fatalf("after load: running=%v hasRoute=%v", v.Running, v.HasRoute)
	}
	if v.HUD.TotalMeters == nil {
		t.Error("total distance not set")
	}
	if v.HUD.StartAddress != "北海道札幌市" || v.HUD.EndAddress != "北海道札幌市" {
		t.Errorf("endpoint addresses = %q / %q", v.HUD.StartAddress, v.HUD.EndAddress)
	}
	if m.inflight != 0 {
		t.Errorf("inflight = %d, want 0", m.inflight)
	}

	start := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)
	m = update(t, m, FrameMsg(start))
	m = update(t, m, FrameMsg(start.Add(500*time.Millisecond)))

	v = m.ctrl.View()
	if v.Progress <= 0 {
		t.Errorf("Progress = %v after driving", v.Progress)
	}
	if v.HUD.Position == nil {
		t.Error("HUD position not set while driving")
	}

	out := m.View()
	for _, want := range []string{"ls-drive", "Drive", "km/h", "session", "ROUTE_LOADED"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_FrameElapsedIsCapped(t *testing.T) {
	m := newTestModel(t)
	m = loadRoute(t, m)

	start := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)
	m = update(t, m, FrameMsg(start))
	before := m.ctrl.View().RemainingMeters
	m = update(t, m, FrameMsg(start.Add(time.Hour)))
	after := m.ctrl.View().RemainingMeters

	// 60 km/h for at most one second
	if moved := before - after; moved > 17 {
		t.Errorf("moved %.1f m in one frame, want capped", moved)
	}
}

func TestModel_StopStartKeys(t *testing.T) {
	m := newTestModel(t)
	m = loadRoute(t, m)

	m = update(t, m, key("s"))
	v := m.ctrl.View()
	if v.Running || !v.ShowStart || v.State != playback.StateStopped {
		t.Fatalf("after stop: %+v", v.State)
	}

	m = update(t, m, key("s"))
	if !m.ctrl.View().Running {
		t.Error("s should resume")
	}
}

func TestModel_SpeedKeys(t *testing.T) {
	m := newTestModel(t)

	m = update(t, m, key("+"))
	if got := m.ctrl.Speed(); got != 70 {
		t.Errorf("Speed = %v, want 70", got)
	}
	m = update(t, m, key("-"))
	m = update(t, m, key("-"))
	if got := m.ctrl.Speed(); got != 50 {
		t.Errorf("Speed = %v, want 50", got)
	}
	for i := 0; i < 20; i++ {
		m = update(t, m, key("+"))
	}
	if got := m.ctrl.Speed(); got != 180 {
		t.Errorf("Speed = %v, want clamped 180", got)
	}
}

func TestModel_ClearFollowZoomKeys(t *testing.T) {
	m := newTestModel(t)
	m = loadRoute(t, m)

	m = update(t, m, key("f"))
	if m.ctrl.View().Follow {
		t.Error("f should turn follow off")
	}

	zoom := m.mapView.Zoom()
	m = update(t, m, key("["))
	if m.mapView.Zoom() != zoom-1 {
		t.Errorf("Zoom = %d, want %d", m.mapView.Zoom(), zoom-1)
	}

	m = update(t, m, key("c"))
	v := m.ctrl.View()
	if v.HasRoute || len(v.Points) != 0 || !v.Follow {
		t.Errorf("after clear: hasRoute=%v points=%d follow=%v", v.HasRoute, len(v.Points), v.Follow)
	}
	if m.mapView.route != nil || m.mapView.vehicle != nil || m.mapView.start != nil {
		t.Error("map overlays not cleared")
	}
}

func TestModel_PanKeys(t *testing.T) {
	tests := []struct {
		key         string
		east, north bool
	}{
		{"L", true, false},
		{"H", false, false},
		{"K", false, true},
		{"J", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			m := newTestModel(t)
			before := m.mapView.Center()
			m = update(t, m, key(tt.key))
			after := m.mapView.Center()

			switch tt.key {
			case "L", "H":
				if (after.Lng > before.Lng) != tt.east || math.Abs(after.Lat-before.Lat) > 1e-9 {
					t.Errorf("center %v -> %v", before, after)
				}
			default:
				if (after.Lat > before.Lat) != tt.north || math.Abs(after.Lng-before.Lng) > 1e-9 {
					t.Errorf("center %v -> %v", before, after)
				}
			}
		})
	}
}

func TestModel_MouseClickPicksPoint(t *testing.T) {
	m := newTestModel(t)

	m = update(t, m, tea.MouseMsg{X: 10, Y: 5, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	v := m.ctrl.View()
	if len(v.Points) != 1 {
		t.Fatalf("Points = %d, want 1", len(v.Points))
	}
	if want := m.mapView.Unproject(10, 5-headerLines); v.Points[0] != want {
		t.Errorf("picked %v, want %v", v.Points[0], want)
	}

	// Release and clicks on the header are ignored
	m = update(t, m, tea.MouseMsg{X: 12, Y: 5, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft})
	m = update(t, m, tea.MouseMsg{X: 12, Y: 0, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	if got := len(m.ctrl.View().Points); got != 1 {
		t.Errorf("Points = %d, want 1", got)
	}
}

func TestModel_Quit(t *testing.T) {
	m := newTestModel(t)

	_, cmd := updateCmd(t, m, key("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		name       string
		progress   float64
		width      int
		wantFilled int
	}{
		{"empty", 0.0, 10, 0},
		{"full", 1.0, 10, 10},
		{"half", 0.5, 10, 5},
		{"over", 1.5, 10, 10},
		{"negative", -0.2, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := renderProgressBar(tt.progress, tt.width)
			if !strings.HasPrefix(bar, "[") || !strings.HasSuffix(bar, "]") {
				t.Errorf("bar should have brackets, got %q", bar)
			}
			if got := strings.Count(bar, "█"); got != tt.wantFilled {
				t.Errorf("filled = %d, want %d", got, tt.wantFilled)
			}
			if got := strings.Count(bar, "░"); got != tt.width-tt.wantFilled {
				t.Errorf("empty = %d, want %d", got, tt.width-tt.wantFilled)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"much longer text", 8, "much lo…"},
		{"北海道札幌市中央区", 7, "北海道…"},
		{"anything", 0, ""},
	}

	for _, tt := range tests {
		if got := truncate(tt.input, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.width, got, tt.want)
		}
	}
}
