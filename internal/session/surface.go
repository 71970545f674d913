package session

import (
	"github.com/litescript/ls-drive/internal/geo"
	"github.com/litescript/ls-drive/internal/orient"
)

// MarkerKind identifies a picked point.
type MarkerKind int

const (
	MarkerStart MarkerKind = iota
	MarkerEnd
)

func (k MarkerKind) String() string {
	if k == MarkerStart {
		return "start"
	}
	return "end"
}

// Surface is the map the session draws on.
type Surface interface {
	DrawRoute(path []geo.Coordinate)
	ClearRoute()
	PlaceMarker(kind MarkerKind, c geo.Coordinate)
	ClearMarkers()
	MoveVehicle(c geo.Coordinate, o orient.Orientation)
	RemoveVehicle()
	SetView(center geo.Coordinate, zoom int, animate bool)
	FitBounds(b geo.Bounds)
	Zoom() int
	MaxZoom() int
}

// NopSurface tracks the viewport without drawing anything. Used in
// headless mode.
type NopSurface struct {
	Center  geo.Coordinate
	ZoomLvl int
	Max     int
}

// NewNopSurface creates a surface at center and zoom.
func NewNopSurface(center geo.Coordinate, zoom, maxZoom int) *NopSurface {
	return &NopSurface{Center: center, ZoomLvl: zoom, Max: maxZoom}
}

func (s *NopSurface) DrawRoute([]geo.Coordinate)                     {}
func (s *NopSurface) ClearRoute()                                    {}
func (s *NopSurface) PlaceMarker(MarkerKind, geo.Coordinate)         {}
func (s *NopSurface) ClearMarkers()                                  {}
func (s *NopSurface) MoveVehicle(geo.Coordinate, orient.Orientation) {}
func (s *NopSurface) RemoveVehicle()                                 {}

// SetView moves the viewport.
func (s *NopSurface) SetView(center geo.Coordinate, zoom int, _ bool) {
	s.Center = center
	s.ZoomLvl = zoom
}

// FitBounds centers on b without changing zoom.
func (s *NopSurface) FitBounds(b geo.Bounds) {
	s.Center = b.Center()
}

func (s *NopSurface) Zoom() int    { return s.ZoomLvl }
func (s *NopSurface) MaxZoom() int { return s.Max }
