package ui

import (
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/litescript/ls-drive/internal/geo"
	"github.com/litescript/ls-drive/internal/orient"
	"github.com/litescript/ls-drive/internal/session"
)

const (
	// Camera animation
	animDuration = 400 * time.Millisecond

	// Graticule spacing in world pixels
	gridSpacingPx = 64.0

	glyphGrid      = '·'
	glyphRoute     = '•'
	glyphStart     = 'S'
	glyphEnd       = 'E'
	glyphCrosshair = '+'

	colorBackground = "236" // very dark
	colorRoute      = "#8B5CF6"
	colorStart      = "46"
	colorEnd        = "#E84A27"
	colorVehicle    = "229" // bright gold
	colorCrosshair  = "252"
)

// vehicleGlyphs are indexed by 8-way compass sector, north first.
var vehicleGlyphs = []rune{'↑', '↗', '→', '↘', '↓', '↙', '←', '↖'}

// MapView is a terminal slippy map. It implements session.Surface so the
// controller draws on it directly.
type MapView struct {
	width  int
	height int

	// Camera
	center  geo.Coordinate
	zoom    int     // target zoom level
	camZoom float64 // rendered zoom, fractional while animating
	maxZoom int

	// Animation state
	animating       bool
	animStartCenter geo.Coordinate
	animTargCenter  geo.Coordinate
	animStartZoom   float64
	animTargZoom    float64
	animStart       time.Time

	// Overlays
	route       []geo.Coordinate
	start       *geo.Coordinate
	end         *geo.Coordinate
	vehicle     *geo.Coordinate
	orientation orient.Orientation
	assetOffset float64

	// Crosshair offset from the view center, in cells
	cursorX int
	cursorY int

	now func() time.Time
}

var _ session.Surface = (*MapView)(nil)

// NewMapView creates a map centered on center.
func NewMapView(center geo.Coordinate, zoom, maxZoom int, assetOffset float64) *MapView {
	if maxZoom < minZoom {
		maxZoom = minZoom
	}
	m := &MapView{
		center:      center,
		maxZoom:     maxZoom,
		assetOffset: assetOffset,
		now:         time.Now,
	}
	m.zoom = m.clampZoom(zoom)
	m.camZoom = float64(m.zoom)
	return m
}

// SetSize updates the viewport size in cells.
func (m *MapView) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.cursorX = clampInt(m.cursorX, -width/2, (width-1)/2)
	m.cursorY = clampInt(m.cursorY, -height/2, (height-1)/2)
}

// Size returns the viewport size in cells.
func (m *MapView) Size() (int, int) {
	return m.width, m.height
}

// Center returns the camera center.
func (m *MapView) Center() geo.Coordinate {
	return m.center
}

// DrawRoute replaces the route polyline.
func (m *MapView) DrawRoute(path []geo.Coordinate) {
	m.route = append([]geo.Coordinate(nil), path...)
}

// ClearRoute removes the route polyline.
func (m *MapView) ClearRoute() {
	m.route = nil
}

// PlaceMarker places a start or end marker.
func (m *MapView) PlaceMarker(kind session.MarkerKind, c geo.Coordinate) {
	if kind == session.MarkerStart {
		m.start = &c
		return
	}
	m.end = &c
}

// ClearMarkers removes both markers.
func (m *MapView) ClearMarkers() {
	m.start = nil
	m.end = nil
}

// MoveVehicle places the vehicle glyph.
func (m *MapView) MoveVehicle(c geo.Coordinate, o orient.Orientation) {
	m.vehicle = &c
	m.orientation = o
}

// RemoveVehicle hides the vehicle glyph.
func (m *MapView) RemoveVehicle() {
	m.vehicle = nil
}

// SetView moves the camera. An animated move eases over animDuration. A
// plain move issued while an animation runs retargets it instead of
// cutting it short.
func (m *MapView) SetView(center geo.Coordinate, zoom int, animate bool) {
	zoom = m.clampZoom(zoom)

	if animate {
		m.animating = true
		m.animStartCenter = m.center
		m.animStartZoom = m.camZoom
		m.animTargCenter = center
		m.animTargZoom = float64(zoom)
		m.animStart = m.now()
		m.zoom = zoom
		return
	}

	if m.animating {
		m.animTargCenter = center
		m.animTargZoom = float64(zoom)
		m.zoom = zoom
		return
	}

	m.center = center
	m.zoom = zoom
	m.camZoom = float64(zoom)
}

// FitBounds centers on b at the largest zoom that shows all of it.
func (m *MapView) FitBounds(b geo.Bounds) {
	m.animating = false
	m.center = b.Center()
	if m.width > 0 && m.height > 0 {
		m.zoom = fitZoom(b, m.width, m.height, m.maxZoom)
	}
	m.camZoom = float64(m.zoom)
}

// Zoom returns the current zoom level.
func (m *MapView) Zoom() int {
	return m.zoom
}

// MaxZoom returns the deepest zoom level.
func (m *MapView) MaxZoom() int {
	return m.maxZoom
}

// Animating reports whether a camera animation is in progress.
func (m *MapView) Animating() bool {
	return m.animating
}

// Step advances the camera animation to now.
func (m *MapView) Step(now time.Time) {
	if !m.animating {
		return
	}

	t := float64(now.Sub(m.animStart)) / float64(animDuration)
	if t >= 1.0 {
		m.animating = false
		m.center = m.animTargCenter
		m.camZoom = m.animTargZoom
		return
	}
	if t < 0 {
		t = 0
	}

	t = easeOutCubic(t)
	m.center = lerpCoordinate(m.animStartCenter, m.animTargCenter, t)
	m.camZoom = lerp(m.animStartZoom, m.animTargZoom, t)
}

// ZoomBy changes the zoom level by delta around the current center.
func (m *MapView) ZoomBy(delta int) {
	if m.animating {
		m.animating = false
		m.center = m.animTargCenter
	}
	m.zoom = m.clampZoom(m.zoom + delta)
	m.camZoom = float64(m.zoom)
}

// Pan shifts the camera by dx, dy cells.
func (m *MapView) Pan(dx, dy int) {
	m.animating = false
	cx, cy := worldPixel(m.center, m.camZoom)
	m.center = wrap(fromWorldPixel(cx+float64(dx)*cellWidthPx, cy+float64(dy)*cellHeightPx, m.camZoom))
}

// MoveCursor moves the crosshair by dx, dy cells, panning the map when it
// would leave the viewport.
func (m *MapView) MoveCursor(dx, dy int) {
	x := m.cursorX + dx
	y := m.cursorY + dy

	minX, maxX := -m.width/2, (m.width-1)/2
	minY, maxY := -m.height/2, (m.height-1)/2

	panX, panY := 0, 0
	if x < minX || x > maxX {
		panX = dx
		x = clampInt(x, minX, maxX)
	}
	if y < minY || y > maxY {
		panY = dy
		y = clampInt(y, minY, maxY)
	}

	m.cursorX, m.cursorY = x, y
	if panX != 0 || panY != 0 {
		m.Pan(panX, panY)
	}
}

// SetCursorCell places the crosshair on a viewport cell. It reports false
// when the cell is outside the viewport.
func (m *MapView) SetCursorCell(col, row int) bool {
	if col < 0 || col >= m.width || row < 0 || row >= m.height {
		return false
	}
	m.cursorX = col - m.width/2
	m.cursorY = row - m.height/2
	return true
}

// Cursor returns the coordinate under the crosshair.
func (m *MapView) Cursor() geo.Coordinate {
	return m.Unproject(m.width/2+m.cursorX, m.height/2+m.cursorY)
}

// Project converts c to a viewport cell.
func (m *MapView) Project(c geo.Coordinate) (int, int, bool) {
	fx, fy := m.projectCell(c)
	col := int(math.Round(fx))
	row := int(math.Round(fy))
	visible := col >= 0 && col < m.width && row >= 0 && row < m.height
	return col, row, visible
}

// Unproject converts a viewport cell to a coordinate.
func (m *MapView) Unproject(col, row int) geo.Coordinate {
	cx, cy := worldPixel(m.center, m.camZoom)
	px := cx + float64(col-m.width/2)*cellWidthPx
	py := cy + float64(row-m.height/2)*cellHeightPx
	return wrap(fromWorldPixel(px, py, m.camZoom))
}

// projectCell returns unrounded, unclipped cell coordinates.
func (m *MapView) projectCell(c geo.Coordinate) (float64, float64) {
	cx, cy := worldPixel(m.center, m.camZoom)
	px, py := worldPixel(c, m.camZoom)
	return float64(m.width/2) + (px-cx)/cellWidthPx, float64(m.height/2) + (py-cy)/cellHeightPx
}

// VehicleGlyph returns the arrow for the vehicle's facing direction.
func (m *MapView) VehicleGlyph() rune {
	facing := orient.Facing(m.orientation, m.assetOffset)
	return vehicleGlyphs[orient.Sector(facing, len(vehicleGlyphs))]
}

// View renders the map.
func (m *MapView) View() string {
	if m.width < 10 || m.height < 5 {
		return "Map requires larger terminal"
	}

	c := newCanvas(m.width, m.height)

	m.drawGrid(c)
	m.drawRoute(c)

	// Crosshair goes under markers and the vehicle
	c.set(m.width/2+m.cursorX, m.height/2+m.cursorY, glyphCrosshair, colorCrosshair)

	if m.start != nil {
		if x, y, ok := m.Project(*m.start); ok {
			c.set(x, y, glyphStart, colorStart)
		}
	}
	if m.end != nil {
		if x, y, ok := m.Project(*m.end); ok {
			c.set(x, y, glyphEnd, colorEnd)
		}
	}
	if m.vehicle != nil {
		if x, y, ok := m.Project(*m.vehicle); ok {
			c.set(x, y, m.VehicleGlyph(), colorVehicle)
		}
	}

	return c.String()
}

// drawGrid dots a world-anchored graticule so panning is visible.
func (m *MapView) drawGrid(c *canvas) {
	cx, cy := worldPixel(m.center, m.camZoom)
	for row := 0; row < m.height; row++ {
		py := cy + float64(row-m.height/2)*cellHeightPx
		if math.Mod(math.Abs(py), gridSpacingPx) >= cellHeightPx {
			continue
		}
		for col := 0; col < m.width; col++ {
			px := cx + float64(col-m.width/2)*cellWidthPx
			if math.Mod(math.Abs(px), gridSpacingPx) < cellWidthPx {
				c.set(col, row, glyphGrid, colorBackground)
			}
		}
	}
}

func (m *MapView) drawRoute(c *canvas) {
	if len(m.route) < 2 {
		return
	}

	x0, y0 := m.projectCell(m.route[0])
	for _, p := range m.route[1:] {
		x1, y1 := m.projectCell(p)
		if ax, ay, bx, by, ok := clipSegment(x0, y0, x1, y1, float64(m.width-1), float64(m.height-1)); ok {
			c.line(ax, ay, bx, by, glyphRoute, colorRoute)
		}
		x0, y0 = x1, y1
	}
}

func (m *MapView) clampZoom(z int) int {
	return clampInt(z, minZoom, m.maxZoom)
}

// clipSegment clips a segment to [0, maxX] x [0, maxY] (Liang-Barsky).
func clipSegment(x0, y0, x1, y1, maxX, maxY float64) (float64, float64, float64, float64, bool) {
	dx := x1 - x0
	dy := y1 - y0
	t0, t1 := 0.0, 1.0

	edges := [4][2]float64{
		{-dx, x0},
		{dx, maxX - x0},
		{-dy, y0},
		{dy, maxY - y0},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, 0, 0, false
			}
			continue
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return 0, 0, 0, 0, false
			}
			t0 = math.Max(t0, r)
		} else {
			if r < t0 {
				return 0, 0, 0, 0, false
			}
			t1 = math.Min(t1, r)
		}
	}

	return x0 + t0*dx, y0 + t0*dy, x0 + t1*dx, y0 + t1*dy, true
}

// wrap folds longitude into [-180, 180).
func wrap(c geo.Coordinate) geo.Coordinate {
	c.Lng = geo.NormalizeDegrees(c.Lng+180) - 180
	return c
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// canvas is a grid of colored runes.
type canvas struct {
	width  int
	height int
	cells  [][]rune
	colors [][]lipgloss.Color
}

func newCanvas(width, height int) *canvas {
	c := &canvas{
		width:  width,
		height: height,
		cells:  make([][]rune, height),
		colors: make([][]lipgloss.Color, height),
	}
	for y := 0; y < height; y++ {
		c.cells[y] = make([]rune, width)
		c.colors[y] = make([]lipgloss.Color, width)
		for x := 0; x < width; x++ {
			c.cells[y][x] = ' '
			c.colors[y][x] = colorBackground
		}
	}
	return c
}

func (c *canvas) set(x, y int, r rune, color lipgloss.Color) {
	if x < 0 || x >= c.width || y < 0 || y >= c.height {
		return
	}
	c.cells[y][x] = r
	c.colors[y][x] = color
}

func (c *canvas) at(x, y int) rune {
	if x < 0 || x >= c.width || y < 0 || y >= c.height {
		return 0
	}
	return c.cells[y][x]
}

// line rasterizes a segment already clipped to the canvas (DDA).
func (c *canvas) line(x0, y0, x1, y1 float64, r rune, color lipgloss.Color) {
	steps := int(math.Ceil(math.Max(math.Abs(x1-x0), math.Abs(y1-y0))))
	if steps == 0 {
		c.set(int(math.Round(x0)), int(math.Round(y0)), r, color)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		c.set(int(math.Round(lerp(x0, x1, t))), int(math.Round(lerp(y0, y1, t))), r, color)
	}
}

// String renders the canvas, grouping runs of one color into one style.
func (c *canvas) String() string {
	var b strings.Builder
	for y := 0; y < c.height; y++ {
		start := 0
		for x := 1; x <= c.width; x++ {
			if x < c.width && c.colors[y][x] == c.colors[y][start] {
				continue
			}
			style := lipgloss.NewStyle().Foreground(c.colors[y][start])
			b.WriteString(style.Render(string(c.cells[y][start:x])))
			start = x
		}
		if y < c.height-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
