// Package export writes a finished or in-progress trip to JSON, GPX and
// GeoJSON, and prints a plain-text summary.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tkrajina/gpxgo/gpx"

	"github.com/litescript/ls-drive/internal/geo"
	"github.com/litescript/ls-drive/internal/routing"
	"github.com/litescript/ls-drive/internal/session"
	"github.com/litescript/ls-drive/internal/state"
	"github.com/litescript/ls-drive/internal/version"
)

// TrackPoint is a recorded vehicle position.
type TrackPoint struct {
	Time     time.Time      `json:"time"`
	Position geo.Coordinate `json:"position"`
}

// TripExport is the JSON-serializable representation of a session.
type TripExport struct {
	SessionID       string           `json:"session_id,omitempty"`
	ExportedAt      time.Time        `json:"exported_at"`
	State           string           `json:"state"`
	Start           *geo.Coordinate  `json:"start,omitempty"`
	End             *geo.Coordinate  `json:"end,omitempty"`
	SpeedKmh        float64          `json:"speed_kmh"`
	TotalMeters     float64          `json:"total_meters"`
	RemainingMeters *float64         `json:"remaining_meters,omitempty"`
	Progress        float64          `json:"progress"`
	Route           []geo.Coordinate `json:"route,omitempty"`
	Track           []TrackPoint     `json:"track,omitempty"`
	HUD             state.Snapshot   `json:"hud"`
}

// NewTrip builds an export from a session view, its route and an optional
// recorded track.
func NewTrip(v session.View, route []geo.Coordinate, track []TrackPoint, exportedAt time.Time) *TripExport {
	t := &TripExport{
		SessionID:   v.SessionID,
		ExportedAt:  exportedAt,
		State:       v.State.String(),
		SpeedKmh:    v.SpeedKmh,
		TotalMeters: math.Round(geo.PathLength(route)),
		Progress:    v.Progress,
		Route:       route,
		Track:       track,
		HUD:         v.HUD,
	}
	if len(v.Points) > 0 {
		start := v.Points[0]
		t.Start = &start
	}
	if len(v.Points) > 1 {
		end := v.Points[1]
		t.End = &end
	}
	if !math.IsNaN(v.RemainingMeters) {
		rem := v.RemainingMeters
		t.RemainingMeters = &rem
	}
	return t
}

// WriteJSON writes the trip as indented JSON.
func (t *TripExport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

// WriteGPX writes a GPX 1.1 document with the start and end as waypoints,
// the planned route as one track and the recorded positions as another.
func (t *TripExport) WriteGPX(w io.Writer) error {
	doc := gpx.GPX{
		Version: "1.1",
		Creator: "ls-drive " + version.Version,
		Name:    t.name(),
		Time:    &t.ExportedAt,
	}

	if t.Start != nil {
		doc.Waypoints = append(doc.Waypoints, waypoint(*t.Start, "start", t.HUD.StartAddress))
	}
	if t.End != nil {
		doc.Waypoints = append(doc.Waypoints, waypoint(*t.End, "end", t.HUD.EndAddress))
	}

	if len(t.Route) > 0 {
		seg := gpx.GPXTrackSegment{}
		for _, c := range t.Route {
			seg.Points = append(seg.Points, gpxPoint(c))
		}
		doc.Tracks = append(doc.Tracks, gpx.GPXTrack{Name: "route", Segments: []gpx.GPXTrackSegment{seg}})
	}

	if len(t.Track) > 0 {
		seg := gpx.GPXTrackSegment{}
		for _, tp := range t.Track {
			p := gpxPoint(tp.Position)
			p.Timestamp = tp.Time.UTC()
			seg.Points = append(seg.Points, p)
		}
		doc.Tracks = append(doc.Tracks, gpx.GPXTrack{Name: "drive", Segments: []gpx.GPXTrackSegment{seg}})
	}

	data, err := doc.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return fmt.Errorf("encode gpx: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func gpxPoint(c geo.Coordinate) gpx.GPXPoint {
	return gpx.GPXPoint{Point: gpx.Point{Latitude: c.Lat, Longitude: c.Lng}}
}

func waypoint(c geo.Coordinate, name, desc string) gpx.GPXPoint {
	p := gpxPoint(c)
	p.Name = name
	p.Description = desc
	return p
}

// WriteGeoJSON writes a FeatureCollection: the route LineString, the start
// and end Points, and the vehicle Point when known.
func (t *TripExport) WriteGeoJSON(w io.Writer) error {
	fc := geojson.NewFeatureCollection()

	if len(t.Route) > 0 {
		f := geojson.NewFeature(routing.PathToLineString(t.Route))
		f.Properties["kind"] = "route"
		f.Properties["total_meters"] = t.TotalMeters
		if t.SessionID != "" {
			f.Properties["session_id"] = t.SessionID
		}
		fc.Append(f)
	}

	addPoint := func(c *geo.Coordinate, kind, address string) {
		if c == nil {
			return
		}
		f := geojson.NewFeature(orb.Point{c.Lng, c.Lat})
		f.Properties["kind"] = kind
		if address != "" {
			f.Properties["address"] = address
		}
		fc.Append(f)
	}
	addPoint(t.Start, "start", t.HUD.StartAddress)
	addPoint(t.End, "end", t.HUD.EndAddress)
	addPoint(t.vehicle(), "vehicle", t.HUD.CurrentAddress)

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func (t *TripExport) vehicle() *geo.Coordinate {
	if t.HUD.Position != nil {
		return t.HUD.Position
	}
	if n := len(t.Track); n > 0 {
		last := t.Track[n-1].Position
		return &last
	}
	return nil
}

func (t *TripExport) name() string {
	if t.SessionID == "" {
		return "ls-drive trip"
	}
	return "ls-drive trip " + t.SessionID
}

// WriteSummary writes a plain-text trip summary.
func WriteSummary(w io.Writer, t *TripExport) {
	fmt.Fprintf(w, "Trip @ %s\n", t.ExportedAt.Format(time.RFC3339))
	fmt.Fprintln(w, strings.Repeat("─", 60))

	if len(t.Route) == 0 {
		fmt.Fprintln(w, "No route loaded")
		return
	}

	row := func(label, value string) {
		fmt.Fprintf(w, "%-10s %s\n", label, value)
	}
	row("State", t.State)
	if t.Start != nil {
		row("From", describe(*t.Start, t.HUD.StartAddress))
	}
	if t.End != nil {
		row("To", describe(*t.End, t.HUD.EndAddress))
	}
	row("Distance", FormatDistance(t.TotalMeters))
	if t.RemainingMeters != nil {
		row("Remaining", FormatDistance(*t.RemainingMeters))
	}
	row("Progress", fmt.Sprintf("%.0f%%", t.Progress*100))
	row("Speed", fmt.Sprintf("%.0f km/h", t.SpeedKmh))
	if t.HUD.ETA != "" {
		row("ETA", t.HUD.ETA)
	}
	if t.HUD.CurrentAddress != "" {
		row("Now at", t.HUD.CurrentAddress)
	}
	if len(t.Track) > 0 {
		row("Track", fmt.Sprintf("%d points", len(t.Track)))
	}
}

func describe(c geo.Coordinate, address string) string {
	if address == "" {
		return c.String()
	}
	return fmt.Sprintf("%s (%s)", address, c)
}

// FormatDistance formats meters as "850 m" or "12.3 km".
func FormatDistance(meters float64) string {
	if math.IsNaN(meters) {
		return "-"
	}
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}
