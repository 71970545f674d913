// Package version provides build and version information.
package version

// Version is the current application version.
const Version = "0.1.0"

// Milestones:
// 0.1.0 - Initial release: OSRM route playback TUI, reverse geocoding HUD, headless GPX/GeoJSON export
