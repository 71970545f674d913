package config

import (
	"time"

	"github.com/litescript/ls-drive/internal/eta"
	"github.com/litescript/ls-drive/internal/geocode"
	"github.com/litescript/ls-drive/internal/orient"
	"github.com/litescript/ls-drive/internal/routing"
	"github.com/litescript/ls-drive/internal/version"
)

// Default returns the built-in configuration: Sapporo Station at zoom 14,
// 60 km/h within 20-180, public OSRM and Nominatim services, JST arrival
// times.
func Default() Config {
	ua := "ls-drive/" + version.Version

	endpoints := make([]routing.Endpoint, len(routing.DefaultEndpoints))
	copy(endpoints, routing.DefaultEndpoints)

	return Config{
		Map: MapConfig{
			CenterLat: 43.068661,
			CenterLng: 141.350755,
			Zoom:      14,
			MaxZoom:   19,
		},
		Speed: SpeedConfig{
			DefaultKmh: 60,
			MinKmh:     20,
			MaxKmh:     180,
			StepKmh:    10,
		},
		Routing: RoutingConfig{
			Endpoints: endpoints,
			Profile:   routing.DefaultProfile,
			Timeout:   routing.DefaultTimeout,
			UserAgent: ua,
		},
		Geocode: GeocodeConfig{
			Enabled:        true,
			Endpoint:       geocode.DefaultEndpoint,
			Language:       geocode.DefaultLanguage,
			UserAgent:      ua,
			RatePerSecond:  1,
			Timeout:        geocode.DefaultTimeout,
			CacheTTL:       geocode.DefaultCacheTTL,
			FollowInterval: geocode.DefaultTrackInterval,
		},
		ETA: ETAConfig{
			TimeZone: eta.DefaultTimeZone,
			Interval: eta.DefaultInterval,
		},
		Playback: PlaybackConfig{
			FrameInterval: 33 * time.Millisecond,
			AssetOffset:   orient.EastFacingOffset,
		},
		Notice: NoticeConfig{
			Duration:    3 * time.Second,
			RouteFailed: "route search failed",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
