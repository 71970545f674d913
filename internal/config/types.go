package config

import (
	"time"

	"github.com/litescript/ls-drive/internal/routing"
)

// MapConfig holds the initial viewport.
type MapConfig struct {
	CenterLat float64 `yaml:"center_lat" validate:"gte=-90,lte=90"`
	CenterLng float64 `yaml:"center_lng" validate:"gte=-180,lte=180"`
	Zoom      int     `yaml:"zoom" validate:"gte=0,ltefield=MaxZoom"`
	MaxZoom   int     `yaml:"max_zoom" validate:"gte=1,lte=22"`
}

// SpeedConfig holds the speed range in km/h.
type SpeedConfig struct {
	DefaultKmh float64 `yaml:"default_kmh" validate:"gtefield=MinKmh,ltefield=MaxKmh"`
	MinKmh     float64 `yaml:"min_kmh" validate:"gt=0"`
	MaxKmh     float64 `yaml:"max_kmh" validate:"gtefield=MinKmh"`
	StepKmh    float64 `yaml:"step_kmh" validate:"gt=0"`
}

// RoutingConfig holds the OSRM endpoints, tried in order.
type RoutingConfig struct {
	Endpoints []routing.Endpoint `yaml:"endpoints" validate:"required,min=1,dive"`
	Profile   string             `yaml:"profile" validate:"required"`
	Timeout   time.Duration      `yaml:"timeout" validate:"gt=0"`
	UserAgent string             `yaml:"user_agent" validate:"required"`
}

// GeocodeConfig holds reverse geocoding settings.
type GeocodeConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Endpoint       string        `yaml:"endpoint" validate:"required,url"`
	Language       string        `yaml:"language" validate:"required"`
	UserAgent      string        `yaml:"user_agent" validate:"required"`
	RatePerSecond  float64       `yaml:"rate_per_second" validate:"gt=0"`
	Timeout        time.Duration `yaml:"timeout" validate:"gt=0"`
	CacheTTL       time.Duration `yaml:"cache_ttl" validate:"gte=0"`
	FollowInterval time.Duration `yaml:"follow_interval" validate:"gt=0"`
}

// ETAConfig holds arrival time display settings.
type ETAConfig struct {
	TimeZone string        `yaml:"time_zone" validate:"required"`
	Interval time.Duration `yaml:"interval" validate:"gte=0"`
}

// PlaybackConfig holds animation settings.
type PlaybackConfig struct {
	FrameInterval time.Duration `yaml:"frame_interval" validate:"gt=0"`
	AssetOffset   float64       `yaml:"asset_offset" validate:"gte=-360,lte=360"`
}

// NoticeConfig holds transient notice settings.
type NoticeConfig struct {
	Duration    time.Duration `yaml:"duration" validate:"gt=0"`
	RouteFailed string        `yaml:"route_failed" validate:"required"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	File  string `yaml:"file"`
}
