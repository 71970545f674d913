package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/litescript/ls-drive/internal/geo"
	"github.com/litescript/ls-drive/internal/routing"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LS_DRIVE_"

// applyEnv overlays LS_DRIVE_* variables. Unparseable values are ignored.
func applyEnv(cfg *Config) {
	if c, err := geo.ParseCoordinate(getEnv("MAP_CENTER", "")); err == nil {
		cfg.Map.CenterLat, cfg.Map.CenterLng = c.Lat, c.Lng
	}
	cfg.Map.Zoom = getEnvInt("MAP_ZOOM", cfg.Map.Zoom)

	cfg.Speed.DefaultKmh = getEnvFloat("SPEED_DEFAULT", cfg.Speed.DefaultKmh)
	cfg.Speed.StepKmh = getEnvFloat("SPEED_STEP", cfg.Speed.StepKmh)

	if urls := getEnv("ROUTING_ENDPOINTS", ""); urls != "" {
		var endpoints []routing.Endpoint
		for _, u := range strings.Split(urls, ",") {
			if u = strings.TrimSpace(u); u != "" {
				endpoints = append(endpoints, routing.Endpoint{Name: u, URL: u})
			}
		}
		cfg.Routing.Endpoints = endpoints
	}
	cfg.Routing.Profile = getEnv("ROUTING_PROFILE", cfg.Routing.Profile)
	cfg.Routing.Timeout = getEnvDuration("ROUTING_TIMEOUT", cfg.Routing.Timeout)

	cfg.Geocode.Enabled = getEnvBool("GEOCODE_ENABLED", cfg.Geocode.Enabled)
	cfg.Geocode.Endpoint = getEnv("GEOCODE_ENDPOINT", cfg.Geocode.Endpoint)
	cfg.Geocode.Language = getEnv("GEOCODE_LANGUAGE", cfg.Geocode.Language)
	cfg.Geocode.UserAgent = getEnv("GEOCODE_USER_AGENT", cfg.Geocode.UserAgent)

	cfg.ETA.TimeZone = getEnv("ETA_TIME_ZONE", cfg.ETA.TimeZone)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := getEnv(key, ""); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := getEnv(key, ""); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := getEnv(key, ""); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := getEnv(key, ""); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
