package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/litescript/ls-drive/internal/geo"
)

const (
	// DefaultProfile is the OSRM routing profile.
	DefaultProfile = "driving"

	// maxResponseBytes bounds the body read from a routing server.
	maxResponseBytes = 16 << 20
)

// Endpoint names an OSRM route service base URL.
type Endpoint struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url" validate:"required,url"`
}

// DefaultEndpoints are tried in order.
var DefaultEndpoints = []Endpoint{
	{Name: "osrm-demo", URL: "https://router.project-osrm.org/route/v1"},
	{Name: "osm-de", URL: "https://routing.openstreetmap.de/routed-car/route/v1"},
}

// OSRMProvider fetches routes from an OSRM HTTP route service.
type OSRMProvider struct {
	name      string
	baseURL   string
	profile   string
	userAgent string
	client    *http.Client
}

// OSRMOption configures an OSRMProvider.
type OSRMOption func(*OSRMProvider)

// WithProfile sets the routing profile (driving, walking, cycling).
func WithProfile(profile string) OSRMOption {
	return func(p *OSRMProvider) {
		p.profile = profile
	}
}

// WithName sets the provider name used in logs.
func WithName(name string) OSRMOption {
	return func(p *OSRMProvider) {
		p.name = name
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) OSRMOption {
	return func(p *OSRMProvider) {
		p.client = client
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) OSRMOption {
	return func(p *OSRMProvider) {
		p.userAgent = ua
	}
}

// NewOSRMProvider creates a provider for baseURL, e.g.
// "https://router.project-osrm.org/route/v1".
func NewOSRMProvider(baseURL string, opts ...OSRMOption) *OSRMProvider {
	p := &OSRMProvider{
		name:      baseURL,
		baseURL:   strings.TrimRight(baseURL, "/"),
		profile:   DefaultProfile,
		userAgent: "ls-drive",
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		// Per-attempt deadlines come from the Router's context.
		p.client = &http.Client{Timeout: 2 * DefaultTimeout}
	}
	return p
}

// ProvidersFor builds one OSRM provider per endpoint.
func ProvidersFor(endpoints []Endpoint, opts ...OSRMOption) []Provider {
	providers := make([]Provider, 0, len(endpoints))
	for _, ep := range endpoints {
		o := append([]OSRMOption{}, opts...)
		if ep.Name != "" {
			o = append(o, WithName(ep.Name))
		}
		providers = append(providers, NewOSRMProvider(ep.URL, o...))
	}
	return providers
}

// Name returns the provider name.
func (p *OSRMProvider) Name() string {
	return p.name
}

// URL returns the request URL for a start/end pair. OSRM takes lng,lat.
func (p *OSRMProvider) URL(start, end geo.Coordinate) string {
	return fmt.Sprintf("%s/%s/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		p.baseURL, p.profile, start.Lng, start.Lat, end.Lng, end.Lat)
}

type osrmResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Geometry *geojson.Geometry `json:"geometry"`
	Distance float64           `json:"distance"`
	Duration float64           `json:"duration"`
}

// Route fetches the first route between start and end.
func (p *OSRMProvider) Route(ctx context.Context, start, end geo.Coordinate) ([]geo.Coordinate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL(start, end), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch route: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var parsed osrmResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("decode route: %w", err)
	}
	if parsed.Code != "Ok" {
		return nil, fmt.Errorf("osrm code %q: %s", parsed.Code, parsed.Message)
	}
	if len(parsed.Routes) == 0 || parsed.Routes[0].Geometry == nil {
		return nil, fmt.Errorf("osrm returned no route geometry")
	}

	return lineToPath(parsed.Routes[0].Geometry.Geometry())
}

// lineToPath converts a GeoJSON LineString ([lng, lat] pairs) to a path.
func lineToPath(g orb.Geometry) ([]geo.Coordinate, error) {
	ls, ok := g.(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("unexpected geometry type %T", g)
	}
	path := make([]geo.Coordinate, len(ls))
	for i, pt := range ls {
		path[i] = geo.Coordinate{Lat: pt.Lat(), Lng: pt.Lon()}
	}
	return path, nil
}

// PathToLineString converts a path to an orb LineString.
func PathToLineString(path []geo.Coordinate) orb.LineString {
	ls := make(orb.LineString, len(path))
	for i, c := range path {
		ls[i] = orb.Point{c.Lng, c.Lat}
	}
	return ls
}
