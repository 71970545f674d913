// Package geocode resolves coordinates to human-readable addresses.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/litescript/ls-drive/internal/geo"
	"github.com/litescript/ls-drive/internal/logging"
)

const (
	// DefaultEndpoint is the public Nominatim reverse endpoint.
	DefaultEndpoint = "https://nominatim.openstreetmap.org/reverse"

	// DefaultLanguage is sent as accept-language.
	DefaultLanguage = "ja"

	// DefaultTimeout bounds a single lookup, including the rate limit wait.
	DefaultTimeout = 10 * time.Second

	// DefaultCacheTTL is how long a resolved address is reused.
	DefaultCacheTTL = 10 * time.Minute

	// cacheDecimals is the rounding applied to cache keys (~11 cm).
	cacheDecimals = 6
)

// Reverser turns a coordinate into an address. Failures yield "".
type Reverser interface {
	Reverse(ctx context.Context, c geo.Coordinate, lang string) string
}

// NominatimClient is a rate-limited, caching Nominatim reverse geocoder.
type NominatimClient struct {
	endpoint  string
	userAgent string
	timeout   time.Duration
	cacheTTL  time.Duration
	client    *http.Client
	limiter   *rate.Limiter
	log       *logging.Logger
	now       func() time.Time

	mu    sync.Mutex
	cache map[cacheKey]cachedAddress
}

type cacheKey struct {
	coord geo.Coordinate
	lang  string
}

type cachedAddress struct {
	text      string
	fetchedAt time.Time
}

// Option configures a NominatimClient.
type Option func(*NominatimClient)

// WithEndpoint sets the reverse endpoint URL.
func WithEndpoint(endpoint string) Option {
	return func(c *NominatimClient) {
		c.endpoint = endpoint
	}
}

// WithUserAgent sets the User-Agent header. Nominatim requires one that
// identifies the application.
func WithUserAgent(ua string) Option {
	return func(c *NominatimClient) {
		c.userAgent = ua
	}
}

// WithTimeout sets the per-lookup timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *NominatimClient) {
		c.timeout = d
	}
}

// WithRateLimit sets the request rate (requests per second) and burst.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *NominatimClient) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

// WithCacheTTL sets the cache lifetime. Zero disables caching.
func WithCacheTTL(d time.Duration) Option {
	return func(c *NominatimClient) {
		c.cacheTTL = d
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *NominatimClient) {
		c.client = client
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *NominatimClient) {
		c.log = l
	}
}

// NewNominatimClient creates a client limited to one request per second.
func NewNominatimClient(opts ...Option) *NominatimClient {
	c := &NominatimClient{
		endpoint:  DefaultEndpoint,
		userAgent: "ls-drive",
		timeout:   DefaultTimeout,
		cacheTTL:  DefaultCacheTTL,
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		log:       logging.Discard(),
		now:       time.Now,
		cache:     make(map[cacheKey]cachedAddress),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	return c
}

type reverseResponse struct {
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
	Error       string  `json:"error"`
}

// Reverse returns the formatted address at c in lang, or "" on any failure.
func (c *NominatimClient) Reverse(ctx context.Context, coord geo.Coordinate, lang string) string {
	if lang == "" {
		lang = DefaultLanguage
	}
	key := cacheKey{coord: coord.Round(cacheDecimals), lang: lang}

	if text, ok := c.cached(key); ok {
		return text
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	text, err := c.lookup(ctx, key.coord, lang)
	if err != nil {
		c.log.Debug("reverse %s failed: %v", key.coord, err)
		return ""
	}

	if text != "" && c.cacheTTL > 0 {
		c.mu.Lock()
		c.cache[key] = cachedAddress{text: text, fetchedAt: c.now()}
		c.mu.Unlock()
	}
	return text
}

func (c *NominatimClient) cached(key cacheKey) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache[key]
	if !ok {
		return "", false
	}
	if c.now().Sub(entry.fetchedAt) >= c.cacheTTL {
		delete(c.cache, key)
		return "", false
	}
	return entry.text, true
}

// RequestURL builds the reverse query for coord.
func (c *NominatimClient) RequestURL(coord geo.Coordinate, lang string) string {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(coord.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(coord.Lng, 'f', -1, 64))
	params.Set("accept-language", lang)
	params.Set("zoom", "18")
	params.Set("addressdetails", "1")

	sep := "?"
	if strings.Contains(c.endpoint, "?") {
		sep = "&"
	}
	return c.endpoint + sep + params.Encode()
}

func (c *NominatimClient) lookup(ctx context.Context, coord geo.Coordinate, lang string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RequestURL(coord, lang), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch address: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	var parsed reverseResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode address: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("nominatim: %s", parsed.Error)
	}

	if text := FormatJapanese(parsed.Address); text != "" {
		return text, nil
	}
	return parsed.DisplayName, nil
}
