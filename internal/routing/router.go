// Package routing fetches driving routes from OSRM services with failover.
package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/litescript/ls-drive/internal/geo"
	"github.com/litescript/ls-drive/internal/logging"
)

// DefaultTimeout bounds each provider attempt.
const DefaultTimeout = 15 * time.Second

// ErrNoRoute is returned when every provider failed or returned a
// degenerate geometry.
var ErrNoRoute = errors.New("no route available")

// Provider is a single routing backend.
type Provider interface {
	Name() string
	Route(ctx context.Context, start, end geo.Coordinate) ([]geo.Coordinate, error)
}

// Router tries providers in order until one yields a usable route.
type Router struct {
	providers []Provider
	timeout   time.Duration
	log       *logging.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithTimeout sets the per-provider timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Router) {
		r.log = l
	}
}

// NewRouter creates a router over providers, tried in the given order.
func NewRouter(providers []Provider, opts ...Option) *Router {
	r := &Router{
		providers: providers,
		timeout:   DefaultTimeout,
		log:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Providers returns the provider names in failover order.
func (r *Router) Providers() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// FetchRoute returns a route with at least two points. Each provider gets
// its own timeout; a failure or degenerate geometry moves on to the next.
func (r *Router) FetchRoute(ctx context.Context, start, end geo.Coordinate) ([]geo.Coordinate, error) {
	var lastErr error

	for _, p := range r.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		began := time.Now()
		path, err := r.attempt(ctx, p, start, end)
		if err == nil && len(path) < 2 {
			err = fmt.Errorf("degenerate route with %d points", len(path))
		}
		if err != nil {
			r.log.Warn("provider %s failed after %v: %v", p.Name(), time.Since(began).Round(time.Millisecond), err)
			lastErr = err
			continue
		}

		r.log.Info("route from %s: %d points, %.0f m", p.Name(), len(path), geo.PathLength(path))
		return path, nil
	}

	if lastErr == nil {
		return nil, ErrNoRoute
	}
	return nil, fmt.Errorf("%w: %v", ErrNoRoute, lastErr)
}

func (r *Router) attempt(ctx context.Context, p Provider, start, end geo.Coordinate) ([]geo.Coordinate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return p.Route(ctx, start, end)
}
