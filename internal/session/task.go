package session

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/litescript/ls-drive/internal/geo"
	"github.com/litescript/ls-drive/internal/geocode"
)

// Task performs collaborator I/O. The host runs it off the UI loop and
// passes the result to Controller.Complete on the UI loop.
type Task func(ctx context.Context) Completion

// Completion is the result of a Task.
type Completion interface {
	generation() uint64
	apply(c *Controller) []Task
}

// RouteFetcher returns a route between two points.
type RouteFetcher interface {
	FetchRoute(ctx context.Context, start, end geo.Coordinate) ([]geo.Coordinate, error)
}

type routeCompletion struct {
	gen  uint64
	path []geo.Coordinate
	err  error
}

func (r routeCompletion) generation() uint64 { return r.gen }

func (r routeCompletion) apply(c *Controller) []Task {
	return c.routeLoaded(r.path, r.err)
}

type endpointsCompletion struct {
	gen        uint64
	start, end string
}

func (e endpointsCompletion) generation() uint64 { return e.gen }

func (e endpointsCompletion) apply(c *Controller) []Task {
	if e.start != "" {
		c.store.SetStartAddress(e.start)
	}
	if e.end != "" {
		c.store.SetEndAddress(e.end)
	}
	return nil
}

type addressCompletion struct {
	gen   uint64
	token uint64
	text  string
}

func (a addressCompletion) generation() uint64 { return a.gen }

func (a addressCompletion) apply(c *Controller) []Task {
	if !c.tracker.Accept(a.token) {
		c.log.Debug("dropping superseded address lookup %d", a.token)
		return nil
	}
	c.store.SetCurrentAddress(a.text)
	return nil
}

func (c *Controller) fetchRouteTask(start, end geo.Coordinate) Task {
	gen := c.generation
	router := c.router
	return func(ctx context.Context) Completion {
		path, err := router.FetchRoute(ctx, start, end)
		return routeCompletion{gen: gen, path: path, err: err}
	}
}

func (c *Controller) endpointsTask(start, end geo.Coordinate) Task {
	gen := c.generation
	rev := c.geocoder
	lang := c.cfg.Language
	return func(ctx context.Context) Completion {
		var sa, ea string
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			sa = rev.Reverse(gctx, start, lang)
			return nil
		})
		g.Go(func() error {
			ea = rev.Reverse(gctx, end, lang)
			return nil
		})
		_ = g.Wait()
		return endpointsCompletion{gen: gen, start: sa, end: ea}
	}
}

func (c *Controller) addressTask(req geocode.Request) Task {
	gen := c.generation
	rev := c.geocoder
	lang := c.cfg.Language
	return func(ctx context.Context) Completion {
		return addressCompletion{gen: gen, token: req.Token, text: rev.Reverse(ctx, req.Coordinate, lang)}
	}
}

// RunAll runs tasks concurrently and returns their completions in task
// order. Headless mode uses it; the TUI runs each task as a tea.Cmd.
func RunAll(ctx context.Context, tasks []Task) []Completion {
	out := make([]Completion, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tasks {
		g.Go(func() error {
			out[i] = t(gctx)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
