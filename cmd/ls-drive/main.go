// Command ls-drive picks two points on a terminal map, fetches a driving
// route and plays a vehicle along it with a live HUD.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/litescript/ls-drive/internal/config"
	"github.com/litescript/ls-drive/internal/eta"
	"github.com/litescript/ls-drive/internal/export"
	"github.com/litescript/ls-drive/internal/geo"
	"github.com/litescript/ls-drive/internal/geocode"
	"github.com/litescript/ls-drive/internal/logging"
	"github.com/litescript/ls-drive/internal/routing"
	"github.com/litescript/ls-drive/internal/session"
	"github.com/litescript/ls-drive/internal/state"
	"github.com/litescript/ls-drive/internal/ui"
)

// CLI flags for headless mode
var (
	fromFlag     string
	toFlag       string
	summaryMode  bool
	snapshotPath string
	gpxPath      string
	geojsonPath  string
	simStep      time.Duration
	trackEvery   time.Duration
	addressEvery time.Duration
)

const (
	defaultStep = time.Second
	minStep     = 10 * time.Millisecond
	maxStep     = time.Minute
)

// usageError marks bad command-line input (exit status 2).
type usageError struct {
	msg string
}

func (e usageError) Error() string { return e.msg }

func main() {
	os.Exit(run())
}

// run returns the process exit status so deferred cleanup happens before
// main exits.
func run() int {
	// Parse flags
	configPath := flag.String("config", "", "YAML config file")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logFile := flag.String("log-file", "", "Write logs to file (TUI logs are dropped otherwise)")
	speed := flag.Float64("speed", 0, "Initial speed in km/h (default from config)")
	flag.StringVar(&fromFlag, "from", "", "Start point as lat,lng (headless)")
	flag.StringVar(&toFlag, "to", "", "End point as lat,lng (headless)")
	flag.BoolVar(&summaryMode, "summary", false, "Print a trip summary instead of the TUI")
	flag.StringVar(&snapshotPath, "snapshot-path", "", "Export trip JSON to file (use - for stdout)")
	flag.StringVar(&gpxPath, "gpx", "", "Export route and driven track as GPX")
	flag.StringVar(&geojsonPath, "geojson", "", "Export route and markers as GeoJSON")
	flag.DurationVar(&simStep, "step", defaultStep, "Simulated time per headless frame")
	flag.DurationVar(&trackEvery, "track-every", 5*time.Second, "Minimum simulated time between recorded track points")
	flag.DurationVar(&addressEvery, "address-every", time.Minute, "Minimum simulated time between current-address lookups (headless)")
	flag.Parse()

	// Validate step
	if simStep < minStep {
		simStep = minStep
	} else if simStep > maxStep {
		simStep = maxStep
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}

	headless := fromFlag != "" || toFlag != "" || summaryMode || snapshotPath != "" || gpxPath != "" || geojsonPath != ""

	// Set up logging
	logger := logging.New(logging.ParseLevel(cfg.Log.Level))
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: open log file: %v\n", err)
			return 1
		}
		defer f.Close()
		logger.SetOutput(f)
	} else if !headless {
		// stderr would draw over the alt screen
		logger.SetOutput(io.Discard)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if logger.Enabled(logging.LevelDebug) {
		logger.Debug("config: %+v", cfg)
	}

	// Initialize components. Deadlines come from each request's context,
	// so one client serves both services.
	httpClient := &http.Client{}
	router := routing.NewRouter(cfg.Routing.Providers(routing.WithHTTPClient(httpClient)),
		routing.WithTimeout(cfg.Routing.Timeout),
		routing.WithLogger(logger.With("routing")),
	)
	logger.Debug("routing providers: %v", router.Providers())

	var geocoder geocode.Reverser = noGeocoder{}
	if cfg.Geocode.Enabled {
		geocoder = geocode.NewNominatimClient(
			geocode.WithEndpoint(cfg.Geocode.Endpoint),
			geocode.WithUserAgent(cfg.Geocode.UserAgent),
			geocode.WithTimeout(cfg.Geocode.Timeout),
			geocode.WithRateLimit(rate.Limit(cfg.Geocode.RatePerSecond), 1),
			geocode.WithCacheTTL(cfg.Geocode.CacheTTL),
			geocode.WithLogger(logger.With("geocode")),
			geocode.WithHTTPClient(httpClient),
		)
	}

	scfg := sessionConfig(cfg, logger)
	if *speed > 0 {
		scfg.DefaultSpeedKmh = *speed
	}

	// Headless mode: no TUI
	if headless {
		err := runHeadless(ctx, cfg, scfg, router, geocoder, logger)
		if err == nil {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var usage usageError
		if errors.As(err, &usage) {
			return 2
		}
		return 1
	}

	mapView := ui.NewMapView(cfg.Map.Center(), cfg.Map.Zoom, cfg.Map.MaxZoom, cfg.Playback.AssetOffset)
	ctrl := session.New(scfg, mapView, router, geocoder, session.WithLogger(logger.With("session")))

	// Create TUI model
	model := ui.New(ctx, ctrl, mapView, ui.Options{
		FrameInterval: cfg.Playback.FrameInterval,
		SpeedStepKmh:  cfg.Speed.StepKmh,
	}, logger.With("ui"))

	// Create Bubble Tea program
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	// Run TUI (blocks until quit)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		return 1
	}
	return 0
}

// sessionConfig maps the file configuration onto session settings.
func sessionConfig(cfg config.Config, logger *logging.Logger) session.Config {
	loc, err := eta.LoadLocation(cfg.ETA.TimeZone)
	if err != nil {
		logger.Warn("unknown time zone %q, using UTC: %v", cfg.ETA.TimeZone, err)
		loc = time.UTC
	}

	return session.Config{
		MinSpeedKmh:     cfg.Speed.MinKmh,
		MaxSpeedKmh:     cfg.Speed.MaxKmh,
		DefaultSpeedKmh: cfg.Speed.DefaultKmh,
		AssetOffset:     cfg.Playback.AssetOffset,
		Language:        cfg.Geocode.Language,
		AddressInterval: cfg.Geocode.FollowInterval,
		ETAInterval:     cfg.ETA.Interval,
		Location:        loc,
		FailureNotice:   cfg.Notice.RouteFailed,
		Store: state.Config{
			MaxEvents:      state.DefaultConfig().MaxEvents,
			NoticeDuration: cfg.Notice.Duration,
		},
	}
}

// noGeocoder is used when reverse geocoding is disabled.
type noGeocoder struct{}

func (noGeocoder) Reverse(context.Context, geo.Coordinate, string) string { return "" }

// runHeadless drives a route on a simulated clock and writes the requested
// exports.
func runHeadless(ctx context.Context, cfg config.Config, scfg session.Config, router session.RouteFetcher, geocoder geocode.Reverser, logger *logging.Logger) error {
	if fromFlag == "" || toFlag == "" {
		return usageError{"headless mode needs --from and --to"}
	}
	from, err := geo.ParseCoordinate(fromFlag)
	if err != nil {
		return usageError{fmt.Sprintf("--from: %v", err)}
	}
	to, err := geo.ParseCoordinate(toFlag)
	if err != nil {
		return usageError{fmt.Sprintf("--to: %v", err)}
	}

	// Without an explicit export, print the summary
	if snapshotPath == "" && gpxPath == "" && geojsonPath == "" {
		summaryMode = true
	}

	// The simulated clock runs far ahead of the geocoder's rate limit
	if addressEvery > scfg.AddressInterval {
		scfg.AddressInterval = addressEvery
	}

	simNow := time.Now()
	clock := func() time.Time { return simNow }

	surface := session.NewNopSurface(cfg.Map.Center(), cfg.Map.Zoom, cfg.Map.MaxZoom)
	ctrl := session.New(scfg, surface, router, geocoder,
		session.WithLogger(logger.With("session")),
		session.WithClock(clock),
	)

	tasks := ctrl.Click(from)
	tasks = append(tasks, ctrl.Click(to)...)
	settle(ctx, ctrl, tasks)

	if !ctrl.View().HasRoute {
		msg := ctrl.View().HUD.Notice
		if msg == "" {
			msg = "no route"
		}
		return errors.New(msg)
	}

	isTTY := term.IsTerminal(int(os.Stderr.Fd()))
	recorder := export.NewRecorder(trackEvery)
	recorder.Record(simNow, from)

	for ctrl.View().Running {
		if ctx.Err() != nil {
			logger.Info("interrupted, exporting partial trip")
			break
		}

		simNow = simNow.Add(simStep)
		settle(ctx, ctrl, ctrl.Advance(simStep))

		v := ctrl.View()
		if v.Vehicle != nil {
			recorder.Record(simNow, *v.Vehicle)
		}
		if isTTY {
			fmt.Fprintf(os.Stderr, "\r  %3.0f%%  %-10s ETA %s ", v.Progress*100,
				export.FormatDistance(v.RemainingMeters), v.HUD.ETA)
		}
	}
	if isTTY {
		fmt.Fprintln(os.Stderr)
	}

	v := ctrl.View()
	if v.Vehicle != nil {
		recorder.Finish(simNow, *v.Vehicle)
	}
	trip := export.NewTrip(v, ctrl.Route(), recorder.Points(), simNow)

	if err := writeExports(trip); err != nil {
		return err
	}
	if summaryMode {
		export.WriteSummary(os.Stdout, trip)
	}
	return nil
}

// settle runs tasks and their follow-ups until none remain.
func settle(ctx context.Context, ctrl *session.Controller, tasks []session.Task) {
	for len(tasks) > 0 {
		var next []session.Task
		for _, done := range session.RunAll(ctx, tasks) {
			next = append(next, ctrl.Complete(done)...)
		}
		tasks = next
	}
}

func writeExports(trip *export.TripExport) error {
	if snapshotPath != "" {
		if err := writeTo(snapshotPath, trip.WriteJSON); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}
	}
	if gpxPath != "" {
		if err := writeTo(gpxPath, trip.WriteGPX); err != nil {
			return fmt.Errorf("write GPX: %w", err)
		}
	}
	if geojsonPath != "" {
		if err := writeTo(geojsonPath, trip.WriteGeoJSON); err != nil {
			return fmt.Errorf("write GeoJSON: %w", err)
		}
	}
	return nil
}

// writeTo writes to path, or stdout for "-".
func writeTo(path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
