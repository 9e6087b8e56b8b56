// Package controller owns the current location and units and drives the
// resolve and fetch pipeline that produces the visible weather snapshot.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"weather-dashboard/datasource"
	"weather-dashboard/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "weather-dashboard/controller"

// ErrNoLocation is returned by Refresh before any location is known
var ErrNoLocation = errors.New("no location selected")

// UnitStore persists the unit preference
type UnitStore interface {
	Get() models.Units
	Set(models.Units) error
}

type cycleKind int

const (
	startupCycle cycleKind = iota
	fetchCycle
)

// Options configures a RefreshController
type Options struct {
	// DefaultLocation is used when the device position cannot be resolved at startup
	DefaultLocation models.Location

	// Units persists the preference; nil keeps units in memory only
	Units UnitStore

	Logger *slog.Logger
	Now    func() time.Time
}

// RefreshController is the refresh state machine.
//
// Every cycle takes a new tag. Only the cycle holding the latest tag may change
// the visible status, so a late response from a superseded cycle is dropped
// (last request wins). Methods block until their own cycle finishes.
type RefreshController struct {
	resolver        datasource.LocationResolver
	weather         datasource.WeatherClient
	geolocator      datasource.Geolocator
	defaultLocation models.Location
	unitStore       UnitStore
	logger          *slog.Logger
	now             func() time.Time

	mu       sync.Mutex
	cycle    uint64
	lastKind cycleKind
	status   Status

	// notifyMu is taken before mu is released so listeners observe transitions in commit order
	notifyMu  sync.Mutex
	subsMu    sync.Mutex
	subs      map[int]func(Status)
	nextSubID int
}

// New creates a controller in the Idle state. A nil geolocator behaves like a host without geolocation.
func New(resolver datasource.LocationResolver, weather datasource.WeatherClient, geolocator datasource.Geolocator, opts Options) *RefreshController {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	units := models.DefaultUnits
	if opts.Units != nil {
		units = opts.Units.Get()
	}

	return &RefreshController{
		resolver:        resolver,
		weather:         weather,
		geolocator:      geolocator,
		defaultLocation: opts.DefaultLocation,
		unitStore:       opts.Units,
		logger:          opts.Logger,
		now:             opts.Now,
		status: Status{
			State:   Idle,
			Units:   units,
			Updated: opts.Now(),
		},
		subs: make(map[int]func(Status)),
	}
}

// Status returns the current status
func (c *RefreshController) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Subscribe registers fn to receive every status transition.
// fn must not block or call back into the controller. The returned function unsubscribes.
func (c *RefreshController) Subscribe(fn func(Status)) func() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = fn
	return func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		delete(c.subs, id)
	}
}

// Start runs the startup sequence: device position, reverse geocoding and weather fetch,
// falling back silently to the default location when any of the first steps fail.
func (c *RefreshController) Start(ctx context.Context) error {
	cy := c.begin(startupCycle, Resolving, nil)
	return c.runStartup(ctx, cy.tag, cy.units)
}

// SelectLocation makes loc the current location and fetches its weather.
// Failures are surfaced as the Error state; there is no fallback.
func (c *RefreshController) SelectLocation(ctx context.Context, loc models.Location) error {
	if !loc.ValidCoords() {
		return fmt.Errorf("select location: invalid coordinates %.4f,%.4f", loc.Lat, loc.Lon)
	}
	cy := c.begin(fetchCycle, Fetching, func(s *Status) {
		l := loc
		s.Location = &l
	})
	return c.runFetch(ctx, cy.tag, cy.location, cy.units)
}

// SetUnits changes the unit system and re-fetches weather for the known coordinates.
// The location is never re-resolved. A running startup sequence is restarted with the new units.
func (c *RefreshController) SetUnits(ctx context.Context, units models.Units) error {
	units, err := models.ParseUnits(string(units))
	if err != nil {
		return err
	}
	if c.unitStore != nil {
		if err := c.unitStore.Set(units); err != nil {
			c.logger.Warn("failed to persist unit preference", "units", units, "err", err)
		}
	}

	setUnits := func(s *Status) { s.Units = units }

	c.mu.Lock()
	switch {
	case c.status.Units == units:
		c.mu.Unlock()
		return nil
	case c.startupRunningLocked():
		cy := c.beginLocked(startupCycle, Resolving, setUnits)
		return c.runStartup(ctx, cy.tag, cy.units)
	case c.status.Location == nil:
		c.status.Units = units
		c.status.Updated = c.now()
		c.publishLocked()
		return nil
	default:
		cy := c.beginLocked(fetchCycle, Fetching, setUnits)
		return c.runFetch(ctx, cy.tag, cy.location, cy.units)
	}
}

// Refresh re-fetches weather for the current location and units.
// It returns ErrNoLocation until the startup sequence has settled on a location.
func (c *RefreshController) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.startupRunningLocked() || c.status.Location == nil {
		c.mu.Unlock()
		return ErrNoLocation
	}
	cy := c.beginLocked(fetchCycle, Fetching, nil)
	return c.runFetch(ctx, cy.tag, cy.location, cy.units)
}

// Retry re-runs the last refresh cycle. A failed startup is retried from the device position.
func (c *RefreshController) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.lastKind == startupCycle || c.status.Location == nil {
		cy := c.beginLocked(startupCycle, Resolving, nil)
		return c.runStartup(ctx, cy.tag, cy.units)
	}
	cy := c.beginLocked(fetchCycle, Fetching, nil)
	return c.runFetch(ctx, cy.tag, cy.location, cy.units)
}

// startupRunningLocked reports whether the startup sequence, fallback included, is still in flight
func (c *RefreshController) startupRunningLocked() bool {
	return c.lastKind == startupCycle && c.status.Loading
}

func (c *RefreshController) runStartup(ctx context.Context, tag uint64, units models.Units) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "refresh.startup")
	span.SetAttributes(attribute.Int64("cycle", int64(tag)), attribute.String("units", string(units)))
	defer span.End()

	loc, err := c.locateDevice(ctx)
	if err == nil {
		if !c.enterFetching(tag, loc) {
			return c.superseded(tag)
		}
		snap, ferr := c.weather.Fetch(ctx, loc.Lat, loc.Lon, units)
		if ferr == nil {
			return c.commit(tag, overlay(snap, loc))
		}
		err = ferr
	}
	if c.isStale(tag) {
		return c.superseded(tag)
	}
	c.logger.Info("device location unavailable, using default location",
		"cycle", tag, "location", c.defaultLocation.String(), "err", err)

	loc = c.defaultLocation
	if !c.enterFetching(tag, loc) {
		return c.superseded(tag)
	}
	snap, err := c.weather.Fetch(ctx, loc.Lat, loc.Lon, units)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "default location fetch failed")
		return c.fail(tag, fmt.Errorf("fetch weather for %s: %w", loc, err))
	}
	return c.commit(tag, overlay(snap, loc))
}

// locateDevice resolves the device position into a named location
func (c *RefreshController) locateDevice(ctx context.Context) (models.Location, error) {
	if c.geolocator == nil {
		return models.Location{}, datasource.ErrGeolocationUnavailable
	}
	lat, lon, err := c.geolocator.CurrentPosition(ctx)
	if err != nil {
		return models.Location{}, err
	}
	return c.resolver.ResolveByCoords(ctx, lat, lon)
}

func (c *RefreshController) runFetch(ctx context.Context, tag uint64, loc models.Location, units models.Units) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "refresh.fetch")
	span.SetAttributes(
		attribute.Int64("cycle", int64(tag)),
		attribute.String("units", string(units)),
		attribute.Float64("lat", loc.Lat),
		attribute.Float64("lon", loc.Lon),
	)
	defer span.End()

	snap, err := c.weather.Fetch(ctx, loc.Lat, loc.Lon, units)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return c.fail(tag, fmt.Errorf("fetch weather for %s: %w", loc, err))
	}
	return c.commit(tag, overlay(snap, loc))
}

func overlay(snap models.WeatherSnapshot, loc models.Location) models.WeatherSnapshot {
	snap.Location = snap.Location.WithDisplayName(loc)
	return snap
}

// cycleStart is what a refresh cycle captured when it began
type cycleStart struct {
	tag      uint64
	units    models.Units
	location models.Location
}

// begin starts a new cycle, superseding any cycle in flight. The previous snapshot stays visible.
func (c *RefreshController) begin(kind cycleKind, state State, mutate func(*Status)) cycleStart {
	c.mu.Lock()
	return c.beginLocked(kind, state, mutate)
}

// beginLocked is begin with mu already held. It releases mu.
func (c *RefreshController) beginLocked(kind cycleKind, state State, mutate func(*Status)) cycleStart {
	c.cycle++
	c.lastKind = kind
	if mutate != nil {
		mutate(&c.status)
	}
	c.status.State = state
	c.status.Loading = true
	c.status.Err = nil
	c.status.Cycle = c.cycle
	c.status.Updated = c.now()

	cy := cycleStart{tag: c.cycle, units: c.status.Units}
	if c.status.Location != nil {
		cy.location = *c.status.Location
	}
	c.publishLocked()
	return cy
}

func (c *RefreshController) enterFetching(tag uint64, loc models.Location) bool {
	c.mu.Lock()
	if tag != c.cycle {
		c.mu.Unlock()
		return false
	}
	l := loc
	c.status.Location = &l
	c.status.State = Fetching
	c.status.Updated = c.now()
	c.publishLocked()
	return true
}

func (c *RefreshController) commit(tag uint64, snap models.WeatherSnapshot) error {
	c.mu.Lock()
	if tag != c.cycle {
		c.mu.Unlock()
		return c.superseded(tag)
	}
	s := snap
	c.status.Snapshot = &s
	c.status.State = Ready
	c.status.Loading = false
	c.status.Err = nil
	c.status.Updated = c.now()
	c.publishLocked()

	c.logger.Info("weather updated",
		"cycle", tag, "location", snap.Location.String(), "units", snap.Units, "forecastDays", len(snap.Forecast))
	return nil
}

func (c *RefreshController) fail(tag uint64, err error) error {
	c.mu.Lock()
	if tag != c.cycle {
		c.mu.Unlock()
		return c.superseded(tag)
	}
	c.status.State = Error
	c.status.Loading = false
	c.status.Err = err
	c.status.Updated = c.now()
	c.publishLocked()

	c.logger.Warn("weather refresh failed", "cycle", tag, "err", err)
	return err
}

func (c *RefreshController) isStale(tag uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return tag != c.cycle
}

func (c *RefreshController) superseded(tag uint64) error {
	c.logger.Debug("discarding superseded refresh", "cycle", tag)
	return datasource.ErrSuperseded
}

// publishLocked hands the current status to the listeners. It must be called with mu held and releases it.
func (c *RefreshController) publishLocked() {
	status := c.status
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	c.subsMu.Lock()
	subs := make([]func(Status), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subsMu.Unlock()

	for _, fn := range subs {
		fn(status)
	}
}
