package controller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"weather-dashboard/datasource"
	"weather-dashboard/models"
)

var (
	newDelhi = models.Location{Name: "New Delhi", Country: "IN", Lat: 28.6139, Lon: 77.2090}
	mumbai   = models.Location{Name: "Mumbai", Country: "IN", Lat: 19.0760, Lon: 72.8777}
	pune     = models.Location{Name: "Pune", Country: "IN", Lat: 18.5204, Lon: 73.8567}
)

type fakeResolver struct {
	mu      sync.Mutex
	loc     models.Location
	err     error
	byCoord int
	byQuery int
}

func (f *fakeResolver) ResolveByCoords(ctx context.Context, lat, lon float64) (models.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byCoord++
	if f.err != nil {
		return models.Location{}, f.err
	}
	return f.loc, nil
}

func (f *fakeResolver) ResolveByQuery(ctx context.Context, query string) ([]models.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byQuery++
	return []models.Location{f.loc}, f.err
}

func (f *fakeResolver) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byCoord + f.byQuery
}

type fetchCall struct {
	Lat, Lon float64
	Units    models.Units
}

type fakeWeather struct {
	mu    sync.Mutex
	err   error
	hook  func(lat, lon float64) error
	calls []fetchCall
}

func (f *fakeWeather) Name() string { return "fake" }

func (f *fakeWeather) Fetch(ctx context.Context, lat, lon float64, units models.Units) (models.WeatherSnapshot, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{lat, lon, units})
	hook, err := f.hook, f.err
	f.mu.Unlock()

	if hook != nil {
		if herr := hook(lat, lon); herr != nil {
			return models.WeatherSnapshot{}, herr
		}
	}
	if err != nil {
		return models.WeatherSnapshot{}, err
	}
	return models.WeatherSnapshot{
		Location: models.Location{Lat: lat, Lon: lon},
		Units:    units,
		Current:  models.CurrentConditions{Temp: 30},
		Forecast: []models.DailyForecast{},
		Alerts:   []models.Alert{},
	}, nil
}

func (f *fakeWeather) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeWeather) fetches() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchCall(nil), f.calls...)
}

type fakeGeolocator struct {
	lat, lon float64
	err      error
}

func (f fakeGeolocator) CurrentPosition(ctx context.Context) (float64, float64, error) {
	return f.lat, f.lon, f.err
}

type fakeUnits struct {
	mu    sync.Mutex
	units models.Units
	sets  int
}

func (f *fakeUnits) Get() models.Units {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.units == "" {
		return models.DefaultUnits
	}
	return f.units
}

func (f *fakeUnits) Set(u models.Units) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.units = u
	f.sets++
	return nil
}

func newController(resolver *fakeResolver, weather *fakeWeather, geo datasource.Geolocator, units UnitStore) *RefreshController {
	return New(resolver, weather, geo, Options{DefaultLocation: newDelhi, Units: units})
}

func TestStartWithGeolocation(t *testing.T) {
	resolver := &fakeResolver{loc: pune}
	weather := &fakeWeather{}
	c := newController(resolver, weather, fakeGeolocator{lat: pune.Lat, lon: pune.Lon}, nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	st := c.Status()
	if st.State != Ready || st.Loading {
		t.Fatalf("state = %v loading = %v; want ready", st.State, st.Loading)
	}
	if st.Snapshot == nil {
		t.Fatal("no snapshot committed")
	}
	if st.Snapshot.Location.Name != "Pune" || st.Snapshot.Location.Country != "IN" {
		t.Errorf("snapshot location = %+v; want reverse geocoded name", st.Snapshot.Location)
	}
	if st.Location == nil || !st.Location.SameCoords(pune) {
		t.Errorf("current location = %+v", st.Location)
	}
	if calls := weather.fetches(); len(calls) != 1 || calls[0].Lat != pune.Lat || calls[0].Units != models.Metric {
		t.Errorf("fetches = %+v", calls)
	}
}

func TestStartFallsBackToDefaultLocation(t *testing.T) {
	tests := []struct {
		name     string
		geo      datasource.Geolocator
		resolver *fakeResolver
		weather  func() *fakeWeather
	}{
		{
			name:     "geolocation denied",
			geo:      fakeGeolocator{err: datasource.ErrGeolocationUnavailable},
			resolver: &fakeResolver{loc: pune},
			weather:  func() *fakeWeather { return &fakeWeather{} },
		},
		{
			name:     "geolocation unsupported",
			geo:      nil,
			resolver: &fakeResolver{loc: pune},
			weather:  func() *fakeWeather { return &fakeWeather{} },
		},
		{
			name:     "reverse geocoding finds nothing",
			geo:      fakeGeolocator{lat: 1, lon: 2},
			resolver: &fakeResolver{err: datasource.ErrNotFound},
			weather:  func() *fakeWeather { return &fakeWeather{} },
		},
		{
			name:     "device location fetch fails",
			geo:      fakeGeolocator{lat: pune.Lat, lon: pune.Lon},
			resolver: &fakeResolver{loc: pune},
			weather: func() *fakeWeather {
				return &fakeWeather{hook: func(lat, lon float64) error {
					if lat == pune.Lat {
						return datasource.ErrUnavailable
					}
					return nil
				}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newController(tt.resolver, tt.weather(), tt.geo, nil)
			if err := c.Start(context.Background()); err != nil {
				t.Fatalf("Start: %v", err)
			}
			st := c.Status()
			if st.State != Ready || st.Err != nil {
				t.Fatalf("state = %v err = %v; want ready without error", st.State, st.Err)
			}
			if st.Snapshot.Location != newDelhi {
				t.Errorf("snapshot location = %+v; want %+v", st.Snapshot.Location, newDelhi)
			}
		})
	}
}

func TestStartDefaultLocationFailure(t *testing.T) {
	weather := &fakeWeather{err: datasource.ErrUnavailable}
	c := newController(&fakeResolver{}, weather, nil, nil)

	err := c.Start(context.Background())
	if !errors.Is(err, datasource.ErrUnavailable) {
		t.Fatalf("Start err = %v; want ErrUnavailable", err)
	}
	st := c.Status()
	if st.State != Error || !errors.Is(st.Err, datasource.ErrUnavailable) {
		t.Errorf("status = %v / %v", st.State, st.Err)
	}

	weather.setErr(nil)
	if err := c.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if st := c.Status(); st.State != Ready || st.Snapshot.Location.Name != "New Delhi" {
		t.Errorf("after retry: %v %+v", st.State, st.Snapshot)
	}
}

func TestLastRequestWins(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	weather := &fakeWeather{hook: func(lat, lon float64) error {
		if lat == newDelhi.Lat {
			close(started)
			<-release
		}
		return nil
	}}
	c := newController(&fakeResolver{}, weather, nil, nil)

	first := make(chan error, 1)
	go func() { first <- c.SelectLocation(context.Background(), newDelhi) }()
	<-started

	if err := c.SelectLocation(context.Background(), mumbai); err != nil {
		t.Fatalf("second SelectLocation: %v", err)
	}
	close(release)

	if err := <-first; !errors.Is(err, datasource.ErrSuperseded) {
		t.Errorf("first SelectLocation err = %v; want ErrSuperseded", err)
	}
	st := c.Status()
	if st.State != Ready || st.Snapshot.Location.Name != "Mumbai" {
		t.Errorf("visible snapshot = %+v; want Mumbai", st.Snapshot.Location)
	}
	if !st.Location.SameCoords(mumbai) {
		t.Errorf("current location = %+v", st.Location)
	}
}

func TestStaleFailureIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	weather := &fakeWeather{hook: func(lat, lon float64) error {
		if lat == newDelhi.Lat {
			close(started)
			<-release
			return datasource.ErrUnavailable
		}
		return nil
	}}
	c := newController(&fakeResolver{}, weather, nil, nil)

	first := make(chan error, 1)
	go func() { first <- c.SelectLocation(context.Background(), newDelhi) }()
	<-started
	if err := c.SelectLocation(context.Background(), mumbai); err != nil {
		t.Fatalf("SelectLocation: %v", err)
	}
	close(release)
	if err := <-first; !errors.Is(err, datasource.ErrSuperseded) {
		t.Errorf("err = %v; want ErrSuperseded", err)
	}
	if st := c.Status(); st.State != Ready || st.Err != nil {
		t.Errorf("stale failure leaked into status: %v %v", st.State, st.Err)
	}
}

func TestSetUnitsRefetchesWithoutResolving(t *testing.T) {
	resolver := &fakeResolver{loc: pune}
	weather := &fakeWeather{}
	units := &fakeUnits{}
	c := newController(resolver, weather, fakeGeolocator{lat: pune.Lat, lon: pune.Lon}, units)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	resolverCalls := resolver.calls()
	fetchCalls := len(weather.fetches())

	if err := c.SetUnits(context.Background(), models.Imperial); err != nil {
		t.Fatalf("SetUnits: %v", err)
	}

	if got := resolver.calls(); got != resolverCalls {
		t.Errorf("resolver invoked %d times by unit change", got-resolverCalls)
	}
	calls := weather.fetches()
	if len(calls)-fetchCalls != 1 {
		t.Fatalf("unit change triggered %d fetches; want 1", len(calls)-fetchCalls)
	}
	last := calls[len(calls)-1]
	if last.Units != models.Imperial || last.Lat != pune.Lat || last.Lon != pune.Lon {
		t.Errorf("fetch = %+v", last)
	}

	st := c.Status()
	if st.Units != models.Imperial || st.Snapshot.Units != models.Imperial {
		t.Errorf("units = %v snapshot units = %v", st.Units, st.Snapshot.Units)
	}
	if st.Snapshot.Location.Name != "Pune" {
		t.Errorf("name overlay lost: %+v", st.Snapshot.Location)
	}
	if units.Get() != models.Imperial {
		t.Errorf("preference not persisted")
	}

	// same units again is a no-op
	if err := c.SetUnits(context.Background(), models.Imperial); err != nil {
		t.Fatalf("SetUnits: %v", err)
	}
	if got := len(weather.fetches()); got != len(calls) {
		t.Errorf("repeated unit selection fetched again")
	}
}

func TestSetUnitsBeforeLocation(t *testing.T) {
	weather := &fakeWeather{}
	units := &fakeUnits{}
	c := newController(&fakeResolver{}, weather, nil, units)

	if err := c.SetUnits(context.Background(), models.Imperial); err != nil {
		t.Fatalf("SetUnits: %v", err)
	}
	if len(weather.fetches()) != 0 {
		t.Errorf("fetched without a location")
	}
	if st := c.Status(); st.State != Idle || st.Units != models.Imperial {
		t.Errorf("status = %v %v", st.State, st.Units)
	}

	if err := c.SetUnits(context.Background(), "kelvin"); err == nil {
		t.Error("expected error for unknown units")
	}
}

func TestUnitsLoadedFromPreference(t *testing.T) {
	weather := &fakeWeather{}
	c := newController(&fakeResolver{}, weather, nil, &fakeUnits{units: models.Imperial})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if calls := weather.fetches(); calls[0].Units != models.Imperial {
		t.Errorf("fetched with %v; want stored preference", calls[0].Units)
	}
}

func TestSelectLocationFailureSurfacesError(t *testing.T) {
	weather := &fakeWeather{}
	c := newController(&fakeResolver{}, weather, nil, nil)

	if err := c.SelectLocation(context.Background(), mumbai); err != nil {
		t.Fatalf("SelectLocation: %v", err)
	}
	weather.setErr(datasource.ErrMalformedResponse)

	err := c.SelectLocation(context.Background(), pune)
	if !errors.Is(err, datasource.ErrMalformedResponse) {
		t.Fatalf("err = %v", err)
	}
	st := c.Status()
	if st.State != Error || st.Loading {
		t.Errorf("state = %v loading = %v", st.State, st.Loading)
	}
	if st.Snapshot == nil || st.Snapshot.Location.Name != "Mumbai" {
		t.Errorf("previous snapshot should remain visible, got %+v", st.Snapshot)
	}
	if len(weather.fetches()) != 2 {
		t.Errorf("fallback fetch performed after explicit selection")
	}

	weather.setErr(nil)
	if err := c.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if st := c.Status(); st.State != Ready || st.Snapshot.Location.Name != "Pune" {
		t.Errorf("after retry: %v %+v", st.State, st.Snapshot.Location)
	}
}

func TestSelectLocationRejectsInvalidCoords(t *testing.T) {
	weather := &fakeWeather{}
	c := newController(&fakeResolver{}, weather, nil, nil)

	err := c.SelectLocation(context.Background(), models.Location{Name: "Nowhere", Lat: 123, Lon: 0})
	if err == nil {
		t.Fatal("expected error")
	}
	if c.Status().State != Idle || len(weather.fetches()) != 0 {
		t.Error("invalid selection changed state")
	}
}

func TestLoadingKeepsPreviousSnapshot(t *testing.T) {
	weather := &fakeWeather{}
	c := newController(&fakeResolver{}, weather, nil, nil)
	if err := c.SelectLocation(context.Background(), mumbai); err != nil {
		t.Fatalf("SelectLocation: %v", err)
	}

	var during Status
	weather.hook = func(lat, lon float64) error {
		during = c.Status()
		return nil
	}
	if err := c.SelectLocation(context.Background(), pune); err != nil {
		t.Fatalf("SelectLocation: %v", err)
	}

	if !during.Loading || during.State != Fetching {
		t.Errorf("in flight status = %v loading = %v", during.State, during.Loading)
	}
	if during.Snapshot == nil || during.Snapshot.Location.Name != "Mumbai" {
		t.Errorf("in flight snapshot = %+v; want previous", during.Snapshot)
	}
}

func TestRefresh(t *testing.T) {
	weather := &fakeWeather{}
	c := newController(&fakeResolver{}, weather, nil, nil)

	if err := c.Refresh(context.Background()); !errors.Is(err, ErrNoLocation) {
		t.Errorf("Refresh before location err = %v", err)
	}
	if err := c.SelectLocation(context.Background(), mumbai); err != nil {
		t.Fatalf("SelectLocation: %v", err)
	}
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if calls := weather.fetches(); len(calls) != 2 || calls[1].Lat != mumbai.Lat {
		t.Errorf("fetches = %+v", calls)
	}
}

func TestSubscribe(t *testing.T) {
	c := newController(&fakeResolver{loc: pune}, &fakeWeather{}, fakeGeolocator{lat: pune.Lat, lon: pune.Lon}, nil)

	var (
		mu     sync.Mutex
		states []State
	)
	unsubscribe := c.Subscribe(func(s Status) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s.State)
	})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	want := []State{Resolving, Fetching, Ready}
	mu.Lock()
	got := append([]State(nil), states...)
	mu.Unlock()
	if len(got) != len(want) {
		t.Fatalf("transitions = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %v; want %v", i, got[i], want[i])
		}
	}

	unsubscribe()
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(states) != len(want) {
		t.Errorf("listener called after unsubscribe")
	}
}

func TestStateText(t *testing.T) {
	text, err := Ready.MarshalText()
	if err != nil || string(text) != "ready" {
		t.Errorf("MarshalText = %q, %v", text, err)
	}
	if Error.String() != "error" {
		t.Errorf("Error.String() = %q", Error.String())
	}
}

func TestStatusUpdatedUsesClock(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := New(&fakeResolver{}, &fakeWeather{}, nil, Options{DefaultLocation: newDelhi, Now: func() time.Time { return now }})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st := c.Status(); !st.Updated.Equal(now) || st.Cycle != 1 {
		t.Errorf("updated = %v cycle = %d", st.Updated, st.Cycle)
	}
}

// startupBlockedInFetch starts the controller with the device at Pune and returns once the
// Pune fetch is in flight. Every Pune fetch fails; the first one waits for release.
func startupBlockedInFetch(t *testing.T, units UnitStore) (c *RefreshController, weather *fakeWeather, release chan struct{}, startErr chan error) {
	t.Helper()
	release = make(chan struct{})
	started := make(chan struct{})
	var blocked atomic.Bool
	weather = &fakeWeather{hook: func(lat, lon float64) error {
		if lat != pune.Lat {
			return nil
		}
		if blocked.CompareAndSwap(false, true) {
			close(started)
			<-release
		}
		return datasource.ErrUnavailable
	}}
	c = newController(&fakeResolver{loc: pune}, weather, fakeGeolocator{lat: pune.Lat, lon: pune.Lon}, units)

	startErr = make(chan error, 1)
	go func() { startErr <- c.Start(context.Background()) }()
	<-started
	return c, weather, release, startErr
}

func TestSetUnitsDuringStartupKeepsFallback(t *testing.T) {
	c, weather, release, startErr := startupBlockedInFetch(t, &fakeUnits{})

	if err := c.SetUnits(context.Background(), models.Imperial); err != nil {
		t.Fatalf("SetUnits: %v", err)
	}
	close(release)
	if err := <-startErr; !errors.Is(err, datasource.ErrSuperseded) {
		t.Errorf("first startup err = %v; want ErrSuperseded", err)
	}

	st := c.Status()
	if st.State != Ready || st.Err != nil {
		t.Fatalf("state = %v err = %v; want ready via fallback", st.State, st.Err)
	}
	if st.Snapshot == nil || st.Snapshot.Location != newDelhi || st.Snapshot.Units != models.Imperial {
		t.Errorf("snapshot = %+v; want default location in imperial", st.Snapshot)
	}
	last := weather.fetches()[len(weather.fetches())-1]
	if last.Lat != newDelhi.Lat || last.Units != models.Imperial {
		t.Errorf("last fetch = %+v", last)
	}
}

func TestRefreshDuringStartupDoesNotSupersede(t *testing.T) {
	c, _, release, startErr := startupBlockedInFetch(t, nil)

	if err := c.Refresh(context.Background()); !errors.Is(err, ErrNoLocation) {
		t.Errorf("Refresh during startup err = %v; want ErrNoLocation", err)
	}
	close(release)
	if err := <-startErr; err != nil {
		t.Fatalf("Start: %v", err)
	}

	st := c.Status()
	if st.State != Ready || st.Snapshot == nil || st.Snapshot.Location != newDelhi {
		t.Errorf("status = %v %+v; want fallback to default location", st.State, st.Snapshot)
	}
}

func TestSetUnitsNormalizesValue(t *testing.T) {
	weather := &fakeWeather{}
	units := &fakeUnits{}
	c := newController(&fakeResolver{}, weather, nil, units)
	if err := c.SelectLocation(context.Background(), mumbai); err != nil {
		t.Fatalf("SelectLocation: %v", err)
	}

	if err := c.SetUnits(context.Background(), "Imperial"); err != nil {
		t.Fatalf("SetUnits: %v", err)
	}
	if st := c.Status(); st.Units != models.Imperial {
		t.Errorf("status units = %q", st.Units)
	}
	if units.Get() != models.Imperial {
		t.Errorf("persisted units = %q", units.Get())
	}
	calls := weather.fetches()
	if last := calls[len(calls)-1]; last.Units != models.Imperial {
		t.Errorf("fetched with %q", last.Units)
	}
}

func TestConcurrentEventsKeepSnapshotOnCurrentLocation(t *testing.T) {
	c := newController(&fakeResolver{}, &fakeWeather{}, nil, nil)
	if err := c.SelectLocation(context.Background(), mumbai); err != nil {
		t.Fatalf("SelectLocation: %v", err)
	}

	for i := 0; i < 200; i++ {
		target := pune
		if i%2 == 1 {
			target = mumbai
		}
		units := models.Imperial
		if i%2 == 1 {
			units = models.Metric
		}

		var wg sync.WaitGroup
		wg.Add(3)
		go func() { defer wg.Done(); c.SetUnits(context.Background(), units) }()
		go func() { defer wg.Done(); c.SelectLocation(context.Background(), target) }()
		go func() { defer wg.Done(); c.Refresh(context.Background()) }()
		wg.Wait()

		st := c.Status()
		if st.State != Ready || st.Snapshot == nil {
			t.Fatalf("iteration %d: state = %v", i, st.State)
		}
		if !st.Snapshot.Location.SameCoords(*st.Location) || st.Snapshot.Units != st.Units {
			t.Fatalf("iteration %d: snapshot %+v (%s) does not match current %+v (%s)",
				i, st.Snapshot.Location, st.Snapshot.Units, *st.Location, st.Units)
		}
	}
}
