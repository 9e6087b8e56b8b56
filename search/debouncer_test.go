package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"weather-dashboard/datasource"
	"weather-dashboard/models"
)

type fakeResolver struct {
	mu      sync.Mutex
	results map[string][]models.Location
	err     error
	block   map[string]chan struct{}
	started chan string
	queries []string
}

func (f *fakeResolver) ResolveByCoords(ctx context.Context, lat, lon float64) (models.Location, error) {
	return models.Location{}, datasource.ErrNotFound
}

func (f *fakeResolver) ResolveByQuery(ctx context.Context, query string) ([]models.Location, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	block := f.block[query]
	started := f.started
	f.mu.Unlock()

	if started != nil {
		started <- query
	}
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if res, ok := f.results[query]; ok {
		return res, nil
	}
	return nil, datasource.ErrNotFound
}

func (f *fakeResolver) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// watch registers a listener before any input is sent; the returned func
// blocks until a delivered state satisfies ok
func watch(d *Debouncer, ok func(State) bool) func(t *testing.T) State {
	ch := make(chan State, 1)
	d.OnResults(func(s State) {
		if ok(s) {
			select {
			case ch <- s:
			default:
			}
		}
	})
	return func(t *testing.T) State {
		t.Helper()
		select {
		case s := <-ch:
			return s
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for search state")
			return State{}
		}
	}
}

var mumbai = models.Location{Name: "Mumbai", Country: "IN", Lat: 19.0760, Lon: 72.8777}

func TestOnlyLatestInputFires(t *testing.T) {
	resolver := &fakeResolver{results: map[string][]models.Location{"Mumbai": {mumbai}}}
	d := NewDebouncer(resolver, Options{Delay: 50 * time.Millisecond})
	defer d.Close()

	wait := watch(d, func(s State) bool { return !s.Searching && len(s.Results) > 0 })

	d.Input("Mum")
	d.Input("Mumb")
	d.Input("Mumbai")

	if s := wait(t); s.Results[0] != mumbai || s.Query != "Mumbai" {
		t.Errorf("state = %+v", s)
	}

	if q := resolver.seen(); len(q) != 1 || q[0] != "Mumbai" {
		t.Errorf("resolver queries = %q; want only the latest input", q)
	}
}

func TestShortInputClearsResults(t *testing.T) {
	resolver := &fakeResolver{results: map[string][]models.Location{"Mumbai": {mumbai}}}
	d := NewDebouncer(resolver, Options{Delay: time.Millisecond})
	defer d.Close()

	wait := watch(d, func(s State) bool { return len(s.Results) == 1 })
	d.Input("Mumbai")
	wait(t)

	d.Input("Mu")
	s := d.State()
	if len(s.Results) != 0 || s.Searching || s.NoResults {
		t.Errorf("state after short input = %+v", s)
	}

	d.Close()
	if q := resolver.seen(); len(q) != 1 {
		t.Errorf("short input reached the resolver: %q", q)
	}
}

func TestNoResults(t *testing.T) {
	d := NewDebouncer(&fakeResolver{}, Options{Delay: time.Millisecond})
	defer d.Close()

	wait := watch(d, func(s State) bool { return !s.Searching })
	d.Input("Atlantis")
	s := wait(t)
	if !s.NoResults || s.Err != nil || len(s.Results) != 0 {
		t.Errorf("state = %+v", s)
	}
}

func TestProviderFailure(t *testing.T) {
	d := NewDebouncer(&fakeResolver{err: datasource.ErrUnavailable}, Options{Delay: time.Millisecond})
	defer d.Close()

	wait := watch(d, func(s State) bool { return !s.Searching })
	d.Input("Mumbai")
	s := wait(t)
	if !errors.Is(s.Err, datasource.ErrUnavailable) || s.NoResults {
		t.Errorf("state = %+v", s)
	}
}

func TestSupersededResultsAreDropped(t *testing.T) {
	pune := models.Location{Name: "Pune", Country: "IN", Lat: 18.5204, Lon: 73.8567}
	release := make(chan struct{})
	resolver := &fakeResolver{
		results: map[string][]models.Location{"Pune": {pune}, "Mumbai": {mumbai}},
		block:   map[string]chan struct{}{"Pune": release},
		started: make(chan string, 4),
	}
	d := NewDebouncer(resolver, Options{Delay: time.Millisecond})

	d.Input("Pune")
	if q := <-resolver.started; q != "Pune" {
		t.Fatalf("first query = %q", q)
	}

	wait := watch(d, func(s State) bool { return len(s.Results) == 1 && s.Results[0] == mumbai })
	d.Input("Mumbai")
	wait(t)

	close(release)
	d.Close()

	s := d.State()
	if s.Query != "Mumbai" || len(s.Results) != 1 || s.Results[0] != mumbai {
		t.Errorf("late results overwrote state: %+v", s)
	}
}

func TestInputAfterClose(t *testing.T) {
	resolver := &fakeResolver{}
	d := NewDebouncer(resolver, Options{Delay: time.Millisecond})
	d.Input("Mumbai")
	d.Close()
	d.Input("Delhi")
	time.Sleep(10 * time.Millisecond)

	for _, q := range resolver.seen() {
		if q == "Delhi" {
			t.Error("input after Close reached the resolver")
		}
	}
}
