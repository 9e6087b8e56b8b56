// Package search implements the debounced location autocomplete behind the search box.
package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"weather-dashboard/datasource"
	"weather-dashboard/models"
)

const (
	// DefaultDelay is the input inactivity before a query fires
	DefaultDelay = 500 * time.Millisecond

	// DefaultMinLength is the shortest query sent to the resolver
	DefaultMinLength = 3
)

// State is what the search dropdown renders
type State struct {
	Query     string            `json:"query"`
	Searching bool              `json:"searching"`
	Results   []models.Location `json:"results"`
	NoResults bool              `json:"noResults"`
	Err       error             `json:"-"`
}

// Options configures a Debouncer
type Options struct {
	Delay     time.Duration
	MinLength int
	Logger    *slog.Logger
}

// Debouncer turns keystrokes into resolver queries.
// A query fires only after Delay of input inactivity, and results of a query
// that was overtaken by newer input are dropped when they arrive.
type Debouncer struct {
	resolver  datasource.LocationResolver
	delay     time.Duration
	minLength int
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	seq       uint64
	timer     *time.Timer
	state     State
	listeners []func(State)
	closed    bool
}

// NewDebouncer creates a debouncer over resolver. Zero options take the defaults.
func NewDebouncer(resolver datasource.LocationResolver, opts Options) *Debouncer {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinLength
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer{
		resolver:  resolver,
		delay:     opts.Delay,
		minLength: opts.MinLength,
		logger:    opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
		state:     State{Results: []models.Location{}},
	}
}

// Input records the latest text typed into the search box
func (d *Debouncer) Input(text string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.seq++
	tag := d.seq
	if d.timer != nil && d.timer.Stop() {
		d.wg.Done()
	}
	d.timer = nil
	d.state.Query = text

	query := strings.TrimSpace(text)
	if utf8.RuneCountInString(query) < d.minLength {
		d.state.Searching = false
		d.state.Results = []models.Location{}
		d.state.NoResults = false
		d.state.Err = nil
		d.notifyLocked()
		return
	}

	d.wg.Add(1)
	d.timer = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.run(tag, query)
	})
	d.mu.Unlock()
}

// State returns the current search state
func (d *Debouncer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.copyState()
}

// OnResults registers fn to be called whenever the search state changes
func (d *Debouncer) OnResults(fn func(State)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// Close stops pending timers and waits for queries in flight
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	d.seq++
	if d.timer != nil && d.timer.Stop() {
		// the timer func will never run
		d.wg.Done()
	}
	d.timer = nil
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}

func (d *Debouncer) run(tag uint64, query string) {
	d.mu.Lock()
	if tag != d.seq {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.state.Searching = true
	d.state.Err = nil
	d.notifyLocked()

	results, err := d.resolver.ResolveByQuery(d.ctx, query)

	d.mu.Lock()
	if tag != d.seq {
		d.mu.Unlock()
		d.logger.Debug("dropping superseded search results", "query", query)
		return
	}
	d.state.Searching = false
	switch {
	case err == nil:
		d.state.Results = results
		d.state.NoResults = len(results) == 0
	case errors.Is(err, datasource.ErrNotFound):
		d.state.Results = []models.Location{}
		d.state.NoResults = true
	default:
		d.logger.Warn("location search failed", "query", query, "err", err)
		d.state.Results = []models.Location{}
		d.state.NoResults = false
		d.state.Err = err
	}
	d.notifyLocked()
}

func (d *Debouncer) copyState() State {
	s := d.state
	s.Results = make([]models.Location, len(d.state.Results))
	copy(s.Results, d.state.Results)
	return s
}

// notifyLocked must be called with mu held and releases it
func (d *Debouncer) notifyLocked() {
	state := d.copyState()
	listeners := append(([]func(State))(nil), d.listeners...)
	d.mu.Unlock()
	for _, fn := range listeners {
		fn(state)
	}
}
