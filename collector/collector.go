package collector

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"weather-dashboard/controller"
	"weather-dashboard/datasource"
)

// Refresher re-fetches weather for the current location
type Refresher interface {
	Refresh(ctx context.Context) error
}

// AutoRefresher periodically refreshes the visible snapshot
type AutoRefresher struct {
	target       Refresher
	interval     time.Duration
	fetchTimeout time.Duration
	logger       *slog.Logger
}

// NewAutoRefresher creates a refresher ticking every interval. A zero interval disables it.
func NewAutoRefresher(target Refresher, interval time.Duration, logger *slog.Logger) *AutoRefresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoRefresher{
		target:       target,
		interval:     interval,
		fetchTimeout: 30 * time.Second,
		logger:       logger,
	}
}

// SetFetchTimeout changes the timeout for each refresh
func (ar *AutoRefresher) SetFetchTimeout(timeout time.Duration) {
	ar.fetchTimeout = timeout
}

// Start begins refreshing on the ticker schedule.
// The returned function stops the refresher and waits for it to exit.
func (ar *AutoRefresher) Start(ctx context.Context) func() {
	if ar.interval <= 0 {
		return func() {}
	}

	refreshCtx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go ar.run(refreshCtx, &wg)

	return func() {
		cancel()
		wg.Wait()
	}
}

func (ar *AutoRefresher) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(ar.interval)
	defer ticker.Stop()

	ar.logger.Info("auto refresh started", "interval", ar.interval)
	for {
		select {
		case <-ticker.C:
			ar.refreshOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (ar *AutoRefresher) refreshOnce(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, ar.fetchTimeout)
	defer cancel()

	err := ar.target.Refresh(fetchCtx)
	switch {
	case err == nil:
	case errors.Is(err, controller.ErrNoLocation):
		ar.logger.Debug("auto refresh skipped, no location yet")
	case errors.Is(err, datasource.ErrSuperseded):
		ar.logger.Debug("auto refresh superseded by a newer request")
	default:
		ar.logger.Warn("auto refresh failed", "err", err)
	}
}
