// Package prefs keeps the user's recent searches and unit preference in a storage.KV.
package prefs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"weather-dashboard/models"
	"weather-dashboard/storage"
)

// MaxRecentSearches is the capacity of the recent search list
const MaxRecentSearches = 5

// RecentSearches is the most-recent-first list of selected locations,
// deduplicated by coordinates and persisted on every mutation.
type RecentSearches struct {
	mu     sync.Mutex
	kv     storage.KV
	items  []models.Location
	logger *slog.Logger
}

// NewRecentSearches loads the persisted list once. Unreadable or corrupt data is treated as empty.
func NewRecentSearches(kv storage.KV, logger *slog.Logger) *RecentSearches {
	if logger == nil {
		logger = slog.Default()
	}
	r := &RecentSearches{kv: kv, logger: logger}

	raw, ok, err := kv.Get(storage.KeyRecentSearches)
	switch {
	case err != nil:
		logger.Warn("failed to read recent searches, starting empty", "err", err)
	case !ok:
	default:
		var items []models.Location
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			logger.Warn("discarding corrupt recent searches", "err", err)
			break
		}
		r.items = normalizeRecent(items)
	}
	return r
}

// normalizeRecent enforces dedup and capacity on data loaded from storage
func normalizeRecent(items []models.Location) []models.Location {
	out := make([]models.Location, 0, MaxRecentSearches)
	for _, loc := range items {
		if indexOf(out, loc) >= 0 {
			continue
		}
		out = append(out, loc)
		if len(out) == MaxRecentSearches {
			break
		}
	}
	return out
}

func indexOf(items []models.Location, loc models.Location) int {
	for i, it := range items {
		if it.SameCoords(loc) {
			return i
		}
	}
	return -1
}

// Add prepends loc unless an entry with the same coordinates is already present.
// It reports whether the list changed.
func (r *RecentSearches) Add(loc models.Location) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if indexOf(r.items, loc) >= 0 {
		return false, nil
	}

	items := make([]models.Location, 0, MaxRecentSearches)
	items = append(items, loc)
	items = append(items, r.items...)
	if len(items) > MaxRecentSearches {
		items = items[:MaxRecentSearches]
	}
	r.items = items
	return true, r.persist()
}

// List returns a copy of the entries, most recent first
func (r *RecentSearches) List() []models.Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Location, len(r.items))
	copy(out, r.items)
	return out
}

// Clear removes every entry and the persisted value
func (r *RecentSearches) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
	if err := r.kv.Clear(storage.KeyRecentSearches); err != nil {
		return fmt.Errorf("clear recent searches: %w", err)
	}
	return nil
}

func (r *RecentSearches) persist() error {
	b, err := json.Marshal(r.items)
	if err != nil {
		return fmt.Errorf("encode recent searches: %w", err)
	}
	if err := r.kv.Set(storage.KeyRecentSearches, string(b)); err != nil {
		return fmt.Errorf("persist recent searches: %w", err)
	}
	return nil
}
