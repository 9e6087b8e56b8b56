package prefs

import (
	"log/slog"

	"weather-dashboard/models"
	"weather-dashboard/storage"
)

// UnitPreference persists the selected unit system
type UnitPreference struct {
	kv     storage.KV
	logger *slog.Logger
}

// NewUnitPreference creates a unit preference backed by kv
func NewUnitPreference(kv storage.KV, logger *slog.Logger) *UnitPreference {
	if logger == nil {
		logger = slog.Default()
	}
	return &UnitPreference{kv: kv, logger: logger}
}

// Get returns the stored units, or the default when absent or unreadable
func (p *UnitPreference) Get() models.Units {
	raw, ok, err := p.kv.Get(storage.KeyUnits)
	if err != nil {
		p.logger.Warn("failed to read unit preference", "err", err)
		return models.DefaultUnits
	}
	if !ok {
		return models.DefaultUnits
	}
	u, err := models.ParseUnits(raw)
	if err != nil {
		p.logger.Warn("discarding corrupt unit preference", "value", raw)
		return models.DefaultUnits
	}
	return u
}

// Set stores the units
func (p *UnitPreference) Set(u models.Units) error {
	return p.kv.Set(storage.KeyUnits, string(u))
}
