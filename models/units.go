package models

import (
	"fmt"
	"strings"
)

// Units is the measurement system used for every numeric weather field
type Units string

const (
	Metric   Units = "metric"
	Imperial Units = "imperial"

	// DefaultUnits applies when no preference was stored
	DefaultUnits = Metric
)

// ParseUnits converts a user or storage supplied value into Units
func ParseUnits(s string) (Units, error) {
	switch Units(strings.ToLower(strings.TrimSpace(s))) {
	case Metric:
		return Metric, nil
	case Imperial:
		return Imperial, nil
	default:
		return "", fmt.Errorf("invalid units %q (allowed: metric, imperial)", s)
	}
}

// Symbol returns the temperature suffix for the unit system
func (u Units) Symbol() string {
	if u == Imperial {
		return "°F"
	}
	return "°C"
}

// SpeedUnit returns the wind speed unit reported by the provider
func (u Units) SpeedUnit() string {
	if u == Imperial {
		return "mph"
	}
	return "m/s"
}
