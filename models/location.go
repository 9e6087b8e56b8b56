package models

import "fmt"

// Location is a named geographic point used as the key of a weather query
type Location struct {
	Name    string  `json:"name"`
	Country string  `json:"country"` // ISO 3166 code, may be empty
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// SameCoords reports whether both locations refer to the same (lat, lon) pair.
// Coordinates come verbatim from provider responses so exact comparison is intended.
func (l Location) SameCoords(other Location) bool {
	return l.Lat == other.Lat && l.Lon == other.Lon
}

// WithDisplayName returns a copy of l carrying the name and country of from
func (l Location) WithDisplayName(from Location) Location {
	l.Name = from.Name
	l.Country = from.Country
	return l
}

// String formats the location the way the search dropdown shows it
func (l Location) String() string {
	switch {
	case l.Name == "":
		return fmt.Sprintf("%.4f,%.4f", l.Lat, l.Lon)
	case l.Country == "":
		return l.Name
	default:
		return fmt.Sprintf("%s, %s", l.Name, l.Country)
	}
}

// ValidCoords reports whether the coordinates are within WGS84 bounds
func (l Location) ValidCoords() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lon >= -180 && l.Lon <= 180
}
