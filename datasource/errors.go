package datasource

import "errors"

var (
	// ErrGeolocationUnavailable means the position capability is absent, denied or failed
	ErrGeolocationUnavailable = errors.New("geolocation unavailable")

	// ErrNotFound means geocoding produced zero results
	ErrNotFound = errors.New("location not found")

	// ErrUnavailable means the provider answered with a non-success status or could not be reached
	ErrUnavailable = errors.New("weather provider unavailable")

	// ErrMalformedResponse means a successful response lacked required fields
	ErrMalformedResponse = errors.New("malformed provider response")

	// ErrSuperseded means a newer refresh started before this one completed and its result was discarded
	ErrSuperseded = errors.New("refresh superseded by a newer request")
)
