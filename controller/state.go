package controller

import (
	"fmt"
	"time"

	"weather-dashboard/models"
)

// State is the refresh pipeline state
type State int

const (
	Idle State = iota
	Resolving
	Fetching
	Ready
	Error
)

var stateNames = map[State]string{
	Idle:      "idle",
	Resolving: "resolving",
	Fetching:  "fetching",
	Ready:     "ready",
	Error:     "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText renders the state name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a point-in-time view of the controller for the presentation layer
type Status struct {
	State    State                   `json:"state"`
	Loading  bool                    `json:"loading"`
	Location *models.Location        `json:"location,omitempty"`
	Units    models.Units            `json:"units"`
	Snapshot *models.WeatherSnapshot `json:"snapshot,omitempty"`
	Err      error                   `json:"-"`
	Cycle    uint64                  `json:"cycle"`
	Updated  time.Time               `json:"updated"`
}

// ErrorMessage returns the error text or an empty string
func (s Status) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}
