package models

import (
	"time"
)

// MaxForecastDays is the number of days kept after the current day
const MaxForecastDays = 5

// DayTemperatures are the temperatures over the parts of a day
type DayTemperatures struct {
	Day   float64 `json:"day"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Night float64 `json:"night"`
	Eve   float64 `json:"eve"`
	Morn  float64 `json:"morn"`
}

// DayFeelsLike is the apparent temperature over the parts of a day
type DayFeelsLike struct {
	Day   float64 `json:"day"`
	Night float64 `json:"night"`
	Eve   float64 `json:"eve"`
	Morn  float64 `json:"morn"`
}

// DailyForecast represents the forecast for one day
type DailyForecast struct {
	Time       time.Time       `json:"time"`
	Sunrise    time.Time       `json:"sunrise"`
	Sunset     time.Time       `json:"sunset"`
	Temp       DayTemperatures `json:"temp"`
	FeelsLike  DayFeelsLike    `json:"feelsLike"`
	Pressure   float64         `json:"pressure"`   // hPa
	Humidity   float64         `json:"humidity"`   // percentage
	Conditions []Condition     `json:"conditions"` // at least one entry
	WindSpeed  float64         `json:"windSpeed"`
	Pop        float64         `json:"pop"` // probability of precipitation, 0..1
}

// Primary returns the first (dominant) condition of the day
func (d DailyForecast) Primary() Condition {
	if len(d.Conditions) == 0 {
		return Condition{}
	}
	return d.Conditions[0]
}
