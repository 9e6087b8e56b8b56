package models

import (
	"time"
)

// Condition is a single weather condition entry (code, group, text and icon token)
type Condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// CurrentConditions holds the observed weather at a location.
// Numeric fields are in the unit system the snapshot was requested with.
type CurrentConditions struct {
	Temp       float64   `json:"temp"`
	FeelsLike  float64   `json:"feelsLike"`
	Humidity   float64   `json:"humidity"`  // percentage
	WindSpeed  float64   `json:"windSpeed"` // m/s or mph
	Condition  Condition `json:"condition"`
	Observed   time.Time `json:"observed"`
	Sunrise    time.Time `json:"sunrise"`
	Sunset     time.Time `json:"sunset"`
	UVI        float64   `json:"uvi"`
	Visibility float64   `json:"visibility"` // metres
	Pressure   float64   `json:"pressure"`   // hPa
}

// Alert is a government weather warning issued for the location
type Alert struct {
	SenderName  string    `json:"senderName"`
	Event       string    `json:"event"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description"`
}

// WeatherSnapshot is the complete bundle of current, forecast and alert data for
// one location and unit system. A snapshot is only ever replaced as a whole.
type WeatherSnapshot struct {
	Location Location          `json:"location"`
	Units    Units             `json:"units"`
	Current  CurrentConditions `json:"current"`
	Forecast []DailyForecast   `json:"forecast"`
	Alerts   []Alert           `json:"alerts"`
	Fetched  time.Time         `json:"fetched"`
}
