package openweathermap

import (
	"context"
	"fmt"
	"sort"

	"weather-dashboard/datasource"
	"weather-dashboard/models"
)

type conditionJSON struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type currentJSON struct {
	Dt         int64           `json:"dt"`
	Sunrise    int64           `json:"sunrise"`
	Sunset     int64           `json:"sunset"`
	Temp       *float64        `json:"temp"`
	FeelsLike  float64         `json:"feels_like"`
	Pressure   float64         `json:"pressure"`
	Humidity   float64         `json:"humidity"`
	UVI        float64         `json:"uvi"`
	Visibility float64         `json:"visibility"`
	WindSpeed  float64         `json:"wind_speed"`
	Weather    []conditionJSON `json:"weather"`
}

type dailyJSON struct {
	Dt      int64 `json:"dt"`
	Sunrise int64 `json:"sunrise"`
	Sunset  int64 `json:"sunset"`
	Temp    *struct {
		Day   float64 `json:"day"`
		Min   float64 `json:"min"`
		Max   float64 `json:"max"`
		Night float64 `json:"night"`
		Eve   float64 `json:"eve"`
		Morn  float64 `json:"morn"`
	} `json:"temp"`
	FeelsLike struct {
		Day   float64 `json:"day"`
		Night float64 `json:"night"`
		Eve   float64 `json:"eve"`
		Morn  float64 `json:"morn"`
	} `json:"feels_like"`
	Pressure  float64         `json:"pressure"`
	Humidity  float64         `json:"humidity"`
	Weather   []conditionJSON `json:"weather"`
	WindSpeed float64         `json:"wind_speed"`
	Pop       float64         `json:"pop"`
}

type alertJSON struct {
	SenderName  string `json:"sender_name"`
	Event       string `json:"event"`
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
	Description string `json:"description"`
}

// oneCallResponse represents the One Call API response structure
type oneCallResponse struct {
	Lat      float64      `json:"lat"`
	Lon      float64      `json:"lon"`
	Timezone string       `json:"timezone"`
	Current  *currentJSON `json:"current"`
	Daily    []dailyJSON  `json:"daily"`
	Alerts   []alertJSON  `json:"alerts"`
}

// Fetch gets current conditions, daily forecast and alerts in one One Call request
func (c *Client) Fetch(ctx context.Context, lat, lon float64, units models.Units) (models.WeatherSnapshot, error) {
	var resp oneCallResponse
	err := c.get(ctx, "weather.onecall", c.baseURL+"/onecall", map[string]string{
		"lat":     formatCoord(lat),
		"lon":     formatCoord(lon),
		"units":   string(units),
		"exclude": "minutely,hourly",
	}, &resp)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}

	snapshot, err := normalize(resp, units)
	if err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("weather.onecall: %w", err)
	}
	snapshot.Location = models.Location{Lat: lat, Lon: lon}
	snapshot.Fetched = c.now().UTC()
	return snapshot, nil
}

// normalize validates the required fields and maps the provider payload onto the snapshot model.
// The first daily entry is the current day and is dropped; at most MaxForecastDays follow.
func normalize(resp oneCallResponse, units models.Units) (models.WeatherSnapshot, error) {
	if resp.Current == nil {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: missing current", datasource.ErrMalformedResponse)
	}
	if resp.Current.Temp == nil {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: missing current.temp", datasource.ErrMalformedResponse)
	}
	if len(resp.Current.Weather) == 0 {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: missing current.weather", datasource.ErrMalformedResponse)
	}
	if resp.Daily == nil {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: missing daily", datasource.ErrMalformedResponse)
	}

	cur := resp.Current
	snapshot := models.WeatherSnapshot{
		Units: units,
		Current: models.CurrentConditions{
			Temp:       *cur.Temp,
			FeelsLike:  cur.FeelsLike,
			Humidity:   cur.Humidity,
			WindSpeed:  cur.WindSpeed,
			Condition:  toCondition(cur.Weather[0]),
			Observed:   unixTime(cur.Dt),
			Sunrise:    unixTime(cur.Sunrise),
			Sunset:     unixTime(cur.Sunset),
			UVI:        cur.UVI,
			Visibility: cur.Visibility,
			Pressure:   cur.Pressure,
		},
		Forecast: []models.DailyForecast{},
		Alerts:   []models.Alert{},
	}

	daily := make([]dailyJSON, len(resp.Daily))
	copy(daily, resp.Daily)
	sort.SliceStable(daily, func(i, j int) bool { return daily[i].Dt < daily[j].Dt })
	if len(daily) > 0 {
		daily = daily[1:]
	}
	if len(daily) > models.MaxForecastDays {
		daily = daily[:models.MaxForecastDays]
	}

	for i, day := range daily {
		if day.Temp == nil {
			return models.WeatherSnapshot{}, fmt.Errorf("%w: missing daily[%d].temp", datasource.ErrMalformedResponse, i+1)
		}
		if len(day.Weather) == 0 {
			return models.WeatherSnapshot{}, fmt.Errorf("%w: missing daily[%d].weather", datasource.ErrMalformedResponse, i+1)
		}

		conditions := make([]models.Condition, 0, len(day.Weather))
		for _, w := range day.Weather {
			conditions = append(conditions, toCondition(w))
		}

		snapshot.Forecast = append(snapshot.Forecast, models.DailyForecast{
			Time:    unixTime(day.Dt),
			Sunrise: unixTime(day.Sunrise),
			Sunset:  unixTime(day.Sunset),
			Temp: models.DayTemperatures{
				Day:   day.Temp.Day,
				Min:   day.Temp.Min,
				Max:   day.Temp.Max,
				Night: day.Temp.Night,
				Eve:   day.Temp.Eve,
				Morn:  day.Temp.Morn,
			},
			FeelsLike: models.DayFeelsLike{
				Day:   day.FeelsLike.Day,
				Night: day.FeelsLike.Night,
				Eve:   day.FeelsLike.Eve,
				Morn:  day.FeelsLike.Morn,
			},
			Pressure:   day.Pressure,
			Humidity:   day.Humidity,
			Conditions: conditions,
			WindSpeed:  day.WindSpeed,
			Pop:        clamp01(day.Pop),
		})
	}

	for _, a := range resp.Alerts {
		snapshot.Alerts = append(snapshot.Alerts, models.Alert{
			SenderName:  a.SenderName,
			Event:       a.Event,
			Start:       unixTime(a.Start),
			End:         unixTime(a.End),
			Description: a.Description,
		})
	}

	return snapshot, nil
}

func toCondition(w conditionJSON) models.Condition {
	return models.Condition{
		ID:          w.ID,
		Main:        w.Main,
		Description: w.Description,
		Icon:        w.Icon,
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
