package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"weather-dashboard/models"

	"github.com/go-resty/resty/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type geocodeResponse struct {
	Results []models.Location `json:"results"`
}

type weatherResponse struct {
	State    string                  `json:"state"`
	Units    models.Units            `json:"units"`
	Snapshot *models.WeatherSnapshot `json:"snapshot"`
	Error    string                  `json:"error"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func main() {
	server := flag.String("server", "http://localhost:8080", "Dashboard API base URL")
	unitsFlag := flag.String("units", "", "Unit system: metric or imperial")
	flag.Parse()

	client := resty.New().
		SetBaseURL(strings.TrimRight(*server, "/")).
		SetTimeout(30 * time.Second).
		SetError(&errorResponse{})

	if err := run(client, *unitsFlag, strings.Join(flag.Args(), " "), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(client *resty.Client, unitsFlag, city string, out io.Writer) error {
	if unitsFlag != "" {
		units, err := models.ParseUnits(unitsFlag)
		if err != nil {
			return err
		}
		if _, err := call(client.R().SetBody(map[string]string{"units": string(units)}).SetResult(&weatherResponse{}), "PUT", "/api/units"); err != nil {
			return fmt.Errorf("set units: %w", err)
		}
	}

	var status *weatherResponse
	if city != "" {
		resp, err := call(client.R().SetQueryParam("q", city).SetResult(&geocodeResponse{}), "GET", "/api/geocode")
		if err != nil {
			return fmt.Errorf("search %q: %w", city, err)
		}
		results := resp.Result().(*geocodeResponse).Results
		if len(results) == 0 {
			return fmt.Errorf("no locations found for %q", city)
		}

		resp, err = call(client.R().SetBody(results[0]).SetResult(&weatherResponse{}), "POST", "/api/location")
		if err != nil {
			return fmt.Errorf("select %s: %w", results[0], err)
		}
		status = resp.Result().(*weatherResponse)
	} else {
		resp, err := call(client.R().SetResult(&weatherResponse{}), "GET", "/api/weather")
		if err != nil {
			return fmt.Errorf("get weather: %w", err)
		}
		status = resp.Result().(*weatherResponse)
	}

	if status.Snapshot == nil {
		if status.Error != "" {
			return fmt.Errorf("dashboard is in %s state: %s", status.State, status.Error)
		}
		return fmt.Errorf("no weather yet (state %s), try again shortly", status.State)
	}
	printSnapshot(out, *status.Snapshot)
	return nil
}

func call(req *resty.Request, method, path string) (*resty.Response, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		e, ok := resp.Error().(*errorResponse)
		switch {
		case ok && e.Message != "":
			return resp, fmt.Errorf("%s: %s", resp.Status(), e.Message)
		case ok && e.Error != "":
			// a failed refresh answers with the dashboard status, whose error field is the detail
			return resp, fmt.Errorf("%s: %s", resp.Status(), e.Error)
		}
		return resp, fmt.Errorf("%s", resp.Status())
	}
	return resp, nil
}

func printSnapshot(out io.Writer, snap models.WeatherSnapshot) {
	title := cases.Title(language.English)
	sym := snap.Units.Symbol()
	cur := snap.Current

	fmt.Fprintf(out, "%s\n", snap.Location)
	fmt.Fprintln(out, strings.Repeat("=", len(snap.Location.String())))
	fmt.Fprintf(out, "%.1f%s  %s\n", cur.Temp, sym, title.String(cur.Condition.Description))
	fmt.Fprintf(out, "Feels like %.1f%s, humidity %.0f%%, wind %.1f %s\n",
		cur.FeelsLike, sym, cur.Humidity, cur.WindSpeed, snap.Units.SpeedUnit())
	fmt.Fprintf(out, "UV %.1f, pressure %.0f hPa, visibility %.0f m\n", cur.UVI, cur.Pressure, cur.Visibility)
	if !cur.Sunrise.IsZero() {
		fmt.Fprintf(out, "Sunrise %s, sunset %s\n", cur.Sunrise.Local().Format("15:04"), cur.Sunset.Local().Format("15:04"))
	}

	if len(snap.Forecast) > 0 {
		fmt.Fprintln(out, "\nForecast")
		for _, day := range snap.Forecast {
			fmt.Fprintf(out, "  %s  %5.1f%s / %5.1f%s  %3.0f%%  %s\n",
				day.Time.Local().Format("Mon Jan 2"),
				day.Temp.Max, sym, day.Temp.Min, sym,
				day.Pop*100,
				title.String(day.Primary().Description))
		}
	}

	if len(snap.Alerts) > 0 {
		fmt.Fprintln(out, "\nAlerts")
		for _, alert := range snap.Alerts {
			fmt.Fprintf(out, "  %s (%s)\n    %s - %s\n", alert.Event, alert.SenderName,
				alert.Start.Local().Format("Jan 2 15:04"), alert.End.Local().Format("Jan 2 15:04"))
		}
	}
}
