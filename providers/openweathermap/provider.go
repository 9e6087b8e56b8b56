package openweathermap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"weather-dashboard/datasource"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	providerName = "OpenWeatherMap"
	tracerName   = "weather-dashboard/providers/openweathermap"
	userAgent    = "weather-dashboard/1.0"
)

// Client talks to the OpenWeatherMap One Call and geocoding APIs.
// It implements both datasource.Geocoder and datasource.WeatherClient.
type Client struct {
	apiKey  string
	baseURL string
	geoURL  string
	http    *resty.Client
	now     func() time.Time
}

// Ensure Client implements the provider ports
var (
	_ datasource.Geocoder      = (*Client)(nil)
	_ datasource.WeatherClient = (*Client)(nil)
)

// New creates an OpenWeatherMap client. Requests are never retried.
func New(apiKey, baseURL, geoURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		geoURL:  strings.TrimRight(geoURL, "/"),
		http: resty.New().
			SetHeader("User-Agent", userAgent).
			SetHeader("Accept", "application/json").
			SetTimeout(timeout).
			SetRetryCount(0),
		now: time.Now,
	}
}

// NewFromConfig creates a client from the application configuration
func NewFromConfig(cfg *datasource.Config) *Client {
	owm := cfg.OpenWeatherMap
	return New(owm.APIKey, owm.BaseURL, owm.GeoURL, owm.Timeout.Std())
}

// Name returns the provider name
func (c *Client) Name() string {
	return providerName
}

// get performs a GET request and decodes the JSON body into out.
// Transport failures and non-2xx statuses map to ErrUnavailable, undecodable bodies to ErrMalformedResponse.
func (c *Client) get(ctx context.Context, op, endpoint string, params map[string]string, out interface{}) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.url", endpoint)),
	)
	defer span.End()

	params["appid"] = c.apiKey
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(endpoint)
	if err != nil {
		// url.Error carries the full URL including the API key
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return fmt.Errorf("%s: %w: %w", op, datasource.ErrUnavailable, err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	if !resp.IsSuccess() {
		span.SetStatus(codes.Error, resp.Status())
		return fmt.Errorf("%s: %w: status %d: %s", op, datasource.ErrUnavailable, resp.StatusCode(), truncateBody(resp.Body()))
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return fmt.Errorf("%s: %w: %v", op, datasource.ErrMalformedResponse, err)
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func truncateBody(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// unixTime converts provider epoch seconds, keeping 0 as the zero time
func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
