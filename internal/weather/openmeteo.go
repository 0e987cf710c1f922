package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/awaistahir/ecocharge/internal/engine"
	"github.com/awaistahir/ecocharge/internal/log"
)

const (
	openMeteoAPIBase = "https://api.open-meteo.com/v1/forecast"

	windField  = "wind_speed_10m"
	cloudField = "cloudcover"
	timeField  = "time"

	defaultForecastDays = 3
	defaultTimeout      = 15 * time.Second
)

// DefaultSolarFields lists the solar proxy variable names in the order they are tried.
// Older API versions only know the second one.
var DefaultSolarFields = []string{"shortwave_radiation", "solar_radiation"}

// OpenMeteoClient fetches hourly solar, wind and cloud forecasts from Open-Meteo
type OpenMeteoClient struct {
	httpClient   *http.Client
	baseURL      string
	solarFields  []string
	forecastDays int
	limiter      *rate.Limiter
}

// Option configures an OpenMeteoClient
type Option func(*OpenMeteoClient)

// WithBaseURL points the client at a different forecast endpoint
func WithBaseURL(u string) Option {
	return func(c *OpenMeteoClient) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithSolarFields sets the ordered list of solar variable names to try
func WithSolarFields(fields []string) Option {
	return func(c *OpenMeteoClient) {
		if len(fields) > 0 {
			c.solarFields = append([]string(nil), fields...)
		}
	}
}

// WithForecastDays sets how many days of forecast are requested
func WithForecastDays(days int) Option {
	return func(c *OpenMeteoClient) {
		if days > 0 {
			c.forecastDays = days
		}
	}
}

// WithTimeout bounds each HTTP request
func WithTimeout(d time.Duration) Option {
	return func(c *OpenMeteoClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit throttles upstream requests. rps <= 0 disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *OpenMeteoClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewOpenMeteoClient creates a new Open-Meteo client
func NewOpenMeteoClient(opts ...Option) *OpenMeteoClient {
	c := &OpenMeteoClient{
		httpClient:   &http.Client{Timeout: defaultTimeout},
		baseURL:      openMeteoAPIBase,
		solarFields:  append([]string(nil), DefaultSolarFields...),
		forecastDays: defaultForecastDays,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns up to horizonHours hourly points starting at the beginning of the
// provider's forecast. Each solar field name is tried in order; only a 400 response
// moves on to the next name.
func (c *OpenMeteoClient) Fetch(ctx context.Context, lat, lon float64, horizonHours int) (engine.ForecastSeries, error) {
	var lastErr error
	for i, field := range c.solarFields {
		series, err := c.fetchWithSolarField(ctx, lat, lon, field)
		if err == nil {
			return truncate(series, horizonHours), nil
		}
		lastErr = err

		var upstreamErr *UpstreamError
		if !errors.As(err, &upstreamErr) || !upstreamErr.IsBadRequest() {
			return nil, err
		}
		if i+1 < len(c.solarFields) {
			log.Warnw("forecast provider rejected solar field, trying fallback",
				"field", field, "fallback", c.solarFields[i+1])
		}
	}
	return nil, lastErr
}

func truncate(series engine.ForecastSeries, horizonHours int) engine.ForecastSeries {
	if horizonHours > 0 && len(series) > horizonHours {
		return series[:horizonHours]
	}
	return series
}

func (c *OpenMeteoClient) fetchWithSolarField(ctx context.Context, lat, lon float64, solarField string) (engine.ForecastSeries, error) {
	params := url.Values{}
	params.Add("latitude", fmt.Sprintf("%.4f", lat))
	params.Add("longitude", fmt.Sprintf("%.4f", lon))
	params.Add("hourly", strings.Join([]string{solarField, windField, cloudField}, ","))
	params.Add("forecast_days", strconv.Itoa(c.forecastDays))
	params.Add("timezone", "UTC")

	fullURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &UpstreamError{Op: "rate limit wait", Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, &UpstreamError{Op: "creating request", Err: err}
	}

	log.Debugw("fetching forecast", "lat", lat, "lon", lon, "solar_field", solarField)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Op: "fetching", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &UpstreamError{
			Op:         "fetching",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("API returned: %s", strings.TrimSpace(string(body))),
		}
	}

	var meteoResp openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&meteoResp); err != nil {
		return nil, &UpstreamError{Op: "decoding response", Err: err}
	}

	return c.toSeries(meteoResp, solarField)
}

// openMeteoResponse keeps hourly arrays raw since the solar field name varies
type openMeteoResponse struct {
	Latitude  float64                    `json:"latitude"`
	Longitude float64                    `json:"longitude"`
	Hourly    map[string]json.RawMessage `json:"hourly"`
}

func (c *OpenMeteoClient) toSeries(meteoResp openMeteoResponse, solarField string) (engine.ForecastSeries, error) {
	var times []string
	if raw, ok := meteoResp.Hourly[timeField]; ok {
		if err := json.Unmarshal(raw, &times); err != nil {
			return nil, &UpstreamError{Op: "decoding time", Err: err}
		}
	}

	// The requested name first, then any other known name the provider answered with
	solarNames := append([]string{solarField}, c.solarFields...)
	solar, err := numericArray(meteoResp.Hourly, solarNames...)
	if err != nil {
		return nil, err
	}
	wind, err := numericArray(meteoResp.Hourly, windField)
	if err != nil {
		return nil, err
	}
	cloud, err := numericArray(meteoResp.Hourly, cloudField)
	if err != nil {
		return nil, err
	}

	series := make(engine.ForecastSeries, 0, len(times))
	for i, ts := range times {
		t, err := parseHour(ts)
		if err != nil {
			return nil, &UpstreamError{Op: "parsing time", Err: err}
		}

		series = append(series, engine.ForecastPoint{
			Time:  t,
			Solar: valueAt(solar, i),
			Wind:  valueAt(wind, i),
			Cloud: valueAt(cloud, i),
		})
	}

	return series, nil
}

// numericArray decodes the first field that is present and non-empty.
// Absent or empty fields yield nil, which reads as zeros.
func numericArray(hourly map[string]json.RawMessage, names ...string) ([]*float64, error) {
	for _, name := range names {
		raw, ok := hourly[name]
		if !ok || string(raw) == "null" {
			continue
		}
		var values []*float64
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, &UpstreamError{Op: "decoding " + name, Err: err}
		}
		if len(values) == 0 {
			continue
		}
		return values, nil
	}
	return nil, nil
}

func valueAt(values []*float64, i int) float64 {
	if i < len(values) && values[i] != nil {
		return *values[i]
	}
	return 0
}

func parseHour(s string) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02T15:04", s, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
