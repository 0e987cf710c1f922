package weather

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/awaistahir/ecocharge/internal/config"
	"github.com/awaistahir/ecocharge/internal/engine"
)

// Source fetches an hourly forecast series for a coordinate
type Source interface {
	Fetch(ctx context.Context, lat, lon float64, horizonHours int) (engine.ForecastSeries, error)
}

// UpstreamError is returned when the forecast provider cannot be reached
// or its response cannot be used
type UpstreamError struct {
	Op         string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("forecast %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("forecast %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsBadRequest reports whether the provider rejected the request parameters
func (e *UpstreamError) IsBadRequest() bool {
	return e.StatusCode == http.StatusBadRequest
}

// IsUpstream reports whether err came from the forecast provider
func IsUpstream(err error) bool {
	var upstreamErr *UpstreamError
	return errors.As(err, &upstreamErr)
}

// NewSource builds the configured Open-Meteo client behind a TTL cache
func NewSource(cfg config.ForecastConfig) *CachedSource {
	client := NewOpenMeteoClient(
		WithBaseURL(cfg.BaseURL),
		WithSolarFields(cfg.SolarFields),
		WithForecastDays(cfg.Days),
		WithTimeout(cfg.Timeout),
		WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)
	return NewCachedSource(client, cfg.CacheTTL)
}
