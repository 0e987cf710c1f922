// Package planner turns a forecast and a vehicle's charging needs into a
// recommended charging window.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/awaistahir/ecocharge/internal/engine"
	"github.com/awaistahir/ecocharge/internal/log"
	"github.com/awaistahir/ecocharge/internal/weather"
)

const (
	DefaultHorizonHours = 72

	ReasonNoHoursBeforeDeparture = "no forecast hours available before departure"
	ReasonNotEnoughHours         = "no contiguous block long enough before departure"
)

// Request describes one charging plan request
type Request struct {
	Latitude     float64
	Longitude    float64
	Departure    time.Time
	Charge       engine.ChargeRequirement
	HorizonHours int
}

// Validate checks the profile inputs the planner depends on
func (r Request) Validate() error {
	if r.Departure.IsZero() {
		return fmt.Errorf("%w: departure time is required", engine.ErrInvalidInput)
	}
	return r.Charge.Validate()
}

// Plan is the outcome of a planning call. Window is nil when no block fits
// before departure, in which case NoWindowReason says why.
type Plan struct {
	GeneratedAt     time.Time                 `json:"generated_at"`
	Departure       time.Time                 `json:"departure"`
	EnergyNeededKWh float64                   `json:"energy_needed_kwh"`
	HoursNeeded     int                       `json:"hours_needed"`
	Window          *engine.RecommendedWindow `json:"window,omitempty"`
	NoWindowReason  string                    `json:"no_window_reason,omitempty"`
	Series          engine.ScoredSeries       `json:"series"`
	Candidates      engine.ScoredSeries       `json:"candidates"`
}

// Found reports whether a window was recommended
func (p *Plan) Found() bool {
	return p.Window != nil
}

// Planner produces charging plans from a forecast source
type Planner struct {
	source         weather.Source
	defaultHorizon int
	now            func() time.Time
}

// New creates a planner. horizonHours is used when a request does not set one.
func New(source weather.Source, horizonHours int) *Planner {
	if horizonHours <= 0 {
		horizonHours = DefaultHorizonHours
	}
	return &Planner{
		source:         source,
		defaultHorizon: horizonHours,
		now:            time.Now,
	}
}

// Forecast fetches and scores the forecast for a coordinate
func (p *Planner) Forecast(ctx context.Context, lat, lon float64, horizonHours int) (engine.ScoredSeries, error) {
	if horizonHours <= 0 {
		horizonHours = p.defaultHorizon
	}
	series, err := p.source.Fetch(ctx, lat, lon, horizonHours)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch forecast: %w", err)
	}
	return engine.Score(series), nil
}

// Plan fetches the forecast, scores it, keeps the hours up to departure and
// searches them for the greenest block long enough to finish charging.
// Running out of hours is reported on the Plan, not as an error.
func (p *Planner) Plan(ctx context.Context, req Request) (*Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	scored, err := p.Forecast(ctx, req.Latitude, req.Longitude, req.HorizonHours)
	if err != nil {
		return nil, err
	}

	departure := req.Departure.UTC()
	plan := &Plan{
		GeneratedAt:     p.now().UTC(),
		Departure:       departure,
		EnergyNeededKWh: req.Charge.EnergyNeededKWh(),
		HoursNeeded:     req.Charge.HoursNeeded(),
		Series:          scored,
	}

	candidates := scored.Before(departure)
	plan.Candidates = candidates

	if len(candidates) == 0 {
		plan.NoWindowReason = ReasonNoHoursBeforeDeparture
		log.Infow("no charging window", "reason", plan.NoWindowReason, "departure", departure)
		return plan, nil
	}

	window, ok := engine.BestWindow(candidates, plan.HoursNeeded)
	if !ok {
		plan.NoWindowReason = ReasonNotEnoughHours
		log.Infow("no charging window", "reason", plan.NoWindowReason,
			"hours_needed", plan.HoursNeeded, "hours_available", len(candidates))
		return plan, nil
	}

	plan.Window = &window
	plan.Candidates = candidates.MarkWindow(window)

	log.Infow("charging window found",
		"start", window.Start, "end", window.End,
		"average_score", window.AverageScore, "hours_needed", plan.HoursNeeded)

	return plan, nil
}
