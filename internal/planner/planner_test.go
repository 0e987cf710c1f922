package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awaistahir/ecocharge/internal/engine"
	"github.com/awaistahir/ecocharge/internal/weather"
)

var baseTime = time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)

type stubSource struct {
	series     engine.ForecastSeries
	err        error
	gotHorizon int
}

func (s *stubSource) Fetch(ctx context.Context, lat, lon float64, horizonHours int) (engine.ForecastSeries, error) {
	s.gotHorizon = horizonHours
	if s.err != nil {
		return nil, s.err
	}
	return s.series, nil
}

func sixHours() engine.ForecastSeries {
	solar := []float64{0, 0, 0, 500, 800, 300}
	wind := []float64{1, 1, 1, 2, 2, 1}
	cloud := []float64{80, 80, 80, 10, 10, 50}

	s := make(engine.ForecastSeries, len(solar))
	for i := range solar {
		s[i] = engine.ForecastPoint{
			Time:  baseTime.Add(time.Duration(i) * time.Hour),
			Solar: solar[i],
			Wind:  wind[i],
			Cloud: cloud[i],
		}
	}
	return s
}

// 14 kWh at 7 kW is exactly two hours
var twoHourCharge = engine.ChargeRequirement{
	BatteryCapacityKWh: 56,
	CurrentSoCPercent:  50,
	TargetSoCPercent:   75,
	ChargerPowerKW:     7,
}

func TestPlan(t *testing.T) {
	src := &stubSource{series: sixHours()}
	p := New(src, 72)

	plan, err := p.Plan(context.Background(), Request{
		Latitude:  19.07,
		Longitude: 72.87,
		Departure: baseTime.Add(10 * time.Hour),
		Charge:    twoHourCharge,
	})
	require.NoError(t, err)
	require.True(t, plan.Found())

	assert.Equal(t, 72, src.gotHorizon)
	assert.Equal(t, 2, plan.HoursNeeded)
	assert.InDelta(t, 14.0, plan.EnergyNeededKWh, 1e-9)
	assert.Equal(t, baseTime.Add(3*time.Hour), plan.Window.Start)
	assert.Equal(t, baseTime.Add(5*time.Hour), plan.Window.End)
	assert.Len(t, plan.Series, 6)
	require.Len(t, plan.Candidates, 6)

	flags := []bool{}
	for _, c := range plan.Candidates {
		flags = append(flags, c.Recommended)
	}
	assert.Equal(t, []bool{false, false, false, true, true, false}, flags)
}

func TestPlanDeadlineTruncation(t *testing.T) {
	p := New(&stubSource{series: sixHours()}, 72)

	// Only hours 0..3 are at or before the deadline, so the 800 W/m² hour is out of reach
	plan, err := p.Plan(context.Background(), Request{
		Departure: baseTime.Add(3 * time.Hour),
		Charge:    twoHourCharge,
	})
	require.NoError(t, err)
	require.True(t, plan.Found())

	assert.Len(t, plan.Candidates, 4)
	assert.Equal(t, 2, plan.Window.StartIndex)
	assert.Equal(t, baseTime.Add(2*time.Hour), plan.Window.Start)
}

func TestPlanNoWindow(t *testing.T) {
	tests := []struct {
		name       string
		departure  time.Time
		charge     engine.ChargeRequirement
		wantReason string
	}{
		{
			name:       "departure before forecast starts",
			departure:  baseTime.Add(-time.Hour),
			charge:     twoHourCharge,
			wantReason: ReasonNoHoursBeforeDeparture,
		},
		{
			name:      "not enough hours before departure",
			departure: baseTime.Add(2 * time.Hour),
			charge: engine.ChargeRequirement{
				BatteryCapacityKWh: 60, CurrentSoCPercent: 10, TargetSoCPercent: 100, ChargerPowerKW: 7,
			},
			wantReason: ReasonNotEnoughHours,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(&stubSource{series: sixHours()}, 72)
			plan, err := p.Plan(context.Background(), Request{Departure: tt.departure, Charge: tt.charge})
			require.NoError(t, err)

			assert.False(t, plan.Found())
			assert.Nil(t, plan.Window)
			assert.Equal(t, tt.wantReason, plan.NoWindowReason)
			assert.Len(t, plan.Series, 6)
		})
	}
}

func TestPlanEmptyForecast(t *testing.T) {
	p := New(&stubSource{series: engine.ForecastSeries{}}, 72)
	plan, err := p.Plan(context.Background(), Request{Departure: baseTime, Charge: twoHourCharge})
	require.NoError(t, err)
	assert.False(t, plan.Found())
	assert.Equal(t, ReasonNoHoursBeforeDeparture, plan.NoWindowReason)
}

func TestPlanUpstreamError(t *testing.T) {
	upstream := &weather.UpstreamError{Op: "fetching", StatusCode: 502, Err: errors.New("bad gateway")}
	p := New(&stubSource{err: upstream}, 72)

	_, err := p.Plan(context.Background(), Request{Departure: baseTime, Charge: twoHourCharge})
	require.Error(t, err)
	assert.True(t, weather.IsUpstream(err))
	assert.Contains(t, err.Error(), "failed to fetch forecast")
}

func TestPlanInvalidInput(t *testing.T) {
	p := New(&stubSource{series: sixHours()}, 72)

	_, err := p.Plan(context.Background(), Request{Charge: twoHourCharge})
	assert.ErrorIs(t, err, engine.ErrInvalidInput)

	bad := twoHourCharge
	bad.ChargerPowerKW = 0
	_, err = p.Plan(context.Background(), Request{Departure: baseTime, Charge: bad})
	assert.ErrorIs(t, err, engine.ErrInvalidInput)
}

func TestForecastUsesRequestHorizon(t *testing.T) {
	src := &stubSource{series: sixHours()}
	p := New(src, 0)

	scored, err := p.Forecast(context.Background(), 1, 2, 24)
	require.NoError(t, err)
	assert.Equal(t, 24, src.gotHorizon)
	assert.Len(t, scored, 6)

	_, err = p.Forecast(context.Background(), 1, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultHorizonHours, src.gotHorizon)
}
