package engine

import "time"

// ForecastPoint is one hour of forecast data
type ForecastPoint struct {
	Time  time.Time `json:"time"`  // UTC, hour-aligned
	Solar float64   `json:"solar"` // irradiance proxy, W/m²
	Wind  float64   `json:"wind"`  // wind speed at 10m
	Cloud float64   `json:"cloud"` // percentage 0-100
}

// ForecastSeries is a contiguous hourly run in time order, as returned by the provider
type ForecastSeries []ForecastPoint

// ScoredPoint is a forecast hour with its derived green score
type ScoredPoint struct {
	ForecastPoint
	GreenScore  float64 `json:"green_score"`
	Recommended bool    `json:"recommended"` // inside the recommended charging window
}

// ScoredSeries is a ForecastSeries with green scores
type ScoredSeries []ScoredPoint

// ChargeRequirement describes how much charging a vehicle needs
type ChargeRequirement struct {
	BatteryCapacityKWh float64 `json:"battery_capacity_kwh"`
	CurrentSoCPercent  float64 `json:"current_soc"`
	TargetSoCPercent   float64 `json:"target_soc"`
	ChargerPowerKW     float64 `json:"charger_power_kw"`
}

// RecommendedWindow is the contiguous block of hours with the best average green score
type RecommendedWindow struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	AverageScore float64   `json:"average_score"`
	StartIndex   int       `json:"start_index"`
	Hours        int       `json:"hours"`
}

// VehicleType distinguishes EV drivers from everyone else
type VehicleType string

const (
	VehicleEV    VehicleType = "EV"
	VehicleNonEV VehicleType = "Non-EV"
)

// Profile holds a user's vehicle parameters, location and eco points
type Profile struct {
	Username           string      `json:"username"`
	VehicleType        VehicleType `json:"vehicle_type"`
	Points             int         `json:"points"`
	Latitude           float64     `json:"latitude"`
	Longitude          float64     `json:"longitude"`
	BatteryCapacityKWh float64     `json:"battery_capacity_kwh"`
	ChargerPowerKW     float64     `json:"charger_power_kw"`
	CurrentSoC         int         `json:"current_soc"`
	TargetSoC          int         `json:"target_soc"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// ChargeRequirement builds the charging requirement from the profile's vehicle parameters
func (p *Profile) ChargeRequirement() ChargeRequirement {
	return ChargeRequirement{
		BatteryCapacityKWh: p.BatteryCapacityKWh,
		CurrentSoCPercent:  float64(p.CurrentSoC),
		TargetSoCPercent:   float64(p.TargetSoC),
		ChargerPowerKW:     p.ChargerPowerKW,
	}
}

// DefaultProfile returns a profile with the same vehicle defaults the dashboard starts with
func DefaultProfile(username string) *Profile {
	return &Profile{
		Username:           username,
		VehicleType:        VehicleEV,
		Latitude:           19.07,
		Longitude:          72.87,
		BatteryCapacityKWh: 60,
		ChargerPowerKW:     7,
		CurrentSoC:         40,
		TargetSoC:          80,
	}
}
