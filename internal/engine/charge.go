package engine

import (
	"fmt"
	"math"
)

// minChargerPowerKW keeps the hour count finite for a zero or near-zero charger
const minChargerPowerKW = 0.1

// EnergyNeededKWh returns the energy needed to go from current to target state of charge.
// A target below the current level needs nothing.
func (c ChargeRequirement) EnergyNeededKWh() float64 {
	return c.BatteryCapacityKWh * math.Max(0, (c.TargetSoCPercent-c.CurrentSoCPercent)/100)
}

// HoursNeeded returns the whole hours of charging required, never less than one
func (c ChargeRequirement) HoursNeeded() int {
	hours := int(math.Ceil(c.EnergyNeededKWh() / math.Max(minChargerPowerKW, c.ChargerPowerKW)))
	if hours < 1 {
		return 1
	}
	return hours
}

// Validate checks the requirement against the ranges accepted from a profile
func (c ChargeRequirement) Validate() error {
	if c.BatteryCapacityKWh <= 0 {
		return fmt.Errorf("%w: battery capacity must be positive", ErrInvalidInput)
	}
	if c.ChargerPowerKW <= 0 {
		return fmt.Errorf("%w: charger power must be positive", ErrInvalidInput)
	}
	if c.CurrentSoCPercent < 0 || c.CurrentSoCPercent > 100 {
		return fmt.Errorf("%w: current state of charge must be between 0 and 100", ErrInvalidInput)
	}
	if c.TargetSoCPercent < 0 || c.TargetSoCPercent > 100 {
		return fmt.Errorf("%w: target state of charge must be between 0 and 100", ErrInvalidInput)
	}
	return nil
}

// HoursNeeded is a convenience wrapper around ChargeRequirement.HoursNeeded
func HoursNeeded(capacityKWh, currentSoC, targetSoC, chargerKW float64) int {
	return ChargeRequirement{
		BatteryCapacityKWh: capacityKWh,
		CurrentSoCPercent:  currentSoC,
		TargetSoCPercent:   targetSoC,
		ChargerPowerKW:     chargerKW,
	}.HoursNeeded()
}
