// Package lifestyle estimates the yearly CO2 saving of a lifestyle change
// described in a short free-text sentence.
package lifestyle

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Kind names the rule that matched a sentence
type Kind string

const (
	KindActiveCommute   Kind = "active-commute"
	KindVegan           Kind = "vegan"
	KindVegetarian      Kind = "vegetarian"
	KindPublicTransport Kind = "public-transport"
	KindWorkFromHome    Kind = "work-from-home"
	KindFlight          Kind = "flight"
	KindLED             Kind = "led"
	KindSolar           Kind = "solar"
	KindACSetpoint      Kind = "ac-setpoint"
	KindDriveSlower     Kind = "drive-slower"
	KindTransitShare    Kind = "transit-share"
	KindIdling          Kind = "idling"
	KindSwitchToEV      Kind = "switch-to-ev"
	KindUnknown         Kind = "unknown"
)

// Emission and energy factors
const (
	CarKgPerKm          = 0.18
	GridKgPerKWh        = 0.7
	FlightKgPerKm       = 0.20
	LEDKWhPerBulbYear   = 44
	SolarKWhPerKWDay    = 4.5
	ACKWhPerDegreeDay   = 0.4
	ACSeasonDays        = 180
	IdlingLitresPerHour = 0.8
	FuelKgPerLitre      = 2.31
	SpeedSavingFactor   = 0.15
	EVKWhPerKm          = 0.15
	MilesToKm           = 1.609
	transitShareFactor  = 0.5
	veganKgPerYear      = 1000
	vegetarianKgPerYear = 500
)

const unknownSummary = "Couldn't parse precisely. Try examples: 'bike 6 km 5 days/week', 'skip 1 flight 1200 km', 'install 3 kW solar'."

// Impact is the estimated saving for one sentence
type Impact struct {
	Kind       Kind    `json:"kind"`
	SavedKgCO2 float64 `json:"saved_kg_co2"`
	SavedKWh   float64 `json:"saved_kwh,omitempty"`
	Summary    string  `json:"summary"`
}

type rule struct {
	kind     Kind
	match    func(s string) bool
	estimate func(s string) Impact
}

// rules are tried in order; the first match wins
var rules = []rule{
	{KindActiveCommute, containsAny("bike", "cycle", "bicycle", "walk"), func(s string) Impact {
		km := kmInText(s, 5)
		days := daysPerWeek(s, 5)
		saved := km * days * 52 * CarKgPerKm
		return Impact{SavedKgCO2: saved,
			Summary: fmt.Sprintf("Switching %.1f km/day, %.0f days/week from car saves ~%.2f t CO2/year.", km, days, saved/1000)}
	}},
	{KindVegan, containsAny("vegan"), func(string) Impact {
		return Impact{SavedKgCO2: veganKgPerYear,
			Summary: "Going vegan can save ~1.0-1.5 t CO2/year (diet-dependent)."}
	}},
	{KindVegetarian, containsAny("vegetarian", "go veg"), func(string) Impact {
		return Impact{SavedKgCO2: vegetarianKgPerYear,
			Summary: "Going vegetarian can save ~0.5-1.0 t CO2/year (diet-dependent)."}
	}},
	{KindPublicTransport, containsAny("public transport", "bus", "train", "metro", "carpool"), func(s string) Impact {
		km := kmInText(s, 20)
		days := daysPerWeek(s, 5)
		saved := km * days * 52 * CarKgPerKm * 0.5
		return Impact{SavedKgCO2: saved,
			Summary: fmt.Sprintf("Switching %.0f km/day, %.0f days/week to public transport saves ~%.2f t CO2/year.", km, days, saved/1000)}
	}},
	{KindWorkFromHome, containsAny("work from home", "wfh"), func(s string) Impact {
		km := kmInText(s, 20)
		days := daysPerWeek(s, 2)
		saved := km * days * 52 * CarKgPerKm
		return Impact{SavedKgCO2: saved,
			Summary: fmt.Sprintf("WFH %.0f day(s)/week (commute %.0f km/day) saves ~%.2f t CO2/year.", days, km, saved/1000)}
	}},
	{KindFlight, containsAny("flight", "fly"), func(s string) Impact {
		km := kmInText(s, 1200)
		trips := firstNumber(s, 1)
		saved := km * 2 * trips * FlightKgPerKm
		return Impact{SavedKgCO2: saved,
			Summary: fmt.Sprintf("Skipping %d flight(s) of %.0f km (each way) saves ~%.2f t CO2.", int(trips), km, saved/1000)}
	}},
	{KindLED, func(s string) bool {
		return strings.Contains(s, "led") && containsAny("bulb", "light")(s)
	}, func(s string) Impact {
		bulbs := firstNumber(s, 6)
		kwh := bulbs * LEDKWhPerBulbYear
		saved := kwh * GridKgPerKWh
		return Impact{SavedKgCO2: saved, SavedKWh: kwh,
			Summary: fmt.Sprintf("Replacing %d bulbs with LED saves ~%.0f kWh/year (~%.2f t CO2).", int(bulbs), kwh, saved/1000)}
	}},
	{KindSolar, containsAny("solar"), func(s string) Impact {
		kw := firstNumber(s, 3)
		kwh := kw * SolarKWhPerKWDay * 365
		saved := kwh * GridKgPerKWh
		return Impact{SavedKgCO2: saved, SavedKWh: kwh,
			Summary: fmt.Sprintf("%.1f kW solar -> ~%.0f kWh/year -> offsets ~%.2f t CO2/year.", kw, kwh, saved/1000)}
	}},
	{KindACSetpoint, func(s string) bool {
		return strings.Contains(s, "ac") && containsAny("raise", "increase", "+")(s)
	}, func(s string) Impact {
		deg := firstNumber(s, 2)
		kwh := deg * ACKWhPerDegreeDay * ACSeasonDays
		saved := kwh * GridKgPerKWh
		return Impact{SavedKgCO2: saved, SavedKWh: kwh,
			Summary: fmt.Sprintf("Raising AC by %.0f C saves ~%.0f kWh/season (~%.2f t CO2).", deg, kwh, saved/1000)}
	}},
	{KindDriveSlower, containsAny("limit speed", "drive slower", "90 km/h"), func(s string) Impact {
		km := kmInText(s, 10000)
		saved := km * CarKgPerKm * SpeedSavingFactor
		return Impact{SavedKgCO2: saved,
			Summary: fmt.Sprintf("Limiting speed saves ~%.2f t CO2/year over %.0f km.", saved/1000, km)}
	}},
	{KindTransitShare, func(s string) bool {
		return strings.Contains(s, "%") && containsAny("bus", "train", "metro", "public")(s)
	}, func(s string) Impact {
		share := percentInText(s, 30) / 100
		km := kmInText(s, 12000)
		saved := km * share * CarKgPerKm * transitShareFactor
		return Impact{SavedKgCO2: saved,
			Summary: fmt.Sprintf("Shifting %.0f%% of %.0f km/year to public transit saves ~%.2f t CO2/year.", share*100, km, saved/1000)}
	}},
	{KindIdling, containsAny("idle", "idling"), func(s string) Impact {
		hours := firstNumber(s, 50)
		saved := hours * IdlingLitresPerHour * FuelKgPerLitre
		return Impact{SavedKgCO2: saved,
			Summary: fmt.Sprintf("Avoiding %.0f h idling saves ~%.2f t CO2.", hours, saved/1000)}
	}},
	{KindSwitchToEV, func(s string) bool {
		return strings.Contains(s, "switch to ev") || (strings.Contains(s, "switch") && strings.Contains(s, "ev"))
	}, func(s string) Impact {
		km := kmInText(s, 12000)
		ice := km * CarKgPerKm
		ev := km * EVKWhPerKm * GridKgPerKWh
		saved := math.Max(ice-ev, 0)
		return Impact{SavedKgCO2: saved,
			Summary: fmt.Sprintf("Switching to EV for %.0f km/year saves ~%.2f t CO2/year.", km, saved/1000)}
	}},
}

// Simulate estimates the impact of the change described by sentence
func Simulate(sentence string) Impact {
	s := strings.ToLower(strings.TrimSpace(sentence))
	for _, r := range rules {
		if r.match(s) {
			impact := r.estimate(s)
			impact.Kind = r.kind
			return impact
		}
	}
	return Impact{Kind: KindUnknown, Summary: unknownSummary}
}

func containsAny(keywords ...string) func(string) bool {
	return func(s string) bool {
		for _, k := range keywords {
			if strings.Contains(s, k) {
				return true
			}
		}
		return false
	}
}

var (
	numberRe   = regexp.MustCompile(`(\d+(\.\d+)?)`)
	kmRe       = regexp.MustCompile(`(\d+(\.\d+)?)\s*(km|kilometer|kilometre)s?`)
	milesRe    = regexp.MustCompile(`(\d+(\.\d+)?)\s*(mile|miles)`)
	daysWeekRe = regexp.MustCompile(`(\d+)\s*(day|days)\s*(a|per|/)?\s*week`)
	timesWeek  = regexp.MustCompile(`(\d+)\s*x\s*/?\s*week`)
	percentRe  = regexp.MustCompile(`(\d+(\.\d+)?)\s*%`)
)

func submatchFloat(re *regexp.Regexp, s string) (float64, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func firstNumber(s string, def float64) float64 {
	if v, ok := submatchFloat(numberRe, s); ok {
		return v
	}
	return def
}

func kmInText(s string, def float64) float64 {
	if v, ok := submatchFloat(kmRe, s); ok {
		return v
	}
	if v, ok := submatchFloat(milesRe, s); ok {
		return v * MilesToKm
	}
	return def
}

func daysPerWeek(s string, def float64) float64 {
	if v, ok := submatchFloat(daysWeekRe, s); ok {
		return v
	}
	if v, ok := submatchFloat(timesWeek, s); ok {
		return v
	}
	return def
}

func percentInText(s string, def float64) float64 {
	if v, ok := submatchFloat(percentRe, s); ok {
		return v
	}
	return def
}
