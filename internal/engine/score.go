package engine

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

const (
	solarWeight = 0.7
	windWeight  = 0.3

	// Maxima are floored so an all-dark or calm series does not divide by zero
	// and a tiny non-zero maximum is not stretched to a full score.
	minNormalizationMax = 1.0
)

// Score computes a green score in [0,1] for every hour of the series.
// Solar and wind are normalized against the series' own maxima, mixed 70/30
// and scaled down by cloud cover.
func Score(series ForecastSeries) ScoredSeries {
	if len(series) == 0 {
		return ScoredSeries{}
	}

	solar := make([]float64, len(series))
	wind := make([]float64, len(series))
	for i, p := range series {
		solar[i] = p.Solar
		wind[i] = p.Wind
	}

	solarMax := math.Max(floats.Max(solar), minNormalizationMax)
	windMax := math.Max(floats.Max(wind), minNormalizationMax)

	scored := make(ScoredSeries, len(series))
	for i, p := range series {
		green := solarWeight*(p.Solar/solarMax) + windWeight*(p.Wind/windMax)
		green *= (100 - p.Cloud) / 100

		scored[i] = ScoredPoint{
			ForecastPoint: p,
			GreenScore:    clamp01(green),
		}
	}

	return scored
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Before returns the points with timestamp at or before the deadline
func (s ScoredSeries) Before(deadline time.Time) ScoredSeries {
	result := ScoredSeries{}
	for _, p := range s {
		if !p.Time.After(deadline) {
			result = append(result, p)
		}
	}
	return result
}

// Scores returns the green score column
func (s ScoredSeries) Scores() []float64 {
	scores := make([]float64, len(s))
	for i, p := range s {
		scores[i] = p.GreenScore
	}
	return scores
}

// MarkWindow returns a copy of the series with the window's hours flagged as recommended
func (s ScoredSeries) MarkWindow(w RecommendedWindow) ScoredSeries {
	marked := make(ScoredSeries, len(s))
	copy(marked, s)
	for i := range marked {
		marked[i].Recommended = i >= w.StartIndex && i < w.StartIndex+w.Hours
	}
	return marked
}
