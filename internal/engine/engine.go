package engine

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
)

var (
	ErrInvalidInput = errors.New("invalid input parameters")
)

// BestWindow finds the contiguous block of hoursNeeded hours with the highest
// average green score. The series must already be cut at the departure deadline.
// Returns false when the series is empty, hoursNeeded is not positive, or there
// are fewer hours than needed.
func BestWindow(series ScoredSeries, hoursNeeded int) (RecommendedWindow, bool) {
	if len(series) == 0 || hoursNeeded <= 0 {
		return RecommendedWindow{}, false
	}
	if hoursNeeded > len(series) {
		return RecommendedWindow{}, false
	}

	scores := series.Scores()

	bestAvg := -1.0
	bestStart := -1
	for i := 0; i+hoursNeeded <= len(scores); i++ {
		avg := stat.Mean(scores[i:i+hoursNeeded], nil)

		// Strictly greater: ties keep the earliest window
		if avg > bestAvg {
			bestAvg = avg
			bestStart = i
		}
	}

	if bestStart < 0 {
		return RecommendedWindow{}, false
	}

	start := series[bestStart].Time
	return RecommendedWindow{
		Start:        start,
		End:          start.Add(time.Duration(hoursNeeded) * time.Hour),
		AverageScore: bestAvg,
		StartIndex:   bestStart,
		Hours:        hoursNeeded,
	}, true
}

// Describe renders the window the way it is shown to users
func (w RecommendedWindow) Describe() string {
	return fmt.Sprintf("%s -> %s UTC (avg green score %.2f)",
		FormatTime(w.Start), FormatTime(w.End), w.AverageScore)
}

// FormatTime formats a timestamp as UTC minutes
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04")
}
