// Package rewards holds the eco action catalogue and credits points for it.
package rewards

import (
	"context"
	"errors"
	"fmt"

	"github.com/awaistahir/ecocharge/internal/log"
	"github.com/awaistahir/ecocharge/internal/store"
)

// MilestonePoints is the total at which a user is celebrated
const MilestonePoints = 100

var ErrUnknownAction = errors.New("unknown action")

// Action is one entry of the catalogue
type Action struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Points int    `json:"points"`
}

var catalogue = []Action{
	{Key: "plan-trips", Label: "Plan trips to reduce driving", Points: 5},
	{Key: "public-transport", Label: "Use public transport / carpool", Points: 10},
	{Key: "green-charging", Label: "Charge during green hours", Points: 8},
	{Key: "drive-smoothly", Label: "Drive smoothly (avoid harsh braking)", Points: 5},
	{Key: "service-vehicle", Label: "Service vehicle for better efficiency", Points: 6},
}

// Catalogue returns the actions in display order
func Catalogue() []Action {
	out := make([]Action, len(catalogue))
	copy(out, catalogue)
	return out
}

// Lookup finds an action by key
func Lookup(key string) (Action, error) {
	for _, a := range catalogue {
		if a.Key == key {
			return a, nil
		}
	}
	return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, key)
}

// Recorder persists an action and returns the new points total
type Recorder interface {
	RecordAction(ctx context.Context, username, label string, points int) (*store.Action, int, error)
}

// Result is the outcome of awarding an action
type Result struct {
	Action    *store.Action `json:"action"`
	Total     int           `json:"total_points"`
	Milestone bool          `json:"milestone"`
}

// Award records the catalogue action for a user
func Award(ctx context.Context, recorder Recorder, username, key string) (*Result, error) {
	action, err := Lookup(key)
	if err != nil {
		return nil, err
	}

	recorded, total, err := recorder.RecordAction(ctx, username, action.Label, action.Points)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Action:    recorded,
		Total:     total,
		Milestone: total >= MilestonePoints,
	}
	log.Infow("eco action recorded", "username", username, "action", key,
		"points", action.Points, "total", total, "milestone", res.Milestone)

	return res, nil
}
