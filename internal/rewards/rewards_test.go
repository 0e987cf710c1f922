package rewards

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awaistahir/ecocharge/internal/engine"
	"github.com/awaistahir/ecocharge/internal/store"
)

func TestCatalogue(t *testing.T) {
	points := map[string]int{}
	for _, a := range Catalogue() {
		points[a.Key] = a.Points
	}
	assert.Equal(t, map[string]int{
		"plan-trips":       5,
		"public-transport": 10,
		"green-charging":   8,
		"drive-smoothly":   5,
		"service-vehicle":  6,
	}, points)

	// callers get a copy
	c := Catalogue()
	c[0].Points = 1000
	a, err := Lookup("plan-trips")
	require.NoError(t, err)
	assert.Equal(t, 5, a.Points)
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("plant-tree")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestAward(t *testing.T) {
	s, err := store.NewStore(filepath.Join(t.TempDir(), "ecocharge.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.UpsertProfile(ctx, engine.DefaultProfile("asha")))

	res, err := Award(ctx, s, "asha", "green-charging")
	require.NoError(t, err)
	assert.Equal(t, 8, res.Total)
	assert.False(t, res.Milestone)
	assert.Equal(t, "Charge during green hours", res.Action.Label)

	_, err = s.AddPoints(ctx, "asha", 85)
	require.NoError(t, err)

	res, err = Award(ctx, s, "asha", "public-transport")
	require.NoError(t, err)
	assert.Equal(t, 103, res.Total)
	assert.True(t, res.Milestone)

	_, err = Award(ctx, s, "asha", "nope")
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = Award(ctx, s, "ghost", "plan-trips")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
