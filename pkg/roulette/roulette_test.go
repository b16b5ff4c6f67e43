package roulette

import (
	"math/rand/v2"
	"testing"

	"github.com/fadedpez/clubwheel/pkg/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedSource replays the given values in order
type fixedSource struct {
	values []float64
	next   int
}

func (f *fixedSource) Float64() float64 {
	v := f.values[f.next%len(f.values)]
	f.next++
	return v
}

func prize(name string, slot int, weight float64) *entities.Prize {
	return &entities.Prize{
		ID:        name,
		Name:      name,
		Category:  entities.PrizePoints,
		Weight:    weight,
		SlotIndex: slot,
		Active:    true,
	}
}

func limited(p *entities.Prize, remaining int64) *entities.Prize {
	p.TotalQuantity = entities.Int64Ptr(10)
	p.RemainingQuantity = entities.Int64Ptr(remaining)
	return p
}

func TestSelectEmptyCatalog(t *testing.T) {
	_, err := Select(nil, NewSource())
	assert.ErrorIs(t, err, ErrNoPrizes)

	inactive := prize("hidden", 0, 50)
	inactive.Active = false
	_, err = Select([]*entities.Prize{inactive}, NewSource())
	assert.ErrorIs(t, err, ErrNoPrizes)
}

func TestSelectWalksCumulativeWeightsInSlotOrder(t *testing.T) {
	// Deliberately unsorted input; slot order is a, b, c with cumulative 10, 40, 100
	prizes := []*entities.Prize{prize("c", 2, 60), prize("a", 0, 10), prize("b", 1, 30)}

	testCases := []struct {
		name     string
		value    float64
		expected string
	}{
		{"start of range", 0.0, "a"},
		{"just below first boundary", 0.0999, "a"},
		{"exactly on first boundary", 0.1, "b"},
		{"inside second", 0.39, "b"},
		{"exactly on second boundary", 0.4, "c"},
		{"end of range", 0.9999, "c"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Select(prizes, &fixedSource{values: []float64{tc.value}})
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got.Name)
		})
	}
}

func TestSelectRoundingFallsBackToLast(t *testing.T) {
	prizes := []*entities.Prize{prize("a", 0, 0.1), prize("b", 1, 0.2)}

	got, err := Select(prizes, &fixedSource{values: []float64{1.0}})
	require.NoError(t, err)
	assert.Equal(t, "b", got.Name)
}

func TestSelectZeroTotalWeightPicksFirstSlot(t *testing.T) {
	prizes := []*entities.Prize{prize("second", 5, 0), prize("first", 1, 0)}

	for i := 0; i < 10; i++ {
		got, err := Select(prizes, NewSource())
		require.NoError(t, err)
		assert.Equal(t, "first", got.Name)
	}
}

func TestSelectConvergesToWeights(t *testing.T) {
	prizes := []*entities.Prize{prize("a", 0, 50), prize("b", 1, 30), prize("c", 2, 15), prize("d", 3, 5)}
	rng := rand.New(rand.NewPCG(42, 7))

	const draws = 200000
	counts := make(map[string]int)
	for i := 0; i < draws; i++ {
		got, err := Select(prizes, rng)
		require.NoError(t, err)
		counts[got.Name]++
	}

	expected := map[string]float64{"a": 0.50, "b": 0.30, "c": 0.15, "d": 0.05}
	for name, share := range expected {
		assert.InDelta(t, share, float64(counts[name])/draws, 0.01, "share of %s", name)
	}
}

func TestSelectSkipsExhaustedWhileOthersQualify(t *testing.T) {
	exhausted := limited(prize("gone", 0, 90), 0)
	prizes := []*entities.Prize{exhausted, prize("points", 1, 10), limited(prize("last", 2, 10), 1)}
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 200000; i++ {
		got, err := Select(prizes, rng)
		require.NoError(t, err)
		require.NotEqual(t, "gone", got.Name)
	}
}

func TestSelectFallsBackToAllActiveWhenEverythingIsExhausted(t *testing.T) {
	prizes := []*entities.Prize{limited(prize("a", 0, 50), 0), limited(prize("b", 1, 50), 0)}

	got, err := Select(prizes, &fixedSource{values: []float64{0.75}})
	require.NoError(t, err)
	assert.Equal(t, "b", got.Name)
	assert.False(t, got.InStock(), "caller decides what to do with an exhausted pick")
}

func TestSelectDoesNotMutateInventory(t *testing.T) {
	p := limited(prize("a", 0, 50), 3)

	_, err := Select([]*entities.Prize{p}, NewSource())
	require.NoError(t, err)
	assert.Equal(t, int64(3), *p.RemainingQuantity)
}

func TestComputeOdds(t *testing.T) {
	hidden := prize("hidden", 4, 100)
	hidden.Active = false
	prizes := []*entities.Prize{
		prize("b", 1, 30),
		prize("a", 0, 10),
		limited(prize("gone", 2, 60), 0),
		hidden,
	}

	odds := ComputeOdds(prizes)
	require.Len(t, odds, 3)
	assert.Equal(t, "a", odds[0].Prize.Name)
	assert.InDelta(t, 25.0, odds[0].Percent, 1e-9)
	assert.InDelta(t, 75.0, odds[1].Percent, 1e-9)
	assert.Equal(t, "gone", odds[2].Prize.Name)
	assert.Zero(t, odds[2].Percent)
}

func TestComputeOddsZeroWeights(t *testing.T) {
	odds := ComputeOdds([]*entities.Prize{prize("b", 1, 0), prize("a", 0, 0)})
	require.Len(t, odds, 2)
	assert.Equal(t, 100.0, odds[0].Percent)
	assert.Zero(t, odds[1].Percent)
}
