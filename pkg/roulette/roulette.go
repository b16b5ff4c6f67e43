// Package roulette picks the prize a wheel spin lands on.
package roulette

import (
	"errors"
	"math/rand/v2"
	"sort"

	"github.com/fadedpez/clubwheel/pkg/entities"
)

var ErrNoPrizes = errors.New("no active prizes")

// Source yields uniform values in [0, 1). *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 {
	return rand.Float64()
}

// NewSource returns the process-wide, goroutine-safe random source
func NewSource() Source {
	return globalSource{}
}

// Pool returns the prizes a spin chooses between: active prizes ordered by slot,
// narrowed to those still in stock. When nothing is in stock every active prize
// stays in the pool and the caller is expected to reject an exhausted pick.
func Pool(prizes []*entities.Prize) []*entities.Prize {
	active := activeBySlot(prizes)

	inStock := make([]*entities.Prize, 0, len(active))
	for _, p := range active {
		if p.InStock() {
			inStock = append(inStock, p)
		}
	}
	if len(inStock) == 0 {
		return active
	}
	return inStock
}

func activeBySlot(prizes []*entities.Prize) []*entities.Prize {
	active := make([]*entities.Prize, 0, len(prizes))
	for _, p := range prizes {
		if p.Active {
			active = append(active, p)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].SlotIndex < active[j].SlotIndex
	})
	return active
}

func totalWeight(pool []*entities.Prize) float64 {
	var total float64
	for _, p := range pool {
		total += p.Weight
	}
	return total
}

// Select draws one prize with probability proportional to its weight.
// It never mutates inventory.
func Select(prizes []*entities.Prize, rng Source) (*entities.Prize, error) {
	pool := Pool(prizes)
	if len(pool) == 0 {
		return nil, ErrNoPrizes
	}

	total := totalWeight(pool)
	if total <= 0 {
		return pool[0], nil
	}

	r := rng.Float64() * total
	var cumulative float64
	for _, p := range pool {
		cumulative += p.Weight
		if r < cumulative {
			return p, nil
		}
	}

	// Float rounding can leave r just above the final cumulative sum
	return pool[len(pool)-1], nil
}

// Odds is the public chance of landing on one prize
type Odds struct {
	Prize   *entities.Prize
	Percent float64
}

// ComputeOdds returns every active prize in slot order with its chance in percent.
// Prizes outside the selection pool get zero.
func ComputeOdds(prizes []*entities.Prize) []Odds {
	pool := Pool(prizes)
	inPool := make(map[*entities.Prize]bool, len(pool))
	for _, p := range pool {
		inPool[p] = true
	}
	total := totalWeight(pool)

	active := activeBySlot(prizes)
	odds := make([]Odds, 0, len(active))
	for _, p := range active {
		percent := 0.0
		switch {
		case !inPool[p]:
		case total > 0:
			percent = p.Weight / total * 100
		case p == pool[0]:
			percent = 100
		}
		odds = append(odds, Odds{Prize: p, Percent: percent})
	}
	return odds
}
