package feed

import (
	"context"
	"sync"

	"github.com/fadedpez/clubwheel/pkg/entities"
)

// Ring is an in-process Feed for single-instance deployments
type Ring struct {
	mu       sync.Mutex
	items    []entities.RecentWin
	capacity int
}

// NewRing creates a ring holding at most capacity wins
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{
		items:    make([]entities.RecentWin, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a win and evicts the oldest beyond capacity
func (r *Ring) Push(ctx context.Context, win entities.RecentWin) ([]entities.RecentWin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = append(r.items, win)
	if len(r.items) > r.capacity {
		r.items = append(r.items[:0:0], r.items[len(r.items)-r.capacity:]...)
	}
	return r.snapshotLocked(), nil
}

// Snapshot returns a copy of the current contents
func (r *Ring) Snapshot(ctx context.Context) ([]entities.RecentWin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshotLocked(), nil
}

func (r *Ring) snapshotLocked() []entities.RecentWin {
	out := make([]entities.RecentWin, len(r.items))
	copy(out, r.items)
	return out
}
