package prize

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fadedpez/clubwheel/pkg/entities"
	"github.com/google/uuid"
)

// MemoryRepository implements Repository using in-memory storage
type MemoryRepository struct {
	prizes map[string]*entities.Prize
	mu     sync.RWMutex
}

// NewMemoryRepository creates a new in-memory prize repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		prizes: make(map[string]*entities.Prize),
	}
}

func copyPrize(p *entities.Prize) *entities.Prize {
	prizeCopy := *p
	if p.TotalQuantity != nil {
		prizeCopy.TotalQuantity = entities.Int64Ptr(*p.TotalQuantity)
	}
	if p.RemainingQuantity != nil {
		prizeCopy.RemainingQuantity = entities.Int64Ptr(*p.RemainingQuantity)
	}
	return &prizeCopy
}

// Create inserts a new prize
func (r *MemoryRepository) Create(ctx context.Context, prize *entities.Prize) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prize.ID == "" {
		prize.ID = uuid.New().String()
	}
	if prize.CreatedAt.IsZero() {
		prize.CreatedAt = time.Now().UTC()
	}

	r.prizes[prize.ID] = copyPrize(prize)
	return nil
}

// Get retrieves a prize by ID
func (r *MemoryRepository) Get(ctx context.Context, id string) (*entities.Prize, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prize, exists := r.prizes[id]
	if !exists {
		return nil, ErrPrizeNotFound
	}
	return copyPrize(prize), nil
}

// Update saves the descriptive fields of a prize and reads back its stock
func (r *MemoryRepository) Update(ctx context.Context, prize *entities.Prize) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.prizes[prize.ID]
	if !exists {
		return ErrPrizeNotFound
	}

	updated := copyPrize(prize)
	updated.CreatedAt = existing.CreatedAt
	updated.TotalQuantity = existing.TotalQuantity
	updated.RemainingQuantity = existing.RemainingQuantity
	r.prizes[prize.ID] = updated

	stored := copyPrize(updated)
	prize.TotalQuantity = stored.TotalQuantity
	prize.RemainingQuantity = stored.RemainingQuantity
	return nil
}

// SetStock applies a stock edit under the write lock
func (r *MemoryRepository) SetStock(ctx context.Context, id string, change StockChange) (*entities.Prize, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prize, exists := r.prizes[id]
	if !exists {
		return nil, ErrPrizeNotFound
	}

	switch {
	case change.Unlimited:
		prize.TotalQuantity = nil
		prize.RemainingQuantity = nil
	case change.Total != nil && change.Remaining != nil:
		prize.TotalQuantity = entities.Int64Ptr(*change.Total)
		prize.RemainingQuantity = entities.Int64Ptr(*change.Remaining)
	case change.Total != nil:
		total := *change.Total
		prize.TotalQuantity = entities.Int64Ptr(total)
		if change.Refill || prize.RemainingQuantity == nil || *prize.RemainingQuantity > total {
			prize.RemainingQuantity = entities.Int64Ptr(total)
		}
	case change.Remaining != nil:
		prize.RemainingQuantity = entities.Int64Ptr(*change.Remaining)
		if prize.TotalQuantity == nil {
			prize.TotalQuantity = entities.Int64Ptr(*change.Remaining)
		}
	}
	return copyPrize(prize), nil
}

// Delete removes a prize from the catalog
func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.prizes[id]; !exists {
		return ErrPrizeNotFound
	}
	delete(r.prizes, id)
	return nil
}

// List returns prizes ordered by slot index
func (r *MemoryRepository) List(ctx context.Context, activeOnly bool) ([]*entities.Prize, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*entities.Prize, 0, len(r.prizes))
	for _, prize := range r.prizes {
		if activeOnly && !prize.Active {
			continue
		}
		result = append(result, copyPrize(prize))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SlotIndex == result[j].SlotIndex {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].SlotIndex < result[j].SlotIndex
	})
	return result, nil
}

// Decrement lowers the remaining quantity by one, floored at zero
func (r *MemoryRepository) Decrement(ctx context.Context, id string) (*entities.Prize, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prize, exists := r.prizes[id]
	if !exists {
		return nil, ErrPrizeNotFound
	}

	if prize.Limited() && prize.RemainingQuantity != nil && *prize.RemainingQuantity > 0 {
		*prize.RemainingQuantity--
	}
	return copyPrize(prize), nil
}
