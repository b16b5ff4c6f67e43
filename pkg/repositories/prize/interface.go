package prize

import (
	"context"
	"errors"

	"github.com/fadedpez/clubwheel/pkg/entities"
)

var (
	ErrPrizeNotFound = errors.New("prize not found")
)

// StockChange is a stock edit applied against the stored counts in one step
type StockChange struct {
	Unlimited bool   // Clears both counts
	Total     *int64 // New total
	Remaining *int64 // New remaining; nil derives it from Total
	Refill    bool   // With Total and no Remaining, remaining becomes Total instead of being capped by it
}

// Repository defines the interface for prize catalog operations
type Repository interface {
	// Create inserts a new prize
	Create(ctx context.Context, prize *entities.Prize) error

	// Get retrieves a prize by ID
	Get(ctx context.Context, id string) (*entities.Prize, error)

	// Update saves the descriptive fields of a prize. Stock counts are only
	// changed through SetStock and Decrement; the stored counts are copied back
	// into prize.
	Update(ctx context.Context, prize *entities.Prize) error

	// SetStock atomically applies a stock edit and returns the stored prize.
	// Without Remaining, a Total alone caps the current remaining count (or
	// refills it when Refill is set). A Remaining alone keeps an existing total.
	SetStock(ctx context.Context, id string, change StockChange) (*entities.Prize, error)

	// Delete removes a prize from the catalog
	Delete(ctx context.Context, id string) error

	// List returns prizes ordered by slot index
	List(ctx context.Context, activeOnly bool) ([]*entities.Prize, error)

	// Decrement atomically lowers the remaining quantity of a limited prize by one,
	// never going below zero. Unlimited prizes are returned unchanged.
	Decrement(ctx context.Context, id string) (*entities.Prize, error)
}
