package spin

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
	spins  []*entities.Spin
	claims map[string]*entities.PrizeClaim
	mu     sync.RWMutex
}

// NewMemoryRepository creates a new in-memory spin repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		spins:  make([]*entities.Spin, 0),
		claims: make(map[string]*entities.PrizeClaim),
	}
}

func copyClaim(c *entities.PrizeClaim) *entities.PrizeClaim {
	claimCopy := *c
	if c.ConfirmedAt != nil {
		at := *c.ConfirmedAt
		claimCopy.ConfirmedAt = &at
	}
	return &claimCopy
}

// Create appends a spin record
func (r *MemoryRepository) Create(ctx context.Context, spin *entities.Spin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if spin.ID == "" {
		spin.ID = uuid.New().String()
	}
	if spin.CreatedAt.IsZero() {
		spin.CreatedAt = time.Now().UTC()
	}

	spinCopy := *spin
	r.spins = append(r.spins, &spinCopy)
	return nil
}

// Get retrieves a spin by ID
func (r *MemoryRepository) Get(ctx context.Context, id string) (*entities.Spin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, spin := range r.spins {
		if spin.ID == id {
			spinCopy := *spin
			return &spinCopy, nil
		}
	}
	return nil, ErrSpinNotFound
}

// LatestForClub returns the most recent spin at a club
func (r *MemoryRepository) LatestForClub(ctx context.Context, clubID string) (*entities.Spin, error) {
	spins, err := r.List(ctx, Filter{ClubID: clubID, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(spins) == 0 {
		return nil, ErrSpinNotFound
	}
	return spins[0], nil
}

func matchesSpin(spin *entities.Spin, filter Filter) bool {
	if filter.AccountID != "" && spin.AccountID != filter.AccountID {
		return false
	}
	if filter.ClubID != "" && spin.ClubID != filter.ClubID {
		return false
	}
	if filter.PrizeID != "" && spin.PrizeID != filter.PrizeID {
		return false
	}
	if filter.PaidOnly && spin.Cost <= 0 {
		return false
	}
	if !filter.From.IsZero() && spin.CreatedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && !spin.CreatedAt.Before(filter.To) {
		return false
	}
	return true
}

// List returns spins matching the filter, newest first
func (r *MemoryRepository) List(ctx context.Context, filter Filter) ([]*entities.Spin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*entities.Spin, 0)
	for i := len(r.spins) - 1; i >= 0; i-- {
		if matchesSpin(r.spins[i], filter) {
			spinCopy := *r.spins[i]
			result = append(result, &spinCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Count returns how many spins match the filter
func (r *MemoryRepository) Count(ctx context.Context, filter Filter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, spin := range r.spins {
		if matchesSpin(spin, filter) {
			count++
		}
	}
	return count, nil
}

// CreateClaim inserts a prize claim
func (r *MemoryRepository) CreateClaim(ctx context.Context, claim *entities.PrizeClaim) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if claim.ID == "" {
		claim.ID = uuid.New().String()
	}
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = time.Now().UTC()
	}

	r.claims[claim.ID] = copyClaim(claim)
	return nil
}

// GetClaim retrieves a claim by ID
func (r *MemoryRepository) GetClaim(ctx context.Context, id string) (*entities.PrizeClaim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	claim, exists := r.claims[id]
	if !exists {
		return nil, ErrClaimNotFound
	}
	return copyClaim(claim), nil
}

// UpdateClaim saves the status fields of a claim
func (r *MemoryRepository) UpdateClaim(ctx context.Context, claim *entities.PrizeClaim) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.claims[claim.ID]
	if !exists {
		return ErrClaimNotFound
	}

	existing.Status = claim.Status
	existing.Notes = claim.Notes
	existing.ConfirmedBy = claim.ConfirmedBy
	existing.ConfirmedAt = nil
	if claim.ConfirmedAt != nil {
		at := *claim.ConfirmedAt
		existing.ConfirmedAt = &at
	}
	return nil
}

// ListClaims returns one page of claims, newest first, and the total match count
func (r *MemoryRepository) ListClaims(ctx context.Context, filter ClaimFilter) ([]*entities.PrizeClaim, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*entities.PrizeClaim, 0)
	for _, claim := range r.claims {
		if filter.ClubID != "" && claim.ClubID != filter.ClubID {
			continue
		}
		if filter.AccountID != "" && claim.AccountID != filter.AccountID {
			continue
		}
		if filter.Status != "" && claim.Status != filter.Status {
			continue
		}
		matched = append(matched, copyClaim(claim))
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Offset >= total {
		return []*entities.PrizeClaim{}, total, nil
	}
	page := matched[filter.Offset:]
	if filter.Limit > 0 && len(page) > filter.Limit {
		page = page[:filter.Limit]
	}
	return page, total, nil
}
