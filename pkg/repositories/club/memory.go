package club

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
	clubs map[string]*entities.Club
	mu    sync.RWMutex
}

// NewMemoryRepository creates a new in-memory club repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		clubs: make(map[string]*entities.Club),
	}
}

func copyClub(c *entities.Club) *entities.Club {
	clubCopy := *c
	if c.Latitude != nil {
		lat := *c.Latitude
		clubCopy.Latitude = &lat
	}
	if c.Longitude != nil {
		lon := *c.Longitude
		clubCopy.Longitude = &lon
	}
	return &clubCopy
}

func (r *MemoryRepository) conflictsLocked(club *entities.Club) bool {
	for id, existing := range r.clubs {
		if id == club.ID {
			continue
		}
		if existing.Slug == club.Slug || existing.JoinToken == club.JoinToken {
			return true
		}
		if club.PIN != "" && existing.PIN == club.PIN {
			return true
		}
	}
	return false
}

// Create inserts a new club
func (r *MemoryRepository) Create(ctx context.Context, club *entities.Club) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if club.ID == "" {
		club.ID = uuid.New().String()
	}
	if _, exists := r.clubs[club.ID]; exists || r.conflictsLocked(club) {
		return ErrDuplicateClub
	}
	if club.CreatedAt.IsZero() {
		club.CreatedAt = time.Now().UTC()
	}

	r.clubs[club.ID] = copyClub(club)
	return nil
}

// Get retrieves a club by ID
func (r *MemoryRepository) Get(ctx context.Context, id string) (*entities.Club, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	club, exists := r.clubs[id]
	if !exists {
		return nil, ErrClubNotFound
	}
	return copyClub(club), nil
}

func (r *MemoryRepository) find(value string, field func(*entities.Club) string) (*entities.Club, error) {
	if value == "" {
		return nil, ErrClubNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, club := range r.clubs {
		if field(club) == value {
			return copyClub(club), nil
		}
	}
	return nil, ErrClubNotFound
}

// GetBySlug retrieves a club by its public slug
func (r *MemoryRepository) GetBySlug(ctx context.Context, slug string) (*entities.Club, error) {
	return r.find(slug, func(c *entities.Club) string { return c.Slug })
}

// GetByJoinToken retrieves a club by its current QR join token
func (r *MemoryRepository) GetByJoinToken(ctx context.Context, token string) (*entities.Club, error) {
	return r.find(token, func(c *entities.Club) string { return c.JoinToken })
}

// GetByPIN retrieves a club by its 6-digit PIN
func (r *MemoryRepository) GetByPIN(ctx context.Context, pin string) (*entities.Club, error) {
	return r.find(pin, func(c *entities.Club) string { return c.PIN })
}

// GetByOwner retrieves the club owned by an account
func (r *MemoryRepository) GetByOwner(ctx context.Context, ownerID string) (*entities.Club, error) {
	return r.find(ownerID, func(c *entities.Club) string { return c.OwnerID })
}

// Update saves every mutable field of a club
func (r *MemoryRepository) Update(ctx context.Context, club *entities.Club) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.clubs[club.ID]
	if !exists {
		return ErrClubNotFound
	}
	if r.conflictsLocked(club) {
		return ErrDuplicateClub
	}

	updated := copyClub(club)
	updated.CreatedAt = existing.CreatedAt
	r.clubs[club.ID] = updated
	return nil
}

// List returns all clubs, oldest first
func (r *MemoryRepository) List(ctx context.Context) ([]*entities.Club, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*entities.Club, 0, len(r.clubs))
	for _, club := range r.clubs {
		result = append(result, copyClub(club))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
