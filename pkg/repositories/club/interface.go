package club

import (
	"context"
	"errors"

	"github.com/fadedpez/clubwheel/pkg/entities"
)

var (
	ErrClubNotFound  = errors.New("club not found")
	ErrDuplicateClub = errors.New("club slug, join token or PIN already in use")
)

// Repository defines the interface for club data operations
type Repository interface {
	// Create inserts a new club
	Create(ctx context.Context, club *entities.Club) error

	// Get retrieves a club by ID
	Get(ctx context.Context, id string) (*entities.Club, error)

	// GetBySlug retrieves a club by its public slug
	GetBySlug(ctx context.Context, slug string) (*entities.Club, error)

	// GetByJoinToken retrieves a club by its current QR join token
	GetByJoinToken(ctx context.Context, token string) (*entities.Club, error)

	// GetByPIN retrieves a club by its 6-digit PIN
	GetByPIN(ctx context.Context, pin string) (*entities.Club, error)

	// GetByOwner retrieves the club owned by an account
	GetByOwner(ctx context.Context, ownerID string) (*entities.Club, error)

	// Update saves every mutable field of a club
	Update(ctx context.Context, club *entities.Club) error

	// List returns all clubs, oldest first
	List(ctx context.Context) ([]*entities.Club, error)
}
