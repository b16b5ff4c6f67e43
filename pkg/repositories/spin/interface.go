package spin

import (
	"context"
	"errors"
	"time"

	"github.com/fadedpez/clubwheel/pkg/entities"
)

var (
	ErrSpinNotFound  = errors.New("spin not found")
	ErrClaimNotFound = errors.New("prize claim not found")
)

// Filter narrows spin queries. Zero values are unbounded.
type Filter struct {
	AccountID string
	ClubID    string
	PrizeID   string
	From      time.Time
	To        time.Time
	PaidOnly  bool // Only spins with a positive cost
	Limit     int
}

// ClaimFilter narrows and pages prize claim queries
type ClaimFilter struct {
	ClubID    string
	AccountID string
	Status    entities.ClaimStatus
	Offset    int
	Limit     int // <= 0 means no limit
}

// Repository stores spin history and the prize claims it produces
type Repository interface {
	// Create appends a spin record
	Create(ctx context.Context, spin *entities.Spin) error

	// Get retrieves a spin by ID
	Get(ctx context.Context, id string) (*entities.Spin, error)

	// LatestForClub returns the most recent spin at a club, ErrSpinNotFound when there is none
	LatestForClub(ctx context.Context, clubID string) (*entities.Spin, error)

	// List returns spins matching the filter, newest first
	List(ctx context.Context, filter Filter) ([]*entities.Spin, error)

	// Count returns how many spins match the filter
	Count(ctx context.Context, filter Filter) (int, error)

	// CreateClaim inserts a prize claim
	CreateClaim(ctx context.Context, claim *entities.PrizeClaim) error

	// GetClaim retrieves a claim by ID
	GetClaim(ctx context.Context, id string) (*entities.PrizeClaim, error)

	// UpdateClaim saves the status fields of a claim
	UpdateClaim(ctx context.Context, claim *entities.PrizeClaim) error

	// ListClaims returns one page of claims, newest first, and the total match count
	ListClaims(ctx context.Context, filter ClaimFilter) ([]*entities.PrizeClaim, int, error)
}
