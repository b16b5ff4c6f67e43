package referral

import (
	"context"
	"errors"
	"time"

	"github.com/fadedpez/clubwheel/pkg/entities"
)

var (
	ErrReferralNotFound  = errors.New("referral not found")
	ErrDuplicateReferral = errors.New("referral already exists for this pair")
	ErrAlreadyApproved   = errors.New("referral already approved")
)

// Repository defines the interface for referral data operations
type Repository interface {
	// Create inserts a pending referral; a second referral for the same pair fails with ErrDuplicateReferral
	Create(ctx context.Context, referral *entities.Referral) error

	// Find retrieves the referral for a (referrer, referred) pair
	Find(ctx context.Context, referrerID, referredID string) (*entities.Referral, error)

	// Approve flips a pending referral to approved. Only one caller can win; the
	// others get ErrAlreadyApproved.
	Approve(ctx context.Context, id string, approvedAt time.Time, points int64) error

	// CountApprovedSince counts a referrer's approvals at or after since
	CountApprovedSince(ctx context.Context, referrerID string, since time.Time) (int, error)

	// ListByReferrer returns every referral a referrer made, newest first
	ListByReferrer(ctx context.Context, referrerID string) ([]*entities.Referral, error)
}
