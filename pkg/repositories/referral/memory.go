package referral

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
	referrals map[string]*entities.Referral
	mu        sync.RWMutex
}

// NewMemoryRepository creates a new in-memory referral repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		referrals: make(map[string]*entities.Referral),
	}
}

func copyReferral(r *entities.Referral) *entities.Referral {
	referralCopy := *r
	if r.ApprovedAt != nil {
		at := *r.ApprovedAt
		referralCopy.ApprovedAt = &at
	}
	return &referralCopy
}

// Create inserts a pending referral
func (r *MemoryRepository) Create(ctx context.Context, referral *entities.Referral) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.referrals {
		if existing.ReferrerID == referral.ReferrerID && existing.ReferredID == referral.ReferredID {
			return ErrDuplicateReferral
		}
	}

	if referral.ID == "" {
		referral.ID = uuid.New().String()
	}
	if referral.CreatedAt.IsZero() {
		referral.CreatedAt = time.Now().UTC()
	}
	if referral.Status == "" {
		referral.Status = entities.ReferralPending
	}

	r.referrals[referral.ID] = copyReferral(referral)
	return nil
}

// Find retrieves the referral for a (referrer, referred) pair
func (r *MemoryRepository) Find(ctx context.Context, referrerID, referredID string) (*entities.Referral, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, referral := range r.referrals {
		if referral.ReferrerID == referrerID && referral.ReferredID == referredID {
			return copyReferral(referral), nil
		}
	}
	return nil, ErrReferralNotFound
}

// Approve flips a pending referral to approved
func (r *MemoryRepository) Approve(ctx context.Context, id string, approvedAt time.Time, points int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	referral, exists := r.referrals[id]
	if !exists {
		return ErrReferralNotFound
	}
	if referral.Status != entities.ReferralPending {
		return ErrAlreadyApproved
	}

	at := approvedAt.UTC()
	referral.Status = entities.ReferralApproved
	referral.ApprovedAt = &at
	referral.PointsAwarded = points
	return nil
}

// CountApprovedSince counts a referrer's approvals at or after since
func (r *MemoryRepository) CountApprovedSince(ctx context.Context, referrerID string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, referral := range r.referrals {
		if referral.ReferrerID != referrerID || referral.Status != entities.ReferralApproved {
			continue
		}
		if referral.ApprovedAt != nil && !referral.ApprovedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// ListByReferrer returns every referral a referrer made, newest first
func (r *MemoryRepository) ListByReferrer(ctx context.Context, referrerID string) ([]*entities.Referral, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*entities.Referral, 0)
	for _, referral := range r.referrals {
		if referral.ReferrerID == referrerID {
			result = append(result, copyReferral(referral))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}
