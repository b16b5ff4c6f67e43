package club

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fadedpez/clubwheel/internal/types"
	"github.com/fadedpez/clubwheel/pkg/entities"
	spinRepo "github.com/fadedpez/clubwheel/pkg/repositories/spin"
)

const (
	DefaultClaimPageSize = 20
	MaxClaimPageSize     = 100
)

// ClubTimeAction is a staff transition on a club-time claim
type ClubTimeAction string

const (
	ClubTimeActivate ClubTimeAction = "activate"
	ClubTimeComplete ClubTimeAction = "complete"
)

// ClaimQuery selects a page of claims
type ClaimQuery struct {
	Status entities.ClaimStatus
	Page   int // 1-based
	Limit  int
}

// ClaimPage is one page of a club's claims
type ClaimPage struct {
	Claims []*entities.PrizeClaim `json:"claims"`
	Total  int                    `json:"total"`
	Page   int                    `json:"page"`
	Limit  int                    `json:"limit"`
	Pages  int                    `json:"pages"`
}

// PlayerStats summarizes spin activity at a club
type PlayerStats struct {
	DistinctPlayers int   `json:"distinctPlayers"`
	Spins           int   `json:"spins"`
	TotalSpent      int64 `json:"totalSpent"`
}

// ListClaims returns a page of a club's claims, newest first
func (s *Service) ListClaims(ctx context.Context, clubID string, query ClaimQuery) (*ClaimPage, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	switch {
	case query.Limit <= 0:
		query.Limit = DefaultClaimPageSize
	case query.Limit > MaxClaimPageSize:
		query.Limit = MaxClaimPageSize
	}

	claims, total, err := s.spins.ListClaims(ctx, spinRepo.ClaimFilter{
		ClubID: clubID,
		Status: query.Status,
		Offset: (query.Page - 1) * query.Limit,
		Limit:  query.Limit,
	})
	if err != nil {
		return nil, types.Wrap(types.ErrDatabaseError, "error listing claims", err)
	}

	return &ClaimPage{
		Claims: claims,
		Total:  total,
		Page:   query.Page,
		Limit:  query.Limit,
		Pages:  (total + query.Limit - 1) / query.Limit,
	}, nil
}

// claimForClub loads a claim and hides claims belonging to other clubs
func (s *Service) claimForClub(ctx context.Context, clubID, claimID string) (*entities.PrizeClaim, error) {
	claim, err := s.spins.GetClaim(ctx, claimID)
	if err != nil {
		if errors.Is(err, spinRepo.ErrClaimNotFound) {
			return nil, types.Wrap(types.ErrClaimNotFound, "claim not found", err)
		}
		return nil, types.Wrap(types.ErrDatabaseError, "error loading claim", err)
	}
	if claim.ClubID != clubID {
		return nil, types.New(types.ErrClaimNotFound, "claim not found")
	}
	return claim, nil
}

func (s *Service) saveClaim(ctx context.Context, claim *entities.PrizeClaim) error {
	if err := s.spins.UpdateClaim(ctx, claim); err != nil {
		return types.Wrap(types.ErrDatabaseError, "error saving claim", err)
	}
	return nil
}

// ConfirmClaim marks a claim as handed over by a staff member
func (s *Service) ConfirmClaim(ctx context.Context, clubID, claimID, confirmedBy, notes string) (*entities.PrizeClaim, error) {
	claim, err := s.claimForClub(ctx, clubID, claimID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	claim.Status = entities.ClaimConfirmed
	claim.ConfirmedBy = confirmedBy
	claim.ConfirmedAt = &now
	if notes = strings.TrimSpace(notes); notes != "" {
		claim.Notes = notes
	}

	if err := s.saveClaim(ctx, claim); err != nil {
		return nil, err
	}
	s.log.Info("Claim %s confirmed by %s", claim.ID, confirmedBy)
	return claim, nil
}

// ManageClubTime starts or finishes a club-time prize session
func (s *Service) ManageClubTime(ctx context.Context, clubID, claimID string, action ClubTimeAction) (*entities.PrizeClaim, error) {
	claim, err := s.claimForClub(ctx, clubID, claimID)
	if err != nil {
		return nil, err
	}
	if claim.ClubTimeMinutes <= 0 {
		return nil, types.New(types.ErrInvalidArgument, "claim is not a club time prize")
	}

	switch action {
	case ClubTimeActivate:
		claim.Status = entities.ClaimConfirmed
	case ClubTimeComplete:
		claim.Status = entities.ClaimCompleted
	default:
		return nil, types.New(types.ErrInvalidArgument, "action must be activate or complete")
	}

	if err := s.saveClaim(ctx, claim); err != nil {
		return nil, err
	}
	s.log.Info("Club time claim %s: %s (%d min)", claim.ID, action, claim.ClubTimeMinutes)
	return claim, nil
}

// SpinsToday counts spins at a club since local midnight
func (s *Service) SpinsToday(ctx context.Context, clubID string) (int, error) {
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	count, err := s.spins.Count(ctx, spinRepo.Filter{ClubID: clubID, From: midnight})
	if err != nil {
		return 0, types.Wrap(types.ErrDatabaseError, "error counting spins", err)
	}
	return count, nil
}

// PlayerStats summarizes who spun at a club in [from, to). Zero times are unbounded.
func (s *Service) PlayerStats(ctx context.Context, clubID string, from, to time.Time) (*PlayerStats, error) {
	spins, err := s.spins.List(ctx, spinRepo.Filter{ClubID: clubID, From: from, To: to})
	if err != nil {
		return nil, types.Wrap(types.ErrDatabaseError, "error listing spins", err)
	}

	stats := &PlayerStats{Spins: len(spins)}
	players := make(map[string]struct{})
	for _, spin := range spins {
		players[spin.AccountID] = struct{}{}
		stats.TotalSpent += spin.Cost
	}
	stats.DistinctPlayers = len(players)
	return stats, nil
}
