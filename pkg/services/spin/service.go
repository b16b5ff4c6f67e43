// Package spin runs a paid wheel spin from precondition checks to payout.
package spin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fadedpez/clubwheel/internal/logging"
	"github.com/fadedpez/clubwheel/internal/types"
	"github.com/fadedpez/clubwheel/pkg/entities"
	"github.com/fadedpez/clubwheel/pkg/feed"
	"github.com/fadedpez/clubwheel/pkg/geo"
	"github.com/fadedpez/clubwheel/pkg/notify"
	prizeRepo "github.com/fadedpez/clubwheel/pkg/repositories/prize"
	spinRepo "github.com/fadedpez/clubwheel/pkg/repositories/spin"
	"github.com/fadedpez/clubwheel/pkg/roulette"
	"github.com/fadedpez/clubwheel/pkg/services/wallet"
)

const DefaultCost int64 = 20

// AccessChecker loads an account that is allowed to act
type AccessChecker interface {
	CheckAccess(ctx context.Context, accountID string) (*entities.Account, error)
}

// ClubResolver finds a club by any of its public identifiers
type ClubResolver interface {
	Resolve(ctx context.Context, identifier string) (*entities.Club, error)
}

// ReferralDispatcher schedules a referral approval attempt without waiting for it
type ReferralDispatcher interface {
	Dispatch(spenderID string)
}

// Request is a player's spin attempt
type Request struct {
	AccountID      string
	ClubIdentifier string
	Latitude       *float64
	Longitude      *float64
}

// PrizeDetail is what the player sees after the wheel stops
type PrizeDetail struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Category  entities.PrizeCategory `json:"category"`
	Value     int64                  `json:"value"`
	ImageURL  string                 `json:"imageUrl,omitempty"`
	SlotIndex int                    `json:"slotIndex"`
}

// Result is the outcome of a successful spin
type Result struct {
	SpinID  string                `json:"spinId"`
	Prize   PrizeDetail           `json:"prize"`
	Balance int64                 `json:"balance"`
	Payout  *entities.LedgerEntry `json:"payout,omitempty"`
	Claim   *entities.PrizeClaim  `json:"claim,omitempty"`
}

// Config wires the orchestrator
type Config struct {
	Access    AccessChecker
	Clubs     ClubResolver
	Prizes    prizeRepo.Repository
	Spins     spinRepo.Repository
	Ledger    wallet.Ledger
	Geofence  *geo.Gate
	Feed      feed.Feed
	Notifier  notify.Notifier
	Referrals ReferralDispatcher

	Cost     int64
	Cooldown time.Duration
	Source   roulette.Source
	Now      func() time.Time
	Logger   *logging.Logger
}

// Service executes spins
type Service struct {
	access    AccessChecker
	clubs     ClubResolver
	prizes    prizeRepo.Repository
	spins     spinRepo.Repository
	ledger    wallet.Ledger
	geofence  *geo.Gate
	cooldown  *CooldownGate
	feed      feed.Feed
	notifier  notify.Notifier
	referrals ReferralDispatcher
	cost      int64
	rng       roulette.Source
	now       func() time.Time
	log       *logging.Logger
}

// NewService creates a spin service
func NewService(cfg Config) *Service {
	if cfg.Cost <= 0 {
		cfg.Cost = DefaultCost
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Source == nil {
		cfg.Source = roulette.NewSource()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default
	}
	if cfg.Geofence == nil {
		cfg.Geofence = geo.NewGate(geo.DefaultRadiusMeters, "", false)
	}
	if cfg.Feed == nil {
		cfg.Feed = feed.NewRing(feed.DefaultCapacity)
	}

	return &Service{
		access:    cfg.Access,
		clubs:     cfg.Clubs,
		prizes:    cfg.Prizes,
		spins:     cfg.Spins,
		ledger:    cfg.Ledger,
		geofence:  cfg.Geofence,
		cooldown:  NewCooldownGate(cfg.Spins, cfg.Cooldown, cfg.Now),
		feed:      cfg.Feed,
		notifier:  cfg.Notifier,
		referrals: cfg.Referrals,
		cost:      cfg.Cost,
		rng:       cfg.Source,
		now:       cfg.Now,
		log:       cfg.Logger.With("spin"),
	}
}

// Cost returns the price of one spin
func (s *Service) Cost() int64 {
	return s.cost
}

// ExecuteSpin checks every precondition, draws a prize and pays it out
func (s *Service) ExecuteSpin(ctx context.Context, req Request) (*Result, error) {
	account, err := s.access.CheckAccess(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	club, err := s.clubs.Resolve(ctx, req.ClubIdentifier)
	if err != nil {
		return nil, err
	}
	if !club.Active {
		return nil, types.New(types.ErrClubInactive, "club is inactive")
	}

	if err := s.cooldown.Check(ctx, club.ID); err != nil {
		return nil, err
	}

	if account.Balance < s.cost {
		return nil, types.New(types.ErrInsufficientBalance,
			fmt.Sprintf("spin costs %d points, balance is %d", s.cost, account.Balance))
	}

	var loc *geo.Location
	if req.Latitude != nil && req.Longitude != nil {
		loc = &geo.Location{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}
	if err := s.geofence.Check(club, account, loc); err != nil {
		return nil, err
	}

	prize, err := s.draw(ctx)
	if err != nil {
		return nil, err
	}

	spin := &entities.Spin{
		AccountID: account.ID,
		ClubID:    club.ID,
		PrizeID:   prize.ID,
		Cost:      s.cost,
		Status:    entities.SpinConfirmed,
		CreatedAt: s.now().UTC(),
	}
	if err := s.spins.Create(ctx, spin); err != nil {
		return nil, types.Wrap(types.ErrDatabaseError, "error recording spin", err)
	}

	debit, err := s.ledger.Debit(ctx, account.ID, s.cost, entities.LedgerSpinCost, "Прокрутка рулетки", spin.ID)
	if err != nil {
		s.log.Error("Spin %s recorded but debit failed: %v", spin.ID, err)
		return nil, err
	}

	result := &Result{
		SpinID:  spin.ID,
		Prize:   detailOf(prize),
		Balance: debit.BalanceAfter,
	}
	if err := s.payout(ctx, account, club, prize, spin, result); err != nil {
		return nil, err
	}

	if prize.Limited() {
		if _, err := s.prizes.Decrement(ctx, prize.ID); err != nil {
			s.log.Error("Error decrementing stock of prize %s after spin %s: %v", prize.ID, spin.ID, err)
		}
	}

	s.announce(ctx, account, club, prize, spin)

	if s.referrals != nil {
		s.referrals.Dispatch(account.ID)
	}

	s.log.Info("Spin %s at club %s: %s won %s, balance %d", spin.ID, club.ID, account.ID, prize.Name, result.Balance)
	return result, nil
}

// draw picks a prize and re-checks its stock
func (s *Service) draw(ctx context.Context) (*entities.Prize, error) {
	prizes, err := s.prizes.List(ctx, true)
	if err != nil {
		return nil, types.Wrap(types.ErrDatabaseError, "error loading prizes", err)
	}

	prize, err := roulette.Select(prizes, s.rng)
	if errors.Is(err, roulette.ErrNoPrizes) {
		return nil, types.Wrap(types.ErrNoPrizesAvailable, "no prizes are configured", err)
	}
	if err != nil {
		return nil, types.Wrap(types.ErrInternalError, "error selecting prize", err)
	}

	if prize.Limited() && !prize.InStock() {
		return nil, types.New(types.ErrPrizeExhausted, fmt.Sprintf("prize %q is out of stock", prize.Name))
	}
	return prize, nil
}

// payout credits points or records a claim for everything else
func (s *Service) payout(ctx context.Context, account *entities.Account, club *entities.Club, prize *entities.Prize, spin *entities.Spin, result *Result) error {
	if prize.Category == entities.PrizePoints {
		if prize.Value <= 0 {
			return nil
		}
		credit, err := s.ledger.Credit(ctx, account.ID, prize.Value, entities.LedgerPrizePoints,
			fmt.Sprintf("Выигрыш: %s", prize.Name), spin.ID)
		if err != nil {
			s.log.Error("Spin %s debited but points credit failed: %v", spin.ID, err)
			return err
		}
		result.Payout = credit
		result.Balance = credit.BalanceAfter
		return nil
	}

	confirmedAt := spin.CreatedAt
	claim := &entities.PrizeClaim{
		AccountID:   account.ID,
		SpinID:      spin.ID,
		PrizeID:     prize.ID,
		ClubID:      club.ID,
		Status:      entities.ClaimCompleted,
		ConfirmedAt: &confirmedAt,
		CreatedAt:   spin.CreatedAt,
	}
	if prize.Category == entities.PrizeClubTime {
		claim.ClubTimeMinutes = prize.Value
	}
	if err := s.spins.CreateClaim(ctx, claim); err != nil {
		s.log.Error("Spin %s debited but claim creation failed: %v", spin.ID, err)
		return types.Wrap(types.ErrDatabaseError, "error recording prize claim", err)
	}
	result.Claim = claim
	return nil
}

// announce updates the recent-wins feed and tells the club's audience. Failures are only logged.
func (s *Service) announce(ctx context.Context, account *entities.Account, club *entities.Club, prize *entities.Prize, spin *entities.Spin) {
	win := feed.NewWin(account.Phone, account.DisplayName(), account.ID, prize.Name, spin.CreatedAt)

	recent, err := s.feed.Push(ctx, win)
	if err != nil {
		s.log.Warn("Error updating recent wins after spin %s: %v", spin.ID, err)
	}

	if s.notifier == nil {
		return
	}

	display := win.PlayerName
	if display == "" {
		display = win.MaskedPhone
	}
	event := notify.WinEvent{
		ClubID:        club.ID,
		PrizeName:     win.PrizeName,
		PlayerDisplay: display,
		Recent:        recent,
	}
	if err := s.notifier.NotifyWin(ctx, event); err != nil {
		s.log.Warn("Error notifying win for spin %s: %v", spin.ID, err)
	}
}

// RecentWins returns the shared recent-wins feed, oldest first
func (s *Service) RecentWins(ctx context.Context) ([]entities.RecentWin, error) {
	wins, err := s.feed.Snapshot(ctx)
	if err != nil {
		return nil, types.Wrap(types.ErrInternalError, "error reading recent wins", err)
	}
	return wins, nil
}

func detailOf(prize *entities.Prize) PrizeDetail {
	return PrizeDetail{
		ID:        prize.ID,
		Name:      prize.Name,
		Category:  prize.Category,
		Value:     prize.Value,
		ImageURL:  prize.ImageURL,
		SlotIndex: prize.SlotIndex,
	}
}
