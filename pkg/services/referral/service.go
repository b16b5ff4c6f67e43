// Package referral links invited players to their referrers and pays the invitation bonus.
package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fadedpez/clubwheel/internal/logging"
	"github.com/fadedpez/clubwheel/internal/types"
	"github.com/fadedpez/clubwheel/pkg/entities"
	accountRepo "github.com/fadedpez/clubwheel/pkg/repositories/account"
	referralRepo "github.com/fadedpez/clubwheel/pkg/repositories/referral"
	spinRepo "github.com/fadedpez/clubwheel/pkg/repositories/spin"
	"github.com/fadedpez/clubwheel/pkg/services/wallet"
)

const codeAttempts = 10

// Config holds the referral rules
type Config struct {
	Points      int64
	MaxPerMonth int
}

// Stats summarizes a referrer's invitations
type Stats struct {
	Code         string
	Invited      int
	Approved     int
	Pending      int
	PointsEarned int64
}

// Service approves referrals
type Service struct {
	accounts  accountRepo.Repository
	referrals referralRepo.Repository
	spins     spinRepo.Repository
	ledger    wallet.Ledger
	config    Config
	now       func() time.Time
	log       *logging.Logger
}

// NewService creates a new referral service
func NewService(accounts accountRepo.Repository, referrals referralRepo.Repository, spins spinRepo.Repository, ledger wallet.Ledger, config Config, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default
	}
	return &Service{
		accounts:  accounts,
		referrals: referrals,
		spins:     spins,
		ledger:    ledger,
		config:    config,
		now:       time.Now,
		log:       logger.With("referral"),
	}
}

// WithClock replaces the time source
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// TryApprove pays the referrer when the spender has just made their first paid spin.
// Every other situation is a silent no-op.
func (s *Service) TryApprove(ctx context.Context, spenderID string) error {
	spender, err := s.accounts.Get(ctx, spenderID)
	if err != nil {
		if errors.Is(err, accountRepo.ErrAccountNotFound) {
			return nil
		}
		return fmt.Errorf("error loading spender: %w", err)
	}
	if spender.ReferrerID == "" {
		return nil
	}

	paidSpins, err := s.spins.Count(ctx, spinRepo.Filter{AccountID: spenderID, PaidOnly: true})
	if err != nil {
		return fmt.Errorf("error counting paid spins: %w", err)
	}
	if paidSpins != 1 {
		return nil
	}

	referral, err := s.referrals.Find(ctx, spender.ReferrerID, spenderID)
	if err != nil {
		if errors.Is(err, referralRepo.ErrReferralNotFound) {
			return nil
		}
		return fmt.Errorf("error loading referral: %w", err)
	}
	if referral.Status != entities.ReferralPending {
		return nil
	}

	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	approvedThisMonth, err := s.referrals.CountApprovedSince(ctx, spender.ReferrerID, monthStart)
	if err != nil {
		return fmt.Errorf("error counting approvals: %w", err)
	}
	if approvedThisMonth >= s.config.MaxPerMonth {
		s.log.Info("Referrer %s hit the monthly cap of %d, referral %s stays pending", spender.ReferrerID, s.config.MaxPerMonth, referral.ID)
		return nil
	}

	if err := s.referrals.Approve(ctx, referral.ID, now, s.config.Points); err != nil {
		if errors.Is(err, referralRepo.ErrAlreadyApproved) {
			return nil
		}
		return fmt.Errorf("error approving referral: %w", err)
	}

	if _, err := s.ledger.Credit(ctx, spender.ReferrerID, s.config.Points, entities.LedgerReferralBonus,
		"Бонус за приглашённого друга (1-й спин)", ""); err != nil {
		return fmt.Errorf("error crediting referral bonus to %s: %w", spender.ReferrerID, err)
	}

	s.log.Info("Approved referral %s: %s earned %d points", referral.ID, spender.ReferrerID, s.config.Points)
	return nil
}

// Attach links a new player to the referrer named in an invitation payload.
// It reports whether a link was made; bad or self-referencing payloads are ignored.
func (s *Service) Attach(ctx context.Context, referredID, payload string) (bool, error) {
	code, ok := ParseCode(payload)
	if !ok {
		return false, nil
	}

	referred, err := s.accounts.Get(ctx, referredID)
	if err != nil {
		if errors.Is(err, accountRepo.ErrAccountNotFound) {
			return false, types.Wrap(types.ErrAccountNotFound, "account not found", err)
		}
		return false, types.Wrap(types.ErrDatabaseError, "error loading account", err)
	}
	if referred.ReferrerID != "" {
		return false, nil
	}

	var referrer *entities.Account
	if code.LegacyAccountID != "" {
		referrer, err = s.accounts.Get(ctx, code.LegacyAccountID)
	} else {
		referrer, err = s.accounts.GetByReferralCode(ctx, code.Code)
	}
	if errors.Is(err, accountRepo.ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, types.Wrap(types.ErrDatabaseError, "error resolving referrer", err)
	}
	if referrer.ID == referred.ID {
		return false, nil
	}

	set, err := s.accounts.SetReferrer(ctx, referred.ID, referrer.ID)
	if err != nil {
		return false, types.Wrap(types.ErrDatabaseError, "error saving referrer", err)
	}
	if !set {
		return false, nil
	}

	err = s.referrals.Create(ctx, &entities.Referral{
		ReferrerID: referrer.ID,
		ReferredID: referred.ID,
		Status:     entities.ReferralPending,
	})
	if err != nil && !errors.Is(err, referralRepo.ErrDuplicateReferral) {
		return false, types.Wrap(types.ErrDatabaseError, "error recording referral", err)
	}

	s.log.Info("Account %s invited by %s", referred.ID, referrer.ID)
	return true, nil
}

// EnsureCode returns the account's referral code, assigning one on first use
func (s *Service) EnsureCode(ctx context.Context, accountID string) (string, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, accountRepo.ErrAccountNotFound) {
			return "", types.Wrap(types.ErrAccountNotFound, "account not found", err)
		}
		return "", types.Wrap(types.ErrDatabaseError, "error loading account", err)
	}
	if account.ReferralCode != "" {
		return account.ReferralCode, nil
	}

	for i := 0; i < codeAttempts; i++ {
		account.ReferralCode = generateCode()
		err := s.accounts.Update(ctx, account)
		if err == nil {
			return account.ReferralCode, nil
		}
		if !errors.Is(err, accountRepo.ErrDuplicateAccount) {
			return "", types.Wrap(types.ErrDatabaseError, "error saving referral code", err)
		}
	}
	return "", types.New(types.ErrInternalError, "could not find a free referral code")
}

// Stats summarizes the invitations an account has made
func (s *Service) Stats(ctx context.Context, referrerID string) (*Stats, error) {
	code, err := s.EnsureCode(ctx, referrerID)
	if err != nil {
		return nil, err
	}

	referrals, err := s.referrals.ListByReferrer(ctx, referrerID)
	if err != nil {
		return nil, types.Wrap(types.ErrDatabaseError, "error listing referrals", err)
	}

	stats := &Stats{Code: code, Invited: len(referrals)}
	for _, r := range referrals {
		if r.Status == entities.ReferralApproved {
			stats.Approved++
			stats.PointsEarned += r.PointsAwarded
		} else {
			stats.Pending++
		}
	}
	return stats, nil
}
