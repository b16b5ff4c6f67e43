// Package account holds admin operations on player, club and admin accounts.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fadedpez/clubwheel/internal/logging"
	"github.com/fadedpez/clubwheel/internal/types"
	"github.com/fadedpez/clubwheel/pkg/entities"
	accountRepo "github.com/fadedpez/clubwheel/pkg/repositories/account"
	clubRepo "github.com/fadedpez/clubwheel/pkg/repositories/club"
)

// Service manages account access
type Service struct {
	accounts accountRepo.Repository
	clubs    clubRepo.Repository
	now      func() time.Time
	log      *logging.Logger
}

// NewService creates a new account service
func NewService(accounts accountRepo.Repository, clubs clubRepo.Repository, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default
	}
	return &Service{
		accounts: accounts,
		clubs:    clubs,
		now:      time.Now,
		log:      logger.With("account"),
	}
}

// WithClock replaces the time source
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) load(ctx context.Context, id string) (*entities.Account, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, accountRepo.ErrAccountNotFound) {
			return nil, types.Wrap(types.ErrAccountNotFound, "account not found", err)
		}
		return nil, types.Wrap(types.ErrDatabaseError, "error loading account", err)
	}
	return account, nil
}

func (s *Service) save(ctx context.Context, account *entities.Account) error {
	if err := s.accounts.Update(ctx, account); err != nil {
		return types.Wrap(types.ErrDatabaseError, "error saving account", err)
	}
	return nil
}

// CheckAccess returns the account if it may act, lifting a ban whose term has passed
func (s *Service) CheckAccess(ctx context.Context, id string) (*entities.Account, error) {
	account, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !account.Banned {
		return account, nil
	}

	now := s.now()
	if account.BanActive(now) {
		msg := "account is banned"
		if account.BanUntil != nil {
			msg = fmt.Sprintf("account is banned until %s", account.BanUntil.UTC().Format(time.RFC3339))
		}
		if account.BanReason != "" {
			msg += ": " + account.BanReason
		}
		return nil, types.New(types.ErrAccountBanned, msg)
	}

	clearBan(account)
	if err := s.save(ctx, account); err != nil {
		return nil, err
	}
	s.log.Info("Ban on %s expired and was lifted", account.ID)
	return account, nil
}

// Ban blocks an account for days (0 means indefinitely). Admins cannot be banned.
func (s *Service) Ban(ctx context.Context, id string, days int, reason string) (*entities.Account, error) {
	if days < 0 {
		return nil, types.New(types.ErrInvalidArgument, "ban days cannot be negative")
	}

	account, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if account.Role == entities.RoleAdmin {
		return nil, types.New(types.ErrPermissionDenied, "admins cannot be banned")
	}

	account.Banned = true
	account.BanReason = strings.TrimSpace(reason)
	account.BanUntil = nil
	if days > 0 {
		until := s.now().UTC().Add(time.Duration(days) * 24 * time.Hour)
		account.BanUntil = &until
	}

	if err := s.save(ctx, account); err != nil {
		return nil, err
	}
	s.log.Info("Banned %s for %d days: %s", account.ID, days, account.BanReason)
	return account, nil
}

// Unban lifts a ban immediately
func (s *Service) Unban(ctx context.Context, id string) (*entities.Account, error) {
	account, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	clearBan(account)
	if err := s.save(ctx, account); err != nil {
		return nil, err
	}
	s.log.Info("Unbanned %s", account.ID)
	return account, nil
}

// LiftExpiredBans clears every ban whose term has passed and returns how many were lifted
func (s *Service) LiftExpiredBans(ctx context.Context) (int, error) {
	banned, err := s.accounts.List(ctx, accountRepo.Filter{BannedOnly: true})
	if err != nil {
		return 0, types.Wrap(types.ErrDatabaseError, "error listing banned accounts", err)
	}

	now := s.now()
	lifted := 0
	for _, account := range banned {
		if account.BanActive(now) {
			continue
		}
		clearBan(account)
		if err := s.save(ctx, account); err != nil {
			return lifted, err
		}
		lifted++
	}
	return lifted, nil
}

// Remove permanently deletes an account and its ledger
func (s *Service) Remove(ctx context.Context, id string) error {
	account, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if account.Role == entities.RoleAdmin {
		return types.New(types.ErrPermissionDenied, "admins cannot be removed")
	}

	if err := s.accounts.Delete(ctx, id); err != nil {
		return types.Wrap(types.ErrDatabaseError, "error deleting account", err)
	}
	s.log.Warn("Removed account %s (%s)", id, account.Phone)
	return nil
}

// SetClub attaches an account to an active club
func (s *Service) SetClub(ctx context.Context, id, clubID string) (*entities.Account, error) {
	account, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	club, err := s.clubs.Get(ctx, clubID)
	if err != nil {
		if errors.Is(err, clubRepo.ErrClubNotFound) {
			return nil, types.Wrap(types.ErrClubNotFound, "club not found", err)
		}
		return nil, types.Wrap(types.ErrDatabaseError, "error loading club", err)
	}
	if !club.Active {
		return nil, types.New(types.ErrClubInactive, "club is inactive")
	}

	account.ClubID = club.ID
	if err := s.save(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// List returns accounts for the admin surface
func (s *Service) List(ctx context.Context, filter accountRepo.Filter) ([]*entities.Account, error) {
	accounts, err := s.accounts.List(ctx, filter)
	if err != nil {
		return nil, types.Wrap(types.ErrDatabaseError, "error listing accounts", err)
	}
	return accounts, nil
}

func clearBan(account *entities.Account) {
	account.Banned = false
	account.BanUntil = nil
	account.BanReason = ""
}
