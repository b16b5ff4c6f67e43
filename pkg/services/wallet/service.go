package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fadedpez/clubwheel/internal/logging"
	"github.com/fadedpez/clubwheel/internal/types"
	"github.com/fadedpez/clubwheel/pkg/entities"
	accountRepo "github.com/fadedpez/clubwheel/pkg/repositories/account"
)

var (
	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrLedgerMismatch    = errors.New("balance does not match ledger")
)

// RegisterInput describes a new account
type RegisterInput struct {
	Phone  string
	Name   string
	Role   entities.Role // Defaults to player
	ClubID string
}

// Service handles balances and the points ledger
type Service struct {
	repo              accountRepo.Repository
	registrationBonus int64
	log               *logging.Logger
}

// NewService creates a new wallet service
func NewService(repo accountRepo.Repository, registrationBonus int64, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default
	}
	return &Service{
		repo:              repo,
		registrationBonus: registrationBonus,
		log:               logger.With("wallet"),
	}
}

// Register creates an account and credits the registration bonus
func (s *Service) Register(ctx context.Context, input RegisterInput) (*entities.Account, error) {
	phone := strings.TrimSpace(input.Phone)
	if phone == "" {
		return nil, types.New(types.ErrInvalidArgument, "phone is required")
	}

	role := input.Role
	if role == "" {
		role = entities.RolePlayer
	}
	if !role.Valid() {
		return nil, types.New(types.ErrInvalidArgument, fmt.Sprintf("unknown role %q", role))
	}

	account := &entities.Account{
		Phone:  phone,
		Name:   strings.TrimSpace(input.Name),
		Role:   role,
		ClubID: input.ClubID,
		Active: true,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		if errors.Is(err, accountRepo.ErrDuplicateAccount) {
			return nil, types.Wrap(types.ErrInvalidArgument, "phone is already registered", err)
		}
		return nil, types.Wrap(types.ErrDatabaseError, "error creating account", err)
	}

	s.log.Info("Registered %s account %s", role, account.ID)

	if s.registrationBonus > 0 {
		entry, err := s.Credit(ctx, account.ID, s.registrationBonus, entities.LedgerRegistrationBonus, "Бонус за регистрацию", "")
		if err != nil {
			return nil, err
		}
		account.Balance = entry.BalanceAfter
	}
	return account, nil
}

// GetOrCreate returns the account for a phone, registering it on first use
func (s *Service) GetOrCreate(ctx context.Context, phone, name string) (*entities.Account, bool, error) {
	account, err := s.repo.GetByPhone(ctx, strings.TrimSpace(phone))
	if err == nil {
		return account, false, nil
	}
	if !errors.Is(err, accountRepo.ErrAccountNotFound) {
		return nil, false, types.Wrap(types.ErrDatabaseError, "error looking up account", err)
	}

	account, err = s.Register(ctx, RegisterInput{Phone: phone, Name: name})
	if err != nil {
		return nil, false, err
	}
	return account, true, nil
}

// Record appends a signed ledger entry and moves the balance with it
func (s *Service) Record(ctx context.Context, accountID string, category entities.LedgerCategory, amount int64, description, spinID string) (*entities.LedgerEntry, error) {
	entry := &entities.LedgerEntry{
		AccountID:   accountID,
		Category:    category,
		Amount:      amount,
		Description: description,
		SpinID:      spinID,
	}

	if err := s.repo.Post(ctx, entry); err != nil {
		switch {
		case errors.Is(err, accountRepo.ErrAccountNotFound):
			return nil, types.Wrap(types.ErrAccountNotFound, "account not found", err)
		case errors.Is(err, accountRepo.ErrInsufficientBalance):
			return nil, types.Wrap(types.ErrInsufficientBalance, "insufficient balance", err)
		default:
			s.log.Error("Error posting %s entry for account %s: %v", category, accountID, err)
			return nil, types.Wrap(types.ErrDatabaseError, "error recording ledger entry", err)
		}
	}

	s.log.Debug("Posted %s %+d to account %s, balance now %d", category, amount, accountID, entry.BalanceAfter)
	return entry, nil
}

// Debit removes points if the balance covers them
func (s *Service) Debit(ctx context.Context, accountID string, amount int64, category entities.LedgerCategory, description, spinID string) (*entities.LedgerEntry, error) {
	if amount <= 0 {
		return nil, types.Wrap(types.ErrInvalidArgument, "debit amount must be positive", ErrNonPositiveAmount)
	}
	return s.Record(ctx, accountID, category, -amount, description, spinID)
}

// Credit adds points
func (s *Service) Credit(ctx context.Context, accountID string, amount int64, category entities.LedgerCategory, description, spinID string) (*entities.LedgerEntry, error) {
	if amount <= 0 {
		return nil, types.Wrap(types.ErrInvalidArgument, "credit amount must be positive", ErrNonPositiveAmount)
	}
	return s.Record(ctx, accountID, category, amount, description, spinID)
}

// AdjustBalance sets an absolute balance on behalf of an admin. The entry is nil when nothing changed.
func (s *Service) AdjustBalance(ctx context.Context, accountID string, balance int64, reason string) (*entities.LedgerEntry, error) {
	if balance < 0 {
		return nil, types.New(types.ErrInvalidArgument, "balance cannot be negative")
	}
	if strings.TrimSpace(reason) == "" {
		reason = "Корректировка администратором"
	}

	entry, err := s.repo.SetBalance(ctx, accountID, balance, reason)
	if err != nil {
		if errors.Is(err, accountRepo.ErrAccountNotFound) {
			return nil, types.Wrap(types.ErrAccountNotFound, "account not found", err)
		}
		return nil, types.Wrap(types.ErrDatabaseError, "error adjusting balance", err)
	}

	if entry != nil {
		s.log.Info("Balance of %s set to %d (delta %+d): %s", accountID, balance, entry.Amount, reason)
	}
	return entry, nil
}

// Balance returns the current balance of an account
func (s *Service) Balance(ctx context.Context, accountID string) (int64, error) {
	account, err := s.repo.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, accountRepo.ErrAccountNotFound) {
			return 0, types.Wrap(types.ErrAccountNotFound, "account not found", err)
		}
		return 0, types.Wrap(types.ErrDatabaseError, "error loading account", err)
	}
	return account.Balance, nil
}

// Entries returns ledger entries, newest first
func (s *Service) Entries(ctx context.Context, filter accountRepo.LedgerFilter) ([]*entities.LedgerEntry, error) {
	entries, err := s.repo.Entries(ctx, filter)
	if err != nil {
		return nil, types.Wrap(types.ErrDatabaseError, "error loading ledger", err)
	}
	return entries, nil
}

// VerifyLedger checks that the stored balance equals the sum of the account's entries
func (s *Service) VerifyLedger(ctx context.Context, accountID string) error {
	balance, err := s.Balance(ctx, accountID)
	if err != nil {
		return err
	}

	sum, err := s.repo.SumEntries(ctx, accountID)
	if err != nil {
		return types.Wrap(types.ErrDatabaseError, "error summing ledger", err)
	}

	if sum != balance {
		s.log.Error("Ledger mismatch for %s: balance %d, entries %d", accountID, balance, sum)
		return fmt.Errorf("%w: account %s balance %d, entries sum %d", ErrLedgerMismatch, accountID, balance, sum)
	}
	return nil
}
