package account

import (
	"context"
	"errors"
	"time"

	"github.com/fadedpez/clubwheel/pkg/entities"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrDuplicateAccount    = errors.New("account with this phone or referral code already exists")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Filter narrows account listings
type Filter struct {
	Role       entities.Role // Empty matches every role
	BannedOnly bool
}

// LedgerFilter narrows ledger queries. Zero times are unbounded.
type LedgerFilter struct {
	AccountID string
	Category  entities.LedgerCategory // Empty matches every category
	From      time.Time
	To        time.Time
	Limit     int // <= 0 means no limit
}

// Repository stores accounts together with their append-only ledger
type Repository interface {
	// Create inserts a new account. Balance must be zero; credit it through Post.
	Create(ctx context.Context, account *entities.Account) error

	// Get retrieves an account by ID
	Get(ctx context.Context, id string) (*entities.Account, error)

	// GetByPhone retrieves an account by phone number
	GetByPhone(ctx context.Context, phone string) (*entities.Account, error)

	// GetByReferralCode retrieves an account by its referral code
	GetByReferralCode(ctx context.Context, code string) (*entities.Account, error)

	// Update saves profile fields. It never touches the balance, and a referrer
	// that is already stored is kept.
	Update(ctx context.Context, account *entities.Account) error

	// SetReferrer records who invited the account, only if no referrer is set yet.
	// It reports whether this call set it.
	SetReferrer(ctx context.Context, accountID, referrerID string) (bool, error)

	// Delete removes an account and its ledger
	Delete(ctx context.Context, id string) error

	// List returns accounts matching the filter, oldest first
	List(ctx context.Context, filter Filter) ([]*entities.Account, error)

	// Post atomically applies entry.Amount to the balance and appends the entry.
	// A debit that would take the balance below zero fails with ErrInsufficientBalance.
	// ID, CreatedAt and BalanceAfter are filled in on success.
	Post(ctx context.Context, entry *entities.LedgerEntry) error

	// SetBalance atomically sets an absolute balance and records the delta as a
	// manual_adjustment entry. The returned entry is nil when the balance was unchanged.
	SetBalance(ctx context.Context, accountID string, balance int64, description string) (*entities.LedgerEntry, error)

	// Entries returns ledger entries, newest first
	Entries(ctx context.Context, filter LedgerFilter) ([]*entities.LedgerEntry, error)

	// SumEntries returns the sum of all entry amounts for an account
	SumEntries(ctx context.Context, accountID string) (int64, error)
}
