package account

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
	accounts map[string]*entities.Account
	ledger   []*entities.LedgerEntry
	mu       sync.RWMutex
}

// NewMemoryRepository creates a new in-memory account repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[string]*entities.Account),
	}
}

func copyAccount(a *entities.Account) *entities.Account {
	c := *a
	if a.BanUntil != nil {
		until := *a.BanUntil
		c.BanUntil = &until
	}
	return &c
}

// uniqueLocked reports whether phone and referral code are free for the given account
func (r *MemoryRepository) uniqueLocked(account *entities.Account) bool {
	for id, existing := range r.accounts {
		if id == account.ID {
			continue
		}
		if existing.Phone == account.Phone {
			return false
		}
		if account.ReferralCode != "" && existing.ReferralCode == account.ReferralCode {
			return false
		}
	}
	return true
}

// Create inserts a new account
func (r *MemoryRepository) Create(ctx context.Context, account *entities.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if _, exists := r.accounts[account.ID]; exists || !r.uniqueLocked(account) {
		return ErrDuplicateAccount
	}

	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	account.Balance = 0

	r.accounts[account.ID] = copyAccount(account)
	return nil
}

// Get retrieves an account by ID
func (r *MemoryRepository) Get(ctx context.Context, id string) (*entities.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, exists := r.accounts[id]
	if !exists {
		return nil, ErrAccountNotFound
	}
	return copyAccount(account), nil
}

func (r *MemoryRepository) findLocked(match func(*entities.Account) bool) (*entities.Account, error) {
	for _, account := range r.accounts {
		if match(account) {
			return copyAccount(account), nil
		}
	}
	return nil, ErrAccountNotFound
}

// GetByPhone retrieves an account by phone number
func (r *MemoryRepository) GetByPhone(ctx context.Context, phone string) (*entities.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.findLocked(func(a *entities.Account) bool { return a.Phone == phone })
}

// GetByReferralCode retrieves an account by its referral code
func (r *MemoryRepository) GetByReferralCode(ctx context.Context, code string) (*entities.Account, error) {
	if code == "" {
		return nil, ErrAccountNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.findLocked(func(a *entities.Account) bool { return a.ReferralCode == code })
}

// Update saves profile fields, keeping the stored balance
func (r *MemoryRepository) Update(ctx context.Context, account *entities.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.accounts[account.ID]
	if !exists {
		return ErrAccountNotFound
	}
	if !r.uniqueLocked(account) {
		return ErrDuplicateAccount
	}

	updated := copyAccount(account)
	updated.Balance = existing.Balance
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	if existing.ReferrerID != "" {
		updated.ReferrerID = existing.ReferrerID
	}
	r.accounts[account.ID] = updated

	account.Balance = existing.Balance
	account.ReferrerID = updated.ReferrerID
	account.UpdatedAt = updated.UpdatedAt
	return nil
}

// SetReferrer records the referrer unless one is already set
func (r *MemoryRepository) SetReferrer(ctx context.Context, accountID, referrerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.accounts[accountID]
	if !exists {
		return false, ErrAccountNotFound
	}
	if existing.ReferrerID != "" {
		return false, nil
	}
	existing.ReferrerID = referrerID
	existing.UpdatedAt = time.Now().UTC()
	return true, nil
}

// Delete removes an account and its ledger
func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[id]; !exists {
		return ErrAccountNotFound
	}
	delete(r.accounts, id)

	kept := r.ledger[:0]
	for _, entry := range r.ledger {
		if entry.AccountID != id {
			kept = append(kept, entry)
		}
	}
	r.ledger = kept
	return nil
}

// List returns accounts matching the filter, oldest first
func (r *MemoryRepository) List(ctx context.Context, filter Filter) ([]*entities.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*entities.Account, 0)
	for _, account := range r.accounts {
		if filter.Role != "" && account.Role != filter.Role {
			continue
		}
		if filter.BannedOnly && !account.Banned {
			continue
		}
		result = append(result, copyAccount(account))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// appendLocked stamps and stores an entry
func (r *MemoryRepository) appendLocked(entry *entities.LedgerEntry, balanceAfter int64) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.BalanceAfter = balanceAfter

	entryCopy := *entry
	r.ledger = append(r.ledger, &entryCopy)
}

// Post atomically applies entry.Amount and appends the entry
func (r *MemoryRepository) Post(ctx context.Context, entry *entities.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[entry.AccountID]
	if !exists {
		return ErrAccountNotFound
	}
	if account.Balance+entry.Amount < 0 {
		return ErrInsufficientBalance
	}

	account.Balance += entry.Amount
	account.UpdatedAt = time.Now().UTC()
	r.appendLocked(entry, account.Balance)
	return nil
}

// SetBalance sets an absolute balance and records the delta
func (r *MemoryRepository) SetBalance(ctx context.Context, accountID string, balance int64, description string) (*entities.LedgerEntry, error) {
	if balance < 0 {
		return nil, ErrInsufficientBalance
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[accountID]
	if !exists {
		return nil, ErrAccountNotFound
	}

	delta := balance - account.Balance
	if delta == 0 {
		return nil, nil
	}

	account.Balance = balance
	account.UpdatedAt = time.Now().UTC()

	entry := &entities.LedgerEntry{
		AccountID:   accountID,
		Category:    entities.LedgerManualAdjustment,
		Amount:      delta,
		Description: description,
	}
	r.appendLocked(entry, balance)
	return entry, nil
}

func matchesEntry(entry *entities.LedgerEntry, filter LedgerFilter) bool {
	if filter.AccountID != "" && entry.AccountID != filter.AccountID {
		return false
	}
	if filter.Category != "" && entry.Category != filter.Category {
		return false
	}
	if !filter.From.IsZero() && entry.CreatedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && !entry.CreatedAt.Before(filter.To) {
		return false
	}
	return true
}

// Entries returns ledger entries, newest first
func (r *MemoryRepository) Entries(ctx context.Context, filter LedgerFilter) ([]*entities.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*entities.LedgerEntry, 0)
	for i := len(r.ledger) - 1; i >= 0; i-- {
		if matchesEntry(r.ledger[i], filter) {
			entryCopy := *r.ledger[i]
			result = append(result, &entryCopy)
		}
	}

	// Entries may carry caller-supplied timestamps, so append order alone is not enough
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// SumEntries returns the sum of all entry amounts for an account
func (r *MemoryRepository) SumEntries(ctx context.Context, accountID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sum int64
	for _, entry := range r.ledger {
		if entry.AccountID == accountID {
			sum += entry.Amount
		}
	}
	return sum, nil
}
