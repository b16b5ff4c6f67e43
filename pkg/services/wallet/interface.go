package wallet

import (
	"context"

	"github.com/fadedpez/clubwheel/pkg/entities"
)

// Ledger is the balance-moving surface other services depend on
type Ledger interface {
	Debit(ctx context.Context, accountID string, amount int64, category entities.LedgerCategory, description, spinID string) (*entities.LedgerEntry, error)
	Credit(ctx context.Context, accountID string, amount int64, category entities.LedgerCategory, description, spinID string) (*entities.LedgerEntry, error)
	Balance(ctx context.Context, accountID string) (int64, error)
}

// Ensure Service implements Ledger
var _ Ledger = (*Service)(nil)
