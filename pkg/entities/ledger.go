package entities

import "time"

// LedgerCategory represents the reason for a balance change
type LedgerCategory string

const (
	LedgerRegistrationBonus LedgerCategory = "registration_bonus"
	LedgerSpinCost          LedgerCategory = "spin_cost"
	LedgerPrizePoints       LedgerCategory = "prize_points"
	LedgerManualAdjustment  LedgerCategory = "manual_adjustment"
	LedgerReferralBonus     LedgerCategory = "referral_bonus"
)

// LedgerEntry is a single immutable balance delta
type LedgerEntry struct {
	ID           string         `json:"id"`
	AccountID    string         `json:"accountId"`
	Category     LedgerCategory `json:"category"`
	Amount       int64          `json:"amount"` // Positive for credits, negative for debits
	Description  string         `json:"description"`
	SpinID       string         `json:"spinId,omitempty"`
	BalanceAfter int64          `json:"balanceAfter"`
	CreatedAt    time.Time      `json:"createdAt"`
}
