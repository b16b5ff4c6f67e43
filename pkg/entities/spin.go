package entities

import "time"

// SpinStatus is the lifecycle marker of a spin record
type SpinStatus string

const (
	SpinPending   SpinStatus = "pending"
	SpinConfirmed SpinStatus = "confirmed"
	SpinCancelled SpinStatus = "cancelled"
)

// Spin is an immutable record of one resolved wheel spin
type Spin struct {
	ID        string
	AccountID string
	ClubID    string
	PrizeID   string
	Cost      int64
	Status    SpinStatus
	CreatedAt time.Time
}

// ClaimStatus tracks a won non-points prize
type ClaimStatus string

const (
	ClaimPending   ClaimStatus = "pending"
	ClaimConfirmed ClaimStatus = "confirmed"
	ClaimCancelled ClaimStatus = "cancelled"
	ClaimCompleted ClaimStatus = "completed"
)

// PrizeClaim is a player's entitlement to a non-points prize
type PrizeClaim struct {
	ID              string      `json:"id"`
	AccountID       string      `json:"accountId"`
	SpinID          string      `json:"spinId"`
	PrizeID         string      `json:"prizeId"`
	ClubID          string      `json:"clubId"`
	Status          ClaimStatus `json:"status"`
	ClubTimeMinutes int64       `json:"clubTimeMinutes,omitempty"`
	Notes           string      `json:"notes,omitempty"`
	ConfirmedBy     string      `json:"confirmedBy,omitempty"`
	ConfirmedAt     *time.Time  `json:"confirmedAt,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
}
