package entities

import "time"

// ReferralStatus only ever moves from pending to approved
type ReferralStatus string

const (
	ReferralPending  ReferralStatus = "pending"
	ReferralApproved ReferralStatus = "approved"
)

// Referral pairs an inviter with the account they brought in
type Referral struct {
	ID            string
	ReferrerID    string
	ReferredID    string
	Status        ReferralStatus
	ApprovedAt    *time.Time
	PointsAwarded int64
	CreatedAt     time.Time
}

// RecentWin is one line of the shared "latest winners" ticker
type RecentWin struct {
	PrizeName   string    `json:"prizeName"`
	MaskedPhone string    `json:"maskedPhone"`
	PlayerName  string    `json:"playerName,omitempty"`
	AccountID   string    `json:"accountId,omitempty"`
	Text        string    `json:"text"`
	WonAt       time.Time `json:"wonAt"`
}
