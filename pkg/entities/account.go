package entities

import (
	"strings"
	"time"
)

// Role is the access level of an account
type Role string

const (
	RolePlayer Role = "player"
	RoleClub   Role = "club"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RolePlayer || r == RoleClub || r == RoleAdmin
}

// Account is a phone-keyed identity holding a point balance
type Account struct {
	ID      string
	Phone   string
	Name    string
	Role    Role
	Balance int64 // Cached sum of the account's ledger entries
	ClubID  string
	Active  bool

	Banned    bool
	BanUntil  *time.Time // nil with Banned set means an indefinite ban
	BanReason string

	ReferrerID   string // Set at most once
	ReferralCode string // Unique 6-character code, assigned lazily

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BanActive reports whether a ban is in effect at now
func (a *Account) BanActive(now time.Time) bool {
	if !a.Banned {
		return false
	}
	return a.BanUntil == nil || a.BanUntil.After(now)
}

// DisplayName returns the trimmed name, empty if none was set
func (a *Account) DisplayName() string {
	return strings.TrimSpace(a.Name)
}
