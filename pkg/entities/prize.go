package entities

import "time"

// PrizeCategory decides how a won prize is paid out
type PrizeCategory string

const (
	PrizePoints   PrizeCategory = "points"
	PrizePhysical PrizeCategory = "physical"
	PrizeClubTime PrizeCategory = "club_time"
	PrizeOther    PrizeCategory = "other"
)

// Valid reports whether c is a known category
func (c PrizeCategory) Valid() bool {
	switch c {
	case PrizePoints, PrizePhysical, PrizeClubTime, PrizeOther:
		return true
	}
	return false
}

const (
	MaxPrizeWeight = 100.0
	MaxSlotIndex   = 24
)

// Prize is one wheel sector
type Prize struct {
	ID          string
	Name        string
	Description string
	ImageURL    string
	Category    PrizeCategory
	Value       int64   // Points amount or club-time minutes
	Weight      float64 // Relative drop chance, 0..100; weights need not sum to 100
	SlotIndex   int

	// nil TotalQuantity means unlimited stock
	TotalQuantity     *int64
	RemainingQuantity *int64

	Active    bool
	CreatedAt time.Time
}

// Limited reports whether the prize has a finite inventory
func (p *Prize) Limited() bool {
	return p.TotalQuantity != nil
}

// InStock reports whether the prize can still be handed out
func (p *Prize) InStock() bool {
	if !p.Limited() {
		return true
	}
	return p.RemainingQuantity != nil && *p.RemainingQuantity > 0
}

// Int64Ptr is a small helper for optional quantities
func Int64Ptr(v int64) *int64 {
	return &v
}
