package entities

import "time"

// Club is a physical venue with its own prize wheel
type Club struct {
	ID        string
	Name      string
	Slug      string // Public identifier, e.g. club_1712345678_k3j9x0a1b
	JoinToken string // Rotating token embedded in the club's QR link
	PIN       string // 6 digits, for players without a QR scanner
	OwnerID   string

	Latitude  *float64
	Longitude *float64

	Address string
	City    string
	Active  bool

	CreatedAt time.Time
}

// HasCoordinates reports whether the club opted into geofencing
func (c *Club) HasCoordinates() bool {
	return c.Latitude != nil && c.Longitude != nil
}
