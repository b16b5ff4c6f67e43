// Package geo checks that a player is physically at the club they spin for.
package geo

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/fadedpez/clubwheel/internal/types"
	"github.com/fadedpez/clubwheel/pkg/entities"
)

const (
	EarthRadiusMeters   = 6371e3
	DefaultRadiusMeters = 200.0
)

// DistanceMeters returns the great-circle (haversine) distance between two points
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// Location is a reported device position
type Location struct {
	Latitude  float64
	Longitude float64
}

// Valid reports whether the coordinates are real numbers inside WGS84 bounds
func (l *Location) Valid() bool {
	if l == nil {
		return false
	}
	if math.IsNaN(l.Latitude) || math.IsNaN(l.Longitude) || math.IsInf(l.Latitude, 0) || math.IsInf(l.Longitude, 0) {
		return false
	}
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// Gate enforces the spin radius around a club
type Gate struct {
	RadiusMeters  float64
	BypassPhone   string // Test identity allowed to spin from anywhere
	BypassEnabled bool

	distance func(lat1, lon1, lat2, lon2 float64) float64
}

// NewGate creates a gate with the given radius; a non-positive radius uses the default
func NewGate(radiusMeters float64, bypassPhone string, bypassEnabled bool) *Gate {
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	return &Gate{
		RadiusMeters:  radiusMeters,
		BypassPhone:   bypassPhone,
		BypassEnabled: bypassEnabled,
		distance:      DistanceMeters,
	}
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

func (g *Gate) bypassed(account *entities.Account) bool {
	if !g.BypassEnabled || g.BypassPhone == "" || account == nil {
		return false
	}
	want := digitsOnly(g.BypassPhone)
	return want != "" && digitsOnly(account.Phone) == want
}

// Check returns nil when the spin may proceed. Failures are GEOFENCE_FAILED
// app errors whose Reason is MISSING_LOCATION or TOO_FAR_FROM_CLUB.
func (g *Gate) Check(club *entities.Club, account *entities.Account, loc *Location) error {
	if club == nil || !club.HasCoordinates() {
		return nil
	}
	if g.bypassed(account) {
		return nil
	}
	if !loc.Valid() {
		return types.Geofence(types.ErrMissingLocation, "location is required to spin at this club")
	}

	distance := g.distance
	if distance == nil {
		distance = DistanceMeters
	}

	meters := distance(*club.Latitude, *club.Longitude, loc.Latitude, loc.Longitude)
	if meters > g.RadiusMeters {
		return types.Geofence(types.ErrTooFarFromClub,
			fmt.Sprintf("you are %.0f m from the club, spins are allowed within %.0f m", meters, g.RadiusMeters))
	}
	return nil
}
