package geo

import (
	"math"
	"testing"

	"github.com/fadedpez/clubwheel/internal/types"
	"github.com/fadedpez/clubwheel/pkg/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	clubLat = 43.238949
	clubLon = 76.889709
)

// metersNorth returns the latitude reached by walking d meters due north
func metersNorth(lat, d float64) float64 {
	return lat + d/EarthRadiusMeters*180/math.Pi
}

func geofencedClub() *entities.Club {
	lat, lon := clubLat, clubLon
	return &entities.Club{ID: "club-1", Latitude: &lat, Longitude: &lon, Active: true}
}

func player(phone string) *entities.Account {
	return &entities.Account{ID: "p1", Phone: phone, Role: entities.RolePlayer}
}

func fixedDistance(meters float64) func(lat1, lon1, lat2, lon2 float64) float64 {
	return func(lat1, lon1, lat2, lon2 float64) float64 { return meters }
}

func assertGeofenceReason(t *testing.T, err error, reason types.ErrorCode) {
	t.Helper()
	var appErr *types.AppError
	require.True(t, types.As(err, &appErr), "expected an AppError, got %v", err)
	assert.Equal(t, types.ErrGeofenceFailed, appErr.Code)
	assert.Equal(t, reason, appErr.Reason)
}

func TestDistanceMeters(t *testing.T) {
	assert.InDelta(t, 0, DistanceMeters(clubLat, clubLon, clubLat, clubLon), 1e-9)
	assert.InDelta(t, 200, DistanceMeters(clubLat, clubLon, metersNorth(clubLat, 200), clubLon), 1e-6)

	// One degree of longitude on the equator
	assert.InDelta(t, EarthRadiusMeters*math.Pi/180, DistanceMeters(0, 0, 0, 1), 1e-6)
}

func TestCheckRadiusBoundaryIsInclusive(t *testing.T) {
	gate := NewGate(200, "", false)
	loc := &Location{Latitude: clubLat, Longitude: clubLon}

	gate.distance = fixedDistance(200.0)
	assert.NoError(t, gate.Check(geofencedClub(), player("+77010000001"), loc))

	gate.distance = fixedDistance(200.1)
	assertGeofenceReason(t, gate.Check(geofencedClub(), player("+77010000001"), loc), types.ErrTooFarFromClub)
}

func TestCheckWithRealCoordinates(t *testing.T) {
	gate := NewGate(200, "", false)

	near := &Location{Latitude: metersNorth(clubLat, 150), Longitude: clubLon}
	assert.NoError(t, gate.Check(geofencedClub(), player("+77010000001"), near))

	far := &Location{Latitude: metersNorth(clubLat, 250), Longitude: clubLon}
	assertGeofenceReason(t, gate.Check(geofencedClub(), player("+77010000001"), far), types.ErrTooFarFromClub)
}

func TestCheckMissingOrInvalidLocation(t *testing.T) {
	gate := NewGate(200, "", false)

	testCases := []struct {
		name string
		loc  *Location
	}{
		{"nil", nil},
		{"NaN latitude", &Location{Latitude: math.NaN(), Longitude: clubLon}},
		{"infinite longitude", &Location{Latitude: clubLat, Longitude: math.Inf(1)}},
		{"latitude out of range", &Location{Latitude: 91, Longitude: clubLon}},
		{"longitude out of range", &Location{Latitude: clubLat, Longitude: -181}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assertGeofenceReason(t, gate.Check(geofencedClub(), player("+77010000001"), tc.loc), types.ErrMissingLocation)
		})
	}
}

func TestCheckClubWithoutCoordinatesPasses(t *testing.T) {
	gate := NewGate(200, "", false)

	assert.NoError(t, gate.Check(&entities.Club{ID: "club-2", Active: true}, player("+77010000001"), nil))
}

func TestCheckBypassIdentity(t *testing.T) {
	far := &Location{Latitude: 0, Longitude: 0}

	enabled := NewGate(200, "+7 (701) 000-00-01", true)
	assert.NoError(t, enabled.Check(geofencedClub(), player("+77010000001"), nil))
	assert.NoError(t, enabled.Check(geofencedClub(), player("77010000001"), far))
	assertGeofenceReason(t, enabled.Check(geofencedClub(), player("+77010000002"), far), types.ErrTooFarFromClub)

	disabled := NewGate(200, "+77010000001", false)
	assertGeofenceReason(t, disabled.Check(geofencedClub(), player("+77010000001"), nil), types.ErrMissingLocation)
}

func TestNewGateDefaultsRadius(t *testing.T) {
	assert.Equal(t, DefaultRadiusMeters, NewGate(0, "", false).RadiusMeters)
}
