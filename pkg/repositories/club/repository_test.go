package club

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fadedpez/clubwheel/pkg/db"
	"github.com/fadedpez/clubwheel/pkg/entities"
	"github.com/stretchr/testify/suite"
)

type RepositoryTestSuite struct {
	suite.Suite
	newRepo func(t *testing.T) Repository
	repo    Repository
	ctx     context.Context
}

func TestMemoryRepository(t *testing.T) {
	suite.Run(t, &RepositoryTestSuite{
		newRepo: func(t *testing.T) Repository { return NewMemoryRepository() },
	})
}

func TestSQLiteRepository(t *testing.T) {
	suite.Run(t, &RepositoryTestSuite{
		newRepo: func(t *testing.T) Repository {
			conn, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "clubs.db"))
			if err != nil {
				t.Fatalf("open database: %v", err)
			}
			t.Cleanup(func() { conn.Close() })
			return NewSQLiteRepository(conn)
		},
	})
}

func (s *RepositoryTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = s.newRepo(s.T())
}

func newClub(suffix string) *entities.Club {
	lat, lon := 43.238949, 76.889709
	return &entities.Club{
		Name:      "Club " + suffix,
		Slug:      "club_1712345678_" + suffix,
		JoinToken: "token-" + suffix,
		PIN:       "12345" + suffix,
		OwnerID:   "owner-" + suffix,
		Latitude:  &lat,
		Longitude: &lon,
		City:      "Almaty",
		Active:    true,
	}
}

func (s *RepositoryTestSuite) TestCreateAndResolveByEveryKey() {
	club := newClub("1")
	s.Require().NoError(s.repo.Create(s.ctx, club))
	s.NotEmpty(club.ID)

	lookups := map[string]func() (*entities.Club, error){
		"id":    func() (*entities.Club, error) { return s.repo.Get(s.ctx, club.ID) },
		"slug":  func() (*entities.Club, error) { return s.repo.GetBySlug(s.ctx, club.Slug) },
		"token": func() (*entities.Club, error) { return s.repo.GetByJoinToken(s.ctx, club.JoinToken) },
		"pin":   func() (*entities.Club, error) { return s.repo.GetByPIN(s.ctx, club.PIN) },
		"owner": func() (*entities.Club, error) { return s.repo.GetByOwner(s.ctx, club.OwnerID) },
	}
	for name, lookup := range lookups {
		s.Run(name, func() {
			found, err := lookup()
			s.Require().NoError(err)
			s.Equal(club.ID, found.ID)
			s.Require().True(found.HasCoordinates())
			s.InDelta(43.238949, *found.Latitude, 1e-9)
		})
	}

	_, err := s.repo.GetByPIN(s.ctx, "")
	s.ErrorIs(err, ErrClubNotFound)
}

func (s *RepositoryTestSuite) TestUniqueKeys() {
	s.Require().NoError(s.repo.Create(s.ctx, newClub("1")))

	dup := newClub("2")
	dup.PIN = "123451"
	s.ErrorIs(s.repo.Create(s.ctx, dup), ErrDuplicateClub)

	dup = newClub("2")
	dup.Slug = "club_1712345678_1"
	s.ErrorIs(s.repo.Create(s.ctx, dup), ErrDuplicateClub)
}

func (s *RepositoryTestSuite) TestUpdateClearsCoordinatesAndBackfillsPIN() {
	club := newClub("1")
	club.PIN = ""
	s.Require().NoError(s.repo.Create(s.ctx, club))

	club.PIN = "654321"
	club.Latitude = nil
	club.Longitude = nil
	club.Active = false
	s.Require().NoError(s.repo.Update(s.ctx, club))

	stored, err := s.repo.Get(s.ctx, club.ID)
	s.Require().NoError(err)
	s.Equal("654321", stored.PIN)
	s.False(stored.HasCoordinates())
	s.False(stored.Active)

	missing := newClub("9")
	missing.ID = "missing"
	s.ErrorIs(s.repo.Update(s.ctx, missing), ErrClubNotFound)
}

func (s *RepositoryTestSuite) TestListOrdersByCreation() {
	first := newClub("1")
	first.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	second := newClub("2")
	second.CreatedAt = first.CreatedAt.Add(time.Hour)
	s.Require().NoError(s.repo.Create(s.ctx, second))
	s.Require().NoError(s.repo.Create(s.ctx, first))

	clubs, err := s.repo.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(clubs, 2)
	s.Equal(first.ID, clubs[0].ID)
}
