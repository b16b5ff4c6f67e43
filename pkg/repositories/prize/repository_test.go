package prize

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

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
			conn, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "prizes.db"))
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

func (s *RepositoryTestSuite) create(name string, slot int, active bool, total *int64) *entities.Prize {
	prize := &entities.Prize{
		Name:      name,
		Category:  entities.PrizePoints,
		Value:     50,
		Weight:    10,
		SlotIndex: slot,
		Active:    active,
	}
	if total != nil {
		prize.TotalQuantity = entities.Int64Ptr(*total)
		prize.RemainingQuantity = entities.Int64Ptr(*total)
	}
	s.Require().NoError(s.repo.Create(s.ctx, prize))
	return prize
}

func (s *RepositoryTestSuite) TestListOrdersBySlotAndFiltersActive() {
	s.create("third", 7, true, nil)
	s.create("first", 0, true, nil)
	s.create("hidden", 3, false, nil)

	active, err := s.repo.List(s.ctx, true)
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Equal("first", active[0].Name)
	s.Equal("third", active[1].Name)

	all, err := s.repo.List(s.ctx, false)
	s.Require().NoError(err)
	s.Len(all, 3)
}

func (s *RepositoryTestSuite) TestGetUpdateDelete() {
	prize := s.create("coffee", 1, true, entities.Int64Ptr(5))

	prize.Name = "latte"
	prize.Category = entities.PrizePhysical
	prize.TotalQuantity = nil
	prize.RemainingQuantity = nil
	s.Require().NoError(s.repo.Update(s.ctx, prize))
	s.Require().NotNil(prize.RemainingQuantity, "update reads back the stored stock")
	s.Equal(int64(5), *prize.RemainingQuantity)

	stored, err := s.repo.Get(s.ctx, prize.ID)
	s.Require().NoError(err)
	s.Equal("latte", stored.Name)
	s.Equal(entities.PrizePhysical, stored.Category)
	s.True(stored.Limited(), "update leaves stock alone")

	s.Require().NoError(s.repo.Delete(s.ctx, prize.ID))
	_, err = s.repo.Get(s.ctx, prize.ID)
	s.ErrorIs(err, ErrPrizeNotFound)
	s.ErrorIs(s.repo.Delete(s.ctx, prize.ID), ErrPrizeNotFound)
}

func (s *RepositoryTestSuite) TestUpdateKeepsConcurrentDecrement() {
	prize := s.create("coffee", 1, true, entities.Int64Ptr(5))
	stale, err := s.repo.Get(s.ctx, prize.ID)
	s.Require().NoError(err)

	_, err = s.repo.Decrement(s.ctx, prize.ID)
	s.Require().NoError(err)

	stale.Name = "latte"
	s.Require().NoError(s.repo.Update(s.ctx, stale))

	stored, err := s.repo.Get(s.ctx, prize.ID)
	s.Require().NoError(err)
	s.Equal("latte", stored.Name)
	s.Equal(int64(4), *stored.RemainingQuantity)
}

func (s *RepositoryTestSuite) TestSetStock() {
	prize := s.create("coffee", 1, true, entities.Int64Ptr(5))
	_, err := s.repo.Decrement(s.ctx, prize.ID)
	s.Require().NoError(err)

	testCases := []struct {
		name      string
		change    StockChange
		total     *int64
		remaining *int64
	}{
		{"raising total keeps remaining", StockChange{Total: entities.Int64Ptr(20)}, entities.Int64Ptr(20), entities.Int64Ptr(4)},
		{"lowering total caps remaining", StockChange{Total: entities.Int64Ptr(3)}, entities.Int64Ptr(3), entities.Int64Ptr(3)},
		{"refill", StockChange{Total: entities.Int64Ptr(8), Refill: true}, entities.Int64Ptr(8), entities.Int64Ptr(8)},
		{"remaining only keeps total", StockChange{Remaining: entities.Int64Ptr(2)}, entities.Int64Ptr(8), entities.Int64Ptr(2)},
		{"both", StockChange{Total: entities.Int64Ptr(30), Remaining: entities.Int64Ptr(7)}, entities.Int64Ptr(30), entities.Int64Ptr(7)},
		{"no change", StockChange{}, entities.Int64Ptr(30), entities.Int64Ptr(7)},
		{"unlimited", StockChange{Unlimited: true}, nil, nil},
		{"remaining on unlimited sets total", StockChange{Remaining: entities.Int64Ptr(6)}, entities.Int64Ptr(6), entities.Int64Ptr(6)},
	}

	for _, tc := range testCases {
		updated, err := s.repo.SetStock(s.ctx, prize.ID, tc.change)
		s.Require().NoError(err, tc.name)
		s.Equal(tc.total, updated.TotalQuantity, tc.name)
		s.Equal(tc.remaining, updated.RemainingQuantity, tc.name)

		stored, err := s.repo.Get(s.ctx, prize.ID)
		s.Require().NoError(err)
		s.Equal(tc.remaining, stored.RemainingQuantity, tc.name)
	}

	_, err = s.repo.SetStock(s.ctx, "missing", StockChange{Unlimited: true})
	s.ErrorIs(err, ErrPrizeNotFound)
}

func (s *RepositoryTestSuite) TestDecrementFloorsAtZero() {
	prize := s.create("jackpot", 2, true, entities.Int64Ptr(2))

	for i := 0; i < 4; i++ {
		_, err := s.repo.Decrement(s.ctx, prize.ID)
		s.Require().NoError(err)
	}

	stored, err := s.repo.Get(s.ctx, prize.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored.RemainingQuantity)
	s.Equal(int64(0), *stored.RemainingQuantity)
	s.Equal(int64(2), *stored.TotalQuantity)
	s.False(stored.InStock())
}

func (s *RepositoryTestSuite) TestDecrementLeavesUnlimitedAlone() {
	prize := s.create("points", 0, true, nil)

	updated, err := s.repo.Decrement(s.ctx, prize.ID)
	s.Require().NoError(err)
	s.Nil(updated.RemainingQuantity)
	s.True(updated.InStock())

	_, err = s.repo.Decrement(s.ctx, "missing")
	s.ErrorIs(err, ErrPrizeNotFound)
}

func (s *RepositoryTestSuite) TestConcurrentDecrements() {
	prize := s.create("limited", 4, true, entities.Int64Ptr(5))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.repo.Decrement(s.ctx, prize.ID)
		}()
	}
	wg.Wait()

	stored, err := s.repo.Get(s.ctx, prize.ID)
	s.Require().NoError(err)
	s.Equal(int64(0), *stored.RemainingQuantity)
}
