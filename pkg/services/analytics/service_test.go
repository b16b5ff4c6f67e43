package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fadedpez/clubwheel/pkg/entities"
	accountRepo "github.com/fadedpez/clubwheel/pkg/repositories/account"
	clubRepo "github.com/fadedpez/clubwheel/pkg/repositories/club"
	prizeRepo "github.com/fadedpez/clubwheel/pkg/repositories/prize"
	spinRepo "github.com/fadedpez/clubwheel/pkg/repositories/spin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// MockWinCounter is a mock implementation of the WinCounter interface
type MockWinCounter struct {
	mock.Mock
}

// WinsByPrize is a mock implementation of the WinCounter.WinsByPrize method
func (m *MockWinCounter) WinsByPrize(ctx context.Context, from, to time.Time) (map[string]int64, error) {
	args := m.Called(ctx, from, to)
	counts, _ := args.Get(0).(map[string]int64)
	return counts, args.Error(1)
}

type AnalyticsTestSuite struct {
	suite.Suite
	ctx      context.Context
	base     time.Time
	accounts *accountRepo.MemoryRepository
	clubs    *clubRepo.MemoryRepository
	prizes   *prizeRepo.MemoryRepository
	spins    *spinRepo.MemoryRepository

	almaty *entities.Club
	astana *entities.Club
	coins  *entities.Prize
	drink  *entities.Prize
	alice  *entities.Account
	bob    *entities.Account
}

func TestAnalyticsSuite(t *testing.T) {
	suite.Run(t, new(AnalyticsTestSuite))
}

func (s *AnalyticsTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.base = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.accounts = accountRepo.NewMemoryRepository()
	s.clubs = clubRepo.NewMemoryRepository()
	s.prizes = prizeRepo.NewMemoryRepository()
	s.spins = spinRepo.NewMemoryRepository()

	s.almaty = &entities.Club{Name: "Cyber Arena", Slug: "club_a", JoinToken: "token-a", PIN: "111111", City: "Almaty", Active: true}
	s.astana = &entities.Club{Name: "Nexus", Slug: "club_b", JoinToken: "token-b", PIN: "222222", City: "Astana", Active: true}
	s.Require().NoError(s.clubs.Create(s.ctx, s.almaty))
	s.Require().NoError(s.clubs.Create(s.ctx, s.astana))

	s.coins = &entities.Prize{Name: "50 баллов", Category: entities.PrizePoints, Value: 50, Weight: 50, SlotIndex: 0, Active: true}
	s.drink = &entities.Prize{Name: "Энергетик", Category: entities.PrizePhysical, Weight: 10, SlotIndex: 1, Active: true}
	s.Require().NoError(s.prizes.Create(s.ctx, s.coins))
	s.Require().NoError(s.prizes.Create(s.ctx, s.drink))

	s.alice = &entities.Account{Phone: "+77011234567", Role: entities.RolePlayer, Active: true}
	s.bob = &entities.Account{Phone: "+77019876543", Role: entities.RolePlayer, Active: true}
	staff := &entities.Account{Phone: "+77000000001", Role: entities.RoleClub, Active: true}
	s.Require().NoError(s.accounts.Create(s.ctx, s.alice))
	s.Require().NoError(s.accounts.Create(s.ctx, s.bob))
	s.Require().NoError(s.accounts.Create(s.ctx, staff))

	// alice: 2 coin wins in Almaty; bob: a drink in Almaty, then a coin and a drink in Astana
	s.addSpin(s.alice, s.almaty, s.coins, 0)
	s.addSpin(s.alice, s.almaty, s.coins, time.Minute)
	s.addSpin(s.bob, s.almaty, s.drink, 2*time.Minute)
	s.addSpin(s.bob, s.astana, s.coins, 3*time.Minute)
	s.addSpin(s.bob, s.astana, s.drink, 4*time.Minute)
}

func (s *AnalyticsTestSuite) addSpin(account *entities.Account, club *entities.Club, prize *entities.Prize, offset time.Duration) {
	spin := &entities.Spin{
		AccountID: account.ID,
		ClubID:    club.ID,
		PrizeID:   prize.ID,
		Cost:      20,
		Status:    entities.SpinConfirmed,
		CreatedAt: s.base.Add(offset),
	}
	s.Require().NoError(s.spins.Create(s.ctx, spin))
	if prize.Category != entities.PrizePoints {
		s.Require().NoError(s.spins.CreateClaim(s.ctx, &entities.PrizeClaim{
			AccountID: account.ID,
			SpinID:    spin.ID,
			PrizeID:   prize.ID,
			ClubID:    club.ID,
			Status:    entities.ClaimPending,
		}))
	}
}

func (s *AnalyticsTestSuite) service(wins WinCounter) *Service {
	return NewService(s.accounts, s.clubs, s.prizes, s.spins, wins, nil)
}

func (s *AnalyticsTestSuite) clubStat(stats []ClubStat, clubID string) ClubStat {
	for _, stat := range stats {
		if stat.ClubID == clubID {
			return stat
		}
	}
	s.FailNow("club stat not found", clubID)
	return ClubStat{}
}

func (s *AnalyticsTestSuite) TestOverviewTotals() {
	overview, err := s.service(nil).Overview(s.ctx, time.Time{}, time.Time{})
	s.Require().NoError(err)

	s.Equal(2, overview.TotalPlayers, "club staff are not players")
	s.Equal(2, overview.TotalClubs)
	s.Equal(5, overview.TotalSpins)
	s.Equal(2, overview.TotalPrizes)
	s.Equal(int64(100), overview.TotalSpent)

	almaty := s.clubStat(overview.ClubStats, s.almaty.ID)
	s.Equal(3, almaty.Spins)
	s.Equal(2, almaty.Players)
	s.Equal(int64(60), almaty.TotalSpent)
	s.Equal(1, almaty.PrizeClaims)
	s.Equal("Almaty", almaty.City)

	astana := s.clubStat(overview.ClubStats, s.astana.ID)
	s.Equal(2, astana.Spins)
	s.Equal(1, astana.Players)
	s.Equal(1, astana.PrizeClaims)
}

func (s *AnalyticsTestSuite) TestOverviewPrizeStatsFromSpins() {
	overview, err := s.service(nil).Overview(s.ctx, time.Time{}, time.Time{})
	s.Require().NoError(err)

	s.Require().Len(overview.PrizeStats, 2)
	s.Equal(s.coins.ID, overview.PrizeStats[0].PrizeID)
	s.Equal(int64(3), overview.PrizeStats[0].Wins)
	s.Equal(int64(2), overview.PrizeStats[1].Wins)
}

func (s *AnalyticsTestSuite) TestOverviewRespectsPeriod() {
	from := s.base.Add(2 * time.Minute)
	to := s.base.Add(4 * time.Minute)

	overview, err := s.service(nil).Overview(s.ctx, from, to)
	s.Require().NoError(err)

	s.Equal(2, overview.TotalSpins)
	s.Equal(int64(40), overview.TotalSpent)
}

func (s *AnalyticsTestSuite) TestOverviewPrefersWinIndex() {
	counter := new(MockWinCounter)
	counter.On("WinsByPrize", mock.Anything, time.Time{}, time.Time{}).
		Return(map[string]int64{s.drink.ID: 9, "deleted-prize": 3}, nil)

	overview, err := s.service(counter).Overview(s.ctx, time.Time{}, time.Time{})
	s.Require().NoError(err)

	s.Require().Len(overview.PrizeStats, 1, "prizes that no longer exist are skipped")
	s.Equal(s.drink.ID, overview.PrizeStats[0].PrizeID)
	s.Equal(int64(9), overview.PrizeStats[0].Wins)
	counter.AssertExpectations(s.T())
}

func (s *AnalyticsTestSuite) TestOverviewFallsBackWhenIndexFails() {
	counter := new(MockWinCounter)
	counter.On("WinsByPrize", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	overview, err := s.service(counter).Overview(s.ctx, time.Time{}, time.Time{})
	s.Require().NoError(err)

	s.Require().Len(overview.PrizeStats, 2)
	s.Equal(int64(3), overview.PrizeStats[0].Wins)
}

func (s *AnalyticsTestSuite) TestByCity() {
	cities, err := s.service(nil).ByCity(s.ctx, time.Time{}, time.Time{})
	s.Require().NoError(err)

	s.Require().Len(cities, 2)
	s.Equal("Almaty", cities[0].City)
	s.Equal("Astana", cities[1].City)
	s.Require().Len(cities[1].Clubs, 1)
	s.Equal(2, cities[1].Clubs[0].Spins)
}

func (s *AnalyticsTestSuite) TestLeaderboard() {
	board, err := s.service(nil).Leaderboard(s.ctx, time.Time{}, time.Time{}, 1, 10)
	s.Require().NoError(err)

	s.Equal(2, board.TotalPlayers)
	s.Equal(1, board.TotalPages)
	s.Require().Len(board.Players, 2)

	top := board.Players[0]
	s.Equal(s.alice.ID, top.AccountID)
	s.Equal(1, top.Rank)
	s.Equal(int64(100), top.PointsWon)
	s.Equal(0, top.PrizesWon)
	s.True(top.IsTopWinner)
	s.False(top.IsTopPlayer)

	second := board.Players[1]
	s.Equal(s.bob.ID, second.AccountID)
	s.Equal(2, second.Rank)
	s.Equal(3, second.Spins)
	s.Equal(int64(50), second.PointsWon)
	s.Equal(2, second.PrizesWon)
	s.True(second.IsTopPlayer)
	s.Equal("+7 701 *** 6543", second.MaskedPhone)
}

func (s *AnalyticsTestSuite) TestLeaderboardPagination() {
	svc := s.service(nil)

	testCases := []struct {
		name         string
		page         int
		perPage      int
		expectedPage int
		expectedLen  int
		expectedRank int
	}{
		{"first page", 1, 1, 1, 1, 1},
		{"second page", 2, 1, 2, 1, 2},
		{"page past the end clamps", 5, 1, 2, 1, 2},
		{"invalid page defaults to first", 0, 1, 1, 1, 1},
		{"invalid size defaults to ten", 1, 0, 1, 2, 1},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			board, err := svc.Leaderboard(s.ctx, time.Time{}, time.Time{}, tc.page, tc.perPage)
			s.Require().NoError(err)

			s.Equal(tc.expectedPage, board.CurrentPage)
			s.Require().Len(board.Players, tc.expectedLen)
			s.Equal(tc.expectedRank, board.Players[0].Rank)
		})
	}
}

func (s *AnalyticsTestSuite) TestLeaderboardEmpty() {
	board, err := s.service(nil).Leaderboard(s.ctx, s.base.Add(time.Hour), time.Time{}, 1, 10)
	s.Require().NoError(err)

	s.Equal(0, board.TotalPlayers)
	s.Equal(0, board.TotalPages)
	s.Empty(board.Players)
}
