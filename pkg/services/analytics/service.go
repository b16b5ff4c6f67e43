// Package analytics aggregates spin activity for the admin dashboard.
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/fadedpez/clubwheel/internal/logging"
	"github.com/fadedpez/clubwheel/internal/types"
	"github.com/fadedpez/clubwheel/pkg/entities"
	accountRepo "github.com/fadedpez/clubwheel/pkg/repositories/account"
	clubRepo "github.com/fadedpez/clubwheel/pkg/repositories/club"
	prizeRepo "github.com/fadedpez/clubwheel/pkg/repositories/prize"
	spinRepo "github.com/fadedpez/clubwheel/pkg/repositories/spin"
)

// WinCounter counts wins per prize from an external index
type WinCounter interface {
	WinsByPrize(ctx context.Context, from, to time.Time) (map[string]int64, error)
}

// PrizeStat is how often a prize was won
type PrizeStat struct {
	PrizeID   string `json:"prizeId"`
	PrizeName string `json:"prizeName"`
	Wins      int64  `json:"count"`
}

// ClubStat is the activity of one club
type ClubStat struct {
	ClubID      string `json:"clubId"`
	ClubName    string `json:"clubName"`
	City        string `json:"city,omitempty"`
	Spins       int    `json:"count"`
	Players     int    `json:"playerCount"`
	TotalSpent  int64  `json:"totalSpent"`
	PrizeClaims int    `json:"prizeClaimsCount"`
}

// Overview is the global dashboard
type Overview struct {
	TotalPlayers int         `json:"totalPlayers"`
	TotalClubs   int         `json:"totalClubs"`
	TotalSpins   int         `json:"totalSpins"`
	TotalPrizes  int         `json:"totalPrizes"`
	TotalSpent   int64       `json:"totalSpent"`
	PrizeStats   []PrizeStat `json:"prizeStats"`
	ClubStats    []ClubStat  `json:"clubStats"`
}

// CityStat groups club activity by city
type CityStat struct {
	City  string     `json:"city"`
	Clubs []ClubStat `json:"clubs"`
}

// PlayerRank is a player's position on the leaderboard
type PlayerRank struct {
	AccountID   string `json:"accountId"`
	MaskedPhone string `json:"maskedPhone"`
	Rank        int    `json:"rank"`
	Spins       int    `json:"spins"`
	PointsWon   int64  `json:"pointsWon"`
	PrizesWon   int    `json:"prizesWon"`
	IsTopWinner bool   `json:"isTopWinner"`
	IsTopPlayer bool   `json:"isTopPlayer"`
}

// Leaderboard is a page of ranked players
type Leaderboard struct {
	Players        []*PlayerRank `json:"players"`
	TotalPlayers   int           `json:"totalPlayers"`
	CurrentPage    int           `json:"currentPage"`
	TotalPages     int           `json:"totalPages"`
	PlayersPerPage int           `json:"playersPerPage"`
	LastUpdated    time.Time     `json:"lastUpdated"`
}

// Service computes dashboard figures
type Service struct {
	accounts accountRepo.Repository
	clubs    clubRepo.Repository
	prizes   prizeRepo.Repository
	spins    spinRepo.Repository
	wins     WinCounter
	log      *logging.Logger
}

// NewService creates a new analytics service. wins may be nil.
func NewService(accounts accountRepo.Repository, clubs clubRepo.Repository, prizes prizeRepo.Repository, spins spinRepo.Repository, wins WinCounter, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default
	}
	return &Service{
		accounts: accounts,
		clubs:    clubs,
		prizes:   prizes,
		spins:    spins,
		wins:     wins,
		log:      logger.With("analytics"),
	}
}

func dbErr(msg string, err error) error {
	return types.Wrap(types.ErrDatabaseError, msg, err)
}

// Overview returns global totals for spins in [from, to). Zero times are unbounded.
func (s *Service) Overview(ctx context.Context, from, to time.Time) (*Overview, error) {
	players, err := s.accounts.List(ctx, accountRepo.Filter{Role: entities.RolePlayer})
	if err != nil {
		return nil, dbErr("error listing players", err)
	}
	prizes, err := s.prizes.List(ctx, false)
	if err != nil {
		return nil, dbErr("error listing prizes", err)
	}
	spins, err := s.spins.List(ctx, spinRepo.Filter{From: from, To: to})
	if err != nil {
		return nil, dbErr("error listing spins", err)
	}
	clubStats, err := s.clubStats(ctx, spins)
	if err != nil {
		return nil, err
	}

	overview := &Overview{
		TotalPlayers: len(players),
		TotalClubs:   len(clubStats),
		TotalSpins:   len(spins),
		TotalPrizes:  len(prizes),
		ClubStats:    clubStats,
		PrizeStats:   s.prizeStats(ctx, prizes, spins, from, to),
	}
	for _, spin := range spins {
		overview.TotalSpent += spin.Cost
	}
	return overview, nil
}

// prizeStats prefers the search index and falls back to counting spins
func (s *Service) prizeStats(ctx context.Context, prizes []*entities.Prize, spins []*entities.Spin, from, to time.Time) []PrizeStat {
	var counts map[string]int64
	if s.wins != nil {
		indexed, err := s.wins.WinsByPrize(ctx, from, to)
		if err == nil {
			counts = indexed
		} else {
			s.log.Warn("Win index unavailable, counting spins instead: %v", err)
		}
	}
	if counts == nil {
		counts = make(map[string]int64)
		for _, spin := range spins {
			counts[spin.PrizeID]++
		}
	}

	names := make(map[string]string, len(prizes))
	for _, p := range prizes {
		names[p.ID] = p.Name
	}

	stats := make([]PrizeStat, 0, len(counts))
	for prizeID, wins := range counts {
		name, ok := names[prizeID]
		if !ok {
			continue
		}
		stats = append(stats, PrizeStat{PrizeID: prizeID, PrizeName: name, Wins: wins})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Wins == stats[j].Wins {
			return stats[i].PrizeName < stats[j].PrizeName
		}
		return stats[i].Wins > stats[j].Wins
	})
	return stats
}

func (s *Service) clubStats(ctx context.Context, spins []*entities.Spin) ([]ClubStat, error) {
	clubs, err := s.clubs.List(ctx)
	if err != nil {
		return nil, dbErr("error listing clubs", err)
	}

	byClub := make(map[string]*ClubStat, len(clubs))
	players := make(map[string]map[string]struct{}, len(clubs))
	stats := make([]ClubStat, len(clubs))
	for i, club := range clubs {
		stats[i] = ClubStat{ClubID: club.ID, ClubName: club.Name, City: club.City}
		byClub[club.ID] = &stats[i]
		players[club.ID] = make(map[string]struct{})
	}

	for _, spin := range spins {
		stat, ok := byClub[spin.ClubID]
		if !ok {
			continue
		}
		stat.Spins++
		stat.TotalSpent += spin.Cost
		players[spin.ClubID][spin.AccountID] = struct{}{}
	}

	for i := range stats {
		stats[i].Players = len(players[stats[i].ClubID])
		_, claims, err := s.spins.ListClaims(ctx, spinRepo.ClaimFilter{ClubID: stats[i].ClubID, Limit: 1})
		if err != nil {
			return nil, dbErr("error counting claims", err)
		}
		stats[i].PrizeClaims = claims
	}
	return stats, nil
}

// ByCity groups club activity by city, cities sorted by name
func (s *Service) ByCity(ctx context.Context, from, to time.Time) ([]CityStat, error) {
	spins, err := s.spins.List(ctx, spinRepo.Filter{From: from, To: to})
	if err != nil {
		return nil, dbErr("error listing spins", err)
	}
	clubStats, err := s.clubStats(ctx, spins)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]ClubStat)
	for _, stat := range clubStats {
		grouped[stat.City] = append(grouped[stat.City], stat)
	}

	cities := make([]CityStat, 0, len(grouped))
	for city, clubs := range grouped {
		cities = append(cities, CityStat{City: city, Clubs: clubs})
	}
	sort.Slice(cities, func(i, j int) bool { return cities[i].City < cities[j].City })
	return cities, nil
}
