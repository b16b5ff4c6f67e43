package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/fadedpez/clubwheel/pkg/entities"
	"github.com/fadedpez/clubwheel/pkg/feed"
	spinRepo "github.com/fadedpez/clubwheel/pkg/repositories/spin"
)

// Leaderboard ranks players by points won from the wheel in [from, to)
func (s *Service) Leaderboard(ctx context.Context, from, to time.Time, page, playersPerPage int) (*Leaderboard, error) {
	if page < 1 {
		page = 1
	}
	if playersPerPage < 1 {
		playersPerPage = 10
	}

	spins, err := s.spins.List(ctx, spinRepo.Filter{From: from, To: to})
	if err != nil {
		return nil, dbErr("error listing spins", err)
	}
	prizes, err := s.prizes.List(ctx, false)
	if err != nil {
		return nil, dbErr("error listing prizes", err)
	}
	prizeByID := make(map[string]*entities.Prize, len(prizes))
	for _, p := range prizes {
		prizeByID[p.ID] = p
	}

	byAccount := make(map[string]*PlayerRank)
	for _, spin := range spins {
		rank, ok := byAccount[spin.AccountID]
		if !ok {
			rank = &PlayerRank{AccountID: spin.AccountID}
			byAccount[spin.AccountID] = rank
		}
		rank.Spins++

		prize, ok := prizeByID[spin.PrizeID]
		if !ok {
			continue
		}
		if prize.Category == entities.PrizePoints {
			rank.PointsWon += prize.Value
		} else {
			rank.PrizesWon++
		}
	}

	ranks := make([]*PlayerRank, 0, len(byAccount))
	for _, rank := range byAccount {
		if account, err := s.accounts.Get(ctx, rank.AccountID); err == nil {
			rank.MaskedPhone = feed.MaskPhone(account.Phone)
		}
		ranks = append(ranks, rank)
	}

	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].PointsWon == ranks[j].PointsWon {
			return ranks[i].AccountID < ranks[j].AccountID
		}
		return ranks[i].PointsWon > ranks[j].PointsWon
	})

	if len(ranks) > 0 {
		ranks[0].IsTopWinner = true

		mostSpins := 0
		for i := 1; i < len(ranks); i++ {
			if ranks[i].Spins > ranks[mostSpins].Spins {
				mostSpins = i
			}
		}
		ranks[mostSpins].IsTopPlayer = true
	}
	for i := range ranks {
		ranks[i].Rank = i + 1
	}

	totalPlayers := len(ranks)
	totalPages := (totalPlayers + playersPerPage - 1) / playersPerPage
	if page > totalPages && totalPages > 0 {
		page = totalPages
	}

	start := (page - 1) * playersPerPage
	end := start + playersPerPage
	if end > totalPlayers {
		end = totalPlayers
	}

	current := []*PlayerRank{}
	if start < totalPlayers {
		current = ranks[start:end]
	}

	return &Leaderboard{
		Players:        current,
		TotalPlayers:   totalPlayers,
		CurrentPage:    page,
		TotalPages:     totalPages,
		PlayersPerPage: playersPerPage,
		LastUpdated:    time.Now(),
	}, nil
}
