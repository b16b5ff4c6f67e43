package httpapi

import (
	"github.com/fadedpez/clubwheel/pkg/entities"
	accountRepo "github.com/fadedpez/clubwheel/pkg/repositories/account"
	"github.com/fadedpez/clubwheel/pkg/services/spin"
	"github.com/gofiber/fiber/v2"
)

const (
	defaultTransactionLimit = 50
	maxTransactionLimit     = 200
)

type spinRequest struct {
	Club      string   `json:"club"`
	ClubID    string   `json:"clubId"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type clubView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Address   string `json:"address,omitempty"`
	City      string `json:"city,omitempty"`
	Active    bool   `json:"active"`
	Geofenced bool   `json:"geofenced"`
}

type prizeView struct {
	ID                string                 `json:"id"`
	Name              string                 `json:"name"`
	Description       string                 `json:"description,omitempty"`
	ImageURL          string                 `json:"imageUrl,omitempty"`
	Category          entities.PrizeCategory `json:"category"`
	Value             int64                  `json:"value"`
	SlotIndex         int                    `json:"slotIndex"`
	Chance            float64                `json:"chance"`
	TotalQuantity     *int64                 `json:"totalQuantity"`
	RemainingQuantity *int64                 `json:"remainingQuantity"`
}

func viewOfClub(club *entities.Club) clubView {
	return clubView{
		ID:        club.ID,
		Name:      club.Name,
		Slug:      club.Slug,
		Address:   club.Address,
		City:      club.City,
		Active:    club.Active,
		Geofenced: club.HasCoordinates(),
	}
}

func viewOfPrize(prize *entities.Prize, chance float64) prizeView {
	return prizeView{
		ID:                prize.ID,
		Name:              prize.Name,
		Description:       prize.Description,
		ImageURL:          prize.ImageURL,
		Category:          prize.Category,
		Value:             prize.Value,
		SlotIndex:         prize.SlotIndex,
		Chance:            chance,
		TotalQuantity:     prize.TotalQuantity,
		RemainingQuantity: prize.RemainingQuantity,
	}
}

// getClub looks a club up by any of its public identifiers
func (s *Server) getClub(c *fiber.Ctx) error {
	identifier := c.Query("club")
	if identifier == "" {
		identifier = c.Query("clubId")
	}
	if identifier == "" {
		return badRequest("club identifier is required")
	}

	club, err := s.services.Clubs.Resolve(c.UserContext(), identifier)
	if err != nil {
		return err
	}
	return jsonSuccess(c, "Club retrieved successfully", viewOfClub(club))
}

func (s *Server) getRecentWins(c *fiber.Ctx) error {
	wins, err := s.services.Spins.RecentWins(c.UserContext())
	if err != nil {
		return err
	}
	return jsonSuccess(c, "Recent wins retrieved successfully", wins)
}

func (s *Server) getRoulettePrizes(c *fiber.Ctx) error {
	odds, err := s.services.Catalog.Odds(c.UserContext())
	if err != nil {
		return err
	}

	prizes := make([]prizeView, len(odds))
	for i, o := range odds {
		prizes[i] = viewOfPrize(o.Prize, o.Percent)
	}
	return jsonSuccess(c, "Prizes retrieved successfully", fiber.Map{
		"prizes":   prizes,
		"spinCost": s.services.Spins.Cost(),
	})
}

func (s *Server) getTransactions(c *fiber.Ctx) error {
	account := currentAccount(c)

	limit := c.QueryInt("limit", defaultTransactionLimit)
	if limit <= 0 || limit > maxTransactionLimit {
		limit = defaultTransactionLimit
	}

	entries, err := s.services.Wallet.Entries(c.UserContext(), accountRepo.LedgerFilter{
		AccountID: account.ID,
		Limit:     limit,
	})
	if err != nil {
		return err
	}
	balance, err := s.services.Wallet.Balance(c.UserContext(), account.ID)
	if err != nil {
		return err
	}

	return jsonSuccess(c, "Transactions retrieved successfully", fiber.Map{
		"balance":      balance,
		"transactions": entries,
	})
}

func (s *Server) postSpin(c *fiber.Ctx) error {
	var req spinRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body")
	}

	identifier := req.Club
	if identifier == "" {
		identifier = req.ClubID
	}
	if identifier == "" {
		return badRequest("club identifier is required")
	}

	result, err := s.services.Spins.ExecuteSpin(c.UserContext(), spin.Request{
		AccountID:      currentAccount(c).ID,
		ClubIdentifier: identifier,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
	})
	if err != nil {
		return err
	}
	return jsonSuccess(c, "Spin completed", result)
}
