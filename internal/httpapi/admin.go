package httpapi

import (
	"github.com/fadedpez/clubwheel/pkg/services/catalog"
	"github.com/gofiber/fiber/v2"
)

type prizeFundRequest struct {
	PrizeID           string `json:"prizeId"`
	TotalQuantity     *int64 `json:"totalQuantity"`
	RemainingQuantity *int64 `json:"remainingQuantity"`
}

type banRequest struct {
	Days   int    `json:"days"`
	Reason string `json:"reason"`
}

func (s *Server) putPrizeFund(c *fiber.Ctx) error {
	var req prizeFundRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body")
	}
	if req.PrizeID == "" {
		return badRequest("prizeId is required")
	}

	prize, err := s.services.Catalog.AdjustFund(c.UserContext(), catalog.FundAdjustment{
		PrizeID:           req.PrizeID,
		TotalQuantity:     req.TotalQuantity,
		RemainingQuantity: req.RemainingQuantity,
	})
	if err != nil {
		return err
	}
	return jsonSuccess(c, "Prize fund updated", viewOfPrize(prize, 0))
}

func (s *Server) getAnalytics(c *fiber.Ctx) error {
	from, to, err := parsePeriod(c)
	if err != nil {
		return err
	}
	overview, err := s.services.Analytics.Overview(c.UserContext(), from, to)
	if err != nil {
		return err
	}
	return jsonSuccess(c, "Analytics retrieved successfully", overview)
}

func (s *Server) getAnalyticsByCity(c *fiber.Ctx) error {
	from, to, err := parsePeriod(c)
	if err != nil {
		return err
	}
	cities, err := s.services.Analytics.ByCity(c.UserContext(), from, to)
	if err != nil {
		return err
	}
	return jsonSuccess(c, "Analytics retrieved successfully", cities)
}

func (s *Server) getLeaderboard(c *fiber.Ctx) error {
	from, to, err := parsePeriod(c)
	if err != nil {
		return err
	}
	board, err := s.services.Analytics.Leaderboard(c.UserContext(), from, to, c.QueryInt("page", 1), c.QueryInt("perPage", 10))
	if err != nil {
		return err
	}
	return jsonSuccess(c, "Leaderboard retrieved successfully", board)
}

func (s *Server) banUser(c *fiber.Ctx) error {
	var req banRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest("invalid request body")
		}
	}

	account, err := s.services.Accounts.Ban(c.UserContext(), c.Params("id"), req.Days, req.Reason)
	if err != nil {
		return err
	}
	return jsonSuccess(c, "User banned", fiber.Map{
		"id":        account.ID,
		"banned":    account.Banned,
		"banUntil":  account.BanUntil,
		"banReason": account.BanReason,
	})
}

func (s *Server) unbanUser(c *fiber.Ctx) error {
	account, err := s.services.Accounts.Unban(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return jsonSuccess(c, "User unbanned", fiber.Map{
		"id":     account.ID,
		"banned": account.Banned,
	})
}
