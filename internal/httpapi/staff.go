package httpapi

import (
	"time"

	"github.com/fadedpez/clubwheel/pkg/entities"
	"github.com/fadedpez/clubwheel/pkg/services/club"
	"github.com/gofiber/fiber/v2"
)

const dateLayout = "2006-01-02"

// staffClub is the caller's own club; admins may pick any club with ?club=
func (s *Server) staffClub(c *fiber.Ctx) (*entities.Club, error) {
	account := currentAccount(c)
	if identifier := c.Query("club"); identifier != "" && account.Role == entities.RoleAdmin {
		return s.services.Clubs.Resolve(c.UserContext(), identifier)
	}
	return s.services.Clubs.MyClub(c.UserContext(), account.ID)
}

// parsePeriod reads ?from= and ?to= as dates or RFC 3339 times. A bare to date is inclusive.
func parsePeriod(c *fiber.Ctx) (time.Time, time.Time, error) {
	parse := func(key string, endOfDay bool) (time.Time, error) {
		raw := c.Query(key)
		if raw == "" {
			return time.Time{}, nil
		}
		if t, err := time.Parse(dateLayout, raw); err == nil {
			if endOfDay {
				t = t.AddDate(0, 0, 1)
			}
			return t, nil
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, badRequest("invalid " + key + " date")
		}
		return t, nil
	}

	from, err := parse("from", false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parse("to", true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return time.Time{}, time.Time{}, badRequest("from must be before to")
	}
	return from, to, nil
}

func (s *Server) getMyClub(c *fiber.Ctx) error {
	club, err := s.staffClub(c)
	if err != nil {
		return err
	}
	return jsonSuccess(c, "Club retrieved successfully", fiber.Map{
		"club":      viewOfClub(club),
		"pin":       club.PIN,
		"joinToken": club.JoinToken,
	})
}

func (s *Server) getPrizeClaims(c *fiber.Ctx) error {
	owned, err := s.staffClub(c)
	if err != nil {
		return err
	}

	page, err := s.services.Clubs.ListClaims(c.UserContext(), owned.ID, club.ClaimQuery{
		Status: entities.ClaimStatus(c.Query("status")),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", club.DefaultClaimPageSize),
	})
	if err != nil {
		return err
	}
	return jsonSuccess(c, "Prize claims retrieved successfully", page)
}

func (s *Server) confirmPrizeClaim(c *fiber.Ctx) error {
	var body struct {
		Notes string `json:"notes"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return badRequest("invalid request body")
		}
	}

	owned, err := s.staffClub(c)
	if err != nil {
		return err
	}
	claim, err := s.services.Clubs.ConfirmClaim(c.UserContext(), owned.ID, c.Params("claimId"), currentAccount(c).ID, body.Notes)
	if err != nil {
		return err
	}
	return jsonSuccess(c, "Prize claim confirmed", claim)
}

func (s *Server) manageClubTime(c *fiber.Ctx) error {
	var body struct {
		Action club.ClubTimeAction `json:"action"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest("invalid request body")
	}

	owned, err := s.staffClub(c)
	if err != nil {
		return err
	}
	claim, err := s.services.Clubs.ManageClubTime(c.UserContext(), owned.ID, c.Params("claimId"), body.Action)
	if err != nil {
		return err
	}
	return jsonSuccess(c, "Club time updated", claim)
}

func (s *Server) getSpinsToday(c *fiber.Ctx) error {
	owned, err := s.staffClub(c)
	if err != nil {
		return err
	}
	count, err := s.services.Clubs.SpinsToday(c.UserContext(), owned.ID)
	if err != nil {
		return err
	}
	return jsonSuccess(c, "Spins counted", fiber.Map{"count": count})
}

func (s *Server) getPlayerStats(c *fiber.Ctx) error {
	from, to, err := parsePeriod(c)
	if err != nil {
		return err
	}
	owned, err := s.staffClub(c)
	if err != nil {
		return err
	}
	stats, err := s.services.Clubs.PlayerStats(c.UserContext(), owned.ID, from, to)
	if err != nil {
		return err
	}
	return jsonSuccess(c, "Player stats retrieved successfully", stats)
}
