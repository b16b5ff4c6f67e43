// Package httpapi exposes the spin engine and its admin services over HTTP.
package httpapi

import (
	"context"
	"errors"
	"strconv"

	"github.com/fadedpez/clubwheel/internal/logging"
	"github.com/fadedpez/clubwheel/internal/types"
	"github.com/fadedpez/clubwheel/pkg/entities"
	"github.com/fadedpez/clubwheel/pkg/services/account"
	"github.com/fadedpez/clubwheel/pkg/services/analytics"
	"github.com/fadedpez/clubwheel/pkg/services/catalog"
	"github.com/fadedpez/clubwheel/pkg/services/club"
	"github.com/fadedpez/clubwheel/pkg/services/spin"
	"github.com/fadedpez/clubwheel/pkg/services/wallet"
	"github.com/gofiber/fiber/v2"
)

// Services are the collaborators behind the routes
type Services struct {
	Spins     *spin.Service
	Catalog   *catalog.Service
	Clubs     *club.Service
	Wallet    *wallet.Service
	Accounts  *account.Service
	Analytics *analytics.Service
}

// Server owns the fiber app and its routes
type Server struct {
	app      *fiber.App
	services Services
	secret   []byte
	log      *logging.Logger
}

// errorBody is the JSON shape of every failed request
type errorBody struct {
	Success           bool            `json:"success"`
	Message           string          `json:"message"`
	Code              types.ErrorCode `json:"code"`
	Reason            types.ErrorCode `json:"reason,omitempty"`
	RetryAfterSeconds int             `json:"retryAfterSeconds,omitempty"`
}

// New builds the server and registers every route
func New(services Services, jwtSecret string, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default
	}
	s := &Server{
		services: services,
		secret:   []byte(jwtSecret),
		log:      logger.With("http"),
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "clubwheel",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	players := s.app.Group("/api/players")
	players.Get("/club", s.getClub)
	players.Get("/recent-wins", s.getRecentWins)
	players.Get("/roulette-prizes", s.getRoulettePrizes)
	players.Get("/transactions", s.protect, s.getTransactions)
	players.Post("/spin", s.protect, s.postSpin)

	clubs := s.app.Group("/api/club", s.protect, authorize(entities.RoleClub, entities.RoleAdmin))
	clubs.Get("/me", s.getMyClub)
	clubs.Get("/prize-claims", s.getPrizeClaims)
	clubs.Put("/prize-claims/:claimId/confirm", s.confirmPrizeClaim)
	clubs.Put("/prize-claims/:claimId/club-time", s.manageClubTime)
	clubs.Get("/spins-today", s.getSpinsToday)
	clubs.Get("/players/stats", s.getPlayerStats)

	admin := s.app.Group("/api/admin", s.protect, authorize(entities.RoleAdmin))
	admin.Put("/prize-fund", s.putPrizeFund)
	admin.Get("/analytics", s.getAnalytics)
	admin.Get("/analytics/by-city", s.getAnalyticsByCity)
	admin.Get("/analytics/leaderboard", s.getLeaderboard)
	admin.Post("/users/:id/ban", s.banUser)
	admin.Post("/users/:id/unban", s.unbanUser)
}

// App exposes the underlying fiber app, mainly for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves HTTP on addr until Shutdown is called
func (s *Server) Listen(addr string) error {
	s.log.Info("Listening on %s", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func jsonSuccess(c *fiber.Ctx, message string, data any) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func badRequest(message string) error {
	return types.New(types.ErrInvalidArgument, message)
}

// statusFor maps an error to the HTTP status a client should see
func statusFor(err *types.AppError) int {
	switch err.Code {
	case types.ErrRouletteBusy:
		return fiber.StatusTooManyRequests
	case types.ErrUnauthorized:
		return fiber.StatusUnauthorized
	}

	switch err.Kind() {
	case types.KindValidation:
		return fiber.StatusBadRequest
	case types.KindConflict:
		return fiber.StatusConflict
	case types.KindNotFound:
		return fiber.StatusNotFound
	case types.KindAuthorization:
		return fiber.StatusForbidden
	case types.KindIntegration:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code := types.ErrInvalidArgument
		if fiberErr.Code >= fiber.StatusInternalServerError {
			code = types.ErrInternalError
		}
		return c.Status(fiberErr.Code).JSON(errorBody{Message: fiberErr.Message, Code: code})
	}

	var appErr *types.AppError
	if !types.As(err, &appErr) {
		appErr = types.Wrap(types.ErrInternalError, "internal server error", err)
	}
	s.log.LogError(appErr)

	body := errorBody{
		Message:           appErr.Message,
		Code:              appErr.Code,
		Reason:            appErr.Reason,
		RetryAfterSeconds: appErr.RetryAfterSeconds,
	}
	if appErr.Kind() == types.KindInternal {
		body.Message = "internal server error"
	}
	if appErr.RetryAfterSeconds > 0 {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(appErr.RetryAfterSeconds))
	}
	return c.Status(statusFor(appErr)).JSON(body)
}
