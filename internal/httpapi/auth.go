package httpapi

import (
	"strings"

	"github.com/fadedpez/clubwheel/internal/types"
	"github.com/fadedpez/clubwheel/pkg/entities"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const localAccount = "account"

// Claims is the payload of an access token. Tokens are issued elsewhere.
type Claims struct {
	AccountID string `json:"id"`
	Role      string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func unauthorized(message string) error {
	return types.New(types.ErrUnauthorized, message)
}

// parseToken verifies an HS256 token and its registered claims
func (s *Server) parseToken(raw string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, unauthorized("token verification is not configured")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, unauthorized("invalid token")
	}
	if claims.AccountID == "" {
		return nil, unauthorized("invalid token payload")
	}
	return claims, nil
}

// protect resolves the bearer token to an account that is allowed to act
func (s *Server) protect(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, "Bearer ") {
		return unauthorized("missing bearer token")
	}

	claims, err := s.parseToken(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
	if err != nil {
		return err
	}

	account, err := s.services.Accounts.CheckAccess(c.UserContext(), claims.AccountID)
	if types.Is(err, types.ErrAccountNotFound) {
		return unauthorized("account not found")
	}
	if err != nil {
		return err
	}

	c.Locals(localAccount, account)
	return c.Next()
}

// authorize admits only the given roles. It must run after protect.
func authorize(roles ...entities.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		account := currentAccount(c)
		if account == nil {
			return unauthorized("not authenticated")
		}
		for _, role := range roles {
			if account.Role == role {
				return c.Next()
			}
		}
		return types.New(types.ErrPermissionDenied, "access denied")
	}
}

func currentAccount(c *fiber.Ctx) *entities.Account {
	account, _ := c.Locals(localAccount).(*entities.Account)
	return account
}
