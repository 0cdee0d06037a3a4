package auth

import (
	"errors"
	"strings"

	"chemtrack-backend/internal/apperr"
	"chemtrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	CtxUserIDKey   = "user_id"
	CtxUserRoleKey = "user_role"
	CtxUsernameKey = "username"
)

// Principal is the authenticated caller as seen by handlers.
type Principal struct {
	ID       uint
	Username string
	Role     models.Role
}

func JWTMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr, err := bearerToken(c)
		if err != nil {
			return err
		}

		claims, err := ParseToken(secret, tokenStr)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
		}

		c.Locals(CtxUserIDKey, claims.UserID)
		c.Locals(CtxUserRoleKey, claims.Role)
		c.Locals(CtxUsernameKey, claims.Username)

		return c.Next()
	}
}

// LoadActiveUser runs after JWTMiddleware and re-reads the account, so a
// deactivated or deleted user is rejected and a role change applies at once
// instead of when the token expires.
func LoadActiveUser(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := CurrentUser(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Authentication required")
		}
		user, err := svc.GetUser(c.UserContext(), p.ID)
		if errors.Is(err, apperr.ErrNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "Account is inactive or no longer exists")
		}
		if err != nil {
			return err
		}
		if !user.IsActive {
			return fiber.NewError(fiber.StatusUnauthorized, "Account is inactive or no longer exists")
		}

		c.Locals(CtxUserRoleKey, user.Role)
		c.Locals(CtxUsernameKey, user.Username)
		return c.Next()
	}
}

// Require lets the request through only when the caller's role has the capability.
func Require(capability models.Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := CurrentUser(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Authentication required")
		}
		if !p.Role.Can(capability) {
			return fiber.NewError(fiber.StatusForbidden, "Insufficient permissions")
		}
		return c.Next()
	}
}

// CurrentUser reads the principal JWTMiddleware stored on the context.
func CurrentUser(c *fiber.Ctx) (Principal, bool) {
	id, ok := c.Locals(CtxUserIDKey).(uint)
	if !ok || id == 0 {
		return Principal{}, false
	}
	role, ok := c.Locals(CtxUserRoleKey).(models.Role)
	if !ok {
		return Principal{}, false
	}
	username, _ := c.Locals(CtxUsernameKey).(string)
	return Principal{ID: id, Username: username, Role: role}, true
}

// ActorID is the caller's id for ledger rows, nil when unauthenticated.
func ActorID(c *fiber.Ctx) *uint {
	p, ok := CurrentUser(c)
	if !ok {
		return nil
	}
	id := p.ID
	return &id
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "Access token required")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "Authorization header must be 'Bearer <token>'")
	}
	return strings.TrimSpace(parts[1]), nil
}
