package auth

import (
	"github.com/gofiber/fiber/v2"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterSuperAdminRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Email    *string `json:"email"`
	FullName *string `json:"fullName"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type UserResponse struct {
	ID       uint    `json:"id"`
	Username string  `json:"username"`
	Email    *string `json:"email"`
	FullName *string `json:"fullName"`
	Role     string  `json:"role"`
}

// POST /api/auth/login
func LoginHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		res, err := svc.Login(c.UserContext(), body.Username, body.Password)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"success": true,
			"token":   res.Token,
			"user": UserResponse{
				ID:       res.User.ID,
				Username: res.User.Username,
				Email:    res.User.Email,
				FullName: res.User.FullName,
				Role:     string(res.User.Role),
			},
		})
	}
}

// POST /api/auth/register-super-admin
func RegisterSuperAdminHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterSuperAdminRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		user, err := svc.RegisterSuperAdmin(c.UserContext(), body.Username, body.Password, body.Email, body.FullName)
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":       user.ID,
			"username": user.Username,
			"role":     user.Role,
		})
	}
}

// GET /api/auth/verify
// Public route, checks the bearer token itself and never fails with 5xx.
func VerifyHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr, err := bearerToken(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"valid": false, "error": "No token provided"})
		}
		claims, err := ParseToken(svc.Secret(), tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"valid": false, "error": "Invalid token"})
		}
		return c.JSON(fiber.Map{
			"valid": true,
			"user": fiber.Map{
				"id":       claims.UserID,
				"username": claims.Username,
				"role":     claims.Role,
			},
		})
	}
}

// GET /api/auth/me
func MeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := CurrentUser(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Authentication required")
		}

		user, err := svc.GetUser(c.UserContext(), p.ID)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"id":           user.ID,
			"username":     user.Username,
			"email":        user.Email,
			"fullName":     user.FullName,
			"role":         user.Role,
			"isActive":     user.IsActive,
			"lastLogin":    user.LastLogin,
			"capabilities": user.Role.Capabilities(),
		})
	}
}

// POST /api/auth/change-password
func ChangePasswordHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := CurrentUser(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Authentication required")
		}

		var body ChangePasswordRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if err := svc.ChangePassword(c.UserContext(), p.ID, body.CurrentPassword, body.NewPassword); err != nil {
			return err
		}

		return c.JSON(fiber.Map{"success": true, "message": "Password changed successfully"})
	}
}

// POST /api/auth/logout
// Tokens are stateless; the client drops its copy.
func LogoutHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true, "message": "Logged out successfully"})
	}
}
