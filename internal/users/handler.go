package users

import (
	"time"

	"chemtrack-backend/internal/activity"
	"chemtrack-backend/internal/auth"
	"chemtrack-backend/internal/httpx"
	"chemtrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CreateUserRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Email    *string `json:"email"`
	FullName *string `json:"fullName"`
	Role     string  `json:"role"`
}

type UpdateUserRequest struct {
	Email    *string `json:"email"`
	FullName *string `json:"fullName"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"isActive"`
	Password *string `json:"password"`
}

type UserResponse struct {
	ID        uint        `json:"id"`
	Username  string      `json:"username"`
	Email     *string     `json:"email"`
	FullName  *string     `json:"full_name"`
	Role      models.Role `json:"role"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
	LastLogin *time.Time  `json:"last_login"`
}

func toResponse(u *models.AdminUser) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}

// GET /api/users
func ListHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.List(c.UserContext())
		if err != nil {
			return err
		}
		res := make([]UserResponse, 0, len(list))
		for i := range list {
			res = append(res, toResponse(&list[i]))
		}
		return c.JSON(fiber.Map{"users": res})
	}
}

// POST /api/users
func CreateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUserRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		u, err := svc.Create(c.UserContext(), CreateInput{
			Username: body.Username,
			Password: body.Password,
			Email:    body.Email,
			FullName: body.FullName,
			Role:     body.Role,
		})
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"message": "User created successfully",
			"user":    toResponse(u),
		})
	}
}

// PUT /api/users/:id
func UpdateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := auth.CurrentUser(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Authentication required")
		}
		id, err := httpx.ParamID(c)
		if err != nil {
			return err
		}

		var body UpdateUserRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if before, err := svc.Get(c.UserContext(), id); err == nil {
			activity.SetOldValues(c, toResponse(before))
		}

		u, err := svc.Update(c.UserContext(), caller.ID, id, Patch{
			Email:    body.Email,
			FullName: body.FullName,
			Role:     body.Role,
			IsActive: body.IsActive,
			Password: body.Password,
		})
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": "User updated successfully",
			"user":    toResponse(u),
		})
	}
}

// DELETE /api/users/:id
// ?permanent=true removes the row instead of deactivating it.
func DeleteHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := auth.CurrentUser(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Authentication required")
		}
		id, err := httpx.ParamID(c)
		if err != nil {
			return err
		}
		permanent := c.QueryBool("permanent")

		if before, err := svc.Get(c.UserContext(), id); err == nil {
			activity.SetOldValues(c, toResponse(before))
		}

		u, err := svc.Delete(c.UserContext(), caller.ID, id, permanent)
		if err != nil {
			return err
		}

		msg := "User deactivated successfully"
		if permanent {
			msg = "User deleted successfully"
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": msg,
			"user":    toResponse(u),
		})
	}
}
