package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// FiberErrorHandler renders handler errors as {"error": "..."}.
// fiber.Error keeps its own code; taxonomy errors go through Status.
// Anything unexpected is logged and masked as a 500.
func FiberErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}

		code := Status(err)
		if IsUserFacing(err) {
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		}

		log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))

		msg := "Internal server error"
		if code == fiber.StatusBadGateway {
			msg = "Upstream service unavailable"
		}
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
}
