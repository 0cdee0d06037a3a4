package notify

import (
	"github.com/gofiber/fiber/v2"
)

type CheckLowStockRequest struct {
	ChemicalID *uint `json:"chemicalId"`
}

// POST /api/notifications/check-low-stock
// Body is optional; {"chemicalId": n} narrows the check to one chemical.
func CheckLowStockHandler(m *Monitor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CheckLowStockRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
			}
		}

		res, err := m.CheckAndNotify(c.UserContext(), body.ChemicalID)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"success":   true,
			"message":   "Low stock check completed",
			"checked":   res.Checked,
			"lowStock":  len(res.LowStock),
			"attempted": res.Attempted,
			"delivered": res.Delivered,
		})
	}
}
