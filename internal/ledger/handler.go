package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"chemtrack-backend/internal/activity"
	"chemtrack-backend/internal/apperr"
	"chemtrack-backend/internal/auth"
	"chemtrack-backend/internal/httpx"
	"chemtrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CreateChemicalRequest struct {
	Name              string          `json:"name"`
	CurrentStock      json.RawMessage `json:"currentStock"`
	Unit              string          `json:"unit"`
	LowStockThreshold json.RawMessage `json:"lowStockThreshold"`
}

type ApplyStockRequest struct {
	ChemicalID uint            `json:"chemicalId"`
	ActionType string          `json:"actionType"`
	Amount     json.RawMessage `json:"amount"`
}

// GET /api/chemicals
// ?low=true narrows the list to chemicals at or below their threshold.
func ListChemicalsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var (
			chems []models.Chemical
			err   error
		)
		if c.QueryBool("low") {
			chems, err = svc.ListLowStock(c.UserContext())
		} else {
			chems, err = svc.ListChemicals(c.UserContext())
		}
		if err != nil {
			return err
		}
		return c.JSON(chems)
	}
}

// GET /api/chemicals/:id
func GetChemicalHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c)
		if err != nil {
			return err
		}
		chem, err := svc.GetChemical(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(chem)
	}
}

// POST /api/chemicals
func CreateChemicalHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateChemicalRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		stock, err := parseQuantity(body.CurrentStock, "currentStock", true)
		if err != nil {
			return err
		}
		threshold, err := parseQuantity(body.LowStockThreshold, "lowStockThreshold", true)
		if err != nil {
			return err
		}

		chem, err := svc.CreateChemical(c.UserContext(), CreateChemicalInput{
			Name:              body.Name,
			InitialStock:      stock,
			Unit:              models.Unit(strings.ToLower(strings.TrimSpace(body.Unit))),
			LowStockThreshold: threshold,
			ActorID:           auth.ActorID(c),
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(chem)
	}
}

// DELETE /api/chemicals/:id
func DeleteChemicalHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c)
		if err != nil {
			return err
		}

		chem, err := svc.DeleteChemical(c.UserContext(), id, auth.ActorID(c))
		if err != nil {
			return err
		}
		activity.SetOldValues(c, chem)

		return c.JSON(fiber.Map{
			"success": true,
			"message": fmt.Sprintf("Chemical %q deleted", chem.Name),
		})
	}
}

// POST /api/stock/apply
func ApplyStockHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ApplyStockRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if body.ChemicalID == 0 {
			return fmt.Errorf("%w: chemicalId is required", apperr.ErrInvalidInput)
		}

		amount, err := parseQuantity(body.Amount, "amount", false)
		if err != nil {
			return err
		}

		res, err := svc.ApplyTransaction(c.UserContext(), ApplyInput{
			ChemicalID: body.ChemicalID,
			Action:     models.StockAction(strings.ToLower(strings.TrimSpace(body.ActionType))),
			Amount:     amount,
			ActorID:    auth.ActorID(c),
		})
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}

// parseQuantity accepts a JSON number or a numeric string. Anything else is
// an invalid amount. A missing optional field reads as zero.
func parseQuantity(raw json.RawMessage, field string, optional bool) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		if optional {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %s is required", apperr.ErrInvalidAmount, field)
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %s must be a number", apperr.ErrInvalidAmount, field)
}
