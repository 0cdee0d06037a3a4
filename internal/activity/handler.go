package activity

import (
	"fmt"
	"time"

	"chemtrack-backend/internal/apperr"
	"chemtrack-backend/internal/httpx"
	"chemtrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GET /api/activity
// Query: userId, action, tableName, startDate, endDate, limit, offset
func ListHandler(svc *Service, loc *time.Location) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var f Filter
		var err error

		if f.UserID, err = httpx.OptionalUint(c, "userId"); err != nil {
			return err
		}
		if a := c.Query("action"); a != "" {
			action := models.ActivityAction(a)
			f.Action = &action
		}
		f.TableName = c.Query("tableName")
		if f.Start, err = httpx.OptionalDay(c, "startDate", loc, false); err != nil {
			return err
		}
		if f.End, err = httpx.OptionalDay(c, "endDate", loc, true); err != nil {
			return err
		}
		if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
			return fmt.Errorf("%w: endDate is before startDate", apperr.ErrInvalidInput)
		}

		page, err := httpx.PageFromQuery(c)
		if err != nil {
			return err
		}

		res, err := svc.List(c.UserContext(), f, page)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"logs": res.Logs,
			"pagination": fiber.Map{
				"offset": res.Page.Offset,
				"limit":  res.Page.Limit,
				"total":  res.Total,
			},
		})
	}
}

// GET /api/activity/stats
func StatsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := svc.Stats(c.UserContext(), time.Now())
		if err != nil {
			return err
		}
		return c.JSON(stats)
	}
}
