package reporting

import (
	"bytes"
	"fmt"
	"time"

	"chemtrack-backend/internal/apperr"
	"chemtrack-backend/internal/auth"
	"chemtrack-backend/internal/httpx"
	"chemtrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GET /api/reports/monthly?month=YYYY-MM
func MonthlySummaryHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		summary, _, err := monthlySummary(c, svc)
		if err != nil {
			return err
		}
		return c.JSON(summary)
	}
}

// GET /api/reports/monthly/export?month=YYYY-MM&format=csv|xlsx
func MonthlyExportHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		format, err := formatFromQuery(c)
		if err != nil {
			return err
		}
		summary, month, err := monthlySummary(c, svc)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := WriteSummary(&buf, format, summary); err != nil {
			return fmt.Errorf("could not render export: %w", err)
		}
		return sendAttachment(c, format, fmt.Sprintf("chemical-report-%s.%s", month, format), buf.Bytes())
	}
}

// GET /api/reports/mine?start=YYYY-MM-DD&end=YYYY-MM-DD
func MyTransactionsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		txs, _, _, err := myTransactions(c, svc)
		if err != nil {
			return err
		}
		return c.JSON(txs)
	}
}

// GET /api/reports/mine/export
func MyTransactionsExportHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		format, err := formatFromQuery(c)
		if err != nil {
			return err
		}
		txs, start, end, err := myTransactions(c, svc)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := WriteTransactions(&buf, format, txs, svc.Location()); err != nil {
			return fmt.Errorf("could not render export: %w", err)
		}
		name := fmt.Sprintf("my-transactions-%s-to-%s.%s",
			start.Format(httpx.DateLayout), end.Format(httpx.DateLayout), format)
		return sendAttachment(c, format, name, buf.Bytes())
	}
}

// GET /api/stock/transactions
// Query: start|startDate, end|endDate, adminUserId, chemicalId, actionType, limit, offset
func AllTransactionsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		loc := svc.Location()
		var f TransactionFilter
		var err error

		if f.Start, err = httpx.OptionalDay(c, firstSet(c, "start", "startDate"), loc, false); err != nil {
			return err
		}
		if f.End, err = httpx.OptionalDay(c, firstSet(c, "end", "endDate"), loc, true); err != nil {
			return err
		}
		if f.AdminUserID, err = httpx.OptionalUint(c, "adminUserId"); err != nil {
			return err
		}
		if f.ChemicalID, err = httpx.OptionalUint(c, "chemicalId"); err != nil {
			return err
		}
		if s := c.Query("actionType"); s != "" {
			action, ok := models.ParseStockAction(s)
			if !ok {
				return fmt.Errorf("%w: actionType must be add, remove or delete", apperr.ErrInvalidInput)
			}
			f.Action = &action
		}

		page, err := httpx.PageFromQuery(c)
		if err != nil {
			return err
		}

		res, err := svc.ListAllTransactions(c.UserContext(), f, page)
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}

// GET /api/stock/stats
func StatsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := svc.Stats(c.UserContext(), time.Now())
		if err != nil {
			return err
		}
		return c.JSON(stats)
	}
}

func monthlySummary(c *fiber.Ctx, svc *Service) (*MonthlySummary, string, error) {
	month := c.Query("month")
	if month == "" {
		month = time.Now().In(svc.Location()).Format("2006-01")
	}
	start, end, err := MonthBounds(month, svc.Location())
	if err != nil {
		return nil, "", err
	}
	summary, err := svc.SummarizeMonth(c.UserContext(), start, end)
	if err != nil {
		return nil, "", err
	}
	return summary, month, nil
}

// myTransactions defaults to the current month up to today.
func myTransactions(c *fiber.Ctx, svc *Service) ([]Transaction, time.Time, time.Time, error) {
	p, ok := auth.CurrentUser(c)
	if !ok {
		return nil, time.Time{}, time.Time{}, fiber.NewError(fiber.StatusUnauthorized, "Authentication required")
	}

	loc := svc.Location()
	now := time.Now().In(loc)
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	end := now

	var err error
	if s := firstSet(c, "start", "startDate"); c.Query(s) != "" {
		if start, err = time.ParseInLocation(httpx.DateLayout, c.Query(s), loc); err != nil {
			return nil, time.Time{}, time.Time{}, fmt.Errorf("%w: start must be YYYY-MM-DD", apperr.ErrInvalidInput)
		}
	}
	if s := firstSet(c, "end", "endDate"); c.Query(s) != "" {
		if end, err = time.ParseInLocation(httpx.DateLayout, c.Query(s), loc); err != nil {
			return nil, time.Time{}, time.Time{}, fmt.Errorf("%w: end must be YYYY-MM-DD", apperr.ErrInvalidInput)
		}
	}

	txs, err := svc.ListMyTransactions(c.UserContext(), start, end, p.ID)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	return txs, start, end, nil
}

// firstSet returns the first key present in the query string, or the first key.
func firstSet(c *fiber.Ctx, keys ...string) string {
	for _, k := range keys {
		if c.Query(k) != "" {
			return k
		}
	}
	return keys[0]
}

func formatFromQuery(c *fiber.Ctx) (Format, error) {
	f, ok := ParseFormat(c.Query("format"))
	if !ok {
		return "", fmt.Errorf("%w: format must be csv or xlsx", apperr.ErrInvalidInput)
	}
	return f, nil
}

func sendAttachment(c *fiber.Ctx, f Format, filename string, body []byte) error {
	c.Attachment(filename)
	// Attachment sets a content type from the extension; keep ours.
	c.Set(fiber.HeaderContentType, f.ContentType())
	return c.Send(body)
}
