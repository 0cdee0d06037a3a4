// Package httpx holds the query string helpers shared by the HTTP handlers.
package httpx

import (
	"fmt"
	"strings"
	"time"

	"chemtrack-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000

	DateLayout = "2006-01-02"
)

// Page is a limit/offset window over a newest-first listing.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Normalize applies the default limit and caps it.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// PageFromQuery reads ?limit= and ?offset=.
func PageFromQuery(c *fiber.Ctx) (Page, error) {
	var p Page
	if s := c.Query("limit"); s != "" {
		if _, err := fmt.Sscan(s, &p.Limit); err != nil || p.Limit < 0 {
			return Page{}, fmt.Errorf("%w: limit must be a non-negative integer", apperr.ErrInvalidInput)
		}
	}
	if s := c.Query("offset"); s != "" {
		if _, err := fmt.Sscan(s, &p.Offset); err != nil || p.Offset < 0 {
			return Page{}, fmt.Errorf("%w: offset must be a non-negative integer", apperr.ErrInvalidInput)
		}
	}
	return p.Normalize(), nil
}

// OptionalUint reads a positive integer query parameter. Empty means nil.
func OptionalUint(c *fiber.Ctx, key string) (*uint, error) {
	s := c.Query(key)
	if s == "" {
		return nil, nil
	}
	var v uint
	if _, err := fmt.Sscan(s, &v); err != nil || v == 0 {
		return nil, fmt.Errorf("%w: %s must be a positive integer", apperr.ErrInvalidInput, key)
	}
	return &v, nil
}

// ParamID reads the :id route parameter.
func ParamID(c *fiber.Ctx) (uint, error) {
	var id uint
	if _, err := fmt.Sscan(c.Params("id"), &id); err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid id", apperr.ErrInvalidInput)
	}
	return id, nil
}

// ParseDay parses a YYYY-MM-DD date or an RFC3339 timestamp.
// A bare date becomes the first instant of that day in loc, or the last
// instant when endOfDay is set. The result is in UTC.
func ParseDay(s string, loc *time.Location, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", apperr.ErrInvalidInput, s)
	}
	if endOfDay {
		d = d.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return d.UTC(), nil
}

// OptionalDay is ParseDay for an optional query parameter.
func OptionalDay(c *fiber.Ctx, key string, loc *time.Location, endOfDay bool) (*time.Time, error) {
	s := c.Query(key)
	if s == "" {
		return nil, nil
	}
	t, err := ParseDay(s, loc, endOfDay)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
