package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chemtrack-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageNormalize(t *testing.T) {
	assert.Equal(t, Page{Limit: DefaultLimit}, Page{}.Normalize())
	assert.Equal(t, Page{Limit: MaxLimit, Offset: 5}, Page{Limit: 5000, Offset: 5}.Normalize())
	assert.Equal(t, Page{Limit: 10}, Page{Limit: 10, Offset: -3}.Normalize())
}

func TestPageFromQuery(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		p, err := PageFromQuery(c)
		if err != nil {
			return c.Status(apperr.Status(err)).SendString(err.Error())
		}
		return c.JSON(p)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/?limit=20&offset=40", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/?limit=abc", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestParseDay(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)

	start, err := ParseDay("2024-03-01", loc, false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 21, 0, 0, 0, time.UTC), start)

	end, err := ParseDay("2024-03-01", loc, true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 20, 59, 59, 999999999, time.UTC), end)

	ts, err := ParseDay("2024-03-01T10:00:00Z", loc, true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), ts)

	_, err = ParseDay("01/03/2024", loc, false)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}
