package reporting

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chemtrack-backend/internal/apperr"
	"chemtrack-backend/internal/auth"
	"chemtrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-with-enough-length-123"

func newReportApp(f *fixture) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.FiberErrorHandler(nil)})
	api := app.Group("/api", auth.JWTMiddleware(testSecret))
	api.Get("/reports/monthly", auth.Require(models.CapViewMonthlySummary), MonthlySummaryHandler(f.svc))
	api.Get("/reports/monthly/export", auth.Require(models.CapViewMonthlySummary), MonthlyExportHandler(f.svc))
	api.Get("/reports/mine", auth.Require(models.CapViewOwnTransactions), MyTransactionsHandler(f.svc))
	api.Get("/reports/mine/export", auth.Require(models.CapViewOwnTransactions), MyTransactionsExportHandler(f.svc))
	api.Get("/stock/transactions", auth.Require(models.CapViewAllTransactions), AllTransactionsHandler(f.svc))
	api.Get("/stock/stats", auth.Require(models.CapViewAllTransactions), StatsHandler(f.svc))
	return app
}

func get(t *testing.T, app *fiber.App, path string, u *models.AdminUser) *http.Response {
	t.Helper()
	tok, err := auth.GenerateToken(testSecret, time.Hour, u)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestMonthlyReportIsSuperAdminOnly(t *testing.T) {
	f := newFixture(t)
	chem := f.chemical("Chlorine", models.UnitBags)
	f.log(chem.ID, "Chlorine", models.StockActionAdd, 10, march.Add(time.Hour), nil)
	app := newReportApp(f)

	admin := &models.AdminUser{ID: 1, Username: "a", Role: models.RoleAdmin}
	super := &models.AdminUser{ID: 2, Username: "s", Role: models.RoleSuperAdmin}

	resp := get(t, app, "/api/reports/monthly?month=2024-03", admin)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = get(t, app, "/api/reports/monthly?month=2024-03", super)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var s MonthlySummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	require.Len(t, s.Rows, 1)
	assert.Equal(t, 10.0, s.Rows[0].TotalAdded)

	resp = get(t, app, "/api/reports/monthly?month=bogus", super)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = get(t, app, "/api/stock/transactions?chemicalId=abc", super)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = get(t, app, "/api/stock/transactions", admin)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMonthlyExportCSV(t *testing.T) {
	f := newFixture(t)
	chem := f.chemical("Chlorine", models.UnitBags)
	f.log(chem.ID, "Chlorine", models.StockActionAdd, 10, march.Add(time.Hour), nil)
	app := newReportApp(f)

	resp := get(t, app, "/api/reports/monthly/export?month=2024-03", &models.AdminUser{ID: 2, Username: "s", Role: models.RoleSuperAdmin})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "chemical-report-2024-03.csv")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "Chemical,Unit,Added,Removed,Net Change,Transactions\n"))
	assert.Contains(t, string(body), "Chlorine,bags,10,0,10,1")
}

func TestMineReturnsOnlyCallerRows(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice", nil)
	bob := f.user("bob", nil)
	chem := f.chemical("Chlorine", models.UnitBags)
	f.log(chem.ID, "Chlorine", models.StockActionAdd, 1, march.Add(time.Hour), &alice.ID)
	f.log(chem.ID, "Chlorine", models.StockActionAdd, 1, march.Add(2*time.Hour), &bob.ID)
	app := newReportApp(f)

	resp := get(t, app, "/api/reports/mine?start=2024-03-01&end=2024-03-31", alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var txs []Transaction
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&txs))
	require.Len(t, txs, 1)
	assert.Equal(t, alice.ID, *txs[0].AdminUserID)

	resp = get(t, app, "/api/reports/mine?start=03/01/2024", alice)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = get(t, app, "/api/reports/mine/export?start=2024-03-01&end=2024-03-31&format=xlsx", alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "my-transactions-2024-03-01-to-2024-03-31.xlsx")
}
