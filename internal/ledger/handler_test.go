package ledger

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chemtrack-backend/internal/activity"
	"chemtrack-backend/internal/apperr"
	"chemtrack-backend/internal/auth"
	"chemtrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-with-enough-length-123"

func newLedgerApp(t *testing.T) (*fiber.App, *Service, string) {
	t.Helper()
	svc, db, _ := newTestService(t)
	rec := activity.NewRecorder(db, nil)

	app := fiber.New(fiber.Config{ErrorHandler: apperr.FiberErrorHandler(nil)})
	api := app.Group("/api", auth.JWTMiddleware(testSecret), auth.Require(models.CapManageStock))
	api.Get("/chemicals", ListChemicalsHandler(svc))
	api.Get("/chemicals/:id", GetChemicalHandler(svc))
	api.Post("/chemicals", activity.Track(rec, models.ActivityCreate, "chemicals"), CreateChemicalHandler(svc))
	api.Delete("/chemicals/:id", activity.Track(rec, models.ActivityDelete, "chemicals"), DeleteChemicalHandler(svc))
	api.Post("/stock/apply", activity.Track(rec, models.ActivityStockUpdate, "chemicals"), ApplyStockHandler(svc))

	tok, err := auth.GenerateToken(testSecret, time.Hour, &models.AdminUser{ID: 1, Username: "alice", Role: models.RoleAdmin})
	require.NoError(t, err)
	return app, svc, tok
}

func call(t *testing.T, app *fiber.App, method, path, token, body string) (int, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func TestChemicalLifecycleOverHTTP(t *testing.T) {
	app, _, tok := newLedgerApp(t)

	code, raw := call(t, app, http.MethodPost, "/api/chemicals", tok,
		`{"name":"Soda Ash","currentStock":"100","unit":"kilos","lowStockThreshold":20}`)
	require.Equal(t, http.StatusCreated, code, string(raw))
	var chem models.Chemical
	require.NoError(t, json.Unmarshal(raw, &chem))
	assert.Equal(t, 100.0, chem.CurrentStock)

	code, raw = call(t, app, http.MethodPost, "/api/chemicals", tok,
		`{"name":"Soda Ash","currentStock":1,"unit":"kilos","lowStockThreshold":1}`)
	assert.Equal(t, http.StatusConflict, code, string(raw))

	code, raw = call(t, app, http.MethodPost, "/api/stock/apply", tok,
		`{"chemicalId":`+jsonID(chem.ID)+`,"actionType":"remove","amount":90}`)
	require.Equal(t, http.StatusOK, code, string(raw))
	var res map[string]any
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.Equal(t, 100.0, res["previousStock"])
	assert.Equal(t, 10.0, res["newStock"])
	assert.Equal(t, true, res["lowStock"])

	code, raw = call(t, app, http.MethodGet, "/api/chemicals?low=true", tok, "")
	require.Equal(t, http.StatusOK, code)
	var low []models.Chemical
	require.NoError(t, json.Unmarshal(raw, &low))
	assert.Len(t, low, 1)

	code, _ = call(t, app, http.MethodDelete, "/api/chemicals/"+jsonID(chem.ID), tok, "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = call(t, app, http.MethodGet, "/api/chemicals/"+jsonID(chem.ID), tok, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestApplyRejectsBadAmounts(t *testing.T) {
	app, svc, tok := newLedgerApp(t)
	chem := createChem(t, svc, "Chlorine", 10, 1, models.UnitBags)
	id := jsonID(chem.ID)

	for _, amount := range []string{`"abc"`, `0`, `-4`, `null`, `{}`} {
		code, raw := call(t, app, http.MethodPost, "/api/stock/apply", tok,
			`{"chemicalId":`+id+`,"actionType":"add","amount":`+amount+`}`)
		assert.Equal(t, http.StatusBadRequest, code, "amount %s: %s", amount, raw)
	}

	code, _ := call(t, app, http.MethodPost, "/api/stock/apply", tok, `{"chemicalId":999,"actionType":"add","amount":1}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, app, http.MethodPost, "/api/stock/apply", tok, `{"chemicalId":`+id+`,"actionType":"steal","amount":1}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLedgerRoutesRequireAuth(t *testing.T) {
	app, _, _ := newLedgerApp(t)
	code, _ := call(t, app, http.MethodGet, "/api/chemicals", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func jsonID(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
