package activity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chemtrack-backend/internal/apperr"
	"chemtrack-backend/internal/auth"
	"chemtrack-backend/internal/database"
	"chemtrack-backend/internal/httpx"
	"chemtrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const testSecret = "test-secret-with-enough-length-123"

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenMemory(t.Name())
	require.NoError(t, err)
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string, role models.Role) *models.AdminUser {
	t.Helper()
	u := &models.AdminUser{Username: username, PasswordHash: "x", Role: role, IsActive: true}
	require.NoError(t, db.Create(u).Error)
	return u
}

func tokenFor(t *testing.T, u *models.AdminUser) string {
	t.Helper()
	tok, err := auth.GenerateToken(testSecret, time.Hour, u)
	require.NoError(t, err)
	return tok
}

func TestTrackRecordsSuccessfulMutation(t *testing.T) {
	db := openDB(t)
	u := seedUser(t, db, "alice", models.RoleAdmin)
	rec := NewRecorder(db, nil)

	app := fiber.New(fiber.Config{ErrorHandler: apperr.FiberErrorHandler(nil)})
	app.Use(auth.JWTMiddleware(testSecret))
	app.Post("/things", Track(rec, models.ActivityCreate, "things"), func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "id": 42, "name": "x", "password": "leak"})
	})
	app.Delete("/things/:id", Track(rec, models.ActivityDelete, "things"), func(c *fiber.Ctx) error {
		SetOldValues(c, fiber.Map{"name": "x"})
		return c.JSON(fiber.Map{"success": true})
	})
	app.Post("/fail", Track(rec, models.ActivityCreate, "things"), func(c *fiber.Ctx) error {
		return apperr.ErrInvalidInput
	})

	for _, r := range []struct{ method, path, body string }{
		{http.MethodPost, "/things", `{"name":"x"}`},
		{http.MethodDelete, "/things/7", ""},
		{http.MethodPost, "/fail", `{}`},
	} {
		req := httptest.NewRequest(r.method, r.path, strings.NewReader(r.body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, u))
		req.Header.Set("User-Agent", "test-agent")
		_, err := app.Test(req, -1)
		require.NoError(t, err)
	}

	var logs []models.ActivityLog
	require.NoError(t, db.Order("id asc").Find(&logs).Error)
	require.Len(t, logs, 2)

	assert.Equal(t, models.ActivityCreate, logs[0].Action)
	assert.Equal(t, "42", logs[0].RecordID)
	assert.Equal(t, "test-agent", logs[0].UserAgent)
	var nv map[string]any
	require.NoError(t, json.Unmarshal(logs[0].NewValues, &nv))
	assert.Equal(t, "x", nv["name"])
	assert.NotContains(t, nv, "success")
	assert.NotContains(t, nv, "password")
	assert.Equal(t, "null", string(logs[0].OldValues))

	assert.Equal(t, models.ActivityDelete, logs[1].Action)
	assert.Equal(t, "7", logs[1].RecordID)
	assert.JSONEq(t, `{"name":"x"}`, string(logs[1].OldValues))
	assert.Equal(t, "null", string(logs[1].NewValues))
}

func TestListFiltersAndPaginates(t *testing.T) {
	db := openDB(t)
	alice := seedUser(t, db, "alice", models.RoleAdmin)
	bob := seedUser(t, db, "bob", models.RoleSuperAdmin)
	rec := NewRecorder(db, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec.Record(ctx, Entry{UserID: alice.ID, Action: models.ActivityStockUpdate, TableName: "chemicals"})
	}
	rec.Record(ctx, Entry{UserID: bob.ID, Action: models.ActivityCreate, TableName: "admin_users"})

	svc := NewService(db, nil)

	res, err := svc.List(ctx, Filter{UserID: &alice.ID}, httpx.Page{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	require.Len(t, res.Logs, 2)
	require.NotNil(t, res.Logs[0].User.Username)
	assert.Equal(t, "alice", *res.Logs[0].User.Username)

	action := models.ActivityCreate
	res, err = svc.List(ctx, Filter{Action: &action}, httpx.Page{})
	require.NoError(t, err)
	require.Len(t, res.Logs, 1)
	assert.Equal(t, "admin_users", res.Logs[0].TableName)

	future := time.Now().Add(time.Hour)
	res, err = svc.List(ctx, Filter{Start: &future}, httpx.Page{})
	require.NoError(t, err)
	assert.Empty(t, res.Logs)
	assert.NotNil(t, res.Logs)
}

func TestStats(t *testing.T) {
	db := openDB(t)
	alice := seedUser(t, db, "alice", models.RoleAdmin)
	bob := seedUser(t, db, "bob", models.RoleSuperAdmin)
	rec := NewRecorder(db, nil)
	ctx := context.Background()

	rec.Record(ctx, Entry{UserID: alice.ID, Action: models.ActivityStockUpdate})
	rec.Record(ctx, Entry{UserID: alice.ID, Action: models.ActivityStockUpdate})
	rec.Record(ctx, Entry{UserID: bob.ID, Action: models.ActivityDelete})
	// outside the 30 day window
	require.NoError(t, db.Create(&models.ActivityLog{
		UserID: bob.ID, Action: models.ActivityDelete, CreatedAt: time.Now().AddDate(0, 0, -45).UTC(),
		OldValues: datatypes.JSON("null"), NewValues: datatypes.JSON("null"),
	}).Error)

	stats, err := NewService(db, nil).Stats(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalLogs)
	assert.Equal(t, int64(2), stats.ActionCounts[models.ActivityStockUpdate])
	assert.Equal(t, int64(2), stats.ActionCounts[models.ActivityDelete])

	require.Len(t, stats.TopUsers, 2)
	assert.Equal(t, alice.ID, stats.TopUsers[0].UserID)
	assert.Equal(t, int64(2), stats.TopUsers[0].Count)
	assert.Equal(t, int64(1), stats.TopUsers[1].Count)
}
