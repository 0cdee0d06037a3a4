package auth

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chemtrack-backend/internal/apperr"
	"chemtrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(svc *Service) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.FiberErrorHandler(nil)})
	api := app.Group("/api/auth")
	api.Post("/login", LoginHandler(svc))
	api.Post("/register-super-admin", RegisterSuperAdminHandler(svc))
	api.Get("/verify", VerifyHandler(svc))
	api.Post("/logout", LogoutHandler())

	protected := api.Group("", JWTMiddleware(svc.Secret()))
	protected.Get("/me", MeHandler(svc))
	protected.Post("/change-password", ChangePasswordHandler(svc))

	gated := app.Group("/api/gated", JWTMiddleware(svc.Secret()), Require(models.CapManageUsers))
	gated.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	live := app.Group("/api/live", JWTMiddleware(svc.Secret()), LoadActiveUser(svc), Require(models.CapManageUsers))
	live.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestLoginAndMeFlow(t *testing.T) {
	svc, db := newTestService(t)
	seedUser(t, db, "alice", "secret1", models.RoleAdmin)
	app := newTestApp(svc)

	code, body := doJSON(t, app, http.MethodPost, "/api/auth/login", "", `{"username":"alice","password":"secret1"}`)
	require.Equal(t, http.StatusOK, code)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	code, body = doJSON(t, app, http.MethodGet, "/api/auth/me", token, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "ADMIN", body["role"])
	assert.Len(t, body["capabilities"], 3)

	code, body = doJSON(t, app, http.MethodGet, "/api/auth/verify", token, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["valid"])
}

func TestLoginWrongPasswordIs401(t *testing.T) {
	svc, db := newTestService(t)
	seedUser(t, db, "alice", "secret1", models.RoleAdmin)
	app := newTestApp(svc)

	code, body := doJSON(t, app, http.MethodPost, "/api/auth/login", "", `{"username":"alice","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.NotEmpty(t, body["error"])
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	svc, _ := newTestService(t)
	app := newTestApp(svc)

	code, _ := doJSON(t, app, http.MethodGet, "/api/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = doJSON(t, app, http.MethodGet, "/api/auth/me", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := doJSON(t, app, http.MethodGet, "/api/auth/verify", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, false, body["valid"])
}

func TestRequireCapability(t *testing.T) {
	svc, _ := newTestService(t)
	app := newTestApp(svc)

	adminTok, err := GenerateToken(testSecret, time.Hour, &models.AdminUser{ID: 1, Username: "a", Role: models.RoleAdmin})
	require.NoError(t, err)
	superTok, err := GenerateToken(testSecret, time.Hour, &models.AdminUser{ID: 2, Username: "s", Role: models.RoleSuperAdmin})
	require.NoError(t, err)

	code, body := doJSON(t, app, http.MethodGet, "/api/gated/", adminTok, "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Insufficient permissions", body["error"])

	code, _ = doJSON(t, app, http.MethodGet, "/api/gated/", superTok, "")
	assert.Equal(t, http.StatusOK, code)
}

func TestLoadActiveUserRechecksAccount(t *testing.T) {
	svc, db := newTestService(t)
	app := newTestApp(svc)
	u := seedUser(t, db, "sam", "secret1", models.RoleSuperAdmin)
	tok, err := GenerateToken(testSecret, time.Hour, u)
	require.NoError(t, err)

	code, _ := doJSON(t, app, http.MethodGet, "/api/live/", tok, "")
	require.Equal(t, http.StatusOK, code)

	// demotion applies to a token issued before it
	require.NoError(t, db.Model(u).Update("role", models.RoleAdmin).Error)
	code, _ = doJSON(t, app, http.MethodGet, "/api/live/", tok, "")
	assert.Equal(t, http.StatusForbidden, code)

	require.NoError(t, db.Model(u).Update("is_active", false).Error)
	code, body := doJSON(t, app, http.MethodGet, "/api/live/", tok, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Account is inactive or no longer exists", body["error"])

	ghost, err := GenerateToken(testSecret, time.Hour, &models.AdminUser{ID: 999, Username: "ghost", Role: models.RoleSuperAdmin})
	require.NoError(t, err)
	code, _ = doJSON(t, app, http.MethodGet, "/api/live/", ghost, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRegisterSuperAdminHandler(t *testing.T) {
	svc, _ := newTestService(t)
	app := newTestApp(svc)

	code, body := doJSON(t, app, http.MethodPost, "/api/auth/register-super-admin", "", `{"username":"root","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "SUPER_ADMIN", body["role"])

	code, _ = doJSON(t, app, http.MethodPost, "/api/auth/register-super-admin", "", `{"username":"root2","password":"secret1"}`)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestChangePasswordHandler(t *testing.T) {
	svc, db := newTestService(t)
	u := seedUser(t, db, "alice", "secret1", models.RoleAdmin)
	app := newTestApp(svc)

	token, err := GenerateToken(testSecret, time.Hour, u)
	require.NoError(t, err)

	code, _ := doJSON(t, app, http.MethodPost, "/api/auth/change-password", token, `{"currentPassword":"secret1","newPassword":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := doJSON(t, app, http.MethodPost, "/api/auth/change-password", token, `{"currentPassword":"secret1","newPassword":"secret2"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
}
