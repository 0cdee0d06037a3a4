package auth

import (
	"context"
	"testing"
	"time"

	"chemtrack-backend/internal/apperr"
	"chemtrack-backend/internal/database"
	"chemtrack-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-with-enough-length-123"

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := database.OpenMemory(t.Name())
	require.NoError(t, err)
	return NewService(db, testSecret, time.Hour, nil), db
}

func seedUser(t *testing.T, db *gorm.DB, username, password string, role models.Role) *models.AdminUser {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	u := &models.AdminUser{Username: username, PasswordHash: hash, Role: role, IsActive: true}
	require.NoError(t, db.Create(u).Error)
	return u
}

func TestLogin(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seeded := seedUser(t, db, "alice", "secret1", models.RoleAdmin)

	res, err := svc.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, seeded.ID, res.User.ID)
	require.NotNil(t, res.User.LastLogin)

	claims, err := ParseToken(testSecret, res.Token)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	var stored models.AdminUser
	require.NoError(t, db.First(&stored, seeded.ID).Error)
	assert.NotNil(t, stored.LastLogin)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	u := seedUser(t, db, "bob", "secret1", models.RoleAdmin)

	_, err := svc.Login(ctx, "bob", "wrong")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Login(ctx, "nobody", "secret1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	require.NoError(t, db.Model(u).Update("is_active", false).Error)
	_, err = svc.Login(ctx, "bob", "secret1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestChangePassword(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	u := seedUser(t, db, "carol", "secret1", models.RoleAdmin)

	assert.ErrorIs(t, svc.ChangePassword(ctx, u.ID, "secret1", "short"), apperr.ErrInvalidInput)
	assert.ErrorIs(t, svc.ChangePassword(ctx, u.ID, "wrong", "longenough"), apperr.ErrInvalidInput)
	assert.ErrorIs(t, svc.ChangePassword(ctx, 999, "secret1", "longenough"), apperr.ErrNotFound)

	require.NoError(t, svc.ChangePassword(ctx, u.ID, "secret1", "longenough"))

	_, err := svc.Login(ctx, "carol", "secret1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.Login(ctx, "carol", "longenough")
	assert.NoError(t, err)
}

func TestRegisterSuperAdminOnlyOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.RegisterSuperAdmin(ctx, " root ", "secret1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "root", u.Username)
	assert.Equal(t, models.RoleSuperAdmin, u.Role)
	assert.True(t, u.IsActive)

	_, err = svc.RegisterSuperAdmin(ctx, "root2", "secret1", nil, nil)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestRegisterSuperAdminValidates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RegisterSuperAdmin(ctx, "", "secret1", nil, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = svc.RegisterSuperAdmin(ctx, "root", "abc", nil, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestParseTokenRejectsTamperedAndExpired(t *testing.T) {
	u := &models.AdminUser{ID: 7, Username: "dave", Role: models.RoleSuperAdmin}

	token, err := GenerateToken(testSecret, time.Hour, u)
	require.NoError(t, err)

	_, err = ParseToken("another-secret-entirely-0123456789", token)
	assert.Error(t, err)

	expired, err := GenerateToken(testSecret, -time.Minute, u)
	require.NoError(t, err)
	_, err = ParseToken(testSecret, expired)
	assert.Error(t, err)

	bogus, err := GenerateToken(testSecret, time.Hour, &models.AdminUser{ID: 8, Username: "eve", Role: "ROOT"})
	require.NoError(t, err)
	_, err = ParseToken(testSecret, bogus)
	assert.Error(t, err)
}
