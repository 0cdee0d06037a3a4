// Package users manages admin accounts on behalf of a super admin.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chemtrack-backend/internal/apperr"
	"chemtrack-backend/internal/auth"
	"chemtrack-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger}
}

type CreateInput struct {
	Username string
	Password string
	Email    *string
	FullName *string
	Role     string
}

// Patch carries only the fields the caller sent. Nil means unchanged.
type Patch struct {
	Email    *string
	FullName *string
	Role     *string
	IsActive *bool
	Password *string
}

// List returns every account, newest first.
func (s *Service) List(ctx context.Context) ([]models.AdminUser, error) {
	var list []models.AdminUser
	if err := s.db.WithContext(ctx).Order("created_at desc").Order("id desc").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("%w: list users: %v", apperr.ErrStorage, err)
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.AdminUser, error) {
	var u models.AdminUser
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: load user: %v", apperr.ErrStorage, err)
	}
	return &u, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.AdminUser, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", apperr.ErrInvalidInput)
	}
	if len(in.Password) < auth.MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", apperr.ErrInvalidInput, auth.MinPasswordLength)
	}
	role, ok := models.ParseRole(in.Role)
	if !ok {
		return nil, fmt.Errorf("%w: invalid role, must be ADMIN or SUPER_ADMIN", apperr.ErrInvalidInput)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.AdminUser{}).
		Where("username = ?", username).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: username %q already exists", apperr.ErrDuplicateName, username)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("could not hash password: %w", err)
	}
	u := models.AdminUser{
		Username:     username,
		PasswordHash: hash,
		Email:        blankToNil(in.Email),
		FullName:     blankToNil(in.FullName),
		Role:         role,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: username %q already exists", apperr.ErrDuplicateName, username)
		}
		return nil, fmt.Errorf("%w: create user: %v", apperr.ErrStorage, err)
	}

	s.logger.Info("user created", zap.Uint("user_id", u.ID), zap.String("username", u.Username), zap.String("role", string(u.Role)))
	return &u, nil
}

// Update applies a partial change. A caller can never deactivate their own account.
func (s *Service) Update(ctx context.Context, callerID, id uint, p Patch) (*models.AdminUser, error) {
	updates := map[string]any{}
	if p.Email != nil {
		updates["email"] = blankToNil(p.Email)
	}
	if p.FullName != nil {
		updates["full_name"] = blankToNil(p.FullName)
	}
	if p.Role != nil {
		role, ok := models.ParseRole(*p.Role)
		if !ok {
			return nil, fmt.Errorf("%w: invalid role", apperr.ErrInvalidInput)
		}
		updates["role"] = role
	}
	if p.IsActive != nil {
		if !*p.IsActive && id == callerID {
			return nil, fmt.Errorf("%w: cannot deactivate your own account", apperr.ErrSelfLockout)
		}
		updates["is_active"] = *p.IsActive
	}
	if p.Password != nil && *p.Password != "" {
		if len(*p.Password) < auth.MinPasswordLength {
			return nil, fmt.Errorf("%w: password must be at least %d characters", apperr.ErrInvalidInput, auth.MinPasswordLength)
		}
		hash, err := auth.HashPassword(*p.Password)
		if err != nil {
			return nil, fmt.Errorf("could not hash password: %w", err)
		}
		updates["password_hash"] = hash
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", apperr.ErrInvalidInput)
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// Map form so false and NULL are written too.
	if err := s.db.WithContext(ctx).Model(u).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("%w: update user: %v", apperr.ErrStorage, err)
	}
	return s.Get(ctx, id)
}

// Delete deactivates the account, or removes the row when permanent is set.
// Stock logs keep their admin_user_id either way.
func (s *Service) Delete(ctx context.Context, callerID, id uint, permanent bool) (*models.AdminUser, error) {
	if id == callerID {
		return nil, fmt.Errorf("%w: cannot delete your own account", apperr.ErrSelfLockout)
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if permanent {
		if err := s.db.WithContext(ctx).Delete(&models.AdminUser{}, id).Error; err != nil {
			return nil, fmt.Errorf("%w: delete user: %v", apperr.ErrStorage, err)
		}
		s.logger.Info("user deleted", zap.Uint("user_id", id), zap.String("username", u.Username))
		return u, nil
	}

	if err := s.db.WithContext(ctx).Model(u).Update("is_active", false).Error; err != nil {
		return nil, fmt.Errorf("%w: deactivate user: %v", apperr.ErrStorage, err)
	}
	u.IsActive = false
	s.logger.Info("user deactivated", zap.Uint("user_id", id), zap.String("username", u.Username))
	return u, nil
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
