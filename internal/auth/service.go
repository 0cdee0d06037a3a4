package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chemtrack-backend/internal/apperr"
	"chemtrack-backend/internal/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const MinPasswordLength = 6

type Service struct {
	db     *gorm.DB
	secret string
	ttl    time.Duration
	logger *zap.Logger
}

func NewService(db *gorm.DB, secret string, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, secret: secret, ttl: ttl, logger: logger}
}

func (s *Service) Secret() string { return s.secret }

// HashPassword hashes with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type LoginResult struct {
	Token string
	User  models.AdminUser
}

// Login checks credentials of an active user, stamps last_login and issues a token.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", apperr.ErrInvalidInput)
	}

	var user models.AdminUser
	err := s.db.WithContext(ctx).
		Where("username = ? AND is_active = ?", username, true).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: invalid username or password", apperr.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: load user: %v", apperr.ErrStorage, err)
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, fmt.Errorf("%w: invalid username or password", apperr.ErrUnauthorized)
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		// Not fatal for the login itself.
		s.logger.Warn("could not update last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	user.LastLogin = &now

	token, err := GenerateToken(s.secret, s.ttl, &user)
	if err != nil {
		return nil, fmt.Errorf("could not sign token: %w", err)
	}
	return &LoginResult{Token: token, User: user}, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	if current == "" || next == "" {
		return fmt.Errorf("%w: current and new password are required", apperr.ErrInvalidInput)
	}
	if len(next) < MinPasswordLength {
		return fmt.Errorf("%w: new password must be at least %d characters", apperr.ErrInvalidInput, MinPasswordLength)
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !CheckPassword(user.PasswordHash, current) {
		return fmt.Errorf("%w: current password is incorrect", apperr.ErrInvalidInput)
	}

	hash, err := HashPassword(next)
	if err != nil {
		return fmt.Errorf("could not hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password_hash", hash).Error; err != nil {
		return fmt.Errorf("%w: update password: %v", apperr.ErrStorage, err)
	}
	return nil
}

// RegisterSuperAdmin bootstraps the first super admin. It refuses once one exists.
func (s *Service) RegisterSuperAdmin(ctx context.Context, username, password string, email, fullName *string) (*models.AdminUser, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", apperr.ErrInvalidInput)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", apperr.ErrInvalidInput, MinPasswordLength)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.AdminUser{}).
		Where("role = ?", models.RoleSuperAdmin).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: a super admin already exists", apperr.ErrForbidden)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("could not hash password: %w", err)
	}
	user := models.AdminUser{
		Username:     username,
		PasswordHash: hash,
		Email:        email,
		FullName:     fullName,
		Role:         models.RoleSuperAdmin,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: username %q already exists", apperr.ErrDuplicateName, username)
		}
		return nil, fmt.Errorf("%w: create user: %v", apperr.ErrStorage, err)
	}

	s.logger.Info("super admin registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return &user, nil
}

func (s *Service) GetUser(ctx context.Context, id uint) (*models.AdminUser, error) {
	var user models.AdminUser
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: load user: %v", apperr.ErrStorage, err)
	}
	return &user, nil
}
