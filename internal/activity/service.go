package activity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"chemtrack-backend/internal/apperr"
	"chemtrack-backend/internal/httpx"
	"chemtrack-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	statsWindow  = 30 * 24 * time.Hour
	topUserLimit = 10
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

type Filter struct {
	UserID    *uint
	Action    *models.ActivityAction
	TableName string
	Start     *time.Time
	End       *time.Time
}

// UserRef is the acting user, nil fields once the user has been hard deleted.
type UserRef struct {
	Username *string      `json:"username"`
	FullName *string      `json:"full_name"`
	Role     *models.Role `json:"role"`
}

type LogView struct {
	models.ActivityLog
	User UserRef `json:"admin_user"`
}

type ListResult struct {
	Logs  []LogView  `json:"logs"`
	Page  httpx.Page `json:"-"`
	Total int64      `json:"-"`
}

// List returns activity newest first with the acting user attached.
func (s *Service) List(ctx context.Context, f Filter, page httpx.Page) (*ListResult, error) {
	page = page.Normalize()

	q := s.db.WithContext(ctx).Model(&models.ActivityLog{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Action != nil {
		q = q.Where("action = ?", *f.Action)
	}
	if f.TableName != "" {
		q = q.Where("table_name = ?", f.TableName)
	}
	if f.Start != nil {
		q = q.Where("created_at >= ?", f.Start.UTC())
	}
	if f.End != nil {
		q = q.Where("created_at <= ?", f.End.UTC())
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("%w: count activity: %v", apperr.ErrStorage, err)
	}

	rows := make([]models.ActivityLog, 0)
	if err := q.Order("created_at desc, id desc").Limit(page.Limit).Offset(page.Offset).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list activity: %v", apperr.ErrStorage, err)
	}

	users, err := s.usersByID(ctx, rows)
	if err != nil {
		return nil, err
	}

	views := make([]LogView, 0, len(rows))
	for _, r := range rows {
		v := LogView{ActivityLog: r}
		if u, ok := users[r.UserID]; ok {
			username, role := u.Username, u.Role
			v.User = UserRef{Username: &username, FullName: u.FullName, Role: &role}
		}
		views = append(views, v)
	}
	return &ListResult{Logs: views, Page: page, Total: total}, nil
}

func (s *Service) usersByID(ctx context.Context, rows []models.ActivityLog) (map[uint]models.AdminUser, error) {
	out := make(map[uint]models.AdminUser)
	if len(rows) == 0 {
		return out, nil
	}
	seen := make(map[uint]struct{}, len(rows))
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.UserID]; !ok {
			seen[r.UserID] = struct{}{}
			ids = append(ids, r.UserID)
		}
	}

	var users []models.AdminUser
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("%w: load users: %v", apperr.ErrStorage, err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

type TopUser struct {
	UserID   uint    `json:"userId"`
	Username *string `json:"username"`
	FullName *string `json:"fullName"`
	Count    int64   `json:"count"`
}

type Stats struct {
	TotalLogs    int64                           `json:"totalLogs"`
	ActionCounts map[models.ActivityAction]int64 `json:"actionCounts"`
	TopUsers     []TopUser                       `json:"topUsers"`
}

// Stats counts every row by action and ranks the most active users of the
// last 30 days before now.
func (s *Service) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	db := s.db.WithContext(ctx)
	out := &Stats{ActionCounts: map[models.ActivityAction]int64{}, TopUsers: []TopUser{}}

	if err := db.Model(&models.ActivityLog{}).Count(&out.TotalLogs).Error; err != nil {
		return nil, fmt.Errorf("%w: count activity: %v", apperr.ErrStorage, err)
	}

	var byAction []struct {
		Action models.ActivityAction
		Count  int64
	}
	if err := db.Model(&models.ActivityLog{}).
		Select("action, COUNT(*) AS count").
		Group("action").
		Scan(&byAction).Error; err != nil {
		return nil, fmt.Errorf("%w: count by action: %v", apperr.ErrStorage, err)
	}
	for _, a := range byAction {
		out.ActionCounts[a.Action] = a.Count
	}

	var byUser []struct {
		UserID uint
		Count  int64
	}
	if err := db.Model(&models.ActivityLog{}).
		Select("user_id, COUNT(*) AS count").
		Where("created_at >= ?", now.Add(-statsWindow).UTC()).
		Group("user_id").
		Scan(&byUser).Error; err != nil {
		return nil, fmt.Errorf("%w: count by user: %v", apperr.ErrStorage, err)
	}
	sort.SliceStable(byUser, func(i, j int) bool {
		if byUser[i].Count != byUser[j].Count {
			return byUser[i].Count > byUser[j].Count
		}
		return byUser[i].UserID < byUser[j].UserID
	})
	if len(byUser) > topUserLimit {
		byUser = byUser[:topUserLimit]
	}
	if len(byUser) == 0 {
		return out, nil
	}

	ids := make([]uint, 0, len(byUser))
	for _, u := range byUser {
		ids = append(ids, u.UserID)
	}
	var users []models.AdminUser
	if err := db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("%w: load users: %v", apperr.ErrStorage, err)
	}
	names := make(map[uint]models.AdminUser, len(users))
	for _, u := range users {
		names[u.ID] = u
	}

	for _, u := range byUser {
		tu := TopUser{UserID: u.UserID, Count: u.Count}
		if au, ok := names[u.UserID]; ok {
			username := au.Username
			tu.Username = &username
			tu.FullName = au.FullName
		}
		out.TopUsers = append(out.TopUsers, tu)
	}
	return out, nil
}
