package reporting

import (
	"context"
	"fmt"
	"time"

	"chemtrack-backend/internal/apperr"
	"chemtrack-backend/internal/httpx"
	"chemtrack-backend/internal/ledger"
	"chemtrack-backend/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const recentWindowDays = 30

type Service struct {
	db     *gorm.DB
	loc    *time.Location
	logger *zap.Logger
}

func NewService(db *gorm.DB, loc *time.Location, logger *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, loc: loc, logger: logger}
}

func (s *Service) Location() *time.Location { return s.loc }

// SummaryRow is one chemical's usage in the summarized interval.
type SummaryRow struct {
	ChemicalName     string  `json:"name"`
	Unit             string  `json:"unit"`
	TotalAdded       float64 `json:"added"`
	TotalRemoved     float64 `json:"removed"`
	NetChange        float64 `json:"netChange"`
	TransactionCount int     `json:"transactions"`
}

type MonthlySummary struct {
	Start             time.Time          `json:"start"`
	End               time.Time          `json:"end"`
	Rows              []SummaryRow       `json:"rows"`
	AddedByUnit       map[string]float64 `json:"addedByUnit"`
	RemovedByUnit     map[string]float64 `json:"removedByUnit"`
	TotalTransactions int                `json:"totalTransactions"`
}

// MonthBounds turns "YYYY-MM" into the first and last instant of that month in loc.
func MonthBounds(month string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	first, err := time.ParseInLocation("2006-01", month, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: month must be YYYY-MM, got %q", apperr.ErrInvalidInput, month)
	}
	return first, first.AddDate(0, 1, 0).Add(-time.Nanosecond), nil
}

// DayBounds spans startDay 00:00 through the last instant of endDay in loc.
func DayBounds(startDay, endDay time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	sy, sm, sd := startDay.In(loc).Date()
	ey, em, ed := endDay.In(loc).Date()
	start := time.Date(sy, sm, sd, 0, 0, 0, 0, loc)
	end := time.Date(ey, em, ed, 0, 0, 0, 0, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

type group struct {
	row     SummaryRow
	added   decimal.Decimal
	removed decimal.Decimal
}

// SummarizeMonth aggregates stock logs created in [start, end].
//
// Rows are keyed by the resolved chemical name and appear in the order they are
// first met while scanning newest first. Delete entries are lifecycle events and
// count toward nothing. Per-unit totals only include entries whose chemical
// still exists, since a deleted chemical's unit is unknown.
func (s *Service) SummarizeMonth(ctx context.Context, start, end time.Time) (*MonthlySummary, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end is before start", apperr.ErrInvalidInput)
	}

	var logs []models.StockLog
	if err := s.db.WithContext(ctx).
		Where("created_at >= ? AND created_at <= ?", start.UTC(), end.UTC()).
		Order("created_at desc, id desc").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("%w: load stock logs: %v", apperr.ErrStorage, err)
	}

	refs, err := ledger.ResolveRefs(ctx, s.db, logs)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*group)
	order := make([]string, 0)
	addedByUnit := make(map[string]decimal.Decimal)
	removedByUnit := make(map[string]decimal.Decimal)

	for i, l := range logs {
		ref := refs[i]
		name := ref.Name()
		g, ok := groups[name]
		if !ok {
			g = &group{row: SummaryRow{ChemicalName: name, Unit: ref.Unit()}}
			groups[name] = g
			order = append(order, name)
		}

		amount := decimal.NewFromFloat(l.Amount)
		switch l.ActionType {
		case models.StockActionAdd:
			g.added = g.added.Add(amount)
			if ref.Resolved() {
				addedByUnit[ref.Unit()] = addedByUnit[ref.Unit()].Add(amount)
			}
		case models.StockActionRemove:
			g.removed = g.removed.Add(amount)
			if ref.Resolved() {
				removedByUnit[ref.Unit()] = removedByUnit[ref.Unit()].Add(amount)
			}
		default:
			continue
		}
		g.row.TransactionCount++
	}

	out := &MonthlySummary{
		Start:         start,
		End:           end,
		Rows:          make([]SummaryRow, 0, len(order)),
		AddedByUnit:   toFloats(addedByUnit),
		RemovedByUnit: toFloats(removedByUnit),
	}
	for _, name := range order {
		g := groups[name]
		g.row.TotalAdded = g.added.InexactFloat64()
		g.row.TotalRemoved = g.removed.InexactFloat64()
		g.row.NetChange = g.added.Sub(g.removed).InexactFloat64()
		out.Rows = append(out.Rows, g.row)
		out.TotalTransactions += g.row.TransactionCount
	}
	return out, nil
}

func toFloats(m map[string]decimal.Decimal) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v.InexactFloat64()
	}
	return out
}

// Transaction is a stock log row with the chemical and acting user resolved.
type Transaction struct {
	ID              uint               `json:"id"`
	ChemicalID      uint               `json:"chemical_id"`
	ChemicalName    string             `json:"chemical_name"`
	Unit            string             `json:"unit"`
	ChemicalDeleted bool               `json:"chemical_deleted"`
	ActionType      models.StockAction `json:"action_type"`
	Amount          float64            `json:"amount"`
	PreviousStock   float64            `json:"previous_stock"`
	NewStock        float64            `json:"new_stock"`
	Notes           string             `json:"notes"`
	AdminUserID     *uint              `json:"admin_user_id"`
	AdminUsername   *string            `json:"admin_username"`
	AdminFullName   *string            `json:"admin_full_name"`
	CreatedAt       time.Time          `json:"created_at"`
}

// AdminName is the display name used in exports.
func (t Transaction) AdminName() string {
	if t.AdminFullName != nil && *t.AdminFullName != "" {
		return *t.AdminFullName
	}
	if t.AdminUsername != nil {
		return *t.AdminUsername
	}
	return "Unknown"
}

// ListMyTransactions returns the actor's entries from startDay 00:00 to the end
// of endDay in the service timezone, newest first.
func (s *Service) ListMyTransactions(ctx context.Context, startDay, endDay time.Time, actorID uint) ([]Transaction, error) {
	start, end := DayBounds(startDay, endDay, s.loc)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date is before start date", apperr.ErrInvalidInput)
	}

	var logs []models.StockLog
	if err := s.db.WithContext(ctx).
		Where("admin_user_id = ?", actorID).
		Where("created_at >= ? AND created_at <= ?", start.UTC(), end.UTC()).
		Order("created_at desc, id desc").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("%w: load stock logs: %v", apperr.ErrStorage, err)
	}
	return s.enrich(ctx, logs)
}

type TransactionFilter struct {
	Start       *time.Time
	End         *time.Time
	AdminUserID *uint
	ChemicalID  *uint
	Action      *models.StockAction
}

type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	Total        int64         `json:"total"`
	Limit        int           `json:"limit"`
	Offset       int           `json:"offset"`
}

// ListAllTransactions applies every set filter together, newest first.
func (s *Service) ListAllTransactions(ctx context.Context, f TransactionFilter, page httpx.Page) (*TransactionPage, error) {
	page = page.Normalize()

	q := s.db.WithContext(ctx).Model(&models.StockLog{})
	if f.Start != nil {
		q = q.Where("created_at >= ?", f.Start.UTC())
	}
	if f.End != nil {
		q = q.Where("created_at <= ?", f.End.UTC())
	}
	if f.AdminUserID != nil {
		q = q.Where("admin_user_id = ?", *f.AdminUserID)
	}
	if f.ChemicalID != nil {
		q = q.Where("chemical_id = ?", *f.ChemicalID)
	}
	if f.Action != nil {
		q = q.Where("action_type = ?", *f.Action)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("%w: count stock logs: %v", apperr.ErrStorage, err)
	}

	var logs []models.StockLog
	if err := q.Order("created_at desc, id desc").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("%w: load stock logs: %v", apperr.ErrStorage, err)
	}

	txs, err := s.enrich(ctx, logs)
	if err != nil {
		return nil, err
	}
	return &TransactionPage{Transactions: txs, Total: total, Limit: page.Limit, Offset: page.Offset}, nil
}

// enrich resolves chemicals and users with one query each.
// A hard deleted user leaves the admin fields nil.
func (s *Service) enrich(ctx context.Context, logs []models.StockLog) ([]Transaction, error) {
	out := make([]Transaction, 0, len(logs))
	if len(logs) == 0 {
		return out, nil
	}

	refs, err := ledger.ResolveRefs(ctx, s.db, logs)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]struct{})
	userIDs := make([]uint, 0)
	for _, l := range logs {
		if l.AdminUserID == nil {
			continue
		}
		if _, ok := seen[*l.AdminUserID]; !ok {
			seen[*l.AdminUserID] = struct{}{}
			userIDs = append(userIDs, *l.AdminUserID)
		}
	}
	users := make(map[uint]models.AdminUser, len(userIDs))
	if len(userIDs) > 0 {
		var rows []models.AdminUser
		if err := s.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("%w: load users: %v", apperr.ErrStorage, err)
		}
		for _, u := range rows {
			users[u.ID] = u
		}
	}

	for i, l := range logs {
		t := Transaction{
			ID:              l.ID,
			ChemicalID:      l.ChemicalID,
			ChemicalName:    refs[i].Name(),
			Unit:            refs[i].Unit(),
			ChemicalDeleted: !refs[i].Resolved(),
			ActionType:      l.ActionType,
			Amount:          l.Amount,
			PreviousStock:   l.PreviousStock,
			NewStock:        l.NewStock,
			Notes:           l.Notes,
			AdminUserID:     l.AdminUserID,
			CreatedAt:       l.CreatedAt,
		}
		if l.AdminUserID != nil {
			if u, ok := users[*l.AdminUserID]; ok {
				username := u.Username
				t.AdminUsername = &username
				t.AdminFullName = u.FullName
			}
		}
		out = append(out, t)
	}
	return out, nil
}

type Stats struct {
	TotalTransactions  int64                        `json:"totalTransactions"`
	RecentTransactions int64                        `json:"recentTransactions"`
	ByAction           map[models.StockAction]int64 `json:"byAction"`
}

// Stats counts all log rows, those of the last 30 days, and rows per action.
func (s *Service) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	db := s.db.WithContext(ctx)
	out := &Stats{ByAction: map[models.StockAction]int64{}}

	if err := db.Model(&models.StockLog{}).Count(&out.TotalTransactions).Error; err != nil {
		return nil, fmt.Errorf("%w: count stock logs: %v", apperr.ErrStorage, err)
	}
	since := now.AddDate(0, 0, -recentWindowDays).UTC()
	if err := db.Model(&models.StockLog{}).Where("created_at >= ?", since).Count(&out.RecentTransactions).Error; err != nil {
		return nil, fmt.Errorf("%w: count recent stock logs: %v", apperr.ErrStorage, err)
	}

	var rows []struct {
		ActionType models.StockAction
		Count      int64
	}
	if err := db.Model(&models.StockLog{}).
		Select("action_type, COUNT(*) AS count").
		Group("action_type").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: count by action: %v", apperr.ErrStorage, err)
	}
	for _, r := range rows {
		out.ByAction[r.ActionType] = r.Count
	}
	return out, nil
}
