package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"chemtrack-backend/internal/apperr"
	"chemtrack-backend/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxApplyAttempts = 3

// errStaleSnapshot means the conditional snapshot update matched no row because
// another writer changed current_stock between our read and our write.
var errStaleSnapshot = errors.New("stale stock snapshot")

// LowStockNotifier is told about a chemical that ended at or below its threshold.
// Implementations must not block the caller.
type LowStockNotifier interface {
	NotifyLowStock(chemicalID uint)
}

type Service struct {
	db       *gorm.DB
	notifier LowStockNotifier
	logger   *zap.Logger
}

func NewService(db *gorm.DB, notifier LowStockNotifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, notifier: notifier, logger: logger}
}

type ApplyInput struct {
	ChemicalID uint
	Action     models.StockAction // add | remove
	Amount     float64
	ActorID    *uint
}

type ApplyResult struct {
	ChemicalID    uint        `json:"chemicalId"`
	ChemicalName  string      `json:"chemicalName"`
	Unit          models.Unit `json:"unit"`
	PreviousStock float64     `json:"previousStock"`
	NewStock      float64     `json:"newStock"`
	Threshold     float64     `json:"lowStockThreshold"`
	LowStock      bool        `json:"lowStock"`
	LogID         uint        `json:"logId"`
}

// ApplyTransaction adds to or removes from a chemical's stock and appends the
// matching log row in the same database transaction.
//
// Removal is clamped at zero instead of rejected. When the resulting stock is at
// or below the threshold the low stock notifier is told after commit.
func (s *Service) ApplyTransaction(ctx context.Context, in ApplyInput) (*ApplyResult, error) {
	if err := validateAmount(in.Amount); err != nil {
		return nil, err
	}
	if in.Action != models.StockActionAdd && in.Action != models.StockActionRemove {
		return nil, fmt.Errorf("%w: action must be add or remove, got %q", apperr.ErrInvalidInput, in.Action)
	}

	var (
		res *ApplyResult
		err error
	)
	for attempt := 1; attempt <= maxApplyAttempts; attempt++ {
		res, err = s.applyOnce(ctx, in)
		if !errors.Is(err, errStaleSnapshot) {
			break
		}
		s.logger.Warn("stock snapshot changed during update, retrying",
			zap.Uint("chemical_id", in.ChemicalID), zap.Int("attempt", attempt))
	}
	if errors.Is(err, errStaleSnapshot) {
		return nil, fmt.Errorf("%w: chemical %d kept changing, try again", apperr.ErrConflict, in.ChemicalID)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock updated",
		zap.Uint("chemical_id", res.ChemicalID),
		zap.String("action", string(in.Action)),
		zap.Float64("previous_stock", res.PreviousStock),
		zap.Float64("new_stock", res.NewStock))

	if res.LowStock && s.notifier != nil {
		s.notifier.NotifyLowStock(res.ChemicalID)
	}
	return res, nil
}

func (s *Service) applyOnce(ctx context.Context, in ApplyInput) (*ApplyResult, error) {
	var res *ApplyResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chem models.Chemical
		if err := tx.First(&chem, "id = ?", in.ChemicalID).Error; err != nil {
			return notFoundOrStorage(err, "chemical %d", in.ChemicalID)
		}

		prev := decimal.NewFromFloat(chem.CurrentStock)
		amount := decimal.NewFromFloat(in.Amount)

		var next decimal.Decimal
		var note string
		switch in.Action {
		case models.StockActionAdd:
			next = prev.Add(amount)
			note = fmt.Sprintf("Added %s %s", amount.String(), chem.Unit)
		case models.StockActionRemove:
			next = decimal.Max(decimal.Zero, prev.Sub(amount))
			note = fmt.Sprintf("Removed %s %s", amount.String(), chem.Unit)
		}
		newStock := next.InexactFloat64()

		upd := tx.Model(&models.Chemical{}).
			Where("id = ? AND current_stock = ?", chem.ID, chem.CurrentStock).
			Updates(map[string]any{
				"current_stock": newStock,
				"updated_at":    tx.NowFunc(),
			})
		if upd.Error != nil {
			return fmt.Errorf("%w: update stock: %v", apperr.ErrStorage, upd.Error)
		}
		if upd.RowsAffected == 0 {
			return errStaleSnapshot
		}

		entry := models.StockLog{
			ChemicalID:    chem.ID,
			ChemicalName:  chem.Name,
			ActionType:    in.Action,
			Amount:        in.Amount,
			PreviousStock: chem.CurrentStock,
			NewStock:      newStock,
			Notes:         note,
			AdminUserID:   in.ActorID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("%w: write stock log: %v", apperr.ErrStorage, err)
		}

		res = &ApplyResult{
			ChemicalID:    chem.ID,
			ChemicalName:  chem.Name,
			Unit:          chem.Unit,
			PreviousStock: chem.CurrentStock,
			NewStock:      newStock,
			Threshold:     chem.LowStockThreshold,
			LowStock:      newStock <= chem.LowStockThreshold,
			LogID:         entry.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

type CreateChemicalInput struct {
	Name              string
	InitialStock      float64
	Unit              models.Unit
	LowStockThreshold float64
	ActorID           *uint
}

// CreateChemical inserts the chemical and its initial "add" log row together.
func (s *Service) CreateChemical(ctx context.Context, in CreateChemicalInput) (*models.Chemical, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", apperr.ErrInvalidInput)
	}
	if _, ok := models.ParseUnit(string(in.Unit)); !ok {
		return nil, fmt.Errorf("%w: unit must be bags or kilos", apperr.ErrInvalidInput)
	}
	if !isFinite(in.InitialStock) || in.InitialStock < 0 {
		return nil, fmt.Errorf("%w: initial stock must be zero or more", apperr.ErrInvalidAmount)
	}
	if !isFinite(in.LowStockThreshold) || in.LowStockThreshold < 0 {
		return nil, fmt.Errorf("%w: low stock threshold must be zero or more", apperr.ErrInvalidAmount)
	}

	chem := models.Chemical{
		Name:              in.Name,
		CurrentStock:      in.InitialStock,
		Unit:              in.Unit,
		LowStockThreshold: in.LowStockThreshold,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Chemical{}).Where("name = ?", in.Name).Count(&count).Error; err != nil {
			return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
		}
		if count > 0 {
			return fmt.Errorf("%w: a chemical named %q already exists", apperr.ErrDuplicateName, in.Name)
		}

		if err := tx.Create(&chem).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: a chemical named %q already exists", apperr.ErrDuplicateName, in.Name)
			}
			return fmt.Errorf("%w: create chemical: %v", apperr.ErrStorage, err)
		}

		entry := models.StockLog{
			ChemicalID:    chem.ID,
			ChemicalName:  chem.Name,
			ActionType:    models.StockActionAdd,
			Amount:        chem.CurrentStock,
			PreviousStock: 0,
			NewStock:      chem.CurrentStock,
			Notes:         "Initial stock entry",
			AdminUserID:   in.ActorID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("%w: write stock log: %v", apperr.ErrStorage, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("chemical created", zap.Uint("chemical_id", chem.ID), zap.String("name", chem.Name))
	return &chem, nil
}

// DeleteChemical writes the terminal "delete" log row first and only then
// removes the chemical, so history keeps its name and last stock.
func (s *Service) DeleteChemical(ctx context.Context, id uint, actorID *uint) (*models.Chemical, error) {
	var chem models.Chemical
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&chem, "id = ?", id).Error; err != nil {
			return notFoundOrStorage(err, "chemical %d", id)
		}

		entry := models.StockLog{
			ChemicalID:    chem.ID,
			ChemicalName:  chem.Name,
			ActionType:    models.StockActionDelete,
			Amount:        chem.CurrentStock,
			PreviousStock: chem.CurrentStock,
			NewStock:      0,
			Notes:         fmt.Sprintf("Chemical %q deleted from system", chem.Name),
			AdminUserID:   actorID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("%w: write stock log: %v", apperr.ErrStorage, err)
		}

		if err := tx.Delete(&models.Chemical{}, "id = ?", chem.ID).Error; err != nil {
			return fmt.Errorf("%w: delete chemical: %v", apperr.ErrStorage, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("chemical deleted", zap.Uint("chemical_id", chem.ID), zap.String("name", chem.Name))
	return &chem, nil
}

// ListChemicals returns every chemical ordered by name.
func (s *Service) ListChemicals(ctx context.Context) ([]models.Chemical, error) {
	chems := make([]models.Chemical, 0)
	if err := s.db.WithContext(ctx).Order("name asc").Find(&chems).Error; err != nil {
		return nil, fmt.Errorf("%w: list chemicals: %v", apperr.ErrStorage, err)
	}
	return chems, nil
}

// ListLowStock returns chemicals at or below their threshold, lowest stock first.
func (s *Service) ListLowStock(ctx context.Context) ([]models.Chemical, error) {
	chems := make([]models.Chemical, 0)
	err := s.db.WithContext(ctx).
		Where("current_stock <= low_stock_threshold").
		Order("current_stock asc, name asc").
		Find(&chems).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list low stock: %v", apperr.ErrStorage, err)
	}
	return chems, nil
}

func (s *Service) GetChemical(ctx context.Context, id uint) (*models.Chemical, error) {
	var chem models.Chemical
	if err := s.db.WithContext(ctx).First(&chem, "id = ?", id).Error; err != nil {
		return nil, notFoundOrStorage(err, "chemical %d", id)
	}
	return &chem, nil
}

func validateAmount(amount float64) error {
	if !isFinite(amount) {
		return fmt.Errorf("%w: amount must be a number", apperr.ErrInvalidAmount)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be greater than zero", apperr.ErrInvalidAmount)
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func notFoundOrStorage(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", apperr.ErrNotFound, what)
	}
	return fmt.Errorf("%w: load %s: %v", apperr.ErrStorage, what, err)
}
