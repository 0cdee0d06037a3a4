package ledger

import (
	"context"
	"fmt"

	"chemtrack-backend/internal/apperr"
	"chemtrack-backend/internal/models"

	"gorm.io/gorm"
)

const (
	DeletedChemicalName = "Deleted Chemical"
	UnknownUnit         = "-"
)

// ChemicalRef is a stock log's link to its chemical. Live is nil once the
// chemical has been deleted, and readers fall back to the name stored on the row.
type ChemicalRef struct {
	ID       uint
	Snapshot string
	Live     *models.Chemical
}

func (r ChemicalRef) Resolved() bool { return r.Live != nil }

func (r ChemicalRef) Name() string {
	if r.Live != nil {
		return r.Live.Name
	}
	if r.Snapshot != "" {
		return r.Snapshot
	}
	return DeletedChemicalName
}

func (r ChemicalRef) Unit() string {
	if r.Live != nil {
		return string(r.Live.Unit)
	}
	return UnknownUnit
}

// ResolveRefs looks up the live chemical for each log row with one query.
// The result is index-aligned with logs.
func ResolveRefs(ctx context.Context, db *gorm.DB, logs []models.StockLog) ([]ChemicalRef, error) {
	refs := make([]ChemicalRef, len(logs))
	if len(logs) == 0 {
		return refs, nil
	}

	seen := make(map[uint]struct{}, len(logs))
	ids := make([]uint, 0, len(logs))
	for _, l := range logs {
		if _, ok := seen[l.ChemicalID]; !ok {
			seen[l.ChemicalID] = struct{}{}
			ids = append(ids, l.ChemicalID)
		}
	}

	var live []models.Chemical
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&live).Error; err != nil {
		return nil, fmt.Errorf("%w: resolve chemicals: %v", apperr.ErrStorage, err)
	}
	byID := make(map[uint]*models.Chemical, len(live))
	for i := range live {
		byID[live[i].ID] = &live[i]
	}

	for i, l := range logs {
		refs[i] = ChemicalRef{ID: l.ChemicalID, Snapshot: l.ChemicalName, Live: byID[l.ChemicalID]}
	}
	return refs, nil
}
