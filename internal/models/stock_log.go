package models

import "time"

type StockAction string

const (
	StockActionAdd    StockAction = "add"
	StockActionRemove StockAction = "remove"
	StockActionDelete StockAction = "delete"
)

func ParseStockAction(s string) (StockAction, bool) {
	switch StockAction(s) {
	case StockActionAdd, StockActionRemove, StockActionDelete:
		return StockAction(s), true
	}
	return "", false
}

// StockLog is an append-only ledger row.
//
// ChemicalID is not a foreign key. The row outlives the chemical it refers to,
// and ChemicalName keeps the name it had when the row was written.
type StockLog struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	ChemicalID    uint        `gorm:"index;not null" json:"chemical_id"`
	ChemicalName  string      `gorm:"size:100" json:"chemical_name"`
	ActionType    StockAction `gorm:"size:10;index;not null" json:"action_type"`
	Amount        float64     `gorm:"not null" json:"amount"`
	PreviousStock float64     `gorm:"not null" json:"previous_stock"`
	NewStock      float64     `gorm:"not null" json:"new_stock"`
	Notes         string      `gorm:"size:255" json:"notes"`
	AdminUserID   *uint       `gorm:"index" json:"admin_user_id"`
	CreatedAt     time.Time   `gorm:"index" json:"created_at"`
}
