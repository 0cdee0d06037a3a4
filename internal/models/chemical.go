package models

import "time"

type Unit string

const (
	UnitBags  Unit = "bags"
	UnitKilos Unit = "kilos"
)

func ParseUnit(s string) (Unit, bool) {
	switch Unit(s) {
	case UnitBags, UnitKilos:
		return Unit(s), true
	}
	return "", false
}

// Chemical is the current stock snapshot of one tracked chemical.
// CurrentStock is only changed through the ledger.
type Chemical struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Name              string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	CurrentStock      float64   `gorm:"not null;default:0" json:"current_stock"`
	Unit              Unit      `gorm:"size:20;not null" json:"unit"`
	LowStockThreshold float64   `gorm:"not null;default:0" json:"low_stock_threshold"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsLow reports whether the chemical is at or below its threshold.
func (c *Chemical) IsLow() bool {
	return c.CurrentStock <= c.LowStockThreshold
}
