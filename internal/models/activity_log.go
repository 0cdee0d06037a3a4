package models

import (
	"time"

	"gorm.io/datatypes"
)

type ActivityAction string

const (
	ActivityCreate         ActivityAction = "CREATE"
	ActivityUpdate         ActivityAction = "UPDATE"
	ActivityDelete         ActivityAction = "DELETE"
	ActivityStockUpdate    ActivityAction = "STOCK_UPDATE"
	ActivityCheckLowStock  ActivityAction = "CHECK_LOW_STOCK"
	ActivityChangePassword ActivityAction = "CHANGE_PASSWORD"
)

type ActivityLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	// Who did it
	UserID uint `gorm:"index;not null" json:"user_id"`

	Action    ActivityAction `gorm:"size:30;index" json:"action"`
	TableName string         `gorm:"size:50;index" json:"table_name"`
	RecordID  string         `gorm:"size:255" json:"record_id"`

	// "null" when absent
	OldValues datatypes.JSON `json:"old_values"`
	NewValues datatypes.JSON `json:"new_values"`

	IPAddress string `gorm:"size:64" json:"ip_address"`
	UserAgent string `gorm:"size:255" json:"user_agent"`
}
