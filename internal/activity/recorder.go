package activity

import (
	"context"
	"encoding/json"

	"chemtrack-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry is one audited mutation before it is written.
type Entry struct {
	UserID    uint
	Action    models.ActivityAction
	TableName string
	RecordID  string
	OldValues any
	NewValues any
	IPAddress string
	UserAgent string
}

// Recorder writes activity rows. Failures are logged and never returned,
// an audit write must not undo the request it describes.
type Recorder struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewRecorder(db *gorm.DB, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{db: db, logger: logger}
}

func (r *Recorder) Record(ctx context.Context, e Entry) {
	row := models.ActivityLog{
		UserID:    e.UserID,
		Action:    e.Action,
		TableName: e.TableName,
		RecordID:  e.RecordID,
		OldValues: toJSON(e.OldValues),
		NewValues: toJSON(e.NewValues),
		IPAddress: e.IPAddress,
		UserAgent: e.UserAgent,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		r.logger.Error("failed to write activity log",
			zap.Uint("user_id", e.UserID),
			zap.String("action", string(e.Action)),
			zap.Error(err))
	}
}

// "null" for nil so the column always holds valid JSON.
func toJSON(v any) datatypes.JSON {
	null := datatypes.JSON("null")
	if v == nil {
		return null
	}
	b, err := json.Marshal(v)
	if err != nil {
		return null
	}
	return datatypes.JSON(b)
}
