package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chemtrack-backend/internal/apperr"
	"chemtrack-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultNotifyTimeout = 30 * time.Second

type Config struct {
	From      string
	Recipient string
	// Cooldown > 0 suppresses repeat alerts for a chemical within the window.
	Cooldown time.Duration
	// NotifyTimeout bounds a background check started by NotifyLowStock.
	NotifyTimeout time.Duration
}

// CheckResult describes one pass of CheckAndNotify.
type CheckResult struct {
	Checked    int               `json:"checked"`
	LowStock   []models.Chemical `json:"lowStock"`
	Suppressed []uint            `json:"suppressed"`
	// Attempted is true when an email was handed to the mailer.
	Attempted bool `json:"attempted"`
	Delivered bool `json:"delivered"`
}

// Monitor finds chemicals at or below their threshold and sends one batched alert.
type Monitor struct {
	db         *gorm.DB
	mailer     Mailer
	suppressor Suppressor
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewMonitor wires the monitor. A nil mailer or an empty recipient puts it in
// log-only mode. A nil suppressor with a cooldown uses process memory.
func NewMonitor(db *gorm.DB, mailer Mailer, suppressor Suppressor, cfg Config, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	if cfg.Cooldown > 0 && suppressor == nil {
		suppressor = NewMemorySuppressor()
	}
	return &Monitor{
		db:         db,
		mailer:     mailer,
		suppressor: suppressor,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// CheckAndNotify checks every chemical, or only chemicalID when set.
// Delivery failures are logged and reported in the result, never returned.
func (m *Monitor) CheckAndNotify(ctx context.Context, chemicalID *uint) (*CheckResult, error) {
	q := m.db.WithContext(ctx).Order("name asc")
	if chemicalID != nil {
		q = q.Where("id = ?", *chemicalID)
	}
	var chems []models.Chemical
	if err := q.Find(&chems).Error; err != nil {
		return nil, fmt.Errorf("%w: load chemicals: %v", apperr.ErrStorage, err)
	}

	res := &CheckResult{
		Checked:    len(chems),
		LowStock:   make([]models.Chemical, 0),
		Suppressed: make([]uint, 0),
	}
	for _, c := range chems {
		if !c.IsLow() {
			continue
		}
		if m.suppressed(ctx, c.ID) {
			res.Suppressed = append(res.Suppressed, c.ID)
			continue
		}
		res.LowStock = append(res.LowStock, c)
	}

	if len(res.LowStock) == 0 {
		m.logger.Info("no low stock chemicals found",
			zap.Int("checked", res.Checked), zap.Int("suppressed", len(res.Suppressed)))
		return res, nil
	}

	m.logger.Warn("low stock chemicals found", zap.Int("count", len(res.LowStock)))

	if m.mailer == nil || m.cfg.Recipient == "" {
		for _, c := range res.LowStock {
			m.logger.Info("low stock",
				zap.String("chemical", c.Name),
				zap.Float64("current_stock", c.CurrentStock),
				zap.String("unit", string(c.Unit)),
				zap.Float64("threshold", c.LowStockThreshold))
		}
		return res, nil
	}

	res.Attempted = true
	if err := m.send(ctx, res.LowStock); err != nil {
		m.logger.Error("low stock notification failed", zap.Error(err))
		return res, nil
	}
	res.Delivered = true
	m.logger.Info("low stock notification sent",
		zap.String("recipient", m.cfg.Recipient), zap.Int("count", len(res.LowStock)))
	m.markNotified(ctx, res.LowStock)
	return res, nil
}

func (m *Monitor) suppressed(ctx context.Context, id uint) bool {
	if m.cfg.Cooldown <= 0 || m.suppressor == nil {
		return false
	}
	held, err := m.suppressor.Suppressed(ctx, id)
	if err != nil {
		// fail open
		m.logger.Warn("cooldown check failed, notifying anyway", zap.Uint("chemical_id", id), zap.Error(err))
		return false
	}
	return held
}

// markNotified starts the cooldown for chemicals included in a delivered alert.
func (m *Monitor) markNotified(ctx context.Context, chems []models.Chemical) {
	if m.cfg.Cooldown <= 0 || m.suppressor == nil {
		return
	}
	for _, c := range chems {
		if err := m.suppressor.Mark(ctx, c.ID, m.cfg.Cooldown); err != nil {
			m.logger.Warn("cooldown mark failed", zap.Uint("chemical_id", c.ID), zap.Error(err))
		}
	}
}

func (m *Monitor) send(ctx context.Context, chems []models.Chemical) error {
	subject, text, html, err := composeAlert(chems, m.now())
	if err != nil {
		return fmt.Errorf("%w: render alert: %v", apperr.ErrNotificationDelivery, err)
	}
	err = m.mailer.Send(ctx, Message{
		From:    m.cfg.From,
		To:      []string{m.cfg.Recipient},
		Subject: subject,
		Text:    text,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrNotificationDelivery, err)
	}
	return nil
}

// NotifyLowStock runs a check for one chemical in the background and returns at once.
// It does nothing once Close has been called.
func (m *Monitor) NotifyLowStock(chemicalID uint) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.logger.Debug("monitor closed, skipping low stock check", zap.Uint("chemical_id", chemicalID))
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.NotifyTimeout)
		defer cancel()

		if _, err := m.CheckAndNotify(ctx, &chemicalID); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("background low stock check failed", zap.Uint("chemical_id", chemicalID), zap.Error(err))
		}
	}()
}

// Wait blocks until background checks started by NotifyLowStock have finished.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// Close stops NotifyLowStock from starting new checks and waits for running ones.
func (m *Monitor) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.wg.Wait()
}
