package alerting

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"pricewatch_backend/models"
)

// AlertRepository abstracts the persistent alert store for the engine
type AlertRepository interface {
	// LoadActiveAlerts returns every alert with is_active = true, with the
	// owning user preloaded for downstream notification.
	LoadActiveAlerts() ([]models.Alert, error)

	// MarkTriggered atomically deactivates the alert, records the trigger
	// time and increments its trigger count.
	MarkTriggered(alertID uint, triggeredAt time.Time) error
}

// GormAlertRepository is the gorm-backed alert repository
type GormAlertRepository struct {
	db *gorm.DB
}

// NewGormAlertRepository creates a repository over the given database
func NewGormAlertRepository(db *gorm.DB) *GormAlertRepository {
	return &GormAlertRepository{db: db}
}

// LoadActiveAlerts loads all active alerts with their owners
func (r *GormAlertRepository) LoadActiveAlerts() ([]models.Alert, error) {
	var alerts []models.Alert
	if err := r.db.Where("is_active = ?", true).
		Preload("User").Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to load active alerts: %w", err)
	}
	return alerts, nil
}

// MarkTriggered applies the trigger transition as a single UPDATE. The
// is_active filter makes a repeated call for the same alert a no-op, so the
// trigger count never double-increments.
func (r *GormAlertRepository) MarkTriggered(alertID uint, triggeredAt time.Time) error {
	result := r.db.Model(&models.Alert{}).
		Where("id = ? AND is_active = ?", alertID, true).
		Updates(map[string]interface{}{
			"is_active":         false,
			"last_triggered_at": triggeredAt,
			"trigger_count":     gorm.Expr("trigger_count + 1"),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark alert %d triggered: %w", alertID, result.Error)
	}
	return nil
}
