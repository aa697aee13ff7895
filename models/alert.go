package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Condition kind constants for price alerts
const (
	ConditionAbove  = "above"
	ConditionBelow  = "below"
	ConditionEquals = "equals"
)

// equalsTolerancePercent is the tolerance band for "equals" conditions,
// expressed as a fraction of the target value (0.5%). Kept unexported so
// importers cannot widen or narrow the band.
var equalsTolerancePercent = decimal.NewFromFloat(0.005)

// EqualsTolerance returns the tolerance fraction for "equals" conditions
func EqualsTolerance() decimal.Decimal {
	return equalsTolerancePercent
}

// Supported chart timeframes, mirroring the market-data service.
// The timeframe is informational: it is passed to the price source as a
// fetch hint and never gates alert evaluation.
const (
	TimeframeM5  = "M5"
	TimeframeM15 = "M15"
	TimeframeM30 = "M30"
	TimeframeH1  = "H1"
	TimeframeH2  = "H2"
	TimeframeH4  = "H4"
	TimeframeH8  = "H8"
	TimeframeH12 = "H12"
	TimeframeD1  = "D1"
)

// Alert represents a price alert owned by a user.
//
// Lifecycle: an alert is created active, evaluated by the background engine
// while is_active is true, and deactivated by the same transition that
// records a trigger. Re-activation is a user action through the API.
type Alert struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"index" json:"user_id"`
	User            User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Symbol          string          `gorm:"index;not null" json:"symbol"`
	Timeframe       string          `gorm:"default:'H1'" json:"timeframe"`
	ConditionKind   string          `gorm:"not null" json:"condition_kind"` // above, below, equals
	TargetValue     decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"target_value"`
	IsActive        bool            `gorm:"default:true;index" json:"is_active"`
	LastTriggeredAt *time.Time      `json:"last_triggered_at"`
	TriggerCount    int             `gorm:"default:0" json:"trigger_count"`
	NotifyEmail     bool            `gorm:"default:true" json:"notify_email"`
	NotifyPush      bool            `gorm:"default:false" json:"notify_push"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ValidConditionKinds returns the supported condition kinds
func ValidConditionKinds() []string {
	return []string{ConditionAbove, ConditionBelow, ConditionEquals}
}

// IsValidConditionKind checks if the condition kind is supported
func IsValidConditionKind(kind string) bool {
	for _, valid := range ValidConditionKinds() {
		if kind == valid {
			return true
		}
	}
	return false
}

// ValidTimeframes returns the supported timeframes
func ValidTimeframes() []string {
	return []string{
		TimeframeM5, TimeframeM15, TimeframeM30,
		TimeframeH1, TimeframeH2, TimeframeH4, TimeframeH8, TimeframeH12,
		TimeframeD1,
	}
}

// IsValidTimeframe checks if the timeframe is supported
func IsValidTimeframe(timeframe string) bool {
	for _, valid := range ValidTimeframes() {
		if timeframe == valid {
			return true
		}
	}
	return false
}

// MigrateAlertModels runs database migrations for alert-related models
func MigrateAlertModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Alert{},
	)
}
