package alerting

import (
	"time"

	"github.com/shopspring/decimal"
)

// TriggerEvent describes a fired alert, emitted after the durable state
// transition succeeds. It carries everything downstream delivery needs so
// consumers never have to read the alert row back.
type TriggerEvent struct {
	AlertID       uint            `json:"alert_id"`
	UserID        uint            `json:"user_id"`
	Email         string          `json:"email"`
	Symbol        string          `json:"symbol"`
	Timeframe     string          `json:"timeframe"`
	ConditionKind string          `json:"condition_kind"`
	TargetValue   decimal.Decimal `json:"target_value"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	TriggeredAt   time.Time       `json:"triggered_at"`
}

// EventSink receives trigger events for downstream delivery. Publish must
// not block: delivery is fire-and-forget and may fail independently of the
// state transition.
type EventSink interface {
	Publish(event TriggerEvent)
}

// NopSink discards events. Used when no notification channel is configured.
type NopSink struct{}

// Publish discards the event
func (NopSink) Publish(TriggerEvent) {}
