package alerting

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"pricewatch_backend/models"
)

// RunSummary captures the outcome of one alert check
type RunSummary struct {
	StartedAt      time.Time `json:"started_at"`
	Duration       string    `json:"duration"`
	AlertsChecked  int       `json:"alerts_checked"`
	AlertsSkipped  int       `json:"alerts_skipped"`
	SymbolsFetched int       `json:"symbols_fetched"`
	SymbolsSkipped int       `json:"symbols_skipped"`
	Triggered      int       `json:"triggered"`
	Errors         int       `json:"errors"`
}

// Engine evaluates all active price alerts against current market prices.
//
// A check loads the active alert set, groups it by symbol, fetches each
// symbol's price once and evaluates every alert in the group against that
// shared price. A satisfied condition deactivates the alert and emits one
// trigger event. At most one check runs at a time: overlapping invocations
// are dropped, never queued.
type Engine struct {
	repo   AlertRepository
	prices PriceSource
	sink   EventSink

	running int32 // single-flight guard, CAS 0 -> 1

	mu          sync.RWMutex
	lastSummary *RunSummary
}

// NewEngine creates an alert evaluation engine. A nil sink disables event
// emission.
func NewEngine(repo AlertRepository, prices PriceSource, sink EventSink) *Engine {
	if sink == nil {
		sink = NopSink{}
	}
	return &Engine{
		repo:   repo,
		prices: prices,
		sink:   sink,
	}
}

// RunOnce performs one alert check. Safe to call from the scheduler and the
// admin API concurrently: if a check is already running the call logs a
// skip and returns immediately.
func (e *Engine) RunOnce() {
	if !atomic.CompareAndSwapInt32(&e.running, 0, 1) {
		log.Println("Alert check still running, skipping this tick")
		return
	}
	defer atomic.StoreInt32(&e.running, 0)

	defer func() {
		// A failing check must never prevent future checks
		if r := recover(); r != nil {
			log.Printf("Alert check panicked: %v", r)
		}
	}()

	e.runCheck()
}

// IsRunning reports whether a check is currently in flight
func (e *Engine) IsRunning() bool {
	return atomic.LoadInt32(&e.running) == 1
}

// LastSummary returns the summary of the most recent completed check, or
// nil if none has run yet.
func (e *Engine) LastSummary() *RunSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastSummary
}

// runCheck is the body of a single check
func (e *Engine) runCheck() {
	summary := RunSummary{StartedAt: time.Now()}
	defer func() {
		summary.Duration = time.Since(summary.StartedAt).String()
		e.mu.Lock()
		e.lastSummary = &summary
		e.mu.Unlock()
	}()

	alerts, err := e.repo.LoadActiveAlerts()
	if err != nil {
		log.Printf("Error loading active alerts: %v", err)
		summary.Errors++
		return
	}
	if len(alerts) == 0 {
		return
	}

	symbols, groups := GroupBySymbol(alerts)
	log.Printf("Checking %d alerts across %d symbols", len(alerts), len(symbols))

	for _, symbol := range symbols {
		group := groups[symbol]

		// The timeframe hint comes from the first alert in the group; it
		// only parameterizes the fetch and never gates evaluation.
		price, err := e.prices.FetchPrice(symbol, group[0].Timeframe)
		if err != nil {
			if errors.Is(err, ErrPriceNotAvailable) {
				log.Printf("No price for %s, skipping %d alerts: %v", symbol, len(group), err)
			} else {
				log.Printf("Error fetching price for %s, skipping %d alerts: %v", symbol, len(group), err)
				summary.Errors++
			}
			summary.SymbolsSkipped++
			summary.AlertsSkipped += len(group)
			continue
		}
		summary.SymbolsFetched++

		for _, alert := range group {
			summary.AlertsChecked++

			if !models.IsValidConditionKind(alert.ConditionKind) {
				log.Printf("Alert %d has unknown condition kind %q, skipping", alert.ID, alert.ConditionKind)
				summary.AlertsSkipped++
				continue
			}

			if !Evaluate(price, alert.ConditionKind, alert.TargetValue) {
				continue
			}

			e.trigger(alert, price, &summary)
		}
	}

	log.Printf("Alert check completed: %d checked, %d triggered, %d symbols skipped",
		summary.AlertsChecked, summary.Triggered, summary.SymbolsSkipped)
}

// trigger applies the state transition for a satisfied alert and emits the
// trigger event. The transition is the source of truth: the event is only
// published after it succeeds, and a transition failure leaves the alert
// active so the next check retries it.
func (e *Engine) trigger(alert models.Alert, price decimal.Decimal, summary *RunSummary) {
	now := time.Now()

	if err := e.repo.MarkTriggered(alert.ID, now); err != nil {
		log.Printf("Error marking alert %d triggered: %v", alert.ID, err)
		summary.Errors++
		return
	}

	summary.Triggered++
	log.Printf("Alert %d triggered: %s %s %s at price %s",
		alert.ID, alert.Symbol, alert.ConditionKind, alert.TargetValue.String(), price.String())

	e.sink.Publish(TriggerEvent{
		AlertID:       alert.ID,
		UserID:        alert.UserID,
		Email:         alert.User.Email,
		Symbol:        alert.Symbol,
		Timeframe:     alert.Timeframe,
		ConditionKind: alert.ConditionKind,
		TargetValue:   alert.TargetValue,
		CurrentPrice:  price,
		TriggeredAt:   now,
	})
}
