package alerting

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch_backend/models"
)

// fakeRepo is an in-memory alert repository
type fakeRepo struct {
	mu        sync.Mutex
	alerts    []models.Alert
	loadCalls int
	loadErr   error
	markCalls []uint
	failMark  map[uint]bool
}

func (r *fakeRepo) LoadActiveAlerts() ([]models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadCalls++
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	active := make([]models.Alert, 0, len(r.alerts))
	for _, alert := range r.alerts {
		if alert.IsActive {
			active = append(active, alert)
		}
	}
	return active, nil
}

func (r *fakeRepo) MarkTriggered(alertID uint, triggeredAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markCalls = append(r.markCalls, alertID)
	if r.failMark[alertID] {
		return errors.New("write failed")
	}
	for i := range r.alerts {
		if r.alerts[i].ID == alertID && r.alerts[i].IsActive {
			r.alerts[i].IsActive = false
			r.alerts[i].LastTriggeredAt = &triggeredAt
			r.alerts[i].TriggerCount++
		}
	}
	return nil
}

func (r *fakeRepo) alertByID(alertID uint) models.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, alert := range r.alerts {
		if alert.ID == alertID {
			return alert
		}
	}
	return models.Alert{}
}

// fakeSource serves canned prices and counts fetches per symbol
type fakeSource struct {
	mu          sync.Mutex
	prices      map[string]float64
	unavailable map[string]bool
	fetchCalls  map[string]int
	timeframes  map[string]string
	started     chan struct{} // closed on first fetch, if set
	release     chan struct{} // blocks fetches until closed, if set
	panicOnce   bool
}

func (s *fakeSource) FetchPrice(symbol, timeframe string) (decimal.Decimal, error) {
	s.mu.Lock()
	if s.fetchCalls == nil {
		s.fetchCalls = make(map[string]int)
	}
	if s.timeframes == nil {
		s.timeframes = make(map[string]string)
	}
	s.fetchCalls[symbol]++
	s.timeframes[symbol] = timeframe
	started := s.started
	s.started = nil
	release := s.release
	panicNow := s.panicOnce
	s.panicOnce = false
	s.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		<-release
	}
	if panicNow {
		panic("price source blew up")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable[symbol] {
		return decimal.Zero, fmt.Errorf("%w: no quote", ErrPriceNotAvailable)
	}
	price, ok := s.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: unknown symbol", ErrPriceNotAvailable)
	}
	return decimal.NewFromFloat(price), nil
}

// fakeSink records published events
type fakeSink struct {
	mu     sync.Mutex
	events []TriggerEvent
}

func (s *fakeSink) Publish(event TriggerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *fakeSink) all() []TriggerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TriggerEvent(nil), s.events...)
}

func activeAlert(id, userID uint, symbol, kind string, target float64) models.Alert {
	return models.Alert{
		ID:            id,
		UserID:        userID,
		User:          models.User{ID: userID, Email: fmt.Sprintf("user%d@example.com", userID)},
		Symbol:        symbol,
		Timeframe:     models.TimeframeH1,
		ConditionKind: kind,
		TargetValue:   decimal.NewFromFloat(target),
		IsActive:      true,
	}
}

func TestRunOnce_TriggersSatisfiedAlert(t *testing.T) {
	repo := &fakeRepo{alerts: []models.Alert{
		activeAlert(1, 10, "EURUSD", models.ConditionAbove, 1.10),
	}}
	source := &fakeSource{prices: map[string]float64{"EURUSD": 1.12}}
	sink := &fakeSink{}

	engine := NewEngine(repo, source, sink)
	engine.RunOnce()

	// State transition applied
	alert := repo.alertByID(1)
	assert.False(t, alert.IsActive)
	assert.Equal(t, 1, alert.TriggerCount)
	require.NotNil(t, alert.LastTriggeredAt)

	// One event carrying the shared price sample
	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, uint(1), events[0].AlertID)
	assert.Equal(t, "EURUSD", events[0].Symbol)
	assert.Equal(t, "user10@example.com", events[0].Email)
	assert.Equal(t, "1.12", events[0].CurrentPrice.String())

	summary := engine.LastSummary()
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Triggered)
	assert.Equal(t, 1, summary.AlertsChecked)
}

func TestRunOnce_UnsatisfiedAlertStaysActive(t *testing.T) {
	repo := &fakeRepo{alerts: []models.Alert{
		activeAlert(1, 10, "EURUSD", models.ConditionAbove, 1.10),
	}}
	source := &fakeSource{prices: map[string]float64{"EURUSD": 1.08}}
	sink := &fakeSink{}

	engine := NewEngine(repo, source, sink)
	engine.RunOnce()

	assert.True(t, repo.alertByID(1).IsActive)
	assert.Empty(t, repo.markCalls)
	assert.Empty(t, sink.all())
}

func TestRunOnce_OneFetchPerSymbol(t *testing.T) {
	repo := &fakeRepo{alerts: []models.Alert{
		activeAlert(1, 10, "BTCUSD", models.ConditionAbove, 60000),
		activeAlert(2, 11, "BTCUSD", models.ConditionBelow, 70000),
		activeAlert(3, 12, "EURUSD", models.ConditionBelow, 1.20),
	}}
	source := &fakeSource{prices: map[string]float64{"BTCUSD": 65000, "EURUSD": 1.09}}
	sink := &fakeSink{}

	engine := NewEngine(repo, source, sink)
	engine.RunOnce()

	// One fetch per distinct symbol, however many alerts share it
	assert.Equal(t, 1, source.fetchCalls["BTCUSD"])
	assert.Equal(t, 1, source.fetchCalls["EURUSD"])

	// Both BTCUSD alerts evaluated against the same sample and satisfied
	events := sink.all()
	require.Len(t, events, 3)
	for _, event := range events {
		if event.Symbol == "BTCUSD" {
			assert.Equal(t, "65000", event.CurrentPrice.String())
		}
	}

	summary := engine.LastSummary()
	assert.Equal(t, 3, summary.AlertsChecked)
	assert.Equal(t, 2, summary.SymbolsFetched)
}

func TestRunOnce_UnavailablePriceSkipsGroupOnly(t *testing.T) {
	repo := &fakeRepo{alerts: []models.Alert{
		activeAlert(1, 10, "USDJPY", models.ConditionAbove, 150),
		activeAlert(2, 10, "USDJPY", models.ConditionBelow, 160),
		activeAlert(3, 11, "EURUSD", models.ConditionAbove, 1.10),
	}}
	source := &fakeSource{
		prices:      map[string]float64{"EURUSD": 1.12},
		unavailable: map[string]bool{"USDJPY": true},
	}
	sink := &fakeSink{}

	engine := NewEngine(repo, source, sink)
	engine.RunOnce()

	// USDJPY alerts untouched, EURUSD still processed
	assert.True(t, repo.alertByID(1).IsActive)
	assert.True(t, repo.alertByID(2).IsActive)
	assert.False(t, repo.alertByID(3).IsActive)

	summary := engine.LastSummary()
	assert.Equal(t, 1, summary.SymbolsSkipped)
	assert.Equal(t, 2, summary.AlertsSkipped)
	assert.Equal(t, 1, summary.Triggered)
}

func TestRunOnce_MarkTriggeredFailureIsIsolated(t *testing.T) {
	repo := &fakeRepo{
		alerts: []models.Alert{
			activeAlert(1, 10, "EURUSD", models.ConditionAbove, 1.10),
			activeAlert(2, 11, "XAUUSD", models.ConditionBelow, 2100),
		},
		failMark: map[uint]bool{1: true},
	}
	source := &fakeSource{prices: map[string]float64{"EURUSD": 1.12, "XAUUSD": 2050}}
	sink := &fakeSink{}

	engine := NewEngine(repo, source, sink)
	engine.RunOnce()

	// Failed transition: alert stays active, no event published
	assert.True(t, repo.alertByID(1).IsActive)
	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, uint(2), events[0].AlertID)

	// Next check retries the still-active alert
	repo.mu.Lock()
	repo.failMark = nil
	repo.mu.Unlock()
	engine.RunOnce()

	assert.False(t, repo.alertByID(1).IsActive)
	assert.Equal(t, []uint{1, 2, 1}, repo.markCalls)
}

func TestRunOnce_TriggeredAlertNotReevaluated(t *testing.T) {
	repo := &fakeRepo{alerts: []models.Alert{
		activeAlert(1, 10, "EURUSD", models.ConditionAbove, 1.10),
	}}
	source := &fakeSource{prices: map[string]float64{"EURUSD": 1.12}}
	sink := &fakeSink{}

	engine := NewEngine(repo, source, sink)
	engine.RunOnce()
	engine.RunOnce()
	engine.RunOnce()

	// Fires at most once while continuously active
	assert.Equal(t, []uint{1}, repo.markCalls)
	assert.Len(t, sink.all(), 1)
	assert.Equal(t, 1, repo.alertByID(1).TriggerCount)
}

func TestRunOnce_UnknownConditionKindSkipped(t *testing.T) {
	repo := &fakeRepo{alerts: []models.Alert{
		activeAlert(1, 10, "EURUSD", "volume_spike", 1.10),
		activeAlert(2, 10, "EURUSD", models.ConditionAbove, 1.10),
	}}
	source := &fakeSource{prices: map[string]float64{"EURUSD": 1.12}}
	sink := &fakeSink{}

	engine := NewEngine(repo, source, sink)
	engine.RunOnce()

	assert.True(t, repo.alertByID(1).IsActive)
	assert.False(t, repo.alertByID(2).IsActive)

	summary := engine.LastSummary()
	assert.Equal(t, 1, summary.AlertsSkipped)
	assert.Equal(t, 1, summary.Triggered)
}

func TestRunOnce_TimeframeHintFromFirstAlert(t *testing.T) {
	first := activeAlert(1, 10, "EURUSD", models.ConditionAbove, 1.10)
	first.Timeframe = models.TimeframeM15
	second := activeAlert(2, 11, "EURUSD", models.ConditionBelow, 1.20)
	second.Timeframe = models.TimeframeD1

	repo := &fakeRepo{alerts: []models.Alert{first, second}}
	source := &fakeSource{prices: map[string]float64{"EURUSD": 1.15}}

	engine := NewEngine(repo, source, nil)
	engine.RunOnce()

	assert.Equal(t, models.TimeframeM15, source.timeframes["EURUSD"])
}

func TestRunOnce_SingleFlight(t *testing.T) {
	repo := &fakeRepo{alerts: []models.Alert{
		activeAlert(1, 10, "EURUSD", models.ConditionAbove, 1.10),
	}}
	started := make(chan struct{})
	release := make(chan struct{})
	source := &fakeSource{
		prices:  map[string]float64{"EURUSD": 1.12},
		started: started,
		release: release,
	}

	engine := NewEngine(repo, source, nil)

	done := make(chan struct{})
	go func() {
		engine.RunOnce()
		close(done)
	}()

	<-started
	assert.True(t, engine.IsRunning())

	// Overlapping tick is dropped, not queued
	engine.RunOnce()
	assert.Equal(t, 1, repo.loadCalls)

	close(release)
	<-done
	assert.False(t, engine.IsRunning())

	// Guard released: the next tick runs normally
	engine.RunOnce()
	assert.Equal(t, 2, repo.loadCalls)
}

func TestRunOnce_PanicDoesNotWedgeGuard(t *testing.T) {
	repo := &fakeRepo{alerts: []models.Alert{
		activeAlert(1, 10, "EURUSD", models.ConditionAbove, 1.10),
	}}
	source := &fakeSource{
		prices:    map[string]float64{"EURUSD": 1.12},
		panicOnce: true,
	}
	sink := &fakeSink{}

	engine := NewEngine(repo, source, sink)
	engine.RunOnce() // panics inside, recovered

	assert.False(t, engine.IsRunning())

	engine.RunOnce()
	assert.Len(t, sink.all(), 1)
}

func TestRunOnce_LoadErrorRecorded(t *testing.T) {
	repo := &fakeRepo{loadErr: errors.New("db down")}
	engine := NewEngine(repo, &fakeSource{}, nil)

	engine.RunOnce()

	summary := engine.LastSummary()
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Errors)
	assert.False(t, engine.IsRunning())
}
