package services

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"pricewatch_backend/services/alerting"
)

// TriggerLogPath is the local trigger-history database file
const TriggerLogPath = "data/triggers.db"

// TriggerRecord represents a stored trigger-history row
type TriggerRecord struct {
	ID            int64     `json:"id"`
	AlertID       uint      `json:"alert_id"`
	UserID        uint      `json:"user_id"`
	Symbol        string    `json:"symbol"`
	ConditionKind string    `json:"condition_kind"`
	TargetValue   string    `json:"target_value"`
	CurrentPrice  string    `json:"current_price"`
	TriggeredAt   time.Time `json:"triggered_at"`
}

// TriggerLogClient persists trigger history to a local SQLite database
type TriggerLogClient struct {
	db *sql.DB
	mu sync.RWMutex
}

// Global trigger log client
var GlobalTriggerLog *TriggerLogClient

// InitTriggerLog initializes the trigger-history database
func InitTriggerLog() error {
	// Create data directory if not exists
	dir := filepath.Dir(TriggerLogPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", TriggerLogPath)
	if err != nil {
		return fmt.Errorf("failed to open trigger log: %w", err)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping trigger log: %w", err)
	}

	GlobalTriggerLog = &TriggerLogClient{db: db}

	if err := GlobalTriggerLog.createTables(); err != nil {
		return fmt.Errorf("failed to create trigger log tables: %w", err)
	}

	log.Printf("Trigger log initialized at %s", TriggerLogPath)
	return nil
}

// Close closes the trigger log database
func (c *TriggerLogClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// createTables creates the trigger history table
func (c *TriggerLogClient) createTables() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	query := `
	CREATE TABLE IF NOT EXISTS trigger_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		alert_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		condition_kind TEXT NOT NULL,
		target_value TEXT NOT NULL,
		current_price TEXT NOT NULL,
		triggered_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trigger_history_alert ON trigger_history(alert_id);
	CREATE INDEX IF NOT EXISTS idx_trigger_history_time ON trigger_history(triggered_at);
	`
	_, err := c.db.Exec(query)
	return err
}

// InsertTrigger records a fired alert
func (c *TriggerLogClient) InsertTrigger(event alerting.TriggerEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(`
		INSERT INTO trigger_history
			(alert_id, user_id, symbol, condition_kind, target_value, current_price, triggered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.AlertID,
		event.UserID,
		event.Symbol,
		event.ConditionKind,
		event.TargetValue.String(),
		event.CurrentPrice.String(),
		event.TriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trigger for alert %d: %w", event.AlertID, err)
	}
	return nil
}

// ListRecent returns the most recent trigger records, newest first
func (c *TriggerLogClient) ListRecent(limit int) ([]TriggerRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, err := c.db.Query(`
		SELECT id, alert_id, user_id, symbol, condition_kind, target_value, current_price, triggered_at
		FROM trigger_history
		ORDER BY triggered_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trigger history: %w", err)
	}
	defer rows.Close()

	records := make([]TriggerRecord, 0, limit)
	for rows.Next() {
		var rec TriggerRecord
		if err := rows.Scan(&rec.ID, &rec.AlertID, &rec.UserID, &rec.Symbol,
			&rec.ConditionKind, &rec.TargetValue, &rec.CurrentPrice, &rec.TriggeredAt); err != nil {
			return nil, fmt.Errorf("failed to scan trigger record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteOlderThan removes trigger records older than the cutoff time
func (c *TriggerLogClient) DeleteOlderThan(cutoff time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.db.Exec(`DELETE FROM trigger_history WHERE triggered_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old triggers: %w", err)
	}
	return result.RowsAffected()
}
