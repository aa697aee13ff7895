// Package scheduler manages the recurring jobs of the alerting backend:
// the periodic alert check and the weekly trigger-history cleanup.
package scheduler

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"pricewatch_backend/services"
	"pricewatch_backend/services/alerting"
)

// TriggerHistoryRetention is how long fired-alert history is kept
const TriggerHistoryRetention = 90 * 24 * time.Hour

// Scheduler manages scheduled jobs
type Scheduler struct {
	cron          *gocron.Scheduler
	engine        *alerting.Engine
	checkInterval time.Duration
}

// NewScheduler creates a new scheduler instance
func NewScheduler(engine *alerting.Engine, checkInterval time.Duration) *Scheduler {
	if checkInterval <= 0 {
		checkInterval = 60 * time.Second
	}
	return &Scheduler{
		cron:          gocron.NewScheduler(time.UTC),
		engine:        engine,
		checkInterval: checkInterval,
	}
}

// Start starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Check active price alerts on a fixed cadence. The engine drops
	// overlapping runs itself, so a slow check never piles up ticks.
	s.cron.Every(s.checkInterval).Do(func() {
		s.engine.RunOnce()
	})

	// Cleanup old trigger history weekly on Sunday at 01:00
	s.cron.Every(1).Week().Sunday().At("01:00").Do(func() {
		s.cleanupTriggerHistory()
	})

	s.cron.StartAsync()
	log.Printf("Scheduler started successfully (alert check every %v)", s.checkInterval)
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}

// cleanupTriggerHistory removes old trigger records to save storage
func (s *Scheduler) cleanupTriggerHistory() {
	log.Println("Cleaning up old trigger history...")

	cutoff := time.Now().Add(-TriggerHistoryRetention)

	if services.GlobalTriggerLog != nil {
		deleted, err := services.GlobalTriggerLog.DeleteOlderThan(cutoff)
		if err != nil {
			log.Printf("Error cleaning up trigger history: %v", err)
		} else if deleted > 0 {
			log.Printf("Deleted %d old trigger records", deleted)
		}
	}

	if services.GlobalMongoClient != nil && services.GlobalMongoClient.IsConfigured() {
		deleted, err := services.GlobalMongoClient.DeleteTriggersOlderThan(cutoff)
		if err != nil {
			log.Printf("Error cleaning up archived triggers: %v", err)
		} else if deleted > 0 {
			log.Printf("Deleted %d old archived triggers", deleted)
		}
	}

	log.Println("Cleanup completed")
}
