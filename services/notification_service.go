package services

import (
	"log"
	"sync"

	"pricewatch_backend/services/alerting"
)

// NotificationBufferSize bounds the pending-event queue. Publish never
// blocks the alert engine: when the buffer is full the event is dropped
// and logged (the trigger itself is already durable in the alert store).
const NotificationBufferSize = 256

// NotificationService consumes trigger events and fans them out to the
// delivery channels: email/push stubs, the WebSocket event stream, the
// local trigger history and the optional MongoDB archive.
//
// Implements alerting.EventSink.
type NotificationService struct {
	events chan alerting.TriggerEvent
	done   chan struct{}
	once   sync.Once
}

// Global notification service
var GlobalNotificationService *NotificationService

// InitNotificationService initializes the notification dispatcher
func InitNotificationService() error {
	GlobalNotificationService = &NotificationService{
		events: make(chan alerting.TriggerEvent, NotificationBufferSize),
		done:   make(chan struct{}),
	}

	go GlobalNotificationService.run()

	log.Println("Notification Service initialized")
	return nil
}

// Publish queues a trigger event for delivery. Fire-and-forget: never blocks.
func (s *NotificationService) Publish(event alerting.TriggerEvent) {
	select {
	case s.events <- event:
	default:
		log.Printf("Notification buffer full, dropping event for alert %d", event.AlertID)
	}
}

// Shutdown stops the dispatcher after draining queued events
func (s *NotificationService) Shutdown() {
	s.once.Do(func() {
		close(s.events)
		<-s.done
		log.Println("Notification Service shutdown complete")
	})
}

// run is the delivery worker
func (s *NotificationService) run() {
	defer close(s.done)

	for event := range s.events {
		s.deliver(event)
	}
}

// deliver fans one event out to every channel. Each channel fails
// independently; a delivery error never affects the others and never
// touches the alert's state.
func (s *NotificationService) deliver(event alerting.TriggerEvent) {
	s.sendEmail(event)

	if GlobalEventStream != nil {
		GlobalEventStream.BroadcastTrigger(event)
	}

	if GlobalTriggerLog != nil {
		if err := GlobalTriggerLog.InsertTrigger(event); err != nil {
			log.Printf("Error recording trigger history: %v", err)
		}
	}

	if GlobalMongoClient != nil && GlobalMongoClient.IsConfigured() {
		if err := GlobalMongoClient.ArchiveTrigger(event); err != nil {
			log.Printf("Error archiving trigger to MongoDB: %v", err)
		}
	}
}

// sendEmail delivers the alert email. Currently a stub: it logs what would
// be sent until an email provider is wired up.
func (s *NotificationService) sendEmail(event alerting.TriggerEvent) {
	if event.Email == "" {
		return
	}
	log.Printf("Notification: would email %s - %s %s %s reached %s",
		event.Email, event.Symbol, event.ConditionKind,
		event.TargetValue.String(), event.CurrentPrice.String())
}
