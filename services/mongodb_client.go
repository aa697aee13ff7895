package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pricewatch_backend/services/alerting"
)

// MongoDB collection names
const (
	MongoDBName                  = "pricewatch"
	MongoTriggerEventsCollection = "trigger_events"
)

// MongoTriggerEvent represents an archived trigger event document
type MongoTriggerEvent struct {
	AlertID       uint      `bson:"alert_id"`
	UserID        uint      `bson:"user_id"`
	Email         string    `bson:"email"`
	Symbol        string    `bson:"symbol"`
	Timeframe     string    `bson:"timeframe"`
	ConditionKind string    `bson:"condition_kind"`
	TargetValue   string    `bson:"target_value"`
	CurrentPrice  string    `bson:"current_price"`
	TriggeredAt   time.Time `bson:"triggered_at"`
	ArchivedAt    time.Time `bson:"archived_at"`
}

// MongoDBClient handles the optional MongoDB Atlas archive of trigger events
type MongoDBClient struct {
	client      *mongo.Client
	database    *mongo.Database
	mu          sync.RWMutex
	isConnected bool
	uriSet      bool   // Whether MONGODB_URI is configured
	lastError   string // Last connection error message
}

// Global MongoDB client instance
var GlobalMongoClient *MongoDBClient

// InitMongoDBClient initializes the MongoDB client
func InitMongoDBClient() error {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		log.Println("MONGODB_URI not set, MongoDB archive disabled")
		GlobalMongoClient = &MongoDBClient{
			uriSet:    false,
			lastError: "MONGODB_URI environment variable not set",
		}
		return nil
	}

	GlobalMongoClient = &MongoDBClient{
		uriSet: true,
	}

	return GlobalMongoClient.Connect()
}

// Connect establishes connection to MongoDB Atlas
func (m *MongoDBClient) Connect() error {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		m.lastError = "MONGODB_URI environment variable not set"
		return fmt.Errorf("%s", m.lastError)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(mongoURI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(30 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		m.lastError = fmt.Sprintf("Failed to connect: %v", err)
		log.Printf("Failed to connect to MongoDB Atlas: %v", err)
		return err
	}

	// Verify connection with ping
	if err := client.Ping(ctx, nil); err != nil {
		m.lastError = fmt.Sprintf("Failed to ping: %v", err)
		log.Printf("Failed to ping MongoDB Atlas: %v", err)
		client.Disconnect(ctx)
		return err
	}

	m.mu.Lock()
	m.client = client
	m.database = client.Database(MongoDBName)
	m.isConnected = true
	m.lastError = ""
	m.mu.Unlock()

	m.createIndexes()

	log.Println("MongoDB Atlas connected successfully")
	return nil
}

// IsConfigured returns whether MongoDB is configured and connected
func (m *MongoDBClient) IsConfigured() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isConnected
}

// GetConnectionStatus returns detailed connection status
func (m *MongoDBClient) GetConnectionStatus() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := map[string]interface{}{
		"uri_set":   m.uriSet,
		"connected": m.isConnected,
	}

	if m.lastError != "" {
		status["error"] = m.lastError
	}

	return status
}

// Close closes the MongoDB connection
func (m *MongoDBClient) Close() error {
	if m.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return m.client.Disconnect(ctx)
	}
	return nil
}

// createIndexes creates necessary indexes for collections
func (m *MongoDBClient) createIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	collection := m.database.Collection(MongoTriggerEventsCollection)
	collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "triggered_at", Value: -1}},
	})
	collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "triggered_at", Value: -1}},
	})

	log.Println("MongoDB indexes created")
}

// ArchiveTrigger stores a trigger event in the archive collection
func (m *MongoDBClient) ArchiveTrigger(event alerting.TriggerEvent) error {
	if !m.IsConfigured() {
		return fmt.Errorf("MongoDB not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc := MongoTriggerEvent{
		AlertID:       event.AlertID,
		UserID:        event.UserID,
		Email:         event.Email,
		Symbol:        event.Symbol,
		Timeframe:     event.Timeframe,
		ConditionKind: event.ConditionKind,
		TargetValue:   event.TargetValue.String(),
		CurrentPrice:  event.CurrentPrice.String(),
		TriggeredAt:   event.TriggeredAt,
		ArchivedAt:    time.Now(),
	}

	collection := m.database.Collection(MongoTriggerEventsCollection)
	if _, err := collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to archive trigger for alert %d: %w", event.AlertID, err)
	}
	return nil
}

// DeleteTriggersOlderThan removes archived events older than the cutoff time
func (m *MongoDBClient) DeleteTriggersOlderThan(cutoff time.Time) (int64, error) {
	if !m.IsConfigured() {
		return 0, fmt.Errorf("MongoDB not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	collection := m.database.Collection(MongoTriggerEventsCollection)
	result, err := collection.DeleteMany(ctx, bson.M{
		"triggered_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old archived triggers: %w", err)
	}
	return result.DeletedCount, nil
}
