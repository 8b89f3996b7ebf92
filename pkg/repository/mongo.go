package repository

import (
	"context"
	"time"

	"github.com/example/storefront/pkg/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	client   *mongo.Client
	database *mongo.Database
	config   *config.MongoDBConfig
}

func NewMongoRepository(cfg *config.MongoDBConfig) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}

	return &MongoRepository{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
	}, nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// OrderEvent is one entry in an order's audit trail.
type OrderEvent struct {
	ID        string    `bson:"_id,omitempty" json:"-"`
	Action    string    `bson:"action" json:"action"`
	OrderID   uint      `bson:"order_id" json:"order_id"`
	Actor     string    `bson:"actor" json:"actor"`
	Data      bson.M    `bson:"data" json:"data,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// RecordOrderEvent appends an event to the order audit trail.
func (m *MongoRepository) RecordOrderEvent(ctx context.Context, event *OrderEvent) error {
	collection := m.database.Collection(m.config.Collection)
	event.CreatedAt = time.Now()
	_, err := collection.InsertOne(ctx, event)
	return err
}

// OrderEvents returns the newest events for an order first.
func (m *MongoRepository) OrderEvents(ctx context.Context, orderID uint, limit int64) ([]*OrderEvent, error) {
	collection := m.database.Collection(m.config.Collection)

	filter := bson.M{"order_id": orderID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []*OrderEvent
	if err = cursor.All(ctx, &events); err != nil {
		return nil, err
	}

	return events, nil
}
