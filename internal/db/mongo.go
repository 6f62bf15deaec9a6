package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/fahdi/pakpropertyapp-sub001/internal/models"
)

const (
	InquiriesCollection  = "inquiries"
	PropertiesCollection = "properties"
)

// ConnectDB initializes and returns a MongoDB client and database instance.
func ConnectDB(uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	ctxPing, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, client.Database(dbName), nil
}

// DisconnectDB closes the MongoDB client connection.
func DisconnectDB(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect MongoDB: %w", err)
	}
	return nil
}

// EnsureIndexes creates the indexes the inquiry core relies on.
//
// uniq_active_inquiry is the load-bearing one: a partial unique index over
// (property_id, tenant_id) scoped to active statuses makes inquiry
// creation a single atomic check-and-insert. Two concurrent creates for
// the same pair cannot both land; the loser gets a duplicate key error
// (code 11000) which the service surfaces as a conflict.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	active := models.ActiveStatuses()
	statuses := make(bson.A, 0, len(active))
	for _, s := range active {
		statuses = append(statuses, s)
	}

	inquiryIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "tenant_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_active_inquiry").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": bson.M{"$in": statuses}}),
		},
		{
			// Sweep scan: active inquiries past their deadline.
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("status_expires_at"),
		},
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("tenant_created_at"),
		},
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("owner_created_at"),
		},
	}
	if _, err := database.Collection(InquiriesCollection).Indexes().CreateMany(ctx, inquiryIndexes); err != nil {
		return fmt.Errorf("failed to create inquiry indexes: %w", err)
	}

	propertyIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}},
			Options: options.Index().SetName("owner_id"),
		},
	}
	if _, err := database.Collection(PropertiesCollection).Indexes().CreateMany(ctx, propertyIndexes); err != nil {
		return fmt.Errorf("failed to create property indexes: %w", err)
	}

	return nil
}
