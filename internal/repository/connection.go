package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultMongoPoolSize = 100

// mongoClientOptions keeps a tenth of the pool warm.
func mongoClientOptions(uri string, maxPoolSize int) *options.ClientOptions {
	if maxPoolSize <= 0 {
		maxPoolSize = defaultMongoPoolSize
	}
	return options.Client().
		ApplyURI(uri).
		SetAppName("storefront").
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(uint64(maxPoolSize)).
		SetMinPoolSize(uint64(maxPoolSize / 10))
}

// ConnectMongoDB opens the server-held cart database and verifies it answers.
func ConnectMongoDB(ctx context.Context, uri, database string, maxPoolSize int) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, mongoClientOptions(uri, maxPoolSize))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}
