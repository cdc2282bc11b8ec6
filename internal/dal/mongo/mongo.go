package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Client represents a MongoDB client bound to one database.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Database returns the configured database.
func (c *Client) Database() *mongo.Database {
	return c.db
}

// Close disconnects for graceful shutdown.
func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
	}

	return nil
}

// MustNewClient connects to MONGO_URI and pings the server.
func MustNewClient() *Client {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	dbName := viper.GetString("mongo.database")
	if dbName == "" {
		dbName = "dispatch"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Client().ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		panic(fmt.Sprintf("cannot connect to MongoDB: %v", err))
	}
	if err := client.Ping(ctx, nil); err != nil {
		panic(fmt.Sprintf("cannot ping MongoDB: %v", err))
	}

	slog.Info("MongoDB connected", "database", dbName)

	return &Client{
		client: client,
		db:     client.Database(dbName),
	}
}
