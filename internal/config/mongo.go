package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CVCollection      = "cvs"
	ChunkCollection   = "cv_chunks"
	indexSetupTimeout = 30 * time.Second
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	err = EnsureIndexes(client.Database(cfg.DBName))
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

// IndexModels lists the indexes each collection needs. The unique indexes
// on cvs are the last line of defence against concurrent duplicate
// uploads that both pass the duplicate scan.
func IndexModels() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		CVCollection: {
			{
				Keys:    bson.D{{Key: "content_hash", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_content_hash"),
			},
			{
				Keys:    bson.D{{Key: "display_name", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_display_name"),
			},
			{
				Keys:    bson.D{{Key: "uploaded_at", Value: -1}},
				Options: options.Index().SetName("uploaded_at_desc"),
			},
			{
				Keys:    bson.D{{Key: "embedding_status", Value: 1}, {Key: "uploaded_at", Value: 1}},
				Options: options.Index().SetName("embedding_status_uploaded_at"),
			},
		},
		ChunkCollection: {
			{
				Keys:    bson.D{{Key: "cv_id", Value: 1}, {Key: "chunk_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_cv_chunk"),
			},
		},
	}
}

func EnsureIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), indexSetupTimeout)
	defer cancel()

	for collection, models := range IndexModels() {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("%s: %w", collection, err)
		}
	}
	return nil
}
