package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"cv-rag-platform/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: migrate <command>")
		fmt.Println("Commands:")
		fmt.Println("  ensure-indexes  - Create the unique and query indexes on cvs and cv_chunks")
		fmt.Println("  verify          - Check that every expected index exists and report counts")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	client, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())
	db := client.Database(cfg.DBName)

	switch command := os.Args[1]; command {
	case "ensure-indexes":
		if err := config.EnsureIndexes(db); err != nil {
			log.Fatalf("Index creation failed: %v", err)
		}
		fmt.Println("Indexes are in place.")

	case "verify":
		if err := verify(db); err != nil {
			log.Fatalf("Verification failed: %v", err)
		}
		fmt.Println("Verification completed successfully!")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func verify(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for collection, models := range config.IndexModels() {
		existing, err := indexNames(ctx, db.Collection(collection))
		if err != nil {
			return fmt.Errorf("list indexes of %s: %w", collection, err)
		}
		for _, model := range models {
			name := *model.Options.Name
			if !existing[name] {
				return fmt.Errorf("%s is missing index %s, run ensure-indexes", collection, name)
			}
		}

		count, err := db.Collection(collection).CountDocuments(ctx, bson.M{})
		if err != nil {
			return fmt.Errorf("count %s: %w", collection, err)
		}
		fmt.Printf("  %s: %d documents, %d indexes verified\n", collection, count, len(models))
	}
	return nil
}

func indexNames(ctx context.Context, coll *mongo.Collection) (map[string]bool, error) {
	cursor, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var specs []bson.M
	if err := cursor.All(ctx, &specs); err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if name, ok := spec["name"].(string); ok {
			names[name] = true
		}
	}
	return names, nil
}
