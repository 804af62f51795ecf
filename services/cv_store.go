package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cv-rag-platform/internal/config"
	"cv-rag-platform/internal/fingerprint"
	"cv-rag-platform/internal/ingest"
	"cv-rag-platform/models"
)

// CVStore keeps CVs and their embedded chunks in MongoDB.
type CVStore struct {
	cvs    *mongo.Collection
	chunks *mongo.Collection
}

func NewCVStore(db *mongo.Database) *CVStore {
	return &CVStore{
		cvs:    db.Collection(config.CVCollection),
		chunks: db.Collection(config.ChunkCollection),
	}
}

// summaryProjection leaves out the fragment text.
var summaryProjection = bson.M{"fragments": 0}

// ListFingerprints returns the newest limit records, identity fields only.
func (s *CVStore) ListFingerprints(ctx context.Context, limit int) ([]fingerprint.Record, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1, "content_hash": 1, "display_name": 1}).
		SetSort(bson.D{{Key: "uploaded_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.cvs.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list fingerprints: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID          string `bson:"_id"`
		ContentHash string `bson:"content_hash"`
		DisplayName string `bson:"display_name"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode fingerprints: %w", err)
	}

	records := make([]fingerprint.Record, len(rows))
	for i, r := range rows {
		records[i] = fingerprint.Record{ID: r.ID, ContentHash: r.ContentHash, DisplayName: r.DisplayName}
	}
	return records, nil
}

// Insert stores a new CV. Unique index violations are reported as
// ingest.ErrConflict.
func (s *CVStore) Insert(ctx context.Context, cv *models.CV) error {
	if _, err := s.cvs.InsertOne(ctx, cv); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", ingest.ErrConflict, err)
		}
		return err
	}
	return nil
}

// FindByFingerprint returns the CV holding contentHash, or failing that
// displayName.
func (s *CVStore) FindByFingerprint(ctx context.Context, contentHash, displayName string) (*models.CV, error) {
	for _, filter := range []bson.M{{"content_hash": contentHash}, {"display_name": displayName}} {
		var cv models.CV
		err := s.cvs.FindOne(ctx, filter, options.FindOne().SetProjection(summaryProjection)).Decode(&cv)
		if err == nil {
			return &cv, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
	}
	return nil, ingest.ErrNotFound
}

func (s *CVStore) Get(ctx context.Context, id string) (*models.CV, error) {
	var cv models.CV
	err := s.cvs.FindOne(ctx, bson.M{"_id": id}).Decode(&cv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ingest.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cv, nil
}

// List returns one page of CVs, newest first, without fragment text.
func (s *CVStore) List(ctx context.Context, page, limit int) ([]models.CV, int64, error) {
	total, err := s.cvs.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("count cvs: %w", err)
	}

	opts := options.Find().
		SetProjection(summaryProjection).
		SetSort(bson.D{{Key: "uploaded_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := s.cvs.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list cvs: %w", err)
	}
	defer cursor.Close(ctx)

	cvs := []models.CV{}
	if err := cursor.All(ctx, &cvs); err != nil {
		return nil, 0, fmt.Errorf("decode cvs: %w", err)
	}
	return cvs, total, nil
}

// All streams every CV summary to fn, newest first.
func (s *CVStore) All(ctx context.Context, fn func(models.CV) error) error {
	opts := options.Find().
		SetProjection(summaryProjection).
		SetSort(bson.D{{Key: "uploaded_at", Value: -1}})

	cursor, err := s.cvs.Find(ctx, bson.M{}, opts)
	if err != nil {
		return fmt.Errorf("list cvs: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var cv models.CV
		if err := cursor.Decode(&cv); err != nil {
			return fmt.Errorf("decode cv: %w", err)
		}
		if err := fn(cv); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func (s *CVStore) UpdateEmbeddingStatus(ctx context.Context, id, status, errMsg string) error {
	set := bson.M{"embedding_status": status, "embedding_error": errMsg}
	if status == models.StatusCompleted {
		set["embedded_at"] = time.Now().UTC()
	}

	res, err := s.cvs.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update embedding status: %w", err)
	}
	if res.MatchedCount == 0 {
		return ingest.ErrNotFound
	}
	return nil
}

// SetEmbeddingTaskID records the queue task that will embed the CV.
func (s *CVStore) SetEmbeddingTaskID(ctx context.Context, id, taskID string) error {
	res, err := s.cvs.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"embedding_task_id": taskID}})
	if err != nil {
		return fmt.Errorf("set embedding task id: %w", err)
	}
	if res.MatchedCount == 0 {
		return ingest.ErrNotFound
	}
	return nil
}

// IDsByEmbeddingStatus returns ids of CVs in one of statuses uploaded
// before olderThan, oldest first.
func (s *CVStore) IDsByEmbeddingStatus(ctx context.Context, statuses []string, olderThan time.Time, limit int) ([]string, error) {
	filter := bson.M{
		"embedding_status": bson.M{"$in": statuses},
		"uploaded_at":      bson.M{"$lt": olderThan},
	}
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "uploaded_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := s.cvs.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids, nil
}

// UpsertChunks writes chunks keyed by (cv_id, chunk_id) so retries
// overwrite instead of duplicating.
func (s *CVStore) UpsertChunks(ctx context.Context, cvID string, chunks []models.CVChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := make([]mongo.WriteModel, 0, len(chunks))
	for _, ch := range chunks {
		batch = append(batch, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"cv_id": cvID, "chunk_id": ch.ChunkID}).
			SetUpdate(bson.M{"$set": ch}).
			SetUpsert(true))
	}

	if _, err := s.chunks.BulkWrite(ctx, batch, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	return nil
}

// ChunkStats groups stored chunks per CV.
func (s *CVStore) ChunkStats(ctx context.Context) ([]models.ChunkStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":    "$cv_id",
			"chunks": bson.M{"$sum": 1},
			"with_vector": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$gt": bson.A{bson.M{"$size": bson.M{"$ifNull": bson.A{"$vector", bson.A{}}}}, 0}}, 1, 0},
			}},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := s.chunks.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate chunks: %w", err)
	}
	defer cursor.Close(ctx)

	stats := []models.ChunkStats{}
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}
