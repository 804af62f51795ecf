package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"cv-rag-platform/internal/ai"
	"cv-rag-platform/internal/ingest"
	"cv-rag-platform/internal/logger"
	"cv-rag-platform/models"
)

const (
	TaskEmbedCV = "cv:embed"

	QueueCritical = "critical"
	QueueDefault  = "default"

	embedTimeout   = 10 * time.Minute
	uniqueEmbedTTL = 15 * time.Minute
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

type EmbedCVPayload struct {
	CVID string `json:"cv_id"`
}

func NewEmbedCVTask(cvID string) (*asynq.Task, error) {
	payload, err := json.Marshal(EmbedCVPayload{CVID: cvID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskEmbedCV,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(embedTimeout),
		asynq.Queue(QueueCritical),
		asynq.Unique(uniqueEmbedTTL),
	), nil
}

// Enqueuer schedules embedding work on the asynq queue.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(opt asynq.RedisConnOpt) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(opt)}
}

// Schedule enqueues an embed task for cvID. A task already queued for the
// same CV counts as scheduled.
func (e *Enqueuer) Schedule(ctx context.Context, cvID string) (string, error) {
	task, err := NewEmbedCVTask(cvID)
	if err != nil {
		return "", err
	}

	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			logger.Debug("Embed task already queued", "cv_id", cvID)
			return "", nil
		}
		return "", fmt.Errorf("enqueue embed task: %w", err)
	}
	return info.ID, nil
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// CVRepository is the storage the embedding worker needs.
type CVRepository interface {
	Get(ctx context.Context, id string) (*models.CV, error)
	UpdateEmbeddingStatus(ctx context.Context, id, status, errMsg string) error
	UpsertChunks(ctx context.Context, cvID string, chunks []models.CVChunk) error
}

// Observer receives embedding metrics.
type Observer interface {
	RecordEmbedding(ctx context.Context, status string, elapsed time.Duration)
}

type TaskProcessor struct {
	repo       CVRepository
	embedder   ai.Embedder
	dimensions int
	observer   Observer
}

func NewTaskProcessor(repo CVRepository, embedder ai.Embedder, dimensions int, observer Observer) *TaskProcessor {
	return &TaskProcessor{
		repo:       repo,
		embedder:   embedder,
		dimensions: dimensions,
		observer:   observer,
	}
}

func (p *TaskProcessor) EmbedCV(ctx context.Context, t *asynq.Task) error {
	var payload EmbedCVPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}
	if payload.CVID == "" {
		return fmt.Errorf("missing cv_id: %w", asynq.SkipRetry)
	}

	err := p.Embed(ctx, payload.CVID)
	if errors.Is(err, ingest.ErrNotFound) || errors.Is(err, ErrDimensionMismatch) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// Embed writes one vector per non-empty fragment of the CV and moves its
// status to completed. A dimension mismatch marks the CV rejected, any
// other failure marks it failed so the reconciler tries again.
func (p *TaskProcessor) Embed(ctx context.Context, cvID string) error {
	start := time.Now()

	cv, err := p.repo.Get(ctx, cvID)
	if err != nil {
		return fmt.Errorf("load cv %s: %w", cvID, err)
	}
	if cv.EmbeddingStatus == models.StatusCompleted {
		logger.Debug("CV already embedded", "cv_id", cvID)
		return nil
	}

	if err := p.repo.UpdateEmbeddingStatus(ctx, cvID, models.StatusProcessing, ""); err != nil {
		return err
	}

	chunks, err := p.buildChunks(ctx, cv)
	if err == nil {
		err = p.repo.UpsertChunks(ctx, cvID, chunks)
	}
	if err != nil {
		status := models.StatusFailed
		if errors.Is(err, ErrDimensionMismatch) {
			status = models.StatusRejected
		}
		p.record(ctx, status, start)
		if statusErr := p.repo.UpdateEmbeddingStatus(ctx, cvID, status, err.Error()); statusErr != nil {
			logger.Error("Failed to record embedding failure", "cv_id", cvID, "status", status, "error", statusErr)
		}
		logger.Error("Embedding failed", "cv_id", cvID, "error", err)
		return err
	}

	if err := p.repo.UpdateEmbeddingStatus(ctx, cvID, models.StatusCompleted, ""); err != nil {
		return err
	}
	p.record(ctx, models.StatusCompleted, start)

	logger.Info("CV embedded", "cv_id", cvID, "chunks", len(chunks), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (p *TaskProcessor) buildChunks(ctx context.Context, cv *models.CV) ([]models.CVChunk, error) {
	chunks := make([]models.CVChunk, 0, len(cv.Fragments))
	for _, f := range cv.Fragments {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}

		vec, err := p.embedder.Embed(ctx, f.Text)
		if err != nil {
			return nil, fmt.Errorf("embed fragment %d: %w", f.Order, err)
		}
		if p.dimensions > 0 && len(vec) != p.dimensions {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), p.dimensions)
		}

		chunks = append(chunks, models.CVChunk{
			CVID:      cv.ID,
			ChunkID:   fmt.Sprintf("%s_%d", cv.ID, f.Order),
			Order:     f.Order,
			Page:      f.Page,
			Text:      f.Text,
			Vector:    vec,
			CreatedAt: time.Now().UTC(),
		})
	}
	return chunks, nil
}

func (p *TaskProcessor) record(ctx context.Context, status string, start time.Time) {
	if p.observer != nil {
		p.observer.RecordEmbedding(ctx, status, time.Since(start))
	}
}
