package services

import (
	"context"
	"time"

	"cv-rag-platform/internal/logger"
)

const inlineEmbedTimeout = 5 * time.Minute

// CVEmbedder embeds one stored CV synchronously.
type CVEmbedder interface {
	Embed(ctx context.Context, cvID string) error
}

// InlineEmbedder runs embedding in a background goroutine of the API
// process. It is used when QUEUE_ENABLED=false.
type InlineEmbedder struct {
	embedder CVEmbedder
}

func NewInlineEmbedder(embedder CVEmbedder) *InlineEmbedder {
	return &InlineEmbedder{embedder: embedder}
}

// Schedule implements ingest.EmbedScheduler. It never returns a task id.
func (e *InlineEmbedder) Schedule(ctx context.Context, cvID string) (string, error) {
	go func() {
		// Detached from the request; the upload response does not wait.
		bgCtx, cancel := context.WithTimeout(context.Background(), inlineEmbedTimeout)
		defer cancel()
		if err := e.embedder.Embed(bgCtx, cvID); err != nil {
			logger.Error("Inline embedding failed", "cv_id", cvID, "error", err)
		}
	}()
	return "", nil
}
