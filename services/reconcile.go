package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"cv-rag-platform/internal/ingest"
	"cv-rag-platform/internal/logger"
	"cv-rag-platform/models"
)

const (
	reconcileTag = "embedding-reconcile"
	// A CV younger than this is probably still in the queue.
	reconcileGrace = 5 * time.Minute
	reconcileBatch = 100
)

// PendingLister finds CVs whose embedding never finished.
type PendingLister interface {
	IDsByEmbeddingStatus(ctx context.Context, statuses []string, olderThan time.Time, limit int) ([]string, error)
}

// Reconciler periodically re-schedules embedding for CVs left pending or
// failed, for example when Redis was down at upload time.
type Reconciler struct {
	scheduler *gocron.Scheduler
	lister    PendingLister
	embed     ingest.EmbedScheduler
	interval  time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	now       func() time.Time
}

func NewReconciler(lister PendingLister, embed ingest.EmbedScheduler, interval time.Duration) *Reconciler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &Reconciler{
		scheduler: s,
		lister:    lister,
		embed:     embed,
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
	}
}

// Start schedules RunOnce every interval and starts the scheduler.
func (r *Reconciler) Start() error {
	_, err := r.scheduler.Every(r.interval).Tag(reconcileTag).Do(func() {
		if _, err := r.RunOnce(r.ctx); err != nil {
			logger.Error("Embedding reconcile failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	r.scheduler.StartAsync()
	logger.Info("Embedding reconciler started", "interval", r.interval.String())
	return nil
}

func (r *Reconciler) Stop() {
	r.scheduler.Stop()
	r.cancel()
}

// RunOnce re-schedules one batch and returns how many CVs were scheduled.
// Rejected CVs are never selected.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	statuses := []string{models.StatusPending, models.StatusFailed}
	ids, err := r.lister.IDsByEmbeddingStatus(ctx, statuses, r.now().Add(-reconcileGrace), reconcileBatch)
	if err != nil {
		return 0, err
	}

	scheduled := 0
	for _, id := range ids {
		if _, err := r.embed.Schedule(ctx, id); err != nil {
			logger.Warn("Failed to reschedule embedding", "cv_id", id, "error", err)
			continue
		}
		scheduled++
	}
	if len(ids) > 0 {
		logger.Info("Embedding reconcile finished", "candidates", len(ids), "scheduled", scheduled)
	}
	return scheduled, nil
}
