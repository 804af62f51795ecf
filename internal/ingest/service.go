// Package ingest runs an upload through fingerprinting, text extraction,
// duplicate detection, optional CV validation, redaction, persistence and
// embedding scheduling.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"cv-rag-platform/internal/fingerprint"
	"cv-rag-platform/internal/logger"
	"cv-rag-platform/internal/redact"
	"cv-rag-platform/models"
)

const validationPreviewRunes = 800

// Extractor turns raw document bytes into ordered page texts.
type Extractor interface {
	Extract(ctx context.Context, raw []byte) ([]string, error)
}

// Store persists CVs. Insert must return an error wrapping ErrConflict
// when a unique index rejects the record.
type Store interface {
	fingerprint.Lister
	Insert(ctx context.Context, cv *models.CV) error
	SetEmbeddingTaskID(ctx context.Context, id, taskID string) error
	FindByFingerprint(ctx context.Context, contentHash, displayName string) (*models.CV, error)
}

// EmbedScheduler hands a stored CV to the embedding worker and returns a
// task id, which may be empty when work runs inline.
type EmbedScheduler interface {
	Schedule(ctx context.Context, cvID string) (string, error)
}

// Validator decides whether extracted text is a CV.
type Validator interface {
	Validate(ctx context.Context, text string) (isCV bool, justification string, err error)
}

// Locker serializes concurrent uploads of the same content.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), acquired bool, err error)
}

// Recorder receives pipeline metrics.
type Recorder interface {
	RecordUpload(ctx context.Context, outcome string, elapsed time.Duration)
	RecordDuplicate(ctx context.Context, reason string)
	RecordRedactions(ctx context.Context, counts map[string]int)
}

// Upload outcomes reported to the Recorder.
const (
	OutcomeStored    = "stored"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

type Request struct {
	FileName string
	Data     []byte
}

type Result struct {
	CV     *models.CV
	TaskID string
}

type Service struct {
	extractor   Extractor
	store       Store
	redactor    *redact.Redactor
	scheduler   EmbedScheduler
	detector    *fingerprint.Detector
	detectorOps []fingerprint.DetectorOption
	validator   Validator
	locker      Locker
	metrics     Recorder
	now         func() time.Time
}

type Option func(*Service)

func WithValidator(v Validator) Option {
	return func(s *Service) { s.validator = v }
}

func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

func WithDetectorOptions(opts ...fingerprint.DetectorOption) Option {
	return func(s *Service) { s.detectorOps = append(s.detectorOps, opts...) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(extractor Extractor, store Store, redactor *redact.Redactor, scheduler EmbedScheduler, opts ...Option) *Service {
	s := &Service{
		extractor: extractor,
		store:     store,
		redactor:  redactor,
		scheduler: scheduler,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.detector = fingerprint.NewDetector(store, s.detectorOps...)
	return s
}

// Ingest stores req as a new CV or explains why it was refused.
func (s *Service) Ingest(ctx context.Context, req Request) (res *Result, err error) {
	ctx, span := otel.Tracer("cv-ingest").Start(ctx, "ingest.Ingest")
	defer span.End()

	start := s.now()
	outcome := OutcomeFailed
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if s.metrics != nil {
			s.metrics.RecordUpload(ctx, outcome, s.now().Sub(start))
		}
	}()

	if len(req.Data) == 0 {
		outcome = OutcomeRejected
		return nil, ErrEmptyDocument
	}

	cand := NewCandidate(req.FileName, req.Data)
	if cand.Fingerprint.DisplayName == "" {
		outcome = OutcomeRejected
		return nil, ErrInvalidName
	}
	span.SetAttributes(
		attribute.String("cv.content_hash", cand.Fingerprint.ContentHash),
		attribute.String("cv.display_name", cand.Fingerprint.DisplayName),
		attribute.Int("cv.size", len(req.Data)),
	)

	if s.locker != nil {
		release, acquired, lockErr := s.locker.Acquire(ctx, "ingest:lock:"+cand.Fingerprint.ContentHash)
		switch {
		case lockErr != nil:
			logger.Warn("Ingest lock unavailable, continuing without it", "error", lockErr)
		case !acquired:
			outcome = OutcomeDuplicate
			return nil, ErrInFlight
		default:
			defer release()
		}
	}

	fragments, err := s.extractor.Extract(ctx, req.Data)
	if err != nil {
		outcome = OutcomeRejected
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	cand.Fragments = fragments
	if !cand.HasText() {
		outcome = OutcomeRejected
		return nil, fmt.Errorf("%w: no text found in document", ErrExtraction)
	}

	if match, dup := s.detector.Check(ctx, cand.Fingerprint); dup {
		outcome = OutcomeDuplicate
		s.recordDuplicate(ctx, match.Reason)
		logger.Info("Duplicate CV rejected",
			"reason", string(match.Reason),
			"existing_id", match.Record.ID,
			"display_name", cand.Fingerprint.DisplayName)
		return nil, &DuplicateError{Existing: match.Record, Reason: match.Reason}
	}

	if s.validator != nil {
		isCV, justification, vErr := s.validator.Validate(ctx, cand.Preview(validationPreviewRunes))
		if vErr != nil {
			return nil, fmt.Errorf("cv validation: %w", vErr)
		}
		if !isCV {
			outcome = OutcomeRejected
			return nil, &ValidationError{Justification: justification}
		}
	}

	cv := s.buildRecord(cand)
	if s.metrics != nil && len(cv.RedactionCounts) > 0 {
		s.metrics.RecordRedactions(ctx, cv.RedactionCounts)
	}

	if err := s.store.Insert(ctx, cv); err != nil {
		if errors.Is(err, ErrConflict) {
			outcome = OutcomeDuplicate
			dupErr := s.conflictToDuplicate(ctx, cand)
			s.recordDuplicate(ctx, dupErr.Reason)
			return nil, dupErr
		}
		return nil, fmt.Errorf("persist cv: %w", err)
	}
	outcome = OutcomeStored
	span.SetAttributes(attribute.String("cv.id", cv.ID))

	taskID, err := s.scheduler.Schedule(ctx, cv.ID)
	if err != nil {
		// The record stays pending and the reconciler retries the enqueue.
		logger.Error("Failed to schedule embedding", "cv_id", cv.ID, "error", err)
		taskID = ""
	}
	if taskID != "" {
		cv.EmbeddingTaskID = taskID
		if err := s.store.SetEmbeddingTaskID(ctx, cv.ID, taskID); err != nil {
			logger.Warn("Failed to record embedding task id", "cv_id", cv.ID, "task_id", taskID, "error", err)
		}
	}

	logger.Info("CV stored",
		"cv_id", cv.ID,
		"file_name", cv.FileName,
		"fragments", cv.FragmentCount,
		"redactions", cv.RedactionCounts,
		"task_id", taskID)

	return &Result{CV: cv, TaskID: taskID}, nil
}

func (s *Service) buildRecord(cand *Candidate) *models.CV {
	sanitized, counts := s.redactor.RedactFragmentsWithStats(cand.Fragments)

	fragments := make([]models.Fragment, 0, len(sanitized))
	for i, text := range sanitized {
		fragments = append(fragments, models.Fragment{
			Order:     i,
			Page:      i + 1,
			Text:      text,
			CharCount: len([]rune(text)),
			WordCount: len(strings.Fields(text)),
		})
	}

	now := s.now().UTC()
	return &models.CV{
		ID:              uuid.NewString(),
		FileName:        fingerprint.DatedName(now, cand.Fingerprint.DisplayName),
		OriginalName:    cand.FileName,
		DisplayName:     cand.Fingerprint.DisplayName,
		ContentHash:     cand.Fingerprint.ContentHash,
		Fragments:       fragments,
		FragmentCount:   len(fragments),
		Size:            int64(len(cand.Raw)),
		Pages:           len(cand.Fragments),
		RedactionCounts: counts,
		EmbeddingStatus: models.StatusPending,
		UploadedAt:      now,
	}
}

// conflictToDuplicate explains a unique index rejection in the same terms
// as a detected duplicate.
func (s *Service) conflictToDuplicate(ctx context.Context, cand *Candidate) *DuplicateError {
	fp := cand.Fingerprint
	existing, err := s.store.FindByFingerprint(ctx, fp.ContentHash, fp.DisplayName)
	if err != nil || existing == nil {
		logger.Warn("Unique index rejected CV but the conflicting record was not found", "error", err)
		return &DuplicateError{
			Existing: fingerprint.Record{ContentHash: fp.ContentHash, DisplayName: fp.DisplayName},
			Reason:   fingerprint.ReasonContent,
		}
	}

	reason := fingerprint.ReasonName
	if existing.ContentHash == fp.ContentHash {
		reason = fingerprint.ReasonContent
	}
	return &DuplicateError{
		Existing: fingerprint.Record{ID: existing.ID, ContentHash: existing.ContentHash, DisplayName: existing.DisplayName},
		Reason:   reason,
	}
}

func (s *Service) recordDuplicate(ctx context.Context, reason fingerprint.Reason) {
	if s.metrics != nil {
		s.metrics.RecordDuplicate(ctx, string(reason))
	}
}
