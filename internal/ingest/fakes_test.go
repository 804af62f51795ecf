package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"cv-rag-platform/internal/fingerprint"
	"cv-rag-platform/models"
)

type fakeExtractor struct {
	pages []string
	err   error
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, raw []byte) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.pages != nil {
		return f.pages, nil
	}
	return []string{string(raw)}, nil
}

type memStore struct {
	mu        sync.Mutex
	cvs       []*models.CV
	listErr   error
	insertErr error
	// hideFromScan lets a test reproduce the race where two uploads pass
	// the scan; Insert still enforces uniqueness like the real indexes.
	hideFromScan bool
	taskIDs      map[string]string
}

func (m *memStore) ListFingerprints(ctx context.Context, limit int) ([]fingerprint.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	if m.hideFromScan {
		return nil, nil
	}
	var out []fingerprint.Record
	for i := len(m.cvs) - 1; i >= 0 && len(out) < limit; i-- {
		cv := m.cvs[i]
		out = append(out, fingerprint.Record{ID: cv.ID, ContentHash: cv.ContentHash, DisplayName: cv.DisplayName})
	}
	return out, nil
}

func (m *memStore) Insert(ctx context.Context, cv *models.CV) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, existing := range m.cvs {
		if existing.ContentHash == cv.ContentHash || existing.DisplayName == cv.DisplayName {
			return ErrConflict
		}
	}
	m.cvs = append(m.cvs, cv)
	return nil
}

func (m *memStore) SetEmbeddingTaskID(ctx context.Context, id, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taskIDs == nil {
		m.taskIDs = map[string]string{}
	}
	m.taskIDs[id] = taskID
	return nil
}

func (m *memStore) FindByFingerprint(ctx context.Context, contentHash, displayName string) (*models.CV, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cv := range m.cvs {
		if cv.ContentHash == contentHash {
			return cv, nil
		}
	}
	for _, cv := range m.cvs {
		if cv.DisplayName == displayName {
			return cv, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cvs)
}

type fakeScheduler struct {
	scheduled []string
	err       error
}

func (f *fakeScheduler) Schedule(ctx context.Context, cvID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.scheduled = append(f.scheduled, cvID)
	return "embed:" + cvID, nil
}

type fakeValidator struct {
	isCV          bool
	justification string
	err           error
	seen          string
}

func (f *fakeValidator) Validate(ctx context.Context, text string) (bool, string, error) {
	f.seen = text
	return f.isCV, f.justification, f.err
}

type fakeLocker struct {
	held     map[string]bool
	err      error
	released []string
}

func (f *fakeLocker) Acquire(ctx context.Context, key string) (func(), bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held == nil {
		f.held = map[string]bool{}
	}
	if f.held[key] {
		return nil, false, nil
	}
	f.held[key] = true
	return func() {
		delete(f.held, key)
		f.released = append(f.released, key)
	}, true, nil
}

type fakeRecorder struct {
	outcomes   []string
	duplicates []string
	redactions map[string]int
}

func (f *fakeRecorder) RecordUpload(ctx context.Context, outcome string, elapsed time.Duration) {
	f.outcomes = append(f.outcomes, outcome)
}

func (f *fakeRecorder) RecordDuplicate(ctx context.Context, reason string) {
	f.duplicates = append(f.duplicates, reason)
}

func (f *fakeRecorder) RecordRedactions(ctx context.Context, counts map[string]int) {
	if f.redactions == nil {
		f.redactions = map[string]int{}
	}
	for k, v := range counts {
		f.redactions[k] += v
	}
}
