package fingerprint

import (
	"context"
	"time"

	"cv-rag-platform/internal/logger"
)

// Reason tells which part of the fingerprint matched an existing record.
type Reason string

const (
	ReasonContent Reason = "content"
	ReasonName    Reason = "name"
)

const (
	DefaultScanLimit   = 1000
	DefaultScanTimeout = 5 * time.Second
)

// Match describes the existing record an upload collides with.
type Match struct {
	Record Record
	Reason Reason
}

// FindDuplicate compares candidate against existing. A content hash match
// anywhere in existing wins over a display name match. Existing names are
// normalized before comparison so records stored under older naming
// schemes still collide.
//
// Detector.Check answers through Index, which must return exactly what
// this scan returns; keep the two in step when changing either.
func FindDuplicate(candidate Fingerprint, existing []Record) (Match, bool) {
	if candidate.ContentHash != "" {
		for _, r := range existing {
			if r.ContentHash == candidate.ContentHash {
				return Match{Record: r, Reason: ReasonContent}, true
			}
		}
	}

	name := NormalizeDisplayName(candidate.DisplayName)
	if name == "" {
		return Match{}, false
	}
	for _, r := range existing {
		if NormalizeDisplayName(r.DisplayName) == name {
			return Match{Record: r, Reason: ReasonName}, true
		}
	}
	return Match{}, false
}

// Lister returns stored fingerprints, newest first, up to limit entries.
type Lister interface {
	ListFingerprints(ctx context.Context, limit int) ([]Record, error)
}

// Detector runs duplicate checks against a bounded scan of stored records.
type Detector struct {
	lister  Lister
	limit   int
	timeout time.Duration
}

type DetectorOption func(*Detector)

func WithScanLimit(n int) DetectorOption {
	return func(d *Detector) {
		if n > 0 {
			d.limit = n
		}
	}
}

func WithScanTimeout(t time.Duration) DetectorOption {
	return func(d *Detector) {
		if t > 0 {
			d.timeout = t
		}
	}
}

func NewDetector(lister Lister, opts ...DetectorOption) *Detector {
	d := &Detector{
		lister:  lister,
		limit:   DefaultScanLimit,
		timeout: DefaultScanTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Check reports whether candidate duplicates a stored record. A failed or
// timed out scan is logged and treated as "no duplicate"; the unique
// indexes on the store remain the final guard. Lookups go through Index,
// the map form of FindDuplicate.
func (d *Detector) Check(ctx context.Context, candidate Fingerprint) (Match, bool) {
	scanCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	records, err := d.lister.ListFingerprints(scanCtx, d.limit)
	if err != nil {
		logger.Warn("Duplicate scan failed, accepting upload",
			"error", err,
			"content_hash", candidate.ContentHash,
			"display_name", candidate.DisplayName)
		return Match{}, false
	}

	return NewIndex(records).Lookup(candidate)
}
