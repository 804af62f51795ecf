package fingerprint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindDuplicateByContent(t *testing.T) {
	existing := []Record{{ID: "1", ContentHash: "aaa", DisplayName: "other"}}
	m, ok := FindDuplicate(Fingerprint{ContentHash: "aaa", DisplayName: "resume"}, existing)
	require.True(t, ok)
	assert.Equal(t, ReasonContent, m.Reason)
	assert.Equal(t, "1", m.Record.ID)
}

func TestFindDuplicateByName(t *testing.T) {
	existing := []Record{{ID: "1", ContentHash: "aaa", DisplayName: "2024-01-01-resume"}}
	m, ok := FindDuplicate(New([]byte("different"), "2024-06-01-resume.pdf"), existing)
	require.True(t, ok)
	assert.Equal(t, ReasonName, m.Reason)
	assert.Equal(t, "1", m.Record.ID)
}

func TestFindDuplicateContentWinsOverEarlierName(t *testing.T) {
	existing := []Record{
		{ID: "name-hit", ContentHash: "zzz", DisplayName: "resume"},
		{ID: "hash-hit", ContentHash: "aaa", DisplayName: "someone-else"},
	}
	m, ok := FindDuplicate(Fingerprint{ContentHash: "aaa", DisplayName: "resume"}, existing)
	require.True(t, ok)
	assert.Equal(t, ReasonContent, m.Reason)
	assert.Equal(t, "hash-hit", m.Record.ID)
}

func TestFindDuplicateNone(t *testing.T) {
	_, ok := FindDuplicate(Fingerprint{ContentHash: "aaa", DisplayName: "resume"}, nil)
	assert.False(t, ok)

	_, ok = FindDuplicate(Fingerprint{ContentHash: "aaa", DisplayName: "resume"},
		[]Record{{ContentHash: "bbb", DisplayName: "Resume"}})
	assert.False(t, ok, "names are case sensitive")

	_, ok = FindDuplicate(Fingerprint{}, []Record{{ContentHash: "", DisplayName: ""}})
	assert.False(t, ok, "empty keys never match")
}

func TestIndexMatchesLinearScan(t *testing.T) {
	existing := []Record{
		{ID: "1", ContentHash: "h1", DisplayName: "ana"},
		{ID: "2", ContentHash: "h2", DisplayName: "15-01-2025-juan"},
		{ID: "3", ContentHash: "h3", DisplayName: "juan"},
		{ID: "4", ContentHash: "h1", DisplayName: "dup-hash"},
	}
	idx := NewIndex(existing)
	candidates := []Fingerprint{
		{ContentHash: "h1", DisplayName: "x"},
		{ContentHash: "h9", DisplayName: "juan"},
		{ContentHash: "h3", DisplayName: "ana"},
		{ContentHash: "h9", DisplayName: "nobody"},
	}
	for _, c := range candidates {
		wantM, wantOK := FindDuplicate(c, existing)
		gotM, gotOK := idx.Lookup(c)
		assert.Equal(t, wantOK, gotOK, "candidate %+v", c)
		assert.Equal(t, wantM, gotM, "candidate %+v", c)
	}
}

type stubLister struct {
	records []Record
	err     error
	delay   time.Duration
	limit   int
}

func (s *stubLister) ListFingerprints(ctx context.Context, limit int) ([]Record, error) {
	s.limit = limit
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.records, s.err
}

func TestDetectorCheck(t *testing.T) {
	lister := &stubLister{records: []Record{{ID: "1", ContentHash: "aaa", DisplayName: "resume"}}}
	d := NewDetector(lister, WithScanLimit(50))

	m, ok := d.Check(context.Background(), Fingerprint{ContentHash: "aaa", DisplayName: "new"})
	require.True(t, ok)
	assert.Equal(t, ReasonContent, m.Reason)
	assert.Equal(t, 50, lister.limit)
}

func TestDetectorAgreesWithFindDuplicate(t *testing.T) {
	existing := []Record{
		{ID: "1", ContentHash: "h1", DisplayName: "ana"},
		{ID: "2", ContentHash: "h2", DisplayName: "2024-03-01_juan.pdf"},
		{ID: "3", ContentHash: "h1", DisplayName: "juan"},
	}
	d := NewDetector(&stubLister{records: existing})
	candidates := []Fingerprint{
		{ContentHash: "h1", DisplayName: "juan"},
		{ContentHash: "h9", DisplayName: "juan"},
		{ContentHash: "h2", DisplayName: "ana"},
		{ContentHash: "h9", DisplayName: "nobody"},
	}
	for _, c := range candidates {
		wantM, wantOK := FindDuplicate(c, existing)
		gotM, gotOK := d.Check(context.Background(), c)
		assert.Equal(t, wantOK, gotOK, "candidate %+v", c)
		assert.Equal(t, wantM, gotM, "candidate %+v", c)
	}
}

func TestDetectorDefaults(t *testing.T) {
	lister := &stubLister{}
	d := NewDetector(lister, WithScanLimit(0), WithScanTimeout(0))
	_, ok := d.Check(context.Background(), Fingerprint{ContentHash: "aaa", DisplayName: "x"})
	assert.False(t, ok)
	assert.Equal(t, DefaultScanLimit, lister.limit)
}

func TestDetectorFailsOpen(t *testing.T) {
	d := NewDetector(&stubLister{err: errors.New("connection refused")})
	_, ok := d.Check(context.Background(), Fingerprint{ContentHash: "aaa", DisplayName: "resume"})
	assert.False(t, ok)
}

func TestDetectorTimeoutFailsOpen(t *testing.T) {
	lister := &stubLister{
		records: []Record{{ID: "1", ContentHash: "aaa", DisplayName: "resume"}},
		delay:   time.Second,
	}
	d := NewDetector(lister, WithScanTimeout(10*time.Millisecond))

	start := time.Now()
	_, ok := d.Check(context.Background(), Fingerprint{ContentHash: "aaa", DisplayName: "resume"})
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
