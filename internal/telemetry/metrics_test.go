package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordWithGlobalNoopProvider(t *testing.T) {
	m, err := InitMetrics()
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		m.RecordRequest("POST", "/cvs", "201", 0.12)
		m.RecordUpload(context.Background(), "stored", 150*time.Millisecond)
		m.RecordDuplicate(context.Background(), "content")
		m.RecordRedactions(context.Background(), map[string]int{"[EMAIL]": 2})
		m.RecordEmbedding(context.Background(), "completed", time.Second)
	})
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("GET", "/cvs", "200", 0.01)
		m.RecordUpload(context.Background(), "failed", time.Millisecond)
		m.RecordDuplicate(context.Background(), "name")
		m.RecordRedactions(context.Background(), map[string]int{"[IP]": 1})
		m.RecordEmbedding(context.Background(), "failed", time.Millisecond)
	})
}
