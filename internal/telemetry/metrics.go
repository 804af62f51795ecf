package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. A nil *Metrics records nothing.
type Metrics struct {
	RequestCounter    metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	UploadCounter     metric.Int64Counter
	DuplicateCounter  metric.Int64Counter
	RedactionCounter  metric.Int64Counter
	IngestDuration    metric.Float64Histogram
	EmbeddingDuration metric.Float64Histogram
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("cv-rag-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	uploadCounter, err := meter.Int64Counter(
		"cv.uploads.total",
		metric.WithDescription("CV uploads by outcome"),
	)
	if err != nil {
		return nil, err
	}

	duplicateCounter, err := meter.Int64Counter(
		"cv.duplicates.total",
		metric.WithDescription("Rejected duplicate CVs by match reason"),
	)
	if err != nil {
		return nil, err
	}

	redactionCounter, err := meter.Int64Counter(
		"cv.redactions.total",
		metric.WithDescription("Redacted fields by placeholder"),
	)
	if err != nil {
		return nil, err
	}

	ingestDuration, err := meter.Float64Histogram(
		"cv.ingest.duration",
		metric.WithDescription("Upload pipeline duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	embeddingDuration, err := meter.Float64Histogram(
		"cv.embedding.duration",
		metric.WithDescription("Embedding duration per CV in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:    requestCounter,
		RequestDuration:   requestDuration,
		UploadCounter:     uploadCounter,
		DuplicateCounter:  duplicateCounter,
		RedactionCounter:  redactionCounter,
		IngestDuration:    ingestDuration,
		EmbeddingDuration: embeddingDuration,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordUpload(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("cv.outcome", outcome))
	m.UploadCounter.Add(ctx, 1, attrs)
	m.IngestDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) RecordDuplicate(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.DuplicateCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("cv.duplicate_reason", reason)))
}

func (m *Metrics) RecordRedactions(ctx context.Context, counts map[string]int) {
	if m == nil {
		return
	}
	for placeholder, n := range counts {
		m.RedactionCounter.Add(ctx, int64(n), metric.WithAttributes(attribute.String("cv.placeholder", placeholder)))
	}
}

func (m *Metrics) RecordEmbedding(ctx context.Context, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.EmbeddingDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("cv.embedding_status", status)))
}
