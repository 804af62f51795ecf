package utils

import (
	"context"
	"time"
)

const (
	// DefaultTimeout bounds single-record database reads.
	DefaultTimeout = 10 * time.Second

	// IngestTimeout covers extraction, duplicate lookup, validation and insert.
	IngestTimeout = 2 * time.Minute

	// ExportTimeout covers streaming the whole corpus into a workbook.
	ExportTimeout = 5 * time.Minute
)

func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultTimeout)
}

func WithIngestTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, IngestTimeout)
}

func WithExportTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ExportTimeout)
}
