package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"cv-rag-platform/models"
)

type sliceSource []models.CV

func (s sliceSource) All(ctx context.Context, fn func(models.CV) error) error {
	for _, cv := range s {
		if err := fn(cv); err != nil {
			return err
		}
	}
	return nil
}

func TestExportInventory(t *testing.T) {
	uploaded := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	cvs := sliceSource{
		{
			ID: "a", FileName: "15-01-2025-ana", DisplayName: "ana", ContentHash: "h1",
			Pages: 2, FragmentCount: 2, EmbeddingStatus: models.StatusCompleted, UploadedAt: uploaded,
			RedactionCounts: map[string]int{"[EMAIL]": 1, "[TELÉFONO]": 2},
		},
		{
			ID: "b", FileName: "15-01-2025-juan", DisplayName: "juan", ContentHash: "h2",
			Pages: 1, FragmentCount: 1, EmbeddingStatus: models.StatusPending, UploadedAt: uploaded,
			RedactionCounts: map[string]int{"[EMAIL]": 3},
		},
	}

	buf, n, err := NewExportService(cvs).ExportInventory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(inventorySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Content Hash", rows[0][3])
	assert.Equal(t, "ana", rows[1][2])
	assert.Equal(t, "3", rows[1][7])
	assert.Equal(t, "pending", rows[2][8])

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	assert.Contains(t, summary, []string{"Total CVs", "2"})
	assert.Contains(t, summary, []string{"[EMAIL]", "4"})
	assert.Contains(t, summary, []string{"completed", "1"})
}
