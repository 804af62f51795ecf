package services

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"cv-rag-platform/internal/logger"
	"cv-rag-platform/models"
)

const (
	inventorySheet = "CVs"
	summarySheet   = "Summary"
)

// CVSource streams stored CVs.
type CVSource interface {
	All(ctx context.Context, fn func(models.CV) error) error
}

// ExportService renders the CV inventory as an Excel workbook.
type ExportService struct {
	source CVSource
}

func NewExportService(source CVSource) *ExportService {
	return &ExportService{source: source}
}

// ExportInventory collects every CV and writes the workbook.
func (es *ExportService) ExportInventory(ctx context.Context) (*bytes.Buffer, int, error) {
	var cvs []models.CV
	err := es.source.All(ctx, func(cv models.CV) error {
		cvs = append(cvs, cv)
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load CVs: %w", err)
	}

	buf, err := BuildInventoryWorkbook(cvs, time.Now().UTC())
	if err != nil {
		return nil, 0, err
	}
	return buf, len(cvs), nil
}

// BuildInventoryWorkbook writes one row per CV plus a summary sheet with
// embedding status and redaction totals.
func BuildInventoryWorkbook(cvs []models.CV, generatedAt time.Time) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Error closing Excel file", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", inventorySheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	headers := []string{
		"ID", "File Name", "Display Name", "Content Hash", "Pages", "Fragments",
		"Size (bytes)", "Redactions", "Embedding Status", "Uploaded At", "Embedded At",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(inventorySheet, cell, header)
	}

	statusCounts := map[string]int{}
	redactionTotals := map[string]int{}

	for i, cv := range cvs {
		row := i + 2
		redactions := 0
		for placeholder, n := range cv.RedactionCounts {
			redactions += n
			redactionTotals[placeholder] += n
		}
		statusCounts[cv.EmbeddingStatus]++

		embeddedAt := ""
		if cv.EmbeddedAt != nil {
			embeddedAt = cv.EmbeddedAt.Format("2006-01-02 15:04:05")
		}

		values := []interface{}{
			cv.ID, cv.FileName, cv.DisplayName, cv.ContentHash, cv.Pages, cv.FragmentCount,
			cv.Size, redactions, cv.EmbeddingStatus, cv.UploadedAt.Format("2006-01-02 15:04:05"), embeddedAt,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(inventorySheet, cell, v)
		}
	}

	f.SetColWidth(inventorySheet, "A", "A", 38)
	f.SetColWidth(inventorySheet, "B", "D", 34)
	f.SetColWidth(inventorySheet, "E", "K", 18)

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	summary := [][]interface{}{
		{"Generated At", generatedAt.Format("2006-01-02 15:04:05")},
		{"Total CVs", len(cvs)},
		{},
		{"Embedding Status", "Count"},
	}
	for _, status := range sortedKeys(statusCounts) {
		summary = append(summary, []interface{}{status, statusCounts[status]})
	}
	summary = append(summary, []interface{}{}, []interface{}{"Placeholder", "Redactions"})
	for _, placeholder := range sortedKeys(redactionTotals) {
		summary = append(summary, []interface{}{placeholder, redactionTotals[placeholder]})
	}

	for i, row := range summary {
		for j, v := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			f.SetCellValue(summarySheet, cell, v)
		}
	}
	f.SetColWidth(summarySheet, "A", "B", 22)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return &buf, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
