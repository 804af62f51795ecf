package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/ledongthuc/pdf"

	"cv-rag-platform/internal/logger"
	"cv-rag-platform/models"
)

var ErrNotPDF = errors.New("file is not a PDF")

const (
	goodQuality       = 0.7
	acceptableQuality = 0.3
	popplerTimeout    = 30 * time.Second
)

// PDFExtractor returns the text of each page of a PDF. ledongthuc/pdf is
// tried first; pdftotext is used when it is installed and the pure Go
// result is poor.
type PDFExtractor struct {
	hasPoppler bool
}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{hasPoppler: hasBinary("pdftotext")}
}

// ExtractionResult is the output of one extraction method.
type ExtractionResult struct {
	Pages        []string
	Method       string
	QualityScore float64
}

// IsPDF reports whether content starts with the PDF magic bytes.
func IsPDF(content []byte) bool {
	return bytes.HasPrefix(content, []byte("%PDF"))
}

// Extract implements ingest.Extractor.
func (e *PDFExtractor) Extract(ctx context.Context, raw []byte) ([]string, error) {
	result, err := e.ExtractPages(ctx, raw)
	if err != nil {
		return nil, err
	}
	return result.Pages, nil
}

func (e *PDFExtractor) ExtractPages(ctx context.Context, content []byte) (*ExtractionResult, error) {
	if !IsPDF(content) {
		return nil, ErrNotPDF
	}

	methods := []struct {
		name    string
		extract func(context.Context, []byte) ([]string, error)
	}{
		{models.ExtractionMethodGoPDF, e.extractWithGoPDF},
	}
	if e.hasPoppler {
		methods = append(methods, struct {
			name    string
			extract func(context.Context, []byte) ([]string, error)
		}{models.ExtractionMethodPoppler, e.extractWithPoppler})
	}

	var lastErr error
	var best *ExtractionResult

	for _, method := range methods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pages, err := method.extract(ctx, content)
		if err != nil {
			logger.Debug("Extraction method failed", "method", method.name, "error", err)
			lastErr = err
			continue
		}

		quality := evaluateTextQuality(strings.Join(pages, "\n"))
		logger.Debug("Extraction method finished", "method", method.name, "pages", len(pages), "quality", quality)

		result := &ExtractionResult{Pages: pages, Method: method.name, QualityScore: quality}
		if quality >= goodQuality {
			return result, nil
		}
		if best == nil || quality > best.QualityScore {
			best = result
		}
	}

	if best != nil && best.QualityScore >= acceptableQuality {
		return best, nil
	}
	if lastErr == nil {
		lastErr = errors.New("extracted text is unreadable")
	}
	return nil, fmt.Errorf("all extraction methods failed: %w", lastErr)
}

func (e *PDFExtractor) extractWithGoPDF(ctx context.Context, content []byte) (pages []string, err error) {
	// ledongthuc/pdf panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("go-pdf panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	total := reader.NumPage()
	pages = make([]string, 0, total)
	found := false
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract text from page", "page", i, "error", err)
			pages = append(pages, "")
			continue
		}
		text = strings.TrimSpace(text)
		if text != "" {
			found = true
		}
		pages = append(pages, text)
	}

	if !found {
		return nil, fmt.Errorf("no text extracted by go-pdf")
	}
	return pages, nil
}

func (e *PDFExtractor) extractWithPoppler(ctx context.Context, content []byte) ([]string, error) {
	extractCtx, cancel := context.WithTimeout(ctx, popplerTimeout)
	defer cancel()

	cmd := exec.CommandContext(extractCtx, "pdftotext", "-layout", "-", "-")
	cmd.Stdin = bytes.NewReader(content)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftotext failed: %v, stderr: %s", err, stderr.String())
	}

	pages := splitPages(stdout.String())
	if len(pages) == 0 {
		return nil, fmt.Errorf("no text extracted by pdftotext")
	}
	return pages, nil
}

// splitPages cuts pdftotext output on form feeds. The trailing form feed
// after the last page does not produce an extra page.
func splitPages(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	raw := strings.Split(strings.TrimRight(text, "\f\n"), "\f")
	pages := make([]string, len(raw))
	for i, p := range raw {
		pages[i] = strings.TrimSpace(p)
	}
	return pages
}

var goodTextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Z][a-z]+\b`),       // Capitalized words
	regexp.MustCompile(`\b\d{1,3}[,.]?\d{3}\b`), // Numbers with separators
	regexp.MustCompile(`[.!?]\s+[A-Z]`),         // Sentence boundaries
	regexp.MustCompile(`(?i)\b(the|and|of|to|in|for|with|de|la|el|en|y|con|para)\b`),
}

// evaluateTextQuality scores extracted text between 0 and 1. Replacement
// characters and control runes count as corruption; letters of any script
// count as readable.
func evaluateTextQuality(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0.0
	}
	if len(text) < 10 {
		return 0.1
	}

	var alphanumeric, printable, corrupted, total int
	for _, r := range text {
		total++
		switch {
		case r == '\uFFFD':
			corrupted++
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			alphanumeric++
			printable++
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			printable++
		default:
			corrupted++
		}
	}

	alphanumericRatio := float64(alphanumeric) / float64(total)
	printableRatio := float64(printable) / float64(total)
	corruptedRatio := float64(corrupted) / float64(total)

	score := printableRatio * 0.4
	if alphanumericRatio >= 0.3 {
		score += 0.3
	} else {
		score += alphanumericRatio
	}
	score -= corruptedRatio * 2.0
	if len(text) > 100 {
		score += 0.1
	}

	matched := 0
	for _, p := range goodTextPatterns {
		if p.MatchString(text) {
			matched++
		}
	}
	if matched >= 3 {
		score += 0.2
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

func hasBinary(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
