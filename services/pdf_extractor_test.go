package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF([]byte("%PDF-1.7\n...")))
	assert.False(t, IsPDF([]byte("PK\x03\x04 docx")))
	assert.False(t, IsPDF(nil))
}

func TestExtractRejectsNonPDF(t *testing.T) {
	e := NewPDFExtractor()
	_, err := e.Extract(context.Background(), []byte("plain text résumé"))
	require.ErrorIs(t, err, ErrNotPDF)
}

func TestExtractMalformedPDF(t *testing.T) {
	e := &PDFExtractor{}
	_, err := e.Extract(context.Background(), []byte("%PDF-1.4\ngarbage without xref"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all extraction methods failed")
}

func TestSplitPages(t *testing.T) {
	assert.Equal(t, []string{"one", "two", "", "three"}, splitPages("one\n\ftwo\n\f\fthree\n\f"))
	assert.Equal(t, []string{"single"}, splitPages("  single  \n"))
	assert.Nil(t, splitPages(" \n\f "))
}

func TestEvaluateTextQuality(t *testing.T) {
	good := "Juan Pérez. Desarrollador Go con experiencia en Kubernetes y Mongo. " +
		"Trabajó en proyectos de la industria financiera con equipos de 1,000 personas."
	assert.GreaterOrEqual(t, evaluateTextQuality(good), goodQuality)

	assert.Equal(t, 0.0, evaluateTextQuality("   "))
	assert.Equal(t, 0.1, evaluateTextQuality("short"))

	garbage := strings.Repeat("�\x01", 50)
	assert.Less(t, evaluateTextQuality(garbage), acceptableQuality)
}
