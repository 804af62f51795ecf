package ingest

import (
	"strings"
	"unicode/utf8"

	"cv-rag-platform/internal/fingerprint"
)

// Candidate is an upload on its way through the pipeline. It lives for a
// single request.
type Candidate struct {
	FileName    string
	Raw         []byte
	Fingerprint fingerprint.Fingerprint
	Fragments   []string
}

func NewCandidate(fileName string, raw []byte) *Candidate {
	return &Candidate{
		FileName:    fileName,
		Raw:         raw,
		Fingerprint: fingerprint.New(raw, fileName),
	}
}

// Preview returns at most n runes of the extracted text, pages joined by
// newlines.
func (c *Candidate) Preview(n int) string {
	text := strings.TrimSpace(strings.Join(c.Fragments, "\n"))
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n])
}

func (c *Candidate) HasText() bool {
	for _, f := range c.Fragments {
		if strings.TrimSpace(f) != "" {
			return true
		}
	}
	return false
}
