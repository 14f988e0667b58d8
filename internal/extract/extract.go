// Package extract turns CRM attachments into plain text for prompt context.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// Truncation markers appended when content is cut.
const (
	docTruncatedMarker      = "[... content truncated ...]"
	combinedTruncatedMarker = "[... truncated ...]"
)

// Document is one extracted attachment ready for combination.
type Document struct {
	Name string
	Text string
}

// Extractor converts attachment bytes to text, capped per document and
// across the combined output so a single giant deck cannot crowd out
// everything else in the prompt.
type Extractor struct {
	maxDocChars      int
	maxCombinedChars int
	pdfToTextPath    string
}

// Option configures the Extractor.
type Option func(*Extractor)

// WithMaxDocChars caps the text kept from a single document.
func WithMaxDocChars(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxDocChars = n
		}
	}
}

// WithMaxCombinedChars caps the combined text across all documents.
func WithMaxCombinedChars(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxCombinedChars = n
		}
	}
}

// WithPdfToTextPath sets the pdftotext binary path.
func WithPdfToTextPath(path string) Option {
	return func(e *Extractor) {
		if path != "" {
			e.pdfToTextPath = path
		}
	}
}

// NewExtractor creates an Extractor with the default caps.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		maxDocChars:      15000,
		maxCombinedChars: 30000,
		pdfToTextPath:    "pdftotext",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract converts a single attachment to text, dispatching on the file
// extension. Unsupported formats return an error; callers log and skip.
func (e *Extractor) Extract(ctx context.Context, fileName string, content []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return e.extractPDF(ctx, content)
	case ".docx":
		return extractDocx(content)
	case ".pptx":
		return extractPptx(content)
	case ".xlsx":
		return extractXlsx(content)
	case ".txt", ".md", ".csv":
		if !utf8.Valid(content) {
			return "", eris.Errorf("extract: %s is not valid UTF-8", fileName)
		}
		return string(content), nil
	default:
		return "", eris.Errorf("extract: unsupported file type %s", fileName)
	}
}

// Combine merges extracted documents into a single labeled block. Each
// document is capped individually, and the whole block is capped again so
// the total stays bounded no matter how many attachments a record has.
func (e *Extractor) Combine(docs []Document) string {
	var b strings.Builder
	for _, doc := range docs {
		text := strings.TrimSpace(doc.Text)
		if text == "" {
			continue
		}
		if len(text) > e.maxDocChars {
			text = text[:e.maxDocChars] + "\n" + docTruncatedMarker
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- %s ---\n%s", doc.Name, text)
	}

	out := b.String()
	if len(out) > e.maxCombinedChars {
		out = out[:e.maxCombinedChars] + "\n" + combinedTruncatedMarker
	}
	return out
}
