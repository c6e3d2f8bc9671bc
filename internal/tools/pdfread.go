// Package tools implements the concrete tools the crew's agents may call:
// PDF text extraction, Serper web search, and the fixed investment and risk
// analysis frameworks.
package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DocumentReader extracts the embedded text layer from a PDF financial
// document. Scanned (image-only) PDFs have no text layer and are not handled.
type DocumentReader struct{}

// Name implements the crew tool contract.
func (DocumentReader) Name() string { return "read_financial_document" }

// Description is shown to the agent in its tool list.
func (DocumentReader) Description() string {
	return `read the full text of a financial document (PDF). Args: {"path":"<path to the PDF>"}`
}

// Call extracts text from the PDF at args["path"].
func (DocumentReader) Call(_ context.Context, args map[string]string) (string, error) {
	path := args["path"]
	if path == "" {
		return "", fmt.Errorf("pdfread: missing required arg \"path\"")
	}
	return ExtractText(path)
}

// ExtractText reads the PDF at path and returns its text with per-page
// markers. Pages whose text layer cannot be decoded are marked unreadable
// rather than failing the whole document.
//
// Expectations:
//   - Returns an error when the file does not exist
//   - Returns an error when the file is not a parseable PDF
//   - Returns an error when no page yields readable text
//   - Prefixes each page's text with a "--- Page N ---" marker
//   - Collapses runs of three or more newlines to two
func ExtractText(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("pdfread: file not found at %s", path)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("pdfread: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	// Font cache shared across pages — GetPlainText resolves glyph encodings
	// through it and re-parsing fonts per page is wasteful.
	fonts := make(map[string]*pdf.Font)

	var sb strings.Builder
	readable := false
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				ft := p.Font(name)
				fonts[name] = &ft
			}
		}
		text, pageErr := p.GetPlainText(fonts)
		if pageErr != nil {
			fmt.Fprintf(&sb, "\n--- Page %d (unreadable) ---\n", i)
			continue
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			fmt.Fprintf(&sb, "\n--- Page %d ---\n%s\n", i, trimmed)
			readable = true
		}
	}

	if !readable {
		return "", fmt.Errorf("pdfread: no readable text found in %s", path)
	}

	return strings.TrimSpace(collapseBlankLines(sb.String())), nil
}

// collapseBlankLines reduces runs of three or more consecutive newlines to
// exactly two, so extracted pages don't carry large blank gaps into prompts.
func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}
