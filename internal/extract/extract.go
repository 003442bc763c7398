// Package extract pulls plain text out of PDF documents ahead of review
// submission. It does no layout analysis or OCR: pages are concatenated in
// order and the result is gated on a minimum length so near-empty documents
// never reach the completion service.
package extract

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MinChars is the quality gate: extracted text trimming to fewer characters
// than this fails with ErrEmptyContent instead of being sent upstream.
const MinChars = 100

var (
	// ErrNotFound means the path does not resolve to a document.
	ErrNotFound = errors.New("document not found")

	// ErrEmptyContent means the document produced too little text to review.
	ErrEmptyContent = errors.New("document has no usable text content")
)

// Text extracts the plain text of every page of the PDF at path, in page
// order. It fails before any completion call is made when the file is
// missing or the extracted text is under MinChars after trimming.
func Text(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("stat document: %w", err)
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open document %s: %w", path, err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			continue
		}
		b.WriteString(text)
	}

	return Validate(b.String())
}

// Validate applies the minimum-length gate to already-extracted text and
// returns the text unchanged when it passes.
func Validate(text string) (string, error) {
	if len(strings.TrimSpace(text)) < MinChars {
		return "", fmt.Errorf("%w: %d chars after trimming", ErrEmptyContent,
			len(strings.TrimSpace(text)))
	}
	return text, nil
}
