// Package ingest turns an uploaded rulebook into embedded rule chunks.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var (
	ErrUnsupportedType = errors.New("unsupported rulebook type")
	ErrNoText          = errors.New("rulebook contains no extractable text")
)

// IsPDF reports whether a rulebook should be parsed as PDF
func IsPDF(mimeType, filename string) bool {
	return mimeType == "application/pdf" || strings.EqualFold(filepath.Ext(filename), ".pdf")
}

// IsSupported reports whether ExtractText can read the rulebook
func IsSupported(mimeType, filename string) bool {
	if IsPDF(mimeType, filename) || strings.HasPrefix(mimeType, "text/") {
		return true
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
		return true
	}
	return false
}

// ExtractText reads the whole rulebook and returns its plain text
func ExtractText(r io.Reader, mimeType, filename string) (string, error) {
	if !IsSupported(mimeType, filename) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read rulebook: %w", err)
	}

	var text string
	if IsPDF(mimeType, filename) {
		text, err = pdfText(data)
		if err != nil {
			return "", err
		}
	} else {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: text rulebook is not valid UTF-8", ErrUnsupportedType)
		}
		text = string(data)
	}

	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}

// pdfText joins the plain text of every readable page with blank lines.
// Unreadable pages are skipped.
func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return b.String(), nil
}
