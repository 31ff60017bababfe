// Package ingestion turns job postings and resume documents into normalized
// plain text. It is the only stage that touches raw bytes; everything
// downstream works on the text and section hints produced here.
package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// Supported document formats.
const (
	FormatPDF = "pdf"
	FormatTXT = "txt"
	FormatMD  = "md"
)

// Document is the ingestion artifact: normalized text plus everything later
// stages need to trace statements back to it.
type Document struct {
	Text         string        `json:"text"`
	Format       string        `json:"format"`
	Hash         string        `json:"hash"` // SHA256 hex of normalized text
	CharCount    int           `json:"char_count"`
	SectionHints []SectionHint `json:"section_hints,omitempty"`
	SourceURL    string        `json:"source_url,omitempty"`
	IngestedAt   string        `json:"ingested_at"` // RFC3339
}

// Ingest parses raw document bytes in the declared format and returns the
// normalized document. It never retries: parsing is deterministic and local,
// so a failure here is terminal for the run.
func Ingest(data []byte, format string) (*Document, error) {
	format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))

	var raw string
	switch format {
	case FormatPDF:
		if !HasPDFSignature(data) {
			return nil, &UnsupportedFormatError{Format: format}
		}
		text, err := extractPDFText(data)
		if err != nil {
			return nil, err
		}
		raw = text
	case FormatTXT, FormatMD:
		if !utf8.Valid(data) {
			return nil, &CorruptDocumentError{Format: format, Message: "not valid UTF-8"}
		}
		raw = string(data)
	default:
		return nil, &UnsupportedFormatError{Format: format}
	}

	text := NormalizeText(raw)
	if text == "" {
		return nil, &CorruptDocumentError{Format: format, Message: "no extractable text"}
	}

	return &Document{
		Text:         text,
		Format:       format,
		Hash:         hashText(text),
		CharCount:    utf8.RuneCountInString(text),
		SectionHints: DetectSections(text),
		IngestedAt:   time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// IngestFile reads a document from disk, inferring the format from the file
// extension.
func IngestFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("document not found: %w", err)
		}
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return Ingest(data, filepath.Ext(path))
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
