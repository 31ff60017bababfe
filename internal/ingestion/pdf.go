package ingestion

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfSignature is the magic prefix every well-formed PDF starts with.
var pdfSignature = []byte("%PDF-")

// HasPDFSignature reports whether data begins with the PDF magic bytes.
func HasPDFSignature(data []byte) bool {
	return bytes.HasPrefix(data, pdfSignature)
}

// extractPDFText pulls text out of a PDF page by page, row by row, so the
// output preserves visual reading order. The underlying parser panics on some
// malformed files, so panics are converted to CorruptDocumentError.
func extractPDFText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &CorruptDocumentError{
				Format:  FormatPDF,
				Message: fmt.Sprintf("parser panic: %v", r),
			}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &CorruptDocumentError{
			Format:  FormatPDF,
			Message: "unreadable document structure",
			Cause:   err,
		}
	}

	var sb strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			return "", &CorruptDocumentError{
				Format:  FormatPDF,
				Message: fmt.Sprintf("cannot read text on page %d", pageNum),
				Cause:   err,
			}
		}

		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				if word.S != "" {
					words = append(words, word.S)
				}
			}
			if len(words) > 0 {
				sb.WriteString(strings.Join(words, " "))
			}
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}

	return sb.String(), nil
}
