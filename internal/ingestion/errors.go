package ingestion

import "fmt"

// UnsupportedFormatError is returned when a document's declared format is not
// one we can ingest, or when the bytes do not match the declared format.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported document format %q (supported: pdf, txt, md)", e.Format)
}

// CorruptDocumentError is returned when a document in a supported format
// cannot be parsed, or parses to no usable text.
type CorruptDocumentError struct {
	Format  string
	Message string
	Cause   error
}

func (e *CorruptDocumentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("corrupt %s document: %s: %v", e.Format, e.Message, e.Cause)
	}
	return fmt.Sprintf("corrupt %s document: %s", e.Format, e.Message)
}

func (e *CorruptDocumentError) Unwrap() error {
	return e.Cause
}
