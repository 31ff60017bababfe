// Package types provides type definitions for structured data used throughout the resume-tailor system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// TailoredStatement is one output line of the tailored resume. Text may be a
// rewrite of the source statement; SourceStatementID always points back at the
// analyzer statement it came from.
type TailoredStatement struct {
	ID                string `json:"id"`
	Text              string `json:"text"`
	SourceStatementID string `json:"source_statement_id"`
	Rewritten         bool   `json:"rewritten"`
}

// TailoredSection groups reordered statements under their resume heading.
type TailoredSection struct {
	Heading    string              `json:"heading"`
	Statements []TailoredStatement `json:"statements"`
}

// Degradation records a rewrite that was rejected by the consistency check
// and replaced with the original statement text. Non-fatal.
type Degradation struct {
	StatementID string `json:"statement_id"`
	Reason      string `json:"reason"`
}

// TailoredResume is the terminal pipeline artifact. Provenance maps every
// output statement ID to its originating ResumeStatement ID; a statement with
// no provenance entry is a fabrication and must never be produced.
type TailoredResume struct {
	Sections     []TailoredSection `json:"sections"`
	CoverageGaps []JobRequirement  `json:"coverage_gaps"`
	Provenance   map[string]string `json:"provenance"`
	Degradations []Degradation     `json:"degradations,omitempty"`
}

// StatementCount returns the total number of output statements across sections.
func (t *TailoredResume) StatementCount() int {
	n := 0
	for _, s := range t.Sections {
		n += len(s.Statements)
	}
	return n
}
