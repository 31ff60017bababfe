// Package types provides type definitions for structured data used throughout the resume-tailor system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// Resume sections
const (
	SectionSummary    = "summary"
	SectionExperience = "experience"
	SectionSkills     = "skills"
	SectionEducation  = "education"
	SectionOther      = "other"
)

// SourceSpan is a half-open byte offset range [Start, End) into the ingested resume text.
type SourceSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ResumeStatement represents one discrete candidate statement extracted from the resume.
// Statements are produced once per run by the analyzer and are immutable afterwards;
// OrderIndex preserves original document order for fallback ordering.
type ResumeStatement struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Section    string     `json:"section"`
	SourceSpan SourceSpan `json:"source_span"`
	OrderIndex int        `json:"order_index"`
}

// ValidSection reports whether s is one of the known resume sections.
func ValidSection(s string) bool {
	switch s {
	case SectionSummary, SectionExperience, SectionSkills, SectionEducation, SectionOther:
		return true
	}
	return false
}

// SpanValid reports whether the statement's source span is a well-formed,
// in-bounds range for a source text of the given length.
func (s ResumeStatement) SpanValid(textLen int) bool {
	return s.SourceSpan.Start >= 0 &&
		s.SourceSpan.Start < s.SourceSpan.End &&
		s.SourceSpan.End <= textLen
}

// StatementSet is the analyzer's stage artifact.
type StatementSet struct {
	Statements []ResumeStatement `json:"statements"`
}
