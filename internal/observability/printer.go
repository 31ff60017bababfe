// Package observability provides pipeline metrics and formatted output
// utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/resume-tailor/internal/ingestion"
	"github.com/jonathan/resume-tailor/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintDocument outputs a summary of the ingested resume document.
func (p *Printer) PrintDocument(doc *ingestion.Document) {
	if doc == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Format:   %s\n", doc.Format))
	sb.WriteString(fmt.Sprintf("Chars:    %d\n", doc.CharCount))
	sb.WriteString(fmt.Sprintf("Hash:     %.12s...\n", doc.Hash))

	if len(doc.SectionHints) > 0 {
		sb.WriteString("\nSections detected:\n")
		count := min(len(doc.SectionHints), maxItemsToShow)
		for i := 0; i < count; i++ {
			hint := doc.SectionHints[i]
			sb.WriteString(fmt.Sprintf("  • %s (%s) @ %d\n", hint.Heading, hint.Label, hint.Offset))
		}
		if len(doc.SectionHints) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(doc.SectionHints)-maxItemsToShow))
		}
	}

	p.printBox("INGESTED DOCUMENT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRequirementSet outputs the extracted job requirements with weights.
func (p *Printer) PrintRequirementSet(set *types.RequirementSet) {
	if set == nil || len(set.Requirements) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total requirements: %d\n\n", len(set.Requirements)))

	count := min(len(set.Requirements), maxItemsToShow)
	for i := 0; i < count; i++ {
		req := set.Requirements[i]
		text := req.Text
		if len(text) > 40 {
			text = text[:37] + "..."
		}
		sb.WriteString(fmt.Sprintf("[%.2f] %s\n", req.Weight, text))
		sb.WriteString(fmt.Sprintf("       %s", req.Category))
		if req.Required {
			sb.WriteString(", required")
		}
		sb.WriteString("\n")
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(set.Requirements) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more requirements", len(set.Requirements)-maxItemsToShow))
	}

	p.printBox("EXTRACTED REQUIREMENTS", sb.String())
}

// PrintStatements outputs the analyzed resume statements grouped by section.
func (p *Printer) PrintStatements(statements []types.ResumeStatement) {
	if len(statements) == 0 {
		return
	}

	perSection := make(map[string]int)
	for _, st := range statements {
		perSection[st.Section]++
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total statements: %d\n", len(statements)))
	for _, section := range []string{types.SectionSummary, types.SectionExperience, types.SectionSkills, types.SectionEducation, types.SectionOther} {
		if n := perSection[section]; n > 0 {
			sb.WriteString(fmt.Sprintf("  %-12s %d\n", section, n))
		}
	}
	sb.WriteString("\n")

	count := min(len(statements), maxItemsToShow)
	for i := 0; i < count; i++ {
		text := statements[i].Text
		if len(text) > 50 {
			text = text[:47] + "..."
		}
		sb.WriteString(fmt.Sprintf("• %s\n", text))
	}
	if len(statements) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more", len(statements)-maxItemsToShow))
	}

	p.printBox("RESUME STATEMENTS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRelevanceSet outputs the top relevance links and coverage gaps.
func (p *Printer) PrintRelevanceSet(rel *types.RelevanceSet) {
	if rel == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Links: %d   Gaps: %d   Threshold: %.2f\n\n", len(rel.Links), len(rel.CoverageGaps), rel.Threshold))

	count := min(len(rel.Links), maxItemsToShow)
	for i := 0; i < count; i++ {
		link := rel.Links[i]
		sb.WriteString(fmt.Sprintf("%.2f  %s -> %s\n", link.Score, link.RequirementID, link.StatementID))
	}
	if len(rel.Links) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more links\n", len(rel.Links)-maxItemsToShow))
	}

	if len(rel.CoverageGaps) > 0 {
		sb.WriteString("\nCoverage gaps:\n")
		for _, gap := range rel.CoverageGaps {
			text := gap.Text
			if len(text) > 44 {
				text = text[:41] + "..."
			}
			sb.WriteString(fmt.Sprintf("  ✗ %s\n", text))
		}
	}

	p.printBox("RELEVANCE RECONCILIATION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintTailoredResume outputs the final sections with rewrite and degradation counts.
func (p *Printer) PrintTailoredResume(resume *types.TailoredResume) {
	if resume == nil {
		return
	}

	rewritten := 0
	for _, section := range resume.Sections {
		for _, st := range section.Statements {
			if st.Rewritten {
				rewritten++
			}
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Statements: %d (%d rewritten)\n", resume.StatementCount(), rewritten))
	sb.WriteString(fmt.Sprintf("Coverage gaps: %d   Degradations: %d\n\n", len(resume.CoverageGaps), len(resume.Degradations)))

	for _, section := range resume.Sections {
		sb.WriteString(fmt.Sprintf("%s (%d)\n", section.Heading, len(section.Statements)))
		count := min(len(section.Statements), 3)
		for i := 0; i < count; i++ {
			text := section.Statements[i].Text
			if len(text) > 48 {
				text = text[:45] + "..."
			}
			sb.WriteString(fmt.Sprintf("  • %s\n", text))
		}
		if len(section.Statements) > 3 {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(section.Statements)-3))
		}
	}

	p.printBox("TAILORED RESUME", strings.TrimSuffix(sb.String(), "\n"))
}
