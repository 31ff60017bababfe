package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/resume-tailor/internal/ingestion"
	"github.com/jonathan/resume-tailor/internal/types"
)

func TestPrintDocument(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	doc := &ingestion.Document{
		Text:      "EXPERIENCE\nBuilt things.",
		Format:    ingestion.FormatTXT,
		Hash:      "abcdef0123456789",
		CharCount: 24,
		SectionHints: []ingestion.SectionHint{
			{Offset: 0, Label: types.SectionExperience, Heading: "EXPERIENCE"},
		},
	}

	p.PrintDocument(doc)
	output := buf.String()

	assert.Contains(t, output, "INGESTED DOCUMENT")
	assert.Contains(t, output, "txt")
	assert.Contains(t, output, "24")
	assert.Contains(t, output, "EXPERIENCE (experience) @ 0")
}

func TestPrintDocument_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintDocument(nil)

	assert.Empty(t, buf.String())
}

func TestPrintRequirementSet(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	set := &types.RequirementSet{
		Requirements: []types.JobRequirement{
			{ID: "req_001", Text: "Cloud migration experience", Category: types.CategoryExperience, Weight: 0.9, Required: true},
			{ID: "req_002", Text: "CI tooling", Category: types.CategorySkill, Weight: 0.4},
		},
	}

	p.PrintRequirementSet(set)
	output := buf.String()

	assert.Contains(t, output, "EXTRACTED REQUIREMENTS")
	assert.Contains(t, output, "Total requirements: 2")
	assert.Contains(t, output, "[0.90] Cloud migration experience")
	assert.Contains(t, output, "experience, required")
	assert.Contains(t, output, "[0.40] CI tooling")
}

func TestPrintRequirementSet_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRequirementSet(&types.RequirementSet{})
	p.PrintRequirementSet(nil)

	assert.Empty(t, buf.String())
}

func TestPrintStatements(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	statements := []types.ResumeStatement{
		{ID: "stmt_001", Section: types.SectionExperience, Text: "Maintained Jenkins pipelines."},
		{ID: "stmt_002", Section: types.SectionExperience, Text: "Migrated services to AWS."},
		{ID: "stmt_003", Section: types.SectionSkills, Text: "Terraform, Ansible."},
	}

	p.PrintStatements(statements)
	output := buf.String()

	assert.Contains(t, output, "RESUME STATEMENTS")
	assert.Contains(t, output, "Total statements: 3")
	assert.Contains(t, output, "experience")
	assert.Contains(t, output, "skills")
	assert.Contains(t, output, "Maintained Jenkins pipelines.")
}

func TestPrintStatements_TruncatesLongList(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	statements := make([]types.ResumeStatement, 8)
	for i := range statements {
		statements[i] = types.ResumeStatement{Section: types.SectionOther, Text: "Line."}
	}

	p.PrintStatements(statements)

	assert.Contains(t, buf.String(), "... and 3 more")
}

func TestPrintRelevanceSet(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	rel := &types.RelevanceSet{
		Links: []types.RelevanceLink{
			{RequirementID: "req_001", StatementID: "stmt_002", Score: 0.82},
		},
		CoverageGaps: []types.JobRequirement{
			{ID: "req_003", Text: "Kubernetes administration", Weight: 0.8},
		},
		Threshold: 0.35,
	}

	p.PrintRelevanceSet(rel)
	output := buf.String()

	assert.Contains(t, output, "RELEVANCE RECONCILIATION")
	assert.Contains(t, output, "Links: 1   Gaps: 1   Threshold: 0.35")
	assert.Contains(t, output, "0.82  req_001 -> stmt_002")
	assert.Contains(t, output, "Kubernetes administration")
}

func TestPrintTailoredResume(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	resume := &types.TailoredResume{
		Sections: []types.TailoredSection{
			{
				Heading: "Experience",
				Statements: []types.TailoredStatement{
					{ID: "out_001", Text: "Drove AWS cloud migration.", SourceStatementID: "stmt_002", Rewritten: true},
					{ID: "out_002", Text: "Maintained Jenkins pipelines.", SourceStatementID: "stmt_001"},
				},
			},
		},
		CoverageGaps: []types.JobRequirement{{ID: "req_003", Text: "Kubernetes administration"}},
		Provenance:   map[string]string{"out_001": "stmt_002", "out_002": "stmt_001"},
		Degradations: []types.Degradation{{StatementID: "stmt_004", Reason: "rewrite exceeds length limit"}},
	}

	p.PrintTailoredResume(resume)
	output := buf.String()

	assert.Contains(t, output, "TAILORED RESUME")
	assert.Contains(t, output, "Statements: 2 (1 rewritten)")
	assert.Contains(t, output, "Coverage gaps: 1   Degradations: 1")
	assert.Contains(t, output, "Experience (2)")
	assert.Contains(t, output, "Drove AWS cloud migration.")
}

func TestPrintTailoredResume_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintTailoredResume(nil)

	assert.Empty(t, buf.String())
}
