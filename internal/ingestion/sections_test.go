package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-tailor/internal/types"
)

func TestDetectSections_CommonHeadingStyles(t *testing.T) {
	text := strings.Join([]string{
		"Jane Doe",
		"",
		"PROFESSIONAL SUMMARY",
		"Backend engineer with ten years of experience building services.",
		"",
		"Work History:",
		"- Staff Engineer at Acme",
		"",
		"## Skills",
		"- Go",
		"",
		"EDUCATION",
		"BS Computer Science, 2014",
	}, "\n")

	hints := DetectSections(text)
	require.Len(t, hints, 4)

	assert.Equal(t, types.SectionSummary, hints[0].Label)
	assert.Equal(t, "PROFESSIONAL SUMMARY", hints[0].Heading)

	assert.Equal(t, types.SectionExperience, hints[1].Label)
	assert.Equal(t, "Work History", hints[1].Heading)

	assert.Equal(t, types.SectionSkills, hints[2].Label)
	assert.Equal(t, "Skills", hints[2].Heading)

	assert.Equal(t, types.SectionEducation, hints[3].Label)
}

func TestDetectSections_OffsetsPointAtHeadingLines(t *testing.T) {
	text := "intro line\n\nSKILLS\n- Go\n\nEDUCATION\nBachelor of Science, 2010"

	hints := DetectSections(text)
	require.Len(t, hints, 2)

	for _, hint := range hints {
		assert.True(t, strings.HasPrefix(text[hint.Offset:], hint.Heading),
			"offset %d should point at heading %q", hint.Offset, hint.Heading)
	}
}

func TestDetectSections_OrderedByOffset(t *testing.T) {
	text := "SUMMARY\nx\n\nEXPERIENCE\ny\n\nSKILLS\nz"

	hints := DetectSections(text)
	require.Len(t, hints, 3)
	for i := 1; i < len(hints); i++ {
		assert.Greater(t, hints[i].Offset, hints[i-1].Offset)
	}
}

func TestDetectSections_IgnoresProse(t *testing.T) {
	text := strings.Join([]string{
		"I have experience leading teams and shipping software.",
		"My education includes a degree in mathematics.",
		"Reach out to discuss skills and availability.",
	}, "\n")

	hints := DetectSections(text)
	assert.Empty(t, hints)
}

func TestDetectSections_IgnoresBullets(t *testing.T) {
	text := "- Experience with Go\n- Education outreach volunteer"

	hints := DetectSections(text)
	assert.Empty(t, hints)
}

func TestDetectSections_UnlabeledCapsHeading(t *testing.T) {
	text := "MISCELLANY\nsome content"

	hints := DetectSections(text)
	require.Len(t, hints, 1)
	assert.Equal(t, types.SectionOther, hints[0].Label)
}

func TestDetectSections_EmptyText(t *testing.T) {
	assert.Empty(t, DetectSections(""))
}

func TestClassifyHeading_LongLinesRejected(t *testing.T) {
	long := "Experience with a very long list of technologies including Go, Python, Java, and Rust platforms"
	_, _, ok := classifyHeading(long)
	assert.False(t, ok)
}
