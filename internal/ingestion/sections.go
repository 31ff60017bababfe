package ingestion

import (
	"strings"
	"unicode"

	"github.com/jonathan/resume-tailor/internal/types"
)

// SectionHint marks a detected section heading in normalized document text.
// Offset is the byte offset of the heading line's first character.
type SectionHint struct {
	Offset  int    `json:"offset"`
	Label   string `json:"label"`
	Heading string `json:"heading"`
}

// maxHeadingLen filters out prose lines that merely contain a section keyword.
const maxHeadingLen = 48

var sectionKeywords = []struct {
	keyword string
	label   string
}{
	{"experience", types.SectionExperience},
	{"employment", types.SectionExperience},
	{"work history", types.SectionExperience},
	{"career", types.SectionExperience},
	{"education", types.SectionEducation},
	{"academic", types.SectionEducation},
	{"skill", types.SectionSkills},
	{"technolog", types.SectionSkills},
	{"competenc", types.SectionSkills},
	{"tools", types.SectionSkills},
	{"summary", types.SectionSummary},
	{"objective", types.SectionSummary},
	{"profile", types.SectionSummary},
	{"about me", types.SectionSummary},
	{"certification", types.SectionOther},
	{"project", types.SectionOther},
	{"publication", types.SectionOther},
	{"award", types.SectionOther},
	{"volunteer", types.SectionOther},
}

// DetectSections scans normalized text for heading lines and returns hints in
// document order. Detection is best effort; downstream segmentation treats an
// empty hint list as a single unlabeled region.
func DetectSections(text string) []SectionHint {
	var hints []SectionHint

	offset := 0
	for _, line := range strings.Split(text, "\n") {
		if label, heading, ok := classifyHeading(line); ok {
			hints = append(hints, SectionHint{
				Offset:  offset,
				Label:   label,
				Heading: heading,
			})
		}
		offset += len(line) + 1
	}

	return hints
}

// classifyHeading decides whether a line reads like a section heading and, if
// so, which canonical section label it maps to.
func classifyHeading(line string) (label, heading string, ok bool) {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimLeft(trimmed, "# ")
	trimmed = strings.TrimRight(trimmed, ":")
	trimmed = strings.TrimSpace(trimmed)

	if trimmed == "" || len(trimmed) > maxHeadingLen {
		return "", "", false
	}
	if isBulletLine(strings.TrimSpace(line)) {
		return "", "", false
	}
	if strings.HasSuffix(trimmed, ".") {
		return "", "", false
	}

	marked := strings.HasPrefix(strings.TrimSpace(line), "#") ||
		strings.HasSuffix(strings.TrimSpace(line), ":") ||
		isAllCaps(trimmed)

	lower := strings.ToLower(trimmed)
	for _, sk := range sectionKeywords {
		if strings.Contains(lower, sk.keyword) {
			// A keyword match on a short line is enough even without
			// heading markers, as long as it is not mid-sentence prose.
			if marked || len(strings.Fields(trimmed)) <= 4 {
				return sk.label, trimmed, true
			}
			return "", "", false
		}
	}

	if marked {
		return types.SectionOther, trimmed, true
	}
	return "", "", false
}

// isAllCaps reports whether every letter in s is uppercase and s contains at
// least one letter.
func isAllCaps(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}
