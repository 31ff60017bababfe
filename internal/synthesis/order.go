package synthesis

import (
	"sort"

	"github.com/jonathan/resume-tailor/internal/types"
)

// sectionOrder fixes the output section sequence regardless of where sections
// appeared in the source resume.
var sectionOrder = []string{
	types.SectionSummary,
	types.SectionExperience,
	types.SectionSkills,
	types.SectionEducation,
	types.SectionOther,
}

// sectionHeadings maps canonical section labels to display headings.
var sectionHeadings = map[string]string{
	types.SectionSummary:    "Summary",
	types.SectionExperience: "Experience",
	types.SectionSkills:     "Skills",
	types.SectionEducation:  "Education",
	types.SectionOther:      "Additional",
}

// aggregateScores computes each statement's pull toward the job: the sum of
// linked requirement weights. Statements linked to nothing score zero and
// sink to the bottom of their section.
func aggregateScores(requirements []types.JobRequirement, links []types.RelevanceLink) map[string]float64 {
	weightByReq := make(map[string]float64, len(requirements))
	for _, req := range requirements {
		weightByReq[req.ID] = req.Weight
	}

	scores := make(map[string]float64)
	for _, link := range links {
		scores[link.StatementID] += weightByReq[link.RequirementID]
	}
	return scores
}

// orderSection sorts one section's statements by aggregate score descending,
// with source document order breaking ties.
func orderSection(statements []types.ResumeStatement, scores map[string]float64) []types.ResumeStatement {
	ordered := make([]types.ResumeStatement, len(statements))
	copy(ordered, statements)
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := scores[ordered[i].ID], scores[ordered[j].ID]
		if si != sj {
			return si > sj
		}
		return ordered[i].OrderIndex < ordered[j].OrderIndex
	})
	return ordered
}

// groupBySection buckets statements by their canonical section label,
// preserving document order within each bucket. Unknown labels fall into
// the other bucket rather than disappearing.
func groupBySection(statements []types.ResumeStatement) map[string][]types.ResumeStatement {
	groups := make(map[string][]types.ResumeStatement)
	for _, st := range statements {
		label := st.Section
		if !types.ValidSection(label) {
			label = types.SectionOther
		}
		groups[label] = append(groups[label], st)
	}
	return groups
}
