// Package types provides type definitions for structured data used throughout the resume-tailor system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// RelevanceLink scores one (requirement, statement) pair.
type RelevanceLink struct {
	RequirementID string  `json:"requirement_id"`
	StatementID   string  `json:"statement_id"`
	Score         float64 `json:"score"`
	Rationale     string  `json:"rationale,omitempty"`
	// LexicalScore and SemanticScore record the blended components for inspection.
	LexicalScore  float64  `json:"lexical_score"`
	SemanticScore *float64 `json:"semantic_score,omitempty"`
}

// RelevanceSet is the reconciler's stage artifact: the complete link set plus
// the coverage gap list. Every requirement appears either with at least one
// link at or above the threshold, or in CoverageGaps, never neither.
type RelevanceSet struct {
	Links        []RelevanceLink  `json:"links"`
	CoverageGaps []JobRequirement `json:"coverage_gaps"`
	Threshold    float64          `json:"threshold"`
}

// LinksFor returns the links for one requirement in stored order.
func (r *RelevanceSet) LinksFor(requirementID string) []RelevanceLink {
	var out []RelevanceLink
	for _, l := range r.Links {
		if l.RequirementID == requirementID {
			out = append(out, l)
		}
	}
	return out
}

// MaxScore returns the highest link score for a requirement, or 0 when it has no links.
func (r *RelevanceSet) MaxScore(requirementID string) float64 {
	max := 0.0
	for _, l := range r.Links {
		if l.RequirementID == requirementID && l.Score > max {
			max = l.Score
		}
	}
	return max
}
