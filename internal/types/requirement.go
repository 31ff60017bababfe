// Package types provides type definitions for structured data used throughout the resume-tailor system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// Requirement categories
const (
	CategorySkill         = "skill"
	CategoryExperience    = "experience"
	CategoryDomain        = "domain"
	CategoryCertification = "certification"
	CategoryOther         = "other"
)

// JobRequirement represents one qualification extracted from a job description.
// Requirements are produced once per run by the extractor and are immutable afterwards.
type JobRequirement struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Category string  `json:"category"`
	Weight   float64 `json:"weight"`
	Required bool    `json:"required"`
}

// ValidCategory reports whether c is one of the known requirement categories.
func ValidCategory(c string) bool {
	switch c {
	case CategorySkill, CategoryExperience, CategoryDomain, CategoryCertification, CategoryOther:
		return true
	}
	return false
}

// RequirementSet is the extractor's stage artifact.
type RequirementSet struct {
	Requirements []JobRequirement `json:"requirements"`
}
