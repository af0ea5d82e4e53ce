// Package types provides type definitions for structured data used throughout the cv-generator system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// CandidateProfile is the structured record extracted from an uploaded CV by the remote model.
// The render script consumes exactly this shape.
type CandidateProfile struct {
	Name           string            `json:"name"`
	FirstName      string            `json:"first_name"`
	Position       string            `json:"position"`
	WhyPoints      []string          `json:"why_points"`
	Education      []EducationEntry  `json:"education"`
	Skills         []SkillCategory   `json:"skills"`
	Certifications []string          `json:"certifications"`
	Languages      []string          `json:"languages"`
	Experience     []ExperienceEntry `json:"experience"`

	// Request-scoped metadata, attached after validation
	Language string `json:"language,omitempty"`
	BlindCV  bool   `json:"blind_cv"`
}

// EducationEntry is a single education record
type EducationEntry struct {
	Dates       string `json:"dates"`
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Location    string `json:"location,omitempty"`
}

// SkillCategory groups skills under a label such as "Programming languages:"
type SkillCategory struct {
	Label   string `json:"label"`
	Content string `json:"content"`
}

// ExperienceEntry is a single position held by the candidate
type ExperienceEntry struct {
	Dates            string   `json:"dates"`
	Company          string   `json:"company"`
	Industry         string   `json:"industry,omitempty"`
	Position         string   `json:"position"`
	Responsibilities []string `json:"responsibilities"`
	Technologies     []string `json:"technologies"`
}
