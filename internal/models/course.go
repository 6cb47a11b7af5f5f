package models

import (
	"time"

	"github.com/lib/pq"
)

// Course is a catalog entry identified by a unique code.
type Course struct {
	ID            string         `db:"id" json:"id"`
	Code          string         `db:"code" json:"code"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	ActiveVersion *CourseVersion `db:"-" json:"active_version,omitempty"`
}

// CourseVersion is an immutable revision of a course's descriptive data and
// prerequisites. Exactly one version per course is active.
type CourseVersion struct {
	ID            string         `db:"id" json:"id"`
	CourseID      string         `db:"course_id" json:"course_id"`
	Version       int            `db:"version" json:"version"`
	Title         string         `db:"title" json:"title"`
	Description   string         `db:"description" json:"description"`
	Credits       float64        `db:"credits" json:"credits"`
	Prerequisites pq.StringArray `db:"prerequisites" json:"prerequisites"`
	Active        bool           `db:"active" json:"active"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// PrerequisiteValidation is the outcome of a cycle check.
type PrerequisiteValidation struct {
	Valid bool     `json:"valid"`
	Cycle []string `json:"cycle,omitempty"`
}

// PrerequisiteGraph is the display view of a course's dependency graph.
type PrerequisiteGraph struct {
	Root       string                 `json:"root"`
	Graph      map[string][]string    `json:"graph"`
	Validation PrerequisiteValidation `json:"validation"`
	Chains     [][]string             `json:"chains,omitempty"`
}
