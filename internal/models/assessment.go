package models

import "time"

// Assessment is one weighted, graded component of a section.
type Assessment struct {
	ID          string     `db:"id" json:"id"`
	SectionID   string     `db:"section_id" json:"section_id"`
	Title       string     `db:"title" json:"title"`
	Weight      float64    `db:"weight" json:"weight"`
	TotalPoints float64    `db:"total_points" json:"total_points"`
	DueDate     *time.Time `db:"due_date" json:"due_date,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// AssessmentResult wraps a created assessment with the section weight state.
type AssessmentResult struct {
	Assessment  Assessment `json:"assessment"`
	WeightTotal float64    `json:"weight_total"`
	Warning     string     `json:"warning,omitempty"`
}
