package models

import "time"

// Letter is a banded letter grade.
type Letter string

// Letter bands from highest to lowest.
const (
	LetterA Letter = "A"
	LetterB Letter = "B"
	LetterC Letter = "C"
	LetterD Letter = "D"
	LetterE Letter = "E"
	LetterF Letter = "F"
)

// Grade stores a raw score for one assessment of one enrollment.
type Grade struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	AssessmentID string    `db:"assessment_id" json:"assessment_id"`
	Score        float64   `db:"score" json:"score"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// FinalGrade is the authoritative course grade written when grades are posted.
type FinalGrade struct {
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	Percentage   float64   `db:"percentage" json:"percentage"`
	Letter       Letter    `db:"letter" json:"letter"`
	Points       float64   `db:"points" json:"points"`
	PostedAt     time.Time `db:"posted_at" json:"posted_at"`
}

// ScoreEntry is a single score submitted through UpdateGrades.
type ScoreEntry struct {
	EnrollmentID string  `json:"enrollment_id" validate:"required"`
	AssessmentID string  `json:"assessment_id" validate:"required"`
	Score        float64 `json:"score"`
}

// GradeUpdateResult summarises an UpdateGrades call.
type GradeUpdateResult struct {
	Updated     int      `json:"updated"`
	Sections    []string `json:"sections"`
	Regenerated int      `json:"regenerated"`
}

// ProjectedGrade is the live, non-authoritative view of an enrollment's grade.
type ProjectedGrade struct {
	EnrollmentID string   `json:"enrollment_id"`
	Complete     bool     `json:"complete"`
	Percentage   *float64 `json:"percentage,omitempty"`
	Letter       *Letter  `json:"letter,omitempty"`
	Points       *float64 `json:"points,omitempty"`
	Graded       int      `json:"graded"`
	Assessments  int      `json:"assessments"`
}

// PostingResult summarises a successful PostFinalGrades call.
type PostingResult struct {
	SectionID     string       `json:"section_id"`
	Posted        int          `json:"posted"`
	AlreadyPosted bool         `json:"already_posted"`
	Finals        []FinalGrade `json:"finals"`
}
