package models

import "time"

// Standing is the academic standing bucket derived from term GPA.
type Standing string

// Standing buckets, highest first.
const (
	StandingFirstClass  Standing = "FIRST_CLASS"
	StandingSecondUpper Standing = "SECOND_UPPER"
	StandingSecondLower Standing = "SECOND_LOWER"
	StandingThirdClass  Standing = "THIRD_CLASS"
	StandingProbation   Standing = "PROBATION"
)

// AllStandings lists the buckets in report order.
var AllStandings = []Standing{
	StandingFirstClass,
	StandingSecondUpper,
	StandingSecondLower,
	StandingThirdClass,
	StandingProbation,
}

// StandingRecord stores the computed standing of a student for a term.
type StandingRecord struct {
	StudentID   string    `db:"student_id" json:"student_id"`
	TermID      string    `db:"term_id" json:"term_id"`
	GPA         float64   `db:"gpa" json:"gpa"`
	Credits     float64   `db:"credits" json:"credits"`
	Standing    Standing  `db:"standing" json:"standing"`
	ProcessedAt time.Time `db:"processed_at" json:"processed_at"`
}

// TermEndReport summarises a term-end run.
type TermEndReport struct {
	TermID            string           `json:"term_id"`
	StudentsProcessed int              `json:"students_processed"`
	StandingCounts    map[Standing]int `json:"standing_counts"`
	SectionsLocked    int              `json:"sections_locked"`
	ProcessedAt       time.Time        `json:"processed_at"`
}
