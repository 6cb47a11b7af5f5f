package models

import "time"

// TranscriptEntry is a materialized, posted course result.
type TranscriptEntry struct {
	ID            string    `db:"id" json:"id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	EnrollmentID  string    `db:"enrollment_id" json:"enrollment_id"`
	SectionID     string    `db:"section_id" json:"section_id"`
	CourseID      string    `db:"course_id" json:"course_id"`
	CourseCode    string    `db:"course_code" json:"course_code"`
	CourseTitle   string    `db:"course_title" json:"course_title"`
	Credits       float64   `db:"credits" json:"credits"`
	TermID        string    `db:"term_id" json:"term_id"`
	TermName      string    `db:"term_name" json:"term_name"`
	TermStartDate time.Time `db:"term_start_date" json:"term_start_date"`
	Percentage    float64   `db:"percentage" json:"percentage"`
	Letter        Letter    `db:"letter" json:"letter"`
	GradePoints   float64   `db:"grade_points" json:"grade_points"`
	PostedAt      time.Time `db:"posted_at" json:"posted_at"`
	Revision      int       `db:"revision" json:"revision"`
}

// Passed reports whether the entry counts toward prerequisites.
func (e TranscriptEntry) Passed() bool {
	return e.GradePoints > 0
}

// TermTranscript groups a term's entries with its GPA.
type TermTranscript struct {
	TermID    string            `json:"term_id"`
	TermName  string            `json:"term_name"`
	StartDate time.Time         `json:"start_date"`
	Entries   []TranscriptEntry `json:"entries"`
	Credits   float64           `json:"credits"`
	GPA       float64           `json:"gpa"`
}

// Transcript is a student's full academic record.
type Transcript struct {
	StudentID     string           `json:"student_id"`
	Terms         []TermTranscript `json:"terms"`
	TotalCredits  float64          `json:"total_credits"`
	CumulativeGPA float64          `json:"cumulative_gpa"`
	GeneratedAt   time.Time        `json:"generated_at"`
}

// StudentTermGPA is a per-student GPA for one term.
type StudentTermGPA struct {
	StudentID string  `json:"student_id"`
	TermID    string  `json:"term_id"`
	Credits   float64 `json:"credits"`
	GPA       float64 `json:"gpa"`
}
