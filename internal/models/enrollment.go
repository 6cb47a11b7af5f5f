package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive     EnrollmentStatus = "ACTIVE"
	EnrollmentStatusWaitlisted EnrollmentStatus = "WAITLISTED"
	EnrollmentStatusDropped    EnrollmentStatus = "DROPPED"
	EnrollmentStatusCompleted  EnrollmentStatus = "COMPLETED"
)

// Enrollment captures a student's relationship to a section.
type Enrollment struct {
	ID          string           `db:"id" json:"id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	SectionID   string           `db:"section_id" json:"section_id"`
	CourseID    string           `db:"course_id" json:"course_id"`
	TermID      string           `db:"term_id" json:"term_id"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	DroppedAt   *time.Time       `db:"dropped_at" json:"dropped_at,omitempty"`
	CompletedAt *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
}

// Open reports whether the enrollment still holds or queues for a seat.
func (e *Enrollment) Open() bool {
	return e.Status == EnrollmentStatusActive || e.Status == EnrollmentStatusWaitlisted
}

// AdmissionResult is the successful outcome of an admission attempt.
type AdmissionResult struct {
	Enrollment       Enrollment       `json:"enrollment"`
	Status           EnrollmentStatus `json:"status"`
	WaitlistPosition int              `json:"waitlist_position,omitempty"`
}

// DropResult reports a drop and the promotion it triggered, if any.
type DropResult struct {
	Dropped  Enrollment   `json:"dropped"`
	Promoted *Enrollment  `json:"promoted,omitempty"`
	Skipped  []Enrollment `json:"skipped,omitempty"`
}

// WaitlistEntry is a waitlisted enrollment with its FIFO position.
type WaitlistEntry struct {
	Position   int        `json:"position"`
	Enrollment Enrollment `json:"enrollment"`
}
