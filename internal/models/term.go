package models

import "time"

// Term models an academic term. Terms are reference data maintained
// elsewhere; the core only reads them and stamps term-end processing.
type Term struct {
	ID                  string     `db:"id" json:"id"`
	Name                string     `db:"name" json:"name"`
	StartDate           time.Time  `db:"start_date" json:"start_date"`
	EndDate             time.Time  `db:"end_date" json:"end_date"`
	EnrollmentDeadline  *time.Time `db:"enrollment_deadline" json:"enrollment_deadline,omitempty"`
	Closed              bool       `db:"closed" json:"closed"`
	StandingProcessedAt *time.Time `db:"standing_processed_at" json:"standing_processed_at,omitempty"`
}

// AcceptsEnrollment reports whether the term still admits students at now.
// A term that went through term-end processing admits nobody.
func (t *Term) AcceptsEnrollment(now time.Time) bool {
	if t == nil || t.Closed || t.StandingProcessedAt != nil {
		return false
	}
	if t.EnrollmentDeadline != nil && now.After(*t.EnrollmentDeadline) {
		return false
	}
	return true
}
