package models

// MissingPrerequisitesDetails lists the course codes the student has not passed.
type MissingPrerequisitesDetails struct {
	Missing []string `json:"missing"`
}

// SectionConflict names one active section that overlaps the requested one.
type SectionConflict struct {
	CourseCode string         `json:"course_code"`
	SectionID  string         `json:"section_id"`
	Slots      []ScheduleSlot `json:"slots"`
}

// ScheduleConflictDetails carries every overlapping section.
type ScheduleConflictDetails struct {
	Conflicts []SectionConflict `json:"conflicts"`
}

// SectionFullDetails reports the capacity that was exhausted.
type SectionFullDetails struct {
	Capacity      int `json:"capacity"`
	EnrolledCount int `json:"enrolled_count"`
}

// InvalidScoreDetails reports an out-of-range score.
type InvalidScoreDetails struct {
	EnrollmentID string  `json:"enrollment_id"`
	AssessmentID string  `json:"assessment_id"`
	Value        float64 `json:"value"`
	Max          float64 `json:"max"`
}

// InvalidWeightsDetails reports the actual assessment weight total.
type InvalidWeightsDetails struct {
	Total float64 `json:"total"`
}

// MissingGradeSet lists the ungraded assessments of one enrollment.
type MissingGradeSet struct {
	EnrollmentID  string   `json:"enrollment_id"`
	StudentID     string   `json:"student_id"`
	AssessmentIDs []string `json:"assessment_ids"`
}

// MissingGradesDetails carries every incomplete grade set of a section.
type MissingGradesDetails struct {
	Missing []MissingGradeSet `json:"missing"`
}

// CircularPrerequisiteDetails carries the detected cycle, first node repeated last.
type CircularPrerequisiteDetails struct {
	Cycle []string `json:"cycle"`
}

// CheckOutcome is one step of the admission check trail written to the audit log.
type CheckOutcome struct {
	Check  string `json:"check"`
	Passed bool   `json:"passed"`
	Code   string `json:"code,omitempty"`
}
