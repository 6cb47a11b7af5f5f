package dto

// EnrollRequest asks for a seat, or a waitlist place when JoinWaitlist is set.
type EnrollRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	SectionID    string `json:"section_id" validate:"required"`
	JoinWaitlist bool   `json:"join_waitlist"`
}
