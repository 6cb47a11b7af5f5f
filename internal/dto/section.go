package dto

import "github.com/noah-isme/registrar-api/internal/models"

// CreateSectionRequest schedules a new section of a course in a term.
type CreateSectionRequest struct {
	CourseID            string                `json:"course_id" validate:"required"`
	TermID              string                `json:"term_id" validate:"required"`
	Capacity            int                   `json:"capacity" validate:"gt=0"`
	InstructorID        *string               `json:"instructor_id"`
	IsOpenForEnrollment bool                  `json:"is_open_for_enrollment"`
	Slots               []models.ScheduleSlot `json:"slots" validate:"required,min=1,dive"`
}

// SetEnrollmentWindowRequest opens or closes a section for enrollment.
type SetEnrollmentWindowRequest struct {
	Open *bool `json:"open" validate:"required"`
}

// SetLockRequest locks or unlocks grade editing on a section.
type SetLockRequest struct {
	Locked *bool  `json:"locked" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}
