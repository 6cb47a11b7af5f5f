package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Audit actions recorded by the academic core.
const (
	AuditActionEnroll         = "ENROLLMENT_ADMIT"
	AuditActionWaitlist       = "ENROLLMENT_WAITLIST"
	AuditActionAdmitRejected  = "ENROLLMENT_REJECTED"
	AuditActionDrop           = "ENROLLMENT_DROP"
	AuditActionPromote        = "ENROLLMENT_PROMOTE"
	AuditActionPromoteSkipped = "ENROLLMENT_PROMOTE_SKIPPED"
	AuditActionGradeUpdate    = "GRADE_UPDATE"
	AuditActionFinalPosted    = "FINAL_GRADES_POSTED"
	AuditActionSectionLock    = "SECTION_LOCK"
	AuditActionSectionUnlock  = "SECTION_UNLOCK"
	AuditActionSectionCreate  = "SECTION_CREATE"
	AuditActionSectionWindow  = "SECTION_ENROLLMENT_WINDOW"
	AuditActionCourseVersion  = "COURSE_VERSION_PUBLISH"
	AuditActionTermEnd        = "TERM_END_PROCESSED"
)

// Audit entity names.
const (
	AuditEntityEnrollment = "enrollment"
	AuditEntitySection    = "section"
	AuditEntityGrade      = "grade"
	AuditEntityCourse     = "course"
	AuditEntityTerm       = "term"
)

// AuditEntry represents an immutable audit trail record.
type AuditEntry struct {
	ID        string         `db:"id" json:"id"`
	ActorID   string         `db:"actor_id" json:"actor_id"`
	Action    string         `db:"action" json:"action"`
	Entity    string         `db:"entity" json:"entity"`
	EntityID  string         `db:"entity_id" json:"entity_id"`
	Details   types.JSONText `db:"details" json:"details,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
