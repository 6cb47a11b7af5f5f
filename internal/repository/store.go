package repository

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/registrar-api/internal/models"
)

var (
	// ErrStaleVersion means a conditional write matched no row: the version
	// or precondition it was based on has since changed.
	ErrStaleVersion = errors.New("stale version")
	// ErrSerialization wraps SQLSTATE 40001/40P01 from a serializable transaction.
	ErrSerialization = errors.New("serialization failure")
	// ErrDuplicate wraps unique constraint violations.
	ErrDuplicate = errors.New("duplicate record")
)

// Retriable reports whether err is worth re-running the whole unit of work for.
func Retriable(err error) bool {
	return errors.Is(err, ErrStaleVersion) || errors.Is(err, ErrSerialization)
}

// CourseStore persists the course catalog.
type CourseStore interface {
	CreateCourse(ctx context.Context, course *models.Course) error
	FindCourseByID(ctx context.Context, id string) (*models.Course, error)
	FindCourseByCode(ctx context.Context, code string) (*models.Course, error)
	CreateVersion(ctx context.Context, version *models.CourseVersion) error
	ListVersions(ctx context.Context, courseID string) ([]models.CourseVersion, error)
	ActiveVersion(ctx context.Context, courseID string) (*models.CourseVersion, error)
	ActivePrerequisites(ctx context.Context) (map[string][]string, error)
	MissingCodes(ctx context.Context, codes []string) ([]string, error)
}

// TermStore reads term reference data.
type TermStore interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
	MarkStandingProcessed(ctx context.Context, id string, at time.Time) error
}

// SectionStore persists sections and their weekly slots. Mutations are
// conditional on the section version and bump it on success.
type SectionStore interface {
	Create(ctx context.Context, section *models.Section) error
	FindByID(ctx context.Context, id string) (*models.Section, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Section, error)
	ListByTerm(ctx context.Context, termID string) ([]models.Section, error)
	AdjustEnrollment(ctx context.Context, id string, version int64, delta int) error
	SetEnrollmentOpen(ctx context.Context, id string, version int64, open bool) error
	SaveGradeFlags(ctx context.Context, section *models.Section) error
}

// EnrollmentStore persists enrollments.
type EnrollmentStore interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindOpenByStudentCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	ListActiveByStudentTerm(ctx context.Context, studentID, termID string) ([]models.Enrollment, error)
	ListBySection(ctx context.Context, sectionID string, statuses ...models.EnrollmentStatus) ([]models.Enrollment, error)
	ListWaitlist(ctx context.Context, sectionID string) ([]models.Enrollment, error)
	TransitionStatus(ctx context.Context, id string, from, to models.EnrollmentStatus, at time.Time) error
}

// AssessmentStore persists section assessments.
type AssessmentStore interface {
	Create(ctx context.Context, assessment *models.Assessment) error
	FindByID(ctx context.Context, id string) (*models.Assessment, error)
	ListBySection(ctx context.Context, sectionID string) ([]models.Assessment, error)
}

// GradeStore persists raw scores and posted finals.
type GradeStore interface {
	Upsert(ctx context.Context, grade *models.Grade) error
	ListByEnrollments(ctx context.Context, enrollmentIDs []string) ([]models.Grade, error)
	UpsertFinal(ctx context.Context, final *models.FinalGrade) error
	FindFinal(ctx context.Context, enrollmentID string) (*models.FinalGrade, error)
}

// TranscriptStore persists materialized transcript entries.
type TranscriptStore interface {
	Upsert(ctx context.Context, entry *models.TranscriptEntry) error
	ListByStudent(ctx context.Context, studentID string) ([]models.TranscriptEntry, error)
	ListByTerm(ctx context.Context, termID string) ([]models.TranscriptEntry, error)
}

// StandingStore persists term standings.
type StandingStore interface {
	Upsert(ctx context.Context, record *models.StandingRecord) error
	ListByTerm(ctx context.Context, termID string) ([]models.StandingRecord, error)
}

// Tx exposes every store bound to one unit of work.
type Tx interface {
	Courses() CourseStore
	Terms() TermStore
	Sections() SectionStore
	Enrollments() EnrollmentStore
	Assessments() AssessmentStore
	Grades() GradeStore
	Transcripts() TranscriptStore
	Standings() StandingStore
}

// Store runs units of work. Atomic commits everything fn wrote or nothing;
// Read gives fn a consistent view without write guarantees.
type Store interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Read(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// AuditLog records audit trail entries outside of any unit of work so that
// rejected operations are captured as well.
type AuditLog interface {
	Record(ctx context.Context, entry *models.AuditEntry) error
	ListByEntity(ctx context.Context, entity, entityID string) ([]models.AuditEntry, error)
}
