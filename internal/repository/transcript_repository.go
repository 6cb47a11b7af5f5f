package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/registrar-api/internal/models"
)

const transcriptColumns = `id, student_id, enrollment_id, section_id, course_id, course_code, course_title, credits,
term_id, term_name, term_start_date, percentage, letter, grade_points, posted_at, revision`

// TranscriptRepository persists materialized transcript entries.
type TranscriptRepository struct {
	db sqlx.ExtContext
}

// NewTranscriptRepository constructs repository.
func NewTranscriptRepository(db sqlx.ExtContext) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// Upsert writes the entry for an enrollment. Rewriting an existing entry
// bumps its revision; entry.Revision reflects the stored value afterwards.
func (r *TranscriptRepository) Upsert(ctx context.Context, entry *models.TranscriptEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	const query = `INSERT INTO transcript_entries (` + transcriptColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 1)
ON CONFLICT (enrollment_id) DO UPDATE SET
    percentage = EXCLUDED.percentage,
    letter = EXCLUDED.letter,
    grade_points = EXCLUDED.grade_points,
    course_title = EXCLUDED.course_title,
    credits = EXCLUDED.credits,
    posted_at = EXCLUDED.posted_at,
    revision = transcript_entries.revision + 1
RETURNING id, revision`
	row := r.db.QueryRowxContext(ctx, query,
		entry.ID, entry.StudentID, entry.EnrollmentID, entry.SectionID, entry.CourseID,
		entry.CourseCode, entry.CourseTitle, entry.Credits, entry.TermID, entry.TermName,
		entry.TermStartDate, entry.Percentage, entry.Letter, entry.GradePoints, entry.PostedAt,
	)
	if err := row.Scan(&entry.ID, &entry.Revision); err != nil {
		return mapError(fmt.Errorf("upsert transcript entry: %w", err))
	}
	return nil
}

// ListByStudent returns a student's entries ordered by term start then course code.
func (r *TranscriptRepository) ListByStudent(ctx context.Context, studentID string) ([]models.TranscriptEntry, error) {
	const query = `SELECT ` + transcriptColumns + ` FROM transcript_entries
WHERE student_id = $1 ORDER BY term_start_date, term_id, course_code`
	var entries []models.TranscriptEntry
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, studentID); err != nil {
		return nil, fmt.Errorf("list student transcript: %w", err)
	}
	return entries, nil
}

// ListByTerm returns every entry of a term ordered by student.
func (r *TranscriptRepository) ListByTerm(ctx context.Context, termID string) ([]models.TranscriptEntry, error) {
	const query = `SELECT ` + transcriptColumns + ` FROM transcript_entries
WHERE term_id = $1 ORDER BY student_id, course_code`
	var entries []models.TranscriptEntry
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, termID); err != nil {
		return nil, fmt.Errorf("list term transcript entries: %w", err)
	}
	return entries, nil
}
