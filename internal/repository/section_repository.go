package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/registrar-api/internal/models"
)

const sectionColumns = `id, course_id, term_id, capacity, enrolled_count, instructor_id, is_open_for_enrollment,
final_grades_posted, grades_locked, grades_unlocked, unlock_reason, version, created_at`

// SectionRepository persists sections and their weekly slots.
type SectionRepository struct {
	db sqlx.ExtContext
}

// NewSectionRepository constructs repository.
func NewSectionRepository(db sqlx.ExtContext) *SectionRepository {
	return &SectionRepository{db: db}
}

type slotRow struct {
	SectionID string `db:"section_id"`
	models.ScheduleSlot
}

// Create inserts a section and its slots.
func (r *SectionRepository) Create(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	if section.CreatedAt.IsZero() {
		section.CreatedAt = time.Now().UTC()
	}
	if section.Version == 0 {
		section.Version = 1
	}

	const insertQuery = `INSERT INTO sections (` + sectionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if _, err := r.db.ExecContext(ctx, insertQuery,
		section.ID, section.CourseID, section.TermID, section.Capacity, section.EnrolledCount,
		section.InstructorID, section.IsOpenForEnrollment, section.FinalGradesPosted,
		section.GradesLocked, section.GradesUnlocked, section.UnlockReason, section.Version, section.CreatedAt,
	); err != nil {
		return mapError(fmt.Errorf("insert section: %w", err))
	}

	const slotQuery = `INSERT INTO section_slots (section_id, position, day, start_minute, end_minute, room)
VALUES ($1, $2, $3, $4, $5, $6)`
	for i, slot := range section.Slots {
		if _, err := r.db.ExecContext(ctx, slotQuery, section.ID, i, slot.Day, slot.Start, slot.End, slot.Room); err != nil {
			return fmt.Errorf("insert section slot: %w", err)
		}
	}
	return nil
}

// FindByID loads a section with its slots.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	const query = `SELECT ` + sectionColumns + ` FROM sections WHERE id = $1`
	var section models.Section
	if err := sqlx.GetContext(ctx, r.db, &section, query, id); err != nil {
		return nil, err
	}
	sections := []models.Section{section}
	if err := r.attachSlots(ctx, sections); err != nil {
		return nil, err
	}
	return &sections[0], nil
}

// ListByIDs loads the given sections with their slots.
func (r *SectionRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Section, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT ` + sectionColumns + ` FROM sections WHERE id = ANY($1) ORDER BY id`
	return r.list(ctx, query, pq.Array(ids))
}

// ListByTerm loads every section of a term.
func (r *SectionRepository) ListByTerm(ctx context.Context, termID string) ([]models.Section, error) {
	const query = `SELECT ` + sectionColumns + ` FROM sections WHERE term_id = $1 ORDER BY id`
	return r.list(ctx, query, termID)
}

func (r *SectionRepository) list(ctx context.Context, query string, arg interface{}) ([]models.Section, error) {
	var sections []models.Section
	if err := sqlx.SelectContext(ctx, r.db, &sections, query, arg); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	if err := r.attachSlots(ctx, sections); err != nil {
		return nil, err
	}
	return sections, nil
}

func (r *SectionRepository) attachSlots(ctx context.Context, sections []models.Section) error {
	if len(sections) == 0 {
		return nil
	}
	ids := make([]string, len(sections))
	index := make(map[string]int, len(sections))
	for i, s := range sections {
		ids[i] = s.ID
		index[s.ID] = i
	}
	const query = `SELECT section_id, day, start_minute, end_minute, room FROM section_slots
WHERE section_id = ANY($1) ORDER BY section_id, position`
	var rows []slotRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("load section slots: %w", err)
	}
	for _, row := range rows {
		i := index[row.SectionID]
		sections[i].Slots = append(sections[i].Slots, row.ScheduleSlot)
	}
	return nil
}

// AdjustEnrollment changes the seat count by delta if the section is still at
// version and the new count stays within [0, capacity].
func (r *SectionRepository) AdjustEnrollment(ctx context.Context, id string, version int64, delta int) error {
	const query = `UPDATE sections SET enrolled_count = enrolled_count + $1, version = version + 1
WHERE id = $2 AND version = $3 AND enrolled_count + $1 >= 0 AND enrolled_count + $1 <= capacity`
	res, err := r.db.ExecContext(ctx, query, delta, id, version)
	if err != nil {
		return fmt.Errorf("adjust section enrollment: %w", err)
	}
	return rowsAffected(res, "adjust section enrollment")
}

// SetEnrollmentOpen opens or closes the enrollment window.
func (r *SectionRepository) SetEnrollmentOpen(ctx context.Context, id string, version int64, open bool) error {
	const query = `UPDATE sections SET is_open_for_enrollment = $1, version = version + 1 WHERE id = $2 AND version = $3`
	res, err := r.db.ExecContext(ctx, query, open, id, version)
	if err != nil {
		return fmt.Errorf("set section enrollment window: %w", err)
	}
	return rowsAffected(res, "set section enrollment window")
}

// SaveGradeFlags writes the posting and lock flags of section, bumping its
// version in place on success.
func (r *SectionRepository) SaveGradeFlags(ctx context.Context, section *models.Section) error {
	const query = `UPDATE sections SET final_grades_posted = $1, grades_locked = $2, grades_unlocked = $3,
unlock_reason = $4, version = version + 1 WHERE id = $5 AND version = $6`
	res, err := r.db.ExecContext(ctx, query,
		section.FinalGradesPosted, section.GradesLocked, section.GradesUnlocked,
		section.UnlockReason, section.ID, section.Version,
	)
	if err != nil {
		return fmt.Errorf("save section grade flags: %w", err)
	}
	if err := rowsAffected(res, "save section grade flags"); err != nil {
		return err
	}
	section.Version++
	return nil
}
