package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/registrar-api/internal/models"
)

const courseVersionColumns = `id, course_id, version, title, description, credits, prerequisites, active, created_at`

// CourseRepository persists courses and their versions.
type CourseRepository struct {
	db sqlx.ExtContext
}

// NewCourseRepository constructs repository.
func NewCourseRepository(db sqlx.ExtContext) *CourseRepository {
	return &CourseRepository{db: db}
}

// CreateCourse inserts a course row.
func (r *CourseRepository) CreateCourse(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if course.CreatedAt.IsZero() {
		course.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO courses (id, code, created_at) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, course.ID, course.Code, course.CreatedAt); err != nil {
		return mapError(fmt.Errorf("insert course: %w", err))
	}
	return nil
}

// FindCourseByID loads a course together with its active version.
func (r *CourseRepository) FindCourseByID(ctx context.Context, id string) (*models.Course, error) {
	return r.findCourse(ctx, `SELECT id, code, created_at FROM courses WHERE id = $1`, id)
}

// FindCourseByCode loads a course by its catalog code.
func (r *CourseRepository) FindCourseByCode(ctx context.Context, code string) (*models.Course, error) {
	return r.findCourse(ctx, `SELECT id, code, created_at FROM courses WHERE code = $1`, code)
}

func (r *CourseRepository) findCourse(ctx context.Context, query string, arg string) (*models.Course, error) {
	var course models.Course
	if err := sqlx.GetContext(ctx, r.db, &course, query, arg); err != nil {
		return nil, err
	}
	active, err := r.ActiveVersion(ctx, course.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	course.ActiveVersion = active
	return &course, nil
}

// CreateVersion inserts the next version of a course and makes it the only
// active one.
func (r *CourseRepository) CreateVersion(ctx context.Context, version *models.CourseVersion) error {
	if version.CourseID == "" {
		return fmt.Errorf("course_id is required")
	}
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}
	if version.Prerequisites == nil {
		version.Prerequisites = pq.StringArray{}
	}
	version.Active = true

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM course_versions WHERE course_id = $1`
	if err := sqlx.GetContext(ctx, r.db, &version.Version, nextVersionQuery, version.CourseID); err != nil {
		return fmt.Errorf("compute next course version: %w", err)
	}

	const deactivateQuery = `UPDATE course_versions SET active = FALSE WHERE course_id = $1 AND active`
	if _, err := r.db.ExecContext(ctx, deactivateQuery, version.CourseID); err != nil {
		return fmt.Errorf("deactivate course versions: %w", err)
	}

	const insertQuery = `INSERT INTO course_versions (` + courseVersionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, insertQuery,
		version.ID, version.CourseID, version.Version, version.Title, version.Description,
		version.Credits, version.Prerequisites, version.Active, version.CreatedAt,
	); err != nil {
		return mapError(fmt.Errorf("insert course version: %w", err))
	}
	return nil
}

// ListVersions returns all versions of a course, newest first.
func (r *CourseRepository) ListVersions(ctx context.Context, courseID string) ([]models.CourseVersion, error) {
	const query = `SELECT ` + courseVersionColumns + ` FROM course_versions WHERE course_id = $1 ORDER BY version DESC`
	var versions []models.CourseVersion
	if err := sqlx.SelectContext(ctx, r.db, &versions, query, courseID); err != nil {
		return nil, fmt.Errorf("list course versions: %w", err)
	}
	return versions, nil
}

// ActiveVersion returns the active version of a course.
func (r *CourseRepository) ActiveVersion(ctx context.Context, courseID string) (*models.CourseVersion, error) {
	const query = `SELECT ` + courseVersionColumns + ` FROM course_versions WHERE course_id = $1 AND active`
	var version models.CourseVersion
	if err := sqlx.GetContext(ctx, r.db, &version, query, courseID); err != nil {
		return nil, err
	}
	return &version, nil
}

// ActivePrerequisites returns the prerequisite edges of every active course
// version keyed by course code.
func (r *CourseRepository) ActivePrerequisites(ctx context.Context) (map[string][]string, error) {
	const query = `SELECT c.code, v.prerequisites
FROM courses c JOIN course_versions v ON v.course_id = c.id AND v.active`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load prerequisite edges: %w", err)
	}
	defer rows.Close()

	graph := make(map[string][]string)
	for rows.Next() {
		var (
			code    string
			prereqs pq.StringArray
		)
		if err := rows.Scan(&code, &prereqs); err != nil {
			return nil, fmt.Errorf("scan prerequisite edges: %w", err)
		}
		graph[code] = []string(prereqs)
	}
	return graph, rows.Err()
}

// MissingCodes returns the codes in codes that match no course.
func (r *CourseRepository) MissingCodes(ctx context.Context, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	const query = `SELECT code FROM UNNEST($1::text[]) AS code WHERE code NOT IN (SELECT code FROM courses) ORDER BY code`
	var missing []string
	if err := sqlx.SelectContext(ctx, r.db, &missing, query, pq.Array(codes)); err != nil {
		return nil, fmt.Errorf("check course codes: %w", err)
	}
	return missing, nil
}
