package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/registrar-api/internal/models"
)

var enrollmentRowColumns = []string{"id", "student_id", "section_id", "course_id", "term_id", "status", "created_at", "dropped_at", "completed_at"}

func TestEnrollmentRepositoryCreateMapsDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Enrollment{StudentID: "stu-1", CourseID: "c-1", Status: models.EnrollmentStatusActive})
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListWaitlistOrdersFIFO(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(enrollmentRowColumns).
		AddRow("enr-1", "stu-1", "sec-1", "c-1", "t-1", "WAITLISTED", now, nil, nil).
		AddRow("enr-2", "stu-2", "sec-1", "c-1", "t-1", "WAITLISTED", now.Add(time.Second), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE section_id = $1 AND status = ANY($2) ORDER BY created_at, id")).
		WithArgs("sec-1", pq.Array([]string{"WAITLISTED"})).
		WillReturnRows(rows)

	list, err := repo.ListWaitlist(context.Background(), "sec-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "enr-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryTransitionStampsDrop(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $1, dropped_at = $4 WHERE id = $2 AND status = $3")).
		WithArgs(models.EnrollmentStatusDropped, "enr-1", models.EnrollmentStatusActive, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.TransitionStatus(context.Background(), "enr-1", models.EnrollmentStatusActive, models.EnrollmentStatusDropped, at)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
