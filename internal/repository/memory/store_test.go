package memory

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/repository"
)

func TestAtomicDiscardsFailedUnit(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		require.NoError(t, tx.Courses().CreateCourse(ctx, &models.Course{ID: "c1", Code: "CS101"}))
		return errors.New("abort")
	})
	require.Error(t, err)

	err = store.Read(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.Courses().FindCourseByID(ctx, "c1")
		return err
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSectionAdjustEnrollmentIsConditional(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.Sections().Create(ctx, &models.Section{ID: "s1", Capacity: 1})
	})
	require.NoError(t, err)

	err = store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.Sections().AdjustEnrollment(ctx, "s1", 1, 1)
	})
	require.NoError(t, err)

	err = store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.Sections().AdjustEnrollment(ctx, "s1", 1, -1)
	})
	assert.ErrorIs(t, err, repository.ErrStaleVersion)

	err = store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.Sections().AdjustEnrollment(ctx, "s1", 2, 1)
	})
	assert.ErrorIs(t, err, repository.ErrStaleVersion, "capacity must hold")
}

func TestEnrollmentOpenUniquePerCourse(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		first := &models.Enrollment{StudentID: "stu", CourseID: "c1", Status: models.EnrollmentStatusActive}
		require.NoError(t, tx.Enrollments().Create(ctx, first))
		second := &models.Enrollment{StudentID: "stu", CourseID: "c1", Status: models.EnrollmentStatusWaitlisted}
		assert.ErrorIs(t, tx.Enrollments().Create(ctx, second), repository.ErrDuplicate)

		require.NoError(t, tx.Enrollments().TransitionStatus(ctx, first.ID, models.EnrollmentStatusActive, models.EnrollmentStatusDropped, first.CreatedAt))
		return tx.Enrollments().Create(ctx, second)
	})
	require.NoError(t, err)
}

func TestWaitlistOrderIsFIFO(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	var ids []string
	for _, student := range []string{"zed", "amy", "kim"} {
		err := store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
			e := &models.Enrollment{StudentID: student, CourseID: "c1", SectionID: "s1", Status: models.EnrollmentStatusWaitlisted}
			if err := tx.Enrollments().Create(ctx, e); err != nil {
				return err
			}
			ids = append(ids, e.ID)
			return nil
		})
		require.NoError(t, err)
	}

	err := store.Read(ctx, func(ctx context.Context, tx repository.Tx) error {
		list, err := tx.Enrollments().ListWaitlist(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, list, 3)
		for i := range ids {
			assert.Equal(t, ids[i], list[i].ID)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestTranscriptUpsertBumpsRevision(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		entry := &models.TranscriptEntry{EnrollmentID: "e1", StudentID: "stu", GradePoints: 4}
		require.NoError(t, tx.Transcripts().Upsert(ctx, entry))
		assert.Equal(t, 1, entry.Revision)

		again := &models.TranscriptEntry{EnrollmentID: "e1", StudentID: "stu", GradePoints: 5}
		require.NoError(t, tx.Transcripts().Upsert(ctx, again))
		assert.Equal(t, 2, again.Revision)
		assert.Equal(t, entry.ID, again.ID)
		return nil
	})
	require.NoError(t, err)
}
