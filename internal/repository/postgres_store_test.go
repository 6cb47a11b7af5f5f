package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStoreAtomicCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewPostgresStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sections SET is_open_for_enrollment = $1")).
		WithArgs(true, "sec-1", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Atomic(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.Sections().SetEnrollmentOpen(ctx, "sec-1", 3, true)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreAtomicRollsBackStaleWrite(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewPostgresStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sections SET enrolled_count = enrolled_count + $1")).
		WithArgs(1, "sec-1", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.Atomic(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.Sections().AdjustEnrollment(ctx, "sec-1", 7, 1)
	})
	assert.ErrorIs(t, err, ErrStaleVersion)
	assert.True(t, Retriable(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreMapsSerializationFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewPostgresStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $1")).
		WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectRollback()

	err := store.Atomic(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.Enrollments().TransitionStatus(ctx, "enr-1", "WAITLISTED", "ACTIVE", timeZero)
	})
	assert.ErrorIs(t, err, ErrSerialization)
	assert.True(t, Retriable(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMapErrorDuplicate(t *testing.T) {
	err := mapError(&pq.Error{Code: "23505"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.False(t, Retriable(err))
	assert.Nil(t, mapError(nil))

	plain := errors.New("boom")
	assert.Equal(t, plain, mapError(plain))
}
