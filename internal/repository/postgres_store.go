package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqUniqueViolation      = "23505"
)

// PostgresStore runs units of work as SERIALIZABLE PostgreSQL transactions.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore constructs the store.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Atomic runs fn inside a serializable transaction.
func (s *PostgresStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return mapError(fmt.Errorf("begin transaction: %w", err))
	}
	if err := fn(ctx, newPgTx(tx)); err != nil {
		tx.Rollback() //nolint:errcheck
		return mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return mapError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// Read runs fn against the pool without a transaction.
func (s *PostgresStore) Read(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return mapError(fn(ctx, newPgTx(s.db)))
}

// Ping checks database connectivity for readiness probes.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type pgTx struct {
	courses     *CourseRepository
	terms       *TermRepository
	sections    *SectionRepository
	enrollments *EnrollmentRepository
	assessments *AssessmentRepository
	grades      *GradeRepository
	transcripts *TranscriptRepository
	standings   *StandingRepository
}

func newPgTx(ext sqlx.ExtContext) *pgTx {
	return &pgTx{
		courses:     NewCourseRepository(ext),
		terms:       NewTermRepository(ext),
		sections:    NewSectionRepository(ext),
		enrollments: NewEnrollmentRepository(ext),
		assessments: NewAssessmentRepository(ext),
		grades:      NewGradeRepository(ext),
		transcripts: NewTranscriptRepository(ext),
		standings:   NewStandingRepository(ext),
	}
}

func (t *pgTx) Courses() CourseStore         { return t.courses }
func (t *pgTx) Terms() TermStore             { return t.terms }
func (t *pgTx) Sections() SectionStore       { return t.sections }
func (t *pgTx) Enrollments() EnrollmentStore { return t.enrollments }
func (t *pgTx) Assessments() AssessmentStore { return t.assessments }
func (t *pgTx) Grades() GradeStore           { return t.grades }
func (t *pgTx) Transcripts() TranscriptStore { return t.transcripts }
func (t *pgTx) Standings() StandingStore     { return t.standings }

// mapError translates driver errors into the package sentinels while
// keeping the original in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqSerializationFailure, pqDeadlockDetected:
			return fmt.Errorf("%w: %w", ErrSerialization, err)
		case pqUniqueViolation:
			if !errors.Is(err, ErrDuplicate) {
				return fmt.Errorf("%w: %w", ErrDuplicate, err)
			}
		}
	}
	return err
}

func rowsAffected(res sql.Result, what string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if affected == 0 {
		return ErrStaleVersion
	}
	return nil
}
