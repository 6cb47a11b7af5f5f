// Package memory is an in-process implementation of the repository stores.
// Units of work run one at a time against a private copy of the data that
// replaces the shared state only when the unit succeeds.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/repository"
)

type state struct {
	terms       map[string]models.Term
	courses     map[string]models.Course
	versions    map[string]models.CourseVersion
	sections    map[string]models.Section
	enrollments map[string]models.Enrollment
	assessments map[string]models.Assessment
	grades      map[string]models.Grade
	finals      map[string]models.FinalGrade
	transcripts map[string]models.TranscriptEntry
	standings   map[string]models.StandingRecord
}

func newState() *state {
	return &state{
		terms:       map[string]models.Term{},
		courses:     map[string]models.Course{},
		versions:    map[string]models.CourseVersion{},
		sections:    map[string]models.Section{},
		enrollments: map[string]models.Enrollment{},
		assessments: map[string]models.Assessment{},
		grades:      map[string]models.Grade{},
		finals:      map[string]models.FinalGrade{},
		transcripts: map[string]models.TranscriptEntry{},
		standings:   map[string]models.StandingRecord{},
	}
}

func cloneMap[V any](src map[string]V) map[string]V {
	out := make(map[string]V, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		terms:       cloneMap(s.terms),
		courses:     cloneMap(s.courses),
		versions:    cloneMap(s.versions),
		sections:    cloneMap(s.sections),
		enrollments: cloneMap(s.enrollments),
		assessments: cloneMap(s.assessments),
		grades:      cloneMap(s.grades),
		finals:      cloneMap(s.finals),
		transcripts: cloneMap(s.transcripts),
		standings:   cloneMap(s.standings),
	}
}

// Store implements repository.Store in memory.
type Store struct {
	mu    sync.RWMutex
	data  *state
	clock *clock
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{data: newState(), clock: &clock{}}
}

// Atomic runs fn against a private copy and publishes it if fn succeeds.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(ctx, &tx{data: work, clock: s.clock}); err != nil {
		return err
	}
	s.data = work
	return nil
}

// Read runs fn against a snapshot.
func (s *Store) Read(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()
	return fn(ctx, &tx{data: snapshot, clock: s.clock})
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// PutTerm inserts or replaces term reference data.
func (s *Store) PutTerm(term models.Term) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.terms[term.ID] = term
}

// clock hands out strictly increasing timestamps so FIFO ordering by
// creation time never ties.
type clock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := time.Now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

type tx struct {
	data  *state
	clock *clock
}

func (t *tx) Courses() repository.CourseStore         { return courseStore{t} }
func (t *tx) Terms() repository.TermStore             { return termStore{t} }
func (t *tx) Sections() repository.SectionStore       { return sectionStore{t} }
func (t *tx) Enrollments() repository.EnrollmentStore { return enrollmentStore{t} }
func (t *tx) Assessments() repository.AssessmentStore { return assessmentStore{t} }
func (t *tx) Grades() repository.GradeStore           { return gradeStore{t} }
func (t *tx) Transcripts() repository.TranscriptStore { return transcriptStore{t} }
func (t *tx) Standings() repository.StandingStore     { return standingStore{t} }
