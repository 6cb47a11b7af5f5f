package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/grading"
	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/repository"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

// TranscriptService assembles transcripts from posted results.
type TranscriptService struct {
	run    runner
	logger *zap.Logger
	now    func() time.Time
}

// NewTranscriptService constructs a TranscriptService.
func NewTranscriptService(store repository.Store, metrics *MetricsService, logger *zap.Logger) *TranscriptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscriptService{run: newRunner(store, RetryConfig{}, metrics, logger), logger: logger, now: time.Now}
}

// GetFullTranscript returns a student's record grouped by term in start
// date order, with term and cumulative GPAs.
func (s *TranscriptService) GetFullTranscript(ctx context.Context, principal *models.Principal, studentID string) (*models.Transcript, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if principal.ID != studentID && !principal.IsStaff() {
		return nil, appErrors.Clone(appErrors.ErrAccessDenied, "not allowed to view this transcript")
	}

	entries, err := read(ctx, s.run, "load transcript", func(ctx context.Context, tx repository.Tx) ([]models.TranscriptEntry, error) {
		return tx.Transcripts().ListByStudent(ctx, studentID)
	})
	if err != nil {
		return nil, err
	}
	return BuildTranscript(studentID, entries, s.now().UTC()), nil
}

// BuildTranscript groups entries by term. Entries are expected in term
// start date order; terms keep the order of their first entry.
func BuildTranscript(studentID string, entries []models.TranscriptEntry, generatedAt time.Time) *models.Transcript {
	transcript := &models.Transcript{StudentID: studentID, Terms: []models.TermTranscript{}, GeneratedAt: generatedAt}
	index := make(map[string]int)
	for _, e := range entries {
		i, ok := index[e.TermID]
		if !ok {
			i = len(transcript.Terms)
			index[e.TermID] = i
			transcript.Terms = append(transcript.Terms, models.TermTranscript{
				TermID:    e.TermID,
				TermName:  e.TermName,
				StartDate: e.TermStartDate,
			})
		}
		transcript.Terms[i].Entries = append(transcript.Terms[i].Entries, e)
	}
	for i := range transcript.Terms {
		term := &transcript.Terms[i]
		term.GPA, term.Credits = grading.GPA(term.Entries)
	}
	transcript.CumulativeGPA, transcript.TotalCredits = grading.GPA(entries)
	return transcript
}

// TermGPAs returns the GPA of every student with a posted result in the term,
// ordered by student.
func (s *TranscriptService) TermGPAs(ctx context.Context, termID string) ([]models.StudentTermGPA, error) {
	entries, err := read(ctx, s.run, "load term results", func(ctx context.Context, tx repository.Tx) ([]models.TranscriptEntry, error) {
		if _, err := tx.Terms().FindByID(ctx, termID); err != nil {
			return nil, notFound(err, "term")
		}
		return tx.Transcripts().ListByTerm(ctx, termID)
	})
	if err != nil {
		return nil, err
	}
	return termGPAs(termID, entries), nil
}

func termGPAs(termID string, entries []models.TranscriptEntry) []models.StudentTermGPA {
	byStudent := make(map[string][]models.TranscriptEntry)
	for _, e := range entries {
		byStudent[e.StudentID] = append(byStudent[e.StudentID], e)
	}
	out := make([]models.StudentTermGPA, 0, len(byStudent))
	for studentID, list := range byStudent {
		gpa, credits := grading.GPA(list)
		out = append(out, models.StudentTermGPA{StudentID: studentID, TermID: termID, GPA: gpa, Credits: credits})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}
