package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Weekday identifies a day of the teaching week.
type Weekday string

const (
	Monday    Weekday = "MON"
	Tuesday   Weekday = "TUE"
	Wednesday Weekday = "WED"
	Thursday  Weekday = "THU"
	Friday    Weekday = "FRI"
	Saturday  Weekday = "SAT"
	Sunday    Weekday = "SUN"
)

// Valid reports whether d is a known weekday.
func (d Weekday) Valid() bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return true
	}
	return false
}

// ClockTime is a time of day in minutes after midnight. It travels as
// "HH:MM" in JSON and as an integer column in storage.
type ClockTime int

// ParseClock parses "HH:MM".
func ParseClock(raw string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", raw, err)
	}
	return ClockTime(t.Hour()*60 + t.Minute()), nil
}

// String renders the time as "HH:MM".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MarshalJSON implements json.Marshaler.
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseClock(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ScheduleSlot is one weekly meeting of a section. The interval is half-open.
type ScheduleSlot struct {
	Day   Weekday   `db:"day" json:"day"`
	Start ClockTime `db:"start_minute" json:"start"`
	End   ClockTime `db:"end_minute" json:"end"`
	Room  string    `db:"room" json:"room"`
}

// Section is one scheduled offering of a course in a term.
type Section struct {
	ID                  string         `db:"id" json:"id"`
	CourseID            string         `db:"course_id" json:"course_id"`
	TermID              string         `db:"term_id" json:"term_id"`
	Capacity            int            `db:"capacity" json:"capacity"`
	EnrolledCount       int            `db:"enrolled_count" json:"enrolled_count"`
	InstructorID        *string        `db:"instructor_id" json:"instructor_id,omitempty"`
	IsOpenForEnrollment bool           `db:"is_open_for_enrollment" json:"is_open_for_enrollment"`
	FinalGradesPosted   bool           `db:"final_grades_posted" json:"final_grades_posted"`
	GradesLocked        bool           `db:"grades_locked" json:"grades_locked"`
	GradesUnlocked      bool           `db:"grades_unlocked" json:"grades_unlocked"`
	UnlockReason        *string        `db:"unlock_reason" json:"unlock_reason,omitempty"`
	Version             int64          `db:"version" json:"version"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	Slots               []ScheduleSlot `db:"-" json:"slots"`
}

// GradesEditable is derived: an explicit staff unlock wins, otherwise
// posting or a term-end lock closes editing.
func (s *Section) GradesEditable() bool {
	if s.GradesUnlocked {
		return true
	}
	return !s.FinalGradesPosted && !s.GradesLocked
}

// AcceptsEnrollment reports whether new seats may be taken. Once grades are
// posted or locked a new seat could never be graded.
func (s *Section) AcceptsEnrollment() bool {
	return s.IsOpenForEnrollment && !s.FinalGradesPosted && !s.GradesLocked
}

// HasFreeSeat reports whether an active seat is available.
func (s *Section) HasFreeSeat() bool {
	return s.EnrolledCount < s.Capacity
}

// TaughtBy reports whether userID is the section's instructor.
func (s *Section) TaughtBy(userID string) bool {
	return s.InstructorID != nil && *s.InstructorID == userID
}

// SectionView adds derived fields for API responses.
type SectionView struct {
	Section
	GradesEditable bool `json:"grades_editable"`
}
