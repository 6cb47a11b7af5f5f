// Package schedule detects weekly timetable overlaps between sections.
package schedule

import "github.com/noah-isme/registrar-api/internal/models"

// Overlaps reports whether two slots share any time on the same day. Slots
// are half-open, so one ending exactly when the other starts does not overlap.
func Overlaps(x, y models.ScheduleSlot) bool {
	if x.Day != y.Day {
		return false
	}
	return x.Start < y.End && y.Start < x.End
}

// Conflicts returns the slots of b that overlap any slot of a, in b's order.
func Conflicts(a, b []models.ScheduleSlot) []models.ScheduleSlot {
	var out []models.ScheduleSlot
	for _, candidate := range b {
		for _, held := range a {
			if Overlaps(held, candidate) {
				out = append(out, candidate)
				break
			}
		}
	}
	return out
}

// ValidateSlots returns the index of the first malformed slot, or -1.
func ValidateSlots(slots []models.ScheduleSlot) int {
	for i, s := range slots {
		if !s.Day.Valid() || s.Start < 0 || s.End > 24*60 || s.Start >= s.End {
			return i
		}
	}
	return -1
}
