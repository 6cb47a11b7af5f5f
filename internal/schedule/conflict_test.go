package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/registrar-api/internal/models"
)

func slot(day models.Weekday, start, end string) models.ScheduleSlot {
	s, _ := models.ParseClock(start)
	e, _ := models.ParseClock(end)
	return models.ScheduleSlot{Day: day, Start: s, End: e}
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name string
		x, y models.ScheduleSlot
		want bool
	}{
		{"partial overlap", slot(models.Monday, "09:00", "10:30"), slot(models.Monday, "10:00", "11:00"), true},
		{"contained", slot(models.Monday, "09:00", "12:00"), slot(models.Monday, "10:00", "11:00"), true},
		{"different day", slot(models.Monday, "09:00", "10:00"), slot(models.Tuesday, "09:00", "10:00"), false},
		{"touching boundary", slot(models.Monday, "09:00", "10:00"), slot(models.Monday, "10:00", "11:00"), false},
		{"disjoint", slot(models.Friday, "08:00", "09:00"), slot(models.Friday, "13:00", "14:00"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(tc.x, tc.y))
			assert.Equal(t, tc.want, Overlaps(tc.y, tc.x))
		})
	}
}

func TestConflictsReturnsOverlappingSlotsOfSecondSet(t *testing.T) {
	held := []models.ScheduleSlot{
		slot(models.Monday, "09:00", "10:00"),
		slot(models.Wednesday, "09:00", "10:00"),
	}
	requested := []models.ScheduleSlot{
		slot(models.Monday, "09:30", "10:30"),
		slot(models.Tuesday, "09:00", "10:00"),
		slot(models.Wednesday, "10:00", "11:00"),
	}

	conflicts := Conflicts(held, requested)
	assert.Equal(t, []models.ScheduleSlot{requested[0]}, conflicts)
	assert.Empty(t, Conflicts(nil, requested))
}

func TestValidateSlots(t *testing.T) {
	assert.Equal(t, -1, ValidateSlots([]models.ScheduleSlot{slot(models.Monday, "09:00", "10:00")}))
	assert.Equal(t, 1, ValidateSlots([]models.ScheduleSlot{
		slot(models.Monday, "09:00", "10:00"),
		slot(models.Monday, "10:00", "10:00"),
	}))
	assert.Equal(t, 0, ValidateSlots([]models.ScheduleSlot{{Day: "XYZ", Start: 60, End: 120}}))
}
