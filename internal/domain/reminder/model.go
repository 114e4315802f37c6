package reminder

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inhalecare/inhalecare/internal/platform/apperr"
)

// Schedule is a recurring dose reminder owned by one patient. Delivery is
// handled elsewhere; this package only stores the rules.
type Schedule struct {
	ID         uuid.UUID `json:"id"`
	PatientID  uuid.UUID `json:"patient_id"`
	TimeOfDay  string    `json:"time_of_day"`
	DaysOfWeek []int     `json:"days_of_week"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

type CreateRequest struct {
	TimeOfDay  string `json:"time_of_day"`
	DaysOfWeek []int  `json:"days_of_week"`
	IsActive   *bool  `json:"is_active"`
}

type UpdateRequest struct {
	TimeOfDay  *string `json:"time_of_day"`
	DaysOfWeek *[]int  `json:"days_of_week"`
	IsActive   *bool   `json:"is_active"`
}

// AllDays is used when a schedule names no days.
var AllDays = []int{0, 1, 2, 3, 4, 5, 6}

// normalizeTimeOfDay accepts HH:MM or HH:MM:SS and returns HH:MM:SS.
func normalizeTimeOfDay(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05"), nil
		}
	}
	return "", apperr.Validation("time_of_day must be HH:MM or HH:MM:SS")
}

// normalizeDays de-duplicates and sorts. Empty means every day.
func normalizeDays(days []int) ([]int, error) {
	if len(days) == 0 {
		return append([]int(nil), AllDays...), nil
	}
	seen := make(map[int]bool, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			return nil, apperr.Validation("days_of_week must be between 0 (Sunday) and 6, got %d", d)
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (s *Schedule) String() string {
	return fmt.Sprintf("%s %v", s.TimeOfDay, s.DaysOfWeek)
}
