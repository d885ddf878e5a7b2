package routine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/routineflow/routineflow/internal/timeparse"
)

var ErrInvalidAttempt = errors.New("routine: invalid attempt")

// Attempt labels a routine's try number. The set is closed.
type Attempt string

const (
	AttemptFirst  Attempt = "First"
	AttemptSecond Attempt = "Second"
	AttemptThird  Attempt = "Third"
)

func (a Attempt) IsValid() bool {
	switch a {
	case AttemptFirst, AttemptSecond, AttemptThird:
		return true
	default:
		return false
	}
}

// Routine is a user-defined scheduled activity.
//
// ReminderID correlates the routine to a pending agent timer and is
// deliberately excluded from serialization: the mapping is meaningless across
// a process restart, so persisted records always carry it cleared.
type Routine struct {
	ID        string  `json:"id"`
	Attempt   Attempt `json:"attempt"`
	TimeSlot  string  `json:"time"`
	StartTime string  `json:"start_time,omitempty"`
	EndTime   string  `json:"end_time,omitempty"`
	Work      string  `json:"work"`
	Hours     float64 `json:"hours"`
	Completed bool    `json:"completed"`
	Score     int     `json:"score"`

	// ReminderAt is the absolute instant the reminder was armed for. Kept on
	// the record so that un-completing a routine after its time has passed
	// does not re-arm it for tomorrow.
	ReminderAt time.Time `json:"reminder_at,omitempty"`
	ReminderID string    `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r Routine) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("routine: id is required")
	}
	if !r.Attempt.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidAttempt, r.Attempt)
	}
	if strings.TrimSpace(r.Work) == "" {
		return errors.New("routine: work is required")
	}
	if strings.TrimSpace(r.TimeSlot) == "" && strings.TrimSpace(r.StartTime) == "" {
		return errors.New("routine: a time slot or start time is required")
	}
	if r.Hours < 0 {
		return errors.New("routine: hours must be non-negative")
	}
	if r.Score < 0 || r.Score > 10 {
		return errors.New("routine: score must be between 0 and 10")
	}
	return nil
}

// ReminderTime returns the time text the reminder should be anchored to:
// the explicit start time when present, otherwise the start half of a slot
// like "8am - 10am", otherwise the slot text itself.
func (r Routine) ReminderTime() string {
	if strings.TrimSpace(r.StartTime) != "" {
		return r.StartTime
	}
	if start, _, ok := timeparse.SplitRange(r.TimeSlot); ok {
		return start
	}
	return r.TimeSlot
}

// ClampScore bounds a score into the valid 0..10 range.
func ClampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 10 {
		return 10
	}
	return s
}
