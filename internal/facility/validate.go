package facility

import (
	"fmt"
	"time"
)

// Mode distinguishes immediate bookings from ballot entries.
type Mode int

const (
	// ModeBook targets the current week.
	ModeBook Mode = iota
	// ModeBallot targets the next week.
	ModeBallot
)

func (m Mode) String() string {
	if m == ModeBallot {
		return "ballot"
	}
	return "book"
}

// Reason identifies which validation rule rejected a request.
type Reason string

const (
	ReasonInvalidRange  Reason = "invalid_range"
	ReasonWeekend       Reason = "weekend"
	ReasonOutsideWindow Reason = "outside_window"
	ReasonMisaligned    Reason = "misaligned"
	ReasonTooLong       Reason = "too_long"
	ReasonWrongWeek     Reason = "wrong_week"
)

// ValidationError is returned when a requested interval breaks a facility
// rule. Message is suitable for showing to the user as is.
type ValidationError struct {
	Reason  Reason
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks [start, end) against the rules for mode, with now as the
// reference for week membership. Checks run in a fixed order and the first
// failure is returned.
func (r Rules) Validate(start, end time.Time, mode Mode, now time.Time) error {
	if !end.After(start) {
		return invalid(ReasonInvalidRange, "End time must be after start time!")
	}

	localStart := start.In(r.Location)
	if r.WeekendsDisallowed && isWeekend(localStart) {
		return invalid(ReasonWeekend, fmt.Sprintf("%s cannot be done on weekends!", actionNoun(mode)))
	}

	window := r.Window(localStart)
	if start.Before(window.Begin) || end.After(window.End) {
		return invalid(ReasonOutsideWindow, fmt.Sprintf(
			"%s timings must be within %s and %s!",
			timingNoun(mode), FormatClock(r.DailyStart), FormatClock(r.DailyEnd),
		))
	}

	if start.Sub(window.Begin)%r.Interval != 0 || end.Sub(window.Begin)%r.Interval != 0 {
		return invalid(ReasonMisaligned, fmt.Sprintf(
			"%s timings must be aligned to %d minute intervals from %s!",
			timingNoun(mode), int(r.Interval/time.Minute), FormatClock(r.DailyStart),
		))
	}

	if end.Sub(start) > r.MaxLength {
		return invalid(ReasonTooLong, fmt.Sprintf(
			"Booking exceeds max length of %d minutes!", int(r.MaxLength/time.Minute),
		))
	}

	return r.ValidateWeek(start, mode, now)
}

// ValidateWeek checks only that start falls within the week mode targets.
func (r Rules) ValidateWeek(start time.Time, mode Mode, now time.Time) error {
	week := r.Week(mode, now)
	if start.Before(week.Begin) || !start.Before(week.End) {
		if mode == ModeBallot {
			return invalid(ReasonWrongWeek, "Balloting can only be done for the next week!")
		}
		return invalid(ReasonWrongWeek, "Booking can only be done for the current week!")
	}
	return nil
}

func invalid(reason Reason, message string) error {
	return &ValidationError{Reason: reason, Message: message}
}

func actionNoun(mode Mode) string {
	if mode == ModeBallot {
		return "Balloting"
	}
	return "Booking"
}

func timingNoun(mode Mode) string {
	if mode == ModeBallot {
		return "Ballot"
	}
	return "Book"
}
