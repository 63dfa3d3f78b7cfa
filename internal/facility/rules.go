// Package facility holds the operating rules of the shared facility and the
// time-window validation applied to every booking and ballot request.
package facility

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rules describes when the facility may be booked. A Rules value is immutable
// once built and is passed to every component that needs it.
type Rules struct {
	Location           *time.Location
	DailyStart         time.Duration // offset from local midnight
	DailyEnd           time.Duration // offset from local midnight
	Interval           time.Duration
	MaxLength          time.Duration
	WeekendsDisallowed bool
}

// Interval is a half-open time range [Begin, End).
type Interval struct {
	Begin time.Time
	End   time.Time
}

// Check reports whether the rules are internally consistent.
func (r Rules) Check() error {
	if r.Location == nil {
		return errors.New("time zone is required")
	}
	if r.DailyStart < 0 || r.DailyEnd > 24*time.Hour || r.DailyStart >= r.DailyEnd {
		return fmt.Errorf("daily window %s-%s is invalid", FormatClock(r.DailyStart), FormatClock(r.DailyEnd))
	}
	if r.Interval <= 0 || r.Interval%time.Minute != 0 {
		return errors.New("interval must be a positive whole number of minutes")
	}
	if r.MaxLength < r.Interval {
		return errors.New("max length must be at least one interval")
	}
	return nil
}

// StartOfWeek returns Monday 00:00 in loc of the week containing t.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	back := (int(local.Weekday()) + 6) % 7
	y, m, d := local.Date()
	return time.Date(y, m, d-back, 0, 0, 0, 0, loc)
}

// StartOfNextWeek returns Monday 00:00 in loc of the week after the one
// containing t.
func StartOfNextWeek(t time.Time, loc *time.Location) time.Time {
	return addDays(StartOfWeek(t, loc), 7)
}

// Week returns the local week that requests in mode may target, relative to
// now: the current week for bookings and the next week for ballots.
func (r Rules) Week(mode Mode, now time.Time) Interval {
	begin := StartOfWeek(now, r.Location)
	if mode == ModeBallot {
		begin = addDays(begin, 7)
	}
	return Interval{Begin: begin, End: addDays(begin, 7)}
}

// Window returns the facility's opening hours on the local day containing t.
func (r Rules) Window(t time.Time) Interval {
	local := t.In(r.Location)
	return Interval{
		Begin: atClock(local, r.DailyStart),
		End:   atClock(local, r.DailyEnd),
	}
}

// GridSlots lists the interval grid of the local day containing day.
func (r Rules) GridSlots(day time.Time) []Interval {
	window := r.Window(day)
	var slots []Interval
	for begin := window.Begin; begin.Before(window.End); begin = begin.Add(r.Interval) {
		end := begin.Add(r.Interval)
		if end.After(window.End) {
			break
		}
		slots = append(slots, Interval{Begin: begin, End: end})
	}
	return slots
}

// OpenDays lists the local days of the week starting at weekStart on which the
// facility can be booked.
func (r Rules) OpenDays(weekStart time.Time) []time.Time {
	days := make([]time.Time, 0, 7)
	for i := 0; i < 7; i++ {
		day := addDays(weekStart, i)
		if r.WeekendsDisallowed && isWeekend(day) {
			continue
		}
		days = append(days, day)
	}
	return days
}

// ParseClock parses a local time of day such as "08:00" or "24:00" into an
// offset from midnight.
func ParseClock(value string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("time of day %q must be HH:MM", value)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("time of day %q: %w", value, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("time of day %q: %w", value, err)
	}
	if hours < 0 || minutes < 0 || minutes > 59 || hours > 24 || (hours == 24 && minutes != 0) {
		return 0, fmt.Errorf("time of day %q is out of range", value)
	}

	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
}

// FormatClock renders an offset from midnight as HH:MM.
func FormatClock(offset time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(offset/time.Hour), int(offset%time.Hour/time.Minute))
}

func atClock(local time.Time, offset time.Duration) time.Time {
	y, m, d := local.Date()
	hours := int(offset / time.Hour)
	minutes := int(offset % time.Hour / time.Minute)
	return time.Date(y, m, d, hours, minutes, 0, 0, local.Location())
}

func addDays(t time.Time, days int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+days, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func isWeekend(t time.Time) bool {
	day := t.Weekday()
	return day == time.Saturday || day == time.Sunday
}
