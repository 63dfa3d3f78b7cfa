// Package board renders the week's bookings as a text grid and caches it for
// the /view command.
package board

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rc4lifting/rc4-facilities-bot/internal/domain"
	"github.com/rc4lifting/rc4-facilities-bot/internal/facility"
	"github.com/rc4lifting/rc4-facilities-bot/internal/logging"
)

const (
	booked = "X"
	free   = "."
)

// SlotSource lists confirmed slots overlapping a range and names their owners.
type SlotSource interface {
	SlotsByTime(ctx context.Context, begin, end time.Time) ([]domain.Slot, error)
	UserNames(ctx context.Context, userIDs []int64) (map[int64]string, error)
}

// Board holds the most recently rendered grid of the current week.
type Board struct {
	rules  facility.Rules
	slots  SlotSource
	now    func() time.Time
	logger *logrus.Entry

	mu        sync.RWMutex
	text      string
	refreshed time.Time
}

// New constructs a Board. Nothing is cached until the first Refresh.
func New(rules facility.Rules, slots SlotSource, logger *logrus.Entry) *Board {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Board{
		rules:  rules,
		slots:  slots,
		now:    time.Now,
		logger: logger,
	}
}

// Refresh re-reads the current week's slots and replaces the cached grid.
func (b *Board) Refresh(ctx context.Context) error {
	if b == nil || b.slots == nil {
		return errors.New("board is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	now := b.now()
	week := b.rules.Week(facility.ModeBook, now)

	slots, err := b.slots.SlotsByTime(ctx, week.Begin, week.End)
	if err != nil {
		return fmt.Errorf("load week slots: %w", err)
	}

	names, err := b.slots.UserNames(ctx, bookers(slots))
	if err != nil {
		b.logger.WithError(err).WithField("event", "board_names_failed").Warn("rendering board without booker names")
		names = nil
	}

	text := Render(b.rules, week, slots, names)

	b.mu.Lock()
	b.text = text
	b.refreshed = now
	b.mu.Unlock()

	b.logger.WithFields(logging.Fields{
		"event": "board_refreshed",
		"slots": len(slots),
	}).Debug("refreshed booking board")
	return nil
}

// View returns the cached grid and when it was built. ok is false before the
// first successful Refresh.
func (b *Board) View() (text string, refreshed time.Time, ok bool) {
	if b == nil {
		return "", time.Time{}, false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text, b.refreshed, b.text != ""
}

// Render draws one row per grid interval and one column per open day of week,
// followed by the week's bookings and who holds them.
func Render(rules facility.Rules, week facility.Interval, slots []domain.Slot, names map[int64]string) string {
	days := rules.OpenDays(week.Begin)
	if len(days) == 0 {
		return "The facility is closed this week."
	}

	grids := make([][]facility.Interval, len(days))
	rows := 0
	for i, day := range days {
		grids[i] = rules.GridSlots(day)
		rows = max(rows, len(grids[i]))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Week of %s (%s booked, %s free)\n", week.Begin.In(rules.Location).Format("Mon 2 Jan 2006"), booked, free)

	b.WriteString("     ")
	for _, day := range days {
		b.WriteString(" " + day.Format("Mon"))
	}
	b.WriteString("\n")

	for row := 0; row < rows; row++ {
		var line strings.Builder
		line.WriteString(label(rules, grids, row))
		for col := range days {
			mark := " "
			if row < len(grids[col]) {
				mark = free
				if taken(slots, grids[col][row]) {
					mark = booked
				}
			}
			line.WriteString("  " + mark + " ")
		}
		b.WriteString(strings.TrimRight(line.String(), " "))
		if row < rows-1 {
			b.WriteString("\n")
		}
	}

	if len(slots) > 0 {
		b.WriteString("\n\nBookings:")
		for _, slot := range inOrder(slots) {
			fmt.Fprintf(&b, "\n%s-%s %s - %s",
				slot.Begin.In(rules.Location).Format("Mon 2 Jan 15:04"),
				slot.End.In(rules.Location).Format("15:04"),
				booked, booker(names, slot.UserID),
			)
		}
	}

	return b.String()
}

func inOrder(slots []domain.Slot) []domain.Slot {
	sorted := slices.Clone(slots)
	slices.SortStableFunc(sorted, func(a, b domain.Slot) int {
		return a.Begin.Compare(b.Begin)
	})
	return sorted
}

func bookers(slots []domain.Slot) []int64 {
	seen := make(map[int64]bool, len(slots))
	ids := make([]int64, 0, len(slots))
	for _, slot := range slots {
		if !seen[slot.UserID] {
			seen[slot.UserID] = true
			ids = append(ids, slot.UserID)
		}
	}
	return ids
}

func booker(names map[int64]string, userID int64) string {
	if name := names[userID]; name != "" {
		return name
	}
	return fmt.Sprintf("user %d", userID)
}

func label(rules facility.Rules, grids [][]facility.Interval, row int) string {
	for _, grid := range grids {
		if row < len(grid) {
			return grid[row].Begin.In(rules.Location).Format("15:04")
		}
	}
	return "     "
}

func taken(slots []domain.Slot, cell facility.Interval) bool {
	for _, slot := range slots {
		if slot.Overlaps(cell.Begin, cell.End) {
			return true
		}
	}
	return false
}
