package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rc4lifting/rc4-facilities-bot/internal/domain"
)

const overlapClause = `time_begin < ? AND time_end > ?`

// IsBooked reports whether any slot overlaps [begin, end).
func (s *Store) IsBooked(ctx context.Context, begin, end time.Time) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}

	booked, err := anyOverlap(ctx, s.db, begin, end)
	if err != nil {
		return false, domain.WrapStore("count overlapping slots", err)
	}
	return booked, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func anyOverlap(ctx context.Context, q queryRower, begin, end time.Time) (bool, error) {
	var found int
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM slots WHERE `+overlapClause+`)`,
		millis(end), millis(begin),
	).Scan(&found)
	if err != nil {
		return false, err
	}
	return found == 1, nil
}

// BookSlot inserts a slot unless it overlaps an existing one, in which case it
// returns domain.ErrConflict.
func (s *Store) BookSlot(ctx context.Context, userID int64, begin, end time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var known int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE user_id = ?`, userID).Scan(&known); err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if known == 0 {
			return domain.ErrUserNotFound
		}

		booked, err := anyOverlap(ctx, tx, begin, end)
		if err != nil {
			return fmt.Errorf("count overlapping slots: %w", err)
		}
		if booked {
			return domain.ErrConflict
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO slots (user_id, time_begin, time_end, created_at) VALUES (?, ?, ?, ?)`,
			userID, millis(begin), millis(end), millis(time.Now()),
		)
		if err != nil {
			return fmt.Errorf("insert slot: %w", err)
		}
		return nil
	})
	return domain.WrapStore("book slot", err)
}

// DelSlot removes the user's slot with exactly the given bounds.
func (s *Store) DelSlot(ctx context.Context, userID int64, begin, end time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM slots WHERE user_id = ? AND time_begin = ? AND time_end = ?`,
		userID, millis(begin), millis(end),
	)
	if err != nil {
		return domain.WrapStore("delete slot", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.WrapStore("delete slot", err)
	} else if n == 0 {
		return domain.ErrSlotNotFound
	}
	return nil
}

// SlotsByUser lists the user's slots that have not ended by from.
func (s *Store) SlotsByUser(ctx context.Context, userID int64, from time.Time) ([]domain.Slot, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.querySlots(ctx,
		`SELECT user_id, time_begin, time_end, created_at FROM slots
		WHERE user_id = ? AND time_end > ? ORDER BY time_begin`,
		userID, millis(from),
	)
}

// SlotsByTime lists slots overlapping [begin, end) in start order.
func (s *Store) SlotsByTime(ctx context.Context, begin, end time.Time) ([]domain.Slot, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.querySlots(ctx,
		`SELECT user_id, time_begin, time_end, created_at FROM slots
		WHERE `+overlapClause+` ORDER BY time_begin`,
		millis(end), millis(begin),
	)
}

func (s *Store) querySlots(ctx context.Context, query string, args ...interface{}) ([]domain.Slot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapStore("find slots", err)
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		var (
			slot                  domain.Slot
			begin, end, createdAt int64
		)
		if err := rows.Scan(&slot.UserID, &begin, &end, &createdAt); err != nil {
			return nil, domain.WrapStore("scan slot", err)
		}
		slot.Begin, slot.End, slot.CreatedAt = fromMillis(begin), fromMillis(end), fromMillis(createdAt)
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStore("iterate slots", err)
	}
	return slots, nil
}
