package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rc4lifting/rc4-facilities-bot/internal/domain"
)

// AddBallot records a lottery entry. A user holding an overlapping entry gets
// domain.ErrAlreadyBalloted; different users may overlap freely.
func (s *Store) AddBallot(ctx context.Context, telegramID, userID int64, begin, end time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var known int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE telegram_id = ?`, telegramID).Scan(&known); err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if known == 0 {
			return domain.ErrUserNotFound
		}

		var duplicate int
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM ballots WHERE telegram_id = ? AND time_begin < ? AND time_end > ?)`,
			telegramID, millis(end), millis(begin),
		).Scan(&duplicate)
		if err != nil {
			return fmt.Errorf("count user ballots: %w", err)
		}
		if duplicate == 1 {
			return domain.ErrAlreadyBalloted
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO ballots (telegram_id, user_id, time_begin, time_end, created_at) VALUES (?, ?, ?, ?, ?)`,
			telegramID, userID, millis(begin), millis(end), millis(time.Now()),
		)
		if err != nil {
			return fmt.Errorf("insert ballot: %w", err)
		}
		return nil
	})
	return domain.WrapStore("add ballot", err)
}

// GetBallotsByTime lists ballots whose start lies in [begin, end).
func (s *Store) GetBallotsByTime(ctx context.Context, begin, end time.Time) ([]domain.Ballot, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.queryBallots(ctx,
		`SELECT telegram_id, user_id, time_begin, time_end, created_at FROM ballots
		WHERE time_begin >= ? AND time_begin < ? ORDER BY time_begin, id`,
		millis(begin), millis(end),
	)
}

// DelBallotsByTime removes every ballot whose start lies in [begin, end).
func (s *Store) DelBallotsByTime(ctx context.Context, begin, end time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM ballots WHERE time_begin >= ? AND time_begin < ?`,
		millis(begin), millis(end),
	)
	return domain.WrapStore("delete ballots", err)
}

// DelBallot withdraws one of the user's ballots.
func (s *Store) DelBallot(ctx context.Context, telegramID int64, begin, end time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ballots WHERE telegram_id = ? AND time_begin = ? AND time_end = ?`,
		telegramID, millis(begin), millis(end),
	)
	if err != nil {
		return domain.WrapStore("delete ballot", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.WrapStore("delete ballot", err)
	} else if n == 0 {
		return domain.ErrSlotNotFound
	}
	return nil
}

// BallotsByUser lists the user's pending ballots starting at or after from.
func (s *Store) BallotsByUser(ctx context.Context, telegramID int64, from time.Time) ([]domain.Ballot, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.queryBallots(ctx,
		`SELECT telegram_id, user_id, time_begin, time_end, created_at FROM ballots
		WHERE telegram_id = ? AND time_begin >= ? ORDER BY time_begin`,
		telegramID, millis(from),
	)
}

func (s *Store) queryBallots(ctx context.Context, query string, args ...interface{}) ([]domain.Ballot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapStore("find ballots", err)
	}
	defer rows.Close()

	var ballots []domain.Ballot
	for rows.Next() {
		var (
			ballot                domain.Ballot
			begin, end, createdAt int64
		)
		if err := rows.Scan(&ballot.TelegramID, &ballot.UserID, &begin, &end, &createdAt); err != nil {
			return nil, domain.WrapStore("scan ballot", err)
		}
		ballot.Begin, ballot.End, ballot.CreatedAt = fromMillis(begin), fromMillis(end), fromMillis(createdAt)
		ballots = append(ballots, ballot)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStore("iterate ballots", err)
	}
	return ballots, nil
}
