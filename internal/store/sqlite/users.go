package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rc4lifting/rc4-facilities-bot/internal/domain"
)

// CreateUser inserts a new user; the database allocates the user id.
func (s *Store) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	if err := s.ready(ctx); err != nil {
		return domain.User{}, err
	}
	if user.TelegramID == 0 {
		return domain.User{}, errors.New("telegram_id is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	user.CreatedAt = now
	user.UpdatedAt = now

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE telegram_id = ?`, user.TelegramID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if exists > 0 {
			return domain.ErrAlreadyRegistered
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO users (telegram_id, name, email, room, verified, verification_hash, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			user.TelegramID, user.Name, user.Email, user.Room, user.Verified, user.VerificationHash,
			millis(now), millis(now),
		)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}

		user.UserID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read user id: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.User{}, domain.WrapStore("create user", err)
	}
	return user, nil
}

// UserByTelegramID fetches a user by chat identifier.
func (s *Store) UserByTelegramID(ctx context.Context, telegramID int64) (domain.User, error) {
	if err := s.ready(ctx); err != nil {
		return domain.User{}, err
	}

	var (
		user             domain.User
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, telegram_id, name, email, room, verified, verification_hash, created_at, updated_at
		FROM users WHERE telegram_id = ?`, telegramID,
	).Scan(
		&user.UserID, &user.TelegramID, &user.Name, &user.Email, &user.Room,
		&user.Verified, &user.VerificationHash, &created, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, domain.WrapStore("find user", err)
	}

	user.CreatedAt = fromMillis(created)
	user.UpdatedAt = fromMillis(updated)
	return user, nil
}

// IsRegistered reports whether the chat identifier belongs to a user.
func (s *Store) IsRegistered(ctx context.Context, telegramID int64) (bool, error) {
	_, err := s.UserByTelegramID(ctx, telegramID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrUserNotFound):
		return false, nil
	default:
		return false, err
	}
}

// IsVerified reports whether the user confirmed their email.
func (s *Store) IsVerified(ctx context.Context, telegramID int64) (bool, error) {
	user, err := s.UserByTelegramID(ctx, telegramID)
	switch {
	case err == nil:
		return user.Verified, nil
	case errors.Is(err, domain.ErrUserNotFound):
		return false, nil
	default:
		return false, err
	}
}

// GetUserID resolves a chat identifier to the internal user id.
func (s *Store) GetUserID(ctx context.Context, telegramID int64) (int64, error) {
	user, err := s.UserByTelegramID(ctx, telegramID)
	if err != nil {
		return 0, err
	}
	return user.UserID, nil
}

// UserNames maps user ids to registered names. Ids with no user are left out.
func (s *Store) UserNames(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	names := make(map[int64]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}

	args := make([]interface{}, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(userIDs)), ",")

	rows, err := s.db.QueryContext(ctx, `SELECT user_id, name FROM users WHERE user_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, domain.WrapStore("find user names", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, domain.WrapStore("scan user name", err)
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStore("find user names", err)
	}
	return names, nil
}

// SetVerificationHash stores the hash of the latest verification code.
func (s *Store) SetVerificationHash(ctx context.Context, telegramID int64, hash string) error {
	return s.updateUser(ctx, "set verification hash",
		`UPDATE users SET verification_hash = ?, updated_at = ? WHERE telegram_id = ?`,
		hash, millis(time.Now()), telegramID,
	)
}

// MarkVerified flips the verified flag and discards the pending code.
func (s *Store) MarkVerified(ctx context.Context, telegramID int64) error {
	return s.updateUser(ctx, "mark verified",
		`UPDATE users SET verified = 1, verification_hash = '', updated_at = ? WHERE telegram_id = ?`,
		millis(time.Now()), telegramID,
	)
}

func (s *Store) updateUser(ctx context.Context, op, query string, args ...interface{}) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.WrapStore(op, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.WrapStore(op, err)
	} else if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// DeleteUser removes the user; slots and ballots go with it by cascade.
func (s *Store) DeleteUser(ctx context.Context, telegramID int64) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE telegram_id = ?`, telegramID)
	if err != nil {
		return domain.WrapStore("delete user", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.WrapStore("delete user", err)
	} else if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
