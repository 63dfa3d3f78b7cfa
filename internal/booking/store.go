package booking

import (
	"context"
	"time"

	"github.com/rc4lifting/rc4-facilities-bot/internal/domain"
)

//go:generate mockgen -source=store.go -destination=store_mock.go -package=booking

// Store is the persistence contract of the booking engine. BookSlot must check
// for overlapping slots and insert as one atomic unit, returning
// domain.ErrConflict when an overlap exists.
type Store interface {
	IsRegistered(ctx context.Context, telegramID int64) (bool, error)
	IsVerified(ctx context.Context, telegramID int64) (bool, error)
	GetUserID(ctx context.Context, telegramID int64) (int64, error)

	IsBooked(ctx context.Context, begin, end time.Time) (bool, error)
	BookSlot(ctx context.Context, userID int64, begin, end time.Time) error
	DelSlot(ctx context.Context, userID int64, begin, end time.Time) error
	SlotsByUser(ctx context.Context, userID int64, from time.Time) ([]domain.Slot, error)

	AddBallot(ctx context.Context, telegramID, userID int64, begin, end time.Time) error
	DelBallot(ctx context.Context, telegramID int64, begin, end time.Time) error
	BallotsByUser(ctx context.Context, telegramID int64, from time.Time) ([]domain.Ballot, error)
	GetBallotsByTime(ctx context.Context, begin, end time.Time) ([]domain.Ballot, error)
	DelBallotsByTime(ctx context.Context, begin, end time.Time) error
}
