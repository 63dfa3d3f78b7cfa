package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rc4lifting/rc4-facilities-bot/internal/domain"
)

// IsBooked reports whether any slot overlaps [begin, end).
func (s *FacilityStore) IsBooked(ctx context.Context, begin, end time.Time) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}

	n, err := s.slots.CountDocuments(ctx, overlapping(begin, end), options.Count().SetLimit(1))
	if err != nil {
		return false, domain.WrapStore("count overlapping slots", err)
	}
	return n > 0, nil
}

// BookSlot inserts a slot unless it overlaps an existing one, in which case it
// returns domain.ErrConflict. The overlap check and the insert share a
// transaction serialized on the slots guard.
func (s *FacilityStore) BookSlot(ctx context.Context, userID int64, begin, end time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if userID == 0 {
		return errors.New("user_id is required")
	}

	slot := domain.Slot{
		UserID:    userID,
		Begin:     mongoTime(begin),
		End:       mongoTime(end),
		CreatedAt: mongoTime(time.Now()),
	}

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := touchGuard(ctx, s.guards, guardSlots); err != nil {
			return err
		}

		known, err := s.users.CountDocuments(ctx, bson.M{"user_id": slot.UserID}, options.Count().SetLimit(1))
		if err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if known == 0 {
			return domain.ErrUserNotFound
		}

		n, err := s.slots.CountDocuments(ctx, overlapping(slot.Begin, slot.End), options.Count().SetLimit(1))
		if err != nil {
			return fmt.Errorf("count overlapping slots: %w", err)
		}
		if n > 0 {
			return domain.ErrConflict
		}

		if _, err := s.slots.InsertOne(ctx, slot); err != nil {
			return fmt.Errorf("insert slot: %w", err)
		}
		return nil
	})
	return domain.WrapStore("book slot", err)
}

// DelSlot removes the user's slot with exactly the given bounds.
func (s *FacilityStore) DelSlot(ctx context.Context, userID int64, begin, end time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	res, err := s.slots.DeleteOne(ctx, bson.M{
		"user_id":    userID,
		"time_begin": mongoTime(begin),
		"time_end":   mongoTime(end),
	})
	if err != nil {
		return domain.WrapStore("delete slot", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrSlotNotFound
	}
	return nil
}

// SlotsByUser lists the user's slots that have not ended by from.
func (s *FacilityStore) SlotsByUser(ctx context.Context, userID int64, from time.Time) ([]domain.Slot, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	cursor, err := s.slots.Find(ctx, bson.M{
		"user_id":  userID,
		"time_end": bson.M{"$gt": mongoTime(from)},
	}, byBegin())
	if err != nil {
		return nil, domain.WrapStore("find user slots", err)
	}
	return decodeAll[domain.Slot](ctx, cursor, "slots")
}

// SlotsByTime lists slots overlapping [begin, end) in start order.
func (s *FacilityStore) SlotsByTime(ctx context.Context, begin, end time.Time) ([]domain.Slot, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	cursor, err := s.slots.Find(ctx, overlapping(mongoTime(begin), mongoTime(end)), byBegin())
	if err != nil {
		return nil, domain.WrapStore("find slots", err)
	}
	return decodeAll[domain.Slot](ctx, cursor, "slots")
}
