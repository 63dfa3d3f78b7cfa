package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rc4lifting/rc4-facilities-bot/internal/domain"
)

// AddBallot records a lottery entry. Entries from different users may
// overlap; a user holding an overlapping entry gets domain.ErrAlreadyBalloted.
func (s *FacilityStore) AddBallot(ctx context.Context, telegramID, userID int64, begin, end time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if telegramID == 0 || userID == 0 {
		return errors.New("telegram_id and user_id are required")
	}

	ballot := domain.Ballot{
		TelegramID: telegramID,
		UserID:     userID,
		Begin:      mongoTime(begin),
		End:        mongoTime(end),
		CreatedAt:  mongoTime(time.Now()),
	}

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := touchGuard(ctx, s.guards, guardBallotsPrefix+strconv.FormatInt(telegramID, 10)); err != nil {
			return err
		}

		filter := overlapping(ballot.Begin, ballot.End)
		filter["telegram_id"] = telegramID
		n, err := s.ballots.CountDocuments(ctx, filter, options.Count().SetLimit(1))
		if err != nil {
			return fmt.Errorf("count user ballots: %w", err)
		}
		if n > 0 {
			return domain.ErrAlreadyBalloted
		}

		if _, err := s.ballots.InsertOne(ctx, ballot); err != nil {
			return fmt.Errorf("insert ballot: %w", err)
		}
		return nil
	})
	return domain.WrapStore("add ballot", err)
}

// GetBallotsByTime lists ballots whose start lies in [begin, end).
func (s *FacilityStore) GetBallotsByTime(ctx context.Context, begin, end time.Time) ([]domain.Ballot, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	cursor, err := s.ballots.Find(ctx, startingWithin(begin, end), byBegin())
	if err != nil {
		return nil, domain.WrapStore("find ballots", err)
	}
	return decodeAll[domain.Ballot](ctx, cursor, "ballots")
}

// DelBallotsByTime removes every ballot whose start lies in [begin, end).
func (s *FacilityStore) DelBallotsByTime(ctx context.Context, begin, end time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if _, err := s.ballots.DeleteMany(ctx, startingWithin(begin, end)); err != nil {
		return domain.WrapStore("delete ballots", err)
	}
	return nil
}

// DelBallot withdraws one of the user's ballots.
func (s *FacilityStore) DelBallot(ctx context.Context, telegramID int64, begin, end time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	res, err := s.ballots.DeleteOne(ctx, bson.M{
		"telegram_id": telegramID,
		"time_begin":  mongoTime(begin),
		"time_end":    mongoTime(end),
	})
	if err != nil {
		return domain.WrapStore("delete ballot", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrSlotNotFound
	}
	return nil
}

// BallotsByUser lists the user's pending ballots starting at or after from.
func (s *FacilityStore) BallotsByUser(ctx context.Context, telegramID int64, from time.Time) ([]domain.Ballot, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	cursor, err := s.ballots.Find(ctx, bson.M{
		"telegram_id": telegramID,
		"time_begin":  bson.M{"$gte": mongoTime(from)},
	}, byBegin())
	if err != nil {
		return nil, domain.WrapStore("find user ballots", err)
	}
	return decodeAll[domain.Ballot](ctx, cursor, "ballots")
}

func startingWithin(begin, end time.Time) bson.M {
	return bson.M{"time_begin": bson.M{"$gte": mongoTime(begin), "$lt": mongoTime(end)}}
}
