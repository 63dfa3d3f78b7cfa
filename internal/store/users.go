package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rc4lifting/rc4-facilities-bot/internal/domain"
)

const userIDCounter = "user_id"

// CreateUser inserts a new user with a freshly allocated numeric user id.
func (s *FacilityStore) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	if err := s.ready(ctx); err != nil {
		return domain.User{}, err
	}
	if user.TelegramID == 0 {
		return domain.User{}, errors.New("telegram_id is required")
	}

	if _, err := s.UserByTelegramID(ctx, user.TelegramID); err == nil {
		return domain.User{}, domain.ErrAlreadyRegistered
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, err
	}

	id, err := s.nextUserID(ctx)
	if err != nil {
		return domain.User{}, err
	}

	now := mongoTime(time.Now())
	user.UserID = id
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.User{}, domain.ErrAlreadyRegistered
		}
		return domain.User{}, domain.WrapStore("insert user", err)
	}

	return user, nil
}

func (s *FacilityStore) nextUserID(ctx context.Context) (int64, error) {
	result := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": userIDCounter},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	if err := result.Decode(&counter); err != nil {
		return 0, domain.WrapStore("allocate user id", err)
	}

	return counter.Seq, nil
}

// UserByTelegramID fetches a user by chat identifier.
func (s *FacilityStore) UserByTelegramID(ctx context.Context, telegramID int64) (domain.User, error) {
	if err := s.ready(ctx); err != nil {
		return domain.User{}, err
	}

	result := s.users.FindOne(ctx, bson.M{"telegram_id": telegramID})
	if result == nil {
		return domain.User{}, errors.New("find user returned no result")
	}
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, domain.WrapStore("find user", err)
	}

	var user domain.User
	if err := result.Decode(&user); err != nil {
		return domain.User{}, fmt.Errorf("decode user: %w", err)
	}

	return user, nil
}

// IsRegistered reports whether the chat identifier belongs to a user.
func (s *FacilityStore) IsRegistered(ctx context.Context, telegramID int64) (bool, error) {
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

// IsVerified reports whether the user confirmed their email. Unknown users are
// not verified.
func (s *FacilityStore) IsVerified(ctx context.Context, telegramID int64) (bool, error) {
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
func (s *FacilityStore) GetUserID(ctx context.Context, telegramID int64) (int64, error) {
	user, err := s.UserByTelegramID(ctx, telegramID)
	if err != nil {
		return 0, err
	}
	return user.UserID, nil
}

// UserNames maps user ids to registered names. Ids with no user are left out.
func (s *FacilityStore) UserNames(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	names := make(map[int64]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}

	cursor, err := s.users.Find(ctx,
		bson.M{"user_id": bson.M{"$in": userIDs}},
		options.Find().SetProjection(bson.M{"user_id": 1, "name": 1}),
	)
	if err != nil {
		return nil, domain.WrapStore("find user names", err)
	}
	users, err := decodeAll[domain.User](ctx, cursor, "users")
	if err != nil {
		return nil, domain.WrapStore("find user names", err)
	}
	for _, user := range users {
		names[user.UserID] = user.Name
	}
	return names, nil
}

// SetVerificationHash stores the hash of the latest verification code.
func (s *FacilityStore) SetVerificationHash(ctx context.Context, telegramID int64, hash string) error {
	return s.updateUser(ctx, "set verification hash", telegramID, bson.M{
		"$set": bson.M{"verification_hash": hash, "updated_at": mongoTime(time.Now())},
	})
}

// MarkVerified flips the verified flag and discards the pending code.
func (s *FacilityStore) MarkVerified(ctx context.Context, telegramID int64) error {
	return s.updateUser(ctx, "mark verified", telegramID, bson.M{
		"$set":   bson.M{"verified": true, "updated_at": mongoTime(time.Now())},
		"$unset": bson.M{"verification_hash": ""},
	})
}

func (s *FacilityStore) updateUser(ctx context.Context, op string, telegramID int64, update bson.M) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	res, err := s.users.UpdateOne(ctx, bson.M{"telegram_id": telegramID}, update)
	if err != nil {
		return domain.WrapStore(op, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// DeleteUser removes the user together with their slots and ballots.
func (s *FacilityStore) DeleteUser(ctx context.Context, telegramID int64) error {
	user, err := s.UserByTelegramID(ctx, telegramID)
	if err != nil {
		return err
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := touchGuard(ctx, s.guards, guardSlots); err != nil {
			return err
		}
		if _, err := s.users.DeleteOne(ctx, bson.M{"telegram_id": telegramID}); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if _, err := s.slots.DeleteMany(ctx, bson.M{"user_id": user.UserID}); err != nil {
			return fmt.Errorf("delete user slots: %w", err)
		}
		if _, err := s.ballots.DeleteMany(ctx, bson.M{"telegram_id": telegramID}); err != nil {
			return fmt.Errorf("delete user ballots: %w", err)
		}
		return nil
	})
	return domain.WrapStore("delete user", err)
}
