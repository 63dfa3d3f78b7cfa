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

// collection is the subset of *mongo.Collection used by the facility store.
type collection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

// guard document ids.
const (
	guardSlots         = "slots"
	guardBallotsPrefix = "ballots:"
)

// FacilityStore persists users, slots and ballots in MongoDB.
type FacilityStore struct {
	users    collection
	slots    collection
	ballots  collection
	counters collection
	guards   collection
	tx       txRunner
	stats    *StatsProvider
	pinger   func(context.Context) error
}

// NewFacilityStore builds a store over the manager's collections.
func NewFacilityStore(m *Manager) *FacilityStore {
	s := newFacilityStore(
		m.Users(),
		m.Slots(),
		m.Ballots(),
		m.Collection(CollectionCounters),
		m.Collection(CollectionGuards),
		m.transactions(),
	)
	s.pinger = m.Ping
	return s
}

func newFacilityStore(users, slots, ballots, counters, guards collection, tx txRunner) *FacilityStore {
	return &FacilityStore{
		users:    users,
		slots:    slots,
		ballots:  ballots,
		counters: counters,
		guards:   guards,
		tx:       tx,
		stats:    NewStatsProvider(users, slots, ballots),
	}
}

// Ping checks that the backing deployment is reachable.
func (s *FacilityStore) Ping(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if s.pinger == nil {
		return nil
	}
	return s.pinger(ctx)
}

// Stats returns document counts for the status command.
func (s *FacilityStore) Stats(ctx context.Context) (domain.Stats, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Stats{}, err
	}
	return s.stats.Collect(ctx)
}

func (s *FacilityStore) ready(ctx context.Context) error {
	if s == nil || s.users == nil || s.slots == nil || s.ballots == nil {
		return errors.New("facility store is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}

// overlapping matches documents whose [time_begin, time_end) intersects
// [begin, end).
func overlapping(begin, end time.Time) bson.M {
	return bson.M{
		"time_begin": bson.M{"$lt": end},
		"time_end":   bson.M{"$gt": begin},
	}
}

func byBegin() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "time_begin", Value: 1}})
}

func decodeAll[T any](ctx context.Context, cursor *mongo.Cursor, what string) ([]T, error) {
	var out []T
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", what, err)
	}
	return out, nil
}

// mongoTime normalizes t to what a round trip through BSON returns.
func mongoTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
