package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rc4lifting/rc4-facilities-bot/internal/domain"
)

type countCollection interface {
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// StatsProvider reports collection counts for diagnostics without leaking
// MongoDB internals to callers.
type StatsProvider struct {
	users   countCollection
	slots   countCollection
	ballots countCollection
}

// NewStatsProvider constructs a StatsProvider backed by the given collections.
func NewStatsProvider(users, slots, ballots countCollection) *StatsProvider {
	return &StatsProvider{
		users:   users,
		slots:   slots,
		ballots: ballots,
	}
}

// Collect counts users, slots and ballots. The first failing count aborts.
func (p *StatsProvider) Collect(ctx context.Context) (domain.Stats, error) {
	if ctx == nil {
		return domain.Stats{}, errors.New("context is required")
	}
	if p == nil || p.users == nil || p.slots == nil || p.ballots == nil {
		return domain.Stats{}, errors.New("stats provider is not initialized")
	}

	var stats domain.Stats
	for _, c := range []struct {
		name string
		coll countCollection
		dst  *int64
	}{
		{CollectionUsers, p.users, &stats.Users},
		{CollectionSlots, p.slots, &stats.Slots},
		{CollectionBallots, p.ballots, &stats.Ballots},
	} {
		n, err := c.coll.CountDocuments(ctx, bson.D{})
		if err != nil {
			return domain.Stats{}, fmt.Errorf("count %s: %w", c.name, err)
		}
		*c.dst = n
	}

	return stats, nil
}
