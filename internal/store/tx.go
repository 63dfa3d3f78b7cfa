package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// txRunner runs fn inside a transaction. Operations issued with the context
// handed to fn take part in it.
type txRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// sessionRunner runs transactions on a live client. Transient errors such as
// write conflicts are retried by the driver, so fn must be safe to re-run.
type sessionRunner struct {
	client *mongo.Client
}

func (r sessionRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.client == nil {
		return errors.New("transactions require a connected mongo client")
	}

	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// transactions returns a runner bound to the manager's client.
func (m *Manager) transactions() txRunner {
	return sessionRunner{client: m.Client()}
}

// touchGuard bumps the named guard document. Two transactions touching the same
// guard write-conflict, so whichever commits second is retried from scratch and
// observes the first one's writes.
func touchGuard(ctx context.Context, guards collection, name string) error {
	_, err := guards.UpdateOne(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"version": int64(1)}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("touch guard %s: %w", name, err)
	}
	return nil
}
