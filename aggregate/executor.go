package aggregate

import (
	"context"
	"fmt"
)

// Command changes an aggregate by applying new events to it
type Command func(ctx context.Context) error

// Executor runs a command against a stored aggregate, see Exec
type Executor[T Rooter] func(ctx context.Context, a T, cmd Command) error

// NewExecutor binds Exec to the given aggregate store
func NewExecutor[T Rooter](store *Store[T]) Executor[T] {
	return func(ctx context.Context, a T, cmd Command) error {
		return Exec(ctx, store, a, cmd)
	}
}

// Exec rehydrates a from its stream, runs cmd and appends the events cmd
// applied. The id of a must be set beforehand.
//
// A stream without events fails with ErrAggregateNotFound, new aggregates
// are stored with Create. If another writer appended to the stream since a
// was loaded nothing is saved and the error matches
// eventstore.ErrSequenceMismatch
func Exec[T Rooter](ctx context.Context, store *Store[T], a T, cmd Command) error {
	if err := store.ByID(ctx, a.StringID(), a); err != nil {
		return fmt.Errorf("failed to load aggregate %s: %w", a.StringID(), err)
	}

	if err := cmd(ctx); err != nil {
		return err
	}

	return store.Save(ctx, a)
}

// Create prepares a as a new aggregate, runs cmd and saves the applied
// events, expecting the aggregate stream not to exist yet. A concurrent
// Create for the same id fails with eventstore.ErrSequenceMismatch
func Create[T Rooter](ctx context.Context, store *Store[T], a T, cmd Command) error {
	if a.Version() != 0 {
		return fmt.Errorf("aggregate %s is already at version %d", a.StringID(), a.Version())
	}

	a.Rehydrate(a)

	if err := cmd(ctx); err != nil {
		return err
	}

	return store.Save(ctx, a)
}
