package aggregate

import (
	"context"
	"errors"
	"fmt"
	"iter"

	eventstore "github.com/aneshas/cockroach-eventstore"
)

// ErrAggregateNotFound is returned when the aggregate stream has no events
var ErrAggregateNotFound = errors.New("aggregate not found")

// NewStore constructs new event sourced aggregate store.
// Aggregates are stored as streams of the given stream type identified by
// their StringID
func NewStore[T Rooter](
	eventStore EventStore,
	streamType eventstore.StreamType,
	enc eventstore.Encoder) *Store[T] {

	return &Store[T]{
		eventStore: eventStore,
		streamType: streamType,
		enc:        enc,
	}
}

// EventStore represents event store
type EventStore interface {
	AppendEvents(
		ctx context.Context,
		requests []eventstore.AppendRequest,
		opts ...eventstore.AppendOpt) ([]eventstore.Event, error)

	GetEventsByStream(
		ctx context.Context,
		stream eventstore.StreamIdentity,
		fromSequenceNumber int64,
		opts ...eventstore.ReadOpt) iter.Seq2[eventstore.Event, error]
}

// Store represents event sourced aggregate store
type Store[T Rooter] struct {
	eventStore EventStore
	streamType eventstore.StreamType
	enc        eventstore.Encoder
}

// Save saves aggregate events to the event store
func (s *Store[T]) Save(ctx context.Context, aggregate T) error {
	return s.SaveAll(ctx, aggregate)
}

// SaveAll saves the events of all aggregates in a single atomic append.
// Every aggregate is expected to be at its Version, otherwise nothing is
// saved and the returned error matches eventstore.ErrConsistencyViolation
func (s *Store[T]) SaveAll(ctx context.Context, aggregates ...T) error {
	var (
		requests []eventstore.AppendRequest
		saved    []T
	)

	for _, a := range aggregates {
		if len(a.Events()) == 0 {
			continue
		}

		req := eventstore.AppendRequest{
			Stream:                 s.streamType.Stream(a.StringID()),
			ExpectedSequenceNumber: a.Version(),
		}

		for _, evt := range a.Events() {
			data, err := s.enc.Encode(evt)
			if err != nil {
				return fmt.Errorf("failed to encode %T: %w", evt, err)
			}

			req.Events = append(req.Events, data)
		}

		requests = append(requests, req)
		saved = append(saved, a)
	}

	if len(requests) == 0 {
		return nil
	}

	var opts []eventstore.AppendOpt

	if id := correlationID(ctx); id != "" {
		opts = append(opts, eventstore.WithCorrelationID(id))
	}

	if id := transactionID(ctx); id != "" {
		opts = append(opts, eventstore.WithTransactionID(id))
	}

	if _, err := s.eventStore.AppendEvents(ctx, requests, opts...); err != nil {
		return err
	}

	for _, a := range saved {
		a.commit()
	}

	return nil
}

// ByID reads the aggregate stream and rehydrates the passed aggregate from it
func (s *Store[T]) ByID(ctx context.Context, id string, root T) error {
	var events []any

	stream := s.streamType.Stream(id)

	for evt, err := range s.eventStore.GetEventsByStream(ctx, stream, eventstore.InitialSequenceNumber) {
		if err != nil {
			return err
		}

		decoded, err := s.enc.Decode(eventstore.EventData{
			Type: evt.Type,
			Data: evt.Data,
		})
		if err != nil {
			return fmt.Errorf("failed to decode event %d of %s: %w", evt.ID, stream, err)
		}

		events = append(events, decoded)
	}

	if len(events) == 0 {
		return fmt.Errorf("%w: %s", ErrAggregateNotFound, stream)
	}

	root.Rehydrate(root, events...)

	return nil
}
