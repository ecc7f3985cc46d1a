package eventstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type appendConfig struct {
	transactionID string
	correlationID string
}

// AppendOpt represents append events option
type AppendOpt func(appendConfig) appendConfig

// WithTransactionID sets the transaction id recorded with every appended event.
// A UUIDv7 is generated if not provided
func WithTransactionID(id string) AppendOpt {
	return func(cfg appendConfig) appendConfig {
		cfg.transactionID = id

		return cfg
	}
}

// WithCorrelationID sets the correlation id recorded with every appended event
func WithCorrelationID(id string) AppendOpt {
	return func(cfg appendConfig) appendConfig {
		cfg.correlationID = id

		return cfg
	}
}

// AppendEvents atomically appends the events of all requests to their streams.
// Each request is checked against the current sequence number of its stream
// (see AppendRequest). If any request is rejected nothing is written and a
// *ConsistencyError listing every rejected request is returned.
// On success the stored events are returned in request order and, within a
// request, in the order they were given. Serialization conflicts reported
// by the database are retried up to the configured number of retries
func (es *EventStore) AppendEvents(
	ctx context.Context,
	requests []AppendRequest,
	opts ...AppendOpt) ([]Event, error) {

	if err := checkAppendRequests(requests); err != nil {
		return nil, err
	}

	var cfg appendConfig

	for _, opt := range opts {
		cfg = opt(cfg)
	}

	if cfg.transactionID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate transaction id: %w", err)
		}

		cfg.transactionID = id.String()
	}

	streams := requestStreams(requests)

	events, err := es.inTransaction(ctx, func(tx *gorm.DB) ([]Event, error) {
		current, err := resolveSequenceNumbers(ctx, tx, es.cfg.Table, streams)
		if err != nil {
			return nil, err
		}

		pending, err := validateAppendRequests(requests, current)
		if err != nil {
			return nil, err
		}

		return writeEvents(
			ctx, tx, es.cfg.Table, pending,
			cfg.correlationID, cfg.transactionID, es.storedOn(),
		)
	})
	if err != nil {
		return nil, err
	}

	es.cfg.Logger.Debug(ctx, "events appended",
		"transaction_id", cfg.transactionID,
		"streams", len(requests),
		"events", len(events))

	return events, nil
}

// storedOn returns the timestamp to store events with. Sqlite has no
// transaction timestamp, so it is taken once per attempt here
func (es *EventStore) storedOn() time.Time {
	if es.cfg.dialect == dialectSQLite {
		return time.Now().UTC()
	}

	return time.Time{}
}
