// Package eventstore provides an event store access layer on top of
// CockroachDB (or any other serializable, postgres compatible database,
// with sqlite supported as a light-weight alternative).
//
// Events are appended to streams atomically, across any number of streams,
// under per-stream optimistic concurrency control. Serialization conflicts
// reported by the database are retried transparently.
// Events are read back as bounded, cursor paginated scans ordered by their
// global id: all events, events of a single stream or events of a stream type.
package eventstore

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	// registers the pure go "sqlite" database/sql driver
	_ "modernc.org/sqlite"
)

// New constructs new event store.
// Exactly one of WithCockroachDB, WithPostgresDB, WithSQLiteDB or
// WithPureGoSQLiteDB must be provided
func New(opts ...Option) (*EventStore, error) {
	cfg := DefaultCfg()

	for _, opt := range opts {
		cfg = opt(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Logger == nil {
		cfg.Logger = NoOpLogger{}
	}

	var dial gorm.Dialector

	dial, cfg.dialect = cfg.dialector()

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 cfg.GormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxPoolClients)
	sqlDB.SetMaxIdleConns(cfg.MaxPoolClients)
	sqlDB.SetConnMaxIdleTime(cfg.IdleTimeout)

	es := &EventStore{
		db:         db,
		cfg:        cfg,
		isConflict: retryable(cfg.RestartTransactions),
	}

	if cfg.Migrate {
		if err := es.Migrate(context.Background()); err != nil {
			_ = sqlDB.Close()

			return nil, err
		}
	}

	return es, nil
}

// EventStore is an event store backed by a sql database.
// It is safe for concurrent use
type EventStore struct {
	db  *gorm.DB
	cfg Cfg

	isConflict func(error) bool
}

// Close should be called as a part of cleanup process
// in order to close the underlying sql connection pool
func (es *EventStore) Close() error {
	sqlDB, err := es.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Table returns the name of the events table
func (es *EventStore) Table() string { return es.cfg.Table }

func (es *EventStore) table(ctx context.Context) *gorm.DB {
	return es.db.WithContext(ctx).Table(es.cfg.Table)
}
