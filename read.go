package eventstore

import (
	"context"
	"fmt"
	"iter"

	"gorm.io/gorm"
)

type readConfig struct {
	limit int
}

// ReadOpt represents read option
type ReadOpt func(readConfig) readConfig

// WithLimit limits the number of events a read yields.
// A limit of 0 or less means no limit
func WithLimit(limit int) ReadOpt {
	return func(cfg readConfig) readConfig {
		cfg.limit = limit

		return cfg
	}
}

// cursorRead describes one of the read shapes: which events match and
// which column the cursor advances on
type cursorRead struct {
	name         string
	filter       func(*gorm.DB) *gorm.DB
	cursorColumn string
	cursor       func(eventRecord) int64
	from         int64
}

// GetEvents reads all events with id greater than fromEventID in ascending id order.
// The sequence ends once all events stored when the read started were yielded,
// or once limit events were yielded. A read error is yielded as the last element
func (es *EventStore) GetEvents(
	ctx context.Context,
	fromEventID int64,
	opts ...ReadOpt) iter.Seq2[Event, error] {

	return es.read(ctx, cursorRead{
		name:         "events",
		filter:       func(db *gorm.DB) *gorm.DB { return db },
		cursorColumn: "id",
		cursor:       func(r eventRecord) int64 { return r.ID },
		from:         fromEventID,
	}, opts)
}

// GetEventsByStream reads events of a single stream with sequence number
// greater than fromSequenceNumber, in ascending id order
func (es *EventStore) GetEventsByStream(
	ctx context.Context,
	stream StreamIdentity,
	fromSequenceNumber int64,
	opts ...ReadOpt) iter.Seq2[Event, error] {

	if err := stream.Validate(); err != nil {
		return failed(err)
	}

	return es.read(ctx, cursorRead{
		name: "stream events",
		filter: func(db *gorm.DB) *gorm.DB {
			return db.Where(
				"stream_context = ? AND stream_name = ? AND stream_id = ?",
				stream.Context, stream.Name, stream.ID,
			)
		},
		cursorColumn: "sequence_number",
		cursor:       func(r eventRecord) int64 { return r.SequenceNumber },
		from:         fromSequenceNumber,
	}, opts)
}

// GetEventsByStreamType reads events of all streams of the given type with
// id greater than fromEventID, in ascending id order
func (es *EventStore) GetEventsByStreamType(
	ctx context.Context,
	streamType StreamType,
	fromEventID int64,
	opts ...ReadOpt) iter.Seq2[Event, error] {

	if err := streamType.Validate(); err != nil {
		return failed(err)
	}

	return es.read(ctx, cursorRead{
		name: "stream type events",
		filter: func(db *gorm.DB) *gorm.DB {
			return db.Where(
				"stream_context = ? AND stream_name = ?",
				streamType.Context, streamType.Name,
			)
		},
		cursorColumn: "id",
		cursor:       func(r eventRecord) int64 { return r.ID },
		from:         fromEventID,
	}, opts)
}

// read pages through the events matching r.filter. The scan is bounded by
// the id of the latest matching event at the time the read starts
func (es *EventStore) read(ctx context.Context, r cursorRead, opts []ReadOpt) iter.Seq2[Event, error] {
	var cfg readConfig

	for _, opt := range opts {
		cfg = opt(cfg)
	}

	return func(yield func(Event, error) bool) {
		var last []eventRecord

		err := es.table(ctx).
			Scopes(r.filter).
			Select("id").
			Order("id DESC").
			Limit(1).
			Find(&last).Error
		if err != nil {
			yield(Event{}, fmt.Errorf("failed to read %s upper bound: %w", r.name, err))

			return
		}

		if len(last) == 0 {
			return
		}

		var (
			upperBound = last[0].ID
			cursor     = r.from
			emitted    = 0
		)

		for {
			var batch []eventRecord

			err := es.table(ctx).
				Scopes(r.filter).
				Where(r.cursorColumn+" > ?", cursor).
				Where("id <= ?", upperBound).
				Order("id ASC").
				Limit(es.cfg.BatchSize).
				Find(&batch).Error
			if err != nil {
				yield(Event{}, fmt.Errorf("failed to read %s: %w", r.name, err))

				return
			}

			for _, rec := range batch {
				if cfg.limit > 0 && emitted >= cfg.limit {
					return
				}

				if !yield(rec.toEvent(), nil) {
					return
				}

				emitted++
				cursor = r.cursor(rec)
			}

			if len(batch) < es.cfg.BatchSize || (cfg.limit > 0 && emitted >= cfg.limit) {
				return
			}
		}
	}
}

// Collect drains a read into a slice
func Collect(events iter.Seq2[Event, error]) ([]Event, error) {
	out := []Event{}

	for evt, err := range events {
		if err != nil {
			return nil, err
		}

		out = append(out, evt)
	}

	return out, nil
}

func failed(err error) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		yield(Event{}, err)
	}
}
