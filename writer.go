package eventstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// writeEvents inserts all pending events with a single multi-row insert
// and returns the stored events in insertion order.
// A zero storedOn leaves the timestamp to the column default, which is the
// transaction timestamp and therefore shared by every row
func writeEvents(
	ctx context.Context,
	tx *gorm.DB,
	table string,
	pending []pendingEvent,
	correlationID string,
	transactionID string,
	storedOn time.Time) ([]Event, error) {

	if len(pending) == 0 {
		return []Event{}, nil
	}

	var correlation *string

	if correlationID != "" {
		correlation = &correlationID
	}

	records := make([]eventRecord, len(pending))

	for i, p := range pending {
		records[i] = eventRecord{
			StreamContext:  p.stream.Context,
			StreamName:     p.stream.Name,
			StreamID:       p.stream.ID,
			Type:           p.event.Type,
			SequenceNumber: p.sequenceNumber,
			Data:           p.event.Data,
			CorrelationID:  correlation,
			TransactionID:  transactionID,
			StoredOn:       storedOn,
		}
	}

	db := tx.WithContext(ctx).Table(table)

	// the timestamp is already known, only ids are read back
	if !storedOn.IsZero() {
		db = db.Clauses(clause.Returning{Columns: []clause.Column{{Name: "id"}}})
	}

	if err := db.Create(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to insert events: %w", err)
	}

	return toEvents(records), nil
}
