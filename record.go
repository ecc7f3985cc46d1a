package eventstore

import "time"

type eventRecord struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	StreamContext  string    `gorm:"column:stream_context"`
	StreamName     string    `gorm:"column:stream_name"`
	StreamID       string    `gorm:"column:stream_id"`
	Type           string    `gorm:"column:type"`
	SequenceNumber int64     `gorm:"column:sequence_number"`
	Data           []byte    `gorm:"column:data"`
	CorrelationID  *string   `gorm:"column:correlation_id"`
	TransactionID  string    `gorm:"column:transaction_id"`
	StoredOn       time.Time `gorm:"column:stored_on;default:CURRENT_TIMESTAMP"`
}

// TableName returns the default gorm table name. Queries always
// select the configured table explicitly
func (eventRecord) TableName() string { return defaultTable }

func (r eventRecord) toEvent() Event {
	var correlationID string

	if r.CorrelationID != nil {
		correlationID = *r.CorrelationID
	}

	return Event{
		ID: r.ID,
		Stream: StreamIdentity{
			Context: r.StreamContext,
			Name:    r.StreamName,
			ID:      r.StreamID,
		},
		Type:           r.Type,
		Data:           r.Data,
		SequenceNumber: r.SequenceNumber,
		StoredOn:       r.StoredOn.UTC(),
		TransactionID:  r.TransactionID,
		CorrelationID:  correlationID,
	}
}

func toEvents(records []eventRecord) []Event {
	events := make([]Event, len(records))

	for i, r := range records {
		events[i] = r.toEvent()
	}

	return events
}
