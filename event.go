package eventstore

import (
	"fmt"
	"time"
)

const (
	// AnySequenceNumber can be used as an expected sequence number when the
	// stream may be at any sequence, including not existing at all
	AnySequenceNumber int64 = -2

	// AnyPositiveSequenceNumber can be used as an expected sequence number when
	// the stream must already exist, regardless of its current sequence
	AnyPositiveSequenceNumber int64 = -1

	// InitialSequenceNumber is the sequence number of a stream with no events.
	// Use it as an expected sequence number to create a new stream
	InitialSequenceNumber int64 = 0
)

// StreamType groups streams by bounded context and name
type StreamType struct {
	Context string `json:"context"`
	Name    string `json:"name"`
}

// Stream returns the identity of the stream of this type with the given id
func (t StreamType) Stream(id string) StreamIdentity {
	return StreamIdentity{
		Context: t.Context,
		Name:    t.Name,
		ID:      id,
	}
}

// Validate reports a stream type missing its context or name
func (t StreamType) Validate() error {
	if t.Context == "" || t.Name == "" {
		return fmt.Errorf("stream type context and name must be provided")
	}

	return nil
}

// StreamIdentity is the compound key naming a stream
type StreamIdentity struct {
	Context string `json:"context"`
	Name    string `json:"name"`
	ID      string `json:"id"`
}

// Type returns the stream type the stream belongs to
func (s StreamIdentity) Type() StreamType {
	return StreamType{Context: s.Context, Name: s.Name}
}

// String returns context:name:id
func (s StreamIdentity) String() string {
	return fmt.Sprintf("%s:%s:%s", s.Context, s.Name, s.ID)
}

// Validate reports a stream identity with any of its parts missing
func (s StreamIdentity) Validate() error {
	if s.Context == "" || s.Name == "" || s.ID == "" {
		return fmt.Errorf("stream %q: context, name and id must be provided", s)
	}

	return nil
}

// EventData represents an event that is to be appended to a stream
type EventData struct {
	Type string
	Data []byte
}

// AppendRequest describes events to be appended to a single stream.
// ExpectedSequenceNumber is either a non negative sequence number the stream
// must currently be at, AnySequenceNumber or AnyPositiveSequenceNumber
type AppendRequest struct {
	Stream                 StreamIdentity
	Events                 []EventData
	ExpectedSequenceNumber int64
}

// Event is an event stored in the event store
type Event struct {
	// ID is assigned by the storage and orders all events across all streams
	ID     int64
	Stream StreamIdentity
	Type   string
	Data   []byte

	// SequenceNumber is the 1-based position of the event within its stream
	SequenceNumber int64
	StoredOn       time.Time
	TransactionID  string

	// CorrelationID is empty if none was provided on append
	CorrelationID string
}
