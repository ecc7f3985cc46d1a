package httpapi

import (
	"encoding/json"
	"errors"
	"time"

	eventstore "github.com/aneshas/cockroach-eventstore"
)

type appendEventsRequest struct {
	Requests      []appendRequest `json:"requests" binding:"required"`
	CorrelationID string          `json:"correlation_id"`
	TransactionID string          `json:"transaction_id"`
}

type appendRequest struct {
	Stream                 eventstore.StreamIdentity `json:"stream"`
	Events                 []eventData               `json:"events"`
	ExpectedSequenceNumber int64                     `json:"expected_sequence_number"`
}

type eventData struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (r appendEventsRequest) toAppendRequests() []eventstore.AppendRequest {
	requests := make([]eventstore.AppendRequest, len(r.Requests))

	for i, req := range r.Requests {
		events := make([]eventstore.EventData, len(req.Events))

		for j, evt := range req.Events {
			events[j] = eventstore.EventData{
				Type: evt.Type,
				Data: []byte(evt.Data),
			}
		}

		requests[i] = eventstore.AppendRequest{
			Stream:                 req.Stream,
			Events:                 events,
			ExpectedSequenceNumber: req.ExpectedSequenceNumber,
		}
	}

	return requests
}

// Event is the json representation of a stored event
type Event struct {
	ID             int64                     `json:"id"`
	Stream         eventstore.StreamIdentity `json:"stream"`
	Type           string                    `json:"type"`
	Data           any                       `json:"data"`
	SequenceNumber int64                     `json:"sequence_number"`
	StoredOn       time.Time                 `json:"stored_on"`
	TransactionID  string                    `json:"transaction_id"`
	CorrelationID  string                    `json:"correlation_id"`
}

// NewEvent converts a stored event to its json representation.
// It embeds json payloads as is, anything else is base64 encoded
func NewEvent(evt eventstore.Event) Event {
	var data any = evt.Data

	if len(evt.Data) > 0 && json.Valid(evt.Data) {
		data = json.RawMessage(evt.Data)
	}

	return Event{
		ID:             evt.ID,
		Stream:         evt.Stream,
		Type:           evt.Type,
		Data:           data,
		SequenceNumber: evt.SequenceNumber,
		StoredOn:       evt.StoredOn,
		TransactionID:  evt.TransactionID,
		CorrelationID:  evt.CorrelationID,
	}
}

func newEvents(evts []eventstore.Event) []Event {
	out := make([]Event, len(evts))

	for i, evt := range evts {
		out[i] = NewEvent(evt)
	}

	return out
}

type appendEventsResponse struct {
	Events []Event `json:"events"`
}

type errorResponse struct {
	Error      string      `json:"error"`
	Violations []violation `json:"violations,omitempty"`
}

type violation struct {
	Stream   eventstore.StreamIdentity `json:"stream"`
	Reason   string                    `json:"reason"`
	Actual   *int64                    `json:"actual,omitempty"`
	Expected *int64                    `json:"expected,omitempty"`
}

const (
	reasonStreamDoesNotExist = "stream_does_not_exist"
	reasonSequenceMismatch   = "sequence_mismatch"
)

func newViolations(ce *eventstore.ConsistencyError) []violation {
	out := make([]violation, 0, len(ce.Violations))

	for _, v := range ce.Violations {
		var (
			notExist *eventstore.StreamDoesNotExistError
			mismatch *eventstore.SequenceMismatchError
		)

		switch {
		case errors.As(v, &notExist):
			out = append(out, violation{
				Stream: notExist.Stream,
				Reason: reasonStreamDoesNotExist,
			})

		case errors.As(v, &mismatch):
			out = append(out, violation{
				Stream:   mismatch.Stream,
				Reason:   reasonSequenceMismatch,
				Actual:   &mismatch.Actual,
				Expected: &mismatch.Expected,
			})
		}
	}

	return out
}

// readLine is a single line of a newline delimited json read response.
// Every event is sent on its own line, followed by either an end or an error line
type readLine struct {
	Event *Event `json:"event,omitempty"`
	End   bool   `json:"end,omitempty"`
	Error string `json:"error,omitempty"`
}
