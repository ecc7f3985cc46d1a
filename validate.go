package eventstore

import "fmt"

type pendingEvent struct {
	stream         StreamIdentity
	event          EventData
	sequenceNumber int64
}

// checkAppendRequests validates append requests before any transaction is opened
func checkAppendRequests(requests []AppendRequest) error {
	if len(requests) == 0 {
		return ErrNoAppendRequests
	}

	for i, r := range requests {
		if err := r.Stream.Validate(); err != nil {
			return fmt.Errorf("%w %d: %w", ErrInvalidAppendRequest, i, err)
		}

		if r.ExpectedSequenceNumber < AnySequenceNumber {
			return fmt.Errorf(
				"%w %d: expected sequence number %d is out of range",
				ErrInvalidAppendRequest, i, r.ExpectedSequenceNumber,
			)
		}

		for j, evt := range r.Events {
			if evt.Type == "" {
				return fmt.Errorf("%w %d: event %d: type must be provided", ErrInvalidAppendRequest, i, j)
			}
		}
	}

	return nil
}

// validateAppendRequests decides on every request against the current
// stream sequence numbers and assigns sequence numbers to the events of
// accepted requests. Rejections are collected so that a *ConsistencyError
// reports every violated request. Requests targeting the same stream
// see the sequence number left by the previous request of the batch
func validateAppendRequests(
	requests []AppendRequest,
	current map[StreamIdentity]int64) ([]pendingEvent, error) {

	sequences := make(map[StreamIdentity]int64, len(current))

	for s, seq := range current {
		sequences[s] = seq
	}

	var (
		pending    []pendingEvent
		violations []error
	)

	for _, r := range requests {
		actual := sequences[r.Stream]

		switch {
		case r.ExpectedSequenceNumber == AnySequenceNumber:

		case r.ExpectedSequenceNumber == AnyPositiveSequenceNumber:
			if actual == 0 {
				violations = append(violations, &StreamDoesNotExistError{
					Stream: r.Stream,
				})

				continue
			}

		case actual != r.ExpectedSequenceNumber:
			violations = append(violations, &SequenceMismatchError{
				Stream:   r.Stream,
				Actual:   actual,
				Expected: r.ExpectedSequenceNumber,
			})

			continue
		}

		for i, evt := range r.Events {
			pending = append(pending, pendingEvent{
				stream:         r.Stream,
				event:          evt,
				sequenceNumber: actual + int64(i) + 1,
			})
		}

		sequences[r.Stream] = actual + int64(len(r.Events))
	}

	if len(violations) > 0 {
		return nil, &ConsistencyError{Violations: violations}
	}

	return pending, nil
}

func requestStreams(requests []AppendRequest) []StreamIdentity {
	streams := make([]StreamIdentity, len(requests))

	for i, r := range requests {
		streams[i] = r.Stream
	}

	return streams
}
