package eventstore

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStreamDoesNotExist indicates that AnyPositiveSequenceNumber was expected
	// for a stream with no events
	ErrStreamDoesNotExist = errors.New("stream does not exist")

	// ErrSequenceMismatch indicates that the stream is not at the expected sequence number
	ErrSequenceMismatch = errors.New("stream sequence mismatch")

	// ErrConsistencyViolation is matched by a ConsistencyError returned when at least
	// one of the append requests was rejected
	ErrConsistencyViolation = errors.New("consistency violation")

	// ErrRetryExhausted is returned when an append kept hitting serialization
	// conflicts for more than the configured number of retries
	ErrRetryExhausted = errors.New("append retries exhausted")

	// ErrNoAppendRequests is returned by AppendEvents when called without requests
	ErrNoAppendRequests = errors.New("at least one append request must be provided")

	// ErrInvalidAppendRequest is returned by AppendEvents for malformed requests,
	// before any transaction is opened
	ErrInvalidAppendRequest = errors.New("invalid append request")
)

// StreamDoesNotExistError is a rejection of an append request which expected
// an existing stream
type StreamDoesNotExistError struct {
	Stream StreamIdentity
}

func (e *StreamDoesNotExistError) Error() string {
	return fmt.Sprintf("%s: %s", ErrStreamDoesNotExist, e.Stream)
}

// Is makes errors.Is(err, ErrStreamDoesNotExist) work
func (e *StreamDoesNotExistError) Is(target error) bool {
	return target == ErrStreamDoesNotExist
}

// SequenceMismatchError is a rejection of an append request whose expected
// sequence number did not match the actual one
type SequenceMismatchError struct {
	Stream   StreamIdentity
	Actual   int64
	Expected int64
}

func (e *SequenceMismatchError) Error() string {
	return fmt.Sprintf(
		"%s: %s is at %d, expected %d",
		ErrSequenceMismatch, e.Stream, e.Actual, e.Expected,
	)
}

// Is makes errors.Is(err, ErrSequenceMismatch) work
func (e *SequenceMismatchError) Is(target error) bool {
	return target == ErrSequenceMismatch
}

// ConsistencyError carries every rejected append request of a batch.
// Each violation is either *StreamDoesNotExistError or *SequenceMismatchError
type ConsistencyError struct {
	Violations []error
}

func (e *ConsistencyError) Error() string {
	msgs := make([]string, len(e.Violations))

	for i, v := range e.Violations {
		msgs[i] = v.Error()
	}

	return fmt.Sprintf("%s: %s", ErrConsistencyViolation, strings.Join(msgs, "; "))
}

// Is makes errors.Is(err, ErrConsistencyViolation) work
func (e *ConsistencyError) Is(target error) bool {
	return target == ErrConsistencyViolation
}

// Unwrap exposes the individual violations to errors.Is and errors.As
func (e *ConsistencyError) Unwrap() []error {
	return e.Violations
}
