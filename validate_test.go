package eventstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	streamA = StreamIdentity{Context: "ctx", Name: "a", ID: "1"}
	streamB = StreamIdentity{Context: "ctx", Name: "b", ID: "1"}
)

func eventData(types ...string) []EventData {
	out := make([]EventData, len(types))

	for i, typ := range types {
		out[i] = EventData{Type: typ, Data: []byte(`{}`)}
	}

	return out
}

func TestCheckAppendRequests(t *testing.T) {
	cases := []struct {
		name     string
		requests []AppendRequest
		wantErr  error
	}{
		{
			name:     "no requests",
			requests: nil,
			wantErr:  ErrNoAppendRequests,
		},
		{
			name:     "missing stream context",
			requests: []AppendRequest{{Stream: StreamIdentity{Name: "a", ID: "1"}, Events: eventData("E")}},
			wantErr:  ErrInvalidAppendRequest,
		},
		{
			name:     "missing stream id",
			requests: []AppendRequest{{Stream: StreamIdentity{Context: "ctx", Name: "a"}, Events: eventData("E")}},
			wantErr:  ErrInvalidAppendRequest,
		},
		{
			name:     "expected sequence number below any",
			requests: []AppendRequest{{Stream: streamA, Events: eventData("E"), ExpectedSequenceNumber: -3}},
			wantErr:  ErrInvalidAppendRequest,
		},
		{
			name:     "event without type",
			requests: []AppendRequest{{Stream: streamA, Events: eventData("E", "")}},
			wantErr:  ErrInvalidAppendRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, checkAppendRequests(tc.requests), tc.wantErr)
		})
	}

	err := checkAppendRequests([]AppendRequest{
		{Stream: streamA, Events: eventData("E"), ExpectedSequenceNumber: AnySequenceNumber},
		{Stream: streamB, ExpectedSequenceNumber: AnyPositiveSequenceNumber},
	})

	assert.NoError(t, err)
}

func TestValidateAppendRequestsAssignsSequenceNumbers(t *testing.T) {
	pending, err := validateAppendRequests(
		[]AppendRequest{
			{Stream: streamA, Events: eventData("A1", "A2"), ExpectedSequenceNumber: 3},
			{Stream: streamB, Events: eventData("B1"), ExpectedSequenceNumber: InitialSequenceNumber},
		},
		map[StreamIdentity]int64{streamA: 3, streamB: 0},
	)

	require.NoError(t, err)
	require.Len(t, pending, 3)

	assert.Equal(t, pendingEvent{stream: streamA, event: eventData("A1")[0], sequenceNumber: 4}, pending[0])
	assert.Equal(t, pendingEvent{stream: streamA, event: eventData("A2")[0], sequenceNumber: 5}, pending[1])
	assert.Equal(t, pendingEvent{stream: streamB, event: eventData("B1")[0], sequenceNumber: 1}, pending[2])
}

func TestValidateAppendRequestsExpectations(t *testing.T) {
	cases := []struct {
		name     string
		current  int64
		expected int64
		wantErr  error
	}{
		{name: "any on new stream", current: 0, expected: AnySequenceNumber},
		{name: "any on existing stream", current: 7, expected: AnySequenceNumber},
		{name: "any positive on existing stream", current: 7, expected: AnyPositiveSequenceNumber},
		{name: "any positive on new stream", current: 0, expected: AnyPositiveSequenceNumber, wantErr: ErrStreamDoesNotExist},
		{name: "exact match", current: 7, expected: 7},
		{name: "initial on new stream", current: 0, expected: InitialSequenceNumber},
		{name: "initial on existing stream", current: 7, expected: InitialSequenceNumber, wantErr: ErrSequenceMismatch},
		{name: "behind", current: 7, expected: 6, wantErr: ErrSequenceMismatch},
		{name: "ahead", current: 7, expected: 8, wantErr: ErrSequenceMismatch},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pending, err := validateAppendRequests(
				[]AppendRequest{{Stream: streamA, Events: eventData("E"), ExpectedSequenceNumber: tc.expected}},
				map[StreamIdentity]int64{streamA: tc.current},
			)

			if tc.wantErr == nil {
				require.NoError(t, err)
				require.Len(t, pending, 1)
				assert.Equal(t, tc.current+1, pending[0].sequenceNumber)

				return
			}

			assert.ErrorIs(t, err, tc.wantErr)
			assert.ErrorIs(t, err, ErrConsistencyViolation)
			assert.Nil(t, pending)
		})
	}
}

func TestValidateAppendRequestsCollectsEveryViolation(t *testing.T) {
	_, err := validateAppendRequests(
		[]AppendRequest{
			{Stream: streamA, Events: eventData("A1"), ExpectedSequenceNumber: 1},
			{Stream: streamB, Events: eventData("B1"), ExpectedSequenceNumber: AnyPositiveSequenceNumber},
		},
		map[StreamIdentity]int64{streamA: 2, streamB: 0},
	)

	var ce *ConsistencyError

	require.True(t, errors.As(err, &ce))
	require.Len(t, ce.Violations, 2)

	var mismatch *SequenceMismatchError

	require.True(t, errors.As(ce.Violations[0], &mismatch))
	assert.Equal(t, SequenceMismatchError{Stream: streamA, Actual: 2, Expected: 1}, *mismatch)

	var notExist *StreamDoesNotExistError

	require.True(t, errors.As(ce.Violations[1], &notExist))
	assert.Equal(t, streamB, notExist.Stream)
}

func TestValidateAppendRequestsChainsRequestsOnTheSameStream(t *testing.T) {
	pending, err := validateAppendRequests(
		[]AppendRequest{
			{Stream: streamA, Events: eventData("A1", "A2"), ExpectedSequenceNumber: 0},
			{Stream: streamA, Events: eventData("A3"), ExpectedSequenceNumber: 2},
			{Stream: streamA, Events: eventData("A4"), ExpectedSequenceNumber: AnyPositiveSequenceNumber},
		},
		map[StreamIdentity]int64{streamA: 0},
	)

	require.NoError(t, err)
	require.Len(t, pending, 4)

	for i, p := range pending {
		assert.Equal(t, int64(i+1), p.sequenceNumber)
	}

	_, err = validateAppendRequests(
		[]AppendRequest{
			{Stream: streamA, Events: eventData("A1"), ExpectedSequenceNumber: 0},
			{Stream: streamA, Events: eventData("A2"), ExpectedSequenceNumber: 0},
		},
		map[StreamIdentity]int64{streamA: 0},
	)

	assert.ErrorIs(t, err, ErrSequenceMismatch)
}

func TestValidateAppendRequestsWithoutEvents(t *testing.T) {
	pending, err := validateAppendRequests(
		[]AppendRequest{
			{Stream: streamA, ExpectedSequenceNumber: 4},
		},
		map[StreamIdentity]int64{streamA: 4},
	)

	assert.NoError(t, err)
	assert.Empty(t, pending)

	_, err = validateAppendRequests(
		[]AppendRequest{
			{Stream: streamA, ExpectedSequenceNumber: 3},
		},
		map[StreamIdentity]int64{streamA: 4},
	)

	assert.ErrorIs(t, err, ErrSequenceMismatch)
}
