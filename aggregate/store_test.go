package aggregate_test

import (
	"context"
	"fmt"
	"iter"
	"testing"

	eventstore "github.com/aneshas/cockroach-eventstore"
	"github.com/aneshas/cockroach-eventstore/aggregate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fooStreamType = eventstore.StreamType{Context: "test", Name: "foo"}

type eventStore struct {
	requests []eventstore.AppendRequest
	opts     []eventstore.AppendOpt
	ctx      context.Context

	storedEvents []eventstore.Event
	readStream   eventstore.StreamIdentity

	wantErr error
}

func (e *eventStore) AppendEvents(
	ctx context.Context,
	requests []eventstore.AppendRequest,
	opts ...eventstore.AppendOpt) ([]eventstore.Event, error) {

	if e.wantErr != nil {
		return nil, e.wantErr
	}

	e.requests = requests
	e.opts = opts
	e.ctx = ctx

	return []eventstore.Event{}, nil
}

func (e *eventStore) GetEventsByStream(
	_ context.Context,
	stream eventstore.StreamIdentity,
	_ int64,
	_ ...eventstore.ReadOpt) iter.Seq2[eventstore.Event, error] {

	e.readStream = stream

	return func(yield func(eventstore.Event, error) bool) {
		if e.wantErr != nil {
			yield(eventstore.Event{}, e.wantErr)

			return
		}

		for _, evt := range e.storedEvents {
			if !yield(evt, nil) {
				return
			}
		}
	}
}

type fooEvent struct {
	Foo string
}

// ID represents an ID
type ID string

func (id ID) String() string {
	return string(id)
}

type foo struct {
	aggregate.Root[ID]

	Foos []string
}

func (f *foo) doStuff() {
	f.Apply(
		fooEvent{
			Foo: "foo-1",
		},
		fooEvent{
			Foo: "foo-2",
		},
	)
}

func (f *foo) doMoreStuff() {
	f.Apply(
		fooEvent{
			Foo: "foo-3",
		},
	)
}

// OnfooEvent handler
func (f *foo) OnfooEvent(evt fooEvent) {
	f.Foos = append(f.Foos, evt.Foo)
}

func newFooStore(es *eventStore) *aggregate.Store[*foo] {
	return aggregate.NewStore[*foo](es, fooStreamType, eventstore.NewJSONEncoder(fooEvent{}))
}

func storedFooEvent(t *testing.T, id string, seq int64, foo string) eventstore.Event {
	t.Helper()

	data, err := eventstore.NewJSONEncoder().Encode(fooEvent{Foo: foo})
	require.NoError(t, err)

	return eventstore.Event{
		ID:             seq,
		Stream:         fooStreamType.Stream(id),
		Type:           data.Type,
		Data:           data.Data,
		SequenceNumber: seq,
	}
}

func TestShould_Save_Aggregate_Events(t *testing.T) {
	var es eventStore

	store := newFooStore(&es)

	ctx := aggregate.CtxWithCorrelationID(context.Background(), "some-correlation-id")

	var f foo

	f.SetID("foo-1")
	f.Rehydrate(&f)
	f.doStuff()

	err := store.Save(ctx, &f)

	require.NoError(t, err)
	require.Len(t, es.requests, 1)

	req := es.requests[0]

	assert.Equal(t, fooStreamType.Stream("foo-1"), req.Stream)
	assert.Equal(t, eventstore.InitialSequenceNumber, req.ExpectedSequenceNumber)
	require.Len(t, req.Events, 2)
	assert.Equal(t, "fooEvent", req.Events[0].Type)
	assert.JSONEq(t, `{"Foo":"foo-1"}`, string(req.Events[0].Data))
	assert.JSONEq(t, `{"Foo":"foo-2"}`, string(req.Events[1].Data))
	assert.Len(t, es.opts, 1)
	assert.Equal(t, ctx, es.ctx)

	assert.Equal(t, int64(2), f.Version())
	assert.Empty(t, f.Events())
}

func TestShould_Save_Multiple_Aggregates_In_One_Append(t *testing.T) {
	var es eventStore

	store := newFooStore(&es)

	var f1, f2, f3 foo

	f1.SetID("foo-1")
	f1.Rehydrate(&f1, fooEvent{Foo: "foo-0"})
	f1.doMoreStuff()

	f2.SetID("foo-2")
	f2.Rehydrate(&f2)
	f2.doStuff()

	f3.SetID("foo-3")
	f3.Rehydrate(&f3)

	err := store.SaveAll(context.Background(), &f1, &f2, &f3)

	require.NoError(t, err)
	require.Len(t, es.requests, 2)

	assert.Equal(t, fooStreamType.Stream("foo-1"), es.requests[0].Stream)
	assert.Equal(t, int64(1), es.requests[0].ExpectedSequenceNumber)
	assert.Len(t, es.requests[0].Events, 1)

	assert.Equal(t, fooStreamType.Stream("foo-2"), es.requests[1].Stream)
	assert.Equal(t, int64(0), es.requests[1].ExpectedSequenceNumber)
	assert.Len(t, es.requests[1].Events, 2)

	assert.Equal(t, int64(2), f1.Version())
	assert.Equal(t, int64(2), f2.Version())
}

func TestShould_Not_Append_Without_Uncommitted_Events(t *testing.T) {
	var es eventStore

	store := newFooStore(&es)

	var f foo

	f.SetID("foo-1")
	f.Rehydrate(&f)

	err := store.Save(context.Background(), &f)

	assert.NoError(t, err)
	assert.Nil(t, es.requests)
}

func TestShould_Keep_Events_Uncommitted_On_Save_Error(t *testing.T) {
	es := eventStore{
		wantErr: &eventstore.ConsistencyError{
			Violations: []error{
				&eventstore.SequenceMismatchError{
					Stream:   fooStreamType.Stream("foo-1"),
					Actual:   1,
					Expected: 0,
				},
			},
		},
	}

	store := newFooStore(&es)

	var f foo

	f.SetID("foo-1")
	f.Rehydrate(&f)
	f.doStuff()

	err := store.Save(context.Background(), &f)

	assert.ErrorIs(t, err, eventstore.ErrSequenceMismatch)
	assert.Len(t, f.Events(), 2)
	assert.Equal(t, int64(0), f.Version())
}

func TestShould_Rehydrate_Aggregate_By_ID(t *testing.T) {
	es := eventStore{
		storedEvents: []eventstore.Event{
			storedFooEvent(t, "foo-1", 1, "foo-1"),
			storedFooEvent(t, "foo-1", 2, "foo-2"),
		},
	}

	store := newFooStore(&es)

	var f foo

	err := store.ByID(context.Background(), "foo-1", &f)

	require.NoError(t, err)
	assert.Equal(t, fooStreamType.Stream("foo-1"), es.readStream)
	assert.Equal(t, []string{"foo-1", "foo-2"}, f.Foos)
	assert.Equal(t, int64(2), f.Version())
}

func TestShould_Report_Read_Error(t *testing.T) {
	wantErr := fmt.Errorf("connection reset")

	es := eventStore{
		wantErr: wantErr,
	}

	store := newFooStore(&es)

	var f foo

	err := store.ByID(context.Background(), "foo-1", &f)

	assert.ErrorIs(t, err, wantErr)
}

func TestShould_Report_Unknown_Event_Type(t *testing.T) {
	es := eventStore{
		storedEvents: []eventstore.Event{
			{
				ID:             1,
				Stream:         fooStreamType.Stream("foo-1"),
				Type:           "barEvent",
				Data:           []byte(`{}`),
				SequenceNumber: 1,
			},
		},
	}

	store := newFooStore(&es)

	var f foo

	err := store.ByID(context.Background(), "foo-1", &f)

	assert.ErrorIs(t, err, eventstore.ErrEventNotRegistered)
}
