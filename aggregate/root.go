package aggregate

import (
	"fmt"
	"reflect"
)

var (
	// ErrMissingAggregateEventHandler is returned when aggregate event handler is missing
	// On{EventName} method
	ErrMissingAggregateEventHandler = fmt.Errorf("missing aggregate event handler")

	// ErrAggregateRootNotAPointer is returned when supplied aggregate root is not a pointer
	ErrAggregateRootNotAPointer = fmt.Errorf("aggregate needs to be a pointer")

	// ErrAggregateRootNotRehydrated is returned when aggregate is not rehydrated (with Rehydrate method)
	ErrAggregateRootNotRehydrated = fmt.Errorf("aggregate needs to be rehydrated")
)

// Rooter represents an aggregate root which can be persisted with Store.
// Embed Root in order to implement it
type Rooter interface {
	StringID() string
	Version() int64
	Events() []any
	Rehydrate(aggregatePtr any, events ...any)

	commit()
}

// Root represents reusable DDD Event Sourcing friendly Aggregate
// base type which provides helpers for easy aggregate initialization and
// event handler execution
type Root[T fmt.Stringer] struct {
	ID T

	version      int64
	domainEvents []any

	ptr reflect.Value
}

// SetID sets the aggregate id
func (a *Root[T]) SetID(id T) { a.ID = id }

// StringID returns the aggregate id as a string, which is used as the stream id
func (a *Root[T]) StringID() string { return a.ID.String() }

// Rehydrate is used to construct and rehydrate the aggregate from events
func (a *Root[T]) Rehydrate(aggregatePtr any, events ...any) {
	a.ptr = reflect.ValueOf(aggregatePtr)

	if a.ptr.Kind() != reflect.Ptr {
		panic(ErrAggregateRootNotAPointer)
	}

	a.version = 0
	a.domainEvents = nil

	for _, evt := range events {
		a.mutate(evt)

		a.version++
	}
}

// Version returns the number of committed events of the aggregate, which is
// the sequence number of its stream. Uncommitted events do not count
func (a *Root[T]) Version() int64 { return a.version }

// Events returns uncommitted domain events (produced by calling Apply)
func (a *Root[T]) Events() []any {
	if a.domainEvents == nil {
		return []any{}
	}

	return a.domainEvents
}

// Apply mutates aggregate (calls respective event handle) and
// appends event to internal slice, so that they can be retrieved with Events method
// In order for Apply to work the derived aggregate struct needs to implement
// an event handler method for all events it produces eg:
//
// If it produces event of type: SomethingImportantHappened
// Derived aggregate should have the following method implemented:
// func (a *SomeAggregate) OnSomethingImportantHappened(e SomethingImportantHappened)
func (a *Root[T]) Apply(events ...any) {
	if !a.ptr.IsValid() {
		panic(ErrAggregateRootNotRehydrated)
	}

	for _, evt := range events {
		a.mutate(evt)

		a.domainEvents = append(a.domainEvents, evt)
	}
}

func (a *Root[T]) commit() {
	a.version += int64(len(a.domainEvents))
	a.domainEvents = nil
}

func (a *Root[T]) mutate(evt any) {
	ev := reflect.TypeOf(evt)

	hName := fmt.Sprintf("On%s", ev.Name())

	h := a.ptr.MethodByName(hName)

	if !h.IsValid() {
		panic(ErrMissingAggregateEventHandler)
	}

	h.Call([]reflect.Value{
		reflect.ValueOf(evt),
	})
}
