package eventstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// ErrEventNotRegistered is returned when decoding an event whose type
// was not registered with the encoder
var ErrEventNotRegistered = errors.New("event type not registered")

// Encoder is used by the event store in order to correctly marshal
// and unmarshal event types
type Encoder interface {
	Encode(any) (EventData, error)
	Decode(EventData) (any, error)
}

// NewJSONEncoder constructs json encoder.
// Every event type that should be decodable must be passed in
func NewJSONEncoder(evts ...any) *JSONEncoder {
	enc := JSONEncoder{
		types: make(map[string]reflect.Type),
	}

	for _, evt := range evts {
		t := indirect(reflect.TypeOf(evt))
		enc.types[t.Name()] = t
	}

	return &enc
}

// JSONEncoder provides default json Encoder implementation
// It will marshal and unmarshal events to/from json and store the type name
type JSONEncoder struct {
	types map[string]reflect.Type
}

// Encode marshals incoming event to it's json representation
func (e *JSONEncoder) Encode(evt any) (EventData, error) {
	if evt == nil {
		return EventData{}, fmt.Errorf("cannot encode nil event")
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return EventData{}, err
	}

	return EventData{
		Type: indirect(reflect.TypeOf(evt)).Name(),
		Data: data,
	}, nil
}

// Decode unmarshals incoming event to it's corresponding go type.
// The decoded value is never a pointer
func (e *JSONEncoder) Decode(evt EventData) (any, error) {
	t, ok := e.types[evt.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEventNotRegistered, evt.Type)
	}

	v := reflect.New(t)

	err := json.Unmarshal(evt.Data, v.Interface())
	if err != nil {
		return nil, err
	}

	return v.Elem().Interface(), nil
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return t
}
