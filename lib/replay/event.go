// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replay

import (
	"fmt"

	"github.com/bureau-foundation/beacon/lib/codec"
	"github.com/bureau-foundation/beacon/lib/record"
)

// EventKind identifies the variant of an Event. The values are wire
// constants.
type EventKind uint8

const (
	EventMeta         EventKind = 1
	EventFullSnapshot EventKind = 2
	EventMutation     EventKind = 3
	EventInteraction  EventKind = 4
	EventCustom       EventKind = 5
)

func (k EventKind) String() string {
	switch k {
	case EventMeta:
		return "meta"
	case EventFullSnapshot:
		return "full_snapshot"
	case EventMutation:
		return "mutation"
	case EventInteraction:
		return "interaction"
	case EventCustom:
		return "custom"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Event is one replay event. The set of implementations is closed:
// *Meta, *FullSnapshot, *Mutation, *Interaction, *Custom.
type Event interface {
	record.Payload
	Kind() EventKind
	event()
}

// IsNil reports whether event is nil or a nil pointer to one of the
// event types. Both carry nothing to record.
func IsNil(event Event) bool {
	switch typed := event.(type) {
	case nil:
		return true
	case *Meta:
		return typed == nil
	case *FullSnapshot:
		return typed == nil
	case *Mutation:
		return typed == nil
	case *Interaction:
		return typed == nil
	case *Custom:
		return typed == nil
	default:
		return false
	}
}

// Meta describes the page a recording starts on.
type Meta struct {
	Href   string `cbor:"href"`
	Width  int    `cbor:"width"`
	Height int    `cbor:"height"`
}

// FullSnapshot is the complete serialized page tree.
type FullSnapshot struct {
	Root Node `cbor:"root"`
}

// Mutation is an incremental change to the page tree.
type Mutation struct {
	Batch MutationBatch `cbor:"batch"`
}

// InteractionSource says what kind of user interaction was captured.
type InteractionSource uint8

const (
	InteractionMouseMove InteractionSource = 1
	InteractionClick     InteractionSource = 2
	InteractionScroll    InteractionSource = 3
	InteractionInput     InteractionSource = 4
	InteractionResize    InteractionSource = 5
)

// Interaction is pointer, scroll, viewport, or input activity.
type Interaction struct {
	Source InteractionSource `cbor:"source"`
	NodeID NodeID            `cbor:"node_id,omitempty"`
	X      int               `cbor:"x,omitempty"`
	Y      int               `cbor:"y,omitempty"`
	Value  string            `cbor:"value,omitempty"`
}

// Custom is an application-defined event (a route change, a feature
// flag evaluation) shown on the replay timeline.
type Custom struct {
	Tag     string         `cbor:"tag"`
	Payload map[string]any `cbor:"payload,omitempty"`
}

func (*Meta) Kind() EventKind         { return EventMeta }
func (*FullSnapshot) Kind() EventKind { return EventFullSnapshot }
func (*Mutation) Kind() EventKind     { return EventMutation }
func (*Interaction) Kind() EventKind  { return EventInteraction }
func (*Custom) Kind() EventKind       { return EventCustom }

func (*Meta) event()         {}
func (*FullSnapshot) event() {}
func (*Mutation) event()     {}
func (*Interaction) event()  {}
func (*Custom) event()       {}

func (*Meta) RecordKind() record.Kind         { return record.KindReplay }
func (*FullSnapshot) RecordKind() record.Kind { return record.KindReplay }
func (*Mutation) RecordKind() record.Kind     { return record.KindReplay }
func (*Interaction) RecordKind() record.Kind  { return record.KindReplay }
func (*Custom) RecordKind() record.Kind       { return record.KindReplay }

// wireEvent is the CBOR form of every Event: the kind tag plus the
// variant's own encoding.
type wireEvent struct {
	Kind EventKind        `cbor:"kind"`
	Data codec.RawMessage `cbor:"data"`
}

// The plain* types have the variants' fields but none of their
// methods, so encoding them does not recurse into MarshalCBOR.
type (
	plainMeta         Meta
	plainFullSnapshot FullSnapshot
	plainMutation     Mutation
	plainInteraction  Interaction
	plainCustom       Custom
)

func (e *Meta) MarshalCBOR() ([]byte, error) {
	return encodeEvent(EventMeta, (*plainMeta)(e))
}

func (e *FullSnapshot) MarshalCBOR() ([]byte, error) {
	return encodeEvent(EventFullSnapshot, (*plainFullSnapshot)(e))
}

func (e *Mutation) MarshalCBOR() ([]byte, error) {
	return encodeEvent(EventMutation, (*plainMutation)(e))
}

func (e *Interaction) MarshalCBOR() ([]byte, error) {
	return encodeEvent(EventInteraction, (*plainInteraction)(e))
}

func (e *Custom) MarshalCBOR() ([]byte, error) {
	return encodeEvent(EventCustom, (*plainCustom)(e))
}

func encodeEvent(kind EventKind, value any) ([]byte, error) {
	data, err := codec.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("replay: encoding %s event: %w", kind, err)
	}
	return codec.Marshal(wireEvent{Kind: kind, Data: data})
}

// DecodeEvent decodes the CBOR form produced by an Event's
// MarshalCBOR.
func DecodeEvent(data []byte) (Event, error) {
	var wire wireEvent
	if err := codec.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("replay: decoding event: %w", err)
	}

	var event Event
	var target any
	switch wire.Kind {
	case EventMeta:
		value := &Meta{}
		event, target = value, (*plainMeta)(value)
	case EventFullSnapshot:
		value := &FullSnapshot{}
		event, target = value, (*plainFullSnapshot)(value)
	case EventMutation:
		value := &Mutation{}
		event, target = value, (*plainMutation)(value)
	case EventInteraction:
		value := &Interaction{}
		event, target = value, (*plainInteraction)(value)
	case EventCustom:
		value := &Custom{}
		event, target = value, (*plainCustom)(value)
	default:
		return nil, fmt.Errorf("replay: unknown event kind %d", uint8(wire.Kind))
	}
	if err := codec.Unmarshal(wire.Data, target); err != nil {
		return nil, fmt.Errorf("replay: decoding %s event: %w", wire.Kind, err)
	}
	return event, nil
}

// FromPayload recovers the Event carried by a record payload: either
// an Event directly (a record built in this process) or a
// record.Opaque replay payload (a record decoded from the wire).
func FromPayload(payload record.Payload) (Event, error) {
	switch value := payload.(type) {
	case Event:
		return value, nil
	case *record.Opaque:
		if value.Kind != record.KindReplay {
			return nil, fmt.Errorf("replay: payload kind %s is not a replay event", value.Kind)
		}
		return DecodeEvent(value.Raw)
	default:
		return nil, fmt.Errorf("replay: payload %T is not a replay event", payload)
	}
}
