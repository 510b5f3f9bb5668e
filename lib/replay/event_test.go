// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replay

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bureau-foundation/beacon/lib/codec"
	"github.com/bureau-foundation/beacon/lib/record"
)

func TestEventsSurviveRecordEncoding(t *testing.T) {
	events := []Event{
		&Meta{Href: "https://example.test/checkout", Width: 1440, Height: 900},
		&FullSnapshot{Root: testTree()},
		&Mutation{Batch: MutationBatch{
			Adds:       []NodeAdd{{ParentID: 2, NextID: 6, Node: Node{ID: 30, Type: NodeElement, Tag: "span"}}},
			Removes:    []NodeRemove{{ParentID: 6, ID: 7}},
			Attributes: []AttributeChange{{ID: 3, Set: map[string]string{"width": "10"}, Removed: []string{"height"}}},
			Texts:      []TextChange{{ID: 7, Value: "bye"}},
		}},
		&Interaction{Source: InteractionInput, NodeID: 30, Value: "typed"},
		&Custom{Tag: "flag", Payload: map[string]any{"name": "dark-mode"}},
	}

	for _, event := range events {
		data, err := codec.Marshal(record.New(1700000000000000000, event))
		if err != nil {
			t.Fatalf("%s: marshal: %v", event.Kind(), err)
		}
		var decoded record.Record
		if err := codec.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("%s: unmarshal: %v", event.Kind(), err)
		}
		if decoded.Kind() != record.KindReplay {
			t.Fatalf("%s: record kind %s", event.Kind(), decoded.Kind())
		}
		got, err := FromPayload(decoded.Payload)
		if err != nil {
			t.Fatalf("%s: FromPayload: %v", event.Kind(), err)
		}
		if diff := cmp.Diff(event, got); diff != "" {
			t.Fatalf("%s: round trip mismatch (-want +got):\n%s", event.Kind(), diff)
		}
	}
}

func TestDecodeEventRejectsUnknownKind(t *testing.T) {
	data, err := codec.Marshal(wireEvent{Kind: EventKind(42), Data: codec.RawMessage{0xa0}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := DecodeEvent(data); err == nil {
		t.Fatal("unknown event kind decoded without error")
	}
}

func TestFromPayloadRejectsOtherKinds(t *testing.T) {
	if _, err := FromPayload(&record.LogEntry{Body: "not replay"}); err == nil {
		t.Fatal("log payload accepted as a replay event")
	}
}
