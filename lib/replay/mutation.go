// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replay

// NodeID identifies a node in the recorded page tree. IDs are assigned
// by the recorder's serializer and stay stable for the node's life.
type NodeID int64

// NodeType is the DOM node type of a serialized node.
type NodeType uint8

const (
	NodeDocument NodeType = 1
	NodeElement  NodeType = 2
	NodeText     NodeType = 3
	NodeComment  NodeType = 4
)

// Node is a serialized page node with its subtree.
type Node struct {
	ID         NodeID            `cbor:"id"`
	Type       NodeType          `cbor:"type"`
	Tag        string            `cbor:"tag,omitempty"`
	Attributes map[string]string `cbor:"attributes,omitempty"`
	Text       string            `cbor:"text,omitempty"`
	Children   []Node            `cbor:"children,omitempty"`
}

// MutationBatch is the set of independent changes observed at one
// instant.
type MutationBatch struct {
	Adds       []NodeAdd         `cbor:"adds,omitempty"`
	Removes    []NodeRemove      `cbor:"removes,omitempty"`
	Attributes []AttributeChange `cbor:"attributes,omitempty"`
	Texts      []TextChange      `cbor:"texts,omitempty"`
}

// Len returns the total number of changes in the batch.
func (b MutationBatch) Len() int {
	return len(b.Adds) + len(b.Removes) + len(b.Attributes) + len(b.Texts)
}

// NodeAdd inserts Node (and its subtree) under ParentID, before
// NextID when NextID is non-zero.
type NodeAdd struct {
	ParentID NodeID `cbor:"parent_id"`
	NextID   NodeID `cbor:"next_id,omitempty"`
	Node     Node   `cbor:"node"`
}

// NodeRemove detaches node ID from ParentID.
type NodeRemove struct {
	ParentID NodeID `cbor:"parent_id"`
	ID       NodeID `cbor:"id"`
}

// AttributeChange sets and removes attributes on node ID.
type AttributeChange struct {
	ID      NodeID            `cbor:"id"`
	Set     map[string]string `cbor:"set,omitempty"`
	Removed []string          `cbor:"removed,omitempty"`
}

// TextChange replaces the text content of text node ID.
type TextChange struct {
	ID    NodeID `cbor:"id"`
	Value string `cbor:"value"`
}
