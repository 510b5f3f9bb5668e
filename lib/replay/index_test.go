// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replay

import "testing"

func testTree() Node {
	return Node{ID: 1, Type: NodeDocument, Children: []Node{
		{ID: 2, Type: NodeElement, Tag: "body", Children: []Node{
			{ID: 3, Type: NodeElement, Tag: "svg", Children: []Node{
				{ID: 4, Type: NodeElement, Tag: "g", Children: []Node{
					{ID: 5, Type: NodeElement, Tag: "svg"},
				}},
			}},
			{ID: 6, Type: NodeElement, Tag: "p", Children: []Node{
				{ID: 7, Type: NodeText, Text: "hello"},
			}},
		}},
	}}
}

func TestNodeIndexThrottleKey(t *testing.T) {
	index := NewNodeIndex(nil)
	index.Reset(testTree())

	tests := []struct {
		id   NodeID
		want NodeID
	}{
		{id: 1, want: 1},
		{id: 3, want: 3},
		{id: 4, want: 3},
		{id: 5, want: 3}, // nested svg resolves to the outermost one
		{id: 7, want: 7},
		{id: 99, want: 99},
	}
	for _, test := range tests {
		if got := index.ThrottleKey(test.id); got != test.want {
			t.Errorf("ThrottleKey(%d) = %d, want %d", test.id, got, test.want)
		}
	}
}

func TestNodeIndexAppliesAddsAndRemoves(t *testing.T) {
	index := NewNodeIndex(nil)
	index.Reset(testTree())
	if index.Len() != 7 {
		t.Fatalf("Len after Reset = %d, want 7", index.Len())
	}

	index.ApplyAdds(MutationBatch{Adds: []NodeAdd{
		{ParentID: 4, Node: Node{ID: 8, Type: NodeElement, Tag: "circle"}},
	}})
	if got := index.ThrottleKey(8); got != 3 {
		t.Fatalf("added node resolves to %d, want 3", got)
	}

	index.ApplyRemoves(MutationBatch{Removes: []NodeRemove{{ParentID: 2, ID: 3}}})
	if index.Len() != 4 {
		t.Fatalf("Len after removing the svg subtree = %d, want 4", index.Len())
	}
	if got := index.ThrottleKey(8); got != 8 {
		t.Fatalf("removed node resolves to %d, want itself", got)
	}
}

func TestNodeIndexMovedNodeSurvivesOldParentRemoval(t *testing.T) {
	index := NewNodeIndex(nil)
	index.Reset(testTree())

	// Move the paragraph up to the document, then remove its old
	// parent.
	index.ApplyRemoves(MutationBatch{Removes: []NodeRemove{{ParentID: 2, ID: 6}}})
	index.ApplyAdds(MutationBatch{Adds: []NodeAdd{
		{ParentID: 1, Node: Node{ID: 6, Type: NodeElement, Tag: "p"}},
	}})
	index.ApplyRemoves(MutationBatch{Removes: []NodeRemove{{ParentID: 1, ID: 2}}})

	if index.Len() != 2 {
		t.Fatalf("Len = %d, want the document and the moved paragraph", index.Len())
	}
	if got := index.ThrottleKey(6); got != 6 {
		t.Fatalf("moved node resolves to %d, want itself", got)
	}
}

func TestNodeIndexCustomCompoundTags(t *testing.T) {
	index := NewNodeIndex([]string{"Canvas"})
	index.Reset(Node{ID: 1, Type: NodeElement, Tag: "canvas", Children: []Node{
		{ID: 2, Type: NodeElement, Tag: "svg", Children: []Node{{ID: 3, Type: NodeElement}}},
	}})
	if got := index.ThrottleKey(3); got != 1 {
		t.Fatalf("ThrottleKey(3) = %d, want 1", got)
	}
}
