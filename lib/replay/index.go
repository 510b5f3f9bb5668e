// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replay

import (
	"strings"
	"sync"
)

// NodeResolver maps a changed node to the key its changes are
// throttled under.
type NodeResolver interface {
	ThrottleKey(id NodeID) NodeID
}

// DefaultCompoundTags are the element tags whose subtrees are
// throttled as a unit.
var DefaultCompoundTags = []string{"svg"}

// NodeIndex tracks the parent and tag of every node in the recorded
// tree, built from full snapshots and kept current by mutation adds
// and removes. It implements NodeResolver: a node with a compound
// ancestor (an <svg>, by default) resolves to the outermost such
// ancestor; every other node resolves to itself.
//
// Safe for concurrent use.
type NodeIndex struct {
	compound map[string]bool

	mu       sync.RWMutex
	nodes    map[NodeID]indexedNode
	children map[NodeID][]NodeID
}

type indexedNode struct {
	parent NodeID
	tag    string
}

// NewNodeIndex returns an empty index. A nil compoundTags uses
// DefaultCompoundTags; tags match case-insensitively.
func NewNodeIndex(compoundTags []string) *NodeIndex {
	if compoundTags == nil {
		compoundTags = DefaultCompoundTags
	}
	compound := make(map[string]bool, len(compoundTags))
	for _, tag := range compoundTags {
		compound[strings.ToLower(tag)] = true
	}
	return &NodeIndex{
		compound: compound,
		nodes:    make(map[NodeID]indexedNode),
		children: make(map[NodeID][]NodeID),
	}
}

// Reset replaces the index with the tree rooted at root.
func (x *NodeIndex) Reset(root Node) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.nodes = make(map[NodeID]indexedNode)
	x.children = make(map[NodeID][]NodeID)
	x.insertLocked(0, root)
}

// ApplyAdds indexes the subtrees the batch inserts.
func (x *NodeIndex) ApplyAdds(batch MutationBatch) {
	if len(batch.Adds) == 0 {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, add := range batch.Adds {
		x.insertLocked(add.ParentID, add.Node)
	}
}

// ApplyRemoves drops the nodes the batch detaches, with their
// descendants.
func (x *NodeIndex) ApplyRemoves(batch MutationBatch) {
	if len(batch.Removes) == 0 {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, remove := range batch.Removes {
		x.removeLocked(remove.ID)
	}
}

// Len returns the number of indexed nodes.
func (x *NodeIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.nodes)
}

// ThrottleKey implements NodeResolver. Unknown nodes resolve to
// themselves.
func (x *NodeIndex) ThrottleKey(id NodeID) NodeID {
	x.mu.RLock()
	defer x.mu.RUnlock()

	key := id
	// Bounded by the index size so a corrupt parent cycle cannot spin.
	current, steps := id, len(x.nodes)
	for ; steps >= 0; steps-- {
		node, ok := x.nodes[current]
		if !ok {
			break
		}
		if x.compound[node.tag] {
			key = current
		}
		if node.parent == 0 {
			break
		}
		current = node.parent
	}
	return key
}

func (x *NodeIndex) insertLocked(parent NodeID, node Node) {
	x.nodes[node.ID] = indexedNode{parent: parent, tag: strings.ToLower(node.Tag)}
	if parent != 0 {
		x.children[parent] = append(x.children[parent], node.ID)
	}
	for _, child := range node.Children {
		x.insertLocked(node.ID, child)
	}
}

// removeLocked deletes id and its descendants. The parent's child list
// is left alone: stale entries there are skipped by the existence check
// when the parent itself is removed.
func (x *NodeIndex) removeLocked(id NodeID) {
	if _, ok := x.nodes[id]; !ok {
		return
	}
	delete(x.nodes, id)
	descendants := x.children[id]
	delete(x.children, id)
	for _, child := range descendants {
		if node, ok := x.nodes[child]; ok && node.parent == id {
			x.removeLocked(child)
		}
	}
}
