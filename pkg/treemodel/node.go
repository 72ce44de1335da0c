// Package treemodel provides Node, a concrete, immutable model.Model
// implementation backed by a plain tree of string ids and arbitrary
// payloads. It exists for the demo binaries and as the fixture type for
// the rest of the module's tests — the engine itself never imports it.
//
// Node's field-declaration and constructor style is grounded on the
// teacher's value-style domain structs in pkg/core/types.go (Neuron,
// Synapse), adapted from mutable brain-memory records to immutable tree
// snapshots: every helper returns a new *Node rather than mutating in
// place, because the engine's contract requires that a Model handed to it
// never changes out from under a pending rewrite.
package treemodel

import (
	"reflect"

	"github.com/google/uuid"

	"github.com/modelsync/modelsync/pkg/model"
)

// Node is a single element of a JSON-shaped tree: an id, an opaque payload
// compared by deep equality, and an ordered list of children. Required
// marks whether the parent holding this Node as a child needs it to exist:
// if a required child is deleted, the parent removes itself too (cascading
// delete), matching the map contract's "f returns deleted for a required
// child" clause.
type Node struct {
	ID       string
	Payload  any
	Children []*Node
	Required bool
}

// New returns a leaf Node with no children.
func New(id string, payload any) *Node {
	return &Node{ID: id, Payload: payload}
}

// AsRequired returns a copy of n with Required set, for attaching under a
// parent via WithChild when the parent should cascade-delete if n is ever
// removed.
func (n *Node) AsRequired() *Node {
	return &Node{ID: n.ID, Payload: n.Payload, Children: n.Children, Required: true}
}

// NewWithGeneratedID returns a leaf Node whose id is a freshly generated
// UUID, for callers that don't care about a stable human-chosen id — the
// demo CLI's addchild command uses explicit ids instead, but tests and
// scripted seeding scenarios often don't need to.
func NewWithGeneratedID(payload any) *Node {
	return New(uuid.NewString(), payload)
}

// ModelID implements model.Model.
func (n *Node) ModelID() model.Id {
	return n.ID
}

// ForEachChild implements model.Model.
func (n *Node) ForEachChild(fn func(child model.Model)) {
	for _, c := range n.Children {
		fn(c)
	}
}

// Equal implements model.Model with a content-equality check (same id, same
// payload, same children recursively) rather than the engine's own coarser
// id-scoped identity check — Equal here is a property of the domain type,
// used by Rewriter as the "is this replacement a no-op" test.
func (n *Node) Equal(other model.Model) bool {
	o, ok := other.(*Node)
	if !ok || o == nil {
		return false
	}
	if n.ID != o.ID || n.Required != o.Required || !reflect.DeepEqual(n.Payload, o.Payload) {
		return false
	}
	if len(n.Children) != len(o.Children) {
		return false
	}
	for i, c := range n.Children {
		if !c.Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

// WithRebuiltChildren implements the rewrite package's internal rebuild
// hook: it calls next once per child in order, drops any child next
// returns nil for, and returns a new Node holding whatever survived. If a
// dropped child had Required set, n itself cascades: the second return
// value is true and the Node is not built at all, signaling the caller
// (rewrite.rebuildChildren) that n must be treated as deleted.
func (n *Node) WithRebuiltChildren(next func(child model.Model) model.Model) (model.Model, bool) {
	rebuilt := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		switch v := next(c).(type) {
		case *Node:
			rebuilt = append(rebuilt, v)
		case nil:
			if c.Required {
				return nil, true
			}
		}
	}

	return &Node{ID: n.ID, Payload: n.Payload, Children: rebuilt, Required: n.Required}, false
}

// WithChild returns a copy of n with child appended (or replacing an
// existing child sharing its id).
func (n *Node) WithChild(child *Node) *Node {
	children := make([]*Node, 0, len(n.Children)+1)
	replaced := false
	for _, c := range n.Children {
		if c.ID == child.ID {
			children = append(children, child)
			replaced = true
			continue
		}
		children = append(children, c)
	}
	if !replaced {
		children = append(children, child)
	}
	return &Node{ID: n.ID, Payload: n.Payload, Children: children, Required: n.Required}
}

// WithPayload returns a copy of n with Payload replaced.
func (n *Node) WithPayload(payload any) *Node {
	return &Node{ID: n.ID, Payload: payload, Children: n.Children, Required: n.Required}
}

// WithoutChild returns a copy of n with the child matching id removed, if
// present.
func (n *Node) WithoutChild(id string) *Node {
	children := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		if c.ID != id {
			children = append(children, c)
		}
	}
	return &Node{ID: n.ID, Payload: n.Payload, Children: children, Required: n.Required}
}
