// Package walker implements ModelWalker: stateless traversal helpers over
// model.Model trees. Every function here is pure — no shared state, no
// locking — grounded on the pre-order recursive traversals in the teacher's
// matrix/graph walks (pkg/engine/matrix_ops.go, pkg/synapse/hebbian.go),
// adapted from adjacency-list graph walking to Model.ForEachChild
// tree walking.
package walker

import "github.com/modelsync/modelsync/pkg/model"

// VisitAll calls fn once for every node in the subtree rooted at root,
// root included, in pre-order (a node before its children).
func VisitAll(root model.Model, fn func(m model.Model)) {
	if root == nil {
		return
	}
	fn(root)
	root.ForEachChild(func(child model.Model) {
		VisitAll(child, fn)
	})
}

// FlattenByID returns every node in the subtree rooted at root indexed by
// its ModelID. If two nodes in the subtree share an id, the one encountered
// last in pre-order wins — callers that care about duplicate ids should
// treat their presence as a modeling bug upstream of the engine.
func FlattenByID(root model.Model) map[model.Id]model.Model {
	out := make(map[model.Id]model.Model)
	VisitAll(root, func(m model.Model) {
		out[m.ModelID()] = m
	})
	return out
}

// Find returns the node with the given id within the subtree rooted at
// root, or nil if no such node exists.
func Find(root model.Model, id model.Id) model.Model {
	var found model.Model
	VisitAll(root, func(m model.Model) {
		if found == nil && m.ModelID() == id {
			found = m
		}
	})
	return found
}

// CollectIDs returns the set of every id present in the subtree rooted at
// root, root included.
func CollectIDs(root model.Model) map[model.Id]struct{} {
	out := make(map[model.Id]struct{})
	VisitAll(root, func(m model.Model) {
		out[m.ModelID()] = struct{}{}
	})
	return out
}
