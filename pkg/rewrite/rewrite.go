// Package rewrite implements Rewriter: the recursive algorithm that applies
// a model.Patch to a tree and produces the new tree, the delta describing
// what changed, and the set of wholesale-replaced subtrees a caller must
// now index so future patches reach nodes within them. It is grounded on
// the accumulator-threaded recursive graph algorithms in the teacher's
// pkg/synapse/hebbian.go (walk a graph, accumulate into caller-provided
// mutable state, recurse into children) — adapted here from Hebbian weight
// accumulation to patch application plus delta accumulation.
package rewrite

import "github.com/modelsync/modelsync/pkg/model"

// Apply rewrites the subtree rooted at root according to patch and returns
// the new root, the delta describing every id that changed or was deleted,
// and the list of replacement subtrees introduced directly by a patch hit
// during this rewrite. Apply never mutates root or any node reachable from
// it; every touched node is replaced by a new value.
//
// Rules:
//   - If patch maps root.ModelID() to nil, the node is deleted: only its
//     own id is added to delta.Deleted. Apply does not recurse into a
//     directly deleted node's children — an id beneath it that also needs
//     reporting must appear in patch in its own right.
//   - If patch maps root.ModelID() to a replacement model, the
//     replacement's own children are not re-walked against patch — a
//     wholesale replacement is authoritative for everything beneath it.
//     Patch entries for ids that existed under the old subtree are still
//     surfaced via changedSubmodelIDs, so a patch targeting a descendant of
//     a now-replaced ancestor isn't silently dropped from the delta. The
//     replacement's own id is marked changed unless it is Equal to the
//     node it replaced, in which case Apply short-circuits and returns
//     root unchanged with an empty delta for this subtree (coarse,
//     id-scoped identity check).
//   - Otherwise root is unpatched at this level; Apply recurses into each
//     child through the node's WithRebuiltChildren hook. If a required
//     child came back deleted, the node cascades: its own id is added to
//     delta.Deleted instead of delta.Changed. Otherwise, if any child
//     actually changed, root's own id is added to delta.Changed alongside
//     whichever descendant ids changed; an untouched subtree is returned
//     by reference-equal value and contributes nothing.
func Apply(root model.Model, patch model.Patch) (model.Model, *model.Delta, []model.Model) {
	delta := model.NewDelta()
	var introduced []model.Model
	newRoot := apply(root, patch, delta, &introduced)
	return newRoot, delta, introduced
}

func apply(node model.Model, patch model.Patch, delta *model.Delta, introduced *[]model.Model) model.Model {
	if node == nil {
		return nil
	}
	id := node.ModelID()

	if replacement, ok := patch[id]; ok {
		if replacement == nil {
			delta.MarkDeleted(id)
			return nil
		}
		if replacement.Equal(node) {
			return node
		}
		delta.MarkChanged(id)
		for sub := range changedSubmodelIDs(node, patch) {
			delta.MarkChanged(sub)
		}
		*introduced = append(*introduced, replacement)
		return replacement
	}

	return rebuildChildren(node, patch, delta, introduced)
}

// rebuilder is the hook a concrete model.Model implementation satisfies so
// rebuildChildren can rewrite its children without this package knowing the
// concrete type. The bool result reports a cascading delete: the node
// required a child that came back nil, so the node itself must be treated
// as deleted rather than rebuilt.
type rebuilder interface {
	WithRebuiltChildren(next func(child model.Model) model.Model) (model.Model, bool)
}

func rebuildChildren(node model.Model, patch model.Patch, delta *model.Delta, introduced *[]model.Model) model.Model {
	rb, ok := node.(rebuilder)
	if !ok {
		// node offers no rewrite hook of its own; it has no children that
		// can change under it as far as the engine is concerned, so it
		// passes through unmodified. Leaf implementations of model.Model
		// are expected to take this path.
		return node
	}

	changed := false
	result, cascadeDeleted := rb.WithRebuiltChildren(func(child model.Model) model.Model {
		newChild := apply(child, patch, delta, introduced)
		if newChild != child {
			changed = true
		}
		return newChild
	})

	id := node.ModelID()
	if cascadeDeleted {
		if id != "" {
			delta.MarkDeleted(id)
		}
		return nil
	}
	if !changed {
		return node
	}
	if id != "" {
		delta.MarkChanged(id)
	}
	return result
}

// changedSubmodelIDs walks node's existing children (not node itself) and
// collects every id that appears in patch with a non-nil value differing
// from what is already there. It exists so that when a subtree is replaced
// wholesale at its root, patches targeting nodes inside the replaced
// subtree are still surfaced to the caller as changed.
func changedSubmodelIDs(node model.Model, patch model.Patch) map[model.Id]struct{} {
	found := make(map[model.Id]struct{})
	node.ForEachChild(func(child model.Model) {
		collectChangedSubmodelIDs(child, patch, found)
	})
	return found
}

func collectChangedSubmodelIDs(node model.Model, patch model.Patch, found map[model.Id]struct{}) {
	if node == nil {
		return
	}
	if replacement, ok := patch[node.ModelID()]; ok && replacement != nil && !replacement.Equal(node) {
		found[node.ModelID()] = struct{}{}
	}
	node.ForEachChild(func(child model.Model) {
		collectChangedSubmodelIDs(child, patch, found)
	})
}
