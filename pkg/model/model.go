// Package model defines the capability surface the consistency engine
// operates against: Model, Id, Observer, Delta, and Delegate. None of these
// are engine-owned data structures — they are interfaces a host application
// implements over its own domain types, the same way the original
// ConsistencyManager defined ECModel/ECModelUpdateObserver as protocols
// rather than concrete classes.
package model

import "fmt"

// Id identifies a Model uniquely within a single tree. Ids are compared by
// value; any comparable string-like type works.
type Id = string

// Model is the minimal capability a node in the observed tree must provide.
// Implementations are expected to be immutable: ForEachChild and Equal must
// be stable for the lifetime of a given Model value. The engine never
// mutates a Model in place — every update produces a new tree via Patch.
type Model interface {
	// ModelID returns this node's identity. Two Models with the same ModelID
	// are considered the same logical entity across updates, even if their
	// content differs.
	ModelID() Id

	// ForEachChild calls fn once per direct child, in a stable order. A leaf
	// returns without calling fn.
	ForEachChild(fn func(child Model))

	// Equal reports whether this Model is content-equal to other. The engine
	// uses Equal for the coarse, id-scoped identity check that lets a
	// no-op replace short-circuit without visiting descendants (see
	// Rewriter, case: replacement is Equal to the current node).
	Equal(other Model) bool
}

// Observer is implemented by anything that wants to be kept in sync with a
// subtree rooted at some Id. Observers are held weakly by the ListenerIndex
// — an Observer that is otherwise unreferenced by the host application is
// eligible for garbage collection and silently drops out of delivery.
type Observer interface {
	// CurrentModel returns the Observer's current view of its subtree, or
	// nil if the Observer has not yet been handed a model. The Dispatcher
	// reads this to decide whether an update actually changes anything.
	CurrentModel() Model

	// OnModelUpdated is invoked on the configured Scheduler (never directly
	// from the serial queue goroutine) whenever the subtree this Observer is
	// listening to changes. newRoot is the new value of the subtree rooted
	// at the id the Observer subscribed with; delta describes what changed
	// underneath it. context is whatever opaque value was passed to
	// Dispatcher.Publish, round-tripped unmodified.
	OnModelUpdated(newRoot Model, delta *Delta, context any)
}

// Delegate receives lifecycle notifications and critical errors from a
// Dispatcher. Implementations are optional — both methods may be no-ops —
// and are held weakly, exactly like an Observer.
type Delegate interface {
	// WillReplaceModel is called just before a model rooted at id is
	// replaced by newRoot, before any Observer is notified.
	WillReplaceModel(id Id, newRoot Model)

	// FailedWithCriticalError is invoked when the engine detects a
	// caller-contract violation it cannot safely recover from (see
	// CriticalError). The host application should treat this as
	// programmer error, not a transient condition.
	FailedWithCriticalError(err *CriticalError)
}

// Delta describes the set of ids that changed and the set of ids that were
// deleted as a result of applying a Patch. The two sets are disjoint: an id
// that is deleted never also appears as changed, and vice versa.
type Delta struct {
	Changed map[Id]struct{}
	Deleted map[Id]struct{}
}

// NewDelta returns an empty, ready-to-use Delta.
func NewDelta() *Delta {
	return &Delta{Changed: make(map[Id]struct{}), Deleted: make(map[Id]struct{})}
}

// MarkChanged records id as changed. It is a no-op if id is already marked
// deleted — deletion wins, matching the spec's disjointness invariant.
func (d *Delta) MarkChanged(id Id) {
	if _, deleted := d.Deleted[id]; deleted {
		return
	}
	d.Changed[id] = struct{}{}
}

// MarkDeleted records id as deleted, removing any prior changed marking.
func (d *Delta) MarkDeleted(id Id) {
	delete(d.Changed, id)
	d.Deleted[id] = struct{}{}
}

// Merge folds other into d in place, deletions winning over changes exactly
// as MarkDeleted/MarkChanged do. Merge is used by the PauseTable to
// reconcile deltas that accumulated while an observer was paused.
func (d *Delta) Merge(other *Delta) {
	if other == nil {
		return
	}
	for id := range other.Changed {
		d.MarkChanged(id)
	}
	for id := range other.Deleted {
		d.MarkDeleted(id)
	}
}

// IsEmpty reports whether the delta carries no changes at all.
func (d *Delta) IsEmpty() bool {
	return len(d.Changed) == 0 && len(d.Deleted) == 0
}

// Patch maps an Id to the Model that should replace it, or to nil to
// request a deletion of that id and its entire subtree.
type Patch map[Id]Model

// ErrorKind tags the variant of a CriticalError.
type ErrorKind int

const (
	// DeleteIDFailure is raised when Delete is called with an empty id, so
	// there is nothing to build a deletion Patch against. Deleting an id
	// that has no subscribers is not an error.
	DeleteIDFailure ErrorKind = iota
	// WrongMapType tags a rebuilt node whose concrete type differs from the
	// node it was rebuilt from. No code path in this module raises it:
	// rewrite.Apply does not compare the types of rebuilt nodes.
	WrongMapType
)

func (k ErrorKind) String() string {
	switch k {
	case DeleteIDFailure:
		return "DeleteIDFailure"
	case WrongMapType:
		return "WrongMapType"
	default:
		return "UnknownErrorKind"
	}
}

// CriticalError is the engine's tagged-variant error type for caller-contract
// violations — conditions the engine cannot fix on the caller's behalf and
// that it refuses to paper over. It is delivered to Delegate.
// FailedWithCriticalError, because the violating call is frequently several
// frames removed from the code that can act on it; Dispatcher.Delete also
// returns it to its caller.
type CriticalError struct {
	Kind    ErrorKind
	ID      Id
	Message string
}

func (e *CriticalError) Error() string {
	return fmt.Sprintf("modelsync: %s: id=%q: %s", e.Kind, e.ID, e.Message)
}

// NewDeleteIDFailure builds a CriticalError for a Delete call carrying no
// usable id — the engine has nothing to build a deletion Patch against.
func NewDeleteIDFailure(id Id) *CriticalError {
	return &CriticalError{Kind: DeleteIDFailure, ID: id, Message: "delete requires a non-empty id"}
}

// NewWrongMapType builds a CriticalError of kind WrongMapType for id.
func NewWrongMapType(id Id, message string) *CriticalError {
	return &CriticalError{Kind: WrongMapType, ID: id, Message: message}
}
