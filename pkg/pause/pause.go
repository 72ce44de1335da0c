// Package pause implements PauseTable: per-observer buffering of deltas
// while an observer is paused, with merge-on-publish and full reconcile on
// resume. It is grounded on the teacher's pkg/lifecycle/manager.go, which
// keeps a per-entity map of state plus explicit transition callbacks
// (onSleepStart/onSleepEnd/onDormant/onWake) — adapted here from
// activity-derived lifecycle states (Active/Idle/Sleeping/Dormant) to the
// engine's simpler Active/Paused observer states, and from time-driven
// transitions to explicit Pause/Resume calls.
package pause

import (
	"sync"

	"github.com/modelsync/modelsync/pkg/model"
	"github.com/modelsync/modelsync/pkg/walker"
)

// entry is the per-observer bookkeeping record held while an observer is
// paused: the delta accumulated since the pause began, and bufferedRoot —
// the observer's subtree as it would look right now had delivery not been
// held back. Every publish that reaches a paused observer is rewritten
// against bufferedRoot (never against the observer's real, stale
// CurrentModel), so bufferedRoot always reflects every patch applied so
// far during the pause, and Resume can reconcile against it.
type entry struct {
	bufferedRoot model.Model
	delta        *model.Delta
}

// Table tracks which observers are currently paused and what has changed
// underneath them since the pause began. It is confined to the
// Dispatcher's serial queue goroutine, exactly like listener.Index; every
// method also takes the mutex below, so reading table state from outside
// the serial queue is safe as well.
type Table struct {
	mu     sync.RWMutex
	paused map[model.Observer]*entry
}

// New returns an empty Table.
func New() *Table {
	return &Table{paused: make(map[model.Observer]*entry)}
}

// Pause marks obs as paused, snapshotting its current model as the
// starting point for every buffered rewrite. Pausing an already-paused
// observer is a no-op — its existing buffered root and delta are left
// untouched.
func (t *Table) Pause(obs model.Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.paused[obs]; ok {
		return
	}
	t.paused[obs] = &entry{bufferedRoot: obs.CurrentModel(), delta: model.NewDelta()}
}

// IsPaused reports whether obs is currently paused.
func (t *Table) IsPaused(obs model.Observer) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.paused[obs]
	return ok
}

// BufferedRoot returns the root a paused observer's rewrites should be
// computed against, and whether obs is paused at all. The Dispatcher reads
// this instead of obs.CurrentModel() whenever IsPaused is true.
func (t *Table) BufferedRoot(obs model.Observer) (model.Model, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.paused[obs]
	if !ok {
		return nil, false
	}
	return e.bufferedRoot, true
}

// Record folds the result of rewriting obs's buffered root into its
// accumulated delta and advances the buffered root to newRoot. It is
// called by the Dispatcher in place of immediate delivery whenever
// update_observers finds the target observer paused.
func (t *Table) Record(obs model.Observer, newRoot model.Model, delta *model.Delta) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.paused[obs]
	if !ok {
		return
	}
	e.bufferedRoot = newRoot
	e.delta.Merge(delta)
}

// Resume unpauses obs and reconciles everything accumulated during the
// pause against what actually changed end to end:
//
//   - if bufferedRoot is nil, the whole subtree is gone; every changed id
//     is dropped since there is nothing left for it to describe, and only
//     the deletions survive.
//   - a deleted id that is still present somewhere in bufferedRoot (it was
//     recreated, or the deletion and a later re-addition netted out) is
//     dropped from the deletion set.
//   - a changed id whose value in bufferedRoot is Equal to its value in
//     outdated (the observer's real, pre-pause view) nets out to no change
//     over the whole pause window and is dropped.
//
// outdated is obs's own CurrentModel from before the pause began. Resume
// reports false — no delivery at all, not merely an empty delta — when
// reconciliation leaves nothing behind.
func (t *Table) Resume(obs model.Observer, outdated model.Model) (*model.Delta, model.Model, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.paused[obs]
	if !ok {
		return nil, nil, false
	}
	delete(t.paused, obs)

	reconciled := model.NewDelta()

	if e.bufferedRoot == nil {
		for id := range e.delta.Deleted {
			reconciled.MarkDeleted(id)
		}
		if reconciled.IsEmpty() {
			return nil, nil, false
		}
		return reconciled, nil, true
	}

	survivors := walker.CollectIDs(e.bufferedRoot)
	for id := range e.delta.Deleted {
		if _, survives := survivors[id]; !survives {
			reconciled.MarkDeleted(id)
		}
	}

	oldByID := walker.FlattenByID(outdated)
	newByID := walker.FlattenByID(e.bufferedRoot)
	for id := range e.delta.Changed {
		oldNode, hadOld := oldByID[id]
		newNode, hasNew := newByID[id]
		if hadOld && hasNew && oldNode.Equal(newNode) {
			continue
		}
		reconciled.MarkChanged(id)
	}

	if reconciled.IsEmpty() {
		return nil, nil, false
	}
	return reconciled, e.bufferedRoot, true
}

// Remove drops obs from the table unconditionally, discarding any buffered
// state. Used when an observer is explicitly unsubscribed while paused —
// there is no one left to deliver to.
func (t *Table) Remove(obs model.Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.paused, obs)
}

// Len reports how many observers are currently paused, for introspection.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.paused)
}

// Snapshot returns a point-in-time summary of buffered changed/deleted
// counts per paused observer, keyed by an opaque stable label supplied by
// label. It is intended for introspection (pkg/introspect), never for
// control flow.
func (t *Table) Snapshot(label func(model.Observer) string) map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]int, len(t.paused))
	for obs, e := range t.paused {
		out[label(obs)] = len(e.delta.Changed) + len(e.delta.Deleted)
	}
	return out
}
