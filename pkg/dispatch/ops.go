package dispatch

import (
	"github.com/modelsync/modelsync/pkg/model"
	"github.com/modelsync/modelsync/pkg/rewrite"
	"github.com/modelsync/modelsync/pkg/walker"
)

type subscribePayload struct {
	obs model.Observer
}

type unsubscribePayload struct {
	obs model.Observer
}

type publishPayload struct {
	newModel model.Model
	context  any
}

type deletePayload struct {
	id model.Id
}

type pausePayload struct {
	obs model.Observer
}

// Subscribe registers obs to receive updates for every id reachable from
// obs.CurrentModel(), walked in pre-order. obs is held weakly — letting go
// of every strong reference to it is sufficient to unsubscribe, though
// Unsubscribe is available for callers that want to unsubscribe
// deterministically without waiting on garbage collection.
func (d *Dispatcher) Subscribe(obs model.Observer) {
	d.submit(opSubscribe, subscribePayload{obs: obs})
}

// Unsubscribe removes obs from every id reachable from obs.CurrentModel(),
// immediately, and drops any state buffered for it while paused.
func (d *Dispatcher) Unsubscribe(obs model.Observer) {
	d.submit(opUnsubscribe, unsubscribePayload{obs: obs})
}

// Publish flattens newModel into a patch keyed by every id it and its
// descendants carry, and delivers the resulting delta to every affected,
// non-paused observer — each rewritten against its own current model, not
// against a Dispatcher-owned copy of newModel — buffering it for every
// affected paused observer instead. context is passed through to
// Observer.OnModelUpdated unmodified. Publish blocks until every affected
// observer has been rewritten and delivery has been dispatched to the
// Scheduler (not until the Scheduler has actually run the delivery
// closures).
func (d *Dispatcher) Publish(newModel model.Model, context any) {
	d.submit(opPublish, publishPayload{newModel: newModel, context: context})
}

// Delete requests that id be removed wherever it is found. It returns a
// *model.CriticalError of kind DeleteIDFailure if id is empty; an id that
// simply has no subscribers is a silent no-op, exactly like a Publish
// whose patch hits nothing.
func (d *Dispatcher) Delete(id model.Id) error {
	_, err := d.submit(opDelete, deletePayload{id: id})
	return err
}

// Pause suspends delivery to obs entirely. Every publish that would
// otherwise reach obs is instead rewritten against its buffered root and
// accumulated until Resume is called.
func (d *Dispatcher) Pause(obs model.Observer) {
	d.submit(opPause, pausePayload{obs: obs})
}

// Resume un-suspends obs and delivers whatever delta survives
// reconciliation against what changed over the whole pause window. If
// nothing survives, no delivery happens at all. The delivery made by
// Resume passes a nil context; the contexts of the publishes buffered
// during the pause are not kept.
func (d *Dispatcher) Resume(obs model.Observer) {
	d.submit(opResume, obs)
}

// IsPaused reports whether obs is currently paused.
func (d *Dispatcher) IsPaused(obs model.Observer) bool {
	res, _ := d.submit(opIsPaused, obs)
	b, _ := res.(bool)
	return b
}

// CleanMemory compacts every weak container the engine owns, dropping
// listener and delegate slots whose referent has been garbage collected.
// It is called automatically every GCInterval and may also be called
// explicitly in response to host-level memory pressure.
func (d *Dispatcher) CleanMemory() {
	d.submit(opCleanMemory, nil)
}

// SetDelegate registers a weakly-held Delegate to receive
// WillReplaceModel/FailedWithCriticalError notifications, replacing any
// previously set Delegate.
func (d *Dispatcher) SetDelegate(del model.Delegate) {
	d.submit(opSetDelegate, del)
}

// Stats returns a point-in-time snapshot of Dispatcher internals.
func (d *Dispatcher) Stats() Stats {
	res, _ := d.submit(opStats, nil)
	s, _ := res.(Stats)
	return s
}

func (d *Dispatcher) doSubscribe(p subscribePayload) {
	walker.VisitAll(p.obs.CurrentModel(), func(m model.Model) {
		d.index.Add(m.ModelID(), p.obs)
	})
}

func (d *Dispatcher) doUnsubscribe(p unsubscribePayload) {
	walker.VisitAll(p.obs.CurrentModel(), func(m model.Model) {
		d.index.Remove(m.ModelID(), p.obs)
	})
	d.pausedSet.Remove(p.obs)
}

func (d *Dispatcher) doPause(p pausePayload) {
	d.pausedSet.Pause(p.obs)
}

func (d *Dispatcher) doResume(obs model.Observer) {
	outdated := obs.CurrentModel()
	delta, newRoot, hasContent := d.pausedSet.Resume(obs, outdated)
	if !hasContent {
		return
	}
	d.scheduler.Run(func() {
		obs.OnModelUpdated(newRoot, delta, nil)
	})
}

func (d *Dispatcher) doCleanMemory() {
	for _, id := range d.index.IDs() {
		d.index.ListenersAt(id) // side effect: compacts dead weak slots
	}
	d.delegates.Snapshot() // side effect: compacts dead weak slots
}

func (d *Dispatcher) doDelete(p deletePayload) error {
	if p.id == "" {
		err := model.NewDeleteIDFailure(p.id)
		d.notifyCritical(err)
		return err
	}
	for _, del := range d.delegates.Snapshot() {
		del.WillReplaceModel(p.id, nil)
	}
	d.updateObservers(model.Patch{p.id: nil}, nil)
	return nil
}

func (d *Dispatcher) doPublish(p publishPayload) {
	for _, del := range d.delegates.Snapshot() {
		del.WillReplaceModel(p.newModel.ModelID(), p.newModel)
	}
	patch := walker.FlattenByID(p.newModel)
	d.updateObservers(patch, p.context)
}

// updateObservers gathers every observer subscribed at any id touched by
// patch and rewrites each one individually against its own current model
// (or, if paused, its buffered root) — the Dispatcher itself never
// computes one shared delta and redelivers it identically to every
// subscriber, since it holds no root of its own to compute that delta
// against.
func (d *Dispatcher) updateObservers(patch model.Patch, context any) {
	affected := make(map[model.Observer]struct{})
	for id := range patch {
		for _, obs := range d.index.ListenersAt(id) {
			affected[obs] = struct{}{}
		}
	}

	for obs := range affected {
		d.rewriteAndDeliver(obs, patch, context)
	}
}

// rewriteAndDeliver runs the Rewriter against obs's own view of the world
// (its buffered root while paused, otherwise its real CurrentModel),
// indexes any newly introduced subtree so later patches targeting nodes
// within it still reach obs, and either buffers the result (paused) or
// schedules delivery (not paused).
func (d *Dispatcher) rewriteAndDeliver(obs model.Observer, patch model.Patch, context any) {
	base, paused := d.pausedSet.BufferedRoot(obs)
	if !paused {
		base = obs.CurrentModel()
	}
	snapshotID := identityOf(base)

	newRoot, delta, introduced := rewrite.Apply(base, patch)
	if delta.IsEmpty() {
		return
	}

	for _, sub := range introduced {
		walker.VisitAll(sub, func(m model.Model) {
			d.index.Add(m.ModelID(), obs)
		})
	}
	// A direct-hit deletion never recurses into the removed subtree (see
	// pkg/rewrite), so delta.Deleted alone would miss every descendant id
	// that vanished along with it. Diff reachable ids before and after
	// instead, so obs stops being indexed at every id that is actually gone.
	oldIDs := walker.CollectIDs(base)
	newIDs := walker.CollectIDs(newRoot)
	for id := range oldIDs {
		if _, stillThere := newIDs[id]; !stillThere {
			d.index.Remove(id, obs)
		}
	}

	if paused {
		d.pausedSet.Record(obs, newRoot, delta)
		return
	}

	d.scheduler.Run(func() {
		if identityOf(obs.CurrentModel()) != snapshotID {
			// A newer publish already reached obs in between; this
			// delivery is stale and would overwrite it with an older view.
			return
		}
		obs.OnModelUpdated(newRoot, delta, context)
	})
}

func identityOf(m model.Model) model.Id {
	if m == nil {
		return ""
	}
	return m.ModelID()
}

func (d *Dispatcher) notifyCritical(err *model.CriticalError) {
	for _, del := range d.delegates.Snapshot() {
		d.scheduler.Run(func() {
			del.FailedWithCriticalError(err)
		})
	}
}
