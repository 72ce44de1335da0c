package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/modelsync/modelsync/pkg/model"
	"github.com/modelsync/modelsync/pkg/treemodel"
)

// recordingObserver captures every OnModelUpdated call it receives, guarded
// by a mutex since delivery may come from a different goroutine than the
// one making assertions.
type recordingObserver struct {
	mu        sync.Mutex
	current   model.Model
	calls     int
	lastCtx   any
	lastDelta *model.Delta
}

func (o *recordingObserver) CurrentModel() model.Model {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

func (o *recordingObserver) OnModelUpdated(newRoot model.Model, delta *model.Delta, context any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current = newRoot
	o.calls++
	o.lastCtx = context
	o.lastDelta = delta
}

func (o *recordingObserver) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

func (o *recordingObserver) last() (model.Model, *model.Delta) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current, o.lastDelta
}

func newTestDispatcher() *Dispatcher {
	return New(Immediate(), Config{})
}

func TestSubscribeAndPublishDeliversUpdate(t *testing.T) {
	d := newTestDispatcher()
	defer d.Close()

	root := treemodel.New("root", nil).WithChild(treemodel.New("a", "v1"))
	obs := &recordingObserver{current: root}
	d.Subscribe(obs)

	d.Publish(treemodel.New("a", "v2"), "ctx-1")

	if obs.callCount() != 1 {
		t.Fatalf("expected exactly one delivery, got %d", obs.callCount())
	}
	if obs.lastCtx != "ctx-1" {
		t.Fatalf("expected context to round-trip, got %v", obs.lastCtx)
	}
}

func TestPublishNoOpDoesNotDeliver(t *testing.T) {
	d := newTestDispatcher()
	defer d.Close()

	root := treemodel.New("root", nil).WithChild(treemodel.New("a", "same"))
	obs := &recordingObserver{current: root}
	d.Subscribe(obs)

	d.Publish(treemodel.New("a", "same"), nil)

	if obs.callCount() != 0 {
		t.Fatalf("expected no delivery for a no-op patch, got %d calls", obs.callCount())
	}
}

func TestPauseBuffersThenResumeDeliversMergedDelta(t *testing.T) {
	d := newTestDispatcher()
	defer d.Close()

	root := treemodel.New("root", nil).
		WithChild(treemodel.New("a", "v1")).
		WithChild(treemodel.New("b", "v1"))
	obs := &recordingObserver{current: root}
	d.Subscribe(obs)

	d.Pause(obs)
	if !d.IsPaused(obs) {
		t.Fatal("expected observer to be paused")
	}

	d.Publish(treemodel.New("a", "v2"), nil)
	if obs.callCount() != 0 {
		t.Fatalf("expected delivery to be buffered while paused, got %d calls", obs.callCount())
	}

	d.Publish(treemodel.New("b", "v2"), nil)
	if obs.callCount() != 0 {
		t.Fatalf("expected second change to also be buffered, got %d calls", obs.callCount())
	}

	d.Resume(obs)
	if obs.callCount() != 1 {
		t.Fatalf("expected exactly one merged delivery on resume, got %d", obs.callCount())
	}
	if d.IsPaused(obs) {
		t.Fatal("expected observer to be unpaused after Resume")
	}
}

func TestDeleteEmptyIDReturnsCriticalError(t *testing.T) {
	d := newTestDispatcher()
	defer d.Close()

	err := d.Delete("")
	if err == nil {
		t.Fatal("expected an error deleting an empty id")
	}
	ce, ok := err.(*model.CriticalError)
	if !ok {
		t.Fatalf("expected a *model.CriticalError, got %T", err)
	}
	if ce.Kind != model.DeleteIDFailure {
		t.Fatalf("expected DeleteIDFailure, got %v", ce.Kind)
	}
}

func TestDeleteUnknownIDIsSilentNoOp(t *testing.T) {
	d := newTestDispatcher()
	defer d.Close()

	if err := d.Delete("never-published"); err != nil {
		t.Fatalf("expected deleting an id with no subscribers to be a silent no-op, got %v", err)
	}
}

func TestDeleteRemovesSubtreeAndUnregistersListeners(t *testing.T) {
	d := newTestDispatcher()
	defer d.Close()

	root := treemodel.New("root", nil).WithChild(treemodel.New("a", "v1"))
	obs := &recordingObserver{current: root}
	d.Subscribe(obs)

	if err := d.Delete("root"); err != nil {
		t.Fatalf("unexpected error deleting a known id: %v", err)
	}

	stats := d.Stats()
	if stats.ListenerCount != 0 {
		t.Fatalf("expected listener index to be empty after deleting the subscribed root, got %d entries", stats.ListenerCount)
	}
}

func TestCleanMemoryCompactsCollectedObservers(t *testing.T) {
	d := newTestDispatcher()
	defer d.Close()

	func() {
		obs := &recordingObserver{current: treemodel.New("x", nil)}
		d.Subscribe(obs)
	}()

	d.CleanMemory()
	_ = d.Stats() // exercising CleanMemory must not panic even with dead weak slots
}

func TestGCLoopStartsAndStopsCleanly(t *testing.T) {
	d := New(Immediate(), Config{GCInterval: 20 * time.Millisecond})
	defer d.Close()

	time.Sleep(80 * time.Millisecond)
	// No direct hook into tick count; this simply exercises that the
	// ticker goroutine starts and Close stops it without hanging.
}

// TestLiteralScenario1RepublishChildMarksAncestorChanged covers: a tree
// A(1) containing B(2); republishing B(2) alone must mark both ids
// changed, not only the republished one.
func TestLiteralScenario1RepublishChildMarksAncestorChanged(t *testing.T) {
	d := newTestDispatcher()
	defer d.Close()

	root := treemodel.New("1", "A").WithChild(treemodel.New("2", "B-v1"))
	obs := &recordingObserver{current: root}
	d.Subscribe(obs)

	d.Publish(treemodel.New("2", "B-v2"), nil)

	_, delta := obs.last()
	if delta == nil {
		t.Fatal("expected a delivery")
	}
	for _, id := range []string{"1", "2"} {
		if _, ok := delta.Changed[id]; !ok {
			t.Errorf("expected %q marked changed, got %+v", id, delta.Changed)
		}
	}
}

// TestLiteralScenario2RequiredChildCascadesDeleteUpward covers: A(1)
// requires B(2); A also has an unrelated child C(3); deleting B(2) must
// cascade-delete A(1) too, while leaving C(3) out of the delta entirely.
func TestLiteralScenario2RequiredChildCascadesDeleteUpward(t *testing.T) {
	d := newTestDispatcher()
	defer d.Close()

	root := treemodel.New("1", nil).
		WithChild(treemodel.New("2", nil).AsRequired()).
		WithChild(treemodel.New("3", nil))
	obs := &recordingObserver{current: root}
	d.Subscribe(obs)

	if err := d.Delete("2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	newRoot, delta := obs.last()
	if newRoot != nil {
		t.Fatalf("expected the whole subtree to cascade-delete, got %+v", newRoot)
	}
	for _, id := range []string{"1", "2"} {
		if _, ok := delta.Deleted[id]; !ok {
			t.Errorf("expected %q marked deleted, got %+v", id, delta.Deleted)
		}
	}
	if _, ok := delta.Deleted["3"]; ok {
		t.Fatalf("did not expect '3' marked deleted")
	}
}

// TestLiteralScenario3WholesaleReplaceThenPublishIntoNewlyIntroducedSubtree
// covers: B(2) holding D(4) is replaced wholesale by B(2') holding
// D(4'),E(5) — surfacing changed={1,2,4} — and a later publish targeting
// the newly introduced E(5) must still reach the observer, proving E(5)
// was indexed as part of the wholesale replacement.
func TestLiteralScenario3WholesaleReplaceThenPublishIntoNewlyIntroducedSubtree(t *testing.T) {
	d := newTestDispatcher()
	defer d.Close()

	root := treemodel.New("1", nil).
		WithChild(treemodel.New("2", nil).WithChild(treemodel.New("4", "old")))
	obs := &recordingObserver{current: root}
	d.Subscribe(obs)

	replacement := treemodel.New("2", nil).
		WithChild(treemodel.New("4", "irrelevant")).
		WithChild(treemodel.New("5", "new"))
	d.Publish(replacement, nil)

	_, delta := obs.last()
	for _, id := range []string{"1", "2", "4"} {
		if _, ok := delta.Changed[id]; !ok {
			t.Errorf("expected %q marked changed, got %+v", id, delta.Changed)
		}
	}
	if obs.callCount() != 1 {
		t.Fatalf("expected one delivery so far, got %d", obs.callCount())
	}

	d.Publish(treemodel.New("5", "newer"), "ctx-5")

	if obs.callCount() != 2 {
		t.Fatalf("expected publishing into the newly introduced subtree to reach the observer, got %d calls", obs.callCount())
	}
	_, delta2 := obs.last()
	if _, ok := delta2.Changed["5"]; !ok {
		t.Fatalf("expected '5' marked changed on the second delivery, got %+v", delta2.Changed)
	}
}

// TestLiteralScenario5PauseThenNetNoOpPublishDeliversNothingOnResume
// covers: pause; publish B(2') (a real change); publish B(2) back to its
// original value (net no-op over the whole pause window); resume should
// deliver nothing at all.
func TestLiteralScenario5PauseThenNetNoOpPublishDeliversNothingOnResume(t *testing.T) {
	d := newTestDispatcher()
	defer d.Close()

	root := treemodel.New("1", nil).WithChild(treemodel.New("2", "original"))
	obs := &recordingObserver{current: root}
	d.Subscribe(obs)

	d.Pause(obs)
	d.Publish(treemodel.New("2", "changed"), nil)
	d.Publish(treemodel.New("2", "original"), nil)
	d.Resume(obs)

	if obs.callCount() != 0 {
		t.Fatalf("expected no delivery once the buffered changes net out to nothing, got %d calls", obs.callCount())
	}
}
