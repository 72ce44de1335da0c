package pause

import (
	"testing"

	"github.com/modelsync/modelsync/pkg/model"
	"github.com/modelsync/modelsync/pkg/treemodel"
)

type fakeObserver struct {
	current model.Model
}

func (f *fakeObserver) CurrentModel() model.Model { return f.current }
func (f *fakeObserver) OnModelUpdated(newRoot model.Model, d *model.Delta, ctx any) {
}

func TestPauseSnapshotsCurrentModelAsBufferedRoot(t *testing.T) {
	table := New()
	root := treemodel.New("1", "v1")
	obs := &fakeObserver{current: root}

	table.Pause(obs)
	if !table.IsPaused(obs) {
		t.Fatal("expected observer to be paused")
	}
	got, ok := table.BufferedRoot(obs)
	if !ok || got != root {
		t.Fatalf("expected buffered root to be the observer's current model, got %v (ok=%v)", got, ok)
	}
}

func TestRecordThenResumeReturnsReconciledDelta(t *testing.T) {
	table := New()
	root := treemodel.New("1", "v1").WithChild(treemodel.New("2", "old"))
	obs := &fakeObserver{current: root}

	table.Pause(obs)

	newRoot := treemodel.New("1", "v1").WithChild(treemodel.New("2", "new"))
	delta := model.NewDelta()
	delta.MarkChanged("1")
	delta.MarkChanged("2")
	table.Record(obs, newRoot, delta)

	resumed, bufferedRoot, hasContent := table.Resume(obs, root)
	if !hasContent {
		t.Fatal("expected buffered content on resume")
	}
	if bufferedRoot != newRoot {
		t.Fatalf("expected resume to return the buffered root, got %v", bufferedRoot)
	}
	if _, ok := resumed.Changed["2"]; !ok {
		t.Errorf("expected '2' to survive reconciliation; its value genuinely differs from before the pause")
	}
	if table.IsPaused(obs) {
		t.Fatal("expected observer to be unpaused after Resume")
	}
}

func TestResumeWithNoBufferedContentReportsFalse(t *testing.T) {
	table := New()
	root := treemodel.New("1", "v1")
	obs := &fakeObserver{current: root}
	table.Pause(obs)

	_, _, hasContent := table.Resume(obs, root)
	if hasContent {
		t.Fatal("expected no buffered content when nothing changed while paused")
	}
}

// TestResumeCancelsNetUnchangedID covers the pause/publish/publish/resume
// scenario where two publishes during a pause net out to no actual change:
// the id is recorded as changed twice, but its final buffered value equals
// what the observer held before the pause, so resume must deliver nothing.
func TestResumeCancelsNetUnchangedID(t *testing.T) {
	table := New()
	root := treemodel.New("1", "v1").WithChild(treemodel.New("2", "original"))
	obs := &fakeObserver{current: root}
	table.Pause(obs)

	afterFirst := treemodel.New("1", "v1").WithChild(treemodel.New("2", "changed"))
	d1 := model.NewDelta()
	d1.MarkChanged("2")
	table.Record(obs, afterFirst, d1)

	afterSecond := treemodel.New("1", "v1").WithChild(treemodel.New("2", "original"))
	d2 := model.NewDelta()
	d2.MarkChanged("2")
	table.Record(obs, afterSecond, d2)

	_, _, hasContent := table.Resume(obs, root)
	if hasContent {
		t.Fatal("expected net-unchanged id '2' to cancel out entirely on resume")
	}
}

func TestResumeDropsDeletedIDThatSurvivesInBufferedRoot(t *testing.T) {
	table := New()
	root := treemodel.New("1", "v1").WithChild(treemodel.New("2", "v1"))
	obs := &fakeObserver{current: root}
	table.Pause(obs)

	afterDelete := treemodel.New("1", "v1")
	d1 := model.NewDelta()
	d1.MarkDeleted("2")
	table.Record(obs, afterDelete, d1)

	afterRecreate := treemodel.New("1", "v1").WithChild(treemodel.New("2", "recreated"))
	d2 := model.NewDelta()
	d2.MarkChanged("1")
	table.Record(obs, afterRecreate, d2)

	resumed, _, hasContent := table.Resume(obs, root)
	if !hasContent {
		t.Fatal("expected some buffered content, since '2' was recreated with new content")
	}
	if _, ok := resumed.Deleted["2"]; ok {
		t.Error("did not expect '2' marked deleted; it survives in the buffered root")
	}
}

func TestResumeClearsChangedWhenBufferedRootIsNil(t *testing.T) {
	table := New()
	root := treemodel.New("1", "v1").WithChild(treemodel.New("2", "v1"))
	obs := &fakeObserver{current: root}
	table.Pause(obs)

	d := model.NewDelta()
	d.MarkChanged("2")
	d.MarkDeleted("1")
	table.Record(obs, nil, d)

	resumed, bufferedRoot, hasContent := table.Resume(obs, root)
	if !hasContent {
		t.Fatal("expected the deletion to still be delivered")
	}
	if bufferedRoot != nil {
		t.Fatalf("expected nil buffered root to be returned as-is, got %v", bufferedRoot)
	}
	if _, ok := resumed.Changed["2"]; ok {
		t.Error("did not expect any changed id once the whole subtree is gone")
	}
	if _, ok := resumed.Deleted["1"]; !ok {
		t.Error("expected '1' still marked deleted")
	}
}

func TestRemoveDropsBufferedState(t *testing.T) {
	table := New()
	obs := &fakeObserver{current: treemodel.New("1", nil)}
	table.Pause(obs)
	table.Remove(obs)

	if table.IsPaused(obs) {
		t.Fatal("expected Remove to unconditionally drop the paused entry")
	}
}
