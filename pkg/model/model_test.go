package model

import "testing"

func TestDeltaDeletionWinsOverLaterChange(t *testing.T) {
	d := NewDelta()
	d.MarkDeleted("x")
	d.MarkChanged("x")

	if _, changed := d.Changed["x"]; changed {
		t.Fatal("expected deletion to win over a later change for the same id")
	}
	if _, deleted := d.Deleted["x"]; !deleted {
		t.Fatal("expected 'x' to remain deleted")
	}
}

func TestDeltaMergeUnionsDisjointSets(t *testing.T) {
	a := NewDelta()
	a.MarkChanged("a")
	b := NewDelta()
	b.MarkDeleted("b")

	a.Merge(b)

	if _, ok := a.Changed["a"]; !ok {
		t.Error("expected 'a' to remain in Changed")
	}
	if _, ok := a.Deleted["b"]; !ok {
		t.Error("expected 'b' merged in as Deleted")
	}
}

func TestDeltaIsEmpty(t *testing.T) {
	d := NewDelta()
	if !d.IsEmpty() {
		t.Fatal("expected a fresh delta to be empty")
	}
	d.MarkChanged("a")
	if d.IsEmpty() {
		t.Fatal("expected a delta with a changed id to be non-empty")
	}
}

func TestCriticalErrorMessage(t *testing.T) {
	err := NewDeleteIDFailure("missing-id")
	if err.Kind != DeleteIDFailure {
		t.Fatalf("expected DeleteIDFailure kind, got %v", err.Kind)
	}
	if err.Error() == "" {
		t.Fatal("expected a non-empty error message")
	}
}
