package listener

import (
	"testing"

	"github.com/modelsync/modelsync/pkg/model"
)

type observerStub struct{ name string }

func (o *observerStub) CurrentModel() model.Model                                { return nil }
func (o *observerStub) OnModelUpdated(r model.Model, d *model.Delta, c any) {}

func TestAddAndListenersAt(t *testing.T) {
	idx := New()
	a := &observerStub{"a"}
	b := &observerStub{"b"}

	idx.Add("node-1", a)
	idx.Add("node-1", b)
	idx.Add("node-2", a)

	listeners := idx.ListenersAt("node-1")
	if len(listeners) != 2 {
		t.Fatalf("expected 2 listeners at node-1, got %d", len(listeners))
	}
	if len(idx.ListenersAt("node-2")) != 1 {
		t.Fatalf("expected 1 listener at node-2")
	}
	if idx.ListenersAt("node-3") != nil {
		t.Fatalf("expected no listeners at an id nobody subscribed to")
	}
}

func TestRemoveDropsEmptyEntry(t *testing.T) {
	idx := New()
	a := &observerStub{"a"}
	idx.Add("node-1", a)

	idx.Remove("node-1", a)

	if idx.HasListeners("node-1") {
		t.Fatal("expected node-1 to have no listeners after removing its only subscriber")
	}
	if idx.Len() != 0 {
		t.Fatalf("expected the empty entry to be dropped from the index, Len()=%d", idx.Len())
	}
}

func TestRemoveIDDropsAllListeners(t *testing.T) {
	idx := New()
	a := &observerStub{"a"}
	b := &observerStub{"b"}
	idx.Add("node-1", a)
	idx.Add("node-1", b)

	idx.RemoveID("node-1")

	if idx.HasListeners("node-1") {
		t.Fatal("expected RemoveID to drop every listener at that id")
	}
}
