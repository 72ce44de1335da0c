package treemodel

import "testing"

func TestEqualComparesContentRecursively(t *testing.T) {
	a := New("root", "v1").WithChild(New("a", 1))
	b := New("root", "v1").WithChild(New("a", 1))
	c := New("root", "v1").WithChild(New("a", 2))

	if !a.Equal(b) {
		t.Fatal("expected structurally identical trees to be Equal")
	}
	if a.Equal(c) {
		t.Fatal("expected trees with a different child payload to not be Equal")
	}
}

func TestWithChildReplacesExistingChildByID(t *testing.T) {
	root := New("root", nil).WithChild(New("a", 1))
	updated := root.WithChild(New("a", 2))

	if len(updated.Children) != 1 {
		t.Fatalf("expected WithChild to replace rather than duplicate, got %d children", len(updated.Children))
	}
	if updated.Children[0].Payload != 2 {
		t.Fatalf("expected replaced child payload 2, got %v", updated.Children[0].Payload)
	}
	if root.Children[0].Payload != 1 {
		t.Fatal("expected the original root to be unmodified")
	}
}

func TestWithoutChildRemovesMatchingID(t *testing.T) {
	root := New("root", nil).WithChild(New("a", 1)).WithChild(New("b", 2))
	updated := root.WithoutChild("a")

	if len(updated.Children) != 1 || updated.Children[0].ID != "b" {
		t.Fatalf("expected only 'b' to remain, got %+v", updated.Children)
	}
}

func TestNewWithGeneratedIDProducesUniqueIDs(t *testing.T) {
	a := NewWithGeneratedID(nil)
	b := NewWithGeneratedID(nil)
	if a.ID == "" || b.ID == "" {
		t.Fatal("expected non-empty generated ids")
	}
	if a.ID == b.ID {
		t.Fatal("expected distinct generated ids")
	}
}
