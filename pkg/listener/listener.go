// Package listener implements ListenerIndex: the map from a subscribed id
// to the set of observers currently listening at that id. It is confined to
// the Dispatcher's single serial-queue goroutine — see pkg/dispatch — so,
// unlike the teacher's pkg/registry.Store, it carries no internal mutex of
// its own. The map-of-live-entries shape and the CRUD method set are
// grounded on pkg/registry/registry.go; the divergence (no file
// persistence, no mutex) reflects that ListenerIndex is in-memory-only and
// single-goroutine by construction, per the engine's concurrency design.
package listener

import (
	"github.com/modelsync/modelsync/pkg/model"
	"github.com/modelsync/modelsync/pkg/weakset"
)

// Index maps ids to the weak set of observers subscribed at that id.
// The zero value is not usable; construct with New.
type Index struct {
	byID map[model.Id]*weakset.Set[model.Observer]
}

// New returns an empty Index.
func New() *Index {
	return &Index{byID: make(map[model.Id]*weakset.Set[model.Observer])}
}

// Add registers obs as a listener at id, creating the id's entry if this is
// the first subscriber.
func (idx *Index) Add(id model.Id, obs model.Observer) {
	set, ok := idx.byID[id]
	if !ok {
		set = weakset.New[model.Observer]()
		idx.byID[id] = set
	}
	set.Add(obs)
}

// Remove unregisters obs from id. If obs was the last live listener at id,
// the id's entry is dropped from the index entirely, matching the spec's
// "no dangling empty entries" invariant.
func (idx *Index) Remove(id model.Id, obs model.Observer) {
	set, ok := idx.byID[id]
	if !ok {
		return
	}
	set.Remove(obs)
	if set.Empty() {
		delete(idx.byID, id)
	}
}

// RemoveID drops every listener subscribed at id, so the id stops being
// addressable at all.
func (idx *Index) RemoveID(id model.Id) {
	delete(idx.byID, id)
}

// ListenersAt returns the still-live observers subscribed at id, or nil if
// no one is listening there (or every prior listener has since been
// collected). As a side effect, weakset.Set.Snapshot compacts away dead
// slots, and an entry left with no live listener is dropped from the index.
func (idx *Index) ListenersAt(id model.Id) []model.Observer {
	set, ok := idx.byID[id]
	if !ok {
		return nil
	}
	live := set.Snapshot()
	if len(live) == 0 {
		delete(idx.byID, id)
		return nil
	}
	return live
}

// HasListeners reports whether id currently has at least one live listener,
// compacting the entry in the process.
func (idx *Index) HasListeners(id model.Id) bool {
	return len(idx.ListenersAt(id)) > 0
}

// Len reports how many distinct ids currently have at least one (possibly
// stale) listener entry. It does not compact; it is intended for metrics
// and introspection, not control flow.
func (idx *Index) Len() int {
	return len(idx.byID)
}

// IDs returns every id with a listener entry, for introspection.
func (idx *Index) IDs() []model.Id {
	ids := make([]model.Id, 0, len(idx.byID))
	for id := range idx.byID {
		ids = append(ids, id)
	}
	return ids
}
