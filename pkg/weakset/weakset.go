// Package weakset implements WeakObserverSet: an ordered, append-mostly
// container that holds interface values weakly, so that an Observer or
// Delegate the host application has otherwise let go of simply stops
// appearing in iteration rather than requiring an explicit unsubscribe.
//
// The standard library's weak package (Go 1.24+) is parameterized over a
// concrete pointed-to type, weak.Pointer[T], which does not by itself admit
// "weakly hold whatever object backs this interface value." Set bridges
// that gap: it extracts the pointer-shaped data word behind an interface
// value via reflect and hands it to weak.Make through an unsafe.Pointer
// conversion. The object's static type is irrelevant to the runtime's
// liveness tracking — only the address matters — so this is safe as long
// as the interface's dynamic value is itself pointer-shaped, which every
// realistic Observer/Delegate implementation is (a struct held behind a
// pointer receiver).
//
// This is the one place in the module that reaches for the standard
// library instead of a pack dependency, because no library in the
// dependency pack (or the wider ecosystem, to this author's knowledge)
// offers weak references; see DESIGN.md.
package weakset

import (
	"reflect"
	"sync"
	"unsafe"
	"weak"
)

// Set holds a collection of T (typically model.Observer or model.Delegate)
// by weak reference, in insertion order. All methods are safe for
// concurrent use, though in this module Set is only ever touched from the
// Dispatcher's single serial-queue goroutine.
type Set[T any] struct {
	mu      sync.Mutex
	entries []weak.Pointer[byte]
	// assert mirrors entries 1:1 and reconstructs a typed T from the raw
	// pointer weak.Pointer.Value hands back, undoing the unsafe.Pointer
	// conversion performed in Add.
	assert []func(unsafe.Pointer) T
}

// New returns an empty Set.
func New[T any]() *Set[T] {
	return &Set[T]{}
}

// Add registers obj weakly. Adding the same logical object twice results in
// two independent weak slots; callers that care about duplicate
// registration should check Snapshot first.
func (s *Set[T]) Add(obj T) {
	rv := reflect.ValueOf(obj)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		// Non-pointer or nil dynamic values cannot be weakly tracked; the
		// caller programming error surfaces as the object never appearing
		// in Snapshot, which is the same externally-visible behavior as an
		// object that was immediately collected.
		return
	}
	addr := (*byte)(unsafe.Pointer(rv.Pointer()))
	wp := weak.Make(addr)

	typ := rv.Type()
	reassemble := func(p unsafe.Pointer) T {
		return reflect.NewAt(typ.Elem(), p).Interface().(T)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, wp)
	s.assert = append(s.assert, reassemble)
}

// Remove drops every weak slot whose current value equals obj (by pointer
// identity). It is a no-op if obj is not present.
func (s *Set[T]) Remove(obj T) {
	rv := reflect.ValueOf(obj)
	if rv.Kind() != reflect.Ptr {
		return
	}
	target := rv.Pointer()

	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.entries[:0]
	assert := s.assert[:0]
	for i, wp := range s.entries {
		p := wp.Value()
		if p != nil && uintptr(unsafe.Pointer(p)) == target {
			continue
		}
		entries = append(entries, wp)
		assert = append(assert, s.assert[i])
	}
	s.entries = entries
	s.assert = assert
}

// Snapshot returns every still-live member, in insertion order, and
// compacts away any slots whose referent has since been collected. The
// returned slice is safe to range over without holding the Set's lock.
func (s *Set[T]) Snapshot() []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := make([]T, 0, len(s.entries))
	entries := s.entries[:0]
	assert := s.assert[:0]
	for i, wp := range s.entries {
		p := wp.Value()
		if p == nil {
			continue
		}
		live = append(live, s.assert[i](unsafe.Pointer(p)))
		entries = append(entries, wp)
		assert = append(assert, s.assert[i])
	}
	s.entries = entries
	s.assert = assert
	return live
}

// Len reports the number of still-live members. It has the same collection
// cost as Snapshot; prefer Snapshot if you need the members too.
func (s *Set[T]) Len() int {
	return len(s.Snapshot())
}

// Empty reports whether the Set has no live members left, compacting dead
// slots as a side effect — ListenerIndex uses this to decide whether an id
// can be dropped from the index entirely.
func (s *Set[T]) Empty() bool {
	return s.Len() == 0
}
