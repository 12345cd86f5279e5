// Package registry maps thread identities to their storage areas.
//
// Mutations run under the owning manager's lock and publish a fresh
// immutable snapshot through an atomic pointer. The fault classifier walks
// the current snapshot without the lock and observes either the pre- or
// post-state of any insert or remove, never a torn table.
package registry

import (
	"sync/atomic"

	"github.com/edwardyuendev/thread-local-storage-library/internal/page"
)

type snapshot struct {
	areas []*page.Area
}

// Table is one manager's thread-identity to area mapping.
// The zero value is not ready; use NewTable.
type Table struct {
	snap atomic.Pointer[snapshot]
}

// NewTable creates an empty table.
func NewTable() *Table {
	t := &Table{}
	t.snap.Store(&snapshot{})
	return t
}

// Lookup returns the area owned by id, or nil.
func (t *Table) Lookup(id uint64) *page.Area {
	for _, a := range t.snap.Load().areas {
		if a.Owner() == id {
			return a
		}
	}
	return nil
}

// Insert publishes a snapshot that includes a. The caller holds the
// manager lock and has checked that a's owner is not yet present.
func (t *Table) Insert(a *page.Area) {
	cur := t.snap.Load()
	next := make([]*page.Area, 0, len(cur.areas)+1)
	next = append(next, cur.areas...)
	next = append(next, a)
	t.snap.Store(&snapshot{areas: next})
}

// Remove publishes a snapshot without the area owned by id and returns
// the removed area, or nil if id is not present.
func (t *Table) Remove(id uint64) *page.Area {
	cur := t.snap.Load()
	var removed *page.Area
	next := make([]*page.Area, 0, len(cur.areas))
	for _, a := range cur.areas {
		if removed == nil && a.Owner() == id {
			removed = a
			continue
		}
		next = append(next, a)
	}
	if removed == nil {
		return nil
	}
	t.snap.Store(&snapshot{areas: next})
	return removed
}

// Len returns the number of registered areas.
func (t *Table) Len() int {
	return len(t.snap.Load().areas)
}

// Areas returns the current snapshot's areas. The slice is immutable;
// callers must not modify it.
func (t *Table) Areas() []*page.Area {
	return t.snap.Load().areas
}

// ContainsAddr reports whether addr lies inside any page of any
// registered area. Safe to call without the manager lock.
func (t *Table) ContainsAddr(addr uintptr) bool {
	for _, a := range t.snap.Load().areas {
		if a.Contains(addr) {
			return true
		}
	}
	return false
}
