// Package threadlocal provides protected per-thread local storage areas (LSAs).
//
// An LSA is a page-granular memory region a thread reads and writes through
// an explicit byte-offset API. The backing pages are kept inaccessible except
// while the library itself transfers bytes, so any stray load or store into
// an LSA faults. Run thread bodies inside Guard and such a fault terminates
// only the offending goroutine; the rest of the process keeps running.
//
// LSAs can be shared copy-on-write: Clone gives a thread a storage area
// backed by the same pages as the source, and the first write to a shared
// page through either area forks a private copy, so neither side ever sees
// the other's writes.
//
// # Quick Start
//
//	const t1 = threadlocal.ThreadID(1)
//
//	m := threadlocal.New()
//	if err := m.Create(t1, 4096); err != nil { ... }
//	defer m.Destroy(t1)
//
//	_ = m.Write(t1, 0, []byte("hello"))
//
//	buf := make([]byte, 5)
//	_ = m.Read(t1, 0, buf)
//
// Copy-on-write sharing:
//
//	const t2 = threadlocal.ThreadID(2)
//
//	_ = m.Clone(t2, t1)            // t2 now shares t1's pages
//	_ = m.Write(t1, 0, []byte("x")) // forks the page; t2 still reads "hello"
//
// Fault isolation:
//
//	go func() {
//	    m.Guard(func() {
//	        // a stray pointer dereference into a managed page ends
//	        // this goroutine here instead of crashing the process
//	    })
//	}()
//
// # Thread Identity
//
// The library never inspects goroutines. Callers supply an opaque ThreadID
// for every operation; the host runtime decides what a "thread" is and
// keeps its identities unique.
//
// # Concurrency
//
// All five operations on a Manager serialize behind one lock. Page
// protection is only ever elevated under that lock and restored before it
// is released, so a legitimate transfer can never be mistaken for a stray
// access. The fault classifier reads an atomically published registry
// snapshot and needs no lock.
package threadlocal
