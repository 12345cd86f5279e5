// Package fault turns protection faults on managed pages into the
// termination of the faulting goroutine only.
//
// Go routes memory faults through the runtime, so there is no process-wide
// trap handler to install. Instead each thread body runs inside Guard,
// which arms runtime/debug.SetPanicOnFault for the goroutine and recovers
// the resulting panic. A fault whose address the classifier recognizes as
// a managed page ends the goroutine via runtime.Goexit; any other panic is
// re-raised so the default disposition (process crash) applies.
package fault

import (
	"runtime"
	"runtime/debug"
)

// Classifier reports whether addr lies inside a managed page. It is
// called from the fault path and must not block or take the manager lock.
type Classifier func(addr uintptr) bool

// addresser is implemented by the runtime's memory-fault errors when
// panic-on-fault is armed.
type addresser interface {
	Addr() uintptr
}

// Addr extracts the faulting address from a recovered panic value.
// It reports false for panics that are not memory faults.
func Addr(r any) (uintptr, bool) {
	re, ok := r.(runtime.Error)
	if !ok {
		return 0, false
	}
	a, ok := re.(addresser)
	if !ok {
		return 0, false
	}
	return a.Addr(), true
}

// Guard runs fn in the calling goroutine with fault trapping armed.
//
// If fn faults inside a page the classifier recognizes, only the calling
// goroutine terminates; its deferred calls still run. Every other panic,
// including faults outside managed pages, is re-raised unchanged.
//
// Guard must not be nested, and fn must not invoke the public storage
// operations from deferred calls that run during termination.
func Guard(classify Classifier, fn func()) {
	prev := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(prev)
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if addr, ok := Addr(r); ok && classify(addr) {
			runtime.Goexit()
		}
		panic(r)
	}()
	fn()
}
