// Package page implements reference-counted protected pages and the storage
// areas built from them.
//
// A Page is one OS page of anonymous memory whose protection is "no access"
// at rest. An Area is one thread's local storage: an ordered sequence of page
// slots plus a byte size. Areas share pages copy-on-write: cloning an area
// retains every page of the source, and the first write through a sharing
// area forks a private copy of the touched page before any byte lands.
//
// All mutating operations on pages and areas must run under the owning
// manager's lock. The page slots of an Area are published through atomic
// pointers so that the fault classifier can walk an area without the lock
// and observe either the pre- or post-COW page of any slot, never a torn one.
package page
