package page

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrOutOfRange is returned when offset+length exceeds the area size.
	ErrOutOfRange = errors.New("page: access out of range")
	// ErrInvalidSize is returned when an area size is not positive.
	ErrInvalidSize = errors.New("page: invalid area size")
)

// Area is one thread's local storage area: an ordered sequence of page
// slots covering size bytes. The last page may be only partially used;
// the offset+length bound keeps the unused tail unreachable through the
// byte-offset API.
//
// Slots are atomic pointers so an unsynchronized reader (the fault
// classifier) sees either the pre- or post-COW page of a slot.
type Area struct {
	owner    uint64
	size     int
	pageSize int
	slots    []atomic.Pointer[Page]
}

// NewArea allocates an area of fresh private pages covering size bytes
// for the given owner. On allocation failure every page already mapped
// is released and the error is returned.
func NewArea(owner uint64, size, pageSize int, res Reserver) (*Area, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	n := (size + pageSize - 1) / pageSize
	a := &Area{
		owner:    owner,
		size:     size,
		pageSize: pageSize,
		slots:    make([]atomic.Pointer[Page], n),
	}
	for i := range a.slots {
		p, err := Alloc(pageSize, res)
		if err != nil {
			for j := 0; j < i; j++ {
				a.slots[j].Load().Release(res)
			}
			return nil, err
		}
		a.slots[i].Store(p)
	}
	return a, nil
}

// Clone creates an area for owner that shares every page of a, adding one
// reference per page. The source is unaffected.
func (a *Area) Clone(owner uint64) *Area {
	c := &Area{
		owner:    owner,
		size:     a.size,
		pageSize: a.pageSize,
		slots:    make([]atomic.Pointer[Page], len(a.slots)),
	}
	for i := range a.slots {
		p := a.slots[i].Load()
		p.Retain()
		c.slots[i].Store(p)
	}
	return c
}

// Owner returns the owning thread identity.
func (a *Area) Owner() uint64 { return a.owner }

// Size returns the requested size in bytes.
func (a *Area) Size() int { return a.size }

// NumPages returns the number of page slots.
func (a *Area) NumPages() int { return len(a.slots) }

// Page returns the page currently in slot i.
func (a *Area) Page(i int) *Page { return a.slots[i].Load() }

// StartAddress returns the base address of page 0.
func (a *Area) StartAddress() uintptr {
	return a.slots[0].Load().Base()
}

// Contains reports whether addr lies inside any page of the area.
// Safe to call without the manager lock.
func (a *Area) Contains(addr uintptr) bool {
	for i := range a.slots {
		if p := a.slots[i].Load(); p != nil && p.Contains(addr) {
			return true
		}
	}
	return false
}

func (a *Area) checkRange(off, length int) error {
	if off < 0 || length < 0 || off+length > a.size {
		return ErrOutOfRange
	}
	return nil
}

// ReadAt copies len(dst) bytes starting at logical offset off into dst.
// Reading never breaks sharing. A zero-length read is a no-op.
func (a *Area) ReadAt(dst []byte, off int) error {
	if err := a.checkRange(off, len(dst)); err != nil {
		return err
	}
	for done := 0; done < len(dst); {
		pi := (off + done) / a.pageSize
		d := (off + done) % a.pageSize
		n := a.pageSize - d
		if rem := len(dst) - done; n > rem {
			n = rem
		}
		chunk := dst[done : done+n]
		err := a.slots[pi].Load().Access(func(b []byte) {
			copy(chunk, b[d:d+n])
		})
		if err != nil {
			return err
		}
		done += n
	}
	return nil
}

// WriteAt copies src into the area at logical offset off and reports how
// many pages were forked. Every shared page in the touched range is forked
// before any byte of src is copied, so an allocation failure leaves the
// area's observable contents unchanged. A zero-length write is a no-op.
func (a *Area) WriteAt(src []byte, off int, res Reserver) (forked int, err error) {
	if err := a.checkRange(off, len(src)); err != nil {
		return 0, err
	}
	if len(src) == 0 {
		return 0, nil
	}

	first := off / a.pageSize
	last := (off + len(src) - 1) / a.pageSize
	for pi := first; pi <= last; pi++ {
		p := a.slots[pi].Load()
		if !p.Shared() {
			continue
		}
		np, ferr := p.Fork(res)
		if ferr != nil {
			return forked, ferr
		}
		a.slots[pi].Store(np)
		p.Release(res) // count was > 1, drops this slot's reference
		forked++
	}

	for done := 0; done < len(src); {
		pi := (off + done) / a.pageSize
		d := (off + done) % a.pageSize
		n := a.pageSize - d
		if rem := len(src) - done; n > rem {
			n = rem
		}
		chunk := src[done : done+n]
		err := a.slots[pi].Load().Access(func(b []byte) {
			copy(b[d:d+n], chunk)
		})
		if err != nil {
			return forked, err
		}
		done += n
	}
	return forked, nil
}

// Destroy drops the area's reference on every page, unmapping pages whose
// count reaches zero. The area must already be out of the registry.
func (a *Area) Destroy(res Reserver) error {
	var firstErr error
	for i := range a.slots {
		p := a.slots[i].Load()
		if p == nil {
			continue
		}
		a.slots[i].Store(nil)
		if _, err := p.Release(res); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
