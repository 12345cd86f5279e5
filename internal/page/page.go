package page

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/edwardyuendev/thread-local-storage-library/internal/vmem"
)

// Reserver reserves backing memory ahead of page allocation.
// A nil *resource.Controller satisfies it and enforces nothing.
type Reserver interface {
	AcquireMemory(bytes int64) error
	ReleaseMemory(bytes int64)
}

func acquire(res Reserver, n int64) error {
	if res == nil {
		return nil
	}
	return res.AcquireMemory(n)
}

func release(res Reserver, n int64) {
	if res != nil {
		res.ReleaseMemory(n)
	}
}

// Page is one OS page of anonymous memory plus a reference count.
// The count equals the number of area slots listing the page; a page with
// count > 1 is shared. Protection is no-access except inside Access and,
// read-only, while Fork copies from the page.
type Page struct {
	data []byte
	refs atomic.Int32
}

// Alloc maps one fresh private page with no-access protection.
// The page starts with one reference.
func Alloc(pageSize int, res Reserver) (*Page, error) {
	if err := acquire(res, int64(pageSize)); err != nil {
		return nil, err
	}
	data, err := vmem.Map(pageSize, vmem.ProtNone)
	if err != nil {
		release(res, int64(pageSize))
		return nil, fmt.Errorf("page: map: %w", err)
	}
	p := &Page{data: data}
	p.refs.Store(1)
	return p, nil
}

// Size returns the page size in bytes.
func (p *Page) Size() int { return len(p.data) }

// Base returns the page's base address.
func (p *Page) Base() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(p.data)))
}

// Contains reports whether addr lies inside the page's byte range
// [base, base+size). The full page counts, including any tail bytes an
// area does not use: the OS protects whole pages.
func (p *Page) Contains(addr uintptr) bool {
	base := p.Base()
	return addr >= base && addr < base+uintptr(len(p.data))
}

// Refs returns the current reference count.
func (p *Page) Refs() int32 { return p.refs.Load() }

// Shared reports whether more than one area slot lists the page.
func (p *Page) Shared() bool { return p.refs.Load() > 1 }

// Retain adds one reference.
func (p *Page) Retain() { p.refs.Add(1) }

// Release drops one reference. When the count reaches zero the backing
// memory is unmapped and returned to the reserver.
func (p *Page) Release(res Reserver) (freed bool, err error) {
	if p.refs.Add(-1) > 0 {
		return false, nil
	}
	size := len(p.data)
	err = vmem.Unmap(p.data)
	p.data = nil
	release(res, int64(size))
	if err != nil {
		return true, fmt.Errorf("page: unmap: %w", err)
	}
	return true, nil
}

// Access elevates the page to read/write, runs fn on its contents, and
// restores no-access before returning. fn must not retain the slice.
func (p *Page) Access(fn func(b []byte)) error {
	if err := vmem.Protect(p.data, vmem.ProtReadWrite); err != nil {
		return fmt.Errorf("page: unprotect: %w", err)
	}
	defer vmem.Protect(p.data, vmem.ProtNone)
	fn(p.data)
	return nil
}

// Fork allocates a private copy of the page's full contents. The fork
// starts with one reference; the source's count is untouched.
func (p *Page) Fork(res Reserver) (*Page, error) {
	np, err := Alloc(len(p.data), res)
	if err != nil {
		return nil, err
	}
	if err := vmem.Protect(p.data, vmem.ProtRead); err != nil {
		np.Release(res)
		return nil, fmt.Errorf("page: unprotect source: %w", err)
	}
	err = np.Access(func(dst []byte) {
		copy(dst, p.data)
	})
	if rerr := vmem.Protect(p.data, vmem.ProtNone); err == nil {
		err = rerr
	}
	if err != nil {
		np.Release(res)
		return nil, err
	}
	return np, nil
}
