package threadlocal

import (
	"sync"
	"time"

	"github.com/edwardyuendev/thread-local-storage-library/internal/fault"
	"github.com/edwardyuendev/thread-local-storage-library/internal/page"
	"github.com/edwardyuendev/thread-local-storage-library/internal/registry"
	"github.com/edwardyuendev/thread-local-storage-library/internal/resource"
	"github.com/edwardyuendev/thread-local-storage-library/internal/vmem"
)

// ThreadID is an opaque thread identity supplied by the host runtime.
// The library only compares identities; it never interprets them.
type ThreadID uint64

// Manager owns a registry of local storage areas keyed by thread identity.
// All operations serialize behind one lock; page protection is elevated
// only under that lock and restored before it is released.
type Manager struct {
	mu       sync.Mutex
	pageSize int
	table    *registry.Table
	res      *resource.Controller
	logger   *Logger
	metrics  MetricsCollector
}

// New creates a Manager. The OS page size is queried once here.
func New(optFns ...Option) *Manager {
	o := options{
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		fn(&o)
	}

	var res *resource.Controller
	if o.resCfg != (resource.Config{}) {
		res = resource.NewController(o.resCfg)
	}

	return &Manager{
		pageSize: vmem.PageSize(),
		table:    registry.NewTable(),
		res:      res,
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

// PageSize returns the OS page size the manager allocates in.
func (m *Manager) PageSize() int { return m.pageSize }

// Create allocates a local storage area of size bytes for id.
// It fails if size is not positive or id already has an area.
func (m *Manager) Create(id ThreadID, size int) error {
	start := time.Now()
	err := m.create(id, size)
	m.metrics.RecordCreate(time.Since(start), err)
	m.logger.LogCreate(id, size, err)
	return err
}

func (m *Manager) create(id ThreadID, size int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if size <= 0 {
		return fail(errInvalidSize)
	}
	if m.table.Lookup(uint64(id)) != nil {
		return fail(errAlreadyExists)
	}

	a, err := page.NewArea(uint64(id), size, m.pageSize, m.res)
	if err != nil {
		return fail(err)
	}
	m.table.Insert(a)
	return nil
}

// Read copies len(dst) bytes starting at logical offset into dst.
// It fails if id has no area or offset+len(dst) exceeds the area size.
// A zero-length read succeeds without effect.
func (m *Manager) Read(id ThreadID, offset int, dst []byte) error {
	start := time.Now()
	err := m.read(id, offset, dst)
	m.metrics.RecordRead(len(dst), time.Since(start), err)
	m.logger.LogRead(id, offset, len(dst), err)
	return err
}

func (m *Manager) read(id ThreadID, offset int, dst []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.table.Lookup(uint64(id))
	if a == nil {
		return fail(errNotRegistered)
	}
	if err := a.ReadAt(dst, offset); err != nil {
		return fail(err)
	}
	return nil
}

// Write copies src into id's area at logical offset, forking any shared
// page it touches first. It fails if id has no area or offset+len(src)
// exceeds the area size. A zero-length write succeeds without effect.
func (m *Manager) Write(id ThreadID, offset int, src []byte) error {
	start := time.Now()
	forked, err := m.write(id, offset, src)
	m.metrics.RecordWrite(len(src), forked, time.Since(start), err)
	m.logger.LogWrite(id, offset, len(src), forked, err)
	return err
}

func (m *Manager) write(id ThreadID, offset int, src []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.table.Lookup(uint64(id))
	if a == nil {
		return 0, fail(errNotRegistered)
	}
	forked, err := a.WriteAt(src, offset, m.res)
	if err != nil {
		return forked, fail(err)
	}
	return forked, nil
}

// Destroy removes id's area, dropping one reference per page and
// releasing pages nothing shares anymore. It fails if id has no area.
func (m *Manager) Destroy(id ThreadID) error {
	start := time.Now()
	err := m.destroy(id)
	m.metrics.RecordDestroy(time.Since(start), err)
	m.logger.LogDestroy(id, err)
	return err
}

func (m *Manager) destroy(id ThreadID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.table.Remove(uint64(id))
	if a == nil {
		return fail(errNotRegistered)
	}
	if err := a.Destroy(m.res); err != nil {
		return fail(err)
	}
	return nil
}

// Clone gives id an area of the same size as source's, backed by the
// same pages. Each shared page gains one reference; writes through
// either area fork before touching shared pages. It fails if source has
// no area or id already has one.
func (m *Manager) Clone(id, source ThreadID) error {
	start := time.Now()
	err := m.clone(id, source)
	m.metrics.RecordClone(time.Since(start), err)
	m.logger.LogClone(id, source, err)
	return err
}

func (m *Manager) clone(id, source ThreadID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src := m.table.Lookup(uint64(source))
	if src == nil {
		return fail(errSourceMissing)
	}
	if m.table.Lookup(uint64(id)) != nil {
		return fail(errAlreadyExists)
	}
	m.table.Insert(src.Clone(uint64(id)))
	return nil
}

// Size returns the size in bytes of id's area.
func (m *Manager) Size(id ThreadID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.table.Lookup(uint64(id))
	if a == nil {
		return 0, fail(errNotRegistered)
	}
	return a.Size(), nil
}

// InternalStartAddress returns the base address of page 0 of id's area,
// or 0 if id has no area. Test hook; the address must not be dereferenced
// outside Guard.
func (m *Manager) InternalStartAddress(id ThreadID) uintptr {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.table.Lookup(uint64(id))
	if a == nil {
		return 0
	}
	return a.StartAddress()
}

// Guard runs fn in the calling goroutine with fault trapping armed. A
// protection fault inside any managed page terminates only the calling
// goroutine; any other panic is re-raised for the default disposition.
//
// The five storage operations must not be called from deferred functions
// that run while the goroutine is being terminated.
func (m *Manager) Guard(fn func()) {
	fault.Guard(m.classify, fn)
}

// classify runs on the fault path. It reads the registry snapshot without
// the manager lock, which may be held by an unrelated thread.
func (m *Manager) classify(addr uintptr) bool {
	managed := m.table.ContainsAddr(addr)
	m.metrics.RecordFault(managed)
	m.logger.LogFault(addr, managed)
	return managed
}

// Stats is a point-in-time view of the manager's registry.
type Stats struct {
	Areas         int   // registered areas
	Pages         int   // distinct managed pages
	SharedPages   int   // distinct pages with reference count > 1
	BytesReserved int64 // distinct pages times the page size
}

// Stats returns registry-level statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[uintptr]*page.Page)
	for _, a := range m.table.Areas() {
		for i := 0; i < a.NumPages(); i++ {
			p := a.Page(i)
			seen[p.Base()] = p
		}
	}

	st := Stats{Areas: m.table.Len()}
	for _, p := range seen {
		st.Pages++
		if p.Shared() {
			st.SharedPages++
		}
		st.BytesReserved += int64(p.Size())
	}
	return st
}

var (
	defaultOnce sync.Once
	defaultMgr  *Manager
)

// Default returns the process-wide manager, creating it on first use.
// The first caller initializes it; concurrent first calls are safe.
func Default() *Manager {
	defaultOnce.Do(func() {
		defaultMgr = New()
	})
	return defaultMgr
}

// Create allocates a storage area for id in the process-wide manager.
func Create(id ThreadID, size int) error { return Default().Create(id, size) }

// Read reads from id's storage area in the process-wide manager.
func Read(id ThreadID, offset int, dst []byte) error { return Default().Read(id, offset, dst) }

// Write writes to id's storage area in the process-wide manager.
func Write(id ThreadID, offset int, src []byte) error { return Default().Write(id, offset, src) }

// Destroy removes id's storage area from the process-wide manager.
func Destroy(id ThreadID) error { return Default().Destroy(id) }

// Clone shares source's storage area with id in the process-wide manager.
func Clone(id, source ThreadID) error { return Default().Clone(id, source) }

// Guard runs fn with fault trapping armed against the process-wide manager.
func Guard(fn func()) { Default().Guard(fn) }

// InternalStartAddress returns the base address of page 0 of id's area in
// the process-wide manager, or 0 if id has no area.
func InternalStartAddress(id ThreadID) uintptr { return Default().InternalStartAddress(id) }
