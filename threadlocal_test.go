package threadlocal_test

import (
	"os"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	threadlocal "github.com/edwardyuendev/thread-local-storage-library"
)

// sink defeats dead-load elimination in the stray-access probes.
var sink byte

func TestRoundTrip(t *testing.T) {
	m := threadlocal.New()
	const t1 = threadlocal.ThreadID(1)

	require.NoError(t, m.Create(t1, 100))
	require.NoError(t, m.Write(t1, 0, []byte("hello")))

	buf := make([]byte, 5)
	require.NoError(t, m.Read(t1, 0, buf))
	assert.Equal(t, "hello", string(buf))

	require.NoError(t, m.Destroy(t1))
}

func TestDoubleCreateRejected(t *testing.T) {
	m := threadlocal.New()
	const t1 = threadlocal.ThreadID(1)

	require.NoError(t, m.Create(t1, 100))
	err := m.Create(t1, 200)
	assert.ErrorIs(t, err, threadlocal.ErrFailed)

	// The original area is untouched.
	size, err := m.Size(t1)
	require.NoError(t, err)
	assert.Equal(t, 100, size)
}

func TestCreateInvalidSize(t *testing.T) {
	m := threadlocal.New()

	assert.ErrorIs(t, m.Create(1, 0), threadlocal.ErrFailed)
	assert.ErrorIs(t, m.Create(1, -4096), threadlocal.ErrFailed)
	assert.Zero(t, m.Stats().Areas)
}

func TestOpsWithoutArea(t *testing.T) {
	m := threadlocal.New()
	buf := make([]byte, 4)

	assert.ErrorIs(t, m.Read(1, 0, buf), threadlocal.ErrFailed)
	assert.ErrorIs(t, m.Write(1, 0, buf), threadlocal.ErrFailed)
	assert.ErrorIs(t, m.Destroy(1), threadlocal.ErrFailed)

	_, err := m.Size(1)
	assert.ErrorIs(t, err, threadlocal.ErrFailed)
}

func TestClonePreconditions(t *testing.T) {
	m := threadlocal.New()
	const t1, t2 = threadlocal.ThreadID(1), threadlocal.ThreadID(2)

	// Source missing.
	assert.ErrorIs(t, m.Clone(t2, t1), threadlocal.ErrFailed)

	require.NoError(t, m.Create(t1, 100))
	require.NoError(t, m.Create(t2, 100))

	// Caller already registered.
	assert.ErrorIs(t, m.Clone(t2, t1), threadlocal.ErrFailed)
}

func TestCloneCopyOnWrite(t *testing.T) {
	m := threadlocal.New()
	ps := m.PageSize()
	const t1, t2 = threadlocal.ThreadID(1), threadlocal.ThreadID(2)

	require.NoError(t, m.Create(t1, 2*ps))
	require.NoError(t, m.Write(t1, 0, []byte("aaaaa")))

	require.NoError(t, m.Clone(t2, t1))

	buf := make([]byte, 5)
	require.NoError(t, m.Read(t2, 0, buf))
	assert.Equal(t, "aaaaa", string(buf))

	st := m.Stats()
	assert.Equal(t, 2, st.Areas)
	assert.Equal(t, 2, st.Pages)
	assert.Equal(t, 2, st.SharedPages)

	// A write through the source forks only the touched page.
	require.NoError(t, m.Write(t1, 0, []byte("bbbbb")))

	require.NoError(t, m.Read(t2, 0, buf))
	assert.Equal(t, "aaaaa", string(buf))
	require.NoError(t, m.Read(t1, 0, buf))
	assert.Equal(t, "bbbbb", string(buf))

	st = m.Stats()
	assert.Equal(t, 3, st.Pages)
	assert.Equal(t, 1, st.SharedPages)

	// And symmetrically through the clone.
	require.NoError(t, m.Write(t2, ps, []byte("ccccc")))
	require.NoError(t, m.Read(t1, ps, buf))
	assert.NotEqual(t, "ccccc", string(buf))

	st = m.Stats()
	assert.Equal(t, 4, st.Pages)
	assert.Zero(t, st.SharedPages)
}

func TestCrossPageWrite(t *testing.T) {
	m := threadlocal.New()
	ps := m.PageSize()
	const t1 = threadlocal.ThreadID(1)

	require.NoError(t, m.Create(t1, 2*ps))
	require.NoError(t, m.Write(t1, ps-2, []byte("WXYZ")))

	buf := make([]byte, 4)
	require.NoError(t, m.Read(t1, ps-2, buf))
	assert.Equal(t, "WXYZ", string(buf))

	st := m.Stats()
	assert.Equal(t, 2, st.Pages)
	assert.Zero(t, st.SharedPages)
}

func TestOutOfRangeNoStateChange(t *testing.T) {
	m := threadlocal.New()
	const t1 = threadlocal.ThreadID(1)

	require.NoError(t, m.Create(t1, 100))
	require.NoError(t, m.Write(t1, 0, []byte("stable")))

	buf := make([]byte, 10)
	assert.ErrorIs(t, m.Read(t1, 95, buf), threadlocal.ErrFailed)
	assert.ErrorIs(t, m.Write(t1, 95, buf), threadlocal.ErrFailed)
	assert.ErrorIs(t, m.Read(t1, -1, buf), threadlocal.ErrFailed)

	got := make([]byte, 6)
	require.NoError(t, m.Read(t1, 0, got))
	assert.Equal(t, "stable", string(got))
}

func TestZeroLengthTransfers(t *testing.T) {
	m := threadlocal.New()
	const t1 = threadlocal.ThreadID(1)

	require.NoError(t, m.Create(t1, 100))

	// offset+length <= size holds, so these are no-op successes,
	// even at offset == size.
	assert.NoError(t, m.Read(t1, 100, nil))
	assert.NoError(t, m.Write(t1, 100, nil))
	assert.ErrorIs(t, m.Read(t1, 101, nil), threadlocal.ErrFailed)
}

func TestStrayAccessKillsOnlyOffender(t *testing.T) {
	m := threadlocal.New()
	const t1 = threadlocal.ThreadID(1)

	require.NoError(t, m.Create(t1, m.PageSize()))
	require.NoError(t, m.Write(t1, 0, []byte("safe")))

	// The write above restored no-access, so a raw load must fault.
	addr := m.InternalStartAddress(t1)
	require.NotZero(t, addr)

	var reached atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Guard(func() {
			sink = *(*byte)(unsafe.Pointer(addr))
			reached.Store(true)
		})
	}()
	<-done
	assert.False(t, reached.Load())

	// The offender is gone; the owner's storage still works.
	buf := make([]byte, 4)
	require.NoError(t, m.Read(t1, 0, buf))
	assert.Equal(t, "safe", string(buf))
	require.NoError(t, m.Write(t1, 0, []byte("more")))
}

func TestDestroyReleasesSharedLazily(t *testing.T) {
	m := threadlocal.New()
	ps := m.PageSize()
	const t1, t2 = threadlocal.ThreadID(1), threadlocal.ThreadID(2)

	require.NoError(t, m.Create(t1, ps))
	require.NoError(t, m.Write(t1, 0, []byte("kept")))
	require.NoError(t, m.Clone(t2, t1))

	require.NoError(t, m.Destroy(t1))

	// The page survives through the clone.
	st := m.Stats()
	assert.Equal(t, 1, st.Areas)
	assert.Equal(t, 1, st.Pages)
	assert.Zero(t, st.SharedPages)
	assert.Equal(t, int64(ps), st.BytesReserved)

	buf := make([]byte, 4)
	require.NoError(t, m.Read(t2, 0, buf))
	assert.Equal(t, "kept", string(buf))

	require.NoError(t, m.Destroy(t2))
	st = m.Stats()
	assert.Zero(t, st.Areas)
	assert.Zero(t, st.Pages)
	assert.Zero(t, st.BytesReserved)
}

func TestInternalStartAddress(t *testing.T) {
	m := threadlocal.New()
	const t1 = threadlocal.ThreadID(1)

	assert.Zero(t, m.InternalStartAddress(t1))

	require.NoError(t, m.Create(t1, 100))
	assert.NotZero(t, m.InternalStartAddress(t1))

	require.NoError(t, m.Destroy(t1))
	assert.Zero(t, m.InternalStartAddress(t1))
}

func TestMemoryLimit(t *testing.T) {
	m := threadlocal.New(threadlocal.WithMemoryLimit(int64(os.Getpagesize())))
	const t1, t2 = threadlocal.ThreadID(1), threadlocal.ThreadID(2)

	require.NoError(t, m.Create(t1, 1))
	assert.ErrorIs(t, m.Create(t2, 1), threadlocal.ErrFailed)

	require.NoError(t, m.Destroy(t1))
	require.NoError(t, m.Create(t2, 1))
}

func TestMemoryLimitBlocksFork(t *testing.T) {
	m := threadlocal.New(threadlocal.WithMemoryLimit(int64(os.Getpagesize())))
	const t1, t2 = threadlocal.ThreadID(1), threadlocal.ThreadID(2)

	require.NoError(t, m.Create(t1, 1))
	require.NoError(t, m.Write(t1, 0, []byte("b")))
	require.NoError(t, m.Clone(t2, t1))

	// The fork needs a second page; the budget has none left, and the
	// failed write must not have touched the shared contents.
	assert.ErrorIs(t, m.Write(t1, 0, []byte("x")), threadlocal.ErrFailed)

	buf := make([]byte, 1)
	require.NoError(t, m.Read(t1, 0, buf))
	assert.Equal(t, "b", string(buf))
	require.NoError(t, m.Read(t2, 0, buf))
	assert.Equal(t, "b", string(buf))
	assert.Equal(t, 1, m.Stats().SharedPages)
}

func TestAllocLimit(t *testing.T) {
	m := threadlocal.New(threadlocal.WithAllocLimit(0.001, 1))
	const t1, t2 = threadlocal.ThreadID(1), threadlocal.ThreadID(2)

	require.NoError(t, m.Create(t1, 1))
	assert.ErrorIs(t, m.Create(t2, 1), threadlocal.ErrFailed)
}

func TestMetricsCollected(t *testing.T) {
	mc := &threadlocal.BasicMetricsCollector{}
	m := threadlocal.New(threadlocal.WithMetrics(mc))
	ps := m.PageSize()
	const t1, t2 = threadlocal.ThreadID(1), threadlocal.ThreadID(2)

	require.NoError(t, m.Create(t1, 2*ps))
	require.NoError(t, m.Write(t1, 0, []byte("hello")))
	require.NoError(t, m.Clone(t2, t1))
	require.NoError(t, m.Write(t2, 0, []byte("world"))) // forks one page

	buf := make([]byte, 5)
	require.NoError(t, m.Read(t2, 0, buf))
	require.Error(t, m.Read(t1, 2*ps, buf))

	require.NoError(t, m.Destroy(t1))
	require.NoError(t, m.Destroy(t2))

	assert.Equal(t, int64(1), mc.CreateCount.Load())
	assert.Equal(t, int64(2), mc.WriteCount.Load())
	assert.Equal(t, int64(10), mc.BytesWritten.Load())
	assert.Equal(t, int64(1), mc.PagesForked.Load())
	assert.Equal(t, int64(2), mc.ReadCount.Load())
	assert.Equal(t, int64(1), mc.ReadErrors.Load())
	assert.Equal(t, int64(5), mc.BytesRead.Load())
	assert.Equal(t, int64(1), mc.CloneCount.Load())
	assert.Equal(t, int64(2), mc.DestroyCount.Load())
}

func TestConcurrentThreads(t *testing.T) {
	m := threadlocal.New()
	ps := m.PageSize()

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		id := threadlocal.ThreadID(100 + i)
		seed := byte('A' + i)
		g.Go(func() error {
			if err := m.Create(id, 2*ps); err != nil {
				return err
			}
			payload := make([]byte, ps)
			for j := range payload {
				payload[j] = seed
			}
			if err := m.Write(id, ps/2, payload); err != nil {
				return err
			}
			got := make([]byte, ps)
			if err := m.Read(id, ps/2, got); err != nil {
				return err
			}
			for j := range got {
				if got[j] != seed {
					return assert.AnError
				}
			}
			return m.Destroy(id)
		})
	}
	require.NoError(t, g.Wait())
	assert.Zero(t, m.Stats().Areas)
}

func TestConcurrentClones(t *testing.T) {
	m := threadlocal.New()
	ps := m.PageSize()
	const src = threadlocal.ThreadID(1)

	require.NoError(t, m.Create(src, ps))
	require.NoError(t, m.Write(src, 0, []byte("shared")))

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		id := threadlocal.ThreadID(200 + i)
		g.Go(func() error {
			if err := m.Clone(id, src); err != nil {
				return err
			}
			// Break sharing on this clone, then verify isolation.
			if err := m.Write(id, 0, []byte{byte(id)}); err != nil {
				return err
			}
			got := make([]byte, 6)
			if err := m.Read(id, 0, got); err != nil {
				return err
			}
			if got[0] != byte(id) || string(got[1:]) != "hared" {
				return assert.AnError
			}
			return m.Destroy(id)
		})
	}
	require.NoError(t, g.Wait())

	got := make([]byte, 6)
	require.NoError(t, m.Read(src, 0, got))
	assert.Equal(t, "shared", string(got))
}

func TestDefaultManager(t *testing.T) {
	assert.Same(t, threadlocal.Default(), threadlocal.Default())

	const id = threadlocal.ThreadID(9001)
	require.NoError(t, threadlocal.Create(id, 64))
	require.NoError(t, threadlocal.Write(id, 0, []byte("pkg")))

	buf := make([]byte, 3)
	require.NoError(t, threadlocal.Read(id, 0, buf))
	assert.Equal(t, "pkg", string(buf))

	assert.NotZero(t, threadlocal.InternalStartAddress(id))
	require.NoError(t, threadlocal.Destroy(id))
	assert.Zero(t, threadlocal.InternalStartAddress(id))
}
