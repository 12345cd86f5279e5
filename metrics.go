package threadlocal

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems.
type MetricsCollector interface {
	// RecordCreate is called after each create operation.
	RecordCreate(duration time.Duration, err error)

	// RecordRead is called after each read operation.
	// n is the number of bytes requested.
	RecordRead(n int, duration time.Duration, err error)

	// RecordWrite is called after each write operation.
	// n is the number of bytes requested, forked the number of pages
	// copied to break sharing.
	RecordWrite(n, forked int, duration time.Duration, err error)

	// RecordDestroy is called after each destroy operation.
	RecordDestroy(duration time.Duration, err error)

	// RecordClone is called after each clone operation.
	RecordClone(duration time.Duration, err error)

	// RecordFault is called from the fault path after classification.
	// managed reports whether the faulting address was inside a managed page.
	RecordFault(managed bool)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCreate(time.Duration, error)          {}
func (NoopMetricsCollector) RecordRead(int, time.Duration, error)       {}
func (NoopMetricsCollector) RecordWrite(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordDestroy(time.Duration, error)         {}
func (NoopMetricsCollector) RecordClone(time.Duration, error)           {}
func (NoopMetricsCollector) RecordFault(bool)                           {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	CreateCount  atomic.Int64
	CreateErrors atomic.Int64

	ReadCount  atomic.Int64
	ReadErrors atomic.Int64
	BytesRead  atomic.Int64

	WriteCount   atomic.Int64
	WriteErrors  atomic.Int64
	BytesWritten atomic.Int64
	PagesForked  atomic.Int64

	DestroyCount  atomic.Int64
	DestroyErrors atomic.Int64

	CloneCount  atomic.Int64
	CloneErrors atomic.Int64

	ManagedFaults   atomic.Int64
	UnmanagedFaults atomic.Int64
}

// RecordCreate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCreate(_ time.Duration, err error) {
	b.CreateCount.Add(1)
	if err != nil {
		b.CreateErrors.Add(1)
	}
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(n int, _ time.Duration, err error) {
	b.ReadCount.Add(1)
	if err != nil {
		b.ReadErrors.Add(1)
		return
	}
	b.BytesRead.Add(int64(n))
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(n, forked int, _ time.Duration, err error) {
	b.WriteCount.Add(1)
	b.PagesForked.Add(int64(forked))
	if err != nil {
		b.WriteErrors.Add(1)
		return
	}
	b.BytesWritten.Add(int64(n))
}

// RecordDestroy implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDestroy(_ time.Duration, err error) {
	b.DestroyCount.Add(1)
	if err != nil {
		b.DestroyErrors.Add(1)
	}
}

// RecordClone implements MetricsCollector.
func (b *BasicMetricsCollector) RecordClone(_ time.Duration, err error) {
	b.CloneCount.Add(1)
	if err != nil {
		b.CloneErrors.Add(1)
	}
}

// RecordFault implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFault(managed bool) {
	if managed {
		b.ManagedFaults.Add(1)
	} else {
		b.UnmanagedFaults.Add(1)
	}
}
