// Package resource tracks and limits the memory the library reserves from the OS.
package resource

import (
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var (
	// ErrMemoryLimitExceeded is returned when the memory limit would be exceeded.
	ErrMemoryLimitExceeded = errors.New("resource: memory limit exceeded")
	// ErrAllocThrottled is returned when the allocation rate limit is exceeded.
	ErrAllocThrottled = errors.New("resource: allocation rate exceeded")
)

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for managed page memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// AllocPerSec is the maximum number of page allocations per second.
	// If 0, unlimited.
	AllocPerSec float64

	// AllocBurst is the allocation burst size. If 0, defaults to 1 when
	// AllocPerSec is set.
	AllocBurst int
}

// Controller tracks managed memory against a configured budget.
// A nil *Controller is valid and enforces nothing.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	allocLimiter *rate.Limiter // nil if unlimited
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.AllocPerSec > 0 {
		burst := cfg.AllocBurst
		if burst <= 0 {
			burst = 1
		}
		c.allocLimiter = rate.NewLimiter(rate.Limit(cfg.AllocPerSec), burst)
	}

	return c
}

// AcquireMemory attempts to reserve memory for one allocation.
// Returns ErrMemoryLimitExceeded or ErrAllocThrottled on budget violations.
// Non-blocking - callers control retry policy.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil {
		return nil
	}
	if bytes <= 0 {
		return nil
	}

	if c.allocLimiter != nil && !c.allocLimiter.AllowN(time.Now(), 1) {
		return ErrAllocThrottled
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return ErrMemoryLimitExceeded
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil {
		return
	}
	if bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}
