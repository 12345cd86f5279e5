package threadlocal

import (
	"github.com/edwardyuendev/thread-local-storage-library/internal/resource"
)

type options struct {
	logger  *Logger
	metrics MetricsCollector
	resCfg  resource.Config
}

// Option configures a Manager.
type Option func(*options)

// WithLogger configures structured logging for the manager.
// If nil is passed, logging stays disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics configures a metrics collector for the manager.
// If nil is passed, metrics stay disabled.
func WithMetrics(mc MetricsCollector) Option {
	return func(o *options) {
		if mc != nil {
			o.metrics = mc
		}
	}
}

// WithMemoryLimit caps the total memory the manager may hold in managed
// pages. Create and copy-on-write forks fail once the limit is reached
// until pages are released again. If bytes <= 0, no limit is enforced.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		if bytes > 0 {
			o.resCfg.MemoryLimitBytes = bytes
		}
	}
}

// WithAllocLimit throttles page allocations (create and copy-on-write
// forks) to perSec allocations per second with the given burst. A burst
// <= 0 defaults to 1. If perSec <= 0, no throttle is applied.
func WithAllocLimit(perSec float64, burst int) Option {
	return func(o *options) {
		if perSec > 0 {
			o.resCfg.AllocPerSec = perSec
			o.resCfg.AllocBurst = burst
		}
	}
}
