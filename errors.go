package threadlocal

import (
	"errors"
	"fmt"
)

// ErrFailed is the single failure value of the public API. Every failing
// operation returns an error satisfying errors.Is(err, ErrFailed). The
// wrapped detail text exists for logs; callers are not meant to branch
// on individual causes.
var ErrFailed = errors.New("threadlocal: operation failed")

var (
	errInvalidSize   = errors.New("size must be positive")
	errAlreadyExists = errors.New("storage already exists for thread")
	errNotRegistered = errors.New("no storage for thread")
	errSourceMissing = errors.New("no storage for source thread")
)

func fail(cause error) error {
	return fmt.Errorf("%w: %w", ErrFailed, cause)
}
