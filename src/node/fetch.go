package node

import (
	"errors"
	"time"
)

// errFetchTimeout is peer-level: the peer missed the configured deadline and
// the caller rotates to the next candidate.
var errFetchTimeout = errors.New("fetch timed out")

// timedFetch bounds a blocking transport call with the configured fetch
// timeout and the phase's stop channel. A call that misses the deadline is
// abandoned; its goroutine unblocks when the transport's own deadline fires.
// A nil stop channel disables cancellation, a non-positive timeout disables
// the deadline.
func timedFetch(timeout time.Duration, stop <-chan struct{}, fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case err := <-errCh:
		return err
	case <-deadline:
		return errFetchTimeout
	case <-stop:
		return errStopped
	}
}
