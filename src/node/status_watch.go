package node

import "sync"

// StatusWatch is a last-value-wins broadcast slot for StatusInfo. Writers
// overwrite the current value; readers copy it on demand or wait on the
// change channel. Readers can never block a writer: the notification send is
// non-blocking on a single-slot channel, so an observer that falls behind
// misses intermediate snapshots but always sees the most recent one.
type StatusWatch struct {
	mtx     sync.RWMutex
	current StatusInfo
	changed chan struct{}
}

// NewStatusWatch returns a StatusWatch holding the given initial value.
func NewStatusWatch(initial StatusInfo) *StatusWatch {
	return &StatusWatch{
		current: initial,
		changed: make(chan struct{}, 1),
	}
}

// Publish overwrites the current value and signals the change channel.
func (w *StatusWatch) Publish(status StatusInfo) {
	w.mtx.Lock()
	w.current = status
	w.mtx.Unlock()

	select {
	case w.changed <- struct{}{}:
	default:
	}
}

// Get returns a copy of the most recently published value.
func (w *StatusWatch) Get() StatusInfo {
	w.mtx.RLock()
	defer w.mtx.RUnlock()
	return w.current
}

// Changes returns a channel that fires when a new value has been published.
// At most one notification is buffered.
func (w *StatusWatch) Changes() <-chan struct{} {
	return w.changed
}
