// Package mining exposes resource counters from the mining subsystem. The
// node carries these counters through to its published status without
// interpreting them.
package mining

import "sync"

// ResourceStats describes the mining resources currently allocated. VMCount
// is the number of worker VMs and VMFlags carries their capability flags.
type ResourceStats struct {
	VMCount uint32 `json:"vm_count"`
	VMFlags uint64 `json:"vm_flags"`
}

// StatsProvider supplies current mining resource stats.
type StatsProvider interface {
	Stats() ResourceStats
}

// ResourceMonitor is a thread-safe StatsProvider that the mining subsystem
// updates and the node reads.
type ResourceMonitor struct {
	mtx   sync.RWMutex
	stats ResourceStats
}

// NewResourceMonitor returns an empty ResourceMonitor.
func NewResourceMonitor() *ResourceMonitor {
	return &ResourceMonitor{}
}

// Update replaces the current stats.
func (m *ResourceMonitor) Update(stats ResourceStats) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.stats = stats
}

// Stats implements the StatsProvider interface.
func (m *ResourceMonitor) Stats() ResourceStats {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.stats
}
