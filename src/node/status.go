package node

import (
	"fmt"

	"github.com/basaltchain/basalt/src/mining"
	"github.com/basaltchain/basalt/src/peers"
)

// StateInfoKind identifies the phase a StateInfo describes.
type StateInfoKind uint32

const (
	// StartUp covers the Starting state.
	StartUp StateInfoKind = iota
	// HeaderSyncInfo covers the HeaderSync state.
	HeaderSyncInfo
	// HorizonSyncInfo covers the HorizonStateSync state.
	HorizonSyncInfo
	// BlockSyncStarting covers BlockSync before the first batch arrives.
	BlockSyncStarting
	// BlockSyncInfoKind covers BlockSync once progress is known.
	BlockSyncInfoKind
	// ListeningInfoKind covers the Listening and Waiting states.
	ListeningInfoKind
)

// BlockSyncInfo is the live progress of a header or block sync: the sync
// target height, the local height, and the peers being synced from.
type BlockSyncInfo struct {
	TipHeight   uint64
	LocalHeight uint64
	Peers       []*peers.Peer
}

// String ...
func (b BlockSyncInfo) String() string {
	return fmt.Sprintf("Syncing %d/%d from %d peer(s)", b.LocalHeight, b.TipHeight, len(b.Peers))
}

// HorizonSyncStage identifies the step a horizon state transfer is on.
type HorizonSyncStage uint32

const (
	// HorizonStarting is the stage before the first kernel batch.
	HorizonStarting HorizonSyncStage = iota
	// HorizonKernels is the kernel transfer stage.
	HorizonKernels
	// HorizonOutputs is the output transfer stage.
	HorizonOutputs
	// HorizonFinalizing is the final commit stage.
	HorizonFinalizing
)

// String ...
func (s HorizonSyncStage) String() string {
	switch s {
	case HorizonStarting:
		return "Starting"
	case HorizonKernels:
		return "Kernels"
	case HorizonOutputs:
		return "Outputs"
	case HorizonFinalizing:
		return "Finalizing"
	default:
		return "Unknown"
	}
}

// HorizonSyncStatus is the live progress of a horizon state transfer. Current
// and Total count the items of the active stage; they are zero for the
// Starting and Finalizing stages.
type HorizonSyncStatus struct {
	Stage   HorizonSyncStage
	Current uint64
	Total   uint64
}

// String ...
func (h HorizonSyncStatus) String() string {
	switch h.Stage {
	case HorizonKernels, HorizonOutputs:
		return fmt.Sprintf("%s %d/%d", h.Stage, h.Current, h.Total)
	default:
		return h.Stage.String()
	}
}

// HorizonSyncProgress pairs the transfer status with the peers serving it.
type HorizonSyncProgress struct {
	Status HorizonSyncStatus
	Peers  []*peers.Peer
}

// StateInfo is the per-phase progress payload published with every status
// snapshot. Only the payload matching Kind is meaningful. A HeaderSync
// StateInfo may carry a nil Sync before the first batch arrives.
type StateInfo struct {
	Kind    StateInfoKind
	Sync    *BlockSyncInfo
	Horizon *HorizonSyncProgress
}

// ShortDesc returns a compact operator-facing description of the phase.
func (s StateInfo) ShortDesc() string {
	switch s.Kind {
	case StartUp:
		return "Starting up"
	case HeaderSyncInfo:
		if s.Sync != nil {
			return fmt.Sprintf("Header sync: %s", *s.Sync)
		}
		return "Header sync"
	case HorizonSyncInfo:
		if s.Horizon != nil {
			return fmt.Sprintf("Horizon sync: %s", s.Horizon.Status)
		}
		return "Horizon sync"
	case BlockSyncStarting:
		return "Block sync starting"
	case BlockSyncInfoKind:
		if s.Sync != nil {
			return fmt.Sprintf("Block sync: %s", *s.Sync)
		}
		return "Block sync"
	case ListeningInfoKind:
		return "Listening"
	default:
		return "Unknown"
	}
}

// StatusInfo is the externally observable snapshot of the state machine. It
// is an immutable value, replaced wholesale on every transition. Bootstrapped
// flips to true the first time the machine reaches Listening and stays true.
// The mining stats are supplied by the mining collaborator and carried
// through without interpretation.
type StatusInfo struct {
	Bootstrapped bool
	State        State
	StateInfo    StateInfo
	Mining       mining.ResourceStats
}

// String ...
func (s StatusInfo) String() string {
	return fmt.Sprintf("[%s] %s", s.State, s.StateInfo.ShortDesc())
}
