package node

import (
	"fmt"

	"github.com/basaltchain/basalt/src/chain"
	"github.com/basaltchain/basalt/src/peers"
)

// SyncState classifies the local chain position relative to the network.
type SyncState uint32

const (
	// UpToDate means the local chain is at least as good as the best peer's.
	UpToDate SyncState = iota
	// Lagging means the local chain is behind the best peer's tip but within
	// the pruning horizon, so full blocks can be retrieved directly.
	Lagging
	// LaggingBehindHorizon means the local chain is behind the best peer's
	// pruning horizon; the horizon state must be transferred before block
	// sync is possible.
	LaggingBehindHorizon
)

// String ...
func (s SyncState) String() string {
	switch s {
	case UpToDate:
		return "UpToDate"
	case Lagging:
		return "Lagging"
	case LaggingBehindHorizon:
		return "LaggingBehindHorizon"
	default:
		return "Unknown"
	}
}

// SyncStatus is the result of comparing the local chain metadata to a set of
// peer chain metadata snapshots. For Lagging and LaggingBehindHorizon,
// Metadata is the best peer's chain position and Peers is the agreeing set of
// sync candidates, best-ranked first.
type SyncStatus struct {
	State    SyncState
	Metadata chain.Metadata
	Peers    []*peers.Peer
}

// String ...
func (s SyncStatus) String() string {
	if s.State == UpToDate {
		return "UpToDate"
	}
	return fmt.Sprintf("%s(%s, %d peers)", s.State, s.Metadata, len(s.Peers))
}

// Evaluate classifies the local chain position against a list of sync
// candidates. It is a pure function; candidates are expected to be ordered by
// SelectSyncPeers, and only candidates with known chain metadata are
// considered. An empty candidate list is no evidence of being behind and
// yields UpToDate.
func Evaluate(local chain.Metadata, candidates []*peers.Peer, horizonDepth uint64) SyncStatus {
	if len(candidates) == 0 {
		return SyncStatus{State: UpToDate}
	}

	best, ok := candidates[0].ChainMetadata()
	if !ok {
		return SyncStatus{State: UpToDate}
	}

	if !best.Ahead(local) {
		return SyncStatus{State: UpToDate}
	}

	// All candidates reporting the best accumulated difficulty form the sync
	// peer set.
	agreeing := []*peers.Peer{}
	for _, p := range candidates {
		md, ok := p.ChainMetadata()
		if ok && md.AccumulatedDifficulty == best.AccumulatedDifficulty {
			agreeing = append(agreeing, p)
		}
	}

	state := Lagging
	if best.Height > local.Height && best.Height-local.Height > horizonDepth {
		state = LaggingBehindHorizon
	}

	return SyncStatus{
		State:    state,
		Metadata: best,
		Peers:    agreeing,
	}
}
