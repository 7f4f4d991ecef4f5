package node

import (
	"sort"

	"github.com/basaltchain/basalt/src/peers"
)

// SelectSyncPeers picks the sync candidates from the known peer set and
// orders them deterministically: best accumulated difficulty first, then
// lowest latency, then lowest ID. Peers that have never announced chain
// metadata are excluded. Identical inputs always produce identical output,
// which the state machine relies on for reproducible phase runs.
func SelectSyncPeers(known []*peers.Peer, max int) []*peers.Peer {
	candidates := []*peers.Peer{}
	for _, p := range known {
		if _, ok := p.ChainMetadata(); ok {
			candidates = append(candidates, p)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		mi, _ := candidates[i].ChainMetadata()
		mj, _ := candidates[j].ChainMetadata()

		if mi.AccumulatedDifficulty != mj.AccumulatedDifficulty {
			return mi.AccumulatedDifficulty > mj.AccumulatedDifficulty
		}
		if candidates[i].Latency() != candidates[j].Latency() {
			return candidates[i].Latency() < candidates[j].Latency()
		}
		return candidates[i].ID() < candidates[j].ID()
	})

	if max > 0 && len(candidates) > max {
		candidates = candidates[:max]
	}

	return candidates
}
