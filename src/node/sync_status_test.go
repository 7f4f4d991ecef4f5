package node

import (
	"fmt"
	"testing"
	"time"

	"github.com/basaltchain/basalt/src/chain"
	"github.com/basaltchain/basalt/src/peers"
)

func syncPeer(t *testing.T, i int, height uint64, difficulty chain.Difficulty, latency time.Duration) *peers.Peer {
	peer := peers.NewPeer(
		fmt.Sprintf("0X%040d", i),
		fmt.Sprintf("addr%d", i),
		fmt.Sprintf("peer%d", i),
	)
	peer.UpdateChainMetadata(chain.Metadata{
		Height:                height,
		AccumulatedDifficulty: difficulty,
	}, latency)
	return peer
}

func TestEvaluateEmptyCandidates(t *testing.T) {
	local := chain.Metadata{Height: 100, AccumulatedDifficulty: 1000}

	status := Evaluate(local, []*peers.Peer{}, 1000)
	if status.State != UpToDate {
		t.Fatalf("State should be UpToDate, not %s", status.State)
	}
}

func TestEvaluateUpToDate(t *testing.T) {
	// Scenario: same height, same difficulty.
	local := chain.Metadata{Height: 100, AccumulatedDifficulty: 1000}
	candidates := []*peers.Peer{
		syncPeer(t, 1, 100, 1000, 0),
	}

	status := Evaluate(local, candidates, 1000)
	if status.State != UpToDate {
		t.Fatalf("State should be UpToDate, not %s", status.State)
	}
}

func TestEvaluateLagging(t *testing.T) {
	// Scenario: 50 blocks behind, horizon threshold 1000.
	local := chain.Metadata{Height: 100, AccumulatedDifficulty: 1000}
	candidates := []*peers.Peer{
		syncPeer(t, 1, 150, 1500, 0),
	}

	status := Evaluate(local, candidates, 1000)
	if status.State != Lagging {
		t.Fatalf("State should be Lagging, not %s", status.State)
	}
	if status.Metadata.Height != 150 {
		t.Fatalf("Best height should be 150, not %d", status.Metadata.Height)
	}
	if len(status.Peers) != 1 {
		t.Fatalf("Sync peer set should have 1 peer, not %d", len(status.Peers))
	}
}

func TestEvaluateLaggingBehindHorizon(t *testing.T) {
	// Scenario: 4900 blocks behind, horizon threshold 1000.
	local := chain.Metadata{Height: 100, AccumulatedDifficulty: 1000}
	candidates := []*peers.Peer{
		syncPeer(t, 1, 5000, 50000, 0),
	}

	status := Evaluate(local, candidates, 1000)
	if status.State != LaggingBehindHorizon {
		t.Fatalf("State should be LaggingBehindHorizon, not %s", status.State)
	}
}

func TestEvaluateLocalSuperior(t *testing.T) {
	local := chain.Metadata{Height: 200, AccumulatedDifficulty: 2000}
	candidates := []*peers.Peer{
		syncPeer(t, 1, 150, 1500, 0),
	}

	status := Evaluate(local, candidates, 1000)
	if status.State != UpToDate {
		t.Fatalf("State should be UpToDate, not %s", status.State)
	}
}

func TestEvaluateAgreeingSet(t *testing.T) {
	// Two peers report the best difficulty, a third lags behind them. Only
	// the agreeing pair forms the sync peer set.
	local := chain.Metadata{Height: 100, AccumulatedDifficulty: 1000}
	candidates := SelectSyncPeers([]*peers.Peer{
		syncPeer(t, 1, 150, 1500, 10*time.Millisecond),
		syncPeer(t, 2, 150, 1500, 5*time.Millisecond),
		syncPeer(t, 3, 120, 1200, time.Millisecond),
	}, 0)

	status := Evaluate(local, candidates, 1000)
	if status.State != Lagging {
		t.Fatalf("State should be Lagging, not %s", status.State)
	}
	if len(status.Peers) != 2 {
		t.Fatalf("Sync peer set should have 2 peers, not %d", len(status.Peers))
	}
	// Lowest latency among the agreeing set ranks first.
	if status.Peers[0].Moniker != "peer2" {
		t.Fatalf("Best ranked peer should be peer2, not %s", status.Peers[0].Moniker)
	}
}

func TestEvaluateMonotonic(t *testing.T) {
	// Increasing the candidate's height deficit must flip the classification
	// from Lagging to LaggingBehindHorizon exactly once, and never back.
	local := chain.Metadata{Height: 100, AccumulatedDifficulty: 1000}
	horizon := uint64(50)

	crossed := false
	for peerHeight := uint64(101); peerHeight <= 300; peerHeight += 10 {
		candidates := []*peers.Peer{
			syncPeer(t, 1, peerHeight, chain.Difficulty(peerHeight*10), 0),
		}

		status := Evaluate(local, candidates, horizon)
		switch status.State {
		case Lagging:
			if crossed {
				t.Fatalf("classification flipped back to Lagging at height %d", peerHeight)
			}
		case LaggingBehindHorizon:
			crossed = true
		default:
			t.Fatalf("State should not be %s at height %d", status.State, peerHeight)
		}
	}

	if !crossed {
		t.Fatal("classification never crossed the horizon threshold")
	}
}

func TestSelectSyncPeersOrdering(t *testing.T) {
	p1 := syncPeer(t, 1, 150, 1500, 20*time.Millisecond)
	p2 := syncPeer(t, 2, 150, 1500, 5*time.Millisecond)
	p3 := syncPeer(t, 3, 200, 2000, 50*time.Millisecond)
	noMeta := peers.NewPeer(fmt.Sprintf("0X%040d", 4), "addr4", "peer4")

	known := []*peers.Peer{p1, p2, p3, noMeta}

	selected := SelectSyncPeers(known, 0)
	if len(selected) != 3 {
		t.Fatalf("should select 3 peers, not %d", len(selected))
	}

	// Best difficulty first, then lowest latency.
	expected := []string{"peer3", "peer2", "peer1"}
	for i, m := range expected {
		if selected[i].Moniker != m {
			t.Fatalf("rank %d should be %s, not %s", i, m, selected[i].Moniker)
		}
	}

	// Identical inputs produce identical output.
	again := SelectSyncPeers(known, 0)
	for i := range selected {
		if selected[i] != again[i] {
			t.Fatalf("selection is not reproducible at rank %d", i)
		}
	}

	// The cap applies after ordering.
	capped := SelectSyncPeers(known, 2)
	if len(capped) != 2 || capped[0].Moniker != "peer3" {
		t.Fatalf("capped selection should keep the best ranked peers")
	}
}
