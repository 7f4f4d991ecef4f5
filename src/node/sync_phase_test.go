package node

import (
	"fmt"
	"testing"
	"time"

	"github.com/basaltchain/basalt/src/chain"
	"github.com/basaltchain/basalt/src/net"
	"github.com/basaltchain/basalt/src/peers"
	"github.com/basaltchain/basalt/src/store"
)

func TestHeaderSyncEmptyCandidates(t *testing.T) {
	conf := TestConfig(t)
	_, trans := net.NewInmemTransport("")
	defer trans.Close()

	phase := &headerSyncPhase{
		conf:   conf,
		store:  store.NewInmemStore(),
		trans:  trans,
		id:     1,
		report: func(StateInfo) {},
		logger: conf.Logger,
	}

	ev := phase.run([]*peers.Peer{}, make(chan struct{}))
	if ev.Type != NetworkSilence {
		t.Fatalf("empty candidates should resolve NetworkSilence, not %s", ev)
	}
}

func TestHeaderSyncRotatesOnPeerError(t *testing.T) {
	// The first candidate is unreachable; the phase rotates to the second
	// without surfacing the peer-level error.
	conf := TestConfig(t)
	pair := newSyncPair(t, conf, 0, 60)

	deadPeer := peers.NewPeer(fmt.Sprintf("0X%040d", 7), "nowhere", "dead")
	// Ranked first by difficulty.
	deadPeer.UpdateChainMetadata(chain.Metadata{Height: 100, AccumulatedDifficulty: 100000}, 0)

	localStore := store.NewInmemStore()
	phase := &headerSyncPhase{
		conf:   conf,
		store:  localStore,
		trans:  pair.machine.trans,
		id:     1,
		report: func(StateInfo) {},
		logger: conf.Logger,
	}

	candidates := SelectSyncPeers([]*peers.Peer{deadPeer, pair.remotePeer}, 0)
	if candidates[0] != deadPeer {
		t.Fatal("dead peer should rank first")
	}

	ev := phase.run(candidates, make(chan struct{}))
	if ev.Type != HeadersSynchronized {
		t.Fatalf("phase should resolve HeadersSynchronized, not %s", ev)
	}
	if ev.Peer != pair.remotePeer {
		t.Fatalf("serving peer should be the reachable one, not %s", ev.Peer.ShortStr())
	}
	if localStore.HeaderTipHeight() != 60 {
		t.Fatalf("header tip should be 60, not %d", localStore.HeaderTipHeight())
	}
}

func TestHeaderSyncReportsProgress(t *testing.T) {
	// Progress is visible mid-phase: each batch updates the live sync info
	// with a monotonically increasing local height.
	conf := TestConfig(t)
	pair := newSyncPair(t, conf, 0, 60)

	reports := []StateInfo{}
	localStore := store.NewInmemStore()
	phase := &headerSyncPhase{
		conf:  conf,
		store: localStore,
		trans: pair.machine.trans,
		id:    1,
		report: func(si StateInfo) {
			reports = append(reports, si)
		},
		logger: conf.Logger,
	}

	ev := phase.run([]*peers.Peer{pair.remotePeer}, make(chan struct{}))
	if ev.Type != HeadersSynchronized {
		t.Fatalf("phase should resolve HeadersSynchronized, not %s", ev)
	}

	// 60 headers at batch size 16 means at least 4 reports.
	if len(reports) < 4 {
		t.Fatalf("should have at least 4 progress reports, got %d", len(reports))
	}

	last := uint64(0)
	for i, si := range reports {
		if si.Kind != HeaderSyncInfo || si.Sync == nil {
			t.Fatalf("report %d is not header sync progress", i)
		}
		if si.Sync.LocalHeight <= last {
			t.Fatalf("local height should increase, got %d after %d", si.Sync.LocalHeight, last)
		}
		last = si.Sync.LocalHeight
	}
	if last != 60 {
		t.Fatalf("final reported height should be 60, not %d", last)
	}
}

func TestBlockSyncRacesFanout(t *testing.T) {
	// Two of three candidates are unreachable; the raced fetch still
	// completes from the reachable one.
	conf := TestConfig(t)
	conf.BlockFanout = 3
	pair := newSyncPair(t, conf, 20, 40)

	dead1 := peers.NewPeer(fmt.Sprintf("0X%040d", 7), "nowhere1", "dead1")
	dead1.UpdateChainMetadata(chain.Metadata{Height: 40, AccumulatedDifficulty: 400}, 0)
	dead2 := peers.NewPeer(fmt.Sprintf("0X%040d", 8), "nowhere2", "dead2")
	dead2.UpdateChainMetadata(chain.Metadata{Height: 40, AccumulatedDifficulty: 400}, 0)

	phase := &blockSyncPhase{
		conf:   conf,
		store:  pair.localStore,
		trans:  pair.machine.trans,
		id:     1,
		report: func(StateInfo) {},
		logger: conf.Logger,
	}

	candidates := []*peers.Peer{dead1, dead2, pair.remotePeer}

	ev := phase.run(candidates, make(chan struct{}))
	if ev.Type != BlocksSynchronized {
		t.Fatalf("phase should resolve BlocksSynchronized, not %s", ev)
	}

	md, err := pair.localStore.LocalMetadata()
	if err != nil {
		t.Fatal(err)
	}
	if md.Height != 40 {
		t.Fatalf("local height should be 40, not %d", md.Height)
	}
}

// stallingTransport never answers requests to stallAddr until released,
// simulating a peer that accepts connections but sits on the response.
type stallingTransport struct {
	net.Transport
	stallAddr string
	release   chan struct{}
}

func (s *stallingTransport) GetChainMetadata(target string, args *net.ChainMetadataRequest, resp *net.ChainMetadataResponse) error {
	if target == s.stallAddr {
		<-s.release
		return fmt.Errorf("stalled")
	}
	return s.Transport.GetChainMetadata(target, args, resp)
}

func TestHeaderSyncRotatesOnFetchTimeout(t *testing.T) {
	// A peer that sits on a request past the configured fetch timeout is
	// abandoned and the phase rotates to a responsive candidate.
	conf := TestConfig(t)
	conf.FetchTimeout = 20 * time.Millisecond
	pair := newSyncPair(t, conf, 0, 30)

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	trans := &stallingTransport{
		Transport: pair.machine.trans,
		stallAddr: "stalled",
		release:   release,
	}

	slowPeer := peers.NewPeer(fmt.Sprintf("0X%040d", 7), "stalled", "slow")
	// Ranked first by difficulty.
	slowPeer.UpdateChainMetadata(chain.Metadata{Height: 100, AccumulatedDifficulty: 100000}, 0)

	localStore := store.NewInmemStore()
	phase := &headerSyncPhase{
		conf:   conf,
		store:  localStore,
		trans:  trans,
		id:     1,
		report: func(StateInfo) {},
		logger: conf.Logger,
	}

	candidates := SelectSyncPeers([]*peers.Peer{slowPeer, pair.remotePeer}, 0)
	if candidates[0] != slowPeer {
		t.Fatal("stalling peer should rank first")
	}

	ev := phase.run(candidates, make(chan struct{}))
	if ev.Type != HeadersSynchronized {
		t.Fatalf("phase should resolve HeadersSynchronized, not %s", ev)
	}
	if ev.Peer != pair.remotePeer {
		t.Fatalf("serving peer should be the responsive one, not %s", ev.Peer.ShortStr())
	}
	if localStore.HeaderTipHeight() != 30 {
		t.Fatalf("header tip should be 30, not %d", localStore.HeaderTipHeight())
	}
}

func TestTimedFetch(t *testing.T) {
	// Deadline expiry surfaces the peer-level timeout error.
	blocked := make(chan struct{})
	t.Cleanup(func() { close(blocked) })

	err := timedFetch(10*time.Millisecond, nil, func() error {
		<-blocked
		return nil
	})
	if err != errFetchTimeout {
		t.Fatalf("expected errFetchTimeout, got %v", err)
	}

	// A closed stop channel cancels ahead of the deadline.
	stop := make(chan struct{})
	close(stop)
	err = timedFetch(time.Minute, stop, func() error {
		<-blocked
		return nil
	})
	if err != errStopped {
		t.Fatalf("expected errStopped, got %v", err)
	}

	// A prompt result passes through untouched.
	if err := timedFetch(time.Minute, nil, func() error { return nil }); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestBlockSyncRotatesPastFanout(t *testing.T) {
	// With a fan-out smaller than the candidate list, a fully failed window
	// rotates to the next candidates instead of giving up.
	conf := TestConfig(t)
	conf.BlockFanout = 2
	pair := newSyncPair(t, conf, 20, 40)

	dead := []*peers.Peer{}
	for i := 0; i < 3; i++ {
		p := peers.NewPeer(fmt.Sprintf("0X%040d", 7+i), fmt.Sprintf("nowhere%d", i), fmt.Sprintf("dead%d", i))
		p.UpdateChainMetadata(chain.Metadata{Height: 40, AccumulatedDifficulty: 400}, 0)
		dead = append(dead, p)
	}

	phase := &blockSyncPhase{
		conf:   conf,
		store:  pair.localStore,
		trans:  pair.machine.trans,
		id:     1,
		report: func(StateInfo) {},
		logger: conf.Logger,
	}

	// The only reachable candidate sits beyond the first window.
	candidates := append(dead, pair.remotePeer)

	ev := phase.run(candidates, make(chan struct{}))
	if ev.Type != BlocksSynchronized {
		t.Fatalf("phase should resolve BlocksSynchronized, not %s", ev)
	}

	md, err := pair.localStore.LocalMetadata()
	if err != nil {
		t.Fatal(err)
	}
	if md.Height != 40 {
		t.Fatalf("local height should be 40, not %d", md.Height)
	}
}

func TestHorizonSyncTransfersInStages(t *testing.T) {
	// The horizon phase reports Starting, Kernels, Outputs and Finalizing in
	// order before resolving.
	conf := TestConfig(t)
	conf.PruningHorizon = 10
	pair := newSyncPair(t, conf, 0, 50)

	kernels := make([]*chain.Kernel, 20)
	for i := range kernels {
		kernels[i] = &chain.Kernel{Excess: []byte(fmt.Sprintf("k%d", i))}
	}
	if err := pair.remoteStore.PutKernels(kernels); err != nil {
		t.Fatal(err)
	}
	outputs := make([]*chain.Output, 20)
	for i := range outputs {
		outputs[i] = &chain.Output{Commitment: []byte(fmt.Sprintf("o%d", i))}
	}
	if err := pair.remoteStore.PutOutputs(outputs); err != nil {
		t.Fatal(err)
	}

	// Headers must be in place before a horizon transfer.
	headerPhase := &headerSyncPhase{
		conf:   conf,
		store:  pair.localStore,
		trans:  pair.machine.trans,
		id:     1,
		report: func(StateInfo) {},
		logger: conf.Logger,
	}
	if ev := headerPhase.run([]*peers.Peer{pair.remotePeer}, make(chan struct{})); ev.Type != HeadersSynchronized {
		t.Fatalf("header sync should succeed first, got %s", ev)
	}

	stages := []HorizonSyncStage{}
	phase := &horizonSyncPhase{
		conf:  conf,
		store: pair.localStore,
		trans: pair.machine.trans,
		id:    1,
		report: func(si StateInfo) {
			if si.Horizon == nil {
				t.Errorf("horizon report without payload")
				return
			}
			stage := si.Horizon.Status.Stage
			if len(stages) == 0 || stages[len(stages)-1] != stage {
				stages = append(stages, stage)
			}
		},
		logger: conf.Logger,
	}

	ev := phase.run([]*peers.Peer{pair.remotePeer}, make(chan struct{}))
	if ev.Type != HorizonStateSynchronized {
		t.Fatalf("phase should resolve HorizonStateSynchronized, not %s", ev)
	}

	expected := []HorizonSyncStage{HorizonStarting, HorizonKernels, HorizonOutputs, HorizonFinalizing}
	if len(stages) != len(expected) {
		t.Fatalf("stages should be %v, not %v", expected, stages)
	}
	for i := range expected {
		if stages[i] != expected[i] {
			t.Fatalf("stage %d should be %s, not %s", i, expected[i], stages[i])
		}
	}

	md, err := pair.localStore.LocalMetadata()
	if err != nil {
		t.Fatal(err)
	}
	if md.Height != 40 {
		t.Fatalf("horizon commit should land at height 40, not %d", md.Height)
	}

	// One more fetch window exercises the cancelled path.
	stop := make(chan struct{})
	close(stop)
	if ev := phase.run([]*peers.Peer{pair.remotePeer}, stop); ev.Type != HorizonStateSyncFailure {
		t.Fatalf("cancelled phase should resolve its failure event, not %s", ev)
	}
}
