package node

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/basaltchain/basalt/src/mining"
	"github.com/basaltchain/basalt/src/net"
	"github.com/basaltchain/basalt/src/peers"
	"github.com/basaltchain/basalt/src/store"
	"github.com/sirupsen/logrus"
)

// StateMachine drives the node synchronization loop. It owns the current
// State, runs one phase at a time, applies the transition table on the
// phase's terminal event, and publishes a StatusInfo snapshot after every
// transition. It loops until it reaches Shutdown.
type StateMachine struct {
	conf    *Config
	store   store.ChainStore
	trans   net.Transport
	peerMgr *peers.Manager
	stats   mining.StatsProvider
	id      uint32

	state uint32

	infoMtx      sync.Mutex
	stateInfo    StateInfo
	bootstrapped bool

	watch *StatusWatch

	injectCh     chan StateEvent
	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	logger *logrus.Entry
}

// NewStateMachine instantiates a state machine in the Starting state. A nil
// stats provider defaults to an empty ResourceMonitor.
func NewStateMachine(conf *Config,
	chainStore store.ChainStore,
	trans net.Transport,
	peerMgr *peers.Manager,
	stats mining.StatsProvider,
	id uint32) *StateMachine {

	if stats == nil {
		stats = mining.NewResourceMonitor()
	}

	m := &StateMachine{
		conf:       conf,
		store:      chainStore,
		trans:      trans,
		peerMgr:    peerMgr,
		stats:      stats,
		id:         id,
		stateInfo:  StateInfo{Kind: StartUp},
		injectCh:   make(chan StateEvent, 1),
		shutdownCh: make(chan struct{}),
		logger:     conf.Logger,
	}

	m.watch = NewStatusWatch(StatusInfo{
		State:     Starting,
		StateInfo: m.stateInfo,
		Mining:    stats.Stats(),
	})

	return m
}

func (m *StateMachine) getState() State {
	return State(atomic.LoadUint32(&m.state))
}

func (m *StateMachine) setState(s State) {
	atomic.StoreUint32(&m.state, uint32(s))
}

// Run is the driver loop. It blocks until the machine reaches Shutdown.
func (m *StateMachine) Run() {
	m.logger.Debug("Starting state machine")

	for m.getState() != Shutdown {
		ev := m.awaitEvent()
		m.apply(ev)
	}

	m.logger.Debug("State machine stopped")
}

// Inject delivers an external event to the machine, interrupting the active
// phase. The send is non-blocking; a second injection before the first is
// consumed is dropped.
func (m *StateMachine) Inject(ev StateEvent) {
	select {
	case m.injectCh <- ev:
	default:
		m.logger.WithField("event", ev.String()).Debug("Dropped injected event")
	}
}

// Shutdown fires the external shutdown signal. The machine observes it at
// its next suspension point and treats it as UserQuit.
func (m *StateMachine) Shutdown() {
	m.shutdownOnce.Do(func() {
		close(m.shutdownCh)
	})
}

// Status returns the most recently published snapshot.
func (m *StateMachine) Status() StatusInfo {
	return m.watch.Get()
}

// Watch returns the status watch for external observers.
func (m *StateMachine) Watch() *StatusWatch {
	return m.watch
}

// awaitEvent runs the phase for the current state and waits for its terminal
// event, an injected event, or the shutdown signal. Interrupting a phase
// closes its stop channel; the phase's own result goes to a buffered channel
// and is discarded.
func (m *StateMachine) awaitEvent() StateEvent {
	stop := make(chan struct{})
	phaseCh := make(chan StateEvent, 1)

	go func() {
		phaseCh <- m.runPhase(stop)
	}()

	select {
	case ev := <-phaseCh:
		return ev
	case ev := <-m.injectCh:
		close(stop)
		return ev
	case <-m.shutdownCh:
		close(stop)
		return event(UserQuit)
	}
}

func (m *StateMachine) runPhase(stop <-chan struct{}) StateEvent {
	switch m.getState() {
	case Starting:
		return m.startup()
	case HeaderSync:
		phase := &headerSyncPhase{
			conf:   m.conf,
			store:  m.store,
			trans:  m.trans,
			id:     m.id,
			report: m.reportProgress,
			logger: m.logger,
		}
		return phase.run(m.selectPeers(), stop)
	case HorizonStateSync:
		phase := &horizonSyncPhase{
			conf:   m.conf,
			store:  m.store,
			trans:  m.trans,
			id:     m.id,
			report: m.reportProgress,
			logger: m.logger,
		}
		return phase.run(m.selectPeers(), stop)
	case BlockSync:
		phase := &blockSyncPhase{
			conf:   m.conf,
			store:  m.store,
			trans:  m.trans,
			id:     m.id,
			report: m.reportProgress,
			logger: m.logger,
		}
		return phase.run(m.selectPeers(), stop)
	case Listening:
		return m.listen(stop)
	case Waiting:
		return m.wait(stop)
	default:
		return event(UserQuit)
	}
}

func (m *StateMachine) selectPeers() []*peers.Peer {
	return SelectSyncPeers(m.peerMgr.KnownPeers(), m.conf.MaxSyncPeers)
}

// startup verifies that the store is readable and reports whether this is a
// fresh database.
func (m *StateMachine) startup() StateEvent {
	md, err := m.store.LocalMetadata()
	if err != nil {
		return fatal(err)
	}

	m.logger.WithField("local", md.String()).Info("Chain store opened")

	if m.store.NeedBootstrap() {
		return event(InitialSync)
	}
	return event(Initialized)
}

// listen reacts to tip announcements from the peer layer, re-evaluating the
// local position on each one. It never polls.
func (m *StateMachine) listen(stop <-chan struct{}) StateEvent {
	silence := time.NewTimer(m.conf.SilenceTimeout)
	defer silence.Stop()

	for {
		select {
		case ann := <-m.peerMgr.Announcements():
			local, err := m.store.LocalMetadata()
			if err != nil {
				return fatal(err)
			}

			status := Evaluate(local, m.selectPeers(), m.conf.PruningHorizon)
			if status.State != UpToDate {
				m.logger.WithFields(logrus.Fields{
					"peer":   ann.Peer.ShortStr(),
					"status": status.String(),
				}).Info("Fallen behind")
				return StateEvent{Type: FallenBehind, Status: status}
			}

		case <-silence.C:
			if len(m.peerMgr.KnownPeers()) == 0 {
				return event(NetworkSilence)
			}
			silence.Reset(m.conf.SilenceTimeout)

		case <-stop:
			return event(NetworkSilence)
		}
	}
}

// wait holds for the configured backoff, or until a new peer connects.
func (m *StateMachine) wait(stop <-chan struct{}) StateEvent {
	backoff := time.NewTimer(m.conf.WaitingBackoff)
	defer backoff.Stop()

	select {
	case <-backoff.C:
	case <-m.peerMgr.Wake():
	case <-stop:
	}
	return event(Continue)
}

// apply advances the machine by one transition and publishes the resulting
// snapshot.
func (m *StateMachine) apply(ev StateEvent) {
	cur := m.getState()
	next := m.transition(cur, ev)

	if next != cur {
		m.logger.WithFields(logrus.Fields{
			"from":  cur.String(),
			"event": ev.String(),
			"to":    next.String(),
		}).Info("State transition")
	}

	m.setState(next)

	m.infoMtx.Lock()
	m.stateInfo = defaultStateInfo(next, m.stateInfo)
	if next == Listening {
		m.bootstrapped = true
	}
	m.infoMtx.Unlock()

	m.publish()
}

// transition is the total transition function. FatalError and UserQuit
// short-circuit from any state; an event a state has no rule for leaves the
// machine where it is.
func (m *StateMachine) transition(cur State, ev StateEvent) State {
	switch ev.Type {
	case FatalError:
		m.logger.WithField("error", ev.Err).Error("Fatal error, shutting down")
		return Shutdown
	case UserQuit:
		return Shutdown
	}

	switch cur {
	case Starting:
		switch ev.Type {
		case Initialized, InitialSync:
			return HeaderSync
		}

	case HeaderSync:
		switch ev.Type {
		case HeadersSynchronized:
			return m.afterHeaderSync()
		case HeaderSyncFailed, NetworkSilence:
			return Waiting
		}

	case HorizonStateSync:
		switch ev.Type {
		case HorizonStateSynchronized:
			return BlockSync
		case HorizonStateSyncFailure, NetworkSilence:
			return Waiting
		}

	case BlockSync:
		switch ev.Type {
		case BlocksSynchronized:
			return Listening
		case BlockSyncFailed, NetworkSilence:
			return Waiting
		}

	case Listening:
		switch ev.Type {
		case FallenBehind:
			return HeaderSync
		case NetworkSilence:
			return Waiting
		}

	case Waiting:
		switch ev.Type {
		case Continue:
			return Listening
		}
	}

	m.logger.WithFields(logrus.Fields{
		"state": cur.String(),
		"event": ev.String(),
	}).Warn("Unexpected event for state, ignoring")

	return cur
}

// afterHeaderSync classifies the local position now that headers are in, and
// picks the next sync phase accordingly.
func (m *StateMachine) afterHeaderSync() State {
	local, err := m.store.LocalMetadata()
	if err != nil {
		m.logger.WithField("error", err).Error("Fatal error, shutting down")
		return Shutdown
	}

	status := Evaluate(local, m.selectPeers(), m.conf.PruningHorizon)

	m.logger.WithField("status", status.String()).Info("Sync status evaluated")

	switch status.State {
	case Lagging:
		return BlockSync
	case LaggingBehindHorizon:
		return HorizonStateSync
	default:
		return Listening
	}
}

// reportProgress is handed to phases so mid-phase progress is visible in the
// published status, not only at phase boundaries. An abandoned phase may
// still complete an in-flight fetch after shutdown; its report is dropped so
// nothing lands after the final Shutdown snapshot.
func (m *StateMachine) reportProgress(si StateInfo) {
	m.infoMtx.Lock()
	defer m.infoMtx.Unlock()

	if m.getState() == Shutdown {
		return
	}

	m.stateInfo = si
	m.publishLocked()
}

func (m *StateMachine) publish() {
	m.infoMtx.Lock()
	defer m.infoMtx.Unlock()

	m.publishLocked()
}

// publishLocked requires infoMtx so snapshots reach the watch in the order
// they were taken.
func (m *StateMachine) publishLocked() {
	m.watch.Publish(StatusInfo{
		Bootstrapped: m.bootstrapped,
		State:        m.getState(),
		StateInfo:    m.stateInfo,
		Mining:       m.stats.Stats(),
	})
}

// defaultStateInfo is the StateInfo a state starts with, before its phase
// reports any progress. Shutdown keeps the last published payload.
func defaultStateInfo(s State, prev StateInfo) StateInfo {
	switch s {
	case Starting:
		return StateInfo{Kind: StartUp}
	case HeaderSync:
		return StateInfo{Kind: HeaderSyncInfo}
	case HorizonStateSync:
		return StateInfo{
			Kind:    HorizonSyncInfo,
			Horizon: &HorizonSyncProgress{Status: HorizonSyncStatus{Stage: HorizonStarting}},
		}
	case BlockSync:
		return StateInfo{Kind: BlockSyncStarting}
	case Listening, Waiting:
		return StateInfo{Kind: ListeningInfoKind}
	default:
		return prev
	}
}
