package peers

import (
	"sync"
	"time"

	"github.com/basaltchain/basalt/src/chain"
	"github.com/sirupsen/logrus"
)

// announceBufferSize is the capacity of the tip-announcement channel. The
// Listening state drains it; while a sync phase is active, announcements
// overflow the buffer and are dropped, which is safe because the latest chain
// metadata is also stored on the Peer itself.
const announceBufferSize = 16

// TipAnnouncement is a chain-tip-changed notification from a peer.
type TipAnnouncement struct {
	Peer     *Peer
	Metadata chain.Metadata
}

// Manager tracks the set of known peers and fans chain-tip announcements out
// to the sync state machine. It is the state machine's only window on the
// peer-to-peer layer.
type Manager struct {
	mtx    sync.RWMutex
	peers  *PeerSet
	logger *logrus.Entry

	announceCh chan TipAnnouncement
	wakeCh     chan struct{}
}

// NewManager instantiates a peer Manager with an initial PeerSet.
func NewManager(initial *PeerSet, logger *logrus.Entry) *Manager {
	if initial == nil {
		initial = NewPeerSet([]*Peer{})
	}
	return &Manager{
		peers:      initial,
		logger:     logger,
		announceCh: make(chan TipAnnouncement, announceBufferSize),
		wakeCh:     make(chan struct{}, 1),
	}
}

// KnownPeers returns a snapshot of the current peer list.
func (m *Manager) KnownPeers() []*Peer {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	res := make([]*Peer, len(m.peers.Peers))
	copy(res, m.peers.Peers)
	return res
}

// PeerByID returns the peer with the given ID, or nil.
func (m *Manager) PeerByID(id uint32) *Peer {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.peers.ByID[id]
}

// AddPeer registers a new peer and fires the wake channel, so that a Waiting
// state machine can retry immediately instead of sitting out its backoff.
func (m *Manager) AddPeer(peer *Peer) {
	m.mtx.Lock()
	m.peers = m.peers.WithNewPeer(peer)
	m.mtx.Unlock()

	m.logger.WithField("peer", peer.ShortStr()).Debug("Added peer")

	select {
	case m.wakeCh <- struct{}{}:
	default:
	}
}

// RemovePeer removes a peer from the known set.
func (m *Manager) RemovePeer(peer *Peer) {
	m.mtx.Lock()
	m.peers = m.peers.WithRemovedPeer(peer)
	m.mtx.Unlock()

	m.logger.WithField("peer", peer.ShortStr()).Debug("Removed peer")
}

// Announce records a chain-tip announcement from a peer and forwards it to the
// announcement channel. The send is non-blocking; if no one is listening the
// announcement is dropped after the peer's stored metadata has been updated.
func (m *Manager) Announce(peerID uint32, md chain.Metadata, latency time.Duration) {
	peer := m.PeerByID(peerID)
	if peer == nil {
		m.logger.WithField("peer_id", peerID).Debug("Announcement from unknown peer")
		return
	}

	peer.UpdateChainMetadata(md, latency)

	select {
	case m.announceCh <- TipAnnouncement{Peer: peer, Metadata: md}:
	default:
	}
}

// Announcements returns the channel on which tip announcements are delivered.
func (m *Manager) Announcements() <-chan TipAnnouncement {
	return m.announceCh
}

// Wake returns a channel that fires when a new peer connects.
func (m *Manager) Wake() <-chan struct{} {
	return m.wakeCh
}
