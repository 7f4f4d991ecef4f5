package peers

import (
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/basaltchain/basalt/src/chain"
	"github.com/basaltchain/basalt/src/common"
)

// Peer is a known network participant. The identity fields are immutable once
// the Peer is created; the chain position and connection quality fields are
// updated concurrently by the peer manager as announcements arrive, and are
// guarded by a mutex.
type Peer struct {
	NetAddr   string
	PubKeyHex string
	Moniker   string

	id uint32

	mtx      sync.RWMutex
	metadata *chain.Metadata
	latency  time.Duration
	lastSeen time.Time
}

// NewPeer instantiates a new Peer from a public key and a network address.
func NewPeer(pubKeyHex, netAddr, moniker string) *Peer {
	peer := &Peer{
		PubKeyHex: pubKeyHex,
		NetAddr:   netAddr,
		Moniker:   moniker,
	}

	peer.computeID()

	return peer
}

// ID returns the peer's canonical numeric ID, a 32-bit hash of its public key.
func (p *Peer) ID() uint32 {
	if p.id == 0 {
		p.computeID()
	}
	return p.id
}

// PubKeyBytes returns the byte slice representation of the peer's public key.
func (p *Peer) PubKeyBytes() ([]byte, error) {
	return hex.DecodeString(p.PubKeyHex[2:])
}

func (p *Peer) computeID() error {
	pubKey, err := p.PubKeyBytes()

	if err != nil {
		return err
	}

	p.id = common.Hash32(pubKey)

	return nil
}

// ShortStr returns a compact display string for the peer.
func (p *Peer) ShortStr() string {
	if p.Moniker != "" {
		return p.Moniker
	}
	return fmt.Sprintf("%d@%s", p.ID(), p.NetAddr)
}

// UpdateChainMetadata records the chain metadata the peer last announced,
// along with the measured request latency.
func (p *Peer) UpdateChainMetadata(md chain.Metadata, latency time.Duration) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	cp := md
	p.metadata = &cp
	p.latency = latency
	p.lastSeen = time.Now()
}

// ChainMetadata returns the last announced chain metadata and whether any has
// been recorded yet.
func (p *Peer) ChainMetadata() (chain.Metadata, bool) {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	if p.metadata == nil {
		return chain.Metadata{}, false
	}
	return *p.metadata, true
}

// Latency returns the last measured request latency for this peer.
func (p *Peer) Latency() time.Duration {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return p.latency
}

// LastSeen returns the time of the last announcement from this peer.
func (p *Peer) LastSeen() time.Time {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return p.lastSeen
}

// ExcludePeer is used to exclude a single peer from a list of peers.
func ExcludePeer(peers []*Peer, peer uint32) (int, []*Peer) {
	index := -1
	otherPeers := make([]*Peer, 0, len(peers))
	for i, p := range peers {
		if p.ID() != peer {
			otherPeers = append(otherPeers, p)
		} else {
			index = i
		}
	}
	return index, otherPeers
}
