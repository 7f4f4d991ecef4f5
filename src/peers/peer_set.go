package peers

import (
	"sort"
)

// PeerSet is a set of Peers forming the node's view of the network.
type PeerSet struct {
	Peers    []*Peer          `json:"peers"`
	ByPubKey map[string]*Peer `json:"-"`
	ByID     map[uint32]*Peer `json:"-"`
}

/* Constructors */

// NewPeerSet creates a new PeerSet from a list of Peers
func NewPeerSet(peers []*Peer) *PeerSet {
	peerSet := &PeerSet{
		ByPubKey: make(map[string]*Peer),
		ByID:     make(map[uint32]*Peer),
	}

	for _, peer := range peers {
		peerSet.ByPubKey[peer.PubKeyHex] = peer
		peerSet.ByID[peer.ID()] = peer
	}

	peerSet.Peers = peers

	return peerSet
}

// WithNewPeer returns a new PeerSet with a list of peers including the new
// one.
func (peerSet *PeerSet) WithNewPeer(peer *Peer) *PeerSet {
	peers := peerSet.Peers

	//don't add it if it already exists
	if _, ok := peerSet.ByID[peer.ID()]; !ok {
		peers = append(peers, peer)
	}

	return NewPeerSet(peers)
}

// WithRemovedPeer returns a new PeerSet with a list of peers excluding the
// provided one
func (peerSet *PeerSet) WithRemovedPeer(peer *Peer) *PeerSet {
	peers := []*Peer{}
	for _, p := range peerSet.Peers {
		if p.PubKeyHex != peer.PubKeyHex {
			peers = append(peers, p)
		}
	}
	return NewPeerSet(peers)
}

/* Utilities */

// Len returns the number of Peers in the PeerSet
func (peerSet *PeerSet) Len() int {
	return len(peerSet.ByPubKey)
}

// IDs returns the PeerSet's slice of IDs, sorted.
func (peerSet *PeerSet) IDs() []uint32 {
	res := []uint32{}

	for _, peer := range peerSet.Peers {
		res = append(res, peer.ID())
	}

	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })

	return res
}
