// Package peers defines the Peer type, collections of peers, and the peer
// Manager through which the sync state machine observes the network.
//
// A Peer carries two kinds of data: an immutable identity (public key, network
// address, optional moniker) and a mutable view of the peer's blockchain
// position (the chain metadata it last announced, plus connection quality
// measurements). The latter drives sync-peer selection.
//
// The Manager surfaces exactly three things to the state machine: the current
// list of known peers, a stream of chain-tip-changed announcements, and a wake
// signal that fires when a new peer connects. Connection lifecycle, dialing
// and banning live elsewhere.
package peers
