package node

import (
	"fmt"
	"sync"

	"github.com/basaltchain/basalt/src/chain"
	"github.com/basaltchain/basalt/src/mining"
	"github.com/basaltchain/basalt/src/net"
	"github.com/basaltchain/basalt/src/peers"
	"github.com/basaltchain/basalt/src/store"
	"github.com/sirupsen/logrus"
)

// Node couples the sync state machine with the serving side of the protocol:
// it answers chain data requests from other nodes out of the local store and
// feeds inbound tip announcements to the peer manager. Serving stays
// responsive regardless of what phase the state machine is in.
type Node struct {
	conf   *Config
	logger *logrus.Entry

	id      uint32
	trans   net.Transport
	store   store.ChainStore
	peerMgr *peers.Manager

	sm *StateMachine

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// NewNode instantiates a Node. The id is the node's own peer ID, used in the
// FromID field of outbound requests and responses.
func NewNode(conf *Config,
	id uint32,
	peerMgr *peers.Manager,
	chainStore store.ChainStore,
	trans net.Transport,
	stats mining.StatsProvider) *Node {

	return &Node{
		conf:       conf,
		logger:     conf.Logger.WithField("this_id", id),
		id:         id,
		trans:      trans,
		store:      chainStore,
		peerMgr:    peerMgr,
		sm:         NewStateMachine(conf, chainStore, trans, peerMgr, stats, id),
		shutdownCh: make(chan struct{}),
	}
}

// Run starts the transport listener and the request server, then blocks in
// the state machine loop until Shutdown.
func (n *Node) Run() {
	go n.trans.Listen()
	go n.serveRequests()

	n.sm.Run()
}

// RunAsync runs the node in a goroutine.
func (n *Node) RunAsync() {
	go n.Run()
}

// Shutdown stops the state machine and releases the transport and store.
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() {
		n.logger.Info("Shutdown")

		close(n.shutdownCh)
		n.sm.Shutdown()
		n.trans.Close()
		n.store.Close()
	})
}

// ID returns the node's peer ID.
func (n *Node) ID() uint32 {
	return n.id
}

// GetStatus returns the most recently published status snapshot.
func (n *Node) GetStatus() StatusInfo {
	return n.sm.Status()
}

// StatusWatch returns the status watch for external observers.
func (n *Node) StatusWatch() *StatusWatch {
	return n.sm.Watch()
}

// Inject delivers an external event to the state machine.
func (n *Node) Inject(ev StateEvent) {
	n.sm.Inject(ev)
}

// PeerManager returns the node's peer manager.
func (n *Node) PeerManager() *peers.Manager {
	return n.peerMgr
}

// LocalMetadata returns the local chain position.
func (n *Node) LocalMetadata() (chain.Metadata, error) {
	return n.store.LocalMetadata()
}

// BlockAt returns the locally stored block at the given height.
func (n *Node) BlockAt(height uint64) (*chain.Block, error) {
	return n.store.BlockAt(height)
}

// AnnounceTip broadcasts the local chain metadata to all known peers. Peers
// that cannot be reached are skipped.
func (n *Node) AnnounceTip() {
	md, err := n.store.LocalMetadata()
	if err != nil {
		n.logger.WithField("error", err).Error("Cannot read local metadata")
		return
	}

	for _, peer := range n.peerMgr.KnownPeers() {
		var resp net.AnnounceResponse
		req := &net.AnnounceRequest{FromID: n.id, Metadata: md}
		if err := n.trans.Announce(peer.NetAddr, req, &resp); err != nil {
			n.logger.WithFields(logrus.Fields{
				"peer":  peer.ShortStr(),
				"error": err,
			}).Debug("Announce failed")
		}
	}
}

// serveRequests drains the transport consumer until shutdown.
func (n *Node) serveRequests() {
	for {
		select {
		case rpc := <-n.trans.Consumer():
			n.logger.WithField("command", fmt.Sprintf("%T", rpc.Command)).Debug("Processing RPC")
			n.processRPC(rpc)
		case <-n.shutdownCh:
			return
		}
	}
}

func (n *Node) processRPC(rpc net.RPC) {
	switch cmd := rpc.Command.(type) {
	case *net.ChainMetadataRequest:
		n.processChainMetadataRequest(rpc, cmd)
	case *net.HeadersRequest:
		n.processHeadersRequest(rpc, cmd)
	case *net.KernelsRequest:
		n.processKernelsRequest(rpc, cmd)
	case *net.OutputsRequest:
		n.processOutputsRequest(rpc, cmd)
	case *net.BlockRequest:
		n.processBlockRequest(rpc, cmd)
	case *net.AnnounceRequest:
		n.processAnnounceRequest(rpc, cmd)
	default:
		n.logger.WithField("command", fmt.Sprintf("%T", rpc.Command)).Error("Unexpected RPC command")
		rpc.Respond(nil, fmt.Errorf("unexpected command"))
	}
}

func (n *Node) processChainMetadataRequest(rpc net.RPC, cmd *net.ChainMetadataRequest) {
	md, err := n.store.LocalMetadata()
	resp := &net.ChainMetadataResponse{
		FromID:   n.id,
		Metadata: md,
	}
	rpc.Respond(resp, err)
}

func (n *Node) processHeadersRequest(rpc net.RPC, cmd *net.HeadersRequest) {
	headers, err := n.store.Headers(cmd.FromHeight, cmd.Count)
	resp := &net.HeadersResponse{
		FromID:    n.id,
		Headers:   headers,
		TipHeight: n.store.HeaderTipHeight(),
	}
	rpc.Respond(resp, err)
}

func (n *Node) processKernelsRequest(rpc net.RPC, cmd *net.KernelsRequest) {
	kernels, total, err := n.store.Kernels(cmd.Offset, cmd.Count)
	resp := &net.KernelsResponse{
		FromID:  n.id,
		Kernels: kernels,
		Total:   total,
	}
	rpc.Respond(resp, err)
}

func (n *Node) processOutputsRequest(rpc net.RPC, cmd *net.OutputsRequest) {
	outputs, total, err := n.store.Outputs(cmd.Offset, cmd.Count)
	resp := &net.OutputsResponse{
		FromID:  n.id,
		Outputs: outputs,
		Total:   total,
	}
	rpc.Respond(resp, err)
}

func (n *Node) processBlockRequest(rpc net.RPC, cmd *net.BlockRequest) {
	block, err := n.store.BlockAt(cmd.Height)
	resp := &net.BlockResponse{
		FromID: n.id,
		Block:  block,
	}
	rpc.Respond(resp, err)
}

func (n *Node) processAnnounceRequest(rpc net.RPC, cmd *net.AnnounceRequest) {
	n.peerMgr.Announce(cmd.FromID, cmd.Metadata, 0)
	rpc.Respond(&net.AnnounceResponse{FromID: n.id}, nil)
}
