package node

import (
	"errors"
	"time"

	"github.com/basaltchain/basalt/src/net"
	"github.com/basaltchain/basalt/src/peers"
	"github.com/basaltchain/basalt/src/store"
	"github.com/sirupsen/logrus"
)

// horizonSyncPhase transfers the pruned horizon state (kernels, then
// outputs) from the first responsive candidate and commits the local chain
// position to the horizon height.
type horizonSyncPhase struct {
	conf   *Config
	store  store.ChainStore
	trans  net.Transport
	id     uint32
	report func(StateInfo)
	logger *logrus.Entry
}

func (h *horizonSyncPhase) run(candidates []*peers.Peer, stop <-chan struct{}) StateEvent {
	if len(candidates) == 0 {
		return event(NetworkSilence)
	}

	for _, peer := range candidates {
		ev, err := h.syncFrom(peer, candidates, stop)
		if err == errStopped {
			return event(HorizonStateSyncFailure)
		}
		if err != nil {
			h.logger.WithFields(logrus.Fields{
				"peer":  peer.ShortStr(),
				"error": err,
			}).Warn("Horizon sync peer failed, rotating")
			continue
		}
		return ev
	}

	return event(HorizonStateSyncFailure)
}

func (h *horizonSyncPhase) syncFrom(peer *peers.Peer, candidates []*peers.Peer, stop <-chan struct{}) (StateEvent, error) {
	start := time.Now()

	var mdResp net.ChainMetadataResponse
	if err := timedFetch(h.conf.FetchTimeout, stop, func() error {
		return h.trans.GetChainMetadata(peer.NetAddr, &net.ChainMetadataRequest{FromID: h.id}, &mdResp)
	}); err != nil {
		return StateEvent{}, err
	}

	peer.UpdateChainMetadata(mdResp.Metadata, time.Since(start))

	// The horizon height is the peer tip minus the pruning horizon. Headers
	// up to the peer tip were stored during header sync, so the commit below
	// can recompute the accumulated difficulty locally.
	target := mdResp.Metadata.Height
	if target > h.conf.PruningHorizon {
		target = target - h.conf.PruningHorizon
	}

	h.progress(HorizonSyncStatus{Stage: HorizonStarting}, candidates)

	if err := h.transferKernels(peer, candidates, stop); err != nil {
		return StateEvent{}, err
	}

	if err := h.transferOutputs(peer, candidates, stop); err != nil {
		return StateEvent{}, err
	}

	h.progress(HorizonSyncStatus{Stage: HorizonFinalizing}, candidates)

	if err := h.store.CommitHorizonState(target); err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return StateEvent{}, err
		}
		return fatal(err), nil
	}

	h.logger.WithFields(logrus.Fields{
		"peer":   peer.ShortStr(),
		"height": target,
	}).Info("Horizon state synchronized")

	return event(HorizonStateSynchronized), nil
}

func (h *horizonSyncPhase) transferKernels(peer *peers.Peer, candidates []*peers.Peer, stop <-chan struct{}) error {
	_, offset, err := h.store.Kernels(0, 0)
	if err != nil {
		return err
	}

	for {
		select {
		case <-stop:
			return errStopped
		default:
		}

		var resp net.KernelsResponse
		req := &net.KernelsRequest{FromID: h.id, Offset: offset, Count: h.conf.KernelBatchSize}
		if err := timedFetch(h.conf.FetchTimeout, stop, func() error {
			return h.trans.FetchKernels(peer.NetAddr, req, &resp)
		}); err != nil {
			return err
		}

		if len(resp.Kernels) > 0 {
			if err := h.store.PutKernels(resp.Kernels); err != nil {
				return err
			}
			offset += uint64(len(resp.Kernels))
		}

		h.progress(HorizonSyncStatus{Stage: HorizonKernels, Current: offset, Total: resp.Total}, candidates)

		if offset >= resp.Total || len(resp.Kernels) == 0 {
			return nil
		}
	}
}

func (h *horizonSyncPhase) transferOutputs(peer *peers.Peer, candidates []*peers.Peer, stop <-chan struct{}) error {
	_, offset, err := h.store.Outputs(0, 0)
	if err != nil {
		return err
	}

	for {
		select {
		case <-stop:
			return errStopped
		default:
		}

		var resp net.OutputsResponse
		req := &net.OutputsRequest{FromID: h.id, Offset: offset, Count: h.conf.OutputBatchSize}
		if err := timedFetch(h.conf.FetchTimeout, stop, func() error {
			return h.trans.FetchOutputs(peer.NetAddr, req, &resp)
		}); err != nil {
			return err
		}

		if len(resp.Outputs) > 0 {
			if err := h.store.PutOutputs(resp.Outputs); err != nil {
				return err
			}
			offset += uint64(len(resp.Outputs))
		}

		h.progress(HorizonSyncStatus{Stage: HorizonOutputs, Current: offset, Total: resp.Total}, candidates)

		if offset >= resp.Total || len(resp.Outputs) == 0 {
			return nil
		}
	}
}

func (h *horizonSyncPhase) progress(status HorizonSyncStatus, candidates []*peers.Peer) {
	h.report(StateInfo{
		Kind: HorizonSyncInfo,
		Horizon: &HorizonSyncProgress{
			Status: status,
			Peers:  candidates,
		},
	})
}
