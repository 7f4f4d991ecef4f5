package node

import (
	"errors"
	"fmt"
	"time"

	"github.com/basaltchain/basalt/src/net"
	"github.com/basaltchain/basalt/src/peers"
	"github.com/basaltchain/basalt/src/store"
	"github.com/sirupsen/logrus"
)

// errStopped aborts a phase when its stop channel fires. The resulting event
// is discarded by the driver, which has already moved on.
var errStopped = errors.New("sync cancelled")

// headerSyncPhase downloads block headers batch by batch from the first
// responsive candidate, rotating to the next candidate on a peer error.
type headerSyncPhase struct {
	conf   *Config
	store  store.ChainStore
	trans  net.Transport
	id     uint32
	report func(StateInfo)
	logger *logrus.Entry
}

func (h *headerSyncPhase) run(candidates []*peers.Peer, stop <-chan struct{}) StateEvent {
	if len(candidates) == 0 {
		return event(NetworkSilence)
	}

	for _, peer := range candidates {
		ev, err := h.syncFrom(peer, candidates, stop)
		if err == errStopped {
			return event(HeaderSyncFailed)
		}
		if err != nil {
			h.logger.WithFields(logrus.Fields{
				"peer":  peer.ShortStr(),
				"error": err,
			}).Warn("Header sync peer failed, rotating")
			continue
		}
		return ev
	}

	return event(HeaderSyncFailed)
}

// syncFrom drives a full header sync against a single peer. A returned error
// is peer-level and makes the caller rotate; unrecoverable conditions come
// back as a FatalError event with a nil error.
func (h *headerSyncPhase) syncFrom(peer *peers.Peer, candidates []*peers.Peer, stop <-chan struct{}) (StateEvent, error) {
	start := time.Now()

	var mdResp net.ChainMetadataResponse
	if err := timedFetch(h.conf.FetchTimeout, stop, func() error {
		return h.trans.GetChainMetadata(peer.NetAddr, &net.ChainMetadataRequest{FromID: h.id}, &mdResp)
	}); err != nil {
		return StateEvent{}, err
	}

	peer.UpdateChainMetadata(mdResp.Metadata, time.Since(start))

	tip := h.store.HeaderTipHeight()

	for tip < mdResp.Metadata.Height {
		select {
		case <-stop:
			return StateEvent{}, errStopped
		default:
		}

		var resp net.HeadersResponse
		req := &net.HeadersRequest{
			FromID:     h.id,
			FromHeight: tip + 1,
			Count:      h.conf.HeaderBatchSize,
		}
		if err := timedFetch(h.conf.FetchTimeout, stop, func() error {
			return h.trans.FetchHeaders(peer.NetAddr, req, &resp)
		}); err != nil {
			return StateEvent{}, err
		}
		if len(resp.Headers) == 0 {
			return StateEvent{}, fmt.Errorf("peer returned no headers above %d", tip)
		}

		if err := h.store.AppendHeaders(resp.Headers); err != nil {
			if errors.Is(err, store.ErrNonContiguous) {
				return StateEvent{}, err
			}
			return fatal(err), nil
		}

		tip = h.store.HeaderTipHeight()

		h.report(StateInfo{
			Kind: HeaderSyncInfo,
			Sync: &BlockSyncInfo{
				TipHeight:   resp.TipHeight,
				LocalHeight: tip,
				Peers:       candidates,
			},
		})
	}

	h.logger.WithFields(logrus.Fields{
		"peer": peer.ShortStr(),
		"tip":  tip,
	}).Info("Headers synchronized")

	return StateEvent{Type: HeadersSynchronized, Peer: peer}, nil
}
