package node

import (
	"errors"
	"fmt"
	"time"

	"github.com/basaltchain/basalt/src/chain"
	"github.com/basaltchain/basalt/src/net"
	"github.com/basaltchain/basalt/src/peers"
	"github.com/basaltchain/basalt/src/store"
	"github.com/sirupsen/logrus"
)

// blockSyncPhase downloads full blocks up to the network tip. Each block
// fetch is raced across a small fan-out of candidates; the first success
// wins and the losing requests are abandoned to the transport deadlines.
type blockSyncPhase struct {
	conf   *Config
	store  store.ChainStore
	trans  net.Transport
	id     uint32
	report func(StateInfo)
	logger *logrus.Entry
}

func (b *blockSyncPhase) run(candidates []*peers.Peer, stop <-chan struct{}) StateEvent {
	if len(candidates) == 0 {
		return event(NetworkSilence)
	}

	tip, err := b.networkTip(candidates, stop)
	if err != nil {
		return event(BlockSyncFailed)
	}

	local, err := b.store.LocalMetadata()
	if err != nil {
		return fatal(err)
	}

	for height := local.Height + 1; height <= tip; height++ {
		select {
		case <-stop:
			return event(BlockSyncFailed)
		default:
		}

		block, err := b.fetchBlockRaced(height, candidates, stop)
		if err == errStopped {
			return event(BlockSyncFailed)
		}
		if err != nil {
			b.logger.WithFields(logrus.Fields{
				"height": height,
				"error":  err,
			}).Warn("Block fetch exhausted all candidates")
			return event(BlockSyncFailed)
		}

		if err := b.store.AppendBlock(block); err != nil {
			if errors.Is(err, store.ErrNonContiguous) {
				return event(BlockSyncFailed)
			}
			return fatal(err)
		}

		b.report(StateInfo{
			Kind: BlockSyncInfoKind,
			Sync: &BlockSyncInfo{
				TipHeight:   tip,
				LocalHeight: height,
				Peers:       candidates,
			},
		})
	}

	b.logger.WithField("tip", tip).Info("Blocks synchronized")

	return event(BlocksSynchronized)
}

// networkTip refreshes the sync target from the first responsive candidate.
func (b *blockSyncPhase) networkTip(candidates []*peers.Peer, stop <-chan struct{}) (uint64, error) {
	var lastErr error
	for _, peer := range candidates {
		start := time.Now()

		var resp net.ChainMetadataResponse
		if err := timedFetch(b.conf.FetchTimeout, stop, func() error {
			return b.trans.GetChainMetadata(peer.NetAddr, &net.ChainMetadataRequest{FromID: b.id}, &resp)
		}); err != nil {
			if err == errStopped {
				return 0, err
			}
			lastErr = err
			continue
		}

		peer.UpdateChainMetadata(resp.Metadata, time.Since(start))
		return resp.Metadata.Height, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no responsive candidates")
	}
	return 0, lastErr
}

// fetchBlockRaced requests the block at height from up to BlockFanout
// candidates concurrently and returns the first successful response. When a
// whole window fails, the race rotates to the next window of candidates
// until the list is exhausted.
func (b *blockSyncPhase) fetchBlockRaced(height uint64, candidates []*peers.Peer, stop <-chan struct{}) (*chain.Block, error) {
	fanout := b.conf.BlockFanout
	if fanout <= 0 || fanout > len(candidates) {
		fanout = len(candidates)
	}

	type result struct {
		block *chain.Block
		err   error
	}

	var lastErr error

	for from := 0; from < len(candidates); from += fanout {
		window := candidates[from:]
		if len(window) > fanout {
			window = window[:fanout]
		}

		// Buffered so abandoned fetches never block on send.
		resCh := make(chan result, len(window))

		for _, peer := range window {
			go func(peer *peers.Peer) {
				var resp net.BlockResponse
				err := timedFetch(b.conf.FetchTimeout, nil, func() error {
					return b.trans.FetchBlock(peer.NetAddr, &net.BlockRequest{FromID: b.id, Height: height}, &resp)
				})

				res := result{err: err}
				if err == nil {
					if resp.Block == nil {
						res.err = fmt.Errorf("peer %s has no block at %d", peer.ShortStr(), height)
					}
					res.block = resp.Block
				}
				resCh <- res
			}(peer)
		}

		for i := 0; i < len(window); i++ {
			select {
			case res := <-resCh:
				if res.err == nil {
					return res.block, nil
				}
				lastErr = res.err
			case <-stop:
				return nil, errStopped
			}
		}
	}

	return nil, lastErr
}
