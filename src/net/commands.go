package net

import (
	"github.com/basaltchain/basalt/src/chain"
)

// ChainMetadataRequest asks a peer for its current chain position.
type ChainMetadataRequest struct {
	FromID uint32
}

// ChainMetadataResponse carries the responder's chain metadata.
type ChainMetadataResponse struct {
	FromID   uint32
	Metadata chain.Metadata
}

// HeadersRequest asks for a batch of block headers starting at FromHeight.
// Count is the maximum number of headers to include in the response.
type HeadersRequest struct {
	FromID     uint32
	FromHeight uint64
	Count      int
}

// HeadersResponse returns a contiguous batch of headers and the responder's
// current header tip, so the requester can size its sync progress.
type HeadersResponse struct {
	FromID    uint32
	Headers   []*chain.Header
	TipHeight uint64
}

// KernelsRequest asks for a batch of horizon-state kernels by offset.
type KernelsRequest struct {
	FromID uint32
	Offset uint64
	Count  int
}

// KernelsResponse returns a batch of kernels and the total number available,
// so the requester can report transfer progress.
type KernelsResponse struct {
	FromID  uint32
	Kernels []*chain.Kernel
	Total   uint64
}

// OutputsRequest asks for a batch of horizon-state unspent outputs by offset.
type OutputsRequest struct {
	FromID uint32
	Offset uint64
	Count  int
}

// OutputsResponse returns a batch of outputs and the total number available.
type OutputsResponse struct {
	FromID  uint32
	Outputs []*chain.Output
	Total   uint64
}

// BlockRequest asks for the full block at a given height.
type BlockRequest struct {
	FromID uint32
	Height uint64
}

// BlockResponse returns a single full block.
type BlockResponse struct {
	FromID uint32
	Block  *chain.Block
}

// AnnounceRequest notifies a peer that the sender's chain tip changed.
type AnnounceRequest struct {
	FromID   uint32
	Metadata chain.Metadata
}

// AnnounceResponse acknowledges an announcement.
type AnnounceResponse struct {
	FromID uint32
}
