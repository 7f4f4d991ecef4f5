package store

import (
	"errors"

	"github.com/basaltchain/basalt/src/chain"
)

var (
	// ErrKeyNotFound is returned when a header or block is not in the store.
	ErrKeyNotFound = errors.New("not found")

	// ErrNonContiguous is returned when appending a header or block that does
	// not extend the current tip.
	ErrNonContiguous = errors.New("does not extend current tip")
)

// ChainStore is the persistence surface consumed by the sync state machine.
// The state machine only ever reads local chain metadata and appends data
// received from sync peers; validation beyond contiguity belongs to the
// consensus layer.
type ChainStore interface {
	// LocalMetadata returns the local chain position.
	LocalMetadata() (chain.Metadata, error)

	// AppendHeaders extends the header chain. Headers must be contiguous with
	// the current header tip.
	AppendHeaders(headers []*chain.Header) error

	// HeaderTipHeight returns the height of the highest stored header, which
	// may be ahead of the block height while a sync is in progress.
	HeaderTipHeight() uint64

	// Headers returns up to count headers starting at from.
	Headers(from uint64, count int) ([]*chain.Header, error)

	// AppendBlock appends a full block at the current block height + 1.
	AppendBlock(block *chain.Block) error

	// BlockAt returns the block at the given height.
	BlockAt(height uint64) (*chain.Block, error)

	// PutKernels ingests a batch of horizon-state kernels.
	PutKernels(kernels []*chain.Kernel) error

	// Kernels returns up to count kernels starting at offset, and the total
	// number of kernels in the store.
	Kernels(offset uint64, count int) ([]*chain.Kernel, uint64, error)

	// PutOutputs ingests a batch of horizon-state outputs.
	PutOutputs(outputs []*chain.Output) error

	// Outputs returns up to count outputs starting at offset, and the total
	// number of outputs in the store.
	Outputs(offset uint64, count int) ([]*chain.Output, uint64, error)

	// CommitHorizonState finalizes a horizon state transfer by moving the
	// local chain position to the given height. The accumulated difficulty is
	// recomputed from the stored headers, and the blocks below height are
	// considered pruned.
	CommitHorizonState(height uint64) error

	// NeedBootstrap reports whether the store was loaded from an existing
	// database.
	NeedBootstrap() bool

	// Close releases the underlying resources.
	Close() error
}
