package store

import (
	"sync"

	"github.com/basaltchain/basalt/src/chain"
)

// InmemStore implements the ChainStore interface with map-backed storage. It
// is used in tests and when the node is run without a persistent database.
type InmemStore struct {
	mtx sync.RWMutex

	headers   map[uint64]*chain.Header
	headerTip uint64

	blocks  map[uint64]*chain.Block
	kernels []*chain.Kernel
	outputs []*chain.Output

	metadata chain.Metadata
}

// NewInmemStore instantiates an empty InmemStore.
func NewInmemStore() *InmemStore {
	return &InmemStore{
		headers: make(map[uint64]*chain.Header),
		blocks:  make(map[uint64]*chain.Block),
	}
}

// LocalMetadata implements the ChainStore interface.
func (s *InmemStore) LocalMetadata() (chain.Metadata, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.metadata, nil
}

// AppendHeaders implements the ChainStore interface.
func (s *InmemStore) AppendHeaders(headers []*chain.Header) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, h := range headers {
		if s.headerTip != 0 && h.Height != s.headerTip+1 {
			return ErrNonContiguous
		}
		if s.headerTip == 0 && len(s.headers) == 0 && h.Height != 1 {
			return ErrNonContiguous
		}
		s.headers[h.Height] = h
		s.headerTip = h.Height
	}

	return nil
}

// HeaderTipHeight implements the ChainStore interface.
func (s *InmemStore) HeaderTipHeight() uint64 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.headerTip
}

// Headers implements the ChainStore interface.
func (s *InmemStore) Headers(from uint64, count int) ([]*chain.Header, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []*chain.Header{}
	for h := from; h <= s.headerTip && len(res) < count; h++ {
		header, ok := s.headers[h]
		if !ok {
			return nil, ErrKeyNotFound
		}
		res = append(res, header)
	}
	return res, nil
}

// AppendBlock implements the ChainStore interface.
func (s *InmemStore) AppendBlock(block *chain.Block) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if block.Header.Height != s.metadata.Height+1 {
		return ErrNonContiguous
	}

	hash, err := block.Header.Hash()
	if err != nil {
		return err
	}

	s.blocks[block.Header.Height] = block

	s.metadata.Height = block.Header.Height
	s.metadata.AccumulatedDifficulty = s.metadata.AccumulatedDifficulty.Add(block.Header.Difficulty)
	s.metadata.TipHash = hash

	return nil
}

// BlockAt implements the ChainStore interface.
func (s *InmemStore) BlockAt(height uint64) (*chain.Block, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	block, ok := s.blocks[height]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return block, nil
}

// PutKernels implements the ChainStore interface.
func (s *InmemStore) PutKernels(kernels []*chain.Kernel) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.kernels = append(s.kernels, kernels...)
	return nil
}

// Kernels implements the ChainStore interface.
func (s *InmemStore) Kernels(offset uint64, count int) ([]*chain.Kernel, uint64, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	total := uint64(len(s.kernels))
	if offset >= total {
		return []*chain.Kernel{}, total, nil
	}

	end := offset + uint64(count)
	if end > total {
		end = total
	}
	return s.kernels[offset:end], total, nil
}

// PutOutputs implements the ChainStore interface.
func (s *InmemStore) PutOutputs(outputs []*chain.Output) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.outputs = append(s.outputs, outputs...)
	return nil
}

// Outputs implements the ChainStore interface.
func (s *InmemStore) Outputs(offset uint64, count int) ([]*chain.Output, uint64, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	total := uint64(len(s.outputs))
	if offset >= total {
		return []*chain.Output{}, total, nil
	}

	end := offset + uint64(count)
	if end > total {
		end = total
	}
	return s.outputs[offset:end], total, nil
}

// CommitHorizonState implements the ChainStore interface.
func (s *InmemStore) CommitHorizonState(height uint64) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	header, ok := s.headers[height]
	if !ok {
		return ErrKeyNotFound
	}

	var difficulty chain.Difficulty
	for h := uint64(1); h <= height; h++ {
		hd, ok := s.headers[h]
		if !ok {
			return ErrKeyNotFound
		}
		difficulty = difficulty.Add(hd.Difficulty)
	}

	hash, err := header.Hash()
	if err != nil {
		return err
	}

	s.metadata = chain.Metadata{
		Height:                height,
		AccumulatedDifficulty: difficulty,
		TipHash:               hash,
		PrunedHeight:          height,
	}

	return nil
}

// NeedBootstrap implements the ChainStore interface.
func (s *InmemStore) NeedBootstrap() bool {
	return false
}

// Close implements the ChainStore interface.
func (s *InmemStore) Close() error {
	return nil
}
