package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/basaltchain/basalt/src/chain"
	"github.com/dgraph-io/badger"
	"github.com/ugorji/go/codec"
)

const (
	metaKey      = "meta"
	headerTipKey = "htip"
	kernelCount  = "kcount"
	outputCount  = "ocount"

	headerPrefix = "h"
	blockPrefix  = "b"
	kernelPrefix = "k"
	outputPrefix = "o"
)

// BadgerStore implements the ChainStore interface on top of a Badger database.
// An InmemStore is used as a write-through cache; reads fall back to the
// database on a cache miss.
type BadgerStore struct {
	mtx sync.Mutex

	cache         *InmemStore
	db            *badger.DB
	path          string
	needBootstrap bool
}

// NewBadgerStore creates a brand new BadgerStore with a fresh database.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{
		cache: NewInmemStore(),
		db:    handle,
		path:  path,
	}, nil
}

// LoadBadgerStore opens an existing database and rebuilds the in-memory cache
// from it.
func LoadBadgerStore(path string) (*BadgerStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		cache:         NewInmemStore(),
		db:            handle,
		path:          path,
		needBootstrap: true,
	}

	if err := store.loadCache(); err != nil {
		store.db.Close()
		return nil, err
	}

	return store, nil
}

// LoadOrCreateBadgerStore loads an existing database or creates a new one if
// none exists at the given path.
func LoadOrCreateBadgerStore(path string) (*BadgerStore, error) {
	store, err := LoadBadgerStore(path)
	if err == nil {
		return store, nil
	}
	return NewBadgerStore(path)
}

func (s *BadgerStore) loadCache() error {
	return s.db.View(func(txn *badger.Txn) error {
		// chain metadata
		if item, err := txn.Get([]byte(metaKey)); err == nil {
			var md chain.Metadata
			if err := item.Value(func(val []byte) error {
				return decode(val, &md)
			}); err != nil {
				return err
			}
			s.cache.metadata = md
		}

		// headers
		var tip uint64
		if item, err := txn.Get([]byte(headerTipKey)); err == nil {
			if err := item.Value(func(val []byte) error {
				tip = binary.BigEndian.Uint64(val)
				return nil
			}); err != nil {
				return err
			}
		}
		for h := uint64(1); h <= tip; h++ {
			item, err := txn.Get(heightKey(headerPrefix, h))
			if err != nil {
				return fmt.Errorf("header %d: %v", h, err)
			}
			header := &chain.Header{}
			if err := item.Value(func(val []byte) error {
				return header.Unmarshal(val)
			}); err != nil {
				return err
			}
			s.cache.headers[h] = header
		}
		s.cache.headerTip = tip

		// blocks above the pruned height
		for h := s.cache.metadata.PrunedHeight + 1; h <= s.cache.metadata.Height; h++ {
			item, err := txn.Get(heightKey(blockPrefix, h))
			if err != nil {
				continue
			}
			block := &chain.Block{}
			if err := item.Value(func(val []byte) error {
				return block.Unmarshal(val)
			}); err != nil {
				return err
			}
			s.cache.blocks[h] = block
		}

		// horizon state
		var kcount, ocount uint64
		if item, err := txn.Get([]byte(kernelCount)); err == nil {
			if err := item.Value(func(val []byte) error {
				kcount = binary.BigEndian.Uint64(val)
				return nil
			}); err != nil {
				return err
			}
		}
		if item, err := txn.Get([]byte(outputCount)); err == nil {
			if err := item.Value(func(val []byte) error {
				ocount = binary.BigEndian.Uint64(val)
				return nil
			}); err != nil {
				return err
			}
		}
		for i := uint64(0); i < kcount; i++ {
			item, err := txn.Get(heightKey(kernelPrefix, i))
			if err != nil {
				return err
			}
			k := &chain.Kernel{}
			if err := item.Value(func(val []byte) error {
				return decode(val, k)
			}); err != nil {
				return err
			}
			s.cache.kernels = append(s.cache.kernels, k)
		}
		for i := uint64(0); i < ocount; i++ {
			item, err := txn.Get(heightKey(outputPrefix, i))
			if err != nil {
				return err
			}
			o := &chain.Output{}
			if err := item.Value(func(val []byte) error {
				return decode(val, o)
			}); err != nil {
				return err
			}
			s.cache.outputs = append(s.cache.outputs, o)
		}

		return nil
	})
}

// LocalMetadata implements the ChainStore interface.
func (s *BadgerStore) LocalMetadata() (chain.Metadata, error) {
	return s.cache.LocalMetadata()
}

// AppendHeaders implements the ChainStore interface.
func (s *BadgerStore) AppendHeaders(headers []*chain.Header) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := s.cache.AppendHeaders(headers); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, h := range headers {
			data, err := h.Marshal()
			if err != nil {
				return err
			}
			if err := txn.Set(heightKey(headerPrefix, h.Height), data); err != nil {
				return err
			}
		}
		return txn.Set([]byte(headerTipKey), uint64Bytes(s.cache.HeaderTipHeight()))
	})
}

// HeaderTipHeight implements the ChainStore interface.
func (s *BadgerStore) HeaderTipHeight() uint64 {
	return s.cache.HeaderTipHeight()
}

// Headers implements the ChainStore interface.
func (s *BadgerStore) Headers(from uint64, count int) ([]*chain.Header, error) {
	return s.cache.Headers(from, count)
}

// AppendBlock implements the ChainStore interface.
func (s *BadgerStore) AppendBlock(block *chain.Block) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := s.cache.AppendBlock(block); err != nil {
		return err
	}

	md, _ := s.cache.LocalMetadata()

	return s.db.Update(func(txn *badger.Txn) error {
		data, err := block.Marshal()
		if err != nil {
			return err
		}
		if err := txn.Set(heightKey(blockPrefix, block.Header.Height), data); err != nil {
			return err
		}
		return s.setMetadata(txn, md)
	})
}

// BlockAt implements the ChainStore interface.
func (s *BadgerStore) BlockAt(height uint64) (*chain.Block, error) {
	return s.cache.BlockAt(height)
}

// PutKernels implements the ChainStore interface.
func (s *BadgerStore) PutKernels(kernels []*chain.Kernel) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	_, base, _ := s.cache.Kernels(0, 0)

	if err := s.cache.PutKernels(kernels); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for i, k := range kernels {
			data, err := encode(k)
			if err != nil {
				return err
			}
			if err := txn.Set(heightKey(kernelPrefix, base+uint64(i)), data); err != nil {
				return err
			}
		}
		return txn.Set([]byte(kernelCount), uint64Bytes(base+uint64(len(kernels))))
	})
}

// Kernels implements the ChainStore interface.
func (s *BadgerStore) Kernels(offset uint64, count int) ([]*chain.Kernel, uint64, error) {
	return s.cache.Kernels(offset, count)
}

// PutOutputs implements the ChainStore interface.
func (s *BadgerStore) PutOutputs(outputs []*chain.Output) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	_, base, _ := s.cache.Outputs(0, 0)

	if err := s.cache.PutOutputs(outputs); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for i, o := range outputs {
			data, err := encode(o)
			if err != nil {
				return err
			}
			if err := txn.Set(heightKey(outputPrefix, base+uint64(i)), data); err != nil {
				return err
			}
		}
		return txn.Set([]byte(outputCount), uint64Bytes(base+uint64(len(outputs))))
	})
}

// Outputs implements the ChainStore interface.
func (s *BadgerStore) Outputs(offset uint64, count int) ([]*chain.Output, uint64, error) {
	return s.cache.Outputs(offset, count)
}

// CommitHorizonState implements the ChainStore interface.
func (s *BadgerStore) CommitHorizonState(height uint64) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := s.cache.CommitHorizonState(height); err != nil {
		return err
	}

	md, _ := s.cache.LocalMetadata()

	return s.db.Update(func(txn *badger.Txn) error {
		return s.setMetadata(txn, md)
	})
}

// NeedBootstrap implements the ChainStore interface.
func (s *BadgerStore) NeedBootstrap() bool {
	return s.needBootstrap
}

// Close implements the ChainStore interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) setMetadata(txn *badger.Txn, md chain.Metadata) error {
	data, err := encode(md)
	if err != nil {
		return err
	}
	return txn.Set([]byte(metaKey), data)
}

func heightKey(prefix string, n uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], n)
	return key
}

func uint64Bytes(n uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return buf
}

func encode(v interface{}) ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func decode(data []byte, v interface{}) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)
	return dec.Decode(v)
}
