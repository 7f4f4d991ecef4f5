package store

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/basaltchain/basalt/src/chain"
	"github.com/stretchr/testify/require"
)

func testHeaders(from, to uint64) []*chain.Header {
	headers := []*chain.Header{}
	prev := []byte("genesis")
	for h := from; h <= to; h++ {
		header := &chain.Header{
			Height:     h,
			PrevHash:   prev,
			Timestamp:  int64(h * 60),
			Difficulty: 10,
		}
		prev, _ = header.Hash()
		headers = append(headers, header)
	}
	return headers
}

func testBlock(header *chain.Header) *chain.Block {
	return &chain.Block{
		Header:  header,
		Kernels: []*chain.Kernel{{Excess: []byte{1}, Signature: []byte{2}}},
		Outputs: []*chain.Output{{Commitment: []byte{3}, RangeProof: []byte{4}}},
	}
}

func TestInmemStoreAppendHeaders(t *testing.T) {
	s := NewInmemStore()

	require.NoError(t, s.AppendHeaders(testHeaders(1, 10)))
	require.Equal(t, uint64(10), s.HeaderTipHeight())

	// non-contiguous headers are rejected
	err := s.AppendHeaders(testHeaders(15, 16))
	require.ErrorIs(t, err, ErrNonContiguous)

	headers, err := s.Headers(5, 3)
	require.NoError(t, err)
	require.Len(t, headers, 3)
	require.Equal(t, uint64(5), headers[0].Height)
}

func TestInmemStoreAppendBlock(t *testing.T) {
	s := NewInmemStore()

	headers := testHeaders(1, 3)
	require.NoError(t, s.AppendHeaders(headers))

	for _, h := range headers {
		require.NoError(t, s.AppendBlock(testBlock(h)))
	}

	md, err := s.LocalMetadata()
	require.NoError(t, err)
	require.Equal(t, uint64(3), md.Height)
	require.Equal(t, chain.Difficulty(30), md.AccumulatedDifficulty)
	require.NotEmpty(t, md.TipHash)

	// a block that skips a height is rejected
	err = s.AppendBlock(testBlock(&chain.Header{Height: 10}))
	require.ErrorIs(t, err, ErrNonContiguous)
}

func TestInmemStoreCommitHorizonState(t *testing.T) {
	s := NewInmemStore()

	require.NoError(t, s.AppendHeaders(testHeaders(1, 100)))

	require.NoError(t, s.PutKernels([]*chain.Kernel{{Excess: []byte{1}}}))
	require.NoError(t, s.PutOutputs([]*chain.Output{{Commitment: []byte{2}}}))

	require.NoError(t, s.CommitHorizonState(80))

	md, err := s.LocalMetadata()
	require.NoError(t, err)
	require.Equal(t, uint64(80), md.Height)
	require.Equal(t, uint64(80), md.PrunedHeight)
	require.Equal(t, chain.Difficulty(800), md.AccumulatedDifficulty)

	// committing at an unknown height fails
	require.ErrorIs(t, s.CommitHorizonState(500), ErrKeyNotFound)
}

func TestBadgerStoreReload(t *testing.T) {
	dir, err := ioutil.TempDir("", "badger_store_test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	s, err := NewBadgerStore(dir)
	require.NoError(t, err)
	require.False(t, s.NeedBootstrap())

	headers := testHeaders(1, 5)
	require.NoError(t, s.AppendHeaders(headers))
	for _, h := range headers {
		require.NoError(t, s.AppendBlock(testBlock(h)))
	}
	require.NoError(t, s.PutKernels([]*chain.Kernel{{Excess: []byte{9}}}))
	require.NoError(t, s.PutOutputs([]*chain.Output{{Commitment: []byte{8}}}))

	mdBefore, err := s.LocalMetadata()
	require.NoError(t, err)

	require.NoError(t, s.Close())

	// reload from disk
	loaded, err := LoadBadgerStore(dir)
	require.NoError(t, err)
	defer loaded.Close()

	require.True(t, loaded.NeedBootstrap())

	mdAfter, err := loaded.LocalMetadata()
	require.NoError(t, err)
	require.Equal(t, mdBefore, mdAfter)

	require.Equal(t, uint64(5), loaded.HeaderTipHeight())

	block, err := loaded.BlockAt(3)
	require.NoError(t, err)
	require.Equal(t, uint64(3), block.Header.Height)

	kernels, total, err := loaded.Kernels(0, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(1), total)
	require.Len(t, kernels, 1)
}
