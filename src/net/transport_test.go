package net

import (
	"reflect"
	"testing"
	"time"

	"github.com/basaltchain/basalt/src/chain"
	"github.com/basaltchain/basalt/src/common"
)

const (
	INMEM = iota
	TCP
	numTestTransports // NOTE: must be last
)

func NewTestTransport(ttype int, addr string, t *testing.T) Transport {
	switch ttype {
	case INMEM:
		_, it := NewInmemTransport(addr)
		return it
	case TCP:
		tt, err := NewTCPTransport(addr, "", 2, time.Second, common.NewTestEntry(t))
		if err != nil {
			t.Fatal(err)
		}
		go tt.Listen()
		return tt
	default:
		panic("Unknown transport type")
	}
}

func connectInmem(t1, t2 Transport, addr1, addr2 string) {
	it1 := t1.(*InmemTransport)
	it2 := t2.(*InmemTransport)
	it1.Connect(addr2, it2)
	it2.Connect(addr1, it1)
}

func TestTransport_StartStop(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans := NewTestTransport(ttype, "127.0.0.1:0", t)
		if err := trans.Close(); err != nil {
			t.Fatalf("err: %v", err)
		}
	}
}

func TestTransport_GetChainMetadata(t *testing.T) {
	addr1 := "127.0.0.1:1234"
	addr2 := "127.0.0.1:1235"
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, addr1, t)
		defer trans1.Close()
		rpcCh := trans1.Consumer()

		// Make the RPC request
		args := ChainMetadataRequest{
			FromID: 0,
		}
		resp := ChainMetadataResponse{
			FromID: 1,
			Metadata: chain.Metadata{
				Height:                42,
				AccumulatedDifficulty: 4200,
				TipHash:               []byte("tip"),
				PrunedHeight:          0,
			},
		}

		// Listen for a request
		go func() {
			select {
			case rpc := <-rpcCh:
				// Verify the command
				req := rpc.Command.(*ChainMetadataRequest)
				if !reflect.DeepEqual(req, &args) {
					t.Errorf("command mismatch: %#v %#v", *req, args)
				}
				rpc.Respond(&resp, nil)

			case <-time.After(200 * time.Millisecond):
				t.Errorf("timeout")
			}
		}()

		// Transport 2 makes outbound request
		trans2 := NewTestTransport(ttype, addr2, t)
		defer trans2.Close()

		if ttype == INMEM {
			connectInmem(trans1, trans2, addr1, addr2)
		}

		var out ChainMetadataResponse
		if err := trans2.GetChainMetadata(trans1.LocalAddr(), &args, &out); err != nil {
			t.Fatalf("err: %v", err)
		}

		// Verify the response
		if !reflect.DeepEqual(resp, out) {
			t.Fatalf("response mismatch: %#v %#v", resp, out)
		}
	}
}

func TestTransport_FetchHeaders(t *testing.T) {
	addr1 := "127.0.0.1:1236"
	addr2 := "127.0.0.1:1237"
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, addr1, t)
		defer trans1.Close()
		rpcCh := trans1.Consumer()

		args := HeadersRequest{
			FromID:     0,
			FromHeight: 10,
			Count:      2,
		}
		resp := HeadersResponse{
			FromID: 1,
			Headers: []*chain.Header{
				{Height: 10, PrevHash: []byte("h9"), Timestamp: 100, Difficulty: 10},
				{Height: 11, PrevHash: []byte("h10"), Timestamp: 110, Difficulty: 10},
			},
			TipHeight: 42,
		}

		go func() {
			select {
			case rpc := <-rpcCh:
				req := rpc.Command.(*HeadersRequest)
				if !reflect.DeepEqual(req, &args) {
					t.Errorf("command mismatch: %#v %#v", *req, args)
				}
				rpc.Respond(&resp, nil)

			case <-time.After(200 * time.Millisecond):
				t.Errorf("timeout")
			}
		}()

		trans2 := NewTestTransport(ttype, addr2, t)
		defer trans2.Close()

		if ttype == INMEM {
			connectInmem(trans1, trans2, addr1, addr2)
		}

		var out HeadersResponse
		if err := trans2.FetchHeaders(trans1.LocalAddr(), &args, &out); err != nil {
			t.Fatalf("err: %v", err)
		}

		if !reflect.DeepEqual(resp, out) {
			t.Fatalf("response mismatch: %#v %#v", resp, out)
		}
	}
}

func TestTransport_FetchBlock(t *testing.T) {
	addr1 := "127.0.0.1:1238"
	addr2 := "127.0.0.1:1239"
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, addr1, t)
		defer trans1.Close()
		rpcCh := trans1.Consumer()

		args := BlockRequest{
			FromID: 0,
			Height: 7,
		}
		resp := BlockResponse{
			FromID: 1,
			Block: &chain.Block{
				Header: &chain.Header{Height: 7, PrevHash: []byte("h6"), Timestamp: 70, Difficulty: 5},
				Kernels: []*chain.Kernel{
					{Excess: []byte("excess"), Signature: []byte("sig")},
				},
				Outputs: []*chain.Output{
					{Commitment: []byte("commit"), RangeProof: []byte("proof")},
				},
			},
		}

		go func() {
			select {
			case rpc := <-rpcCh:
				req := rpc.Command.(*BlockRequest)
				if !reflect.DeepEqual(req, &args) {
					t.Errorf("command mismatch: %#v %#v", *req, args)
				}
				rpc.Respond(&resp, nil)

			case <-time.After(200 * time.Millisecond):
				t.Errorf("timeout")
			}
		}()

		trans2 := NewTestTransport(ttype, addr2, t)
		defer trans2.Close()

		if ttype == INMEM {
			connectInmem(trans1, trans2, addr1, addr2)
		}

		var out BlockResponse
		if err := trans2.FetchBlock(trans1.LocalAddr(), &args, &out); err != nil {
			t.Fatalf("err: %v", err)
		}

		if !reflect.DeepEqual(resp, out) {
			t.Fatalf("response mismatch: %#v %#v", resp, out)
		}
	}
}

func TestTransport_Announce(t *testing.T) {
	addr1 := "127.0.0.1:1240"
	addr2 := "127.0.0.1:1241"
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, addr1, t)
		defer trans1.Close()
		rpcCh := trans1.Consumer()

		args := AnnounceRequest{
			FromID: 0,
			Metadata: chain.Metadata{
				Height:                100,
				AccumulatedDifficulty: 9999,
				TipHash:               []byte("best"),
			},
		}
		resp := AnnounceResponse{
			FromID: 1,
		}

		go func() {
			select {
			case rpc := <-rpcCh:
				req := rpc.Command.(*AnnounceRequest)
				if !reflect.DeepEqual(req, &args) {
					t.Errorf("command mismatch: %#v %#v", *req, args)
				}
				rpc.Respond(&resp, nil)

			case <-time.After(200 * time.Millisecond):
				t.Errorf("timeout")
			}
		}()

		trans2 := NewTestTransport(ttype, addr2, t)
		defer trans2.Close()

		if ttype == INMEM {
			connectInmem(trans1, trans2, addr1, addr2)
		}

		var out AnnounceResponse
		if err := trans2.Announce(trans1.LocalAddr(), &args, &out); err != nil {
			t.Fatalf("err: %v", err)
		}

		if !reflect.DeepEqual(resp, out) {
			t.Fatalf("response mismatch: %#v %#v", resp, out)
		}
	}
}
