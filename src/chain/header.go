package chain

import (
	"bytes"

	"github.com/basaltchain/basalt/src/crypto"
	"github.com/ugorji/go/codec"
)

// Header is a block header.
type Header struct {
	Height     uint64
	PrevHash   []byte
	Timestamp  int64
	Difficulty Difficulty
	KernelRoot []byte
	OutputRoot []byte
}

// Marshal - canonical json encoding of Header
func (h *Header) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(h); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (h *Header) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	if err := dec.Decode(h); err != nil {
		return err
	}

	return nil
}

// Hash returns the SHA256 hash of the canonical encoding of the header.
func (h *Header) Hash() ([]byte, error) {
	hashBytes, err := h.Marshal()
	if err != nil {
		return nil, err
	}
	return crypto.SHA256(hashBytes), nil
}
