package chain

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// Kernel is a transaction kernel: the excess commitment and signature that
// prove a transaction balances. Kernels are never pruned; they are transferred
// in batches during horizon state synchronization.
type Kernel struct {
	Excess    []byte
	Signature []byte
}

// Output is a transaction output commitment with its range proof. Spent
// outputs are pruned below the horizon; the unspent set is transferred during
// horizon state synchronization.
type Output struct {
	Commitment []byte
	RangeProof []byte
}

// Block is a full block: a header plus its transaction kernels and outputs.
type Block struct {
	Header  *Header
	Kernels []*Kernel
	Outputs []*Output
}

// Marshal - canonical json encoding of Block
func (b *Block) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(buf, jh)

	if err := enc.Encode(b); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Unmarshal ...
func (b *Block) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(buf, jh)

	if err := dec.Decode(b); err != nil {
		return err
	}

	return nil
}
