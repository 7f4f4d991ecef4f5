package chain

import (
	"fmt"
)

// Difficulty is the accumulated proof-of-work of a chain. Accumulated
// difficulties are totally ordered and are the primary criterion for comparing
// two chains.
type Difficulty uint64

// Add returns the accumulated difficulty after appending a block of difficulty
// d.
func (d Difficulty) Add(other Difficulty) Difficulty {
	return d + other
}

func (d Difficulty) String() string {
	return fmt.Sprintf("%d", uint64(d))
}

// Metadata summarises a chain position: the height of the longest chain, the
// accumulated proof-of-work difficulty up to that height, the hash of the tip
// header, and the height below which full blocks have been pruned.
type Metadata struct {
	Height                uint64
	AccumulatedDifficulty Difficulty
	TipHash               []byte
	PrunedHeight          uint64
}

// Ahead reports whether m describes a strictly better chain than other. Chains
// are compared by accumulated difficulty first, height second.
func (m Metadata) Ahead(other Metadata) bool {
	if m.AccumulatedDifficulty != other.AccumulatedDifficulty {
		return m.AccumulatedDifficulty > other.AccumulatedDifficulty
	}
	return m.Height > other.Height
}

func (m Metadata) String() string {
	return fmt.Sprintf("#%d (Difficulty: %d)", m.Height, m.AccumulatedDifficulty)
}
