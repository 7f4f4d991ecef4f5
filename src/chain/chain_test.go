package chain

import (
	"bytes"
	"testing"
)

func TestHeaderHashDeterministic(t *testing.T) {
	h := &Header{
		Height:     42,
		PrevHash:   []byte("prev"),
		Timestamp:  1000,
		Difficulty: 7,
	}

	hash1, err := h.Hash()
	if err != nil {
		t.Fatal(err)
	}

	hash2, err := h.Hash()
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(hash1, hash2) {
		t.Fatal("header hash should be deterministic")
	}

	h.Height = 43
	hash3, err := h.Hash()
	if err != nil {
		t.Fatal(err)
	}

	if bytes.Equal(hash1, hash3) {
		t.Fatal("different headers should not hash to the same value")
	}
}

func TestMetadataAhead(t *testing.T) {
	local := Metadata{Height: 100, AccumulatedDifficulty: 1000}

	testCases := []struct {
		name  string
		other Metadata
		ahead bool
	}{
		{"same position", Metadata{Height: 100, AccumulatedDifficulty: 1000}, false},
		{"higher difficulty", Metadata{Height: 90, AccumulatedDifficulty: 900}, true},
		{"lower difficulty", Metadata{Height: 200, AccumulatedDifficulty: 2000}, false},
		{"equal difficulty lower height", Metadata{Height: 90, AccumulatedDifficulty: 1000}, true},
	}

	for _, tc := range testCases {
		if got := local.Ahead(tc.other); got != tc.ahead {
			t.Fatalf("%s: Ahead should be %v, not %v", tc.name, tc.ahead, got)
		}
	}
}
