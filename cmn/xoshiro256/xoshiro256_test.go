package xoshiro256_test

import (
	"testing"

	"github.com/pjrmi/pjrmi-go/cmn/xoshiro256"
)

func TestHash(t *testing.T) {
	tests := []struct {
		input    uint64
		expected uint64
	}{
		{4573842, 2227619965937116881},
		{0, 16294208416658607535},
		{1, 10451216379200822465},
		{42, 13679457532755275413},
	}

	for _, test := range tests {
		if got := xoshiro256.Hash(test.input); got != test.expected {
			t.Errorf("Hash(%d) = %d, want %d", test.input, got, test.expected)
		}
	}
}

func TestHashIsDeterministic(t *testing.T) {
	for _, seed := range []uint64{0, 1, 1 << 63, 0xDEADBEEF} {
		if xoshiro256.Hash(seed) != xoshiro256.Hash(seed) {
			t.Fatalf("Hash(%d) not deterministic", seed)
		}
	}
}

func TestNextAdvancesState(t *testing.T) {
	s := xoshiro256.New(12345)
	a := s.Next()
	b := s.Next()
	if a == b {
		t.Fatalf("consecutive Next() calls returned the same value")
	}
}

func TestNewIsSeedSensitive(t *testing.T) {
	a := xoshiro256.New(1).Next()
	b := xoshiro256.New(2).Next()
	if a == b {
		t.Fatalf("different seeds produced the same first output")
	}
}
