package permute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedRand(seq ...uint32) func() uint32 {
	i := 0
	return func() uint32 {
		v := seq[i%len(seq)]
		i++
		return v
	}
}

func TestStepPermutesSmallRange(t *testing.T) {
	t.Parallel()
	p := New(0, 255, fixedRand(0xdeadbeef, 0x01020304, 0xcafebabe, 0x09080706))
	seen := make(map[uint32]struct{})
	for i := 0; i < 256; i++ {
		v := p.Step()
		require.LessOrEqual(t, v, uint32(255))
		_, dup := seen[v]
		require.False(t, dup, "value %d repeated at step %d", v, i)
		seen[v] = struct{}{}
	}
	require.Len(t, seen, 256)
}

func TestStepPermutesQidRange(t *testing.T) {
	t.Parallel()
	p := New(1, 65535, nil)
	seen := make(map[uint32]struct{}, 65535)
	for i := 0; i < 65535; i++ {
		v := p.Step()
		require.GreaterOrEqual(t, v, uint32(1))
		require.LessOrEqual(t, v, uint32(65535))
		_, dup := seen[v]
		require.False(t, dup, "qid %d repeated at step %d", v, i)
		seen[v] = struct{}{}
	}
}

func TestStepDeterministicForKey(t *testing.T) {
	t.Parallel()
	a := New(1, 1000, fixedRand(1, 2, 3, 4))
	b := New(1, 1000, fixedRand(1, 2, 3, 4))
	for i := 0; i < 1000; i++ {
		require.Equal(t, a.Step(), b.Step())
	}
}

func TestShuffle8Bijection(t *testing.T) {
	t.Parallel()
	for _, seed := range []uint32{1, 42, 0xffffffff} {
		seen := make(map[uint16]struct{})
		for i := 0; i < 256; i++ {
			v := Shuffle8(uint16(i), seed)
			_, dup := seen[v]
			assert.False(t, dup, "seed %d: output %d repeated", seed, v)
			seen[v] = struct{}{}
		}
	}
}

func TestShuffle8KeepsHighByte(t *testing.T) {
	t.Parallel()
	assert.Equal(t, uint16(0xab00), Shuffle8(0xab00, 7)&0xff00)
}
