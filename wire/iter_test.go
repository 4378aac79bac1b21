package wire

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addrPacket(t *testing.T, n int) *Packet {
	t.Helper()
	p := New(1024)
	require.NoError(t, p.PushQuestion("pool.example.", TypeA, ClassIN))
	for i := 0; i < n; i++ {
		require.NoError(t, p.Push(SectionAN, "pool.example.", TypeA, ClassIN, 60,
			A{Addr: netip.AddrFrom4([4]byte{192, 0, 2, byte(i + 1)})}))
	}
	return p
}

func collect(t *testing.T, p *Packet, it *Iter, rng func() uint32) []string {
	t.Helper()
	it.Init(p, rng)
	var out []string
	for {
		rr, ok := it.Next(p)
		if !ok {
			return out
		}
		rd, err := ParseRData(rr, p)
		require.NoError(t, err)
		out = append(out, rd.String())
	}
}

func seedRand(seed uint32) func() uint32 {
	return func() uint32 { return seed }
}

func TestIterPacketOrder(t *testing.T) {
	t.Parallel()
	p := addrPacket(t, 4)
	it := Iter{Section: SectionAN}
	got := collect(t, p, &it, nil)
	assert.Equal(t, []string{"192.0.2.1", "192.0.2.2", "192.0.2.3", "192.0.2.4"}, got)
}

func TestIterSectionFilter(t *testing.T) {
	t.Parallel()
	p := addrPacket(t, 2)
	require.NoError(t, p.Push(SectionNS, "example.", TypeNS, ClassIN, 60, NS{Host: "ns1.example."}))
	require.NoError(t, p.Push(SectionAR, "ns1.example.", TypeA, ClassIN, 60,
		A{Addr: netip.MustParseAddr("203.0.113.9")}))

	it := Iter{Section: SectionNS}
	it.Init(p, nil)
	rr, ok := it.Next(p)
	require.True(t, ok)
	assert.Equal(t, TypeNS, rr.Type)
	assert.Equal(t, SectionNS, rr.Section)
	_, ok = it.Next(p)
	assert.False(t, ok)

	it = Iter{Section: SectionAll &^ SectionQD, Type: TypeA, Name: "ns1.example."}
	it.Init(p, nil)
	rr, ok = it.Next(p)
	require.True(t, ok)
	assert.Equal(t, SectionAR, rr.Section)
}

func TestIterShuffleVisitsAllOnce(t *testing.T) {
	t.Parallel()
	p := addrPacket(t, 8)
	it := Iter{Section: SectionAN, Sort: SortShuffle}
	got := collect(t, p, &it, seedRand(99))
	require.Len(t, got, 8)
	seen := map[string]struct{}{}
	for _, v := range got {
		seen[v] = struct{}{}
	}
	assert.Len(t, seen, 8, "every record visited exactly once")
}

func TestIterShuffleDeterministicBySeed(t *testing.T) {
	t.Parallel()
	p := addrPacket(t, 8)
	a := Iter{Section: SectionAN, Sort: SortShuffle}
	b := Iter{Section: SectionAN, Sort: SortShuffle}
	first := collect(t, p, &a, seedRand(1234))
	second := collect(t, p, &b, seedRand(1234))
	assert.Equal(t, first, second)

	c := Iter{Section: SectionAN, Sort: SortShuffle}
	other := collect(t, p, &c, seedRand(77))
	require.Len(t, other, 8)
}

func TestIterSaveRewindSeesAppendedRecords(t *testing.T) {
	t.Parallel()
	p := addrPacket(t, 2)
	it := Iter{Section: SectionAN}
	it.Init(p, nil)
	it.Save()
	got := it.Grep(p, -1)
	require.Len(t, got, 2)

	require.NoError(t, p.Push(SectionAN, "pool.example.", TypeA, ClassIN, 60,
		A{Addr: netip.MustParseAddr("192.0.2.200")}))
	it.Rewind()
	got = it.Grep(p, -1)
	assert.Len(t, got, 3, "rewound iteration picks up appended record")
}

func TestIterCount(t *testing.T) {
	t.Parallel()
	p := addrPacket(t, 3)
	it := Iter{Section: SectionAN, Name: "absent.example."}
	it.Init(p, nil)
	_, ok := it.Next(p)
	assert.False(t, ok)
	assert.Zero(t, it.Count())

	it = Iter{Section: SectionAN}
	it.Init(p, nil)
	it.Grep(p, -1)
	assert.Equal(t, 3, it.Count())
}
