package cache

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnslab/resolv/wire"
)

func answer(t *testing.T, qname string, qtype wire.Type, ttl uint32) *wire.Packet {
	t.Helper()
	p := wire.New(512)
	p.SetQR(true)
	require.NoError(t, p.PushQuestion(qname, qtype, wire.ClassIN))
	require.NoError(t, p.Push(wire.SectionAN, qname, wire.TypeA, wire.ClassIN, ttl,
		wire.A{Addr: netip.MustParseAddr("192.0.2.11")}))
	return p
}

func TestSetGetRoundTrip(t *testing.T) {
	t.Parallel()
	c := New()
	msg := answer(t, "cached.example.", wire.TypeA, 300)
	c.Set(msg)

	got := c.Get("cached.example.", wire.TypeA)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Count(wire.SectionAN))
	assert.Equal(t, 1, c.Entries())
}

func TestGetReturnsPrivateCopy(t *testing.T) {
	t.Parallel()
	c := New()
	c.Set(answer(t, "copy.example.", wire.TypeA, 300))

	first := c.Get("copy.example.", wire.TypeA)
	require.NotNil(t, first)
	first.SetRcode(wire.RcodeServFail)

	second := c.Get("copy.example.", wire.TypeA)
	require.NotNil(t, second)
	assert.Equal(t, wire.RcodeNoError, second.Rcode(), "mutating one copy does not poison the cache")
}

func TestMissReturnsNil(t *testing.T) {
	t.Parallel()
	c := New()
	assert.Nil(t, c.Get("absent.example.", wire.TypeA))
	assert.Zero(t, c.HitRatio())
}

func TestSetSkipsQuestionlessMessages(t *testing.T) {
	t.Parallel()
	c := New()
	p := wire.New(64)
	c.Set(p)
	assert.Zero(t, c.Entries())
}

func TestHitRatio(t *testing.T) {
	t.Parallel()
	c := New()
	c.Set(answer(t, "ratio.example.", wire.TypeA, 300))
	require.NotNil(t, c.Get("ratio.example.", wire.TypeA))
	require.Nil(t, c.Get("other.example.", wire.TypeA))
	assert.InDelta(t, 50.0, c.HitRatio(), 0.01)
}

func TestClear(t *testing.T) {
	t.Parallel()
	c := New()
	c.Set(answer(t, "gone.example.", wire.TypeA, 300))
	require.Equal(t, 1, c.Entries())
	c.Clear()
	assert.Zero(t, c.Entries())
}

func TestMinTTLClampKeepsShortAnswers(t *testing.T) {
	t.Parallel()
	c := New()
	c.MinTTL = time.Minute
	c.Set(answer(t, "short.example.", wire.TypeA, 0))
	assert.NotNil(t, c.Get("short.example.", wire.TypeA), "zero ttl clamped up to MinTTL")
}
