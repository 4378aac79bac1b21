package wire

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitZeroesHeader(t *testing.T) {
	t.Parallel()
	buf := make([]byte, 512)
	for i := range buf {
		buf[i] = 0xff
	}
	p := Init(buf)
	require.Equal(t, HeaderSize, p.End())
	for i := 0; i < HeaderSize; i++ {
		assert.Zero(t, p.Data[i])
	}
}

func TestHeaderFlags(t *testing.T) {
	t.Parallel()
	p := New(512)
	p.SetID(0xbeef)
	p.SetQR(true)
	p.SetRD(true)
	p.SetAA(true)
	p.SetRcode(RcodeServFail)
	p.SetOpcode(OpcodeQuery)
	assert.Equal(t, uint16(0xbeef), p.ID())
	assert.True(t, p.QR())
	assert.True(t, p.RD())
	assert.True(t, p.AA())
	assert.False(t, p.TC())
	assert.Equal(t, RcodeServFail, p.Rcode())
	p.SetQR(false)
	assert.False(t, p.QR())
	assert.True(t, p.AA(), "clearing one flag leaves the others")
}

func TestPushBumpsExactlyOneCount(t *testing.T) {
	t.Parallel()
	p := New(512)
	require.NoError(t, p.PushQuestion("example.com.", TypeA, ClassIN))

	before := [4]int{p.Count(SectionQD), p.Count(SectionAN), p.Count(SectionNS), p.Count(SectionAR)}
	end := p.End()
	require.NoError(t, p.Push(SectionAN, "example.com.", TypeA, ClassIN, 300,
		A{Addr: netip.MustParseAddr("192.0.2.1")}))
	assert.Greater(t, p.End(), end)
	assert.Equal(t, before[0], p.Count(SectionQD))
	assert.Equal(t, before[1]+1, p.Count(SectionAN))
	assert.Equal(t, before[2], p.Count(SectionNS))
	assert.Equal(t, before[3], p.Count(SectionAR))
}

func TestPushRollsBackOnOverflow(t *testing.T) {
	t.Parallel()
	p := New(32)
	require.NoError(t, p.PushQuestion("a.example.", TypeA, ClassIN))
	end := p.End()
	counts := p.Count(SectionAll)
	err := p.Push(SectionAN, "quite-long-name.example.", TypeTXT, ClassIN, 60,
		TXT{Data: []byte("does not fit in this packet at all")})
	require.ErrorIs(t, err, ErrNoBufs)
	assert.Equal(t, end, p.End(), "end cursor rolled back")
	assert.Equal(t, counts, p.Count(SectionAll), "counts untouched")
}

func TestQuestionRoundTrip(t *testing.T) {
	t.Parallel()
	p := New(512)
	require.NoError(t, p.PushQuestion("www.example.com.", TypeMX, ClassIN))
	rr, err := p.Question()
	require.NoError(t, err)
	assert.Equal(t, SectionQD, rr.Section)
	assert.Equal(t, TypeMX, rr.Type)
	assert.Equal(t, ClassIN, rr.Class)
	name, err := p.ExpandName(rr.NameOff)
	require.NoError(t, err)
	assert.Equal(t, "www.example.com.", name)
}

func TestPushTTLTopBitForcedZero(t *testing.T) {
	t.Parallel()
	p := New(512)
	require.NoError(t, p.PushQuestion("example.com.", TypeA, ClassIN))
	require.NoError(t, p.Push(SectionAN, "example.com.", TypeA, ClassIN, 0xffffffff,
		A{Addr: netip.MustParseAddr("192.0.2.1")}))
	it := Iter{Section: SectionAN}
	it.Init(p, nil)
	rr, ok := it.Next(p)
	require.True(t, ok)
	assert.Equal(t, uint32(0x7fffffff), rr.TTL)
}

func TestPushThenIterateFindsRecord(t *testing.T) {
	t.Parallel()
	p := New(512)
	require.NoError(t, p.PushQuestion("example.com.", TypeA, ClassIN))
	require.NoError(t, p.Push(SectionAN, "example.com.", TypeA, ClassIN, 60,
		A{Addr: netip.MustParseAddr("192.0.2.7")}))
	require.NoError(t, p.Push(SectionNS, "example.com.", TypeNS, ClassIN, 60,
		NS{Host: "ns1.example.com."}))

	it := Iter{Section: SectionAll &^ SectionQD, Type: TypeA}
	it.Init(p, nil)
	rr, ok := it.Next(p)
	require.True(t, ok)
	rd, err := ParseRData(rr, p)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.7", rd.String())
	_, ok = it.Next(p)
	assert.False(t, ok)
}

func TestCopyRRDedupWithExists(t *testing.T) {
	t.Parallel()
	src := New(512)
	require.NoError(t, src.PushQuestion("example.com.", TypeA, ClassIN))
	require.NoError(t, src.Push(SectionAN, "example.com.", TypeA, ClassIN, 60,
		A{Addr: netip.MustParseAddr("192.0.2.7")}))

	it := Iter{Section: SectionAN}
	it.Init(src, nil)
	rr, ok := it.Next(src)
	require.True(t, ok)

	dst := New(512)
	require.NoError(t, dst.PushQuestion("example.com.", TypeA, ClassIN))
	require.False(t, ExistsRR(rr, src, dst))
	require.NoError(t, CopyRR(dst, rr, src))
	assert.True(t, ExistsRR(rr, src, dst))
	assert.Equal(t, 1, dst.Count(SectionAN))
}

func TestRDataRoundTrips(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		typ  Type
		rd   RData
	}{
		{"a", TypeA, A{Addr: netip.MustParseAddr("198.51.100.3")}},
		{"aaaa", TypeAAAA, AAAA{Addr: netip.MustParseAddr("2001:db8::5")}},
		{"ns", TypeNS, NS{Host: "ns1.example.net."}},
		{"cname", TypeCNAME, CNAME{Host: "real.example.net."}},
		{"ptr", TypePTR, PTR{Host: "host.example.net."}},
		{"mx", TypeMX, MX{Preference: 10, Host: "mail.example.net."}},
		{"srv", TypeSRV, SRV{Priority: 1, Weight: 5, Port: 443, Target: "svc.example.net."}},
		{"soa", TypeSOA, SOA{MName: "ns1.example.net.", RName: "hostmaster.example.net.",
			Serial: 2024010101, Refresh: 7200, Retry: 1800, Expire: 1209600, Minimum: 300}},
		{"txt", TypeTXT, TXT{Data: []byte("v=spf1 -all")}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := New(512)
			require.NoError(t, p.PushQuestion("example.net.", tc.typ, ClassIN))
			require.NoError(t, p.Push(SectionAN, "example.net.", tc.typ, ClassIN, 60, tc.rd))
			it := Iter{Section: SectionAN}
			it.Init(p, nil)
			rr, ok := it.Next(p)
			require.True(t, ok)
			got, err := ParseRData(rr, p)
			require.NoError(t, err)
			assert.Zero(t, CompareRData(tc.rd, got))
			assert.Equal(t, tc.rd.String(), got.String())
		})
	}
}

func TestSRVTargetNotCompressed(t *testing.T) {
	t.Parallel()
	p := New(512)
	require.NoError(t, p.PushQuestion("svc.example.net.", TypeSRV, ClassIN))
	require.NoError(t, p.Push(SectionAN, "svc.example.net.", TypeSRV, ClassIN, 60,
		SRV{Priority: 0, Weight: 0, Port: 53, Target: "svc.example.net."}))
	it := Iter{Section: SectionAN}
	it.Init(p, nil)
	rr, ok := it.Next(p)
	require.True(t, ok)
	for off := rr.RDOff + 6; off < rr.RDOff+rr.RDLen; off++ {
		assert.NotEqual(t, byte(0xc0), p.Data[off]&0xc0, "pointer inside srv target")
	}
}

func TestOpaquePreservedForUnknownType(t *testing.T) {
	t.Parallel()
	p := New(512)
	require.NoError(t, p.PushQuestion("example.net.", Type(99), ClassIN))
	require.NoError(t, p.Push(SectionAN, "example.net.", Type(99), ClassIN, 60,
		Opaque{Data: []byte{1, 2, 3, 4}}))
	it := Iter{Section: SectionAN}
	it.Init(p, nil)
	rr, ok := it.Next(p)
	require.True(t, ok)
	rd, err := ParseRData(rr, p)
	require.NoError(t, err)
	op, ok := rd.(Opaque)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, op.Data)
}
