package wire

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnchor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "www.example.com.", Anchor("www.example.com"))
	assert.Equal(t, "www.example.com.", Anchor(Anchor("www.example.com")))
	assert.Equal(t, ".", Anchor("."))
	assert.Equal(t, "", Anchor(""))
}

func TestCleave(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "example.com.", Cleave("www.example.com."))
	assert.Equal(t, "com.", Cleave("example.com."))
	assert.Equal(t, ".", Cleave("com."))
	assert.Equal(t, "", Cleave("."))
	assert.Equal(t, "", Cleave(""))
}

func TestArpa(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "1.0.0.127.in-addr.arpa.", Arpa(netip.MustParseAddr("127.0.0.1")))
	assert.Equal(t, "4.3.2.1.in-addr.arpa.", Arpa(netip.MustParseAddr("1.2.3.4")))
	got := Arpa(netip.MustParseAddr("::1"))
	assert.Equal(t, "1.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.ip6.arpa.", got)
}

func TestNameRoundTrip(t *testing.T) {
	t.Parallel()
	for _, name := range []string{
		"www.example.com.",
		"example.com.",
		"a.b.c.d.e.f.",
		".",
		"MiXeD.CaSe.Org.",
	} {
		p := New(512)
		off := p.End()
		require.NoError(t, p.pushName(name))
		got, err := p.ExpandName(off)
		require.NoError(t, err)
		want := name
		assert.Equal(t, want, got)
	}
}

func TestNameCompressionEmitsPointer(t *testing.T) {
	t.Parallel()
	p := New(512)
	require.NoError(t, p.pushName("www.example.com."))
	first := p.End()
	require.NoError(t, p.pushName("ftp.example.com."))
	// "example.com." is a shared suffix, so the second spelling is the
	// "ftp" label plus a two byte pointer.
	require.Equal(t, first+4+2, p.End())
	assert.Equal(t, byte(0xc0), p.Data[p.End()-2]&0xc0)

	got, err := p.ExpandName(first)
	require.NoError(t, err)
	assert.Equal(t, "ftp.example.com.", got)
}

func TestNameCompressionCaseInsensitive(t *testing.T) {
	t.Parallel()
	p := New(512)
	require.NoError(t, p.pushName("www.EXAMPLE.com."))
	first := p.End()
	require.NoError(t, p.pushName("mail.example.COM."))
	require.Equal(t, first+5+2, p.End())
	got, err := p.ExpandName(first)
	require.NoError(t, err)
	// Case of the pointed-at suffix is whatever was written first.
	assert.Equal(t, "mail.EXAMPLE.com.", got)
}

func TestNameWholePointer(t *testing.T) {
	t.Parallel()
	p := New(512)
	off := p.End()
	require.NoError(t, p.pushName("example.com."))
	second := p.End()
	require.NoError(t, p.pushName("example.com."))
	require.Equal(t, second+2, p.End())
	got, err := p.ExpandName(second)
	require.NoError(t, err)
	assert.Equal(t, "example.com.", got)
	_ = off
}

func TestExpandNamePointerLoop(t *testing.T) {
	t.Parallel()
	p := New(64)
	// A pointer at offset 12 pointing to itself.
	p.Data[12] = 0xc0
	p.Data[13] = 12
	p.SetEnd(14)
	_, err := p.ExpandName(12)
	assert.ErrorIs(t, err, ErrIllegal)
}

func TestExpandNameLabelPointerLoop(t *testing.T) {
	t.Parallel()
	p := New(64)
	// Label "a" followed by a pointer back to the label: the chase
	// resets on every literal label, so the name-length cap is what
	// terminates this loop.
	p.Data[12] = 1
	p.Data[13] = 'a'
	p.Data[14] = 0xc0
	p.Data[15] = 12
	p.SetEnd(16)
	_, err := p.ExpandName(12)
	assert.ErrorIs(t, err, ErrIllegal)
}

func TestExpandNamePointerPastEnd(t *testing.T) {
	t.Parallel()
	p := New(64)
	p.Data[12] = 0xc0
	p.Data[13] = 60 // target beyond end
	p.SetEnd(14)
	_, err := p.ExpandName(12)
	assert.ErrorIs(t, err, ErrIllegal)
}

func TestEncodeNameLimits(t *testing.T) {
	t.Parallel()
	long := ""
	for i := 0; i < 64; i++ {
		long += "a"
	}
	_, err := encodeName(long + ".com.")
	assert.ErrorIs(t, err, ErrIllegal, "label over 63 octets")

	name := ""
	for i := 0; i < 50; i++ {
		name += "abcde."
	}
	_, err = encodeName(name)
	assert.ErrorIs(t, err, ErrIllegal, "name over 255 octets")

	_, err = encodeName("a..b.")
	assert.ErrorIs(t, err, ErrIllegal, "empty interior label")
}
