package resolv_test

import (
	"net"
	"net/netip"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnslab/resolv"
	"github.com/dnslab/resolv/cache"
	"github.com/dnslab/resolv/hints"
	"github.com/dnslab/resolv/hosts"
	"github.com/dnslab/resolv/resconf"
	"github.com/dnslab/resolv/wire"
)

// handler builds the reply for one decoded query; nil drops it.
type handler func(qname string, qtype wire.Type) *wire.Packet

// serveUDP runs a fake nameserver on the given loopback host, returning
// the bound address. Port 0 picks a free port.
func serveUDP(t *testing.T, host string, port uint16, h handler) netip.AddrPort {
	t.Helper()
	pc, err := net.ListenPacket("udp4", net.JoinHostPort(host, strconv.Itoa(int(port))))
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })
	go func() {
		buf := make([]byte, 4096)
		for {
			n, peer, err := pc.ReadFrom(buf)
			if err != nil {
				return
			}
			q := wire.New(n)
			copy(q.Data, buf[:n])
			q.SetEnd(n)
			rr, err := q.Question()
			if err != nil {
				continue
			}
			qname, err := q.ExpandName(rr.NameOff)
			if err != nil {
				continue
			}
			reply := h(qname, rr.Type)
			if reply == nil {
				continue
			}
			reply.SetID(q.ID())
			_, _ = pc.WriteTo(reply.Bytes(), peer)
		}
	}()
	return netip.MustParseAddrPort(pc.LocalAddr().String())
}

// reply starts a response packet echoing the question.
func reply(t *testing.T, qname string, qtype wire.Type) *wire.Packet {
	t.Helper()
	p := wire.New(1024)
	p.SetQR(true)
	require.NoError(t, p.PushQuestion(qname, qtype, wire.ClassIN))
	return p
}

func stubConf(server netip.AddrPort) *resconf.Config {
	conf := resconf.New()
	conf.Nameservers = []netip.AddrPort{server}
	conf.Search = nil
	conf.Lookup = "b"
	conf.Options.Timeout = 3 * time.Second
	return conf
}

func TestStubResolution(t *testing.T) {
	t.Parallel()
	var queries atomic.Int32
	server := serveUDP(t, "127.0.0.1", 0, func(qname string, qtype wire.Type) *wire.Packet {
		queries.Add(1)
		p := reply(t, qname, qtype)
		require.NoError(t, p.Push(wire.SectionAN, qname, wire.TypeA, wire.ClassIN, 300,
			wire.A{Addr: netip.MustParseAddr("142.250.74.36")}))
		return p
	})

	conf := stubConf(server)
	hintsTab, err := hints.Local(conf)
	require.NoError(t, err)
	r, err := resolv.New(conf, nil, hintsTab)
	require.NoError(t, err)
	defer r.Close()
	r.DNSPort = server.Port()

	msg, err := r.Resolve("www.google.com.", wire.TypeA, wire.ClassIN, 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, wire.RcodeNoError, msg.Rcode())
	assert.Equal(t, 1, msg.Count(wire.SectionAN))
	assert.Equal(t, int32(1), queries.Load(), "stub mode issues exactly one query")

	rr, err := msg.Question()
	require.NoError(t, err)
	qname, err := msg.ExpandName(rr.NameOff)
	require.NoError(t, err)
	assert.Equal(t, "www.google.com.", qname)
}

func TestHostsLookupViaFile(t *testing.T) {
	t.Parallel()
	tab := hosts.New()
	require.NoError(t, tab.Insert(netip.MustParseAddr("127.0.0.1"), "localhost", false))

	conf := resconf.New()
	conf.Lookup = "f"
	conf.Search = []string{"example.com."}

	r, err := resolv.New(conf, tab, hints.New())
	require.NoError(t, err)
	defer r.Close()

	msg, err := r.Resolve("localhost", wire.TypeA, wire.ClassIN, time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, 1, msg.Count(wire.SectionAN))

	it := wire.Iter{Section: wire.SectionAN}
	it.Init(msg, nil)
	rr, ok := it.Next(msg)
	require.True(t, ok)
	assert.Zero(t, rr.TTL)
	rd, err := wire.ParseRData(rr, msg)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", rd.String())
}

func TestLookupExhaustionYieldsServFail(t *testing.T) {
	t.Parallel()
	conf := resconf.New()
	conf.Lookup = "f" // hosts only, and the table is empty
	conf.Search = nil

	r, err := resolv.New(conf, hosts.New(), hints.New())
	require.NoError(t, err)
	defer r.Close()

	msg, err := r.Resolve("missing.example.", wire.TypeA, wire.ClassIN, time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, wire.RcodeServFail, msg.Rcode())
	assert.ErrorIs(t, resolv.ErrorFromRcode(msg.Rcode()), resolv.RcodeError(wire.RcodeServFail))
}

// pickPort reserves a UDP port that distinct loopback hosts can share.
func pickPort(t *testing.T) uint16 {
	t.Helper()
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := netip.MustParseAddrPort(pc.LocalAddr().String()).Port()
	pc.Close()
	return port
}

func TestRecursiveIterationWithCNAME(t *testing.T) {
	t.Parallel()
	port := pickPort(t)

	// Root: delegate everything to the test TLD server, with glue.
	serveUDP(t, "127.0.0.1", port, func(qname string, qtype wire.Type) *wire.Packet {
		p := reply(t, qname, qtype)
		require.NoError(t, p.Push(wire.SectionNS, "com.", wire.TypeNS, wire.ClassIN, 3600,
			wire.NS{Host: "ns.tld.test."}))
		require.NoError(t, p.Push(wire.SectionAR, "ns.tld.test.", wire.TypeA, wire.ClassIN, 3600,
			wire.A{Addr: netip.MustParseAddr("127.0.0.2")}))
		return p
	})

	// TLD: delegate example.com. to the authoritative server, with glue.
	serveUDP(t, "127.0.0.2", port, func(qname string, qtype wire.Type) *wire.Packet {
		p := reply(t, qname, qtype)
		require.NoError(t, p.Push(wire.SectionNS, "example.com.", wire.TypeNS, wire.ClassIN, 3600,
			wire.NS{Host: "ns.example.com."}))
		require.NoError(t, p.Push(wire.SectionAR, "ns.example.com.", wire.TypeA, wire.ClassIN, 3600,
			wire.A{Addr: netip.MustParseAddr("127.0.0.3")}))
		return p
	})

	// Authoritative: CNAME for the original name, A for the target.
	serveUDP(t, "127.0.0.3", port, func(qname string, qtype wire.Type) *wire.Packet {
		p := reply(t, qname, qtype)
		p.SetAA(true)
		switch {
		case strings.EqualFold(qname, "www.example.com."):
			require.NoError(t, p.Push(wire.SectionAN, qname, wire.TypeCNAME, wire.ClassIN, 300,
				wire.CNAME{Host: "real.example.com."}))
		case strings.EqualFold(qname, "real.example.com."):
			require.NoError(t, p.Push(wire.SectionAN, qname, wire.TypeA, wire.ClassIN, 300,
				wire.A{Addr: netip.MustParseAddr("198.51.100.42")}))
		}
		return p
	})

	conf := resconf.New()
	conf.Lookup = "b"
	conf.Search = nil
	conf.Options.Recurse = true
	conf.Options.Timeout = 3 * time.Second

	roots := hints.New()
	require.NoError(t, roots.Insert(".", netip.MustParseAddrPort("127.0.0.1:53"), 1))

	r, err := resolv.New(conf, nil, roots)
	require.NoError(t, err)
	defer r.Close()
	r.DNSPort = port

	msg, err := r.Resolve("www.example.com.", wire.TypeA, wire.ClassIN, 10*time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, wire.RcodeNoError, msg.Rcode())

	var haveCNAME, haveA bool
	it := wire.Iter{Section: wire.SectionAN}
	it.Init(msg, nil)
	for {
		rr, ok := it.Next(msg)
		if !ok {
			break
		}
		rd, err := wire.ParseRData(rr, msg)
		require.NoError(t, err)
		switch v := rd.(type) {
		case wire.CNAME:
			assert.Equal(t, "real.example.com.", v.Host)
			haveCNAME = true
		case wire.A:
			assert.Equal(t, "198.51.100.42", v.Addr.String())
			haveA = true
		}
	}
	assert.True(t, haveCNAME, "merged answer keeps the CNAME")
	assert.True(t, haveA, "merged answer carries the terminal A")
}

func TestSmartModeLiftsMXAddress(t *testing.T) {
	t.Parallel()
	server := serveUDP(t, "127.0.0.1", 0, func(qname string, qtype wire.Type) *wire.Packet {
		p := reply(t, qname, qtype)
		switch qtype {
		case wire.TypeMX:
			require.NoError(t, p.Push(wire.SectionAN, qname, wire.TypeMX, wire.ClassIN, 300,
				wire.MX{Preference: 10, Host: "mail.example.net."}))
		case wire.TypeA:
			require.NoError(t, p.Push(wire.SectionAN, qname, wire.TypeA, wire.ClassIN, 300,
				wire.A{Addr: netip.MustParseAddr("192.0.2.9")}))
		}
		return p
	})

	conf := stubConf(server)
	conf.Options.Smart = true
	hintsTab, err := hints.Local(conf)
	require.NoError(t, err)
	r, err := resolv.New(conf, nil, hintsTab)
	require.NoError(t, err)
	defer r.Close()
	r.DNSPort = server.Port()

	msg, err := r.Resolve("example.net.", wire.TypeMX, wire.ClassIN, 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, 1, msg.Count(wire.SectionAN))

	it := wire.Iter{Section: wire.SectionAR, Type: wire.TypeA, Name: "mail.example.net."}
	it.Init(msg, nil)
	rr, ok := it.Next(msg)
	require.True(t, ok, "smart mode attached the exchanger's address")
	rd, err := wire.ParseRData(rr, msg)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.9", rd.String())
}

func TestSmartModeMXFallbackToA(t *testing.T) {
	t.Parallel()
	server := serveUDP(t, "127.0.0.1", 0, func(qname string, qtype wire.Type) *wire.Packet {
		p := reply(t, qname, qtype)
		if qtype == wire.TypeA {
			require.NoError(t, p.Push(wire.SectionAN, qname, wire.TypeA, wire.ClassIN, 300,
				wire.A{Addr: netip.MustParseAddr("192.0.2.77")}))
		}
		return p // MX queries get an empty NOERROR answer
	})

	conf := stubConf(server)
	conf.Options.Smart = true
	hintsTab, err := hints.Local(conf)
	require.NoError(t, err)
	r, err := resolv.New(conf, nil, hintsTab)
	require.NoError(t, err)
	defer r.Close()
	r.DNSPort = server.Port()

	msg, err := r.Resolve("bare.example.net.", wire.TypeMX, wire.ClassIN, 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Zero(t, msg.Count(wire.SectionAN))

	it := wire.Iter{Section: wire.SectionAR, Type: wire.TypeA}
	it.Init(msg, nil)
	rr, ok := it.Next(msg)
	require.True(t, ok, "no-MX fallback resolved the bare name")
	rd, err := wire.ParseRData(rr, msg)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.77", rd.String())
}

func TestCacheShortCircuitsRepeatQueries(t *testing.T) {
	t.Parallel()
	var queries atomic.Int32
	server := serveUDP(t, "127.0.0.1", 0, func(qname string, qtype wire.Type) *wire.Packet {
		queries.Add(1)
		p := reply(t, qname, qtype)
		require.NoError(t, p.Push(wire.SectionAN, qname, wire.TypeA, wire.ClassIN, 300,
			wire.A{Addr: netip.MustParseAddr("203.0.113.12")}))
		return p
	})

	conf := stubConf(server)
	hintsTab, err := hints.Local(conf)
	require.NoError(t, err)
	r, err := resolv.New(conf, nil, hintsTab, resolv.WithCache(cache.New()))
	require.NoError(t, err)
	defer r.Close()
	r.DNSPort = server.Port()

	first, err := r.Resolve("repeat.example.", wire.TypeA, wire.ClassIN, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, first.Count(wire.SectionAN))

	second, err := r.Resolve("repeat.example.", wire.TypeA, wire.ClassIN, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, second.Count(wire.SectionAN))
	assert.Equal(t, int32(1), queries.Load(), "second resolve served from cache")
}

func TestElapsedUsesInjectedClock(t *testing.T) {
	t.Parallel()
	now := time.Unix(5000, 0)
	r, err := resolv.New(nil, nil, hints.New(), resolv.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Submit("clock.example.", wire.TypeA, wire.ClassIN))
	now = now.Add(3 * time.Second)
	assert.Equal(t, 3*time.Second, r.Elapsed())
}

func TestResetReturnsToSubmitReady(t *testing.T) {
	t.Parallel()
	server := serveUDP(t, "127.0.0.1", 0, func(qname string, qtype wire.Type) *wire.Packet {
		p := reply(t, qname, qtype)
		require.NoError(t, p.Push(wire.SectionAN, qname, wire.TypeA, wire.ClassIN, 300,
			wire.A{Addr: netip.MustParseAddr("192.0.2.1")}))
		return p
	})

	conf := stubConf(server)
	hintsTab, err := hints.Local(conf)
	require.NoError(t, err)
	r, err := resolv.New(conf, nil, hintsTab)
	require.NoError(t, err)
	defer r.Close()
	r.DNSPort = server.Port()

	require.NoError(t, r.Submit("abandoned.example.", wire.TypeA, wire.ClassIN))
	r.Reset()
	_, err = r.Fetch()
	assert.ErrorIs(t, err, resolv.ErrUnknown, "no answer after reset")

	msg, err := r.Resolve("fresh.example.", wire.TypeA, wire.ClassIN, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, msg.Count(wire.SectionAN))
}
