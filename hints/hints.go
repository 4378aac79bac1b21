// Package hints keeps per-zone pools of nameserver addresses and
// synthesizes the "where to ask next" answers that seed iterative
// resolution.
package hints

import (
	"fmt"
	"io"
	"net/netip"
	"strings"

	"github.com/dnslab/resolv/permute"
	"github.com/dnslab/resolv/resconf"
	"github.com/dnslab/resolv/wire"
)

//go:generate go run ../cmd/genhints roothints.gen.go

// ZoneSize bounds the address pool of one zone; inserts past it overwrite
// ring-style.
const ZoneSize = 16

type addrPriority struct {
	addr     netip.AddrPort
	priority int
}

type zone struct {
	name  string // anchored
	addrs [ZoneSize]addrPriority
	count int
	wrap  int // next slot to overwrite once the pool is full
}

// Table maps zones to priority-ordered nameserver address pools. It is
// immutable once shared between resolvers.
type Table struct {
	zones []*zone
}

func New() *Table {
	return &Table{}
}

// Local returns a table whose root zone holds the configured nameservers.
func Local(conf *resconf.Config) (*Table, error) {
	t := New()
	if n := t.InsertConfig(".", conf); n == 0 {
		return nil, fmt.Errorf("hints: no nameservers configured")
	}
	return t, nil
}

// Root returns a table pre-populated with the baked-in root server
// addresses.
func Root() *Table {
	t := New()
	for _, addr := range roots {
		_ = t.Insert(".", netip.AddrPortFrom(addr, 53), 1)
	}
	return t
}

func (t *Table) fetch(name string) *zone {
	for _, z := range t.zones {
		if strings.EqualFold(z.name, name) {
			return z
		}
	}
	return nil
}

// Insert adds or overwrites an address in the zone's pool. Zones are keyed
// case-insensitively by anchored name; priorities below 1 are clamped.
func (t *Table) Insert(zoneName string, addr netip.AddrPort, priority int) error {
	if !addr.Addr().IsValid() {
		return fmt.Errorf("hints: invalid address for zone %q", zoneName)
	}
	zoneName = wire.Anchor(zoneName)
	z := t.fetch(zoneName)
	if z == nil {
		z = &zone{name: zoneName}
		t.zones = append(t.zones, z)
	}
	if priority < 1 {
		priority = 1
	}
	i := z.count
	if z.count < ZoneSize {
		z.count++
	} else {
		i = z.wrap
		z.wrap = (z.wrap + 1) % ZoneSize
	}
	z.addrs[i] = addrPriority{addr: addr, priority: priority}
	return nil
}

// InsertConfig loads a configuration's nameservers into the zone,
// reporting how many were inserted. Priorities ascend per server unless
// rotation is on, in which case all share priority 1 and the shuffle
// spreads the load.
func (t *Table) InsertConfig(zoneName string, conf *resconf.Config) int {
	n := 0
	p := 1
	for _, ns := range conf.Nameservers {
		if err := t.Insert(zoneName, ns, p); err != nil {
			break
		}
		n++
		if !conf.Options.Rotate {
			p++
		}
	}
	return n
}

// Iter walks one zone's pool: ascending priority, equal priorities in an
// order keyed by a per-iteration seed.
type Iter struct {
	Zone string

	seed uint32
	next int
}

func (it *Iter) cmp(z *zone, a, b int) int {
	if cmp := z.addrs[a].priority - z.addrs[b].priority; cmp != 0 {
		return cmp
	}
	return int(permute.Shuffle8(uint16(a), it.seed)) - int(permute.Shuffle8(uint16(b), it.seed))
}

func (it *Iter) start(z *zone) int {
	p0 := 0
	for p := 1; p < z.count; p++ {
		if it.cmp(z, p, p0) < 0 {
			p0 = p
		}
	}
	return p0
}

func (it *Iter) skip(z *zone, p0 int) int {
	pz := z.count
	for p := 0; p < z.count; p++ {
		if it.cmp(z, p, p0) > 0 {
			pz = p
			break
		}
	}
	if pz == z.count {
		return pz
	}
	for p := pz + 1; p < z.count; p++ {
		if it.cmp(z, p, p0) <= 0 {
			continue
		}
		if it.cmp(z, p, pz) >= 0 {
			continue
		}
		pz = p
	}
	return pz
}

// Init rewinds the iterator and draws a fresh nonzero seed from rng (nil
// uses the platform CSPRNG). The seed is held for the iterator's lifetime
// so ordering is stable within one query.
func (it *Iter) Init(t *Table, rng func() uint32) {
	if rng == nil {
		rng = permute.Random
	}
	for it.seed = rng(); it.seed == 0; it.seed = rng() {
	}
	it.next = 0
	if z := t.fetch(wire.Anchor(it.Zone)); z != nil {
		it.next = it.start(z)
	}
}

// Next yields the zone's addresses one at a time.
func (it *Iter) Next(t *Table) (netip.AddrPort, bool) {
	z := t.fetch(wire.Anchor(it.Zone))
	if z == nil || it.next >= z.count {
		return netip.AddrPort{}, false
	}
	addr := z.addrs[it.next].addr
	it.next = it.skip(z, it.next)
	return addr, true
}

// Query synthesizes a hints answer for the question in q: QR=1, the
// question echoed, one NS record naming hints.local. in AUTHORITY, and an
// A or AAAA record in ADDITIONAL for every address serving any suffix of
// the qname, nearest suffixes first.
func (t *Table) Query(q *wire.Packet, rng func() uint32) (*wire.Packet, error) {
	rr, err := q.Question()
	if err != nil {
		return nil, err
	}
	zoneName, err := q.ExpandName(rr.NameOff)
	if err != nil {
		return nil, err
	}

	p := wire.New(512)
	p.SetQR(true)
	if err := wire.CopyRR(p, rr, q); err != nil {
		return nil, err
	}
	if err := p.Push(wire.SectionNS, ".", wire.TypeNS, wire.ClassIN, 0, wire.NS{Host: "hints.local."}); err != nil {
		return nil, err
	}

	for {
		it := Iter{Zone: zoneName}
		it.Init(t, rng)
		for {
			addr, ok := it.Next(t)
			if !ok {
				break
			}
			var rd wire.RData
			rtype := wire.TypeA
			if addr.Addr().Is4() {
				rd = wire.A{Addr: addr.Addr()}
			} else {
				rtype = wire.TypeAAAA
				rd = wire.AAAA{Addr: addr.Addr()}
			}
			if err := p.Push(wire.SectionAR, "hints.local.", rtype, wire.ClassIN, 0, rd); err != nil {
				return nil, err
			}
		}
		if zoneName = wire.Cleave(zoneName); zoneName == "" {
			break
		}
	}

	return p, nil
}

// Dump writes the table contents for inspection.
func (t *Table) Dump(w io.Writer) {
	for _, z := range t.zones {
		fmt.Fprintf(w, "ZONE %q\n", z.name)
		for i := 0; i < z.count; i++ {
			fmt.Fprintf(w, "\t(%d) %s\n", z.addrs[i].priority, z.addrs[i].addr)
		}
	}
}
