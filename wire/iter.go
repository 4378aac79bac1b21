package wire

import "github.com/dnslab/resolv/permute"

// SortFunc orders two records during iteration. Comparators may consult
// the iterator for a shuffle seed or a caller argument.
type SortFunc func(a, b RR, it *Iter, p *Packet) int

// SortPacket yields records in wire order.
func SortPacket(a, b RR, _ *Iter, _ *Packet) int {
	return a.NameOff - b.NameOff
}

// SortOrder yields records in canonical order: section, then packet order
// across types, then CompareRR within a type.
func SortOrder(a, b RR, _ *Iter, p *Packet) int {
	if cmp := int(a.Section) - int(b.Section); cmp != 0 {
		return cmp
	}
	if a.Type != b.Type {
		return a.NameOff - b.NameOff
	}
	return CompareRR(a, p, b, p)
}

// SortShuffle yields records of a section in an order keyed by the
// iterator seed, for rrset load balancing.
func SortShuffle(a, b RR, it *Iter, _ *Packet) int {
	for it.seed == 0 {
		it.seed = permute.Random()
	}
	if cmp := int(a.Section) - int(b.Section); cmp != 0 {
		return cmp
	}
	return int(permute.Shuffle8(uint16(a.NameOff), it.seed)) -
		int(permute.Shuffle8(uint16(b.NameOff), it.seed))
}

type iterState struct {
	started bool
	next    int
	count   int
}

// Iter walks a packet's records, filtered by section, type, class, owner
// name, and rdata, in the order given by Sort. Iteration is a lazy
// selection sort: no record list is materialized, so records appended to
// the packet mid-iteration are picked up after a Rewind.
type Iter struct {
	Section Section
	Type    Type
	Class   Class
	Name    string
	Data    RData
	Sort    SortFunc
	Arg     int // comparator argument, e.g. the packet end at Init

	seed  uint32
	state iterState
	saved iterState
}

// Init resets the iterator and draws a fresh nonzero shuffle seed from
// rng. With a nil rng the seed is drawn lazily from the platform CSPRNG
// the first time a shuffle comparator needs it.
func (it *Iter) Init(p *Packet, rng func() uint32) {
	it.state = iterState{}
	it.saved = it.state
	it.seed = 0
	if rng != nil {
		for it.seed = rng(); it.seed == 0; it.seed = rng() {
		}
	}
}

// Save checkpoints the iteration position.
func (it *Iter) Save() { it.saved = it.state }

// Rewind returns to the last checkpoint so re-sorted records (for
// instance, freshly glued nameservers) are revisited.
func (it *Iter) Rewind() { it.state = it.saved }

// Count returns how many records have been yielded since Init.
func (it *Iter) Count() int { return it.state.count }

// Seed exposes the per-iteration shuffle seed.
func (it *Iter) Seed() uint32 { return it.seed }

func (it *Iter) match(rr RR, p *Packet) bool {
	if it.Section != 0 && rr.Section&it.Section == 0 {
		return false
	}
	if it.Type != 0 && rr.Type != it.Type && it.Type != TypeAll {
		return false
	}
	if it.Class != 0 && rr.Class != it.Class && it.Class != ClassAny {
		return false
	}
	if it.Name != "" {
		dn, err := p.ExpandName(rr.NameOff)
		if err != nil || compareFold(dn, it.Name) != 0 {
			return false
		}
	}
	if it.Data != nil && it.Type != 0 && rr.Section != SectionQD {
		rd, err := ParseRData(rr, p)
		if err != nil || CompareRData(rd, it.Data) != 0 {
			return false
		}
	}
	return true
}

func (it *Iter) sort(a, b RR, p *Packet) int {
	if it.Sort == nil {
		return SortPacket(a, b, it, p)
	}
	return it.Sort(a, b, it, p)
}

// start finds the least matching record under the sort order.
func (it *Iter) start(p *Packet) int {
	var r0 RR
	found := false
	for rp := HeaderSize; rp < p.end; rp = p.rrSkip(rp) {
		rr, err := p.ParseRR(rp)
		if err != nil {
			continue
		}
		rr.Section = p.sectionAt(rp)
		if !it.match(rr, p) {
			continue
		}
		if !found || it.sort(rr, r0, p) < 0 {
			r0 = rr
			found = true
		}
	}
	if !found {
		return p.end
	}
	return r0.NameOff
}

// skip finds the least matching record strictly greater than the one at
// rp under the sort order.
func (it *Iter) skip(rp int, p *Packet) int {
	r0, err := p.ParseRR(rp)
	if err != nil {
		return p.end
	}
	r0.Section = p.sectionAt(rp)

	var rz RR
	found := false
	for cur := HeaderSize; cur < p.end; cur = p.rrSkip(cur) {
		rr, err := p.ParseRR(cur)
		if err != nil {
			continue
		}
		rr.Section = p.sectionAt(cur)
		if !it.match(rr, p) {
			continue
		}
		if it.sort(rr, r0, p) <= 0 {
			continue
		}
		if found && it.sort(rr, rz, p) >= 0 {
			continue
		}
		rz = rr
		found = true
	}
	if !found {
		return p.end
	}
	return rz.NameOff
}

// Next yields the next matching record.
func (it *Iter) Next(p *Packet) (RR, bool) {
	if !it.state.started {
		it.state.next = it.start(p)
		it.state.started = true
	}
	if it.state.next >= p.end {
		return RR{}, false
	}
	rr, err := p.ParseRR(it.state.next)
	if err != nil {
		return RR{}, false
	}
	rr.Section = p.sectionAt(it.state.next)
	it.state.count++
	it.state.next = it.skip(it.state.next, p)
	return rr, true
}

// Grep collects up to lim matching records (lim < 0 collects all).
func (it *Iter) Grep(p *Packet, lim int) []RR {
	var out []RR
	for lim < 0 || len(out) < lim {
		rr, ok := it.Next(p)
		if !ok {
			break
		}
		out = append(out, rr)
	}
	return out
}
