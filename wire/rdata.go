package wire

import (
	"bytes"
	"fmt"
	"net/netip"
	"strings"
)

// RData is a typed view over a record's rdata bytes. Every variant can
// serialize itself into a packet, order itself against another value of
// the same variant, and print its presentation form. Unknown types fall
// back to Opaque.
type RData interface {
	push(p *Packet) error
	cmp(other RData) int
	String() string
}

// ParseRData decodes the rdata of rr into its typed variant. Question
// records have no rdata and yield nil.
func ParseRData(rr RR, p *Packet) (RData, error) {
	if rr.Section == SectionQD {
		return nil, nil
	}
	switch rr.Type {
	case TypeA:
		return parseA(rr, p)
	case TypeAAAA:
		return parseAAAA(rr, p)
	case TypeNS:
		host, err := parseHost(rr.RDOff, p)
		return NS{Host: host}, err
	case TypePTR:
		host, err := parseHost(rr.RDOff, p)
		return PTR{Host: host}, err
	case TypeCNAME:
		host, err := parseHost(rr.RDOff, p)
		return CNAME{Host: host}, err
	case TypeMX:
		return parseMX(rr, p)
	case TypeSRV:
		return parseSRV(rr, p)
	case TypeSOA:
		return parseSOA(rr, p)
	case TypeTXT:
		return parseTXT(rr, p)
	default:
		d := make([]byte, rr.RDLen)
		copy(d, p.Data[rr.RDOff:rr.RDOff+rr.RDLen])
		return Opaque{Data: d}, nil
	}
}

// CompareRData is a total order over rdata values: variants of the same
// type compare by their canonical fields, anything else by presentation
// form.
func CompareRData(a, b RData) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	return a.cmp(b)
}

func cmpFallback(a, b RData) int {
	return strings.Compare(a.String(), b.String())
}

// setRDLen patches the 16-bit rdata length written at off once the rdata body
// is in place.
func (p *Packet) setRDLen(off, n int) {
	p.Data[off] = byte(n >> 8)
	p.Data[off+1] = byte(n)
}

// A is an IPv4 address record.
type A struct {
	Addr netip.Addr
}

func parseA(rr RR, p *Packet) (A, error) {
	if rr.RDLen != 4 {
		return A{}, ErrIllegal
	}
	var a4 [4]byte
	copy(a4[:], p.Data[rr.RDOff:])
	return A{Addr: netip.AddrFrom4(a4)}, nil
}

func (a A) push(p *Packet) error {
	if len(p.Data)-p.end < 6 {
		return ErrNoBufs
	}
	p.Data[p.end] = 0
	p.Data[p.end+1] = 4
	a4 := a.Addr.As4()
	copy(p.Data[p.end+2:], a4[:])
	p.end += 6
	return nil
}

func (a A) cmp(other RData) int {
	if b, ok := other.(A); ok {
		return a.Addr.Compare(b.Addr)
	}
	return cmpFallback(a, other)
}

func (a A) String() string { return a.Addr.String() }

// AAAA is an IPv6 address record.
type AAAA struct {
	Addr netip.Addr
}

func parseAAAA(rr RR, p *Packet) (AAAA, error) {
	if rr.RDLen != 16 {
		return AAAA{}, ErrIllegal
	}
	var a16 [16]byte
	copy(a16[:], p.Data[rr.RDOff:])
	return AAAA{Addr: netip.AddrFrom16(a16)}, nil
}

func (a AAAA) push(p *Packet) error {
	if len(p.Data)-p.end < 18 {
		return ErrNoBufs
	}
	p.Data[p.end] = 0
	p.Data[p.end+1] = 16
	a16 := a.Addr.As16()
	copy(p.Data[p.end+2:], a16[:])
	p.end += 18
	return nil
}

func (a AAAA) cmp(other RData) int {
	if b, ok := other.(AAAA); ok {
		return a.Addr.Compare(b.Addr)
	}
	return cmpFallback(a, other)
}

func (a AAAA) String() string { return a.Addr.String() }

// parseHost expands the single compressed name that NS, PTR, and CNAME
// rdata consist of.
func parseHost(off int, p *Packet) (string, error) {
	host, err := p.ExpandName(off)
	if err != nil {
		return "", err
	}
	return host, nil
}

// pushHost writes a single compressed name with its rdlen prefix.
func pushHost(p *Packet, host string) error {
	if len(p.Data)-p.end < 3 {
		return ErrNoBufs
	}
	end := p.end
	p.end += 2
	if err := p.pushName(host); err != nil {
		p.end = end
		return err
	}
	p.setRDLen(end, p.end-end-2)
	return nil
}

// NS names a zone's nameserver host.
type NS struct {
	Host string
}

func (ns NS) push(p *Packet) error { return pushHost(p, ns.Host) }

func (ns NS) cmp(other RData) int {
	if b, ok := other.(NS); ok {
		return compareFold(ns.Host, b.Host)
	}
	return cmpFallback(ns, other)
}

func (ns NS) String() string { return ns.Host }

// PTR names the host for a reverse lookup.
type PTR struct {
	Host string
}

func (ptr PTR) push(p *Packet) error { return pushHost(p, ptr.Host) }

func (ptr PTR) cmp(other RData) int {
	if b, ok := other.(PTR); ok {
		return compareFold(ptr.Host, b.Host)
	}
	return cmpFallback(ptr, other)
}

func (ptr PTR) String() string { return ptr.Host }

// CNAME names the canonical spelling of an aliased owner.
type CNAME struct {
	Host string
}

func (cn CNAME) push(p *Packet) error { return pushHost(p, cn.Host) }

func (cn CNAME) cmp(other RData) int {
	if b, ok := other.(CNAME); ok {
		return compareFold(cn.Host, b.Host)
	}
	return cmpFallback(cn, other)
}

func (cn CNAME) String() string { return cn.Host }

// MX names a mail exchange host with its preference.
type MX struct {
	Preference uint16
	Host       string
}

func parseMX(rr RR, p *Packet) (MX, error) {
	if rr.RDLen < 3 {
		return MX{}, ErrIllegal
	}
	pref := uint16(p.Data[rr.RDOff])<<8 | uint16(p.Data[rr.RDOff+1])
	host, err := p.ExpandName(rr.RDOff + 2)
	if err != nil {
		return MX{}, err
	}
	return MX{Preference: pref, Host: host}, nil
}

func (mx MX) push(p *Packet) error {
	if len(p.Data)-p.end < 5 {
		return ErrNoBufs
	}
	end := p.end
	p.end += 2
	p.Data[p.end] = byte(mx.Preference >> 8)
	p.Data[p.end+1] = byte(mx.Preference)
	p.end += 2
	if err := p.pushName(mx.Host); err != nil {
		p.end = end
		return err
	}
	p.setRDLen(end, p.end-end-2)
	return nil
}

func (mx MX) cmp(other RData) int {
	if b, ok := other.(MX); ok {
		if mx.Preference != b.Preference {
			return int(mx.Preference) - int(b.Preference)
		}
		return compareFold(mx.Host, b.Host)
	}
	return cmpFallback(mx, other)
}

func (mx MX) String() string { return fmt.Sprintf("%d %s", mx.Preference, mx.Host) }

// SRV locates a service instance.
type SRV struct {
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   string
}

func parseSRV(rr RR, p *Packet) (SRV, error) {
	if rr.RDLen < 7 {
		return SRV{}, ErrIllegal
	}
	rp := rr.RDOff
	srv := SRV{
		Priority: uint16(p.Data[rp])<<8 | uint16(p.Data[rp+1]),
		Weight:   uint16(p.Data[rp+2])<<8 | uint16(p.Data[rp+3]),
		Port:     uint16(p.Data[rp+4])<<8 | uint16(p.Data[rp+5]),
	}
	target, err := p.ExpandName(rp + 6)
	if err != nil {
		return SRV{}, err
	}
	srv.Target = target
	return srv, nil
}

// push writes the target uncompressed: SRV rdata must not carry
// compression pointers on the wire.
func (srv SRV) push(p *Packet) error {
	raw, err := encodeName(srv.Target)
	if err != nil {
		return err
	}
	n := 6 + len(raw)
	if len(p.Data)-p.end < 2+n {
		return ErrNoBufs
	}
	p.setRDLen(p.end, n)
	p.end += 2
	p.Data[p.end] = byte(srv.Priority >> 8)
	p.Data[p.end+1] = byte(srv.Priority)
	p.Data[p.end+2] = byte(srv.Weight >> 8)
	p.Data[p.end+3] = byte(srv.Weight)
	p.Data[p.end+4] = byte(srv.Port >> 8)
	p.Data[p.end+5] = byte(srv.Port)
	p.end += 6
	copy(p.Data[p.end:], raw)
	p.end += len(raw)
	return nil
}

func (srv SRV) cmp(other RData) int {
	if b, ok := other.(SRV); ok {
		if srv.Priority != b.Priority {
			return int(srv.Priority) - int(b.Priority)
		}
		if srv.Weight != b.Weight {
			return int(srv.Weight) - int(b.Weight)
		}
		if srv.Port != b.Port {
			return int(srv.Port) - int(b.Port)
		}
		return compareFold(srv.Target, b.Target)
	}
	return cmpFallback(srv, other)
}

func (srv SRV) String() string {
	return fmt.Sprintf("%d %d %d %s", srv.Priority, srv.Weight, srv.Port, srv.Target)
}

// SOA carries a zone's start of authority.
type SOA struct {
	MName   string
	RName   string
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

func parseSOA(rr RR, p *Packet) (SOA, error) {
	var soa SOA
	rp := rr.RDOff
	if rp >= p.end {
		return soa, ErrIllegal
	}
	var err error
	if soa.MName, err = p.ExpandName(rp); err != nil {
		return soa, err
	}
	if rp = p.SkipName(rp); rp >= p.end {
		return soa, ErrIllegal
	}
	if soa.RName, err = p.ExpandName(rp); err != nil {
		return soa, err
	}
	if rp = p.SkipName(rp); p.end-rp < 20 {
		return soa, ErrIllegal
	}
	for i, ts := range []*uint32{&soa.Serial, &soa.Refresh, &soa.Retry, &soa.Expire, &soa.Minimum} {
		off := rp + i*4
		*ts = uint32(p.Data[off])<<24 | uint32(p.Data[off+1])<<16 |
			uint32(p.Data[off+2])<<8 | uint32(p.Data[off+3])
	}
	return soa, nil
}

func (soa SOA) push(p *Packet) error {
	end := p.end
	if len(p.Data)-p.end < 2 {
		return ErrNoBufs
	}
	p.end += 2
	for _, dn := range []string{soa.MName, soa.RName} {
		if err := p.pushName(dn); err != nil {
			p.end = end
			return err
		}
	}
	if len(p.Data)-p.end < 20 {
		p.end = end
		return ErrNoBufs
	}
	for _, ts := range []uint32{soa.Serial, 0x7fffffff & soa.Refresh, 0x7fffffff & soa.Retry, 0x7fffffff & soa.Expire, soa.Minimum} {
		p.Data[p.end] = byte(ts >> 24)
		p.Data[p.end+1] = byte(ts >> 16)
		p.Data[p.end+2] = byte(ts >> 8)
		p.Data[p.end+3] = byte(ts)
		p.end += 4
	}
	p.setRDLen(end, p.end-end-2)
	return nil
}

func (soa SOA) cmp(other RData) int {
	b, ok := other.(SOA)
	if !ok {
		return cmpFallback(soa, other)
	}
	if cmp := compareFold(soa.MName, b.MName); cmp != 0 {
		return cmp
	}
	if cmp := compareFold(soa.RName, b.RName); cmp != 0 {
		return cmp
	}
	for _, pair := range [][2]uint32{
		{soa.Serial, b.Serial},
		{soa.Refresh, b.Refresh},
		{soa.Retry, b.Retry},
		{soa.Expire, b.Expire},
		{soa.Minimum, b.Minimum},
	} {
		if pair[0] > pair[1] {
			return -1
		}
		if pair[0] < pair[1] {
			return 1
		}
	}
	return 0
}

func (soa SOA) String() string {
	return fmt.Sprintf("%s %s %d %d %d %d %d", soa.MName, soa.RName,
		soa.Serial, soa.Refresh, soa.Retry, soa.Expire, soa.Minimum)
}

// TXT carries free-form character strings, concatenated.
type TXT struct {
	Data []byte
}

func parseTXT(rr RR, p *Packet) (TXT, error) {
	var out []byte
	sp := rr.RDOff
	end := rr.RDOff + rr.RDLen
	for sp < end {
		n := int(p.Data[sp])
		sp++
		if end-sp < n {
			return TXT{}, ErrIllegal
		}
		out = append(out, p.Data[sp:sp+n]...)
		sp += n
	}
	return TXT{Data: out}, nil
}

func (txt TXT) push(p *Packet) error {
	end := p.end
	if len(p.Data)-p.end < 2 {
		return ErrNoBufs
	}
	p.end += 2
	src := txt.Data
	for {
		n := len(src)
		if n > 255 {
			n = 255
		}
		if len(p.Data)-p.end < 1+n {
			p.end = end
			return ErrNoBufs
		}
		p.Data[p.end] = byte(n)
		p.end++
		copy(p.Data[p.end:], src[:n])
		p.end += n
		src = src[n:]
		if len(src) == 0 {
			break
		}
	}
	p.setRDLen(end, p.end-end-2)
	return nil
}

func (txt TXT) cmp(other RData) int {
	if b, ok := other.(TXT); ok {
		return bytes.Compare(txt.Data, b.Data)
	}
	return cmpFallback(txt, other)
}

func (txt TXT) String() string { return fmt.Sprintf("%q", txt.Data) }

// Opaque preserves the rdata of types the codec has no view for.
type Opaque struct {
	Data []byte
}

func (o Opaque) push(p *Packet) error {
	if len(p.Data)-p.end < 2+len(o.Data) {
		return ErrNoBufs
	}
	p.setRDLen(p.end, len(o.Data))
	p.end += 2
	copy(p.Data[p.end:], o.Data)
	p.end += len(o.Data)
	return nil
}

func (o Opaque) cmp(other RData) int {
	if b, ok := other.(Opaque); ok {
		return bytes.Compare(o.Data, b.Data)
	}
	return cmpFallback(o, other)
}

func (o Opaque) String() string {
	var b strings.Builder
	b.WriteByte('"')
	for _, ch := range o.Data {
		fmt.Fprintf(&b, "\\%03d", ch)
	}
	b.WriteByte('"')
	return b.String()
}

// compareFold orders ASCII names case-insensitively.
func compareFold(a, b string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return int(ca) - int(cb)
		}
	}
	return len(a) - len(b)
}
