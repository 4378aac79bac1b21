package wire

// RR locates one resource record inside a packet: offsets and lengths for
// the owner name and rdata, plus the fixed fields and the section the
// record sits in.
type RR struct {
	NameOff int
	NameLen int
	Type    Type
	Class   Class
	TTL     uint32
	RDOff   int
	RDLen   int
	Section Section
}

// ParseRR decodes the record starting at src. Records at offset 12 within
// the question count are questions: no ttl, no rdata.
func (p *Packet) ParseRR(src int) (RR, error) {
	var rr RR
	if src >= p.end {
		return rr, ErrIllegal
	}
	rr.NameOff = src
	cur := p.SkipName(src)
	rr.NameLen = cur - src

	if p.end-cur < 4 {
		return rr, ErrIllegal
	}
	rr.Type = Type(uint16(p.Data[cur])<<8 | uint16(p.Data[cur+1]))
	rr.Class = Class(uint16(p.Data[cur+2])<<8 | uint16(p.Data[cur+3]))
	cur += 4

	if src == HeaderSize {
		rr.Section = SectionQD
		return rr, nil
	}

	if p.end-cur < 4 {
		return rr, ErrIllegal
	}
	rr.TTL = uint32(0x7f&p.Data[cur])<<24 | uint32(p.Data[cur+1])<<16 |
		uint32(p.Data[cur+2])<<8 | uint32(p.Data[cur+3])
	cur += 4

	if p.end-cur < 2 {
		return rr, ErrIllegal
	}
	rr.RDLen = int(p.Data[cur])<<8 | int(p.Data[cur+1])
	rr.RDOff = cur + 2
	cur += 2

	if p.end-cur < rr.RDLen {
		return rr, ErrIllegal
	}
	return rr, nil
}

// Question returns the first question record.
func (p *Packet) Question() (RR, error) {
	rr, err := p.ParseRR(HeaderSize)
	if err != nil {
		return rr, err
	}
	rr.Section = SectionQD
	return rr, nil
}

func (p *Packet) rrLen(rr RR) int {
	n := rr.NameLen + 4
	if rr.NameOff == HeaderSize {
		return n
	}
	return n + 4 + 2 + rr.RDLen
}

// rrSkip returns the offset just past the record at src.
func (p *Packet) rrSkip(src int) int {
	rr, err := p.ParseRR(src)
	if err != nil {
		return p.end
	}
	return src + p.rrLen(rr)
}

// sectionAt classifies the record at src by counting records from the
// start of the message against the header counts.
func (p *Packet) sectionAt(src int) Section {
	index := 0
	for rp := HeaderSize; rp < src && rp < p.end; index++ {
		rp = p.rrSkip(rp)
	}
	section := SectionQD
	count := p.Count(section)
	for index >= count && section < SectionAR {
		section <<= 1
		count += p.Count(section)
	}
	return SectionAll & section
}

// CopyRR re-encodes a record from src into dst under rr.Section,
// recompressing the owner and any rdata names against dst's dictionary.
func CopyRR(dst *Packet, rr RR, src *Packet) error {
	name, err := src.ExpandName(rr.NameOff)
	if err != nil {
		return err
	}
	if rr.Section == SectionQD {
		return dst.PushQuestion(name, rr.Type, rr.Class)
	}
	rd, err := ParseRData(rr, src)
	if err != nil {
		return err
	}
	return dst.Push(rr.Section, name, rr.Type, rr.Class, rr.TTL, rd)
}

// CompareRR is a total order over records: type, class, case-insensitive
// owner name, then canonical rdata.
func CompareRR(a RR, ap *Packet, b RR, bp *Packet) int {
	if cmp := int(a.Type) - int(b.Type); cmp != 0 {
		return cmp
	}
	if cmp := int(a.Class) - int(b.Class); cmp != 0 {
		return cmp
	}
	an, err := ap.ExpandName(a.NameOff)
	if err != nil {
		return -1
	}
	bn, err := bp.ExpandName(b.NameOff)
	if err != nil {
		return 1
	}
	if cmp := compareFold(an, bn); cmp != 0 {
		return cmp
	}
	ad, err := ParseRData(a, ap)
	if err != nil {
		return -1
	}
	bd, err := ParseRData(b, bp)
	if err != nil {
		return 1
	}
	return CompareRData(ad, bd)
}

// ExistsRR reports whether dst already holds a record equal to rr (same
// section and type, equal under CompareRR).
func ExistsRR(rr RR, src, dst *Packet) bool {
	it := Iter{Section: rr.Section, Type: rr.Type}
	it.Init(dst, nil)
	for {
		other, ok := it.Next(dst)
		if !ok {
			return false
		}
		if CompareRR(rr, src, other, dst) == 0 {
			return true
		}
	}
}
