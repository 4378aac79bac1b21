package wire

// dictSize bounds the per-packet compression dictionary.
const dictSize = 16

// Packet is a DNS message under construction or inspection. Data[0:End()]
// always forms a syntactically valid message whose header counts match the
// records reachable by scanning from offset 12.
type Packet struct {
	Data []byte
	end  int
	dict [dictSize]uint16
}

// New returns a packet with a zeroed header over a fresh buffer of the
// given capacity (at least HeaderSize).
func New(size int) *Packet {
	if size < HeaderSize {
		size = HeaderSize
	}
	p := &Packet{Data: make([]byte, size)}
	p.Reset()
	return p
}

// Init wraps a caller-owned buffer, writing a zeroed header. The buffer
// must hold at least HeaderSize bytes.
func Init(buf []byte) *Packet {
	p := &Packet{Data: buf}
	p.Reset()
	return p
}

// Reset zeroes the header, empties the compression dictionary, and rewinds
// the end cursor to just past the header.
func (p *Packet) Reset() {
	for i := 0; i < HeaderSize; i++ {
		p.Data[i] = 0
	}
	p.dict = [dictSize]uint16{}
	p.end = HeaderSize
}

// End returns the end cursor: the number of valid message bytes.
func (p *Packet) End() int { return p.end }

// SetEnd moves the end cursor; used by transports that fill Data directly.
func (p *Packet) SetEnd(end int) {
	if end < HeaderSize {
		end = HeaderSize
	}
	if end > len(p.Data) {
		end = len(p.Data)
	}
	p.end = end
}

// Size returns the buffer capacity.
func (p *Packet) Size() int { return len(p.Data) }

// Bytes returns the valid message bytes.
func (p *Packet) Bytes() []byte { return p.Data[:p.end] }

// Copy returns a new packet of exactly src's occupancy holding src's bytes.
// The compression dictionary is not carried over; it is rebuilt as names
// are pushed.
func Copy(src *Packet) *Packet {
	dst := New(src.end)
	copy(dst.Data, src.Data[:src.end])
	dst.end = src.end
	return dst
}

// Header accessors. The first 12 bytes are the standard DNS header.

func (p *Packet) ID() uint16 { return uint16(p.Data[0])<<8 | uint16(p.Data[1]) }

func (p *Packet) SetID(id uint16) {
	p.Data[0] = byte(id >> 8)
	p.Data[1] = byte(id)
}

func (p *Packet) flag(off int, mask byte) bool { return p.Data[off]&mask != 0 }

func (p *Packet) setFlag(off int, mask byte, v bool) {
	if v {
		p.Data[off] |= mask
	} else {
		p.Data[off] &^= mask
	}
}

func (p *Packet) QR() bool      { return p.flag(2, 0x80) }
func (p *Packet) SetQR(v bool)  { p.setFlag(2, 0x80, v) }
func (p *Packet) AA() bool      { return p.flag(2, 0x04) }
func (p *Packet) SetAA(v bool)  { p.setFlag(2, 0x04, v) }
func (p *Packet) TC() bool      { return p.flag(2, 0x02) }
func (p *Packet) SetTC(v bool)  { p.setFlag(2, 0x02, v) }
func (p *Packet) RD() bool      { return p.flag(2, 0x01) }
func (p *Packet) SetRD(v bool)  { p.setFlag(2, 0x01, v) }
func (p *Packet) RA() bool      { return p.flag(3, 0x80) }
func (p *Packet) SetRA(v bool)  { p.setFlag(3, 0x80, v) }

func (p *Packet) Opcode() Opcode { return Opcode(p.Data[2] >> 3 & 0x0f) }

func (p *Packet) SetOpcode(op Opcode) {
	p.Data[2] = p.Data[2]&^0x78 | byte(op&0x0f)<<3
}

func (p *Packet) Rcode() Rcode { return Rcode(p.Data[3] & 0x0f) }

func (p *Packet) SetRcode(rc Rcode) {
	p.Data[3] = p.Data[3]&^0x0f | byte(rc&0x0f)
}

func (p *Packet) count(off int) int {
	return int(p.Data[off])<<8 | int(p.Data[off+1])
}

func (p *Packet) setCount(off, n int) {
	p.Data[off] = byte(n >> 8)
	p.Data[off+1] = byte(n)
}

func sectionCountOffset(s Section) int {
	switch s {
	case SectionQD:
		return 4
	case SectionAN:
		return 6
	case SectionNS:
		return 8
	case SectionAR:
		return 10
	}
	return -1
}

// Count returns the header count for a section, or the sum of all four for
// SectionAll.
func (p *Packet) Count(s Section) int {
	if s == SectionAll {
		return p.count(4) + p.count(6) + p.count(8) + p.count(10)
	}
	if off := sectionCountOffset(s); off >= 0 {
		return p.count(off)
	}
	return 0
}

func (p *Packet) bumpCount(s Section) {
	if off := sectionCountOffset(s); off >= 0 {
		p.setCount(off, p.count(off)+1)
	}
}

// Push appends a record to the given section, compressing the owner name
// against the packet dictionary. Question records carry no ttl or rdata
// (pass nil). The ttl top bit is forced to zero on the wire. On any
// failure the end cursor is rolled back and the counts are untouched.
func (p *Packet) Push(section Section, name string, typ Type, class Class, ttl uint32, rd RData) error {
	end := p.end

	if err := p.pushName(name); err != nil {
		p.end = end
		return err
	}

	if len(p.Data)-p.end < 4 {
		p.end = end
		return ErrNoBufs
	}
	p.Data[p.end] = byte(typ >> 8)
	p.Data[p.end+1] = byte(typ)
	p.Data[p.end+2] = byte(class >> 8)
	p.Data[p.end+3] = byte(class)
	p.end += 4

	if section == SectionQD {
		p.bumpCount(SectionQD)
		return nil
	}

	if len(p.Data)-p.end < 4 {
		p.end = end
		return ErrNoBufs
	}
	p.Data[p.end] = byte(0x7f & (ttl >> 24))
	p.Data[p.end+1] = byte(ttl >> 16)
	p.Data[p.end+2] = byte(ttl >> 8)
	p.Data[p.end+3] = byte(ttl)
	p.end += 4

	if rd == nil {
		rd = Opaque{}
	}
	if err := rd.push(p); err != nil {
		p.end = end
		return err
	}

	p.bumpCount(section)
	return nil
}

// PushQuestion appends a question record.
func (p *Packet) PushQuestion(name string, typ Type, class Class) error {
	return p.Push(SectionQD, name, typ, class, 0, nil)
}

// dictAdd records the offset of a freshly written owner name. If the name
// ends in a pointer to an offset already present, the entry is replaced so
// the dictionary keeps pointing at the longest available spellings.
func (p *Packet) dictAdd(dn int) {
	lp := dn
	for lp < p.end {
		if p.Data[lp]&0xc0 == 0xc0 && p.end-lp >= 2 && lp != dn {
			lptr := uint16(0x3f&p.Data[lp])<<8 | uint16(p.Data[lp+1])
			for i := 0; i < dictSize && p.dict[i] != 0; i++ {
				if p.dict[i] == lptr {
					p.dict[i] = uint16(dn)
					return
				}
			}
		}
		lp = labelSkip(lp, p.Data, p.end)
	}
	for i := 0; i < dictSize; i++ {
		if p.dict[i] == 0 {
			p.dict[i] = uint16(dn)
			return
		}
	}
}
