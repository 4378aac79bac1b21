package wire

import (
	"fmt"
	"net/netip"
	"strings"
)

// Anchor makes a presentation name absolute by appending a trailing dot
// when one is missing. Anchoring an anchored name is a no-op.
func Anchor(name string) string {
	if name == "" || name[len(name)-1] == '.' {
		return name
	}
	return name + "."
}

// Cleave drops the leftmost label of an anchored name. Cleaving "com."
// yields "."; cleaving the root yields "".
func Cleave(name string) string {
	if len(name) == 0 {
		return ""
	}
	i := strings.IndexByte(name[1:], '.')
	if i < 0 {
		return ""
	}
	i++
	if i+1 < len(name) {
		return name[i+1:]
	}
	return name[i:]
}

// Arpa returns the reverse-lookup name for an address: the octet-reversed
// form under in-addr.arpa. for IPv4, the nibble-reversed form under
// ip6.arpa. for IPv6.
func Arpa(addr netip.Addr) string {
	if addr.Is4() || addr.Is4In6() {
		a4 := addr.As4()
		return fmt.Sprintf("%d.%d.%d.%d.in-addr.arpa.", a4[3], a4[2], a4[1], a4[0])
	}
	const hex = "0123456789abcdef"
	a16 := addr.As16()
	var b strings.Builder
	for i := len(a16) - 1; i >= 0; i-- {
		b.WriteByte(hex[a16[i]&0x0f])
		b.WriteByte('.')
		b.WriteByte(hex[a16[i]>>4])
		b.WriteByte('.')
	}
	b.WriteString("ip6.arpa.")
	return b.String()
}

// encodeName converts a presentation name to uncompressed wire labels.
func encodeName(name string) ([]byte, error) {
	if name == "" || name == "." {
		return []byte{0}, nil
	}
	name = strings.TrimSuffix(name, ".")
	out := make([]byte, 0, len(name)+2)
	for len(name) > 0 {
		label := name
		if i := strings.IndexByte(name, '.'); i >= 0 {
			label, name = name[:i], name[i+1:]
		} else {
			name = ""
		}
		if len(label) == 0 || len(label) > MaxLabel {
			return nil, ErrIllegal
		}
		out = append(out, byte(len(label)))
		out = append(out, label...)
	}
	out = append(out, 0)
	if len(out) > MaxName {
		return nil, ErrIllegal
	}
	return out, nil
}

// labelAt decodes the label starting at src, transparently chasing
// compression pointers. It returns the label bytes and the offset of the
// next label within the spelling being walked. A nil label means the
// terminal zero length (next is just past it) or invalid data (next is
// end).
func labelAt(data []byte, src, end int) ([]byte, int) {
	nptrs := 0
	for {
		if src >= end {
			return nil, end
		}
		switch data[src] & 0xc0 {
		case 0x00:
			n := int(data[src] & 0x3f)
			src++
			if end-src < n {
				return nil, end
			}
			if n == 0 {
				return nil, src
			}
			return data[src : src+n], src + n
		case 0xc0:
			nptrs++
			if nptrs > MaxPtrs || end-src < 2 {
				return nil, end
			}
			src = int(data[src]&0x3f)<<8 | int(data[src+1])
		default:
			return nil, end
		}
	}
}

// labelSkip advances past the label at src without chasing pointers. A
// terminal zero, a pointer, or invalid data all yield end, stopping walks
// over a single in-place spelling.
func labelSkip(src int, data []byte, end int) int {
	if src >= end {
		return end
	}
	switch data[src] & 0xc0 {
	case 0x00:
		n := int(data[src] & 0x3f)
		src++
		if n == 0 || end-src < n {
			return end
		}
		return src + n
	default:
		return end
	}
}

func labelEqualFold(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// compressName rewrites raw (an uncompressed spelling) against the packet
// dictionary: the longest case-insensitive suffix already present in the
// packet is replaced by a two-byte back pointer, provided the target offset
// fits in 14 bits.
func (p *Packet) compressName(raw []byte) []byte {
	for ap := 0; ; {
		alabel, anext := labelAt(raw, ap, len(raw))
		if alabel == nil {
			break
		}
		for i := 0; i < dictSize && p.dict[i] != 0; i++ {
			for bp := int(p.dict[i]); ; {
				blabel, bnext := labelAt(p.Data, bp, p.end)
				if blabel == nil {
					break
				}
				al, an := alabel, anext
				bl, bn := blabel, bnext
				for al != nil && bl != nil && labelEqualFold(al, bl) {
					al, an = labelAt(raw, an, len(raw))
					bl, bn = labelAt(p.Data, bn, p.end)
				}
				if al == nil && bl == nil && bp <= 0x3fff {
					out := make([]byte, ap+2)
					copy(out, raw[:ap])
					out[ap] = 0xc0 | byte(bp>>8)
					out[ap+1] = byte(bp)
					return out
				}
				bp = bnext
			}
		}
		ap = anext
	}
	return raw
}

// pushName appends a (compressed) owner name and registers its offset in
// the dictionary.
func (p *Packet) pushName(name string) error {
	raw, err := encodeName(name)
	if err != nil {
		return err
	}
	enc := p.compressName(raw)
	if len(p.Data)-p.end < len(enc) {
		return ErrNoBufs
	}
	dn := p.end
	copy(p.Data[p.end:], enc)
	p.end += len(enc)
	p.dictAdd(dn)
	return nil
}

// ExpandName decodes the name at the given offset into presentation form
// with a trailing dot, chasing pointers with loop defense.
func (p *Packet) ExpandName(off int) (string, error) {
	var b strings.Builder
	nptrs := 0
	src := off
	for src < p.end {
		switch p.Data[src] & 0xc0 {
		case 0x00:
			n := int(p.Data[src] & 0x3f)
			if n == 0 {
				if b.Len() == 0 {
					return ".", nil
				}
				return b.String(), nil
			}
			src++
			if p.end-src < n {
				return "", ErrIllegal
			}
			b.Write(p.Data[src : src+n])
			b.WriteByte('.')
			if b.Len() > MaxName {
				return "", ErrIllegal
			}
			src += n
			nptrs = 0
		case 0xc0:
			nptrs++
			if nptrs > MaxPtrs {
				return "", ErrIllegal
			}
			if p.end-src < 2 {
				return "", ErrIllegal
			}
			src = int(p.Data[src]&0x3f)<<8 | int(p.Data[src+1])
		default:
			return "", ErrIllegal
		}
	}
	return "", ErrIllegal
}

// SkipName returns the offset just past the name starting at src. Invalid
// spellings yield the packet end so scans terminate.
func (p *Packet) SkipName(src int) int {
	for src < p.end {
		switch p.Data[src] & 0xc0 {
		case 0x00:
			n := int(p.Data[src] & 0x3f)
			src++
			if n == 0 {
				return src
			}
			if p.end-src > n {
				src += n
			} else {
				return p.end
			}
		case 0xc0:
			if p.end-src < 2 {
				return p.end
			}
			return src + 2
		default:
			return p.end
		}
	}
	return p.end
}
