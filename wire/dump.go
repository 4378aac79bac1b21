package wire

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes a dig-style rendering of the message, for trace output and
// the CLI.
func (p *Packet) Dump(w io.Writer) {
	var flags []string
	if p.QR() {
		flags = append(flags, "qr")
	}
	if p.AA() {
		flags = append(flags, "aa")
	}
	if p.TC() {
		flags = append(flags, "tc")
	}
	if p.RD() {
		flags = append(flags, "rd")
	}
	if p.RA() {
		flags = append(flags, "ra")
	}
	fmt.Fprintf(w, ";; opcode: %s, status: %s, id: %d\n", p.Opcode(), p.Rcode(), p.ID())
	fmt.Fprintf(w, ";; flags: %s; QUERY: %d, ANSWER: %d, AUTHORITY: %d, ADDITIONAL: %d\n",
		strings.Join(flags, " "),
		p.Count(SectionQD), p.Count(SectionAN), p.Count(SectionNS), p.Count(SectionAR))

	for _, section := range []Section{SectionQD, SectionAN, SectionNS, SectionAR} {
		if p.Count(section) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n;; %s SECTION:\n", section)
		it := Iter{Section: section}
		it.Init(p, nil)
		for {
			rr, ok := it.Next(p)
			if !ok {
				break
			}
			name, err := p.ExpandName(rr.NameOff)
			if err != nil {
				continue
			}
			if section == SectionQD {
				fmt.Fprintf(w, ";%s %s %s\n", name, rr.Class, rr.Type)
				continue
			}
			rd, err := ParseRData(rr, p)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "%s %d %s %s %s\n", name, rr.TTL, rr.Class, rr.Type, rd)
		}
	}
}

// String renders the message as Dump would print it.
func (p *Packet) String() string {
	var b strings.Builder
	p.Dump(&b)
	return b.String()
}
