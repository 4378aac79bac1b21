package resolv

import (
	"github.com/dnslab/resolv/wire"
)

// mergeExists reports whether dst already carries a record equal to rr in
// any non-question section.
func mergeExists(rr wire.RR, src, dst *wire.Packet) bool {
	it := wire.Iter{Section: wire.SectionAll &^ wire.SectionQD, Type: rr.Type}
	it.Init(dst, nil)
	for {
		other, ok := it.Next(dst)
		if !ok {
			return false
		}
		if wire.CompareRR(rr, src, other, dst) == 0 {
			return true
		}
	}
}

// merge combines two answers into one packet: p0's question, then the
// union of both packets' records per section with exact duplicates
// dropped. The buffer grows and the merge retries on overflow, up to the
// wire maximum.
func merge(p0, p1 *wire.Packet) (*wire.Packet, error) {
	if p1 == nil {
		p1 = wire.New(wire.HeaderSize)
	}
	bufsize := p0.End() + p1.End()

retry:
	p2 := wire.New(bufsize)
	p2.SetID(p0.ID())
	p2.SetQR(p0.QR())
	p2.SetRcode(p0.Rcode())

	qd := wire.Iter{Section: wire.SectionQD}
	qd.Init(p0, nil)
	for {
		rr, ok := qd.Next(p0)
		if !ok {
			break
		}
		if err := wire.CopyRR(p2, rr, p0); err != nil {
			return nil, err
		}
	}

	for section := wire.SectionAN; section&wire.SectionAll != 0; section <<= 1 {
		for _, p := range []*wire.Packet{p0, p1} {
			it := wire.Iter{Section: section}
			it.Init(p, nil)
			for {
				rr, ok := it.Next(p)
				if !ok {
					break
				}
				if mergeExists(rr, p, p2) {
					continue
				}
				if err := wire.CopyRR(p2, rr, p); err != nil {
					if err == wire.ErrNoBufs && bufsize < wire.MaxPacket {
						bufsize = max(wire.MaxPacket, bufsize*2)
						goto retry
					}
					return nil, err
				}
			}
		}
	}
	return p2, nil
}

// glue synthesizes an answer for q from records already sitting in the
// active frames: direct (qname, qtype) matches first, CNAMEs at the qname
// otherwise. It returns nil when nothing matches.
func (r *Resolver) glue(q *wire.Packet) *wire.Packet {
	qrr, err := q.Question()
	if err != nil {
		return nil
	}
	qname, err := q.ExpandName(qrr.NameOff)
	if err != nil {
		return nil
	}
	qtype := qrr.Type

	p := wire.New(queryBufSize)
	if p.PushQuestion(qname, qtype, wire.ClassIN) != nil {
		return nil
	}

	for _, typ := range []wire.Type{qtype, wire.TypeCNAME} {
		for sp := 0; sp <= r.sp; sp++ {
			answer := r.stack[sp].answer
			if answer == nil {
				continue
			}
			it := wire.Iter{Section: wire.SectionAll &^ wire.SectionQD, Name: qname, Type: typ}
			it.Init(answer, r.rand)
			for {
				rr, ok := it.Next(answer)
				if !ok {
					break
				}
				rr.Section = wire.SectionAN
				if wire.CopyRR(p, rr, answer) != nil {
					return nil
				}
			}
		}
		if p.Count(wire.SectionAN) > 0 {
			return p
		}
	}
	return nil
}
