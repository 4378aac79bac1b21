package resolv

import (
	"net/netip"

	"github.com/dnslab/resolv/wire"
)

// maxDepth is the hard cap on the resolution stack: glue lookups, CNAME
// chains, and smart indirection each push a frame.
const maxDepth = 8

// queryBufSize sizes freshly built question packets.
const queryBufSize = 512

type frameState int

const (
	stateInit frameState = iota
	stateGlue
	stateSwitch
	stateFile
	stateBind
	stateSearch
	stateHints
	stateIterate
	stateForeachNS
	stateResolv0NS
	stateResolv1NS
	stateForeachA
	stateQueryA
	stateCNAME0A
	stateCNAME1A
	stateFinish
	stateSmart0A
	stateSmart1A
	stateDone
	stateServFail
)

// frame is one level of the resolution stack.
type frame struct {
	state    frameState
	which    int // cursor into the lookup order string
	query    *wire.Packet
	answer   *wire.Packet
	hints    *wire.Packet
	hintsI   wire.Iter // NS records of hints, glue-aware order
	hintsJ   wire.Iter // A glue for the current NS host
	hintsNS  wire.RR
	ansCNAME wire.RR
}

// mkquery builds a question packet carrying the recursion-desired bit for
// stub operation.
func (r *Resolver) mkquery(qname string, qtype wire.Type, qclass wire.Class) (*wire.Packet, error) {
	q := wire.New(queryBufSize)
	if err := q.PushQuestion(qname, qtype, qclass); err != nil {
		return nil, err
	}
	q.SetRD(!r.conf.Options.Recurse)
	return q, nil
}

// mkqueryPlain builds a bare question packet for internal child lookups.
func mkqueryPlain(qname string, qtype wire.Type, qclass wire.Class) (*wire.Packet, error) {
	q := wire.New(queryBufSize)
	if err := q.PushQuestion(qname, qtype, qclass); err != nil {
		return nil, err
	}
	return q, nil
}

func grep1(p *wire.Packet, section wire.Section, name string, typ wire.Type) (wire.RR, bool) {
	it := wire.Iter{Section: section, Name: name, Type: typ}
	it.Init(p, nil)
	return it.Next(p)
}

// nsHost extracts the nameserver host an NS record points at.
func nsHost(rr wire.RR, p *wire.Packet) (string, error) {
	rd, err := wire.ParseRData(rr, p)
	if err != nil {
		return "", err
	}
	ns, ok := rd.(wire.NS)
	if !ok {
		return "", wire.ErrUnknown
	}
	return ns.Host, nil
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

func findGlueA(p *wire.Packet, host string) (wire.RR, bool) {
	it := wire.Iter{Section: wire.SectionAll &^ wire.SectionQD, Name: host, Type: wire.TypeA}
	it.Init(p, nil)
	return it.Next(p)
}

// nameservCmp orders the NS records of a hints packet for iteration:
// records whose host has A glue in the same packet win; among glued
// records, glue present before iteration started (offset below Arg) beats
// glue attached mid-iteration; remaining ties shuffle on the iterator
// seed. Only A glue is considered.
func nameservCmp(a, b wire.RR, it *wire.Iter, p *wire.Packet) int {
	var glued [2]bool
	var x, y wire.RR
	if host, err := nsHost(a, p); err == nil {
		x, glued[0] = findGlueA(p, host)
	}
	if host, err := nsHost(b, p); err == nil {
		y, glued[1] = findGlueA(p, host)
	}
	if cmp := btoi(glued[1]) - btoi(glued[0]); cmp != 0 {
		return cmp
	}
	if cmp := btoi(y.NameOff < it.Arg) - btoi(x.NameOff < it.Arg); cmp != 0 {
		return cmp
	}
	return wire.SortShuffle(a, b, it, p)
}

// exec runs the stacked state machine until the query completes, a
// suspension point is reached, or a hard error surfaces. Cross-frame
// transitions are ordinary state assignments followed by another trip
// around the loop.
func (r *Resolver) exec() error {
	for {
		F := &r.stack[r.sp]
		switch F.state {
		case stateInit:
			F.state = stateGlue

		case stateGlue:
			if r.sp == 0 {
				F.state = stateSwitch
				continue
			}
			F.answer = r.glue(F.query)
			if F.answer == nil {
				F.state = stateSwitch
				continue
			}
			qrr, err := F.query.Question()
			if err != nil {
				return err
			}
			host, err := F.query.ExpandName(qrr.NameOff)
			if err != nil {
				return err
			}
			if _, ok := grep1(F.answer, wire.SectionAN, host, qrr.Type); ok {
				F.state = stateFinish
				continue
			}
			if rr, ok := grep1(F.answer, wire.SectionAN, host, wire.TypeCNAME); ok {
				F.ansCNAME = rr
				F.state = stateCNAME0A
				continue
			}
			F.state = stateSwitch

		case stateSwitch:
			next := frameState(0)
			for F.which < len(r.conf.Lookup) {
				switch r.conf.Lookup[F.which] {
				case 'b':
					next = stateBind
				case 'f':
					next = stateFile
				}
				F.which++
				if next != 0 {
					break
				}
			}
			if next != 0 {
				F.state = next
				continue
			}
			if r.sp == 0 {
				F.state = stateServFail
				continue
			}
			// A child frame out of sources completes with whatever
			// partial state it accumulated.
			F.state = stateDone

		case stateFile:
			if r.sp > 0 {
				answer, err := r.hostsT.Query(F.query)
				if err != nil {
					return err
				}
				if answer.Count(wire.SectionAN) > 0 {
					F.answer = answer
					F.state = stateFinish
					continue
				}
				F.state = stateSwitch
				continue
			}
			r.search = 0
			F.state = stateSwitch
			for {
				host, ok := r.conf.SearchNext(r.qname, &r.search)
				if !ok {
					break
				}
				query, err := mkqueryPlain(host, r.qtype, r.qclass)
				if err != nil {
					return err
				}
				answer, err := r.hostsT.Query(query)
				if err != nil {
					return err
				}
				if answer.Count(wire.SectionAN) > 0 {
					r.logf("hosts answer qname=%s", host)
					F.query = query
					F.answer = answer
					F.state = stateFinish
					break
				}
			}

		case stateBind:
			if r.sp > 0 {
				F.state = stateHints
				continue
			}
			r.search = 0
			F.state = stateSearch

		case stateSearch:
			host, ok := r.conf.SearchNext(r.qname, &r.search)
			if !ok {
				F.state = stateSwitch
				continue
			}
			query, err := r.mkquery(host, r.qtype, r.qclass)
			if err != nil {
				return err
			}
			r.logf("search candidate qname=%s", host)
			F.query = query
			F.state = stateHints

		case stateHints:
			hintsAns, err := r.hintsT.Query(F.query, r.rand)
			if err != nil {
				return err
			}
			F.hints = hintsAns
			F.state = stateIterate

		case stateIterate:
			F.hintsI = wire.Iter{
				Section: wire.SectionNS,
				Type:    wire.TypeNS,
				Sort:    nameservCmp,
				Arg:     F.hints.End(),
			}
			F.hintsI.Init(F.hints, r.rand)
			F.state = stateForeachNS

		case stateForeachNS:
			F.hintsI.Save()
			rr, ok := F.hintsI.Next(F.hints)
			if !ok {
				F.state = stateSwitch
				continue
			}
			F.hintsNS = rr
			F.hintsJ = wire.Iter{}
			F.hintsJ.Init(F.hints, r.rand)
			// Assume there are glue records.
			F.state = stateForeachA

		case stateResolv0NS:
			if r.sp+1 >= maxDepth {
				F.state = stateForeachNS
				continue
			}
			host, err := nsHost(F.hintsNS, F.hints)
			if err != nil {
				return err
			}
			query, err := mkqueryPlain(host, wire.TypeA, wire.ClassIN)
			if err != nil {
				return err
			}
			child := &r.stack[r.sp+1]
			*child = frame{query: query}
			F.state = stateResolv1NS
			r.sp++

		case stateResolv1NS:
			child := &r.stack[r.sp+1]
			if child.answer != nil && child.query != nil {
				qrr, err := child.query.Question()
				if err != nil {
					return err
				}
				host, err := child.query.ExpandName(qrr.NameOff)
				if err != nil {
					return err
				}
				it := wire.Iter{Section: wire.SectionAll &^ wire.SectionQD, Name: host, Type: wire.TypeA}
				it.Init(child.answer, r.rand)
				for {
					rr, ok := it.Next(child.answer)
					if !ok {
						break
					}
					rr.Section = wire.SectionAR
					if err := wire.CopyRR(F.hints, rr, child.answer); err != nil {
						return err
					}
					F.hintsI.Rewind() // now there's glue
				}
			}
			F.state = stateForeachNS

		case stateForeachA:
			// The glue iterator was initialized in stateForeachNS
			// because this state is re-entrant; only the filters are
			// refreshed here.
			host, err := nsHost(F.hintsNS, F.hints)
			if err != nil {
				return err
			}
			F.hintsJ.Name = host
			F.hintsJ.Type = wire.TypeA
			F.hintsJ.Section = wire.SectionAll &^ wire.SectionQD
			rr, ok := F.hintsJ.Next(F.hints)
			if !ok {
				if F.hintsJ.Count() == 0 {
					F.state = stateResolv0NS
				} else {
					F.state = stateForeachNS
				}
				continue
			}
			rd, err := wire.ParseRData(rr, F.hints)
			if err != nil {
				return err
			}
			a, ok := rd.(wire.A)
			if !ok {
				continue
			}
			remote := netip.AddrPortFrom(a.Addr, r.port())
			r.logf("ASKING %s %s @%s depth=%d", host, r.qtype, remote, r.sp)
			if err := r.so.Submit(F.query, remote); err != nil {
				return err
			}
			F.state = stateQueryA

		case stateQueryA:
			if r.so.Elapsed() >= r.conf.Options.Timeout {
				r.logf("timeout, rotating server")
				F.state = stateForeachA
				continue
			}
			if err := r.so.Check(); err != nil {
				return err
			}
			answer, err := r.so.Fetch()
			if err != nil {
				return err
			}
			F.answer = answer
			r.logf("ANSWER rcode=%s an=%d ns=%d ar=%d depth=%d", answer.Rcode(),
				answer.Count(wire.SectionAN), answer.Count(wire.SectionNS),
				answer.Count(wire.SectionAR), r.sp)

			if !r.conf.Options.Recurse {
				F.state = stateFinish
				continue
			}

			qrr, err := F.query.Question()
			if err != nil {
				return err
			}
			host, err := F.query.ExpandName(qrr.NameOff)
			if err != nil {
				return err
			}
			if _, ok := grep1(F.answer, wire.SectionAN, host, qrr.Type); ok {
				F.state = stateFinish
				continue
			}
			if rr, ok := grep1(F.answer, wire.SectionAN, host, wire.TypeCNAME); ok {
				F.ansCNAME = rr
				F.state = stateCNAME0A
				continue
			}
			if _, ok := grep1(F.answer, wire.SectionNS, "", wire.TypeNS); ok {
				// Delegation: reseed iteration from the referral.
				F.hints = F.answer
				F.answer = nil
				F.state = stateIterate
				continue
			}
			if F.answer.AA() {
				F.state = stateFinish
				continue
			}
			F.state = stateForeachA

		case stateCNAME0A:
			if r.sp+1 >= maxDepth {
				F.state = stateFinish
				continue
			}
			rd, err := wire.ParseRData(F.ansCNAME, F.answer)
			if err != nil {
				return err
			}
			cn, ok := rd.(wire.CNAME)
			if !ok {
				return wire.ErrUnknown
			}
			qrr, err := F.query.Question()
			if err != nil {
				return err
			}
			query, err := mkqueryPlain(cn.Host, qrr.Type, wire.ClassIN)
			if err != nil {
				return err
			}
			r.logf("following CNAME %s", cn.Host)
			child := &r.stack[r.sp+1]
			*child = frame{query: query}
			F.state = stateCNAME1A
			r.sp++

		case stateCNAME1A:
			child := &r.stack[r.sp+1]
			merged, err := merge(F.answer, child.answer)
			if err != nil {
				return err
			}
			F.answer = merged
			F.state = stateFinish

		case stateFinish:
			if F.answer == nil {
				F.state = stateServFail
				continue
			}
			if !r.conf.Options.Smart || r.sp > 0 {
				F.state = stateDone
				continue
			}
			r.smart = wire.Iter{Section: wire.SectionAN, Type: r.qtype}
			r.smart.Init(F.answer, r.rand)
			F.state = stateSmart0A

		case stateSmart0A:
			var target string
			for target == "" {
				rr, ok := r.smart.Next(F.answer)
				if !ok {
					break
				}
				rd, err := wire.ParseRData(rr, F.answer)
				if err != nil {
					return err
				}
				switch v := rd.(type) {
				case wire.NS:
					target = v.Host
				case wire.MX:
					target = v.Host
				case wire.SRV:
					target = v.Target
				}
			}
			if target == "" && r.qtype == wire.TypeMX && r.smart.Count() == 0 && !r.smartMX {
				// Mail routing falls back to an address lookup for the
				// bare name when no MX exists.
				r.smartMX = true
				target = r.qname
			}
			if target == "" {
				F.state = stateDone
				continue
			}
			if _, ok := findGlueA(F.answer, target); ok && !r.smartMX {
				continue // an address is already alongside
			}
			query, err := r.mkquery(target, wire.TypeA, wire.ClassIN)
			if err != nil {
				return err
			}
			r.logf("smart lookup %s", target)
			child := &r.stack[r.sp+1]
			*child = frame{query: query}
			F.state = stateSmart1A
			r.sp++

		case stateSmart1A:
			child := &r.stack[r.sp+1]
			if child.answer != nil {
				it := wire.Iter{Section: wire.SectionAN, Type: wire.TypeA}
				it.Init(child.answer, r.rand)
				for {
					rr, ok := it.Next(child.answer)
					if !ok {
						break
					}
					rr.Section = wire.SectionAR
					if wire.ExistsRR(rr, child.answer, F.answer) {
						continue
					}
					if err := wire.CopyRR(F.answer, rr, child.answer); err != nil {
						return err
					}
				}
			}
			F.state = stateSmart0A

		case stateDone:
			if r.sp > 0 {
				r.sp--
				continue
			}
			return nil

		case stateServFail:
			src := F.query
			if src == nil {
				q, err := r.mkquery(wire.Anchor(r.qname), r.qtype, r.qclass)
				if err != nil {
					return err
				}
				src = q
			}
			p := wire.Copy(src)
			p.SetRcode(wire.RcodeServFail)
			r.logf("SERVFAIL depth=%d", r.sp)
			F.answer = p
			F.state = stateDone

		default:
			return wire.ErrUnknown
		}
	}
}
