// Package wire implements a zero-copy reader/writer for the DNS message
// format: header and section accounting, domain-name compression with a
// per-packet dictionary, typed rdata variants, and filtered, ordered
// iteration over resource records.
package wire

import (
	"errors"
	"strconv"
)

// Message geometry limits.
const (
	HeaderSize = 12

	MaxName  = 255 // assembled presentation name, including trailing dot
	MaxLabel = 63
	MaxPtrs  = 127 // pointer chases tolerated before declaring a loop

	MaxPacket = 65535
)

var (
	// ErrIllegal reports malformed wire data: bad labels, truncated
	// rdata, or a compression pointer that escapes the packet.
	ErrIllegal = errors.New("resolv: illegal wire data")

	// ErrNoBufs reports that an encode did not fit the packet buffer.
	ErrNoBufs = errors.New("resolv: packet buffer full")

	// ErrUnknown reports an answer mismatch or an unexpected state.
	ErrUnknown = errors.New("resolv: unknown or unexpected data")
)

// Section identifies a message section. Values are bit flags so iterator
// filters can select several sections at once.
type Section uint16

const (
	SectionQD Section = 1 << iota
	SectionAN
	SectionNS
	SectionAR

	SectionAll Section = SectionQD | SectionAN | SectionNS | SectionAR
)

func (s Section) String() string {
	switch s {
	case SectionQD:
		return "QUESTION"
	case SectionAN:
		return "ANSWER"
	case SectionNS:
		return "AUTHORITY"
	case SectionAR:
		return "ADDITIONAL"
	}
	return strconv.Itoa(int(s))
}

// Type is an RR type code.
type Type uint16

const (
	TypeA     Type = 1
	TypeNS    Type = 2
	TypeCNAME Type = 5
	TypeSOA   Type = 6
	TypePTR   Type = 12
	TypeMX    Type = 15
	TypeTXT   Type = 16
	TypeAAAA  Type = 28
	TypeSRV   Type = 33
	TypeOPT   Type = 41
	TypeAll   Type = 255
)

var typeNames = map[Type]string{
	TypeA:     "A",
	TypeNS:    "NS",
	TypeCNAME: "CNAME",
	TypeSOA:   "SOA",
	TypePTR:   "PTR",
	TypeMX:    "MX",
	TypeTXT:   "TXT",
	TypeAAAA:  "AAAA",
	TypeSRV:   "SRV",
	TypeOPT:   "OPT",
	TypeAll:   "ALL",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return strconv.Itoa(int(t))
}

// TypeByName maps a presentation type name ("A", "MX", ...) to its code.
func TypeByName(name string) (Type, bool) {
	for t, s := range typeNames {
		if s == name {
			return t, true
		}
	}
	return 0, false
}

// Class is an RR class code.
type Class uint16

const (
	ClassIN  Class = 1
	ClassAny Class = 255
)

func (c Class) String() string {
	switch c {
	case ClassIN:
		return "IN"
	case ClassAny:
		return "ANY"
	}
	return strconv.Itoa(int(c))
}

// Opcode is a header operation code.
type Opcode uint16

const (
	OpcodeQuery  Opcode = 0
	OpcodeIQuery Opcode = 1
	OpcodeStatus Opcode = 2
	OpcodeNotify Opcode = 4
	OpcodeUpdate Opcode = 5
)

func (o Opcode) String() string {
	switch o {
	case OpcodeQuery:
		return "QUERY"
	case OpcodeIQuery:
		return "IQUERY"
	case OpcodeStatus:
		return "STATUS"
	case OpcodeNotify:
		return "NOTIFY"
	case OpcodeUpdate:
		return "UPDATE"
	}
	return strconv.Itoa(int(o))
}

// Rcode is a header response code.
type Rcode uint16

const (
	RcodeNoError  Rcode = 0
	RcodeFormErr  Rcode = 1
	RcodeServFail Rcode = 2
	RcodeNXDomain Rcode = 3
	RcodeNotImp   Rcode = 4
	RcodeRefused  Rcode = 5
)

func (r Rcode) String() string {
	switch r {
	case RcodeNoError:
		return "NOERROR"
	case RcodeFormErr:
		return "FORMERR"
	case RcodeServFail:
		return "SERVFAIL"
	case RcodeNXDomain:
		return "NXDOMAIN"
	case RcodeNotImp:
		return "NOTIMP"
	case RcodeRefused:
		return "REFUSED"
	}
	return strconv.Itoa(int(r))
}
