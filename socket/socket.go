// Package socket drives a single DNS question over the network without
// blocking: UDP first, upgrading to TCP when the answer comes back
// truncated. Every system call that would block surfaces as ErrAgain, and
// the caller learns which file descriptor to wait on from PollIn and
// PollOut, so the driver embeds in external event loops.
package socket

import (
	"errors"
	"net/netip"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dnslab/resolv/permute"
	"github.com/dnslab/resolv/wire"
)

// ErrAgain reports a suspension point: the operation would block and
// should be retried once the polled descriptor is ready.
var ErrAgain = errors.New("resolv: operation would block")

// Mode selects the transports a socket may use for one question.
type Mode int

const (
	// ModeAny queries over UDP and upgrades to TCP on truncation.
	ModeAny Mode = iota
	// ModeUDP never upgrades; truncated answers are returned as-is.
	ModeUDP
	// ModeTCP skips UDP entirely.
	ModeTCP
)

type state int

const (
	stateUDPInit state = iota + 1
	stateUDPConn
	stateUDPSend
	stateUDPRecv
	stateUDPDone
	stateTCPInit
	stateTCPConn
	stateTCPSend
	stateTCPRecv
	stateTCPDone
)

const (
	minAnswer    = 768
	maxBindTries = 7
)

// Socket is a single-question transport driver. One question is
// outstanding at a time; Submit abandons any prior state.
type Socket struct {
	udp   int
	tcp   int
	mode  Mode
	local netip.AddrPort
	qids  *permute.Permutor
	rand  func() uint32
	now   func() time.Time

	// Everything below is per-query; Reset clears it.
	state  state
	remote netip.AddrPort
	qid    uint16
	qname  string
	qtype  wire.Type
	qclass wire.Class
	query  *wire.Packet
	qout   int
	began  time.Time
	answer *wire.Packet
	apos   int
	alen   int
	lbuf   [2]byte
	wbuf   []byte
}

// Open creates a socket bound near the given local address (the zero
// AddrPort binds the unspecified address with an unpredictable port).
// rng keys transaction-id generation and now supplies the clock; nil
// selects the platform defaults.
func Open(local netip.AddrPort, mode Mode, rng func() uint32, now func() time.Time) (*Socket, error) {
	if rng == nil {
		rng = permute.Random
	}
	if now == nil {
		now = time.Now
	}
	so := &Socket{udp: -1, tcp: -1, mode: mode, local: local, rand: rng, now: now}
	fd, err := so.newSocket(unix.SOCK_DGRAM)
	if err != nil {
		return nil, err
	}
	so.udp = fd
	so.qids = permute.New(1, 65535, rng)
	return so, nil
}

// newSocket opens a nonblocking socket of the given type. Datagram
// sockets are bound to the local address; when no port is configured,
// random high ports are tried before falling back to a kernel-assigned
// one.
func (so *Socket) newSocket(typ int) (int, error) {
	family := unix.AF_INET
	if so.local.Addr().Is6() && !so.local.Addr().Is4In6() {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, typ|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, err
	}
	if typ != unix.SOCK_DGRAM {
		return fd, nil
	}
	if so.local.Port() == 0 {
		for i := 0; i < maxBindTries; i++ {
			port := uint16(1025 + so.rand()%64510)
			sa := sockaddr(netip.AddrPortFrom(bindAddr(so.local, family), port))
			if err := unix.Bind(fd, sa); err == nil {
				return fd, nil
			}
		}
	}
	sa := sockaddr(netip.AddrPortFrom(bindAddr(so.local, family), so.local.Port()))
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func closeFD(fd *int) {
	if *fd != -1 {
		_ = unix.Close(*fd)
		*fd = -1
	}
}

// Reset abandons the outstanding question: the TCP connection is torn
// down, the answer buffer dropped, and the socket returns to a
// submit-ready state. The UDP socket and the id permutor survive.
func (so *Socket) Reset() {
	closeFD(&so.tcp)
	so.state = 0
	so.remote = netip.AddrPort{}
	so.qid = 0
	so.qname = ""
	so.qtype = 0
	so.qclass = 0
	so.query = nil
	so.qout = 0
	so.began = time.Time{}
	so.answer = nil
	so.apos = 0
	so.alen = 0
	so.lbuf = [2]byte{}
	so.wbuf = nil
}

// Close releases the socket's descriptors.
func (so *Socket) Close() {
	if so == nil {
		return
	}
	so.Reset()
	closeFD(&so.udp)
}

// MkQID returns a fresh transaction id from the keyed permutor.
func (so *Socket) MkQID() uint16 {
	return uint16(so.qids.Step())
}

// Submit arms the driver with a question packet and a remote server. The
// query's id is stamped from the permutor when still zero, so a caller
// re-submitting the same packet to another server keeps its id.
func (so *Socket) Submit(q *wire.Packet, remote netip.AddrPort) error {
	so.Reset()

	rr, err := q.Question()
	if err != nil {
		return err
	}
	qname, err := q.ExpandName(rr.NameOff)
	if err != nil {
		return err
	}
	so.qname = qname
	so.qtype = rr.Type
	so.qclass = rr.Class
	so.answer = wire.New(minAnswer)
	so.remote = remote
	so.query = q
	so.began = so.now()

	if q.ID() == 0 {
		q.SetID(so.MkQID())
	}
	so.qid = q.ID()

	if so.mode == ModeTCP {
		so.state = stateTCPInit
	} else {
		so.state = stateUDPInit
	}
	return nil
}

// verify accepts an answer iff its id matches the outstanding question,
// it carries a question record, and that record's type, class, and
// (case-insensitively) name equal what was submitted.
func (so *Socket) verify() error {
	ans := so.answer
	if ans.ID() != so.qid {
		return wire.ErrUnknown
	}
	if ans.Count(wire.SectionQD) == 0 {
		return wire.ErrUnknown
	}
	rr, err := ans.Question()
	if err != nil {
		return wire.ErrUnknown
	}
	if rr.Type != so.qtype || rr.Class != so.qclass {
		return wire.ErrUnknown
	}
	qname, err := ans.ExpandName(rr.NameOff)
	if err != nil {
		return err
	}
	if len(qname) != len(so.qname) || !strings.EqualFold(qname, so.qname) {
		return wire.ErrUnknown
	}
	return nil
}

// mapAgain converts would-block errnos to ErrAgain.
func mapAgain(err error) error {
	switch err {
	case unix.EINPROGRESS, unix.EALREADY, unix.EAGAIN:
		return ErrAgain
	}
	return err
}

// Check advances the transport state machine as far as it can without
// blocking. It returns nil once a verified answer is buffered, ErrAgain
// at a suspension point, or a hard error. Invalid UDP answers are
// silently discarded; invalid TCP answers are an error.
func (so *Socket) Check() error {
	for {
		switch so.state {
		case stateUDPInit:
			so.state = stateUDPConn

		case stateUDPConn:
			err := unix.Connect(so.udp, sockaddr(so.remote))
			if err == unix.EINTR {
				continue
			}
			if err != nil {
				return mapAgain(err)
			}
			so.state = stateUDPSend

		case stateUDPSend:
			_, err := unix.Write(so.udp, so.query.Bytes())
			if err == unix.EINTR {
				continue
			}
			if err != nil {
				return mapAgain(err)
			}
			so.state = stateUDPRecv

		case stateUDPRecv:
			n, err := unix.Read(so.udp, so.answer.Data)
			if err == unix.EINTR {
				continue
			}
			if err != nil {
				return mapAgain(err)
			}
			if n < wire.HeaderSize {
				continue // trash; wait for a real answer
			}
			so.answer.SetEnd(n)
			if so.verify() != nil {
				continue // silently discard and keep listening
			}
			so.state = stateUDPDone

		case stateUDPDone:
			if !so.answer.TC() || so.mode == ModeUDP {
				return nil
			}
			so.state = stateTCPInit

		case stateTCPInit:
			closeFD(&so.tcp)
			fd, err := so.newSocket(unix.SOCK_STREAM)
			if err != nil {
				return err
			}
			so.tcp = fd
			so.qout = 0
			so.wbuf = nil
			so.apos = 0
			so.alen = 0
			so.state = stateTCPConn

		case stateTCPConn:
			err := unix.Connect(so.tcp, sockaddr(so.remote))
			if err == unix.EINTR {
				continue
			}
			if err != nil && err != unix.EISCONN {
				return mapAgain(err)
			}
			so.state = stateTCPSend

		case stateTCPSend:
			if err := so.tcpSend(); err != nil {
				return err
			}
			so.state = stateTCPRecv

		case stateTCPRecv:
			if err := so.tcpRecv(); err != nil {
				return err
			}
			so.state = stateTCPDone

		case stateTCPDone:
			closeFD(&so.tcp)
			if so.answer.End() < wire.HeaderSize {
				return wire.ErrIllegal
			}
			if err := so.verify(); err != nil {
				return err
			}
			return nil

		default:
			return wire.ErrUnknown
		}
	}
}

// tcpSend writes the query with its two-byte length prefix, resuming
// partial writes across suspensions.
func (so *Socket) tcpSend() error {
	if so.wbuf == nil {
		n := so.query.End()
		so.wbuf = make([]byte, 2+n)
		so.wbuf[0] = byte(n >> 8)
		so.wbuf[1] = byte(n)
		copy(so.wbuf[2:], so.query.Bytes())
	}
	for so.qout < len(so.wbuf) {
		n, err := unix.Write(so.tcp, so.wbuf[so.qout:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return mapAgain(err)
		}
		so.qout += n
	}
	return nil
}

// tcpRecv reads the two-byte length prefix and then the framed answer,
// growing the answer buffer to the advertised length.
func (so *Socket) tcpRecv() error {
	for so.apos < 2 {
		n, err := unix.Read(so.tcp, so.lbuf[so.apos:2])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return mapAgain(err)
		}
		if n == 0 {
			return wire.ErrUnknown
		}
		so.apos += n
		if so.apos == 2 {
			so.alen = int(so.lbuf[0])<<8 | int(so.lbuf[1])
			if so.alen < wire.HeaderSize {
				return wire.ErrIllegal
			}
			if so.alen > so.answer.Size() {
				so.answer = wire.New(so.alen)
			}
		}
	}
	for so.apos < so.alen+2 {
		n, err := unix.Read(so.tcp, so.answer.Data[so.apos-2:so.alen])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return mapAgain(err)
		}
		if n == 0 {
			return wire.ErrUnknown
		}
		so.apos += n
	}
	so.answer.SetEnd(so.alen)
	return nil
}

// Fetch hands over the verified answer once Check has completed. The
// packet is caller-owned afterwards.
func (so *Socket) Fetch() (*wire.Packet, error) {
	switch so.state {
	case stateUDPDone, stateTCPDone:
		answer := so.answer
		so.answer = nil
		return answer, nil
	}
	return nil, wire.ErrUnknown
}

// Elapsed returns the time since the outstanding question was submitted.
func (so *Socket) Elapsed() time.Duration {
	if so.began.IsZero() {
		return 0
	}
	return so.now().Sub(so.began)
}

// PollIn returns the descriptor to wait readable on, or -1.
func (so *Socket) PollIn() int {
	switch so.state {
	case stateUDPRecv:
		return so.udp
	case stateTCPRecv:
		return so.tcp
	}
	return -1
}

// PollOut returns the descriptor to wait writable on, or -1.
func (so *Socket) PollOut() int {
	switch so.state {
	case stateUDPConn, stateUDPSend:
		return so.udp
	case stateTCPConn, stateTCPSend:
		return so.tcp
	}
	return -1
}

// Query runs a question to completion, polling the suspension descriptor
// between Check calls. A timeout of zero waits indefinitely. The socket
// is reset afterwards, ready for the next Submit.
func (so *Socket) Query(q *wire.Packet, remote netip.AddrPort, timeout time.Duration) (*wire.Packet, error) {
	if so.state == 0 {
		if err := so.Submit(q, remote); err != nil {
			return nil, err
		}
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = so.now().Add(timeout)
	}
	for {
		err := so.Check()
		if err == nil {
			break
		}
		if err != ErrAgain {
			so.Reset()
			return nil, err
		}
		if err := so.poll(deadline); err != nil {
			so.Reset()
			return nil, err
		}
	}
	answer, err := so.Fetch()
	if err != nil {
		return nil, err
	}
	so.Reset()
	return answer, nil
}

func (so *Socket) poll(deadline time.Time) error {
	var pfd unix.PollFd
	if fd := so.PollIn(); fd != -1 {
		pfd = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
	} else if fd := so.PollOut(); fd != -1 {
		pfd = unix.PollFd{Fd: int32(fd), Events: unix.POLLOUT}
	} else {
		return nil
	}
	wait := -1
	if !deadline.IsZero() {
		ms := int(deadline.Sub(so.now()) / time.Millisecond)
		if ms <= 0 {
			return unix.ETIMEDOUT
		}
		wait = ms
	}
	for {
		n, err := unix.Poll([]unix.PollFd{pfd}, wait)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return unix.ETIMEDOUT
		}
		return nil
	}
}
