// Package resolv implements a restartable, non-blocking DNS resolution
// engine: a stateless library that drives a host query through the local
// hosts table, stub lookups against configured nameservers, or full
// iterative resolution from the root hints, and emits a validated answer
// packet. Every blocking point is exposed as a pollable file descriptor,
// so the engine embeds in single-threaded event loops: Check returns
// ErrAgain whenever it would block, and PollIn/PollOut name the
// descriptor to wait on before checking again.
package resolv

import (
	"fmt"
	"io"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dnslab/resolv/hints"
	"github.com/dnslab/resolv/hosts"
	"github.com/dnslab/resolv/permute"
	"github.com/dnslab/resolv/resconf"
	"github.com/dnslab/resolv/socket"
	"github.com/dnslab/resolv/wire"
)

// Cacher stores and recalls completed answers. Implementations must keep
// private copies; see the cache package for one.
type Cacher interface {
	Set(msg *wire.Packet)
	Get(qname string, qtype wire.Type) *wire.Packet
}

// Resolver drives one query at a time through an 8-frame state machine.
// Exactly one caller thread may use a handle; the config, hosts, and
// hints tables are immutable and may be shared between handles.
type Resolver struct {
	// Trace, when set, receives elapsed-stamped progress lines.
	Trace io.Writer

	// DNSPort is the port queried on nameserver addresses; 0 means 53.
	DNSPort uint16

	conf   *resconf.Config
	hostsT *hosts.Table
	hintsT *hints.Table
	cache  Cacher
	so     *socket.Socket
	now    func() time.Time
	rand   func() uint32

	qname     string
	qtype     wire.Type
	qclass    wire.Class
	began     time.Time
	search    resconf.SearchState
	smart     wire.Iter
	smartMX   bool
	fromCache bool
	stack     [maxDepth]frame
	sp        int
}

// Option customizes a resolver at construction.
type Option func(*Resolver)

// WithClock injects the monotonic clock used for elapsed-time decisions,
// so tests can advance time deterministically.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithRand injects the random source keying transaction ids and shuffle
// seeds.
func WithRand(rng func() uint32) Option {
	return func(r *Resolver) { r.rand = rng }
}

// WithCache attaches an answer cache consulted at Submit and populated at
// Fetch.
func WithCache(c Cacher) Option {
	return func(r *Resolver) { r.cache = c }
}

// New returns a resolver over the given configuration, hosts table, and
// hints table. A nil config gets defaults, a nil hosts table is empty,
// and nil hints fall back to the baked-in roots.
func New(conf *resconf.Config, hostsTab *hosts.Table, hintsTab *hints.Table, opts ...Option) (*Resolver, error) {
	if conf == nil {
		conf = resconf.New()
	}
	if hostsTab == nil {
		hostsTab = hosts.New()
	}
	if hintsTab == nil {
		hintsTab = hints.Root()
	}
	r := &Resolver{
		conf:   conf,
		hostsT: hostsTab,
		hintsT: hintsTab,
		now:    time.Now,
		rand:   permute.Random,
	}
	for _, opt := range opts {
		opt(r)
	}
	so, err := socket.Open(conf.Interface, socket.ModeAny, r.rand, r.now)
	if err != nil {
		return nil, err
	}
	r.so = so
	return r, nil
}

// Submit arms the engine with a question. The name is kept exactly as
// given; the search-list generator decides how it is qualified.
func (r *Resolver) Submit(qname string, qtype wire.Type, qclass wire.Class) error {
	r.Reset()
	r.qname = qname
	r.qtype = qtype
	r.qclass = qclass
	r.began = r.now()
	r.logf("resolve start qname=%s qtype=%s", qname, qtype)
	if r.cache != nil {
		if msg := r.cache.Get(wire.Anchor(qname), qtype); msg != nil {
			r.logf("cache hit qname=%s qtype=%s", qname, qtype)
			r.stack[0].answer = msg
			r.stack[0].state = stateDone
			r.fromCache = true
		}
	}
	return nil
}

// Check advances the engine as far as it can without blocking: nil on
// completion, ErrAgain at a suspension point, or a hard error.
func (r *Resolver) Check() error {
	return r.exec()
}

// Fetch hands over the completed answer. The packet is caller-owned.
func (r *Resolver) Fetch() (*wire.Packet, error) {
	if r.stack[0].state != stateDone {
		return nil, wire.ErrUnknown
	}
	answer := r.stack[0].answer
	if answer == nil {
		return nil, wire.ErrUnknown
	}
	r.stack[0].answer = nil
	if r.cache != nil && !r.fromCache {
		r.cache.Set(answer)
	}
	return answer, nil
}

// PollIn returns the descriptor to wait readable on, or -1.
func (r *Resolver) PollIn() int { return r.so.PollIn() }

// PollOut returns the descriptor to wait writable on, or -1.
func (r *Resolver) PollOut() int { return r.so.PollOut() }

// Elapsed returns the time since Submit.
func (r *Resolver) Elapsed() time.Duration {
	if r.began.IsZero() {
		return 0
	}
	return r.now().Sub(r.began)
}

// Reset abandons any in-flight query: the transport is torn down, per-
// query state zeroed, and the handle returned to a submit-ready state.
// The configuration and tables are retained.
func (r *Resolver) Reset() {
	r.so.Reset()
	r.qname = ""
	r.qtype = 0
	r.qclass = 0
	r.began = time.Time{}
	r.search = 0
	r.smart = wire.Iter{}
	r.smartMX = false
	r.fromCache = false
	for i := range r.stack {
		r.stack[i] = frame{}
	}
	r.sp = 0
}

// Close releases the resolver's descriptors.
func (r *Resolver) Close() {
	if r == nil {
		return
	}
	r.Reset()
	r.so.Close()
}

// Resolve runs a query to completion, polling the suspension descriptor
// between Check calls. A timeout of zero waits indefinitely.
func (r *Resolver) Resolve(qname string, qtype wire.Type, qclass wire.Class, timeout time.Duration) (*wire.Packet, error) {
	if err := r.Submit(qname, qtype, qclass); err != nil {
		return nil, err
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = r.now().Add(timeout)
	}
	for {
		err := r.Check()
		if err == nil {
			break
		}
		if err != ErrAgain {
			return nil, err
		}
		if err := r.wait(deadline); err != nil {
			return nil, err
		}
	}
	return r.Fetch()
}

func (r *Resolver) wait(deadline time.Time) error {
	var pfd unix.PollFd
	if fd := r.PollIn(); fd != -1 {
		pfd = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
	} else if fd := r.PollOut(); fd != -1 {
		pfd = unix.PollFd{Fd: int32(fd), Events: unix.POLLOUT}
	} else {
		time.Sleep(time.Millisecond)
		return nil
	}
	// Wake at least once a second so the per-server timeout rotation in
	// the engine gets a chance to run against silent servers.
	wait := 1000
	if !deadline.IsZero() {
		ms := int(deadline.Sub(r.now()) / time.Millisecond)
		if ms <= 0 {
			return unix.ETIMEDOUT
		}
		if ms < wait {
			wait = ms
		}
	}
	for {
		n, err := unix.Poll([]unix.PollFd{pfd}, wait)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if n == 0 && !deadline.IsZero() && !r.now().Before(deadline) {
			return unix.ETIMEDOUT
		}
		return nil
	}
}

func (r *Resolver) port() uint16 {
	if r.DNSPort != 0 {
		return r.DNSPort
	}
	return 53
}

func (r *Resolver) logf(format string, args ...any) {
	if r.Trace == nil {
		return
	}
	fmt.Fprintf(r.Trace, "\n[%6dms]%*s", r.Elapsed().Milliseconds(), 1+r.sp*2, "")
	fmt.Fprintf(r.Trace, format, args...)
}
