// Package hosts keeps an in-memory table of hosts-file entries and answers
// A, AAAA, and PTR questions from it.
package hosts

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"

	"github.com/dnslab/resolv/wire"
)

// Entry is one (address, host) pair. Arpa caches the reverse-lookup name
// for the address; alias rows (second and later names on a hosts line) are
// skipped for PTR answers.
type Entry struct {
	Addr  netip.Addr
	Host  string
	Arpa  string
	Alias bool
}

// Table is an append-only list of entries. It is immutable once shared:
// populate it fully before handing it to resolvers.
type Table struct {
	entries []Entry
}

func New() *Table {
	return &Table{}
}

// Local returns a table populated from /etc/hosts.
func Local() (*Table, error) {
	t := New()
	if err := t.LoadPath("/etc/hosts"); err != nil {
		return nil, err
	}
	return t, nil
}

// Insert appends an entry. The host name is anchored; the arpa form is
// derived from the address.
func (t *Table) Insert(addr netip.Addr, host string, alias bool) error {
	if !addr.IsValid() {
		return fmt.Errorf("hosts: invalid address for %q", host)
	}
	t.entries = append(t.entries, Entry{
		Addr:  addr,
		Host:  wire.Anchor(host),
		Arpa:  wire.Arpa(addr),
		Alias: alias,
	})
	return nil
}

// Entries returns the table contents.
func (t *Table) Entries() []Entry {
	return t.entries
}

// LoadFile reads hosts-file text: an address followed by a canonical name
// and optional aliases, with '#' or ';' starting a comment.
func (t *Table) LoadFile(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexAny(line, "#;"); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		addr, err := netip.ParseAddr(fields[0])
		if err != nil {
			continue
		}
		for i, host := range fields[1:] {
			if err := t.Insert(addr, host, i > 0); err != nil {
				return err
			}
		}
	}
	return sc.Err()
}

// LoadPath reads hosts-file text from a path.
func (t *Table) LoadPath(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return t.LoadFile(f)
}

// Dump writes the table back out in hosts-file form.
func (t *Table) Dump(w io.Writer) {
	for _, ent := range t.entries {
		fmt.Fprintf(w, "%-15s %s\n", ent.Addr, ent.Host)
	}
}

// Query answers the question in q from the table: PTR questions match the
// arpa form of non-alias rows, A and AAAA questions match host names of
// the right address family. Answers carry ttl 0 and echo the question.
func (t *Table) Query(q *wire.Packet) (*wire.Packet, error) {
	rr, err := q.Question()
	if err != nil {
		return nil, err
	}
	qname, err := q.ExpandName(rr.NameOff)
	if err != nil {
		return nil, err
	}

	p := wire.New(512)
	p.SetQR(true)
	if err := p.PushQuestion(qname, rr.Type, rr.Class); err != nil {
		return nil, err
	}

	switch rr.Type {
	case wire.TypePTR:
		for _, ent := range t.entries {
			if ent.Alias || !equalFold(qname, ent.Arpa) {
				continue
			}
			if err := p.Push(wire.SectionAN, qname, rr.Type, rr.Class, 0, wire.PTR{Host: ent.Host}); err != nil {
				return nil, err
			}
		}
	case wire.TypeA, wire.TypeAAAA:
		want4 := rr.Type == wire.TypeA
		for _, ent := range t.entries {
			if ent.Addr.Is4() != want4 || !equalFold(qname, ent.Host) {
				continue
			}
			var rd wire.RData
			if want4 {
				rd = wire.A{Addr: ent.Addr}
			} else {
				rd = wire.AAAA{Addr: ent.Addr}
			}
			if err := p.Push(wire.SectionAN, qname, rr.Type, rr.Class, 0, rd); err != nil {
				return nil, err
			}
		}
	}

	return p, nil
}

func equalFold(a, b string) bool {
	return strings.EqualFold(a, b)
}
