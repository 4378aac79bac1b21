// Package resconf carries resolver configuration: nameservers, the search
// list, lookup order, and the option set, along with a resolv.conf text
// loader and the restartable search-list generator.
package resconf

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dnslab/resolv/wire"
)

// Caps mirror the classic resolver limits.
const (
	MaxNameservers = 3
	MaxSearch      = 4
)

// Options is the option record of a configuration.
type Options struct {
	Ndots    int
	Timeout  time.Duration
	Attempts int
	Rotate   bool
	Recurse  bool // iterate from the hints instead of asking a stub question
	Smart    bool // resolve NS/MX/SRV targets into ADDITIONAL
	EDNS0    bool
}

// Config is a resolver configuration. It is immutable once shared between
// resolvers.
type Config struct {
	Nameservers []netip.AddrPort
	Search      []string // anchored suffixes
	Lookup      string   // per-source order: 'b' network, 'f' hosts file
	Options     Options
	Interface   netip.AddrPort // local address for outgoing sockets
}

// New returns a configuration with the classic defaults. When the local
// hostname carries a domain, it seeds the search list.
func New() *Config {
	conf := &Config{
		Lookup: "bf",
		Options: Options{
			Ndots:    1,
			Timeout:  5 * time.Second,
			Attempts: 2,
		},
	}
	if name, err := os.Hostname(); err == nil {
		if domain := wire.Cleave(wire.Anchor(name)); domain != "" && domain != "." {
			conf.Search = append(conf.Search, domain)
		}
	}
	return conf
}

// Local returns a configuration loaded from /etc/resolv.conf on top of the
// defaults.
func Local() (*Config, error) {
	conf := New()
	if err := conf.LoadPath("/etc/resolv.conf"); err != nil {
		return nil, err
	}
	return conf, nil
}

// AddNameserver appends a nameserver address, up to the cap.
func (conf *Config) AddNameserver(ap netip.AddrPort) error {
	if len(conf.Nameservers) >= MaxNameservers {
		return fmt.Errorf("resconf: more than %d nameservers", MaxNameservers)
	}
	conf.Nameservers = append(conf.Nameservers, ap)
	return nil
}

// AddSearch appends an anchored suffix to the search list, up to the cap.
func (conf *Config) AddSearch(domain string) error {
	if len(conf.Search) >= MaxSearch {
		return fmt.Errorf("resconf: more than %d search entries", MaxSearch)
	}
	conf.Search = append(conf.Search, wire.Anchor(domain))
	return nil
}

// SetInterface sets the local address outgoing sockets bind to.
func (conf *Config) SetInterface(addr string, port uint16) error {
	a, err := netip.ParseAddr(addr)
	if err != nil {
		return err
	}
	conf.Interface = netip.AddrPortFrom(a, port)
	return nil
}

// LoadFile reads resolv.conf text into the configuration. Unknown
// keywords and overflowing entries are skipped, matching the tolerant
// behavior expected of the system parser.
func (conf *Config) LoadFile(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexAny(line, "#;"); i >= 0 {
			line = line[:i]
		}
		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}
		switch words[0] {
		case "nameserver":
			if len(words) < 2 {
				continue
			}
			if addr, err := netip.ParseAddr(words[1]); err == nil {
				_ = conf.AddNameserver(netip.AddrPortFrom(addr, 53))
			}
		case "domain":
			if len(words) < 2 {
				continue
			}
			conf.Search = []string{wire.Anchor(words[1])}
		case "search":
			conf.Search = nil
			for _, w := range words[1:] {
				if err := conf.AddSearch(w); err != nil {
					break
				}
			}
		case "lookup":
			var order []byte
			for _, w := range words[1:] {
				switch w {
				case "file":
					order = append(order, 'f')
				case "bind":
					order = append(order, 'b')
				}
			}
			if len(order) > 0 {
				conf.Lookup = string(order)
			}
		case "options":
			for _, w := range words[1:] {
				conf.setOption(w)
			}
		case "interface":
			if len(words) >= 2 {
				_ = conf.SetInterface(words[1], 0)
			}
		}
	}
	return sc.Err()
}

func (conf *Config) setOption(word string) {
	switch {
	case strings.HasPrefix(word, "ndots:"):
		if n, err := strconv.Atoi(word[len("ndots:"):]); err == nil && n >= 0 {
			conf.Options.Ndots = n
		}
	case strings.HasPrefix(word, "timeout:"):
		if n, err := strconv.Atoi(word[len("timeout:"):]); err == nil && n >= 0 {
			conf.Options.Timeout = time.Duration(n) * time.Second
		}
	case strings.HasPrefix(word, "attempts:"):
		if n, err := strconv.Atoi(word[len("attempts:"):]); err == nil && n >= 0 {
			conf.Options.Attempts = n
		}
	case word == "rotate":
		conf.Options.Rotate = true
	case word == "recurse":
		conf.Options.Recurse = true
	case word == "smart":
		conf.Options.Smart = true
	case word == "edns0":
		conf.Options.EDNS0 = true
	}
}

// LoadPath reads resolv.conf text from a path.
func (conf *Config) LoadPath(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return conf.LoadFile(f)
}

// Dump writes the configuration back out in resolv.conf form.
func (conf *Config) Dump(w io.Writer) {
	for _, ns := range conf.Nameservers {
		fmt.Fprintf(w, "nameserver %s\n", ns.Addr())
	}
	if len(conf.Search) > 0 {
		fmt.Fprintf(w, "search %s\n", strings.Join(conf.Search, " "))
	}
	var order []string
	for _, ch := range conf.Lookup {
		switch ch {
		case 'b':
			order = append(order, "bind")
		case 'f':
			order = append(order, "file")
		}
	}
	if len(order) > 0 {
		fmt.Fprintf(w, "lookup %s\n", strings.Join(order, " "))
	}
	fmt.Fprintf(w, "options ndots:%d timeout:%d attempts:%d",
		conf.Options.Ndots, int(conf.Options.Timeout/time.Second), conf.Options.Attempts)
	for _, opt := range []struct {
		set  bool
		name string
	}{
		{conf.Options.EDNS0, "edns0"},
		{conf.Options.Rotate, "rotate"},
		{conf.Options.Recurse, "recurse"},
		{conf.Options.Smart, "smart"},
	} {
		if opt.set {
			fmt.Fprintf(w, " %s", opt.name)
		}
	}
	fmt.Fprintln(w)
}
