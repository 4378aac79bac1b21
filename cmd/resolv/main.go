// Command resolv is a dig-like harness over the resolution engine.
package main

import (
	"flag"
	"fmt"
	"net/netip"
	"os"
	"time"

	"golang.org/x/net/idna"

	"github.com/dnslab/resolv"
	"github.com/dnslab/resolv/cache"
	"github.com/dnslab/resolv/hints"
	"github.com/dnslab/resolv/hosts"
	"github.com/dnslab/resolv/resconf"
	"github.com/dnslab/resolv/wire"
)

func main() {
	var (
		qtypeName = flag.String("type", "A", "query type (A, AAAA, MX, ...)")
		confPath  = flag.String("conf", "/etc/resolv.conf", "resolv.conf path")
		hostsPath = flag.String("hosts", "/etc/hosts", "hosts file path")
		server    = flag.String("server", "", "query this nameserver instead of the configured ones")
		recurse   = flag.Bool("recurse", false, "iterate from the root hints instead of asking a stub question")
		smart     = flag.Bool("smart", false, "resolve NS/MX/SRV targets into ADDITIONAL")
		timeout   = flag.Duration("timeout", 10*time.Second, "overall query deadline")
		trace     = flag.Bool("trace", false, "write resolution progress to stderr")
	)
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: resolv [flags] name...")
		flag.Usage()
		os.Exit(2)
	}

	qtype, ok := wire.TypeByName(*qtypeName)
	if !ok {
		fmt.Fprintf(os.Stderr, "resolv: unknown query type %q\n", *qtypeName)
		os.Exit(2)
	}

	conf, err := buildConf(*confPath, *server)
	if err != nil {
		fmt.Fprintln(os.Stderr, "resolv:", err)
		os.Exit(1)
	}
	conf.Options.Recurse = conf.Options.Recurse || *recurse
	conf.Options.Smart = conf.Options.Smart || *smart

	hostsTab := hosts.New()
	_ = hostsTab.LoadPath(*hostsPath)

	hintsTab, err := buildHints(conf)
	if err != nil {
		fmt.Fprintln(os.Stderr, "resolv:", err)
		os.Exit(1)
	}

	r, err := resolv.New(conf, hostsTab, hintsTab, resolv.WithCache(cache.New()))
	if err != nil {
		fmt.Fprintln(os.Stderr, "resolv:", err)
		os.Exit(1)
	}
	defer r.Close()
	if *trace {
		r.Trace = os.Stderr
	}

	status := 0
	for _, arg := range flag.Args() {
		qname := arg
		if ascii, err := idna.Lookup.ToASCII(arg); err == nil {
			qname = ascii
		}
		msg, err := r.Resolve(qname, qtype, wire.ClassIN, *timeout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "resolv: %s: %v\n", arg, err)
			status = 1
			continue
		}
		msg.Dump(os.Stdout)
		fmt.Println()
		if rcErr := resolv.ErrorFromRcode(msg.Rcode()); rcErr != nil {
			status = 1
		}
	}
	os.Exit(status)
}

// buildConf loads the system configuration, or synthesizes one around an
// explicit server.
func buildConf(path, server string) (*resconf.Config, error) {
	if server != "" {
		conf := resconf.New()
		addr, err := netip.ParseAddr(server)
		if err != nil {
			return nil, fmt.Errorf("bad -server %q: %w", server, err)
		}
		conf.Nameservers = []netip.AddrPort{netip.AddrPortFrom(addr, 53)}
		return conf, nil
	}
	conf := resconf.New()
	if err := conf.LoadPath(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return conf, nil
}

// buildHints seeds iteration: the configured nameservers for stub
// operation, the baked-in roots when iterating or unconfigured.
func buildHints(conf *resconf.Config) (*hints.Table, error) {
	if conf.Options.Recurse || len(conf.Nameservers) == 0 {
		conf.Options.Recurse = true
		return hints.Root(), nil
	}
	return hints.Local(conf)
}
