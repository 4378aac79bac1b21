// Command genhints regenerates the baked-in root hints from the
// published root zone hints file.
package main

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"os"
	"sort"
	"strings"
	"text/template"

	"github.com/miekg/dns"
)

//go:embed roothints.go.tmpl
var roothintsgotmpl string

type rootAddr struct {
	Owner string
	Addr  netip.Addr
}

type roots struct {
	Roots []rootAddr
}

func main() {
	resp, err := http.Get("https://www.internic.net/domain/named.root")
	if err != nil {
		fmt.Fprintln(os.Stderr, "genhints:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintln(os.Stderr, "genhints:", err)
		os.Exit(1)
	}

	var list []rootAddr
	zp := dns.NewZoneParser(bytes.NewReader(body), "", "")
	for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
		switch rr := rr.(type) {
		case *dns.A:
			if ip, ok := netip.AddrFromSlice(rr.A); ok {
				list = append(list, rootAddr{Owner: strings.ToLower(rr.Hdr.Name), Addr: ip.Unmap()})
			}
		case *dns.AAAA:
			if ip, ok := netip.AddrFromSlice(rr.AAAA); ok {
				list = append(list, rootAddr{Owner: strings.ToLower(rr.Hdr.Name), Addr: ip})
			}
		}
	}
	if err := zp.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "genhints:", err)
		os.Exit(1)
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].Owner != list[j].Owner {
			return list[i].Owner < list[j].Owner
		}
		return list[i].Addr.Is4() && !list[j].Addr.Is4()
	})

	out := os.Stdout
	if len(os.Args) > 1 {
		f, err := os.Create(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "genhints:", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	tmpl := template.Must(template.New("roothints").Parse(roothintsgotmpl))
	if err := tmpl.Execute(out, roots{Roots: list}); err != nil {
		fmt.Fprintln(os.Stderr, "genhints:", err)
		os.Exit(1)
	}
}
